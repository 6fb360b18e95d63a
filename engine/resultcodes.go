package engine

// ResultCode is the stable string every PlaceBid/BuyNow call returns (§7:
// "Always return a stable result_code string; the human message may
// change").
type ResultCode string

const (
	CodeAccepted          ResultCode = "ACCEPTED"
	CodeInvalidAmount     ResultCode = "INVALID_AMOUNT"
	CodeInvalidMaxBid     ResultCode = "INVALID_MAX_BID"
	CodeLotNotActive      ResultCode = "LOT_NOT_ACTIVE"
	CodeAuctionClosed     ResultCode = "AUCTION_CLOSED"
	CodeBidTooLow         ResultCode = "BID_TOO_LOW"
	CodeSelfOutbid        ResultCode = "SELF_OUTBID"
	CodeOutbidByProxy     ResultCode = "OUTBID_BY_PROXY"
	CodeMaxBidTied        ResultCode = "MAX_BID_TIED"
	CodeTransientConflict ResultCode = "TRANSIENT_CONFLICT"
	CodeNoBuyNow          ResultCode = "NO_BUY_NOW"
)
