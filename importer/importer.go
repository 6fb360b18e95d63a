// Package importer turns a bulk lot CSV and a batch of uploaded image
// filenames into lot rows and image mappings (§4.7). Both operations are
// all-or-nothing at the CSV level and best-effort at the per-file level: a
// bad CSV rejects the whole batch, but one unparseable image filename never
// blocks the rest of the upload.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cloudforge/auctionhouse/models"
	"github.com/cloudforge/auctionhouse/rules"
	"github.com/cloudforge/auctionhouse/store"
)

// requiredColumns must all be present in the CSV header (§4.7). Any other
// column, recognized optional ones included, is read if present and
// otherwise ignored rather than rejected.
var requiredColumns = []string{"lot_number", "title", "starting_bid"}

// ErrEmptyCSV is returned when the CSV has a header but no data rows.
var ErrEmptyCSV = errors.New("importer: csv has no data rows")

// Store is the persistence surface ImportLotsCSV and the image-matching
// operations need.
type Store interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	LotNumberExists(ctx context.Context, auctionID uuid.UUID, lotNumber int) (bool, error)
	CreateLotsAndBatch(ctx context.Context, lots []models.Lot, batch *models.ImportBatch) error
	CreateRejectedBatch(ctx context.Context, batch *models.ImportBatch) error
	CreateImageMappings(ctx context.Context, mappings []models.ImageMapping) error
	ManualAssignImage(ctx context.Context, mappingID, lotID uuid.UUID, order int) error
	GetLot(ctx context.Context, lotID uuid.UUID) (*models.Lot, error)
	GetLotByNumber(ctx context.Context, auctionID uuid.UUID, lotNumber int) (*models.Lot, error)
}

// Importer wraps the Store collaborator. Unlike engine/closer/invoicer, it
// has no time-dependent logic of its own: row timestamps come from the
// database, and imported lots inherit their close time from the auction.
type Importer struct {
	store Store
}

// New constructs an Importer.
func New(s Store) *Importer {
	return &Importer{store: s}
}

// ImportResult is what ImportLotsCSV returns: the persisted batch record and
// the lots it created, if the batch was accepted.
type ImportResult struct {
	Batch *models.ImportBatch
	Lots  []models.Lot
}

// ImportLotsCSV parses csvBytes as a lot CSV for auctionID and, if every row
// validates and no lot_number collides (within the file or against an
// existing lot in the auction), inserts all of them with status=pending
// (§4.7). Any row error or collision rejects the whole batch; the rejection
// is still recorded as an ImportBatch so the caller can see what failed.
// Imported lots default to closing when their auction does.
func (imp *Importer) ImportLotsCSV(ctx context.Context, auctionID uuid.UUID, csvBytes []byte) (*ImportResult, error) {
	auction, err := imp.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	rows, header, err := parseCSV(csvBytes)
	if err != nil {
		return nil, err
	}

	colIdx, missing := indexColumns(header)
	if len(missing) > 0 {
		batch := &models.ImportBatch{
			AuctionID: auctionID,
			RowCount:  len(rows),
			Accepted:  0,
			Errors: models.ImportRowErrorList{{
				Row: 0, Field: "header",
				Message: fmt.Sprintf("missing required column(s): %s", strings.Join(missing, ", ")),
			}},
		}
		if err := imp.store.CreateRejectedBatch(ctx, batch); err != nil {
			return nil, err
		}
		return &ImportResult{Batch: batch}, nil
	}

	if len(rows) == 0 {
		return nil, ErrEmptyCSV
	}

	lots, rowErrors := imp.validateRows(ctx, auctionID, rows, colIdx)

	batch := &models.ImportBatch{
		AuctionID: auctionID,
		RowCount:  len(rows),
		Errors:    rowErrors,
	}

	if len(rowErrors) > 0 {
		batch.Accepted = 0
		if err := imp.store.CreateRejectedBatch(ctx, batch); err != nil {
			return nil, err
		}
		return &ImportResult{Batch: batch}, nil
	}

	for i := range lots {
		lots[i].AuctionID = auctionID
		lots[i].OriginalCloseAt = auction.EndAt
	}

	batch.Accepted = len(lots)
	if err := imp.store.CreateLotsAndBatch(ctx, lots, batch); err != nil {
		return nil, err
	}
	return &ImportResult{Batch: batch, Lots: lots}, nil
}

// parseCSV decodes raw bytes with Go's encoding/csv, accepting both CRLF and
// LF line endings and "" quoting (both handled natively by csv.Reader), and
// splits the header from the data rows.
func parseCSV(csvBytes []byte) (rows [][]string, header []string, err error) {
	r := csv.NewReader(bytes.NewReader(csvBytes))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err = r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, ErrEmptyCSV
		}
		return nil, nil, fmt.Errorf("importer: reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("importer: reading row: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, header, nil
}

// indexColumns maps each known column name to its position in header and
// reports any required column that is absent.
func indexColumns(header []string) (idx map[string]int, missing []string) {
	idx = make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	return idx, missing
}

// validateRows runs every field-level check for every row, the same
// collect-everything-before-failing style as a hand-rolled
// validateTenderRequest: each row can produce multiple field errors, and
// collisions (within the file or against the auction's existing lots) are
// checked for a row only once that row's own fields parse cleanly.
func (imp *Importer) validateRows(ctx context.Context, auctionID uuid.UUID, rows [][]string, colIdx map[string]int) ([]models.Lot, models.ImportRowErrorList) {
	lots := make([]models.Lot, 0, len(rows))
	var rowErrors models.ImportRowErrorList
	seenNumbers := make(map[int]int) // lot_number -> first row index that used it (1-based)

	for i, rec := range rows {
		rowNum := i + 1
		lot, errs := parseRow(rec, colIdx, rowNum)
		rowErrors = append(rowErrors, errs...)
		if len(errs) > 0 {
			continue
		}

		if first, dup := seenNumbers[lot.LotNumber]; dup {
			rowErrors = append(rowErrors, models.ImportRowError{
				Row: rowNum, Field: "lot_number",
				Message: fmt.Sprintf("duplicates lot_number from row %d", first),
			})
			continue
		}
		seenNumbers[lot.LotNumber] = rowNum

		exists, err := imp.store.LotNumberExists(ctx, auctionID, lot.LotNumber)
		if err != nil {
			rowErrors = append(rowErrors, models.ImportRowError{
				Row: rowNum, Field: "lot_number", Message: "could not verify uniqueness",
			})
			continue
		}
		if exists {
			rowErrors = append(rowErrors, models.ImportRowError{
				Row: rowNum, Field: "lot_number",
				Message: "already used by an existing lot in this auction",
			})
			continue
		}

		lots = append(lots, lot)
	}

	if len(rowErrors) > 0 {
		return nil, rowErrors
	}
	return lots, nil
}

// parseRow validates one CSV row and builds the Lot it describes. It never
// stops at the first bad field; every invalid field is reported so a caller
// fixing the CSV sees the whole picture in one pass.
func parseRow(rec []string, colIdx map[string]int, rowNum int) (models.Lot, []models.ImportRowError) {
	var errs []models.ImportRowError
	field := func(name string) string {
		i, ok := colIdx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var lot models.Lot

	lotNumberStr := field("lot_number")
	if lotNumberStr == "" {
		errs = append(errs, models.ImportRowError{Row: rowNum, Field: "lot_number", Message: "missing"})
	} else if n, err := strconv.Atoi(lotNumberStr); err != nil {
		errs = append(errs, models.ImportRowError{Row: rowNum, Field: "lot_number", Message: "must be an integer"})
	} else {
		lot.LotNumber = n
	}

	title := field("title")
	if title == "" {
		errs = append(errs, models.ImportRowError{Row: rowNum, Field: "title", Message: "missing"})
	} else {
		lot.Title = title
	}

	startingBidStr := field("starting_bid")
	if startingBidStr == "" {
		errs = append(errs, models.ImportRowError{Row: rowNum, Field: "starting_bid", Message: "missing"})
	} else if d, err := decimal.NewFromString(startingBidStr); err != nil {
		errs = append(errs, models.ImportRowError{Row: rowNum, Field: "starting_bid", Message: "must be a decimal number"})
	} else if d.IsNegative() {
		errs = append(errs, models.ImportRowError{Row: rowNum, Field: "starting_bid", Message: "must be >= 0"})
	} else {
		lot.StartingBid = d
	}

	lot.Description = field("description")
	lot.Category = field("category")
	lot.Condition = field("condition")
	lot.Location = field("location")

	if s := field("reserve_price"); s != "" {
		if d, err := decimal.NewFromString(s); err != nil {
			errs = append(errs, models.ImportRowError{Row: rowNum, Field: "reserve_price", Message: "must be a decimal number"})
		} else {
			lot.ReservePrice = &d
		}
	}

	if s := field("buy_now_price"); s != "" {
		if d, err := decimal.NewFromString(s); err != nil {
			errs = append(errs, models.ImportRowError{Row: rowNum, Field: "buy_now_price", Message: "must be a decimal number"})
		} else {
			lot.BuyNowPrice = &d
		}
	}

	lot.Quantity = 1
	if s := field("quantity"); s != "" {
		if n, err := strconv.Atoi(s); err != nil {
			errs = append(errs, models.ImportRowError{Row: rowNum, Field: "quantity", Message: "must be an integer"})
		} else {
			lot.Quantity = n
		}
	}

	if s := field("shipping_available"); s != "" {
		b, err := parseBool(s)
		if err != nil {
			errs = append(errs, models.ImportRowError{Row: rowNum, Field: "shipping_available", Message: "must be true/false/1/0"})
		} else {
			lot.ShippingAvailable = b
		}
	}

	return lot, errs
}

// parseBool accepts the CSV boolean spellings named in §4.7.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("importer: %q is not a recognized boolean", s)
	}
}

// MatchImages matches a batch of uploaded (filename, url) pairs against the
// lots of one auction (§4.7) and persists the outcome rows.
func (imp *Importer) MatchImages(ctx context.Context, auctionID uuid.UUID, files []UploadedFile) ([]models.ImageMapping, error) {
	mappings := make([]models.ImageMapping, 0, len(files))
	claimed := make(map[claimKey]int) // (lot, order) -> index into mappings of the first matched winner

	for _, f := range files {
		lotNumber, photoOrder := rules.ParseImageFilename(f.Filename)
		m := models.ImageMapping{AuctionID: auctionID, Filename: f.Filename, URL: f.URL}

		if lotNumber == nil {
			m.Status = models.ImageUnmatched
			m.Reason = "unparseable"
			mappings = append(mappings, m)
			continue
		}

		lot, err := imp.store.GetLotByNumber(ctx, auctionID, *lotNumber)
		if errors.Is(err, store.ErrNotFound) {
			m.Status = models.ImageUnmatched
			m.Reason = "no lot"
			mappings = append(mappings, m)
			continue
		}
		if err != nil {
			return nil, err
		}

		key := claimKey{lotID: lot.ID, order: *photoOrder}
		if winnerIdx, taken := claimed[key]; taken {
			m.Status = models.ImageConflict
			m.Reason = fmt.Sprintf("same (lot, order) already matched by %q", mappings[winnerIdx].Filename)
			mappings = append(mappings, m)
			continue
		}

		m.Status = models.ImageMatched
		m.LotID = &lot.ID
		m.PhotoOrder = photoOrder
		claimed[key] = len(mappings)
		mappings = append(mappings, m)
	}

	if err := imp.store.CreateImageMappings(ctx, mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

type claimKey struct {
	lotID uuid.UUID
	order int
}

// UploadedFile is one member of a match_images request (§4.7): the original
// filename and the URL it was stored at by the caller's upload path.
type UploadedFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// ManualAssignImage sets mappingID's outcome to manual with an explicit
// lot/order, overriding whatever MatchImages produced (§4.7).
func (imp *Importer) ManualAssignImage(ctx context.Context, mappingID, lotID uuid.UUID, order int) error {
	if _, err := imp.store.GetLot(ctx, lotID); err != nil {
		return err
	}
	return imp.store.ManualAssignImage(ctx, mappingID, lotID, order)
}
