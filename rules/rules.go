// Package rules holds the pure, side-effect-free bidding math: increment
// tier lookup, buyer's premium lookup, and the image filename grammar. Every
// function here is deterministic and safe for property tests, grounded on
// the pure decimal-based style of cloudx-io-openauction's core package
// (floorenforcement.go, auctionranking.go).
package rules

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cloudforge/auctionhouse/models"
)

// MinNextBid returns the smallest amount a new bid must meet or exceed
// (§4.1). If the lot has no bids yet, that is the starting bid; otherwise it
// is the current bid plus the tier-appropriate increment.
func MinNextBid(current, starting decimal.Decimal, tiers models.IncrementTierList) decimal.Decimal {
	if current.IsZero() {
		return starting
	}
	return current.Add(Increment(current, tiers))
}

// Increment returns the minimum bid step for the tier containing current,
// evaluating tiers in list order and returning the first match (§4.1).
func Increment(current decimal.Decimal, tiers models.IncrementTierList) decimal.Decimal {
	for _, t := range tiers {
		if tierMatches(current, t) {
			return t.Step
		}
	}
	return decimal.Zero
}

// PremiumRate returns the buyer's-premium rate for amount, using the first
// matching tier in premiumRules (§4.1). Zero if no tier matches.
func PremiumRate(amount decimal.Decimal, premiumRules models.IncrementTierList) decimal.Decimal {
	for _, t := range premiumRules {
		if tierMatches(amount, t) {
			return t.Rate
		}
	}
	return decimal.Zero
}

// Premium returns the buyer's-premium fee for amount: amount × PremiumRate.
func Premium(amount decimal.Decimal, premiumRules models.IncrementTierList) decimal.Decimal {
	return amount.Mul(PremiumRate(amount, premiumRules))
}

// tierMatches reports whether value falls in [t.Min, t.Max) — or [t.Min, inf)
// when t.Max is nil.
func tierMatches(value decimal.Decimal, t models.IncrementTier) bool {
	if value.LessThan(t.Min) {
		return false
	}
	if t.Max == nil {
		return true
	}
	return value.LessThan(*t.Max)
}

// imageExtensions matches a recognized image extension (case-insensitive) at
// the end of a filename.
var imageExtensions = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|heic)$`)

// filenamePatterns are tried in order; the first that matches wins (§4.1).
var filenamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)-(\d+)$`),
	regexp.MustCompile(`(?i)^lot[_-]?(\d+)[_-](\d+)$`),
	regexp.MustCompile(`^(\d+)_(\d+)$`),
	regexp.MustCompile(`^(\d+)\.(\d+)$`),
}

// ParseImageFilename extracts (lotNumber, photoOrder) from an uploaded image
// filename per the grammar in §4.1/§6. Returns (nil, nil) if no pattern
// matches the extension-stripped stem.
func ParseImageFilename(name string) (lotNumber *int, photoOrder *int) {
	stem := imageExtensions.ReplaceAllString(name, "")
	for _, pat := range filenamePatterns {
		m := pat.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		lot, err1 := strconv.Atoi(m[1])
		order, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		return &lot, &order
	}
	return nil, nil
}

// FormatImageFilename renders the canonical "<lot>-<order>.jpg" form used by
// the round-trip property test for ParseImageFilename.
func FormatImageFilename(lotNumber, photoOrder int) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(lotNumber))
	b.WriteByte('-')
	b.WriteString(strconv.Itoa(photoOrder))
	b.WriteString(".jpg")
	return b.String()
}
