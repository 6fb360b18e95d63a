package rules_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cloudforge/auctionhouse/models"
	"github.com/cloudforge/auctionhouse/rules"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func defaultTiers() models.IncrementTierList {
	return models.IncrementTierList(models.DefaultIncrementTiers())
}

func TestMinNextBid_NoBidsYet(t *testing.T) {
	got := rules.MinNextBid(decimal.Zero, d("100"), defaultTiers())
	require.True(t, got.Equal(d("100")))
}

func TestMinNextBid_IncrementFloorScenario(t *testing.T) {
	// §8 scenario 1: starting_bid=100, current_bid=100 -> floor is 110.
	got := rules.MinNextBid(d("100"), d("100"), defaultTiers())
	require.True(t, got.Equal(d("110")), "got %s", got)
}

func TestIncrement_TierLookupFirstMatchWins(t *testing.T) {
	tiers := defaultTiers()
	require.True(t, rules.Increment(d("50"), tiers).Equal(d("5")))
	require.True(t, rules.Increment(d("100"), tiers).Equal(d("10")))
	require.True(t, rules.Increment(d("499"), tiers).Equal(d("10")))
	require.True(t, rules.Increment(d("500"), tiers).Equal(d("25")))
	require.True(t, rules.Increment(d("1000000"), tiers).Equal(d("25")))
}

func TestPremium_SingleTierApplies(t *testing.T) {
	hundred := d("500")
	tiers := models.IncrementTierList{
		{Min: decimal.Zero, Max: &hundred, Rate: d("0.15")},
		{Min: hundred, Max: nil, Rate: d("0.10")},
	}
	require.True(t, rules.Premium(d("100"), tiers).Equal(d("15")))
	require.True(t, rules.Premium(d("250.55"), tiers).Equal(d("37.5825")))
}

func TestParseImageFilename_AllAcceptedFormats(t *testing.T) {
	cases := []struct {
		name      string
		wantLot   int
		wantOrder int
	}{
		{"12-1.jpg", 12, 1},
		{"lot_12_2.PNG", 12, 2},
		{"12.3.webp", 12, 3},
		{"lot-7-4.jpeg", 7, 4},
		{"7_5.gif", 7, 5},
		{"LOT12_6.heic", 12, 6},
	}
	for _, c := range cases {
		lot, order := rules.ParseImageFilename(c.name)
		require.NotNil(t, lot, c.name)
		require.NotNil(t, order, c.name)
		require.Equal(t, c.wantLot, *lot, c.name)
		require.Equal(t, c.wantOrder, *order, c.name)
	}
}

func TestParseImageFilename_Unparseable(t *testing.T) {
	lot, order := rules.ParseImageFilename("foo.jpg")
	require.Nil(t, lot)
	require.Nil(t, order)
}

func TestParseImageFilename_RoundTrip(t *testing.T) {
	for lotNumber := 1; lotNumber <= 20; lotNumber++ {
		for order := 1; order <= 5; order++ {
			name := rules.FormatImageFilename(lotNumber, order)
			gotLot, gotOrder := rules.ParseImageFilename(name)
			require.NotNil(t, gotLot)
			require.NotNil(t, gotOrder)
			require.Equal(t, lotNumber, *gotLot)
			require.Equal(t, order, *gotOrder)
		}
	}
}

func TestImageFilenameMatching_Scenario(t *testing.T) {
	// §8 scenario 8.
	names := []string{"12-1.jpg", "lot_12_2.PNG", "12.3.webp", "foo.jpg", "12-1.jpg"}
	var lots, orders []*int
	for _, n := range names {
		l, o := rules.ParseImageFilename(n)
		lots = append(lots, l)
		orders = append(orders, o)
	}
	require.NotNil(t, lots[0])
	require.Equal(t, 12, *lots[0])
	require.Equal(t, 1, *orders[0])
	require.NotNil(t, lots[1])
	require.Equal(t, 2, *orders[1])
	require.NotNil(t, lots[2])
	require.Equal(t, 3, *orders[2])
	require.Nil(t, lots[3])
	// Duplicate of the first entry parses identically; conflict detection
	// itself is the importer's job (see importer package), not the parser's.
	require.NotNil(t, lots[4])
	require.Equal(t, 12, *lots[4])
	require.Equal(t, 1, *orders[4])
}
