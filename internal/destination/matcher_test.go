package destination

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/refdata"
)

func TestPadSeries(t *testing.T) {
	tests := []struct {
		name           string
		initial, final int64
		length         int
		lower, upper   string
		ok             bool
	}{
		{"same width", 2000000, 2999999, 7, "2000000", "2999999", true},
		{"short upper nine filled", 100, 99, 3, "100", "999", true},
		{"inverted bounds", 500, 400, 3, "500", "500", true},
		{"short lower zero filled", 5, 99, 2, "05", "99", true},
		{"longer subscriber", 5, 99, 4, "0500", "9999", true},
		{"shorter subscriber", 1234, 5678, 2, "12", "56", true},
		{"zero length", 0, 9, 0, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lower, upper, ok := PadSeries(tt.initial, tt.final, tt.length)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.lower, lower)
			assert.Equal(t, tt.upper, upper)
		})
	}
}

func TestPadSeriesKeepsOrderAndLength(t *testing.T) {
	bounds := [][2]int64{
		{0, 0}, {0, 9}, {1, 1}, {5, 99}, {10, 9999}, {2000000, 2999999},
		{123, 124}, {999, 1000}, {0, 9999999999}, {4500, 4599},
	}
	for _, b := range bounds {
		for length := 0; length <= 12; length++ {
			lower, upper, ok := PadSeries(b[0], b[1], length)
			if length == 0 {
				assert.False(t, ok)
				assert.Empty(t, lower)
				assert.Empty(t, upper)
				continue
			}
			require.True(t, ok)
			assert.Len(t, lower, length, "bounds %v length %d", b, length)
			assert.Len(t, upper, length, "bounds %v length %d", b, length)

			lo, _ := new(big.Int).SetString("601"+lower, 10)
			hi, _ := new(big.Int).SetString("601"+upper, 10)
			assert.LessOrEqual(t, lo.Cmp(hi), 0, "bounds %v length %d: %s > %s", b, length, lower, upper)
		}
	}
}

const colombia = 57

func testTables() *refdata.Tables {
	return refdata.NewTables(refdata.Rows{
		Indicators: []models.Indicator{
			{ID: 1, TelephonyTypeID: models.TypeNational, CountryID: colombia, City: "BOGOTA", Department: "CUNDINAMARCA", OperatorID: 7},
			{ID: 2, TelephonyTypeID: models.TypeNational, CountryID: colombia, City: "SOACHA", Department: "CUNDINAMARCA"},
			{ID: 3, TelephonyTypeID: models.TypeNational, CountryID: colombia, City: "CALI", Department: "VALLE"},
			{ID: 4, TelephonyTypeID: models.TypeInternational, CountryID: colombia, City: "ESTADOS UNIDOS"},
		},
		Series: []models.Series{
			{ID: 1, IndicatorID: 3, NDC: 601, Initial: 0, Final: 9999999, Kind: models.SeriesApproximate},
			{ID: 2, IndicatorID: 1, NDC: 601, Initial: 2345000, Final: 2345999},
			{ID: 3, IndicatorID: 2, NDC: 601, Initial: 2345670, Final: 2345679},
			{ID: 4, IndicatorID: 4, NDC: 1, Initial: 0, Final: 9999999999},
		},
	})
}

func TestFindPrefersNarrowestSeries(t *testing.T) {
	m := NewMatcher(testTables())

	got, ok := m.Find(Query{
		Number:           "6012345675",
		TelephonyTypeID:  models.TypeNational,
		OriginCountryID:  colombia,
		PrefixOperatorID: 44,
	})
	require.True(t, ok)
	assert.Equal(t, int64(2), got.IndicatorID)
	assert.Equal(t, "601", got.NDC)
	assert.Equal(t, "6012345670", got.Lower)
	assert.Equal(t, "6012345679", got.Upper)
	assert.False(t, got.Approximate())
	assert.Equal(t, "SOACHA, CUNDINAMARCA", got.Description)
	assert.Equal(t, int64(44), got.OperatorID, "indicator without operator falls back to the prefix operator")

	got, ok = m.Find(Query{Number: "6012345100", TelephonyTypeID: models.TypeNational, OriginCountryID: colombia})
	require.True(t, ok)
	assert.Equal(t, int64(1), got.IndicatorID)
	assert.Equal(t, int64(7), got.OperatorID)
}

func TestFindApproximateOnlyWithoutExact(t *testing.T) {
	m := NewMatcher(testTables())

	got, ok := m.Find(Query{Number: "6019999999", TelephonyTypeID: models.TypeNational, OriginCountryID: colombia})
	require.True(t, ok)
	assert.True(t, got.Approximate())
	assert.Equal(t, int64(3), got.IndicatorID)
	assert.Equal(t, "CALI, VALLE"+ApproximateMarker, got.Description)

	got, ok = m.Find(Query{Number: "6012345999", TelephonyTypeID: models.TypeNational, OriginCountryID: colombia})
	require.True(t, ok)
	assert.False(t, got.Approximate())
	assert.Equal(t, int64(1), got.IndicatorID)
}

func TestFindLocalIsLookedUpNationally(t *testing.T) {
	m := NewMatcher(testTables())

	got, ok := m.Find(Query{
		Number:            "2345675",
		TelephonyTypeID:   models.TypeLocal,
		OriginIndicatorID: 1,
		OriginCountryID:   colombia,
		PrefixID:          5,
		PrefixHasBands:    true,
	})
	require.True(t, ok)
	assert.Equal(t, int64(2), got.IndicatorID)
	assert.Equal(t, int64(0), got.PrefixID)
	assert.Equal(t, int64(0), got.BandID)
}

func TestFindShortUpperBound(t *testing.T) {
	m := NewMatcher(refdata.NewTables(refdata.Rows{
		Indicators: []models.Indicator{
			{ID: 1, TelephonyTypeID: models.TypeNational, CountryID: colombia, City: "BOGOTA"},
		},
		Series: []models.Series{
			{ID: 1, IndicatorID: 1, NDC: 601, Initial: 100, Final: 99},
		},
	}))

	got, ok := m.Find(Query{Number: "601500", TelephonyTypeID: models.TypeNational, OriginCountryID: colombia})
	require.True(t, ok)
	assert.Equal(t, int64(1), got.IndicatorID)
	assert.Equal(t, "601100", got.Lower)
	assert.Equal(t, "601999", got.Upper)
}

func localTables() *refdata.Tables {
	return refdata.NewTables(refdata.Rows{
		Indicators: []models.Indicator{
			{ID: 1, TelephonyTypeID: models.TypeNational, CountryID: colombia, City: "BOGOTA", Department: "CUNDINAMARCA"},
			{ID: 5, TelephonyTypeID: models.TypeLocal, CountryID: colombia, City: "BOGOTA CENTRO", Department: "CUNDINAMARCA"},
		},
		Series: []models.Series{
			{ID: 1, IndicatorID: 1, NDC: 601, Initial: 2000000, Final: 2999999},
			{ID: 2, IndicatorID: 5, NDC: 0, Initial: 6010000, Final: 6019999},
		},
	})
}

func TestFindLocalWithoutAreaCode(t *testing.T) {
	m := NewMatcher(localTables())

	tests := []struct {
		name      string
		number    string
		indicator int64
		prefixID  int64
		ndc       string
		lower     string
	}{
		{"area code already dialed", "6012345", 5, 9, "", "6010000"},
		{"area code prepended", "2345678", 1, 0, "601", "6012000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Find(Query{
				Number:            tt.number,
				TelephonyTypeID:   models.TypeLocal,
				OriginIndicatorID: 1,
				OriginCountryID:   colombia,
				PrefixID:          9,
			})
			require.True(t, ok)
			assert.Equal(t, tt.indicator, got.IndicatorID)
			assert.Equal(t, tt.prefixID, got.PrefixID)
			assert.Equal(t, tt.ndc, got.NDC)
			assert.Equal(t, tt.lower, got.Lower)
		})
	}
}

func TestFindLocalNoAreaCodeOrigin(t *testing.T) {
	m := NewMatcher(localTables())

	got, ok := m.Find(Query{
		Number:            "6015000",
		TelephonyTypeID:   models.TypeLocal,
		OriginIndicatorID: 5,
		OriginCountryID:   colombia,
		PrefixID:          9,
	})
	require.True(t, ok)
	assert.Equal(t, int64(5), got.IndicatorID)
	assert.Equal(t, int64(9), got.PrefixID)
	assert.Empty(t, got.NDC)
}

func TestFindStripsAccessCode(t *testing.T) {
	m := NewMatcher(testTables())

	q := Query{
		Number:          "+096012345675",
		TelephonyTypeID: models.TypeNational,
		OriginCountryID: colombia,
		AccessCode:      "09",
	}
	got, ok := m.Find(q)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.IndicatorID)

	q.AccessCodeStripped = true
	_, ok = m.Find(q)
	assert.False(t, ok)
}

func TestFindRejects(t *testing.T) {
	m := NewMatcher(testTables())

	tests := []struct {
		name string
		q    Query
	}{
		{"empty", Query{TelephonyTypeID: models.TypeNational, OriginCountryID: colombia}},
		{"non digit", Query{Number: "601ABC", TelephonyTypeID: models.TypeNational, OriginCountryID: colombia}},
		{"too short", Query{Number: "6012345675", MinTotalLength: 11, TelephonyTypeID: models.TypeNational, OriginCountryID: colombia}},
		{"unknown type", Query{Number: "6012345675", TelephonyTypeID: models.TypeCellular, OriginCountryID: colombia}},
		{"other country", Query{Number: "6012345675", TelephonyTypeID: models.TypeNational, OriginCountryID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := m.Find(tt.q)
			assert.False(t, ok)
		})
	}
}

func TestBest(t *testing.T) {
	m := NewMatcher(testTables())
	national := models.PrefixInfo{ID: 1, TelephonyTypeID: models.TypeNational, Code: "09"}
	international := models.PrefixInfo{ID: 2, TelephonyTypeID: models.TypeInternational, Code: "009"}

	res, ok := m.Best([]Query{
		QueryFor(international, "0096012345675", false, 1, colombia),
		QueryFor(national, "096012345675", false, 1, colombia),
	})
	require.True(t, ok)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, int64(2), res.Match.IndicatorID)

	res, ok = m.Best([]Query{
		QueryFor(national, "096019999999", false, 1, colombia),
		QueryFor(international, "00913055551234", false, 1, colombia),
	})
	require.True(t, ok)
	assert.Equal(t, 1, res.Index, "exact match on a later prefix beats an earlier catch-all")
	assert.Equal(t, int64(4), res.Match.IndicatorID)

	_, ok = m.Best(nil)
	assert.False(t, ok)
}
