// Package destination resolves a dialed number to the geographic indicator
// and operator it terminates on, using the numbering series of the
// reference data.
package destination

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/numbers"
)

// ApproximateMarker is appended to the description of catch-all matches.
const ApproximateMarker = " (approx.)"

// Default NDC length window for international and satellite numbers when the
// series tables have nothing for the country.
const (
	defaultMinNDCLength = 1
	defaultMaxNDCLength = 4
)

// Reference is the slice of reference data the matcher reads.
type Reference interface {
	DominantNDC(indicatorID int64) (int64, bool)
	NDCLengthRange(typeID, countryID int64) (int, int, bool)
	SeriesCandidates(typeID, countryID int64, ndcs map[int64]bool, prefixID int64, withBands bool, originIndicatorID int64) []models.SeriesCandidate
}

// Query describes one destination lookup.
type Query struct {
	Number          string
	TelephonyTypeID int64
	// MinTotalLength is the shortest number, access code removed, worth
	// looking up for the type.
	MinTotalLength    int
	OriginIndicatorID int64
	OriginCountryID   int64

	PrefixID         int64
	PrefixOperatorID int64
	PrefixHasBands   bool

	// AccessCode is stripped from Number unless AccessCodeStripped is set.
	AccessCode         string
	AccessCodeStripped bool
}

// QueryFor builds the lookup of number under an operator prefix.
func QueryFor(p models.PrefixInfo, number string, stripped bool, originIndicatorID, countryID int64) Query {
	return Query{
		Number:             number,
		TelephonyTypeID:    p.TelephonyTypeID,
		MinTotalLength:     p.MinLength,
		OriginIndicatorID:  originIndicatorID,
		OriginCountryID:    countryID,
		PrefixID:           p.ID,
		PrefixOperatorID:   p.OperatorID,
		PrefixHasBands:     p.BandCount > 0,
		AccessCode:         p.Code,
		AccessCodeStripped: stripped,
	}
}

// Matcher looks up destinations. It holds no per-call state and is safe for
// concurrent use.
type Matcher struct {
	ref Reference
}

// NewMatcher creates a matcher over ref.
func NewMatcher(ref Reference) *Matcher {
	return &Matcher{ref: ref}
}

type scored struct {
	match models.DestinationMatch
	span  *big.Int
}

// Find returns the destination of q. Among exact matches the one with the
// narrowest series wins; a catch-all match is returned only when no exact
// series covers the number.
func (m *Matcher) Find(q Query) (models.DestinationMatch, bool) {
	number := strings.TrimPrefix(q.Number, "+")
	if !q.AccessCodeStripped && q.AccessCode != "" {
		number = strings.TrimPrefix(number, q.AccessCode)
	}
	if number == "" || !numbers.IsDigits(number) {
		return models.DestinationMatch{}, false
	}
	if len(number) < q.MinTotalLength {
		return models.DestinationMatch{}, false
	}

	typeID := q.TelephonyTypeID
	prefixID := q.PrefixID
	withBands := q.PrefixHasBands

	if models.IsLocalType(typeID) {
		if ndc, ok := m.ref.DominantNDC(q.OriginIndicatorID); ok && ndc > 0 {
			ndcStr := strconv.FormatInt(ndc, 10)
			if !strings.HasPrefix(number, ndcStr) {
				number = ndcStr + number
				typeID = models.TypeNational
				prefixID = 0
				withBands = false
			}
		}
	}

	minNDC, maxNDC, ok := m.ref.NDCLengthRange(typeID, q.OriginCountryID)
	if !ok {
		if typeID != models.TypeInternational && typeID != models.TypeSatellite {
			return models.DestinationMatch{}, false
		}
		minNDC, maxNDC = defaultMinNDCLength, defaultMaxNDCLength
	}

	ndcs := ndcCandidates(number, minNDC, maxNDC)
	if len(ndcs) == 0 {
		return models.DestinationMatch{}, false
	}

	value, ok := new(big.Int).SetString(number, 10)
	if !ok {
		return models.DestinationMatch{}, false
	}

	rows := m.ref.SeriesCandidates(typeID, q.OriginCountryID, ndcs, prefixID, withBands, q.OriginIndicatorID)

	var best *scored
	var approx *models.DestinationMatch
	for _, row := range rows {
		ndcStr := ""
		if row.Series.NDC > 0 {
			ndcStr = strconv.FormatInt(row.Series.NDC, 10)
		}
		if !strings.HasPrefix(number, ndcStr) {
			continue
		}

		if row.Series.Kind == models.SeriesApproximate {
			if approx == nil {
				a := m.describe(row, q, prefixID, ndcStr, models.MatchApproximate)
				approx = &a
			}
			continue
		}

		lo, hi, ok := PadSeries(row.Series.Initial, row.Series.Final, len(number)-len(ndcStr))
		if !ok {
			continue
		}
		lower, _ := new(big.Int).SetString(ndcStr+lo, 10)
		upper, _ := new(big.Int).SetString(ndcStr+hi, 10)
		if lower == nil || upper == nil || value.Cmp(lower) < 0 || value.Cmp(upper) > 0 {
			continue
		}

		span := new(big.Int).Sub(upper, lower)
		if best != nil && span.Cmp(best.span) >= 0 {
			continue
		}
		match := m.describe(row, q, prefixID, ndcStr, models.MatchExact)
		match.Lower, match.Upper = ndcStr+lo, ndcStr+hi
		best = &scored{match: match, span: span}
	}

	if best != nil {
		return best.match, true
	}
	if approx != nil {
		return *approx, true
	}
	return models.DestinationMatch{}, false
}

// ndcCandidates returns the leading digit groups of number that could be an
// NDC. The length 0 stands for "no NDC".
func ndcCandidates(number string, minLen, maxLen int) map[int64]bool {
	out := make(map[int64]bool)
	if minLen < 0 {
		minLen = 0
	}
	for i := minLen; i <= maxLen && i < len(number); i++ {
		if i == 0 {
			out[0] = true
			continue
		}
		head := number[:i]
		if head[0] == '0' {
			continue
		}
		ndc, err := strconv.ParseInt(head, 10, 64)
		if err != nil {
			continue
		}
		out[ndc] = true
	}
	return out
}

func (m *Matcher) describe(row models.SeriesCandidate, q Query, prefixID int64, ndc string, kind models.MatchKind) models.DestinationMatch {
	operatorID := row.Indicator.OperatorID
	if operatorID == 0 {
		operatorID = q.PrefixOperatorID
	}
	desc := Describe(row.Indicator)
	if kind == models.MatchApproximate {
		desc += ApproximateMarker
	}
	return models.DestinationMatch{
		IndicatorID:   row.Indicator.ID,
		NDC:           ndc,
		Description:   desc,
		OperatorID:    operatorID,
		PrefixID:      prefixID,
		BandID:        row.BandID,
		Kind:          kind,
		SeriesInitial: row.Series.Initial,
		SeriesFinal:   row.Series.Final,
	}
}

// Describe formats an indicator as "city, region".
func Describe(ind models.Indicator) string {
	switch {
	case ind.City != "" && ind.Department != "":
		return ind.City + ", " + ind.Department
	case ind.City != "":
		return ind.City
	default:
		return ind.Department
	}
}
