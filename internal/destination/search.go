package destination

import (
	"math/big"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

// Result is the best destination found across several prefix hypotheses.
type Result struct {
	Match models.DestinationMatch
	// Index is the position of the winning query.
	Index int
}

// Best runs every query in order and keeps the best match: the first exact
// match ends the search, otherwise the narrowest catch-all wins.
func (m *Matcher) Best(queries []Query) (Result, bool) {
	var best *Result
	for i, q := range queries {
		match, ok := m.Find(q)
		if !ok {
			continue
		}
		if !match.Approximate() {
			return Result{Match: match, Index: i}, true
		}
		if best == nil || narrower(match, best.Match) {
			best = &Result{Match: match, Index: i}
		}
	}
	if best == nil {
		return Result{}, false
	}
	return *best, true
}

// narrower compares the stored series spans of two matches.
func narrower(a, b models.DestinationMatch) bool {
	sa := new(big.Int).Sub(big.NewInt(a.SeriesFinal), big.NewInt(a.SeriesInitial))
	sb := new(big.Int).Sub(big.NewInt(b.SeriesFinal), big.NewInt(b.SeriesInitial))
	return sa.Cmp(sb) < 0
}
