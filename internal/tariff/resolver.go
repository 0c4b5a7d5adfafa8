// Package tariff resolves the destination and rate of outbound calls and
// computes the billed amount of every priced call.
package tariff

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/destination"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/numbers"
)

// Descriptions of calls priced at zero for lack of a destination.
const (
	DescriptionInvalidLength = "invalid length"
	DescriptionUnclassified  = "unclassified - no destination match"
)

// Reference is the reference data the resolver reads.
type Reference interface {
	destination.Reference

	Trunk(locationID int64, name string) (*models.Trunk, bool)
	TrunkRules(trunkID int64) []models.TrunkRule
	SpecialRates() []models.SpecialRate
	Band(id int64) (models.Band, bool)
	BandFor(prefixID, destinationIndicatorID, originIndicatorID int64) (models.Band, bool)
	TypeName(id int64) string
	OperatorName(id int64) string
	TypeConfig(typeID, countryID int64) (models.TelephonyTypeConfig, bool)
	ExtensionLimits(locationID int64) models.ExtensionLimits
}

// PrefixSource supplies the operator prefixes of a country.
type PrefixSource interface {
	Prefixes(ctx context.Context, countryID int64) ([]models.PrefixInfo, error)
}

// Resolver resolves tariffs. It keeps no per-record state and is safe for
// concurrent use.
type Resolver struct {
	ref      Reference
	prefixes PrefixSource
	matcher  *destination.Matcher
	logger   *slog.Logger
}

// New creates a resolver.
func New(ref Reference, prefixes PrefixSource, logger *slog.Logger) *Resolver {
	return &Resolver{
		ref:      ref,
		prefixes: prefixes,
		matcher:  destination.NewMatcher(ref),
		logger:   logger.With("subsystem", "tariff"),
	}
}

// attempt is the outcome of one destination lookup pass.
type attempt struct {
	number string
	prefix models.PrefixInfo
	match  models.DestinationMatch
	found  bool
	// tried is the first candidate prefix, used to judge the number's
	// length when nothing matched.
	tried    models.PrefixInfo
	hasTried bool
	// dialed is the number with the access code of the winning (or first)
	// prefix removed.
	dialed string
}

// assumed reports whether the match is only a guess.
func (a attempt) assumed() bool {
	return a.match.Approximate() || a.prefix.Synthesized
}

func (a attempt) typeID() int64 {
	return a.prefix.TelephonyTypeID
}

// Resolve finds the destination and rate of the outbound number dialed on
// rec, layers the applicable overrides and bills the call. Only reference
// data failures are returned as errors; a number without destination is
// priced at zero.
func (r *Resolver) Resolve(ctx context.Context, loc models.Location, rec *models.CallRecord, number string, typeHint int64) error {
	prefixes, err := r.prefixes.Prefixes(ctx, loc.CountryID)
	if err != nil {
		return fmt.Errorf("loading prefixes: %w", err)
	}

	trunk, isTrunk := r.ref.Trunk(loc.ID, rec.DestinationDevice)
	rec.TrunkID = 0
	if isTrunk {
		rec.TrunkID = trunk.ID
	}

	var result attempt
	if isTrunk {
		result = r.lookup(loc, prefixes, strings.TrimSpace(number), trunk, typeHint)
		if !result.found || result.assumed() || result.typeID() == models.TypeErrors {
			cleanWith := loc.PbxPrefixes
			if trunk.NoPbxPrefix {
				cleanWith = nil
			}
			normalized, _ := numbers.Clean(number, cleanWith, false)
			retry := r.lookup(loc, prefixes, normalized, nil, typeHint)
			if preferRetry(result, retry) {
				r.logger.Debug("normalized lookup preferred",
					"record_id", rec.ID,
					"trunk", trunk.Name,
					"type", retry.typeID(),
					"indicator_id", retry.match.IndicatorID,
				)
				result = retry
			}
		}
	} else {
		cleaned, _ := numbers.Clean(number, loc.PbxPrefixes, false)
		result = r.lookup(loc, prefixes, cleaned, nil, typeHint)
	}

	if !result.found {
		r.unresolved(loc, rec, result)
		return nil
	}

	r.price(loc, rec, result, trunk)
	return nil
}

// preferRetry decides between the trunk lookup and the normalized retry. The
// retry wins unless it lands on the same type and indicator.
func preferRetry(first, retry attempt) bool {
	if !retry.found {
		return false
	}
	if !first.found {
		return true
	}
	return first.typeID() != retry.typeID() || first.match.IndicatorID != retry.match.IndicatorID
}

// lookup runs one lookup pass over the candidate prefixes for number. With a
// trunk the candidates are the trunk's allowed types regardless of access
// code; otherwise the prefixes whose access code is the longest one number
// starts with.
func (r *Resolver) lookup(loc models.Location, prefixes []models.PrefixInfo, number string, trunk *models.Trunk, typeHint int64) attempt {
	candidates := r.candidates(loc, prefixes, number, trunk)
	candidates = orderCandidates(candidates, number, typeHint)

	a := attempt{number: number}
	if len(candidates) > 0 {
		a.tried, a.hasTried = candidates[0], true
		a.dialed = stripAccessCode(candidates[0], number, trunk)
	}

	queries := make([]destination.Query, len(candidates))
	for i, p := range candidates {
		queries[i] = destination.QueryFor(p, truncate(stripAccessCode(p, number, trunk), p.MaxLength), true, loc.IndicatorID, loc.CountryID)
	}

	res, ok := r.matcher.Best(queries)
	if !ok {
		return a
	}
	a.prefix = candidates[res.Index]
	a.match = res.Match
	a.found = true
	a.dialed = stripAccessCode(a.prefix, number, trunk)
	return a
}

func (r *Resolver) candidates(loc models.Location, prefixes []models.PrefixInfo, number string, trunk *models.Trunk) []models.PrefixInfo {
	var out []models.PrefixInfo

	if trunk != nil {
		allowed := trunk.AllowedTypes()
		hasLocal := false
		for _, p := range prefixes {
			if !allowed[p.TelephonyTypeID] || !models.IsExternalType(p.TelephonyTypeID) {
				continue
			}
			out = append(out, p)
			if p.TelephonyTypeID == models.TypeLocal {
				hasLocal = true
			}
		}
		if !hasLocal {
			out = append(out, r.syntheticLocal(loc))
		}
		return out
	}

	longest := -1
	for _, p := range prefixes {
		if models.IsExternalType(p.TelephonyTypeID) && p.Code != "" && strings.HasPrefix(number, p.Code) && len(p.Code) > longest {
			longest = len(p.Code)
		}
	}
	for _, p := range prefixes {
		if !models.IsExternalType(p.TelephonyTypeID) {
			continue
		}
		switch {
		case longest > 0 && len(p.Code) == longest && strings.HasPrefix(number, p.Code):
			out = append(out, p)
		case longest < 0 && p.Code == "":
			out = append(out, p)
		}
	}
	return out
}

// syntheticLocal stands in for a local prefix a trunk has no rate for.
func (r *Resolver) syntheticLocal(loc models.Location) models.PrefixInfo {
	p := models.PrefixInfo{
		CountryID:         loc.CountryID,
		TelephonyTypeID:   models.TypeLocal,
		TelephonyTypeName: r.ref.TypeName(models.TypeLocal),
		Synthesized:       true,
	}
	if c, ok := r.ref.TypeConfig(models.TypeLocal, loc.CountryID); ok {
		p.MinLength, p.MaxLength = c.MinLength, c.MaxLength
	}
	return p
}

// orderCandidates puts the hinted type first, then prefixes whose length
// bounds fit the number before those that need it truncated.
func orderCandidates(candidates []models.PrefixInfo, number string, typeHint int64) []models.PrefixInfo {
	out := make([]models.PrefixInfo, len(candidates))
	copy(out, candidates)
	rank := func(p models.PrefixInfo) int {
		n := len(number) - len(p.Code)
		rank := 0
		if typeHint != 0 && p.TelephonyTypeID != typeHint {
			rank += 2
		}
		if p.MaxLength > 0 && n > p.MaxLength {
			rank++
		}
		return rank
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// stripAccessCode removes the prefix's access code unless the trunk keeps it.
func stripAccessCode(p models.PrefixInfo, number string, trunk *models.Trunk) string {
	if p.Code == "" || keepsAccessCode(trunk, p.TelephonyTypeID) {
		return number
	}
	return strings.TrimPrefix(number, p.Code)
}

func truncate(number string, maxLength int) string {
	if maxLength > 0 && len(number) > maxLength {
		return number[:maxLength]
	}
	return number
}

// keepsAccessCode reports whether numbers over the trunk arrive without the
// operator access code for the type.
func keepsAccessCode(trunk *models.Trunk, typeID int64) bool {
	if trunk == nil {
		return false
	}
	if trunk.NoPrefix {
		return true
	}
	for _, rate := range trunk.Rates {
		if rate.TelephonyTypeID == typeID && rate.NoPrefix {
			return true
		}
	}
	return false
}

// unresolved prices a number no series matched at zero, as ERRORS when its
// length cannot be valid for the type tried.
func (r *Resolver) unresolved(loc models.Location, rec *models.CallRecord, a attempt) {
	rec.IndicatorID = 0
	rec.OperatorID = 0
	rec.OperatorName = ""

	if !a.hasTried || invalidLength(a.tried, a.dialed, r.ref.ExtensionLimits(loc.ID)) {
		rec.TelephonyTypeID = models.TypeErrors
		rec.DestinationDescription = DescriptionInvalidLength
	} else {
		rec.TelephonyTypeID = a.tried.TelephonyTypeID
		rec.OperatorID = a.tried.OperatorID
		rec.OperatorName = r.ref.OperatorName(a.tried.OperatorID)
		rec.DestinationDescription = DescriptionUnclassified
	}
	rec.TelephonyTypeName = r.ref.TypeName(rec.TelephonyTypeID)

	applyBilling(rec, newPricing(models.TariffValue{}))
	r.logger.Debug("no destination found",
		"record_id", rec.ID,
		"number", a.number,
		"type", rec.TelephonyTypeName,
	)
}

// invalidLength reports whether dialed cannot be a number of the prefix's
// type: shorter than the minimum for non-local types, longer than the
// maximum or no longer than an extension for local ones.
func invalidLength(p models.PrefixInfo, dialed string, limits models.ExtensionLimits) bool {
	n := len(dialed)
	if n == 0 {
		return true
	}
	if models.IsLocalType(p.TelephonyTypeID) {
		if p.MaxLength > 0 && n > p.MaxLength {
			return true
		}
		return n <= limits.MaxLength
	}
	return n < p.MinLength
}
