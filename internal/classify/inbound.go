package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/destination"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/numbers"
)

// OriginNotIdentified describes inbound calls whose caller could not be
// placed.
const OriginNotIdentified = "origin not identified"

func (c *Classifier) inbound(ctx context.Context, loc models.Location, rec *models.CallRecord) (Decision, error) {
	number := strings.TrimSpace(rec.CallingNumber)
	if rewritten, ok := numbers.ApplyPbxRules(number, c.ref.PbxRules(loc.ID), models.RuleInbound); ok {
		number = rewritten
	}
	number, hint, _ := numbers.ApplyTransforms(number, c.ref.Transforms(loc.ID), models.RuleInbound)
	number, _ = numbers.Clean(number, nil, false)

	ext, _ := numbers.Clean(rec.EffectiveDestination, nil, false)
	p, ok := c.resolveExtension(loc, ext, rec.StartTime, true)
	rec.Extension = ext
	rec.Dial = number
	attribute(rec, p, ok)

	match, prefix, found, err := c.resolveCaller(ctx, loc, number, hint)
	if err != nil {
		return Decision{}, fmt.Errorf("resolving caller origin: %w", err)
	}

	rec.OperatorID = 0
	rec.OperatorName = ""
	if !found {
		typeID := hint
		if typeID == 0 {
			typeID = models.TypeInbound
		}
		rec.TelephonyTypeID = typeID
		rec.TelephonyTypeName = c.ref.TypeName(typeID)
		rec.IndicatorID = 0
		rec.DestinationDescription = OriginNotIdentified
		return Decision{Path: PathInbound, TypeHint: hint}, nil
	}

	typeID := prefix.TelephonyTypeID
	switch {
	case match.IndicatorID == loc.IndicatorID:
		typeID = models.TypeLocal
	case match.NDC != "" && c.ref.IsLocalExtended(loc.IndicatorID, match.NDC):
		typeID = models.TypeLocalExtended
	}

	rec.TelephonyTypeID = typeID
	rec.TelephonyTypeName = c.ref.TypeName(typeID)
	rec.IndicatorID = match.IndicatorID
	rec.OperatorID = match.OperatorID
	rec.OperatorName = c.ref.OperatorName(match.OperatorID)
	rec.DestinationDescription = match.Description
	return Decision{Path: PathInbound, TypeHint: hint}, nil
}

// resolveCaller places an external calling number. A transform hint narrows
// the search to its type first.
func (c *Classifier) resolveCaller(ctx context.Context, loc models.Location, number string, hint int64) (models.DestinationMatch, models.PrefixInfo, bool, error) {
	if !numbers.IsDigits(number) {
		return models.DestinationMatch{}, models.PrefixInfo{}, false, nil
	}
	prefixes, err := c.prefixes.Prefixes(ctx, loc.CountryID)
	if err != nil {
		return models.DestinationMatch{}, models.PrefixInfo{}, false, err
	}

	if hint != 0 {
		if m, p, ok := c.searchCaller(loc, prefixes, number, hint); ok {
			return m, p, true, nil
		}
	}
	m, p, ok := c.searchCaller(loc, prefixes, number, 0)
	return m, p, ok, nil
}

func (c *Classifier) searchCaller(loc models.Location, prefixes []models.PrefixInfo, number string, onlyType int64) (models.DestinationMatch, models.PrefixInfo, bool) {
	queries := make([]destination.Query, 0, len(prefixes))
	owners := make([]models.PrefixInfo, 0, len(prefixes))
	for _, p := range prefixes {
		if onlyType != 0 && p.TelephonyTypeID != onlyType {
			continue
		}
		if !models.IsExternalType(p.TelephonyTypeID) {
			continue
		}
		stripped := true
		rest := len(number)
		if p.Code != "" && strings.HasPrefix(number, p.Code) {
			stripped = false
			rest -= len(p.Code)
		}
		if p.MaxLength > 0 && rest > p.MaxLength {
			continue
		}
		queries = append(queries, destination.QueryFor(p, number, stripped, loc.IndicatorID, loc.CountryID))
		owners = append(owners, p)
	}

	res, ok := c.matcher.Best(queries)
	if !ok {
		return models.DestinationMatch{}, models.PrefixInfo{}, false
	}
	return res.Match, owners[res.Index], true
}
