// Package classify decides what a call record is: its direction, whether it
// stayed inside the PBX, who it belongs to and, for calls that do not need
// tariff resolution, what telephony type it has.
package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/destination"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/history"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/numbers"
)

// DefaultMaxRewriteHops bounds how many times a PBX outbound rewrite may feed
// back into outbound processing.
const DefaultMaxRewriteHops = 2

// Step names carried by quarantines raised here.
const (
	StepPrepare  = "prepare"
	StepInternal = "internal"
	StepInbound  = "inbound"
	StepOutbound = "outbound"
)

// Reference is the reference data the classifier reads.
type Reference interface {
	destination.Reference

	Location(id int64) (models.Location, bool)
	Indicator(id int64) (models.Indicator, bool)
	OperatorName(id int64) string
	TypeName(id int64) string
	ExtensionLimits(locationID int64) models.ExtensionLimits
	Employees() *history.Index[models.Employee]
	ExtensionRanges(locationID int64) *history.Index[models.ExtensionRange]
	RangeGroups(locationID int64) []int64
	PbxRules(locationID int64) []models.PbxRule
	Transforms(locationID int64) []models.NumberTransform
	SpecialService(number string, indicatorID, countryID int64) (models.SpecialService, bool)
	IsLocalExtended(originIndicatorID int64, ndc string) bool
}

// PrefixSource supplies the operator prefixes of a country.
type PrefixSource interface {
	Prefixes(ctx context.Context, countryID int64) ([]models.PrefixInfo, error)
}

// Path tells the caller how the record is priced.
type Path uint8

const (
	// PathOutbound records need tariff resolution of Decision.Number.
	PathOutbound Path = iota
	// PathInbound records are priced at zero on the caller's origin.
	PathInbound
	// PathInternal records are priced at the internal type's fixed rate.
	PathInternal
	// PathSpecialService records are priced at the service's fixed value.
	PathSpecialService
)

func (p Path) String() string {
	switch p {
	case PathOutbound:
		return "outbound"
	case PathInbound:
		return "inbound"
	case PathInternal:
		return "internal"
	case PathSpecialService:
		return "special-service"
	default:
		return "unknown"
	}
}

// Decision is the outcome of classification.
type Decision struct {
	Path Path
	// Number is the destination to tariff on the outbound path, after
	// transforms and PBX rewrites.
	Number string
	// TypeHint is a telephony type suggested by a number transform.
	TypeHint int64
	// Special is set on PathSpecialService.
	Special models.SpecialService
}

// Classifier runs the classification procedure. It keeps no per-record state
// and is safe for concurrent use.
type Classifier struct {
	ref      Reference
	prefixes PrefixSource
	matcher  *destination.Matcher
	maxHops  int
	logger   *slog.Logger
}

// New creates a classifier. A non-positive maxHops uses
// DefaultMaxRewriteHops.
func New(ref Reference, prefixes PrefixSource, maxHops int, logger *slog.Logger) *Classifier {
	if maxHops <= 0 {
		maxHops = DefaultMaxRewriteHops
	}
	return &Classifier{
		ref:      ref,
		prefixes: prefixes,
		matcher:  destination.NewMatcher(ref),
		maxHops:  maxHops,
		logger:   logger.With("subsystem", "classify"),
	}
}

// Classify fills direction, internality, transfer and assignment causes of
// rec for location loc, and the telephony type for paths that do not need
// tariff resolution. A *models.QuarantineError is returned when the record
// cannot be processed.
func (c *Classifier) Classify(ctx context.Context, loc models.Location, rec *models.CallRecord) (Decision, error) {
	rec.RefreshDerived()
	if rec.CallingNumber == "" && rec.EffectiveDestination == "" {
		return Decision{}, models.Quarantine(models.QuarantineInvalidRecord, StepPrepare, "record has no party numbers")
	}

	prepareTransfer(loc, rec)

	originalDirection := rec.Direction
	if !rec.InternalMarked {
		rec.Internal = c.isInternal(loc, rec)
	}
	if rec.Internal && rec.Direction == models.DirectionInbound {
		numbers.SwapFull(rec, true)
		rec.Direction = models.DirectionOutbound
	}

	c.logger.Debug("classifying record",
		"record_id", rec.ID,
		"location_id", loc.ID,
		"internal", rec.Internal,
		"direction", rec.Direction.String(),
		"transfer_cause", rec.TransferCause.String(),
	)

	switch {
	case rec.Internal:
		return c.internal(loc, rec, originalDirection)
	case rec.Direction == models.DirectionInbound:
		return c.inbound(ctx, loc, rec)
	default:
		return c.outbound(loc, rec)
	}
}

// isInternal reports whether both parties look like PBX extensions.
func (c *Classifier) isInternal(loc models.Location, rec *models.CallRecord) bool {
	limits := c.ref.ExtensionLimits(loc.ID)

	calling, _ := numbers.Clean(rec.CallingNumber, nil, false)
	if !numbers.IsPossibleExtension(calling, limits) {
		return false
	}

	dest := c.internalDestination(loc, rec)
	if dest == "" {
		return false
	}
	if len(dest) == 1 && numbers.IsDigits(dest) {
		return true
	}
	if numbers.IsPossibleExtension(dest, limits) {
		return true
	}
	if numbers.IsDigits(dest) && dest[0] != '0' {
		_, ok := c.rangeFor(loc.ID, dest, rec.StartTime)
		return ok
	}
	return false
}

// internalDestination is the effective destination after the location's
// internal PBX rule and cleanup.
func (c *Classifier) internalDestination(loc models.Location, rec *models.CallRecord) string {
	dest := rec.EffectiveDestination
	if rewritten, ok := numbers.ApplyPbxRules(dest, c.ref.PbxRules(loc.ID), models.RuleInternal); ok {
		dest = rewritten
	}
	dest, _ = numbers.Clean(dest, nil, false)
	return dest
}

// rangeFor returns the extension range of a location covering ext at ts.
func (c *Classifier) rangeFor(locationID int64, ext string, ts time.Time) (models.ExtensionRange, bool) {
	n, ok := parseExtension(ext)
	if !ok {
		return models.ExtensionRange{}, false
	}
	idx := c.ref.ExtensionRanges(locationID)
	for _, g := range c.ref.RangeGroups(locationID) {
		tl, ok := idx.Timeline(g)
		if !ok {
			continue
		}
		if r, ok := tl.FindMatch(ts); ok && r.Contains(n) {
			return r, true
		}
	}
	return models.ExtensionRange{}, false
}

func (c *Classifier) describeIndicator(id int64) string {
	ind, ok := c.ref.Indicator(id)
	if !ok {
		return ""
	}
	return destination.Describe(ind)
}
