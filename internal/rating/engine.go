// Package rating is the boundary between callers and the engine: it runs the
// classifier and the tariff resolver over one record and turns every failure,
// panics included, into a quarantine.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/classify"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/tariff"
)

// Step names of the stages run here. Classification quarantines carry the
// classifier's own steps.
const (
	StepLocation = "location"
	StepClassify = "classify"
	StepTariff   = "tariff"
)

// ErrUnknownLocation is the cause of UNKNOWN_LOCATION quarantines.
var ErrUnknownLocation = errors.New("unknown location")

// Reference is the reference data the engine and its stages read.
type Reference interface {
	classify.Reference
	tariff.Reference
}

// Outcome is the result of rating one record: the record, priced in place,
// or the reason it was quarantined.
type Outcome struct {
	Record     *models.CallRecord
	Path       classify.Path
	Quarantine *models.QuarantineError
}

// Quarantined reports whether the record could not be rated.
func (o Outcome) Quarantined() bool {
	return o.Quarantine != nil
}

// Engine rates call records. It is safe for concurrent use.
type Engine struct {
	ref        Reference
	classifier *classify.Classifier
	resolver   *tariff.Resolver
	workers    int
	stats      *Stats
	logger     *slog.Logger
}

// Config tunes an Engine. Zero values use the defaults.
type Config struct {
	MaxRewriteHops int
	BatchWorkers   int
}

// DefaultBatchWorkers bounds RateBatch concurrency when Config leaves it unset.
const DefaultBatchWorkers = 8

// NewEngine creates an engine over ref, reading operator prefixes through
// prefixes.
func NewEngine(ref Reference, prefixes classify.PrefixSource, cfg Config, logger *slog.Logger) *Engine {
	workers := cfg.BatchWorkers
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	return &Engine{
		ref:        ref,
		classifier: classify.New(ref, prefixes, cfg.MaxRewriteHops, logger),
		resolver:   tariff.New(ref, prefixes, logger),
		workers:    workers,
		stats:      NewStats(),
		logger:     logger.With("subsystem", "rating"),
	}
}

// Stats returns the engine's counters.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// Rate classifies and prices rec for the location. It never returns an
// error: a record that cannot be rated comes back with a quarantine.
func (e *Engine) Rate(ctx context.Context, locationID int64, rec *models.CallRecord) (out Outcome) {
	out.Record = rec
	step := StepLocation

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while rating record",
				"location_id", locationID,
				"step", step,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			out.Quarantine = models.Quarantine(models.QuarantineProcessingError, step, fmt.Sprint(r))
		}
		if out.Quarantine != nil {
			e.logQuarantine(locationID, rec, out.Quarantine)
		}
		e.stats.Record(out)
	}()

	if rec == nil {
		out.Quarantine = models.Quarantine(models.QuarantineInvalidRecord, StepLocation, "nil record")
		return out
	}

	loc, ok := e.ref.Location(locationID)
	if !ok {
		out.Quarantine = models.Quarantine(models.QuarantineUnknownLocation, StepLocation,
			fmt.Sprintf("%v: %d", ErrUnknownLocation, locationID))
		return out
	}

	step = StepClassify
	decision, err := e.classifier.Classify(ctx, loc, rec)
	if err != nil {
		out.Quarantine = asQuarantine(err, step)
		return out
	}
	out.Path = decision.Path

	step = StepTariff
	switch decision.Path {
	case classify.PathOutbound:
		err = e.resolver.Resolve(ctx, loc, rec, decision.Number, decision.TypeHint)
	case classify.PathInbound:
		e.resolver.PriceInbound(rec)
	case classify.PathInternal:
		err = e.resolver.PriceInternal(ctx, loc, rec)
	case classify.PathSpecialService:
		e.resolver.PriceSpecialService(rec, decision.Special)
	default:
		err = fmt.Errorf("unhandled classification path %s", decision.Path)
	}
	if err != nil {
		out.Quarantine = asQuarantine(err, step)
		return out
	}

	e.logger.Debug("record rated",
		"record_id", rec.ID,
		"path", decision.Path.String(),
		"type", rec.TelephonyTypeName,
		"indicator_id", rec.IndicatorID,
		"amount", rec.BilledAmount.String(),
	)
	return out
}

// asQuarantine keeps a quarantine raised by a stage and wraps anything else
// as a processing error of step.
func asQuarantine(err error, step string) *models.QuarantineError {
	var q *models.QuarantineError
	if errors.As(err, &q) {
		return q
	}
	return models.Quarantine(models.QuarantineProcessingError, step, err.Error())
}

func (e *Engine) logQuarantine(locationID int64, rec *models.CallRecord, q *models.QuarantineError) {
	recordID := ""
	if rec != nil {
		recordID = rec.ID
	}
	e.logger.Info("record quarantined",
		"record_id", recordID,
		"location_id", locationID,
		"kind", string(q.Kind),
		"step", q.Step,
		"reason", q.Reason,
	)
}
