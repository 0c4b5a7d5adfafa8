package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/rating"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/refdata"
)

type staticRating rating.Snapshot

func (s staticRating) Snapshot() rating.Snapshot { return rating.Snapshot(s) }

type staticCache refdata.CacheStats

func (s staticCache) Stats() refdata.CacheStats { return refdata.CacheStats(s) }

type staticQuarantines struct {
	counts map[models.QuarantineKind]int64
	err    error
}

func (s staticQuarantines) CountByKind(context.Context) (map[models.QuarantineKind]int64, error) {
	return s.counts, s.err
}

type staticReference map[string]int

func (s staticReference) Stats() map[string]int { return s }

func newTestCollector(q QuarantineCounter) *Collector {
	return NewCollector(
		staticRating{
			Rated: []rating.RatedCount{
				{RatedKey: rating.RatedKey{Direction: "outbound", Type: "NATIONAL"}, Count: 3},
				{RatedKey: rating.RatedKey{Direction: rating.DirectionInternal, Type: "INTERNAL_SIMPLE"}, Count: 1},
			},
			Quarantined: map[models.QuarantineKind]uint64{models.QuarantineSelfCall: 2},
		},
		staticCache{Hits: 10, Reloads: 2, ReloadFailures: 1},
		q,
		staticReference{"locations": 1, "trunks": 2},
		time.Now().Add(-time.Minute),
	)
}

func TestCollectorValues(t *testing.T) {
	c := newTestCollector(staticQuarantines{counts: map[models.QuarantineKind]int64{models.QuarantineSelfCall: 5}})

	expected := `
# HELP telrate_records_rated_total Records rated, by direction and telephony type
# TYPE telrate_records_rated_total counter
telrate_records_rated_total{direction="internal",telephony_type="INTERNAL_SIMPLE"} 1
telrate_records_rated_total{direction="outbound",telephony_type="NATIONAL"} 3
# HELP telrate_records_quarantined_total Records quarantined since start, by kind
# TYPE telrate_records_quarantined_total counter
telrate_records_quarantined_total{kind="IGNORED_CALL"} 0
telrate_records_quarantined_total{kind="INTERNAL_SELF_CALL"} 2
telrate_records_quarantined_total{kind="INVALID_RECORD"} 0
telrate_records_quarantined_total{kind="PROCESSING_ERROR"} 0
telrate_records_quarantined_total{kind="UNKNOWN_LOCATION"} 0
# HELP telrate_quarantined_calls_stored Quarantined calls stored in the database, by kind
# TYPE telrate_quarantined_calls_stored gauge
telrate_quarantined_calls_stored{kind="IGNORED_CALL"} 0
telrate_quarantined_calls_stored{kind="INTERNAL_SELF_CALL"} 5
telrate_quarantined_calls_stored{kind="INVALID_RECORD"} 0
telrate_quarantined_calls_stored{kind="PROCESSING_ERROR"} 0
telrate_quarantined_calls_stored{kind="UNKNOWN_LOCATION"} 0
# HELP telrate_prefix_cache_hits_total Prefix lookups served from a fresh cache snapshot
# TYPE telrate_prefix_cache_hits_total counter
telrate_prefix_cache_hits_total 10
# HELP telrate_prefix_cache_reloads_total Prefix list reloads from the reference database
# TYPE telrate_prefix_cache_reloads_total counter
telrate_prefix_cache_reloads_total 2
# HELP telrate_prefix_cache_reload_failures_total Failed prefix list reloads
# TYPE telrate_prefix_cache_reload_failures_total counter
telrate_prefix_cache_reload_failures_total 1
# HELP telrate_reference_rows Rows in the loaded reference snapshot, by table
# TYPE telrate_reference_rows gauge
telrate_reference_rows{table="locations"} 1
telrate_reference_rows{table="trunks"} 2
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"telrate_records_rated_total",
		"telrate_records_quarantined_total",
		"telrate_quarantined_calls_stored",
		"telrate_prefix_cache_hits_total",
		"telrate_prefix_cache_reloads_total",
		"telrate_prefix_cache_reload_failures_total",
		"telrate_reference_rows",
	)
	if err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestCollectorUptime(t *testing.T) {
	c := NewCollector(nil, nil, nil, nil, time.Now().Add(-time.Hour))

	if n := testutil.CollectAndCount(c); n != 1 {
		t.Fatalf("expected only the uptime metric, got %d", n)
	}
	if v := testutil.ToFloat64(c); v < 3600 {
		t.Errorf("uptime = %v, want at least 3600", v)
	}
}

func TestCollectorQuarantineCountFailure(t *testing.T) {
	c := newTestCollector(staticQuarantines{err: errors.New("database is locked")})

	if n := testutil.CollectAndCount(c, "telrate_quarantined_calls_stored"); n != 0 {
		t.Errorf("expected stored quarantines to be skipped, got %d series", n)
	}
	if n := testutil.CollectAndCount(c, "telrate_records_quarantined_total"); n != 5 {
		t.Errorf("expected 5 quarantine kinds, got %d", n)
	}
}

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(newTestCollector(staticQuarantines{})); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	if len(families) != 8 {
		t.Errorf("gathered %d metric families, want 8", len(families))
	}
}
