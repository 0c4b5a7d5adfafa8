package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/rating"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/refdata"
)

// RatingStatsProvider exposes the rating engine counters.
type RatingStatsProvider interface {
	Snapshot() rating.Snapshot
}

// PrefixCacheStatsProvider exposes the prefix cache counters.
type PrefixCacheStatsProvider interface {
	Stats() refdata.CacheStats
}

// QuarantineCounter returns stored quarantined calls grouped by kind.
type QuarantineCounter interface {
	CountByKind(ctx context.Context) (map[models.QuarantineKind]int64, error)
}

// ReferenceSizer summarizes the loaded reference snapshot as row counts per
// table.
type ReferenceSizer interface {
	Stats() map[string]int
}

// quarantineKinds are reported even when their count is zero.
var quarantineKinds = []models.QuarantineKind{
	models.QuarantineSelfCall,
	models.QuarantineIgnoredCall,
	models.QuarantineProcessingError,
	models.QuarantineUnknownLocation,
	models.QuarantineInvalidRecord,
}

// Collector is a prometheus.Collector that gathers rating metrics at scrape time.
type Collector struct {
	rating      RatingStatsProvider
	cache       PrefixCacheStatsProvider
	quarantines QuarantineCounter
	reference   ReferenceSizer
	startTime   time.Time

	// Metric descriptors.
	ratedDesc         *prometheus.Desc
	quarantinedDesc   *prometheus.Desc
	storedDesc        *prometheus.Desc
	cacheHitsDesc     *prometheus.Desc
	cacheReloadsDesc  *prometheus.Desc
	cacheFailuresDesc *prometheus.Desc
	referenceRowsDesc *prometheus.Desc
	uptimeDesc        *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if unavailable.
func NewCollector(
	ratingStats RatingStatsProvider,
	cache PrefixCacheStatsProvider,
	quarantines QuarantineCounter,
	reference ReferenceSizer,
	startTime time.Time,
) *Collector {
	return &Collector{
		rating:      ratingStats,
		cache:       cache,
		quarantines: quarantines,
		reference:   reference,
		startTime:   startTime,

		ratedDesc: prometheus.NewDesc(
			"telrate_records_rated_total",
			"Records rated, by direction and telephony type",
			[]string{"direction", "telephony_type"}, nil,
		),
		quarantinedDesc: prometheus.NewDesc(
			"telrate_records_quarantined_total",
			"Records quarantined since start, by kind",
			[]string{"kind"}, nil,
		),
		storedDesc: prometheus.NewDesc(
			"telrate_quarantined_calls_stored",
			"Quarantined calls stored in the database, by kind",
			[]string{"kind"}, nil,
		),
		cacheHitsDesc: prometheus.NewDesc(
			"telrate_prefix_cache_hits_total",
			"Prefix lookups served from a fresh cache snapshot",
			nil, nil,
		),
		cacheReloadsDesc: prometheus.NewDesc(
			"telrate_prefix_cache_reloads_total",
			"Prefix list reloads from the reference database",
			nil, nil,
		),
		cacheFailuresDesc: prometheus.NewDesc(
			"telrate_prefix_cache_reload_failures_total",
			"Failed prefix list reloads",
			nil, nil,
		),
		referenceRowsDesc: prometheus.NewDesc(
			"telrate_reference_rows",
			"Rows in the loaded reference snapshot, by table",
			[]string{"table"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"telrate_uptime_seconds",
			"Seconds since the process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ratedDesc
	ch <- c.quarantinedDesc
	ch <- c.storedDesc
	ch <- c.cacheHitsDesc
	ch <- c.cacheReloadsDesc
	ch <- c.cacheFailuresDesc
	ch <- c.referenceRowsDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Rating counters.
	if c.rating != nil {
		snap := c.rating.Snapshot()
		for _, r := range snap.Rated {
			ch <- prometheus.MustNewConstMetric(
				c.ratedDesc, prometheus.CounterValue,
				float64(r.Count), r.Direction, r.Type,
			)
		}
		for _, kind := range quarantineKinds {
			ch <- prometheus.MustNewConstMetric(
				c.quarantinedDesc, prometheus.CounterValue,
				float64(snap.Quarantined[kind]), string(kind),
			)
		}
	}

	// Stored quarantines.
	if c.quarantines != nil {
		counts, err := c.quarantines.CountByKind(ctx)
		if err != nil {
			slog.Error("metrics: failed to count quarantined calls", "error", err)
		} else {
			for _, kind := range quarantineKinds {
				ch <- prometheus.MustNewConstMetric(
					c.storedDesc, prometheus.GaugeValue,
					float64(counts[kind]), string(kind),
				)
			}
		}
	}

	// Prefix cache.
	if c.cache != nil {
		st := c.cache.Stats()
		ch <- prometheus.MustNewConstMetric(c.cacheHitsDesc, prometheus.CounterValue, float64(st.Hits))
		ch <- prometheus.MustNewConstMetric(c.cacheReloadsDesc, prometheus.CounterValue, float64(st.Reloads))
		ch <- prometheus.MustNewConstMetric(c.cacheFailuresDesc, prometheus.CounterValue, float64(st.ReloadFailures))
	}

	// Reference snapshot size.
	if c.reference != nil {
		for table, n := range c.reference.Stats() {
			ch <- prometheus.MustNewConstMetric(
				c.referenceRowsDesc, prometheus.GaugeValue,
				float64(n), table,
			)
		}
	}

	// Uptime.
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
