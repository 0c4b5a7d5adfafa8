package refdata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type countingLoader struct {
	calls    atomic.Int32
	fail     atomic.Bool
	delay    time.Duration
	prefixes []models.PrefixInfo
}

func (l *countingLoader) LoadPrefixes(_ context.Context, _ int64) ([]models.PrefixInfo, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.fail.Load() {
		return nil, errors.New("database unavailable")
	}
	return l.prefixes, nil
}

func TestPrefixCacheServesFreshSnapshot(t *testing.T) {
	loader := &countingLoader{prefixes: []models.PrefixInfo{
		{ID: 1, Code: "", TelephonyTypeID: models.TypeLocal},
		{ID: 2, Code: "09", TelephonyTypeID: models.TypeNational},
		{ID: 3, Code: "009", TelephonyTypeID: models.TypeInternational},
	}}
	cache := NewPrefixCache(loader, time.Minute, discard)

	got, err := cache.Prefixes(context.Background(), 57)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "009", got[0].Code)
	assert.Equal(t, "09", got[1].Code)
	assert.Equal(t, "", got[2].Code)

	_, err = cache.Prefixes(context.Background(), 57)
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load())

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Reloads)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestPrefixCacheReloadsAfterTTL(t *testing.T) {
	loader := &countingLoader{prefixes: []models.PrefixInfo{{ID: 1}}}
	cache := NewPrefixCache(loader, time.Minute, discard)

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	_, err := cache.Prefixes(context.Background(), 1)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = cache.Prefixes(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestPrefixCacheServesStaleOnFailure(t *testing.T) {
	loader := &countingLoader{prefixes: []models.PrefixInfo{{ID: 9}}}
	cache := NewPrefixCache(loader, time.Minute, discard)

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	_, err := cache.Prefixes(context.Background(), 1)
	require.NoError(t, err)

	loader.fail.Store(true)
	now = now.Add(time.Hour)
	got, err := cache.Prefixes(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].ID)
	assert.Equal(t, uint64(1), cache.Stats().ReloadFailures)

	_, err = cache.Prefixes(context.Background(), 2)
	assert.Error(t, err)
}

func TestPrefixCacheSingleReloadUnderConcurrency(t *testing.T) {
	loader := &countingLoader{prefixes: []models.PrefixInfo{{ID: 1}}, delay: 50 * time.Millisecond}
	cache := NewPrefixCache(loader, time.Minute, discard)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.Prefixes(context.Background(), 57)
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
}

type ctxLoader struct {
	err error
}

func (l *ctxLoader) LoadPrefixes(ctx context.Context, _ int64) ([]models.PrefixInfo, error) {
	l.err = ctx.Err()
	return []models.PrefixInfo{{ID: 1}}, l.err
}

func TestPrefixCacheReloadIgnoresCallerCancel(t *testing.T) {
	loader := &ctxLoader{}
	cache := NewPrefixCache(loader, time.Minute, discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := cache.Prefixes(ctx, 57)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, loader.err)
	assert.Zero(t, cache.Stats().ReloadFailures)
}

func TestPrefixCacheCountsFailedReloadOnce(t *testing.T) {
	loader := &countingLoader{delay: 50 * time.Millisecond}
	loader.fail.Store(true)
	cache := NewPrefixCache(loader, time.Minute, discard)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Prefixes(context.Background(), 57)
			assert.Error(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(loader.calls.Load()), cache.Stats().ReloadFailures)
	assert.Less(t, cache.Stats().ReloadFailures, uint64(20))
}

func TestPrefixCacheInvalidate(t *testing.T) {
	loader := &countingLoader{prefixes: []models.PrefixInfo{{ID: 1}}}
	cache := NewPrefixCache(loader, time.Hour, discard)

	_, _ = cache.Prefixes(context.Background(), 1)
	cache.Invalidate(1)
	_, _ = cache.Prefixes(context.Background(), 1)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestLimitsFromDigits(t *testing.T) {
	l := LimitsFromDigits(3, 4, nil)
	assert.Equal(t, int64(100), l.Min)
	assert.Equal(t, int64(9999), l.Max)
	assert.Equal(t, 4, l.MaxLength)
	assert.NotNil(t, l.Specials)
}

func TestDeriveLimits(t *testing.T) {
	employees := []models.Employee{
		{Extension: "101"},
		{Extension: "4500"},
		{Extension: "0123"},
		{Extension: "SALA*1"},
	}
	ranges := []models.ExtensionRange{{From: 20000, To: 20999}}

	l := DeriveLimits(employees, ranges)
	assert.Equal(t, int64(100), l.Min)
	assert.Equal(t, int64(99999), l.Max)
	assert.True(t, l.Specials["0123"])
	assert.True(t, l.Specials["SALA*1"])
	assert.False(t, l.Specials["101"])

	empty := DeriveLimits(nil, nil)
	assert.Equal(t, int64(100), empty.Min)
	assert.Equal(t, int64(99999), empty.Max)
}

func TestTablesSeriesCandidatesAndBands(t *testing.T) {
	tables := NewTables(Rows{
		Indicators: []models.Indicator{
			{ID: 1, TelephonyTypeID: models.TypeNational, CountryID: 57, City: "BOGOTA", Department: "CUNDINAMARCA"},
			{ID: 2, TelephonyTypeID: models.TypeNational, CountryID: 57, City: "MEDELLIN", Department: "ANTIOQUIA"},
		},
		Series: []models.Series{
			{ID: 10, IndicatorID: 1, NDC: 601, Initial: 2000000, Final: 2999999},
			{ID: 11, IndicatorID: 1, NDC: 601, Initial: 3000000, Final: 3999999},
			{ID: 12, IndicatorID: 2, NDC: 604, Initial: 0, Final: 9999999},
			{ID: 13, IndicatorID: 2, NDC: 6, Initial: 0, Final: 9},
		},
		Prefixes: []models.PrefixInfo{{ID: 5, CountryID: 57, TelephonyTypeID: models.TypeNational, Code: "09"}},
		Bands: []models.Band{
			{ID: 100, PrefixID: 5, OriginIndicatorID: 0, IndicatorIDs: []int64{1, 2}},
			{ID: 101, PrefixID: 5, OriginIndicatorID: 1, IndicatorIDs: []int64{2}},
		},
	})

	minLen, maxLen, ok := tables.NDCLengthRange(models.TypeNational, 57)
	require.True(t, ok)
	assert.Equal(t, 1, minLen)
	assert.Equal(t, 3, maxLen)

	ndc, ok := tables.DominantNDC(1)
	require.True(t, ok)
	assert.Equal(t, int64(601), ndc)

	got := tables.SeriesCandidates(models.TypeNational, 57, map[int64]bool{601: true, 604: true}, 0, false, 0)
	require.Len(t, got, 3)
	assert.Equal(t, int64(12), got[0].Series.ID)
	assert.Equal(t, int64(10), got[1].Series.ID)
	assert.Equal(t, int64(11), got[2].Series.ID)

	banded := tables.SeriesCandidates(models.TypeNational, 57, map[int64]bool{601: true, 604: true}, 5, true, 1)
	require.Len(t, banded, 3)
	assert.Equal(t, int64(12), banded[0].Series.ID)
	assert.Equal(t, int64(101), banded[0].BandID)
	assert.True(t, banded[0].BandOriginMatch)
	assert.Equal(t, int64(100), banded[1].BandID)
	assert.False(t, banded[1].BandOriginMatch)

	prefixes := tables.Prefixes(57)
	require.Len(t, prefixes, 1)
	assert.Equal(t, 2, prefixes[0].BandCount)
	assert.Equal(t, "NATIONAL", prefixes[0].TelephonyTypeName)
}

func TestTablesSpecialServiceScope(t *testing.T) {
	tables := NewTables(Rows{
		SpecialServices: []models.SpecialService{
			{ID: 1, Number: "123", CountryID: 57, IndicatorID: 0, Description: "national emergency"},
			{ID: 2, Number: "123", CountryID: 57, IndicatorID: 7, Description: "local emergency"},
		},
	})

	s, ok := tables.SpecialService("123", 7, 57)
	require.True(t, ok)
	assert.Equal(t, int64(2), s.ID)

	s, ok = tables.SpecialService("123", 8, 57)
	require.True(t, ok)
	assert.Equal(t, int64(1), s.ID)

	_, ok = tables.SpecialService("123", 7, 1)
	assert.False(t, ok)
}
