package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVProvider_LoadsBars(t *testing.T) {
	path := writeCSV(t, "bars.csv", `timestamp,open,high,low,close,volume
2024-01-02 00:00:00,100,101,99,100.5,1500
2024-01-03 00:00:00,100.5,103,100,102,1800
2024-01-04 00:00:00,102,102.5,101,101.5,900
`)

	provider := NewCSVProvider(4)
	bars, err := provider.Load(path)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 1800.0, bars[1].Volume)
}

func TestCSVProvider_HeaderCaseInsensitive(t *testing.T) {
	path := writeCSV(t, "bars.csv", `Timestamp,Open,High,Low,Close,Volume
2024-01-02 00:00:00,100,101,99,100.5,1500
2024-01-03 00:00:00,100.5,103,100,102,1800
`)

	provider := NewCSVProvider(4)
	bars, err := provider.Load(path)
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestCSVProvider_UnixMillisTimestamps(t *testing.T) {
	path := writeCSV(t, "bars.csv", `timestamp,open,high,low,close,volume
1704153600000,100,101,99,100.5,1500
1704240000000,100.5,103,100,102,1800
`)

	provider := NewCSVProvider(4)
	bars, err := provider.Load(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
}

func TestCSVProvider_SkipsMalformedRows(t *testing.T) {
	path := writeCSV(t, "bars.csv", `timestamp,open,high,low,close,volume
2024-01-02 00:00:00,100,101,99,100.5,1500
2024-01-03 00:00:00,-5,103,100,102,1800
2024-01-04 00:00:00,102,99,101,101.5,900
2024-01-05 00:00:00,102,102.5,101,101.5,900
`)

	provider := NewCSVProvider(4)
	bars, err := provider.Load(path)
	require.NoError(t, err)

	// negative open and high-below-low rows are dropped
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), bars[1].Timestamp)
}

func TestCSVProvider_CacheHits(t *testing.T) {
	path := writeCSV(t, "bars.csv", `timestamp,open,high,low,close,volume
2024-01-02 00:00:00,100,101,99,100.5,1500
2024-01-03 00:00:00,100.5,103,100,102,1800
`)

	provider := NewCSVProvider(4)
	_, err := provider.Load(path)
	require.NoError(t, err)
	_, err = provider.Load(path)
	require.NoError(t, err)

	stats := provider.GetCacheStats()
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.Equal(t, 1, stats.CacheSize)

	provider.ClearCache()
	assert.Equal(t, 0, provider.GetCacheStats().CacheSize)
}

func TestCSVProvider_MissingFile(t *testing.T) {
	provider := NewCSVProvider(4)
	_, err := provider.Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestFilterTrailingPeriod(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, 10)
	for i := range bars {
		bars[i] = types.OHLCV{
			Open: 100, High: 101, Low: 99, Close: 100,
			Timestamp: start.AddDate(0, 0, i),
		}
	}

	filtered := FilterTrailingPeriod(bars, 3)
	require.Len(t, filtered, 3)
	assert.Equal(t, start.AddDate(0, 0, 7), filtered[0].Timestamp)

	// zero days disables the filter
	assert.Len(t, FilterTrailingPeriod(bars, 0), 10)
	// a window wider than the series keeps everything
	assert.Len(t, FilterTrailingPeriod(bars, 30), 10)
}
