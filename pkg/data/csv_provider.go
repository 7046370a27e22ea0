package data

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

// Provider loads historical bar series for the simulator.
type Provider interface {
	Load(path string) ([]types.OHLCV, error)
}

// timestampFormats are tried in order; a bare integer is treated as unix
// milliseconds.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

// csvTime parses the venue-dependent timestamp column.
type csvTime struct {
	time.Time
}

func (t *csvTime) UnmarshalCSV(field string) error {
	field = strings.TrimSpace(field)
	if millis, err := strconv.ParseInt(field, 10, 64); err == nil {
		t.Time = time.UnixMilli(millis).UTC()
		return nil
	}
	for _, format := range timestampFormats {
		if parsed, err := time.Parse(format, field); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", field)
}

type csvRow struct {
	Timestamp csvTime `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

func init() {
	// exchange exports disagree on header casing
	gocsv.SetHeaderNormalizer(strings.ToLower)
}

// CSVProvider loads OHLCV series from CSV files with in-memory caching.
// Rows that fail basic OHLC sanity checks are skipped, matching how venue
// exports mix malformed rows into otherwise good files.
type CSVProvider struct {
	mu           sync.RWMutex
	cache        map[string][]types.OHLCV
	hitCount     int64
	missCount    int64
	maxCacheSize int
}

func NewCSVProvider(maxCacheSize int) *CSVProvider {
	if maxCacheSize <= 0 {
		maxCacheSize = 16
	}
	return &CSVProvider{
		cache:        make(map[string][]types.OHLCV),
		maxCacheSize: maxCacheSize,
	}
}

func (p *CSVProvider) Load(path string) ([]types.OHLCV, error) {
	p.mu.RLock()
	cached, ok := p.cache[path]
	p.mu.RUnlock()
	if ok {
		p.mu.Lock()
		p.hitCount++
		p.mu.Unlock()
		return cached, nil
	}

	bars, err := p.loadFromFile(path)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.missCount++
	if len(p.cache) >= p.maxCacheSize {
		// drop an arbitrary entry; map iteration order serves as pseudo-LRU
		for key := range p.cache {
			delete(p.cache, key)
			break
		}
	}
	p.cache[path] = bars
	return bars, nil
}

func (p *CSVProvider) loadFromFile(path string) ([]types.OHLCV, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	var rows []csvRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV %s: %w", path, err)
	}

	bars := make([]types.OHLCV, 0, len(rows))
	for _, row := range rows {
		if row.Open <= 0 || row.High <= 0 || row.Low <= 0 || row.Close <= 0 {
			continue
		}
		if row.High < row.Open || row.High < row.Close || row.High < row.Low {
			continue
		}
		if row.Low > row.Open || row.Low > row.Close {
			continue
		}
		bars = append(bars, types.OHLCV{
			Timestamp: row.Timestamp.Time,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("no valid bars in %s", path)
	}
	if err := types.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("bad bar series in %s: %w", path, err)
	}
	return bars, nil
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	HitCount  int64
	MissCount int64
	CacheSize int
}

func (p *CSVProvider) GetCacheStats() CacheStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return CacheStats{
		HitCount:  p.hitCount,
		MissCount: p.missCount,
		CacheSize: len(p.cache),
	}
}

func (p *CSVProvider) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string][]types.OHLCV)
	p.hitCount = 0
	p.missCount = 0
}

// FilterTrailingPeriod keeps only the bars inside the trailing window ending
// at the last bar. Zero or negative days returns the input unchanged.
func FilterTrailingPeriod(bars []types.OHLCV, days int) []types.OHLCV {
	if days <= 0 || len(bars) == 0 {
		return bars
	}
	cutoff := bars[len(bars)-1].Timestamp.AddDate(0, 0, -days)
	for i, bar := range bars {
		if bar.Timestamp.After(cutoff) {
			return bars[i:]
		}
	}
	return bars[len(bars)-1:]
}
