package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradingcase/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*ParquetStore)(nil)
var _ CoverageStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore and CoverageStore using Parquet files on
// disk.
type ParquetStore struct {
	DataDir string

	mu sync.Mutex // serialises read-merge-write cycles
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// CoverageRecord is one fetched date range, both ends inclusive.
type CoverageRecord struct {
	Start int64 `parquet:"start,timestamp(millisecond)"`
	End   int64 `parquet:"end,timestamp(millisecond)"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data to Parquet files organized by symbol and year.
// Each symbol+year combination produces a separate file at:
//
//	<DataDir>/daily/<SYMBOL>/<YYYY>.parquet
//
// Bars already on disk are merged by timestamp, new values winning.
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		if b.Symbol == "" {
			return fmt.Errorf("writing bars: bar at %s has no symbol", b.Timestamp.Format("2006-01-02"))
		}
		sym := strings.ToUpper(b.Symbol)
		k := key{symbol: sym, year: b.Timestamp.Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:    sym,
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, records := range groups {
		path := s.barPath(k.symbol, k.year)

		// Read existing records to merge.
		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data from Parquet files for the given symbol and time
// range. Missing years are skipped; the result is sorted by timestamp.
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	sym := strings.ToUpper(symbol)
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[BarRecord](s.barPath(sym, year))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading bars for %s/%d: %w", sym, year, err)
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:    r.Symbol,
				Timestamp: ts,
				Open:      r.Open,
				High:      r.High,
				Low:       r.Low,
				Close:     r.Close,
				Volume:    r.Volume,
			})
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// ListSymbols lists all symbols that have bar data.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "daily"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// CoverageStore implementation
// ---------------------------------------------------------------------------

// MarkCovered records [start, end] as fetched for symbol, coalescing it with
// any overlapping or adjacent ranges already on disk.
func (s *ParquetStore) MarkCovered(_ context.Context, symbol string, start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("marking coverage for %s: end before start", symbol)
	}
	sym := strings.ToUpper(symbol)
	path := s.coveragePath(sym)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := readParquetFile[CoverageRecord](path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading coverage for %s: %w", sym, err)
	}
	merged := mergeCoverage(append(existing, CoverageRecord{
		Start: start.UnixMilli(),
		End:   end.UnixMilli(),
	}))
	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing coverage for %s: %w", sym, err)
	}
	return nil
}

// Covered reports whether [start, end] lies inside one recorded range.
func (s *ParquetStore) Covered(_ context.Context, symbol string, start, end time.Time) (bool, error) {
	records, err := readParquetFile[CoverageRecord](s.coveragePath(strings.ToUpper(symbol)))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	lo, hi := start.UnixMilli(), end.UnixMilli()
	for _, r := range records {
		if r.Start <= lo && hi <= r.End {
			return true, nil
		}
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "daily", strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

// coveragePath returns the filesystem path of a symbol's coverage file.
// Layout: <dataDir>/coverage/<SYMBOL>.parquet
func (s *ParquetStore) coveragePath(symbol string) string {
	return filepath.Join(s.DataDir, "coverage", strings.ToUpper(symbol)+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// new records over existing ones.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// mergeCoverage sorts ranges and joins those that overlap or touch within a
// day.
func mergeCoverage(ranges []CoverageRecord) []CoverageRecord {
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	day := int64(24 * time.Hour / time.Millisecond)
	out := []CoverageRecord{ranges[0]}
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End+day {
			last.End = max(last.End, r.End)
			continue
		}
		out = append(out, r)
	}
	return out
}
