package marketdata

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradingcase/internal/config"
	"tradingcase/internal/domain"
	"tradingcase/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// SyntheticSource
// ---------------------------------------------------------------------------

func TestSyntheticDeterministic(t *testing.T) {
	src := NewSyntheticSource()
	ctx := context.Background()

	a, err := src.Bars(ctx, "aapl", day(2023, 1, 1), day(2023, 12, 31))
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	b, err := src.Bars(ctx, "AAPL", day(2023, 1, 1), day(2023, 12, 31))
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("two identical requests returned different bars")
	}
	if a[0].Close != 150 {
		t.Errorf("first close = %v, want AAPL base price 150", a[0].Close)
	}
	if a[0].Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", a[0].Symbol)
	}
}

func TestSyntheticBusinessDaysOnly(t *testing.T) {
	// 2024-01-01 is a Monday; two full weeks.
	bars, err := NewSyntheticSource().Bars(context.Background(), "XYZ", day(2024, 1, 1), day(2024, 1, 14))
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if len(bars) != 10 {
		t.Fatalf("got %d bars, want 10", len(bars))
	}
	if bars[0].Close != defaultBasePrice {
		t.Errorf("first close = %v, want default base price %v", bars[0].Close, defaultBasePrice)
	}
	for i, b := range bars {
		if wd := b.Timestamp.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("bar %d falls on %s", i, wd)
		}
	}
	if err := domain.ValidateSeries(bars); err != nil {
		t.Errorf("generated series is invalid: %v", err)
	}
}

func TestSyntheticOHLCConsistent(t *testing.T) {
	bars, err := NewSyntheticSource().Bars(context.Background(), "TSLA", day(2020, 1, 1), day(2023, 12, 31))
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	for i, b := range bars {
		if b.High < b.Open || b.High < b.Close {
			t.Fatalf("bar %d: high %v below open %v or close %v", i, b.High, b.Open, b.Close)
		}
		if b.Low > b.Open || b.Low > b.Close {
			t.Fatalf("bar %d: low %v above open %v or close %v", i, b.Low, b.Open, b.Close)
		}
		if b.Close < syntheticFloor {
			t.Fatalf("bar %d: close %v below floor", i, b.Close)
		}
		if b.Volume < syntheticMinVolume || b.Volume >= syntheticMaxVolume {
			t.Fatalf("bar %d: volume %d out of range", i, b.Volume)
		}
	}
}

func TestSyntheticEmptyRange(t *testing.T) {
	src := NewSyntheticSource()
	// Saturday and Sunday.
	_, err := src.Bars(context.Background(), "AAPL", day(2024, 1, 6), day(2024, 1, 7))
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("weekend range: got %v, want ErrInsufficientData", err)
	}
	_, err = src.Bars(context.Background(), "  ", day(2024, 1, 1), day(2024, 2, 1))
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("blank symbol: got %v, want ErrInvalidConfiguration", err)
	}
}

func TestTrend(t *testing.T) {
	if got := trend(0, 5); got != syntheticTrendFrom {
		t.Errorf("trend(0, 5) = %v, want %v", got, syntheticTrendFrom)
	}
	if got := trend(4, 5); got < syntheticTrendTo-1e-12 || got > syntheticTrendTo+1e-12 {
		t.Errorf("trend(4, 5) = %v, want %v", got, syntheticTrendTo)
	}
	if got := trend(0, 1); got != syntheticTrendFrom {
		t.Errorf("trend(0, 1) = %v, want %v", got, syntheticTrendFrom)
	}
}

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeSource struct {
	name  string
	bars  []domain.Bar
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Bars(_ context.Context, _ string, _, _ time.Time) ([]domain.Bar, error) {
	f.calls++
	return f.bars, f.err
}

func fixedBars(sym string, closes ...float64) []domain.Bar {
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{
			Symbol: sym, Timestamp: day(2024, 1, 2).AddDate(0, 0, i),
			Open: c, High: c, Low: c, Close: c, Volume: 100,
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// FallbackSource
// ---------------------------------------------------------------------------

func TestFallbackSource(t *testing.T) {
	ctx := context.Background()
	want := fixedBars("AAPL", 1, 2, 3)

	primary := &fakeSource{name: "p", err: errors.New("boom")}
	secondary := &fakeSource{name: "s", bars: want}
	fs := &FallbackSource{Primary: primary, Fallback: secondary}

	got, err := fs.Bars(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if len(got) != 3 || secondary.calls != 1 {
		t.Errorf("primary error: got %d bars, fallback calls %d; want 3 and 1", len(got), secondary.calls)
	}

	primary.err = nil
	primary.bars = nil
	if _, err := fs.Bars(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31)); err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if secondary.calls != 2 {
		t.Errorf("empty primary: fallback calls = %d, want 2", secondary.calls)
	}

	primary.bars = fixedBars("AAPL", 9)
	got, _ = fs.Bars(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	if len(got) != 1 || secondary.calls != 2 {
		t.Errorf("healthy primary: got %d bars, fallback calls %d; want 1 and 2", len(got), secondary.calls)
	}

	primary.bars, primary.err = nil, context.Canceled
	if _, err := fs.Bars(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31)); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled primary: got %v, want context.Canceled", err)
	}

	if fs.Name() != "p>s" {
		t.Errorf("Name() = %q, want p>s", fs.Name())
	}
}

// ---------------------------------------------------------------------------
// CachedSource
// ---------------------------------------------------------------------------

func TestCachedSourceServesCoveredRange(t *testing.T) {
	ctx := context.Background()
	inner := &fakeSource{name: "remote", bars: fixedBars("AAPL", 10, 11, 12)}
	cs := NewCachedSource(inner, store.NewParquetStore(t.TempDir()), nil)
	cs.now = func() time.Time { return day(2025, 1, 1) }

	start, end := day(2024, 1, 2), day(2024, 1, 4)
	first, err := cs.Bars(ctx, "aapl", start, end)
	if err != nil {
		t.Fatalf("first Bars: %v", err)
	}
	second, err := cs.Bars(ctx, "AAPL", start, end)
	if err != nil {
		t.Fatalf("second Bars: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if len(second) != len(first) || second[2].Close != 12 {
		t.Errorf("cached bars = %+v, want the fetched ones", second)
	}
	if cs.Name() != "cached-remote" {
		t.Errorf("Name() = %q", cs.Name())
	}
}

func TestCachedSourceSkipsIncompleteDays(t *testing.T) {
	ctx := context.Background()
	inner := &fakeSource{name: "remote", bars: fixedBars("AAPL", 10, 11, 12)}
	cs := NewCachedSource(inner, store.NewParquetStore(t.TempDir()), nil)
	// The range ends today, so it is never marked as covered.
	cs.now = func() time.Time { return day(2024, 1, 2) }

	for i := 0; i < 2; i++ {
		if _, err := cs.Bars(ctx, "AAPL", day(2024, 1, 2), day(2024, 1, 4)); err != nil {
			t.Fatalf("Bars: %v", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

// ---------------------------------------------------------------------------
// AlpacaSource
// ---------------------------------------------------------------------------

type fakeBarsClient struct {
	bars     []alpacamd.Bar
	failures int
	calls    int
	lastSym  string
	lastReq  alpacamd.GetBarsRequest
}

func (f *fakeBarsClient) GetBars(symbol string, req alpacamd.GetBarsRequest) ([]alpacamd.Bar, error) {
	f.calls++
	f.lastSym, f.lastReq = symbol, req
	if f.calls <= f.failures {
		return nil, errors.New("503 service unavailable")
	}
	return f.bars, nil
}

func TestAlpacaSourceConvertsBars(t *testing.T) {
	client := &fakeBarsClient{
		failures: 1,
		bars: []alpacamd.Bar{
			{Timestamp: time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC), Open: 2, High: 3, Low: 1, Close: 2.5, Volume: 2000},
			{Timestamp: time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 1000},
		},
	}
	src := newAlpacaSource(client, "", 0, 3)
	src.retryDelay = time.Millisecond

	bars, err := src.Bars(context.Background(), "msft", day(2024, 1, 1), day(2024, 1, 3))
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("client calls = %d, want 2 (one retry)", client.calls)
	}
	if client.lastSym != "MSFT" {
		t.Errorf("requested symbol %q, want MSFT", client.lastSym)
	}
	if !client.lastReq.End.After(day(2024, 1, 3)) {
		t.Errorf("request end %v does not include the last day", client.lastReq.End)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if !bars[0].Timestamp.Equal(day(2024, 1, 2)) || bars[0].Close != 1.5 || bars[0].Volume != 1000 {
		t.Errorf("first bar = %+v, want 2024-01-02 close 1.5 volume 1000", bars[0])
	}
	if bars[1].Symbol != "MSFT" {
		t.Errorf("symbol = %q, want MSFT", bars[1].Symbol)
	}
}

func TestAlpacaSourceGivesUp(t *testing.T) {
	client := &fakeBarsClient{failures: 10}
	src := newAlpacaSource(client, "sip", 0, 2)
	src.retryDelay = time.Millisecond

	if _, err := src.Bars(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 3)); err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if client.calls != 2 {
		t.Errorf("client calls = %d, want 2", client.calls)
	}
}

// ---------------------------------------------------------------------------
// NewSource
// ---------------------------------------------------------------------------

func TestNewSource(t *testing.T) {
	cfg := config.Default()

	src, err := NewSource(cfg, nil, nil)
	if err != nil {
		t.Fatalf("auto without credentials: %v", err)
	}
	if src.Name() != "synthetic" {
		t.Errorf("auto without credentials = %q, want synthetic", src.Name())
	}

	cfg.Alpaca.APIKey, cfg.Alpaca.APISecret = "key", "secret"
	src, err = NewSource(cfg, store.NewParquetStore(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("auto with credentials: %v", err)
	}
	if src.Name() != "cached-alpaca>synthetic" {
		t.Errorf("auto with credentials = %q, want cached-alpaca>synthetic", src.Name())
	}

	cfg.MarketData.Source = "alpaca"
	cfg.MarketData.Cache = false
	src, err = NewSource(cfg, nil, nil)
	if err != nil || src.Name() != "alpaca" {
		t.Errorf("alpaca: got %v, %v", src, err)
	}

	cfg.Alpaca.APIKey = ""
	if _, err := NewSource(cfg, nil, nil); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("alpaca without credentials: got %v, want ErrInvalidConfiguration", err)
	}

	cfg.MarketData.Source = "bloomberg"
	if _, err := NewSource(cfg, nil, nil); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("unknown source: got %v, want ErrInvalidConfiguration", err)
	}
}
