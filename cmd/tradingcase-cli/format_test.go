package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tradingcase/internal/domain"
)

func TestMoneyGroupsThousands(t *testing.T) {
	if got := money(100000); got != "100,000.00" {
		t.Errorf("money(100000) = %q, want 100,000.00", got)
	}
	if got := pct(-3.14159); got != "-3.14%" {
		t.Errorf("pct(-3.14159) = %q, want -3.14%%", got)
	}
}

func TestPrintRun(t *testing.T) {
	run := &domain.Run{
		ID: "abc", Symbol: "AAPL", StartDate: "2023-01-01", EndDate: "2023-12-31",
		FastPeriod: 10, SlowPeriod: 30,
		Report: domain.Report{
			Strategy: "MovingAverageCrossover", InitialCash: 100000, FinalCash: 104250.5,
			ProfitLoss: 4250.5, ProfitLossPercent: 4.2505, TotalTrades: 2, WinningTrades: 1, LosingTrades: 1,
			OpenPosition: &domain.Position{Size: 10, EntryPrice: 150, OpenedAt: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	var buf bytes.Buffer
	printRun(&buf, run)
	out := buf.String()

	for _, want := range []string{"104,250.50", "4.25%", "won 1, lost 1", "since 2023-11-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
