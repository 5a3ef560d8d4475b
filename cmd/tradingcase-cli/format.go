package main

import (
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tradingcase/internal/domain"
	"tradingcase/internal/strategy"
	"tradingcase/pkg/tradingcase"
)

var printer = message.NewPrinter(language.English)

func money(v float64) string { return printer.Sprintf("%.2f", v) }
func pct(v float64) string   { return printer.Sprintf("%.2f%%", v) }

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printRun(w io.Writer, run *domain.Run) {
	r := run.Report
	tw := newTable(w)
	printer.Fprintf(tw, "Run\t%s\n", run.ID)
	printer.Fprintf(tw, "Symbol\t%s (%s to %s, %d bars)\n", run.Symbol, run.StartDate, run.EndDate, r.Bars)
	printer.Fprintf(tw, "Strategy\t%s (fast %d, slow %d)\n", r.Strategy, run.FastPeriod, run.SlowPeriod)
	printer.Fprintf(tw, "Initial cash\t%s\n", money(r.InitialCash))
	printer.Fprintf(tw, "Final value\t%s\n", money(r.FinalCash))
	printer.Fprintf(tw, "Profit/loss\t%s (%s)\n", money(r.ProfitLoss), pct(r.ProfitLossPercent))
	printer.Fprintf(tw, "Trades\t%d (won %d, lost %d)\n", r.TotalTrades, r.WinningTrades, r.LosingTrades)
	printer.Fprintf(tw, "Max drawdown\t%s (%s)\n", money(r.MaxDrawdown), pct(r.MaxDrawdownPercent))
	if p := r.OpenPosition; p != nil {
		printer.Fprintf(tw, "Open position\t%.4f @ %s since %s\n", p.Size, money(p.EntryPrice), p.OpenedAt.Format("2006-01-02"))
	}
	_ = tw.Flush()
}

func printTrades(w io.Writer, trades []domain.ClosedTrade) {
	if len(trades) == 0 {
		printer.Fprintln(w, "\nNo closed trades.")
		return
	}
	printer.Fprintln(w)
	tw := newTable(w)
	printer.Fprintln(tw, "OPENED\tCLOSED\tSIZE\tENTRY\tEXIT\tGROSS\tNET")
	for _, t := range trades {
		printer.Fprintf(tw, "%s\t%s\t%.4f\t%s\t%s\t%s\t%s\n",
			t.OpenedAt.Format("2006-01-02"), t.ClosedAt.Format("2006-01-02"), t.Size,
			money(t.EntryPrice), money(t.ExitPrice), money(t.GrossPnL), money(t.NetPnL))
	}
	_ = tw.Flush()
}

func printStrategies(w io.Writer, infos []strategy.Info) {
	for i, info := range infos {
		if i > 0 {
			printer.Fprintln(w)
		}
		printer.Fprintf(w, "%s (%s)\n  %s\n", info.Name, info.Label, info.Description)
		keys := make([]string, 0, len(info.Parameters))
		for k := range info.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			printer.Fprintf(w, "  %-12s %s\n", k, info.Parameters[k])
		}
	}
}

func printComparison(w io.Writer, runs []*domain.Run) {
	tw := newTable(w)
	printer.Fprintln(tw, "STRATEGY\tFINAL\tP/L\tP/L %\tTRADES\tWON\tLOST\tMAX DD %")
	for _, run := range runs {
		r := run.Report
		printer.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.Strategy, money(r.FinalCash), money(r.ProfitLoss), pct(r.ProfitLossPercent),
			r.TotalTrades, r.WinningTrades, r.LosingTrades, pct(r.MaxDrawdownPercent))
	}
	_ = tw.Flush()
}

func printHistory(w io.Writer, runs []domain.Run) {
	if len(runs) == 0 {
		printer.Fprintln(w, "No recorded runs.")
		return
	}
	tw := newTable(w)
	printer.Fprintln(tw, "ID\tCREATED\tSYMBOL\tRANGE\tSTRATEGY\tP/L\tTRADES")
	for _, run := range runs {
		printer.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04"), run.Symbol,
			strings.Join([]string{run.StartDate, run.EndDate}, ".."), run.Strategy,
			money(run.Report.ProfitLoss), run.Report.TotalTrades)
	}
	_ = tw.Flush()
}

func printResponse(w io.Writer, resp tradingcase.BacktestResponse) {
	tw := newTable(w)
	printer.Fprintf(tw, "Run\t%s\n", resp.RunID)
	printer.Fprintf(tw, "Symbol\t%s (%s to %s)\n", resp.Symbol, resp.StartDate, resp.EndDate)
	printer.Fprintf(tw, "Strategy\t%s (fast %d, slow %d)\n", resp.Strategy, resp.FastPeriod, resp.SlowPeriod)
	printer.Fprintf(tw, "Initial cash\t%s\n", money(resp.InitialCash))
	printer.Fprintf(tw, "Final value\t%s\n", money(resp.FinalCash))
	printer.Fprintf(tw, "Profit/loss\t%s (%s)\n", money(resp.ProfitLoss), pct(resp.ProfitLossPercent))
	printer.Fprintf(tw, "Trades\t%d (won %d, lost %d)\n", resp.TotalTrades, resp.WinningTrades, resp.LosingTrades)
	printer.Fprintf(tw, "Max drawdown\t%s (%s)\n", money(resp.MaxDrawdown), pct(resp.MaxDrawdownPercent))
	_ = tw.Flush()
}
