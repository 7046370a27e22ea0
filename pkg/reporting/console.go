package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/quant-backtest/internal/backtest"
)

// ConsoleReporter renders a run as rounded tables on a terminal.
type ConsoleReporter struct {
	out     io.Writer
	verbose bool
}

func NewConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{out: out, verbose: verbose}
}

func (r *ConsoleReporter) Report(result *backtest.Result) error {
	m := result.Metrics

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("BACKTEST RESULTS: %s", result.Symbol)
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"💰 Initial Balance", fmt.Sprintf("$%.2f", result.StartBalance)},
		{"💰 Final Balance", fmt.Sprintf("$%.2f", result.EndBalance)},
		{"📈 Total Return", fmt.Sprintf("%.2f%%", m.TotalReturn*100)},
		{"📈 Annual Return", fmt.Sprintf("%.2f%%", m.AnnualReturn*100)},
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%% (%d bars underwater)", m.MaxDrawdown*100, m.MaxDrawdownDuration)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"📊 Volatility", fmt.Sprintf("%.2f%%", m.Volatility*100)},
		{"📊 Sharpe Ratio", fmt.Sprintf("%.2f", m.SharpeRatio)},
		{"📊 Sortino Ratio", fmt.Sprintf("%.2f", m.SortinoRatio)},
		{"📊 Calmar Ratio", fmt.Sprintf("%.2f", m.CalmarRatio)},
		{"📊 t-stat / p-value", fmt.Sprintf("%.2f / %.4f", m.TStatistic, m.PValue)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"🔄 Total Trades", fmt.Sprintf("%d", m.TotalTrades)},
		{"✅ Win Rate", fmt.Sprintf("%.1f%%", m.WinRate*100)},
		{"💹 Profit Factor", fmt.Sprintf("%.2f", m.ProfitFactor)},
		{"📋 Avg Holding", fmt.Sprintf("%.1f bars", m.AvgHoldingPeriod)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 26, Align: text.AlignLeft},
	})
	t.Render()

	if r.verbose && len(result.Trades) > 0 {
		r.renderTrades(result)
	}
	return nil
}

func (r *ConsoleReporter) renderTrades(result *backtest.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("TRADE HISTORY")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Entry", "Exit", "Side", "Qty", "Entry Px", "Exit Px", "PnL", "PnL %"})

	for _, trade := range result.Trades {
		t.AppendRow(table.Row{
			trade.EntryTime.Format("2006-01-02"),
			trade.ExitTime.Format("2006-01-02"),
			trade.Side,
			fmt.Sprintf("%.4f", trade.Quantity),
			fmt.Sprintf("$%.2f", trade.EntryPrice),
			fmt.Sprintf("$%.2f", trade.ExitPrice),
			fmt.Sprintf("$%.2f", trade.PnL),
			fmt.Sprintf("%.2f%%", trade.PnLPct*100),
		})
	}
	t.Render()
}

// ReportMonteCarlo renders the resampling percentiles, or the warning when
// the base run was too thin.
func (r *ConsoleReporter) ReportMonteCarlo(summary *backtest.MonteCarloSummary) {
	if summary.Warning != "" {
		fmt.Fprintf(r.out, "⚠️  %s\n", summary.Warning)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("MONTE CARLO (%d trials)", summary.Trials)
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"P5", fmt.Sprintf("%.2f%%", summary.P5*100)},
		{"P25", fmt.Sprintf("%.2f%%", summary.P25*100)},
		{"P50", fmt.Sprintf("%.2f%%", summary.P50*100)},
		{"P75", fmt.Sprintf("%.2f%%", summary.P75*100)},
		{"P95", fmt.Sprintf("%.2f%%", summary.P95*100)},
		{"Prob. Profit", fmt.Sprintf("%.1f%%", summary.ProbProfit*100)},
		{"Drawdown P50", fmt.Sprintf("%.2f%%", summary.DrawdownP50*100)},
		{"Drawdown P5", fmt.Sprintf("%.2f%%", summary.DrawdownP5*100)},
	})
	t.Render()
}

// ReportWalkForward renders one row per fold.
func (r *ConsoleReporter) ReportWalkForward(windows []backtest.WalkForwardWindow) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("WALK-FORWARD (%d windows)", len(windows))
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Test Bars", "Return", "Sharpe", "Max DD", "Trades"})

	for _, w := range windows {
		t.AppendRow(table.Row{
			w.Index,
			fmt.Sprintf("%d-%d", w.TestStart, w.TestEnd),
			fmt.Sprintf("%.2f%%", w.Result.Metrics.TotalReturn*100),
			fmt.Sprintf("%.2f", w.Result.Metrics.SharpeRatio),
			fmt.Sprintf("%.2f%%", w.Result.Metrics.MaxDrawdown*100),
			w.Result.Metrics.TotalTrades,
		})
	}
	t.Render()
}
