package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/quant-backtest/internal/backtest"
)

// ExcelReporter writes a workbook with a trades sheet, an equity-curve
// sheet and a metrics summary sheet.
type ExcelReporter struct {
	path string
}

func NewExcelReporter(path string) *ExcelReporter {
	return &ExcelReporter{path: path}
}

func (r *ExcelReporter) Report(result *backtest.Result) error {
	if err := ensureDir(r.path); err != nil {
		return err
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const equitySheet = "Equity Curve"
	const metricsSheet = "Metrics"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(equitySheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(metricsSheet); err != nil {
		return err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := r.writeTrades(fx, tradesSheet, result, headerStyle); err != nil {
		return err
	}
	if err := r.writeEquity(fx, equitySheet, result, headerStyle); err != nil {
		return err
	}
	if err := r.writeMetrics(fx, metricsSheet, result, headerStyle); err != nil {
		return err
	}

	if err := fx.SaveAs(r.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (r *ExcelReporter) writeTrades(fx *excelize.File, sheet string, result *backtest.Result, headerStyle int) error {
	headers := []interface{}{"Symbol", "Side", "Entry Time", "Exit Time", "Entry Price", "Exit Price", "Quantity", "PnL", "PnL %", "Commission", "Bars Held"}
	if err := fx.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	if err := fx.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, trade := range result.Trades {
		row := []interface{}{
			trade.Symbol,
			trade.Side,
			trade.EntryTime.Format("2006-01-02 15:04"),
			trade.ExitTime.Format("2006-01-02 15:04"),
			trade.EntryPrice,
			trade.ExitPrice,
			trade.Quantity,
			trade.PnL,
			trade.PnLPct,
			trade.Commission,
			trade.HoldingPeriod,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExcelReporter) writeEquity(fx *excelize.File, sheet string, result *backtest.Result, headerStyle int) error {
	headers := []interface{}{"Timestamp", "Equity", "Drawdown"}
	if err := fx.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	if err := fx.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	drawdowns := result.DrawdownSeries()
	for i, point := range result.EquityCurve {
		row := []interface{}{
			point.Timestamp.Format("2006-01-02 15:04"),
			point.Equity,
			drawdowns[i],
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExcelReporter) writeMetrics(fx *excelize.File, sheet string, result *backtest.Result, headerStyle int) error {
	m := result.Metrics
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Start Balance", result.StartBalance},
		{"End Balance", result.EndBalance},
		{"Total Return", m.TotalReturn},
		{"Annual Return", m.AnnualReturn},
		{"Volatility", m.Volatility},
		{"Sharpe Ratio", m.SharpeRatio},
		{"Sortino Ratio", m.SortinoRatio},
		{"Calmar Ratio", m.CalmarRatio},
		{"Max Drawdown", m.MaxDrawdown},
		{"Drawdown Duration", m.MaxDrawdownDuration},
		{"Total Trades", m.TotalTrades},
		{"Win Rate", m.WinRate},
		{"Profit Factor", m.ProfitFactor},
		{"t-Statistic", m.TStatistic},
		{"p-Value", m.PValue},
		{"Skewness", m.Skewness},
		{"Kurtosis", m.Kurtosis},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := fx.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return fx.SetRowStyle(sheet, 1, 1, headerStyle)
}
