package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/amirphl/signalforge/internal/db"
	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/order"
	"github.com/amirphl/signalforge/internal/position"
)

// Results summarises one replay. PnL values are in currency units and
// WinRate is a percentage.
type Results struct {
	Strategy string `json:"strategy"`

	TotalPnL      float64 `json:"total_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`

	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`

	MaxDrawdown float64         `json:"max_drawdown"`
	MaxPosition market.Quantity `json:"max_position"`

	StartTimestamp uint64 `json:"start_timestamp"`
	EndTimestamp   uint64 `json:"end_timestamp"`

	TradesProcessed int          `json:"trades_processed"`
	MinPrice        market.Price `json:"min_price"`
	MaxPrice        market.Price `json:"max_price"`
	OpenOrders      int          `json:"open_orders"`
	Resting         []order.Open `json:"resting_orders"`

	Fills       []db.FillRecord `json:"fills"`
	EquityCurve []float64       `json:"equity_curve"`
	Stats       position.State  `json:"stats"`
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF")).
			Width(18)

	profitStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	lossStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151")).
			Padding(0, 1)
)

func money(v float64) string {
	s := fmt.Sprintf("$%.2f", v)
	switch {
	case v > 0:
		return profitStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	default:
		return s
	}
}

func formatMillis(ms uint64) string {
	return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339)
}

// Render draws the results as a bordered terminal panel.
func (r Results) Render() string {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
	}

	rows := []string{
		titleStyle.Render("=== Backtest Results ==="),
		row("Strategy", r.Strategy),
		row("Total PnL", money(r.TotalPnL)),
		row("Realized PnL", money(r.RealizedPnL)),
		row("Unrealized PnL", money(r.UnrealizedPnL)),
		row("Total Trades", strconv.Itoa(r.TotalTrades)),
		row("Win Rate", fmt.Sprintf("%.2f%% (%d/%d)", r.WinRate, r.WinningTrades, r.TotalTrades)),
		row("Max Drawdown", fmt.Sprintf("$%.2f", r.MaxDrawdown)),
		row("Max Position", strconv.FormatInt(r.MaxPosition, 10)),
		row("Profit Factor", fmt.Sprintf("%.2f", r.Stats.ProfitFactor)),
		row("Sharpe", fmt.Sprintf("%.2f", r.Stats.Sharpe)),
		"",
		row("Trades processed", strconv.Itoa(r.TradesProcessed)),
		row("Fills", strconv.Itoa(len(r.Fills))),
		row("Price range", "$"+market.FormatPrice(r.MinPrice)+" - $"+market.FormatPrice(r.MaxPrice)),
	}
	if r.TradesProcessed > 0 {
		rows = append(rows, row("Period", formatMillis(r.StartTimestamp)+" → "+formatMillis(r.EndTimestamp)))
	}
	if len(r.Resting) > 0 {
		rows = append(rows, "", labelStyle.Render("Resting orders"))
		for _, o := range r.Resting {
			rows = append(rows, mutedStyle.Render("  "+describeOrder(o)))
		}
	}
	if len(r.Fills) == 0 {
		rows = append(rows, "", mutedStyle.Render("Price never reached order levels. Try prices inside the range above."))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func describeOrder(o order.Open) string {
	s := fmt.Sprintf("#%d %s %s", o.ID, o.Intent.Side, o.Intent.Type)
	if o.Intent.Type == order.Limit {
		s += " $" + market.FormatPrice(o.Intent.LimitPrice)
	}
	return s + " x" + strconv.FormatInt(o.Intent.Quantity, 10)
}

// Summary is a one-line description used for notifications.
func (r Results) Summary(symbol string) string {
	return fmt.Sprintf("Backtest %s %s: pnl=%.2f realized=%.2f trades=%d win_rate=%.1f%% max_dd=%.2f fills=%d",
		strings.ToUpper(symbol), r.Strategy, r.TotalPnL, r.RealizedPnL, r.TotalTrades, r.WinRate, r.MaxDrawdown, len(r.Fills))
}

// SaveCSV writes fills.csv and equity.csv into dir and returns their paths.
func (r Results) SaveCSV(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	fillRows := [][]string{{"seq", "order_id", "side", "price", "quantity", "timestamp"}}
	for _, f := range r.Fills {
		fillRows = append(fillRows, []string{
			strconv.Itoa(f.Seq),
			strconv.FormatUint(f.OrderID, 10),
			f.Side.String(),
			market.FormatPrice(f.Price),
			strconv.FormatInt(f.Quantity, 10),
			strconv.FormatUint(f.Timestamp, 10),
		})
	}

	equityRows := [][]string{{"step", "equity"}}
	for i, eq := range r.EquityCurve {
		equityRows = append(equityRows, []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.2f", eq),
		})
	}

	fillsPath := filepath.Join(dir, "fills.csv")
	equityPath := filepath.Join(dir, "equity.csv")
	if err := saveCSV(fillsPath, fillRows); err != nil {
		return nil, err
	}
	if err := saveCSV(equityPath, equityRows); err != nil {
		return nil, err
	}
	return []string{fillsPath, equityPath}, nil
}

// saveCSV saves data to a CSV file
func saveCSV(filename string, rows [][]string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

// RunMeta describes what was replayed, for persistence.
type RunMeta struct {
	Symbol      string
	Granularity string
	From, To    time.Time
}

// ToRun converts results into a storable run summary.
func (r Results) ToRun(meta RunMeta) db.Run {
	return db.Run{
		Symbol:          strings.ToUpper(meta.Symbol),
		Strategy:        r.Strategy,
		Granularity:     meta.Granularity,
		From:            meta.From,
		To:              meta.To,
		CreatedAt:       time.Now().UTC(),
		TradesProcessed: r.TradesProcessed,
		Fills:           len(r.Fills),
		TotalPnL:        r.TotalPnL,
		RealizedPnL:     r.RealizedPnL,
		UnrealizedPnL:   r.UnrealizedPnL,
		TotalTrades:     r.TotalTrades,
		WinningTrades:   r.WinningTrades,
		LosingTrades:    r.LosingTrades,
		WinRate:         r.WinRate,
		MaxDrawdown:     r.MaxDrawdown,
		MaxPosition:     r.MaxPosition,
		StartTimestamp:  r.StartTimestamp,
		EndTimestamp:    r.EndTimestamp,
	}
}
