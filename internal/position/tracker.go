// Package position
package position

import (
	"math"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/order"
	"github.com/shopspring/decimal"
)

// Tracker turns a fill stream into a net position and weighted-average-cost
// PnL. Prices stay in ticks internally; PnL is reported in currency units.
// Not safe for concurrent use.
type Tracker struct {
	position market.Quantity
	avgEntry market.Price
	realized decimal.Decimal

	closedTrades int
	wins         int
	losses       int
	winPnLs      []float64
	lossPnLs     []float64
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// OnFill applies a fill. A fill whose delta opposes the current position
// closes min(|position|, |delta|) units and realizes PnL on them; any excess
// opens a position in the opposite direction at the fill price.
func (t *Tracker) OnFill(f order.Fill) {
	delta := f.Signed()
	if delta == 0 {
		return
	}

	if t.position != 0 && (t.position > 0) != (delta > 0) {
		closed := min(abs(t.position), abs(delta))
		diff := f.Price - t.avgEntry
		if t.position < 0 {
			diff = -diff
		}
		contribution := market.TicksToCurrency(1).Mul(decimal.NewFromInt(diff)).Mul(decimal.NewFromInt(closed))
		t.realized = t.realized.Add(contribution)
		t.recordClose(contribution.InexactFloat64())

		prev := t.position
		t.position += delta
		switch {
		case t.position == 0:
			t.avgEntry = 0
		case (t.position > 0) != (prev > 0):
			t.avgEntry = f.Price
		}
		return
	}

	if t.position == 0 {
		t.avgEntry = f.Price
	} else {
		oldQty, newQty := abs(t.position), abs(delta)
		t.avgEntry = (t.avgEntry*oldQty + f.Price*newQty) / (oldQty + newQty)
	}
	t.position += delta
}

func (t *Tracker) recordClose(pnl float64) {
	t.closedTrades++
	if pnl > 0 {
		t.wins++
		t.winPnLs = append(t.winPnLs, pnl)
	} else {
		t.losses++
		t.lossPnLs = append(t.lossPnLs, pnl)
	}
}

// Position returns the signed net quantity: positive long, negative short.
func (t *Tracker) Position() market.Quantity { return t.position }

// AvgEntryPrice is meaningful only while Position() != 0.
func (t *Tracker) AvgEntryPrice() market.Price { return t.avgEntry }

func (t *Tracker) RealizedPnL() float64 { return t.realized.InexactFloat64() }

// UnrealizedPnL marks the open position to current. It is 0 when flat.
func (t *Tracker) UnrealizedPnL(current market.Price) float64 {
	return t.unrealized(current).InexactFloat64()
}

func (t *Tracker) unrealized(current market.Price) decimal.Decimal {
	if t.position == 0 {
		return decimal.Zero
	}
	diff := current - t.avgEntry
	if t.position < 0 {
		diff = -diff
	}
	return market.TicksToCurrency(1).Mul(decimal.NewFromInt(diff)).Mul(decimal.NewFromInt(abs(t.position)))
}

func (t *Tracker) TotalPnL(current market.Price) float64 {
	return t.realized.Add(t.unrealized(current)).InexactFloat64()
}

// ClosedTrades counts closing fills. A close with positive PnL is a win,
// anything else a loss.
func (t *Tracker) ClosedTrades() int { return t.closedTrades }
func (t *Tracker) Wins() int         { return t.wins }
func (t *Tracker) Losses() int       { return t.losses }

// State is a point-in-time view of a tracker, ready for reporting.
type State struct {
	Position      market.Quantity `json:"position"`
	AvgEntryPrice market.Price    `json:"avg_entry_price"`
	RealizedPnL   float64         `json:"realized_pnl"`
	UnrealizedPnL float64         `json:"unrealized_pnl"`
	TotalPnL      float64         `json:"total_pnl"`

	ClosedTrades int     `json:"closed_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"` // percent of closed trades
	ProfitFactor float64 `json:"profit_factor"`
	MeanPnL      float64 `json:"mean_pnl"`
	StdPnL       float64 `json:"std_pnl"`
	Sharpe       float64 `json:"sharpe"`
	Expectancy   float64 `json:"expectancy"`
}

// Snapshot marks the position to current and derives per-close statistics.
func (t *Tracker) Snapshot(current market.Price) State {
	s := State{
		Position:      t.position,
		AvgEntryPrice: t.avgEntry,
		RealizedPnL:   t.RealizedPnL(),
		UnrealizedPnL: t.UnrealizedPnL(current),
		TotalPnL:      t.TotalPnL(current),
		ClosedTrades:  t.closedTrades,
		Wins:          t.wins,
		Losses:        t.losses,
	}
	if t.closedTrades == 0 {
		return s
	}

	winFrac := float64(t.wins) / float64(t.closedTrades)
	s.WinRate = winFrac * 100

	avgWin, avgLoss := mean(t.winPnLs), mean(t.lossPnLs)
	if avgLoss != 0 {
		s.ProfitFactor = -avgWin / avgLoss
	}

	all := make([]float64, 0, t.closedTrades)
	all = append(all, t.winPnLs...)
	all = append(all, t.lossPnLs...)
	s.MeanPnL = mean(all)
	for _, v := range all {
		s.StdPnL += (v - s.MeanPnL) * (v - s.MeanPnL)
	}
	s.StdPnL = math.Sqrt(s.StdPnL / float64(len(all)))
	if s.StdPnL > 0 {
		s.Sharpe = s.MeanPnL / s.StdPnL
	}

	s.Expectancy = winFrac*avgWin + (1-winFrac)*avgLoss
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func abs(q market.Quantity) market.Quantity {
	if q < 0 {
		return -q
	}
	return q
}
