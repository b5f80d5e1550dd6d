// Package backtest replays trade prints through a strategy, the trade-through
// execution model and a position tracker.
package backtest

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/amirphl/signalforge/internal/db"
	"github.com/amirphl/signalforge/internal/execution"
	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/position"
	"github.com/amirphl/signalforge/internal/strategy"
)

var ErrNoTrades = errors.New("no trades to replay")

// TradeView is a market view the runner can feed trade prints into.
type TradeView interface {
	market.MarketView
	OnTrade(p market.Price)
}

// Runner drives one backtest. A Runner is single use.
type Runner struct {
	strategy strategy.Strategy
	view     TradeView
	logger   *zap.Logger
}

type Option func(*Runner)

// WithView replaces the default trade-only view, e.g. with an
// orderbook.View seeded from depth.
func WithView(v TradeView) Option { return func(r *Runner) { r.view = v } }

func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.logger = l } }

func NewRunner(s strategy.Strategy, opts ...Option) *Runner {
	r := &Runner{
		strategy: s,
		view:     market.NewTradeOnlyView(),
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run replays trades in order. For every trade the view sees the print first,
// then the strategy, then the execution model matches, and finally every
// pending fill is applied to the tracker before being reported to the
// strategy. ctx is checked between trades; on cancellation the partial
// results are returned along with ctx.Err().
func (r *Runner) Run(ctx context.Context, trades []market.Trade) (Results, error) {
	if len(trades) == 0 {
		return Results{}, ErrNoTrades
	}

	exec := execution.NewTradeThrough(r.view)
	tracker := position.NewTracker()

	res := Results{
		Strategy:       r.strategy.Name(),
		StartTimestamp: trades[0].Timestamp,
		MinPrice:       trades[0].Price,
		MaxPrice:       trades[0].Price,
		EquityCurve:    make([]float64, 0, len(trades)),
	}

	r.strategy.Initialize(exec)
	r.logger.Info("Backtest | starting replay",
		zap.String("strategy", res.Strategy),
		zap.Int("trades", len(trades)))

	// Equity starts at zero before the first trade.
	var (
		peak     float64
		last     market.Price
		runErr   error
		finished = true
	)
	for _, t := range trades {
		if err := ctx.Err(); err != nil {
			runErr, finished = err, false
			break
		}

		r.view.OnTrade(t.Price)
		r.strategy.OnTrade(t)
		exec.OnTick()

		for {
			f, ok := exec.PollFill()
			if !ok {
				break
			}
			tracker.OnFill(f)
			r.strategy.OnFill(f)
			res.Fills = append(res.Fills, db.FillRecord{
				Seq:       len(res.Fills),
				OrderID:   f.OrderID,
				Side:      f.Side,
				Price:     f.Price,
				Quantity:  f.Quantity,
				Timestamp: t.Timestamp,
			})
			r.logger.Debug("Backtest | fill",
				zap.Uint64("order_id", f.OrderID),
				zap.Stringer("side", f.Side),
				zap.String("price", market.FormatPrice(f.Price)),
				zap.Int64("qty", f.Quantity))
		}

		last = t.Price
		res.EndTimestamp = t.Timestamp
		res.TradesProcessed++
		res.MinPrice = min(res.MinPrice, t.Price)
		res.MaxPrice = max(res.MaxPrice, t.Price)
		res.MaxPosition = max(res.MaxPosition, abs(tracker.Position()))

		equity := tracker.TotalPnL(t.Price)
		res.EquityCurve = append(res.EquityCurve, equity)
		peak = max(peak, equity)
		res.MaxDrawdown = max(res.MaxDrawdown, peak-equity)
	}

	if finished {
		r.strategy.Finalize()
	}

	res.Resting = exec.Open()
	res.OpenOrders = len(res.Resting)
	res.Stats = tracker.Snapshot(last)
	res.TotalPnL = res.Stats.TotalPnL
	res.RealizedPnL = res.Stats.RealizedPnL
	res.UnrealizedPnL = res.Stats.UnrealizedPnL
	res.TotalTrades = res.Stats.ClosedTrades
	res.WinningTrades = res.Stats.Wins
	res.LosingTrades = res.Stats.Losses
	res.WinRate = res.Stats.WinRate

	r.logger.Info("Backtest | replay finished",
		zap.Int("processed", res.TradesProcessed),
		zap.Int("fills", len(res.Fills)),
		zap.Float64("total_pnl", res.TotalPnL),
		zap.Bool("complete", finished))
	return res, runErr
}

func abs(q market.Quantity) market.Quantity {
	if q < 0 {
		return -q
	}
	return q
}
