// Package db
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/amirphl/signalforge/internal/journal"
	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/order"
)

var ErrRunNotFound = errors.New("backtest run not found")

// Run is the persisted summary of one backtest.
type Run struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	Strategy    string    `json:"strategy"`
	Granularity string    `json:"granularity"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	CreatedAt   time.Time `json:"created_at"`

	TradesProcessed int     `json:"trades_processed"`
	Fills           int     `json:"fills"`
	TotalPnL        float64 `json:"total_pnl"`
	RealizedPnL     float64 `json:"realized_pnl"`
	UnrealizedPnL   float64 `json:"unrealized_pnl"`
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	MaxPosition     int64   `json:"max_position"`
	StartTimestamp  uint64  `json:"start_timestamp"`
	EndTimestamp    uint64  `json:"end_timestamp"`
}

// FillRecord is a fill produced during a run, in emission order.
type FillRecord struct {
	RunID     int64           `json:"run_id"`
	Seq       int             `json:"seq"`
	OrderID   order.ID        `json:"order_id"`
	Side      market.Side     `json:"side"`
	Price     market.Price    `json:"price"`
	Quantity  market.Quantity `json:"quantity"`
	Timestamp uint64          `json:"timestamp"`
}

// TradeStore keeps trade prints per symbol. Trades implements trades.Source.
type TradeStore interface {
	SaveTrades(ctx context.Context, symbol string, trades []market.Trade) error
	Trades(ctx context.Context, symbol string, from, to time.Time) ([]market.Trade, error)
	TradeCount(ctx context.Context, symbol string) (int, error)
}

// RunStore keeps backtest runs and their fills.
type RunStore interface {
	SaveRun(ctx context.Context, run Run, fills []FillRecord) (int64, error)
	GetRun(ctx context.Context, id int64) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRunFills(ctx context.Context, id int64) ([]FillRecord, error)
}

// Storage is the interface for all persistent storage.
type Storage interface {
	GetDB() *sql.DB
	TradeStore
	RunStore
	journal.Journaler
}

// tradeWindow converts a day range to the half-open millisecond interval
// [from, to+24h) that covers both days in full.
func tradeWindow(from, to time.Time) (uint64, uint64) {
	return uint64(from.UTC().UnixMilli()), uint64(to.UTC().Add(24 * time.Hour).UnixMilli())
}
