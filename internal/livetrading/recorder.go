// Package livetrading records the live Wallex trade stream into replayable
// day files and the trade store.
package livetrading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amirphl/signalforge/internal/exchange"
	"github.com/amirphl/signalforge/internal/journal"
	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/trades"
)

// TradeFeed pushes live trades into out until ctx ends.
type TradeFeed interface {
	Run(ctx context.Context, out chan<- exchange.WallexTrade) error
}

// TradeSaver receives recorded trades in batches. db.Storage satisfies it.
type TradeSaver interface {
	SaveTrades(ctx context.Context, symbol string, trades []market.Trade) error
}

type Recorder struct {
	symbol  string
	feed    TradeFeed
	writer  *trades.Writer
	saver   TradeSaver
	journal journal.Journaler
	logger  *zap.Logger

	batchSize     int
	flushInterval time.Duration

	ids      trades.IDAssigner
	pending  []market.Trade
	recorded int
}

type Option func(*Recorder)

// WithSaver stores every batch in s in addition to the CSV files.
func WithSaver(s TradeSaver) Option { return func(r *Recorder) { r.saver = s } }

func WithJournal(j journal.Journaler) Option { return func(r *Recorder) { r.journal = j } }

func WithLogger(l *zap.Logger) Option { return func(r *Recorder) { r.logger = l } }

func WithBatch(size int, every time.Duration) Option {
	return func(r *Recorder) {
		r.batchSize, r.flushInterval = size, every
	}
}

func NewRecorder(symbol string, feed TradeFeed, writer *trades.Writer, opts ...Option) *Recorder {
	r := &Recorder{
		symbol:        symbol,
		feed:          feed,
		writer:        writer,
		logger:        zap.NewNop(),
		batchSize:     100,
		flushInterval: 5 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run records until ctx ends and returns the number of trades recorded.
// Cancellation is the normal way to stop and is not reported as an error.
func (r *Recorder) Run(ctx context.Context) (int, error) {
	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unbuffered so every trade the feed handed over is recorded before its
	// exit is observed.
	in := make(chan exchange.WallexTrade)
	feedErr := make(chan error, 1)
	go func() { feedErr <- r.feed.Run(feedCtx, in) }()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	r.logger.Info("Recorder | started", zap.String("symbol", r.symbol))
	r.logEvent(ctx, "recording_started", nil)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-feedErr:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				runErr = fmt.Errorf("trade feed: %w", err)
			}
			break loop
		case wt := <-in:
			if err := r.record(wt); err != nil {
				runErr = err
				break loop
			}
			if len(r.pending) >= r.batchSize {
				if err := r.flush(ctx); err != nil {
					runErr = err
					break loop
				}
			}
		case <-ticker.C:
			if err := r.flush(ctx); err != nil {
				runErr = err
				break loop
			}
		}
	}

	// ctx may already be done; the final batch still has to land.
	final, finalCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer finalCancel()
	if err := r.flush(final); err != nil && runErr == nil {
		runErr = err
	}
	if err := r.writer.Close(); err != nil && runErr == nil {
		runErr = err
	}

	r.logger.Info("Recorder | stopped", zap.String("symbol", r.symbol), zap.Int("recorded", r.recorded), zap.Error(runErr))
	r.logEvent(final, "recording_stopped", map[string]any{"recorded": r.recorded})
	return r.recorded, runErr
}

func (r *Recorder) record(wt exchange.WallexTrade) error {
	ms := uint64(wt.Timestamp.UTC().UnixMilli())
	t, err := wt.ToTrade(r.ids.Next(ms))
	if err != nil {
		r.logger.Warn("Recorder | skipping trade with bad price", zap.String("price", wt.Price), zap.Error(err))
		return nil
	}
	qty, err := decimal.NewFromString(wt.Quantity)
	if err != nil {
		qty = decimal.Zero
	}

	// A buy-initiated trade means the seller was the resting maker.
	if err := r.writer.Write(trades.Row{Trade: t, Quantity: qty, BuyerMaker: !wt.IsBuyOrder}); err != nil {
		return err
	}
	r.pending = append(r.pending, t)
	r.recorded++
	return nil
}

func (r *Recorder) flush(ctx context.Context) error {
	if err := r.writer.Flush(); err != nil {
		return fmt.Errorf("flush trade file: %w", err)
	}
	if len(r.pending) == 0 {
		return nil
	}
	if r.saver != nil {
		if err := r.saver.SaveTrades(ctx, r.symbol, r.pending); err != nil {
			return fmt.Errorf("save recorded trades: %w", err)
		}
	}
	r.logger.Debug("Recorder | flushed batch", zap.String("symbol", r.symbol), zap.Int("trades", len(r.pending)))
	r.pending = r.pending[:0]
	return nil
}

func (r *Recorder) logEvent(ctx context.Context, description string, data map[string]any) {
	if r.journal == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["symbol"] = r.symbol
	if err := r.journal.LogEvent(ctx, journal.New(journal.TypeRecorder, description, data)); err != nil {
		r.logger.Warn("Recorder | failed to journal event", zap.Error(err))
	}
}
