package backtest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amirphl/signalforge/internal/config"
	"github.com/amirphl/signalforge/internal/db"
	"github.com/amirphl/signalforge/internal/journal"
	"github.com/amirphl/signalforge/internal/notifier"
	"github.com/amirphl/signalforge/internal/strategy"
	"github.com/amirphl/signalforge/internal/trades"
)

// RunBacktest loads trades for the configured range, replays them and hands
// the results to the configured sinks: CSV files, storage and the notifier.
// Sink failures are logged and do not fail the run.
func RunBacktest(
	ctx context.Context,
	cfg config.Config,
	src trades.Source,
	storage db.Storage,
	n notifier.Notifier,
	logger *zap.Logger,
) (Results, error) {
	strat, err := strategy.New(cfg)
	if err != nil {
		return Results{}, err
	}

	data, err := src.Trades(ctx, cfg.Symbol, cfg.From, cfg.To)
	if err != nil {
		return Results{}, fmt.Errorf("load trades: %w", err)
	}
	logger.Info("Backtest | loaded trades",
		zap.String("symbol", cfg.Symbol),
		zap.String("from", cfg.FromDate),
		zap.String("to", cfg.ToDate),
		zap.Int("count", len(data)))

	res, err := NewRunner(strat, WithLogger(logger)).Run(ctx, data)
	if err != nil {
		return res, err
	}

	if cfg.OutputDir != "" {
		paths, err := res.SaveCSV(cfg.OutputDir)
		if err != nil {
			logger.Error("Backtest | failed to save CSV output", zap.Error(err))
		} else {
			logger.Info("Backtest | saved results", zap.Strings("files", paths))
		}
	}

	if cfg.Persist && storage != nil {
		meta := RunMeta{Symbol: cfg.Symbol, Granularity: cfg.Granularity, From: cfg.From, To: cfg.To}
		id, err := Persist(ctx, storage, meta, res)
		if err != nil {
			logger.Error("Backtest | failed to persist run", zap.Error(err))
		} else {
			logger.Info("Backtest | persisted run", zap.Int64("run_id", id))
		}
	}

	if n != nil {
		if err := n.SendWithRetry(res.Summary(cfg.Symbol)); err != nil {
			logger.Warn("Backtest | failed to send notification", zap.Error(err))
		}
	}
	return res, nil
}

// Persist stores the run, its fills and a completion event. With a SQL-backed
// storage all three are written in one transaction.
func Persist(ctx context.Context, storage db.Storage, meta RunMeta, res Results) (int64, error) {
	if sqlDB := storage.GetDB(); sqlDB != nil {
		tx, err := sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("begin transaction: %w", err)
		}
		id, err := persist(db.WithTransaction(ctx, tx), storage, meta, res)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit run: %w", err)
		}
		return id, nil
	}
	return persist(ctx, storage, meta, res)
}

func persist(ctx context.Context, storage db.Storage, meta RunMeta, res Results) (int64, error) {
	id, err := storage.SaveRun(ctx, res.ToRun(meta), res.Fills)
	if err != nil {
		return 0, err
	}
	err = storage.LogEvent(ctx, journal.New(journal.TypeRun, "run_completed", map[string]any{
		"run_id":    id,
		"symbol":    meta.Symbol,
		"strategy":  res.Strategy,
		"fills":     len(res.Fills),
		"total_pnl": res.TotalPnL,
	}))
	if err != nil {
		return 0, err
	}
	return id, nil
}
