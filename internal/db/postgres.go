package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/amirphl/signalforge/internal/db/conf"
	"github.com/amirphl/signalforge/internal/journal"
	"github.com/amirphl/signalforge/internal/market"
)

// Transaction context key
type txKey struct{}

// WithTransaction adds a transaction to the context
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// executeWithTransaction executes a function with proper transaction management
// If a transaction exists in context, it uses that. Otherwise, it creates a new one.
func (p *Postgres) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}

	return nil
}

// queryWithTransaction executes a query using transaction from context if available
func (p *Postgres) queryWithTransaction(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return p.db.QueryContext(ctx, query, args...)
}

func (p *Postgres) queryRowWithTransaction(ctx context.Context, query string, args ...any) *sql.Row {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryRowContext(ctx, query, args...)
	}
	return p.db.QueryRowContext(ctx, query, args...)
}

// Postgres stores trades, runs and journal events in PostgreSQL. The schema
// lives in scripts/schema.sql.
type Postgres struct {
	db *sql.DB
}

func New(c conf.Config) (*Postgres, error) {
	if c.DB == nil {
		return nil, errors.New("db: nil connection")
	}
	return &Postgres{db: c.DB}, nil
}

func (p *Postgres) GetDB() *sql.DB {
	return p.db
}

// -------- TradeStore --------

// SaveTrades upserts trades keyed by (symbol, trade_id).
func (p *Postgres) SaveTrades(ctx context.Context, symbol string, trades []market.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trades (symbol, trade_id, price, ts)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (symbol, trade_id) DO UPDATE SET
				price=EXCLUDED.price, ts=EXCLUDED.ts
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		defer stmt.Close()

		for i, t := range trades {
			if _, err := stmt.ExecContext(ctx, symbol, int64(t.ID), t.Price, int64(t.Timestamp)); err != nil {
				return fmt.Errorf("failed to save trade at index %d (%s #%d): %w", i, symbol, t.ID, err)
			}
		}
		return nil
	})
}

// Trades returns the stored trades for symbol on the days from..to inclusive,
// ordered by timestamp then id.
func (p *Postgres) Trades(ctx context.Context, symbol string, from, to time.Time) ([]market.Trade, error) {
	start, end := tradeWindow(from, to)
	rows, err := p.queryWithTransaction(ctx, `
		SELECT trade_id, price, ts FROM trades
		WHERE symbol=$1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC, trade_id ASC`,
		strings.ToUpper(symbol), int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []market.Trade
	for rows.Next() {
		var id, ts int64
		var t market.Trade
		if err := rows.Scan(&id, &t.Price, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.ID, t.Timestamp = uint64(id), uint64(ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) TradeCount(ctx context.Context, symbol string) (int, error) {
	var n int
	err := p.queryRowWithTransaction(ctx, `SELECT COUNT(*) FROM trades WHERE symbol=$1`, strings.ToUpper(symbol)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades for %s: %w", symbol, err)
	}
	return n, nil
}

// -------- RunStore --------

// SaveRun inserts the run and its fills in one transaction and returns the
// new run id.
func (p *Postgres) SaveRun(ctx context.Context, run Run, fills []FillRecord) (int64, error) {
	var id int64
	err := p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO backtest_runs (
				symbol, strategy, granularity, from_date, to_date, created_at,
				trades_processed, fills, total_pnl, realized_pnl, unrealized_pnl,
				total_trades, winning_trades, losing_trades, win_rate, max_drawdown,
				max_position, start_ts, end_ts)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
			RETURNING id`,
			run.Symbol, run.Strategy, run.Granularity, run.From, run.To, run.CreatedAt,
			run.TradesProcessed, run.Fills, run.TotalPnL, run.RealizedPnL, run.UnrealizedPnL,
			run.TotalTrades, run.WinningTrades, run.LosingTrades, run.WinRate, run.MaxDrawdown,
			run.MaxPosition, int64(run.StartTimestamp), int64(run.EndTimestamp),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to save run for %s: %w", run.Symbol, err)
		}

		if len(fills) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO backtest_fills (run_id, seq, order_id, side, price, quantity, ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`)
		if err != nil {
			return fmt.Errorf("failed to prepare fill insert: %w", err)
		}
		defer stmt.Close()

		for i, f := range fills {
			if _, err := stmt.ExecContext(ctx, id, i, int64(f.OrderID), f.Side.String(), f.Price, f.Quantity, int64(f.Timestamp)); err != nil {
				return fmt.Errorf("failed to save fill %d of run %d: %w", i, id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

const runColumns = `id, symbol, strategy, granularity, from_date, to_date, created_at,
	trades_processed, fills, total_pnl, realized_pnl, unrealized_pnl,
	total_trades, winning_trades, losing_trades, win_rate, max_drawdown,
	max_position, start_ts, end_ts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (Run, error) {
	var r Run
	var startTS, endTS int64
	err := s.Scan(&r.ID, &r.Symbol, &r.Strategy, &r.Granularity, &r.From, &r.To, &r.CreatedAt,
		&r.TradesProcessed, &r.Fills, &r.TotalPnL, &r.RealizedPnL, &r.UnrealizedPnL,
		&r.TotalTrades, &r.WinningTrades, &r.LosingTrades, &r.WinRate, &r.MaxDrawdown,
		&r.MaxPosition, &startTS, &endTS)
	if err != nil {
		return Run{}, err
	}
	r.From, r.To, r.CreatedAt = r.From.UTC(), r.To.UTC(), r.CreatedAt.UTC()
	r.StartTimestamp, r.EndTimestamp = uint64(startTS), uint64(endTS)
	return r, nil
}

func (p *Postgres) GetRun(ctx context.Context, id int64) (*Run, error) {
	r, err := scanRun(p.queryRowWithTransaction(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", id, err)
	}
	return &r, nil
}

// ListRuns returns the newest runs first. limit <= 0 returns all runs.
func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := p.queryWithTransaction(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (p *Postgres) GetRunFills(ctx context.Context, id int64) ([]FillRecord, error) {
	if _, err := p.GetRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := p.queryWithTransaction(ctx, `
		SELECT run_id, seq, order_id, side, price, quantity, ts
		FROM backtest_fills WHERE run_id=$1 ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills of run %d: %w", id, err)
	}
	defer rows.Close()

	var fills []FillRecord
	for rows.Next() {
		var f FillRecord
		var orderID, ts int64
		var side string
		if err := rows.Scan(&f.RunID, &f.Seq, &orderID, &side, &f.Price, &f.Quantity, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}
		if f.Side, err = market.ParseSide(side); err != nil {
			return nil, err
		}
		f.OrderID, f.Timestamp = uint64(orderID), uint64(ts)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// -------- Journaler --------

func (p *Postgres) LogEvent(ctx context.Context, event journal.Event) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO events (time, type, description, data) VALUES ($1,$2,$3,$4)`,
			event.Time, event.Type, event.Description, data)
		if err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

func (p *Postgres) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	rows, err := p.queryWithTransaction(ctx, `SELECT time, type, description, data FROM events WHERE type=$1 AND time >= $2 AND time < $3 ORDER BY time ASC`, eventType, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []journal.Event
	for rows.Next() {
		var e journal.Event
		var data []byte
		if err := rows.Scan(&e.Time, &e.Type, &e.Description, &data); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("failed to decode event data: %w", err)
			}
		}
		e.Time = e.Time.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ Storage = (*Postgres)(nil)
