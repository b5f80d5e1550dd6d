package db

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/signalforge/internal/journal"
	"github.com/amirphl/signalforge/internal/market"
)

// MemoryStorage keeps everything in process. It backs tests and runs that do
// not configure a database.
type MemoryStorage struct {
	mu sync.RWMutex

	// Trades by upper-case symbol, then trade id
	trades map[string]map[uint64]market.Trade

	runs      map[int64]Run
	fills     map[int64][]FillRecord
	nextRunID int64

	// Events (append-only)
	events []journal.Event
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		trades: make(map[string]map[uint64]market.Trade),
		runs:   make(map[int64]Run),
		fills:  make(map[int64][]FillRecord),
		events: make([]journal.Event, 0, 1024),
	}
}

// GetDB returns nil for in-memory storage (no SQL database)
func (m *MemoryStorage) GetDB() *sql.DB { return nil }

// -------- TradeStore --------

func (m *MemoryStorage) SaveTrades(ctx context.Context, symbol string, trades []market.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	symbol = strings.ToUpper(symbol)
	byID, ok := m.trades[symbol]
	if !ok {
		byID = make(map[uint64]market.Trade, len(trades))
		m.trades[symbol] = byID
	}
	for _, t := range trades {
		byID[t.ID] = t
	}
	return nil
}

func (m *MemoryStorage) Trades(ctx context.Context, symbol string, from, to time.Time) ([]market.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start, end := tradeWindow(from, to)
	var out []market.Trade
	for _, t := range m.trades[strings.ToUpper(symbol)] {
		if t.Timestamp >= start && t.Timestamp < end {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStorage) TradeCount(ctx context.Context, symbol string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trades[strings.ToUpper(symbol)]), nil
}

// -------- RunStore --------

func (m *MemoryStorage) SaveRun(ctx context.Context, run Run, fills []FillRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRunID++
	run.ID = m.nextRunID
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs[run.ID] = run

	stored := make([]FillRecord, len(fills))
	for i, f := range fills {
		f.RunID, f.Seq = run.ID, i
		stored[i] = f
	}
	m.fills[run.ID] = stored
	return run.ID, nil
}

func (m *MemoryStorage) GetRun(ctx context.Context, id int64) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return &r, nil
}

func (m *MemoryStorage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryStorage) GetRunFills(ctx context.Context, id int64) ([]FillRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[id]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return slices.Clone(m.fills[id]), nil
}

// -------- Journaler --------

func (m *MemoryStorage) LogEvent(ctx context.Context, event journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Time = event.Time.UTC()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStorage) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start = start.UTC()
	end = end.UTC()
	var out []journal.Event
	for _, e := range m.events {
		if e.Type == eventType && (e.Time.Equal(start) || e.Time.After(start)) && e.Time.Before(end) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

var _ Storage = (*MemoryStorage)(nil)
