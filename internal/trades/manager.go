package trades

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/tfutils"
	"github.com/amirphl/signalforge/internal/tradecache"
)

// ErrNoData is returned when no trade file exists for a requested day.
var ErrNoData = errors.New("no trade data")

// Source yields trade prints for a symbol in increasing timestamp order.
type Source interface {
	Trades(ctx context.Context, symbol string, from, to time.Time) ([]market.Trade, error)
}

// DayCache stores sampled trade days between runs.
type DayCache interface {
	Get(symbol, date string, g tfutils.Granularity) (tradecache.Entry, bool, error)
	Put(symbol, date string, g tfutils.Granularity, e tradecache.Entry) error
}

// Stats describes the most recent load.
type Stats struct {
	RawCount     int     `json:"raw_count"`
	SampledCount int     `json:"sampled_count"`
	Ratio        float64 `json:"ratio"`
	SkippedRows  int     `json:"skipped_rows"`
}

// Manager resolves per-day trade files under a data directory laid out as
// <dir>/<SYMBOL>/trades-<YYYY-MM-DD>.csv.
type Manager struct {
	dataDir     string
	granularity tfutils.Granularity
	loader      *CSVLoader
	cache       DayCache
	logger      *zap.Logger
	stats       Stats
}

type Option func(*Manager)

// WithCache makes LoadDay consult c before parsing CSV files.
func WithCache(c DayCache) Option {
	return func(m *Manager) { m.cache = c }
}

// WithGranularity sets the sampling used by Trades.
func WithGranularity(g tfutils.Granularity) Option {
	return func(m *Manager) { m.granularity = g }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(dataDir string, opts ...Option) *Manager {
	m := &Manager{
		dataDir:     dataDir,
		granularity: tfutils.PerMinute,
		loader:      NewCSVLoader(),
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) FilePath(symbol, date string) string {
	return filepath.Join(m.dataDir, strings.ToUpper(symbol), "trades-"+date+".csv")
}

func (m *Manager) HasData(symbol, date string) bool {
	info, err := os.Stat(m.FilePath(symbol, date))
	return err == nil && !info.IsDir()
}

// LoadDay loads and samples one day of trades. A missing file yields an error
// wrapping ErrNoData with a download hint. A cached day is served only while
// the file still has the size and modification time it was parsed at, or when
// the file is gone.
func (m *Manager) LoadDay(ctx context.Context, symbol, date string, g tfutils.Granularity) ([]market.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	path := m.FilePath(symbol, date)

	info, err := os.Stat(path)
	haveFile := err == nil && !info.IsDir()

	if m.cache != nil {
		e, ok, err := m.cache.Get(symbol, date, g)
		switch {
		case err != nil:
			m.logger.Warn("DataManager | cache read failed", zap.String("symbol", symbol), zap.String("date", date), zap.Error(err))
		case !ok:
		case haveFile && !e.Matches(info.Size(), info.ModTime().UnixNano()):
			m.logger.Debug("DataManager | cache entry stale", zap.String("symbol", symbol), zap.String("date", date))
		default:
			m.setStats(e.RawCount, len(e.Trades), e.SkippedRows)
			m.logger.Debug("DataManager | cache hit", zap.String("symbol", symbol), zap.String("date", date))
			return e.Trades, nil
		}
	}

	if !haveFile {
		return nil, fmt.Errorf("%w: %s\n\nTo download: visit https://data.binance.vision/?prefix=data/spot/daily/trades/%s/"+
			"\nOr run: wget https://data.binance.vision/data/spot/daily/trades/%s/%s-trades-%s.zip",
			ErrNoData, path, symbol, symbol, symbol, date)
	}

	raw, err := m.loader.Load(path)
	if err != nil {
		return nil, err
	}
	sampled := Sample(raw, g)
	skipped := m.loader.SkippedRows()
	m.setStats(len(raw), len(sampled), skipped)

	m.logger.Info("DataManager | loaded trades",
		zap.String("symbol", symbol),
		zap.String("date", date),
		zap.String("granularity", string(g)),
		zap.Int("raw", len(raw)),
		zap.Int("sampled", len(sampled)),
		zap.Int("skipped", skipped),
	)

	if m.cache != nil {
		e := tradecache.Entry{
			RawCount:      len(raw),
			SkippedRows:   skipped,
			SourceSize:    info.Size(),
			SourceModTime: info.ModTime().UnixNano(),
			Trades:        sampled,
		}
		if err := m.cache.Put(symbol, date, g, e); err != nil {
			m.logger.Warn("DataManager | cache write failed", zap.Error(err))
		}
	}
	return sampled, nil
}

// LoadRange loads every available day from 'from' to 'to' inclusive, skipping
// days without a file. It fails with ErrNoData only when no day is available.
func (m *Manager) LoadRange(ctx context.Context, symbol string, from, to time.Time, g tfutils.Granularity) ([]market.Trade, error) {
	var (
		out          []market.Trade
		raw, skipped int
		found        bool
	)
	for _, date := range tfutils.DaysBetween(from, to) {
		day, err := m.LoadDay(ctx, symbol, date, g)
		if errors.Is(err, ErrNoData) {
			m.logger.Info("DataManager | no data available", zap.String("symbol", symbol), zap.String("date", date))
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		raw += m.stats.RawCount
		skipped += m.stats.SkippedRows
		out = append(out, day...)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s between %s and %s", ErrNoData, symbol,
			from.Format(tfutils.DateLayout), to.Format(tfutils.DateLayout))
	}
	m.setStats(raw, len(out), skipped)
	return out, nil
}

// Trades implements Source over whole days using the configured granularity.
func (m *Manager) Trades(ctx context.Context, symbol string, from, to time.Time) ([]market.Trade, error) {
	return m.LoadRange(ctx, symbol, from, to, m.granularity)
}

func (m *Manager) LastLoadStats() Stats { return m.stats }

func (m *Manager) setStats(raw, sampled, skipped int) {
	m.stats = Stats{RawCount: raw, SampledCount: sampled, SkippedRows: skipped}
	if raw > 0 {
		m.stats.Ratio = float64(sampled) / float64(raw)
	}
}

// Sample keeps the first trade of every time bucket. Raw returns the input
// unchanged. The bucket tracker starts at 0, so a trade in bucket 0 is only
// kept if an earlier trade moved the tracker off 0.
func Sample(trades []market.Trade, g tfutils.Granularity) []market.Trade {
	if g == tfutils.Raw || len(trades) == 0 {
		return trades
	}
	out := make([]market.Trade, 0, len(trades)/4+1)
	var last uint64
	for _, t := range trades {
		b := g.Bucket(t.Timestamp)
		if b != last {
			out = append(out, t)
			last = b
		}
	}
	return out
}

var _ Source = (*Manager)(nil)

type sampled struct {
	src Source
	g   tfutils.Granularity
}

// Sampled wraps src so that its trades are sampled with g.
func Sampled(src Source, g tfutils.Granularity) Source {
	return sampled{src: src, g: g}
}

func (s sampled) Trades(ctx context.Context, symbol string, from, to time.Time) ([]market.Trade, error) {
	out, err := s.src.Trades(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	return Sample(out, s.g), nil
}
