package exchange

import (
	"context"
	"fmt"
	"slices"
	"time"

	wallex "github.com/wallexchange/wallex-go"
	"go.uber.org/zap"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/orderbook"
	"github.com/amirphl/signalforge/internal/trades"
)

// wallexClient is the subset of *wallex.Client used here.
type wallexClient interface {
	MarketTrades(symbol string) ([]*wallex.MarketTrade, error)
	MarketOrders(symbol string) ([]*wallex.MarketOrder, []*wallex.MarketOrder, error)
}

type WallexExchange struct {
	client   wallexClient
	logger   *zap.Logger
	attempts int
	delay    time.Duration
}

func NewWallexExchange(apiKey string, logger *zap.Logger) *WallexExchange {
	return &WallexExchange{
		client:   wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		logger:   logger,
		attempts: 3,
		delay:    2 * time.Second,
	}
}

func (w *WallexExchange) Name() string {
	return "wallex"
}

func (w *WallexExchange) FetchTrades(ctx context.Context, symbol string) ([]market.Trade, error) {
	var raw []*wallex.MarketTrade
	err := retry(ctx, w.logger, w.attempts, w.delay, func() error {
		var err error
		raw, err = w.client.MarketTrades(NormalizeSymbol(symbol))
		if err != nil {
			return fmt.Errorf("fetching trades: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("trades failed: %w", err)
	}

	type stamped struct {
		price market.Price
		ts    time.Time
	}
	rows := make([]stamped, 0, len(raw))
	for _, t := range raw {
		if t == nil {
			continue
		}
		p, err := market.ParsePrice(string(t.Price))
		if err != nil {
			w.logger.Warn("Exchange | skipping trade with bad price", zap.String("price", string(t.Price)))
			continue
		}
		rows = append(rows, stamped{price: p, ts: t.Timestamp.UTC()})
	}
	// Wallex lists newest first; replay needs oldest first.
	slices.SortStableFunc(rows, func(a, b stamped) int { return a.ts.Compare(b.ts) })

	// Wallex trades carry no id. Deriving it from the timestamp keeps ids
	// distinct across fetches, and a trade seen by two fetches keeps its id.
	var ids trades.IDAssigner
	out := make([]market.Trade, len(rows))
	for i, r := range rows {
		ms := uint64(r.ts.UnixMilli())
		out[i] = market.Trade{ID: ids.Next(ms), Price: r.price, Timestamp: ms}
	}
	return out, nil
}

// Trades implements trades.Source over the recent trade window, keeping
// trades from the start of 'from' to the end of 'to'.
func (w *WallexExchange) Trades(ctx context.Context, symbol string, from, to time.Time) ([]market.Trade, error) {
	all, err := w.FetchTrades(ctx, symbol)
	if err != nil {
		return nil, err
	}
	lo := uint64(from.UnixMilli())
	hi := uint64(to.Add(24 * time.Hour).UnixMilli())
	out := all[:0:0]
	for _, t := range all {
		if t.Timestamp >= lo && t.Timestamp < hi {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s from wallex", trades.ErrNoData, symbol)
	}
	return out, nil
}

func (w *WallexExchange) FetchDepth(ctx context.Context, symbol string) (Depth, error) {
	var asks, bids []*wallex.MarketOrder
	err := retry(ctx, w.logger, w.attempts, w.delay, func() error {
		var err error
		asks, bids, err = w.client.MarketOrders(NormalizeSymbol(symbol))
		if err != nil {
			return fmt.Errorf("fetching orderbook: %w", err)
		}
		return nil
	})
	if err != nil {
		return Depth{}, fmt.Errorf("orderbook failed: %w", err)
	}
	return Depth{Bids: w.toLevels(bids), Asks: w.toLevels(asks)}, nil
}

func (w *WallexExchange) toLevels(orders []*wallex.MarketOrder) []orderbook.Level {
	out := make([]orderbook.Level, 0, len(orders))
	for _, o := range orders {
		if o == nil {
			continue
		}
		l, err := parseLevel(string(o.Price), string(o.Quantity))
		if err != nil {
			w.logger.Warn("Exchange | skipping depth level", zap.Error(err))
			continue
		}
		out = append(out, l)
	}
	return out
}

var (
	_ Exchange      = (*WallexExchange)(nil)
	_ trades.Source = (*WallexExchange)(nil)
)
