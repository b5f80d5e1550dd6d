// Package exchange
package exchange

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/orderbook"
)

// Exchange is the read-only market data surface used to seed backtests.
type Exchange interface {
	Name() string
	// FetchTrades returns the most recent public trades, oldest first.
	FetchTrades(ctx context.Context, symbol string) ([]market.Trade, error)
	// FetchDepth returns the current order book snapshot.
	FetchDepth(ctx context.Context, symbol string) (Depth, error)
}

// Depth is an order book snapshot, best levels first.
type Depth struct {
	Bids []orderbook.Level `json:"bids"`
	Asks []orderbook.Level `json:"asks"`
}

// Apply replaces the contents of book with the snapshot.
func (d Depth) Apply(book *orderbook.OrderBook) {
	book.Clear()
	for _, l := range d.Bids {
		book.SetLevel(market.Bid, l.Price, l.Quantity)
	}
	for _, l := range d.Asks {
		book.SetLevel(market.Ask, l.Price, l.Quantity)
	}
}

var errRetriesExhausted = errors.New("all retry attempts failed")

// retry wraps a function with retry logic for transient errors, using exponential backoff and error logging.
func retry(ctx context.Context, logger *zap.Logger, attempts int, delay time.Duration, fn func() error) error {
	backoff := delay
	var last error
	for i := 1; i <= attempts; i++ {
		last = fn()
		if last == nil {
			return nil
		}
		if i == attempts {
			break
		}
		logger.Warn("Exchange | retry attempt failed",
			zap.Int("attempt", i), zap.Int("attempts", attempts), zap.Duration("backoff", backoff), zap.Error(last))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		// Exponential backoff, but cap at 5 minutes
		backoff = min(backoff*2, 5*time.Minute)
	}
	return errors.Join(errRetriesExhausted, last)
}

// NormalizeSymbol converts "btc-usdt" style symbols to the exchange form "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}
