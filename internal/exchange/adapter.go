// Package exchange adapter
package exchange

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/orderbook"
)

// DepthQuantityScale converts fractional exchange quantities to integer book
// units (1e-8 of a coin).
const DepthQuantityScale = 100_000_000

// WallexTrade is a trade message from the Wallex stream.
type WallexTrade struct {
	IsBuyOrder bool      `json:"isBuyOrder"`
	Quantity   string    `json:"quantity"`
	Price      string    `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
}

// ToTrade converts the message to a replayable trade with the given id.
func (w WallexTrade) ToTrade(id uint64) (market.Trade, error) {
	p, err := market.ParsePrice(w.Price)
	if err != nil {
		return market.Trade{}, err
	}
	return market.Trade{ID: id, Price: p, Timestamp: uint64(w.Timestamp.UTC().UnixMilli())}, nil
}

func parseLevel(price, qty string) (orderbook.Level, error) {
	p, err := market.ParsePrice(price)
	if err != nil {
		return orderbook.Level{}, err
	}
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return orderbook.Level{}, fmt.Errorf("parse quantity %q: %w", qty, err)
	}
	return orderbook.Level{
		Price:    p,
		Quantity: q.Mul(decimal.NewFromInt(DepthQuantityScale)).Round(0).IntPart(),
	}, nil
}
