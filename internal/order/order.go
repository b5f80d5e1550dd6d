// Package order
package order

import (
	"fmt"

	"github.com/amirphl/signalforge/internal/market"
)

// ID identifies an order submitted to an execution model. IDs start at 1 and
// increase strictly within a single model instance; 0 is never issued.
type ID = uint64

// Type of an order.
type Type uint8

const (
	Market Type = iota
	Limit
)

func (t Type) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Intent is what a strategy asks the execution model to do.
// LimitPrice is ignored for market orders.
type Intent struct {
	Side       market.Side     `json:"side"`
	Type       Type            `json:"type"`
	LimitPrice market.Price    `json:"limit_price"`
	Quantity   market.Quantity `json:"quantity"`
}

// Fill is an execution report. Fills are always complete: Quantity equals the
// quantity of the originating intent.
type Fill struct {
	OrderID  ID              `json:"order_id"`
	Side     market.Side     `json:"side"`
	Price    market.Price    `json:"price"`
	Quantity market.Quantity `json:"quantity"`
}

// Signed returns the position delta of the fill: +qty for bids, -qty for asks.
func (f Fill) Signed() market.Quantity {
	if f.Side == market.Bid {
		return f.Quantity
	}
	return -f.Quantity
}

// Open is a resting order awaiting a matching trade.
type Open struct {
	ID     ID     `json:"id"`
	Intent Intent `json:"intent"`
}

// ExecutionModel accepts intents, advances on trade prints and emits fills.
type ExecutionModel interface {
	// Submit registers an order and returns its id. It never fills synchronously.
	Submit(in Intent) ID

	// OnTick evaluates open orders against the market view the model reads from.
	OnTick()

	// PollFill pops the oldest pending fill. ok is false when none is pending.
	PollFill() (Fill, bool)
}
