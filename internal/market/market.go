// Package market defines the fixed-point price model, trade prints and
// read-only market views shared by the simulator.
package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is a fixed-point price in ticks (PriceScale ticks per currency unit).
type Price = int64

// Quantity is a fixed-point quantity in units.
type Quantity = int64

// PriceScale is the number of ticks per currency unit (2 decimal places).
const PriceScale = 100

// Side of a book level, order or fill.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// ParseSide accepts "bid"/"buy" and "ask"/"sell".
func ParseSide(s string) (Side, error) {
	switch s {
	case "bid", "buy", "BID", "BUY":
		return Bid, nil
	case "ask", "sell", "ASK", "SELL":
		return Ask, nil
	default:
		return Bid, fmt.Errorf("unknown side: %q", s)
	}
}

// Trade represents a single market print.
type Trade struct {
	ID        uint64 `json:"id"`
	Price     Price  `json:"price"`     // ticks
	Timestamp uint64 `json:"timestamp"` // unix milliseconds
}

// PriceToTicks converts a decimal currency price to ticks, rounding half away from zero.
func PriceToTicks(p decimal.Decimal) Price {
	return p.Mul(decimal.NewFromInt(PriceScale)).Round(0).IntPart()
}

// ParsePrice parses a decimal string such as "42500.125" into ticks.
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	return PriceToTicks(d), nil
}

// TicksToCurrency converts a tick amount to currency units.
func TicksToCurrency(t int64) decimal.Decimal {
	return decimal.NewFromInt(t).Div(decimal.NewFromInt(PriceScale))
}

// FormatPrice renders ticks as a currency string, e.g. 4250000 -> "42500.00".
func FormatPrice(p Price) string {
	return TicksToCurrency(p).StringFixed(2)
}
