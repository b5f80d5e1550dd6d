package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/amirphl/signalforge/internal/config"
	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/order"
)

// Strategy reacts to replayed trade prints by submitting orders to an
// execution model and observes the resulting fills.
type Strategy interface {
	Name() string
	Initialize(exec order.ExecutionModel) // Called once before the first trade
	OnTrade(t market.Trade)               // Called after the market view saw t, before matching
	OnFill(f order.Fill)                  // Called for every fill, in FIFO order
	Finalize()                            // Called once after the last trade
}

// New builds the strategy named in cfg.
func New(cfg config.Config) (Strategy, error) {
	switch cfg.Strategy {
	case "levels":
		buy := market.PriceToTicks(decimal.NewFromFloat(cfg.BuyPrice))
		sell := market.PriceToTicks(decimal.NewFromFloat(cfg.SellPrice))
		return NewLevels(buy, sell, cfg.OrderQuantity), nil
	case "crossover":
		return NewCrossover(cfg.FastPeriod, cfg.SlowPeriod, cfg.OrderQuantity), nil
	default:
		return nil, fmt.Errorf("unknown strategy: %q", cfg.Strategy)
	}
}
