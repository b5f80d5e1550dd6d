package strategy

import (
	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/order"
)

// Levels rests one limit buy and one limit sell for the whole replay.
type Levels struct {
	BuyPrice  market.Price
	SellPrice market.Price
	Quantity  market.Quantity

	BuyOrder  order.ID
	SellOrder order.ID
	Fills     []order.Fill
}

func NewLevels(buy, sell market.Price, qty market.Quantity) *Levels {
	return &Levels{BuyPrice: buy, SellPrice: sell, Quantity: qty}
}

func (s *Levels) Name() string { return "Levels" }

func (s *Levels) Initialize(exec order.ExecutionModel) {
	s.BuyOrder = exec.Submit(order.Intent{Side: market.Bid, Type: order.Limit, LimitPrice: s.BuyPrice, Quantity: s.Quantity})
	s.SellOrder = exec.Submit(order.Intent{Side: market.Ask, Type: order.Limit, LimitPrice: s.SellPrice, Quantity: s.Quantity})
}

func (s *Levels) OnTrade(market.Trade) {}

func (s *Levels) OnFill(f order.Fill) { s.Fills = append(s.Fills, f) }

func (s *Levels) Finalize() {}
