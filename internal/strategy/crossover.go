package strategy

import (
	"github.com/amirphl/signalforge/internal/indicator"
	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/order"
)

// Crossover trades a fast/slow SMA cross over trade prices: a market buy on a
// bullish cross while flat, a market sell on a bearish cross while long.
// At most one order is in flight at a time.
type Crossover struct {
	FastPeriod int
	SlowPeriod int
	Quantity   market.Quantity

	fast indicator.Indicator
	slow indicator.Indicator
	exec order.ExecutionModel

	lastDiff float64
	primed   bool
	pending  bool
	position market.Quantity

	Signals int
}

func NewCrossover(fast, slow int, qty market.Quantity) *Crossover {
	return &Crossover{
		FastPeriod: fast,
		SlowPeriod: slow,
		Quantity:   qty,
		fast:       indicator.NewRollingSMA(fast),
		slow:       indicator.NewRollingSMA(slow),
	}
}

func (s *Crossover) Name() string { return "SMA Crossover" }

func (s *Crossover) Initialize(exec order.ExecutionModel) { s.exec = exec }

func (s *Crossover) OnTrade(t market.Trade) {
	s.fast.Add(t.Price)
	s.slow.Add(t.Price)
	if !s.slow.Ready() {
		return
	}

	diff := s.fast.Value() - s.slow.Value()
	if !s.primed {
		s.lastDiff, s.primed = diff, true
		return
	}
	prev := s.lastDiff
	s.lastDiff = diff

	if s.pending || s.exec == nil {
		return
	}
	switch {
	case prev <= 0 && diff > 0 && s.position == 0:
		s.submit(market.Bid)
	case prev >= 0 && diff < 0 && s.position > 0:
		s.submit(market.Ask)
	}
}

func (s *Crossover) submit(side market.Side) {
	s.exec.Submit(order.Intent{Side: side, Type: order.Market, Quantity: s.Quantity})
	s.pending = true
	s.Signals++
}

func (s *Crossover) OnFill(f order.Fill) {
	s.position += f.Signed()
	s.pending = false
}

func (s *Crossover) Finalize() {}

// Position returns the net quantity the strategy believes it holds.
func (s *Crossover) Position() market.Quantity { return s.position }
