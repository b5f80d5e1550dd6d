package position

import (
	"testing"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/order"
	"github.com/stretchr/testify/assert"
)

func buy(price market.Price, qty market.Quantity) order.Fill {
	return order.Fill{Side: market.Bid, Price: price, Quantity: qty}
}

func sell(price market.Price, qty market.Quantity) order.Fill {
	return order.Fill{Side: market.Ask, Price: price, Quantity: qty}
}

func TestTracker_InitialState(t *testing.T) {
	pt := NewTracker()

	assert.Equal(t, market.Quantity(0), pt.Position())
	assert.Equal(t, 0.0, pt.RealizedPnL())
	assert.Equal(t, 0.0, pt.UnrealizedPnL(4250000))
	assert.Equal(t, 0.0, pt.TotalPnL(4250000))
}

func TestTracker_Long(t *testing.T) {
	t.Run("Open", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(buy(4250000, 1))

		assert.Equal(t, market.Quantity(1), pt.Position())
		assert.Equal(t, market.Price(4250000), pt.AvgEntryPrice())
		assert.Equal(t, 0.0, pt.RealizedPnL())
	})

	t.Run("Unrealized", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(buy(4250000, 1))

		assert.InDelta(t, 500.0, pt.UnrealizedPnL(4300000), 1e-9)
		assert.InDelta(t, -500.0, pt.UnrealizedPnL(4200000), 1e-9)
	})

	t.Run("Close", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(buy(4250000, 1))
		pt.OnFill(sell(4300000, 1))

		assert.Equal(t, market.Quantity(0), pt.Position())
		assert.InDelta(t, 500.0, pt.RealizedPnL(), 1e-9)
		assert.Equal(t, 0.0, pt.UnrealizedPnL(4300000))
		assert.Equal(t, market.Price(0), pt.AvgEntryPrice())
	})

	t.Run("Partial close", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(buy(4250000, 2))
		assert.Equal(t, market.Quantity(2), pt.Position())

		pt.OnFill(sell(4300000, 1))
		assert.Equal(t, market.Quantity(1), pt.Position())
		assert.InDelta(t, 500.0, pt.RealizedPnL(), 1e-9)
		assert.InDelta(t, 500.0, pt.UnrealizedPnL(4300000), 1e-9)
		assert.InDelta(t, 1000.0, pt.TotalPnL(4300000), 1e-9)
	})

	t.Run("Average entry", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(buy(4200000, 1))
		pt.OnFill(buy(4400000, 1))

		assert.Equal(t, market.Price(4300000), pt.AvgEntryPrice())
		assert.Equal(t, market.Quantity(2), pt.Position())
	})

	t.Run("Weighted average entry", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(buy(100, 3))
		pt.OnFill(buy(200, 1))

		assert.Equal(t, market.Price(125), pt.AvgEntryPrice())
	})
}

// Realized PnL must add up across closes; an overwrite would leave only the
// last close's contribution.
func TestTracker_RealizedAccumulates(t *testing.T) {
	pt := NewTracker()
	pt.OnFill(buy(4250000, 3))
	pt.OnFill(sell(4300000, 1))
	assert.InDelta(t, 500.0, pt.RealizedPnL(), 1e-9)

	pt.OnFill(sell(4350000, 1))
	assert.InDelta(t, 1500.0, pt.RealizedPnL(), 1e-9)

	pt.OnFill(sell(4200000, 1))
	assert.InDelta(t, 1000.0, pt.RealizedPnL(), 1e-9)
	assert.Equal(t, market.Quantity(0), pt.Position())

	assert.Equal(t, 3, pt.ClosedTrades())
	assert.Equal(t, 2, pt.Wins())
	assert.Equal(t, 1, pt.Losses())
}

func TestTracker_Short(t *testing.T) {
	t.Run("Open and mark", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(sell(4300000, 2))

		assert.Equal(t, market.Quantity(-2), pt.Position())
		assert.Equal(t, market.Price(4300000), pt.AvgEntryPrice())
		assert.InDelta(t, 1000.0, pt.UnrealizedPnL(4250000), 1e-9)
		assert.InDelta(t, -1000.0, pt.UnrealizedPnL(4350000), 1e-9)
	})

	t.Run("Add to short", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(sell(200, 1))
		pt.OnFill(sell(100, 1))

		assert.Equal(t, market.Quantity(-2), pt.Position())
		assert.Equal(t, market.Price(150), pt.AvgEntryPrice())
		assert.Equal(t, 0.0, pt.RealizedPnL())
	})

	t.Run("Cover", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(sell(4300000, 2))
		pt.OnFill(buy(4250000, 2))

		assert.Equal(t, market.Quantity(0), pt.Position())
		assert.InDelta(t, 1000.0, pt.RealizedPnL(), 1e-9)
	})
}

func TestTracker_Flip(t *testing.T) {
	t.Run("Long to short", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(buy(10000, 2))
		pt.OnFill(sell(11000, 5))

		assert.Equal(t, market.Quantity(-3), pt.Position())
		assert.Equal(t, market.Price(11000), pt.AvgEntryPrice())
		assert.InDelta(t, 20.0, pt.RealizedPnL(), 1e-9)
		assert.InDelta(t, 30.0, pt.UnrealizedPnL(10000), 1e-9)
	})

	t.Run("Short to long", func(t *testing.T) {
		pt := NewTracker()
		pt.OnFill(sell(10000, 1))
		pt.OnFill(buy(10500, 3))

		assert.Equal(t, market.Quantity(2), pt.Position())
		assert.Equal(t, market.Price(10500), pt.AvgEntryPrice())
		assert.InDelta(t, -5.0, pt.RealizedPnL(), 1e-9)
		assert.Equal(t, 1, pt.Losses())
	})
}

func TestTracker_OpeningFillsDoNotRealize(t *testing.T) {
	pt := NewTracker()
	pt.OnFill(buy(100, 1))
	pt.OnFill(buy(300, 1))
	pt.OnFill(buy(50, 4))

	assert.Equal(t, 0.0, pt.RealizedPnL())
	assert.Equal(t, 0, pt.ClosedTrades())
}

func TestTracker_FlatUnrealizedIsZero(t *testing.T) {
	pt := NewTracker()
	pt.OnFill(buy(4250000, 1))
	pt.OnFill(sell(4250000, 1))

	for _, p := range []market.Price{0, 1, 4250000, -100, 1 << 40} {
		assert.Equal(t, 0.0, pt.UnrealizedPnL(p))
	}
}

func TestTracker_Snapshot(t *testing.T) {
	pt := NewTracker()
	assert.Equal(t, State{}, pt.Snapshot(100))

	pt.OnFill(buy(10000, 1))
	pt.OnFill(sell(10200, 1)) // +2
	pt.OnFill(buy(10000, 1))
	pt.OnFill(sell(9900, 1)) // -1
	pt.OnFill(buy(10000, 1))

	s := pt.Snapshot(10100)
	assert.Equal(t, market.Quantity(1), s.Position)
	assert.InDelta(t, 1.0, s.RealizedPnL, 1e-9)
	assert.InDelta(t, 1.0, s.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 2.0, s.TotalPnL, 1e-9)
	assert.Equal(t, 2, s.ClosedTrades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 50.0, s.WinRate, 1e-9)
	assert.InDelta(t, 2.0, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.5, s.MeanPnL, 1e-9)
	assert.InDelta(t, 1.5, s.StdPnL, 1e-9)
	assert.InDelta(t, 0.5, s.Expectancy, 1e-9)
}
