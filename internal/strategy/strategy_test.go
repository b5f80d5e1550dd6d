package strategy

import (
	"testing"

	"github.com/amirphl/signalforge/internal/config"
	"github.com/amirphl/signalforge/internal/execution"
	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replay drives s the same way the backtest runner does.
func replay(s Strategy, prices ...market.Price) []order.Fill {
	view := market.NewTradeOnlyView()
	exec := execution.NewTradeThrough(view)
	s.Initialize(exec)

	var fills []order.Fill
	for i, p := range prices {
		view.OnTrade(p)
		s.OnTrade(market.Trade{ID: uint64(i + 1), Price: p, Timestamp: uint64(i) * 1000})
		exec.OnTick()
		for {
			f, ok := exec.PollFill()
			if !ok {
				break
			}
			fills = append(fills, f)
			s.OnFill(f)
		}
	}
	s.Finalize()
	return fills
}

func TestNew(t *testing.T) {
	cfg := config.DefaultTestConfig()

	s, err := New(cfg)
	require.NoError(t, err)
	lv, ok := s.(*Levels)
	require.True(t, ok)
	assert.Equal(t, market.Price(4200000), lv.BuyPrice)
	assert.Equal(t, market.Price(4400000), lv.SellPrice)
	assert.Equal(t, market.Quantity(1), lv.Quantity)

	cfg.Strategy = "crossover"
	s, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "SMA Crossover", s.Name())

	cfg.Strategy = "unknown"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestLevels(t *testing.T) {
	s := NewLevels(4200000, 4400000, 1)
	fills := replay(s, 4300000, 4250000, 4190000, 4300000, 4410000, 4100000)

	require.Len(t, fills, 2)
	assert.Equal(t, s.BuyOrder, fills[0].OrderID)
	assert.Equal(t, market.Price(4190000), fills[0].Price)
	assert.Equal(t, s.SellOrder, fills[1].OrderID)
	assert.Equal(t, market.Price(4410000), fills[1].Price)
	assert.Equal(t, fills, s.Fills)
}

func TestLevels_NeverReached(t *testing.T) {
	s := NewLevels(4200000, 4400000, 1)
	fills := replay(s, 4300000, 4310000, 4290000)
	assert.Empty(t, fills)
}

func TestCrossover(t *testing.T) {
	s := NewCrossover(2, 3, 5)
	fills := replay(s, 100, 100, 100, 90, 120, 80, 60)

	require.Len(t, fills, 2)
	assert.Equal(t, market.Bid, fills[0].Side)
	assert.Equal(t, market.Price(120), fills[0].Price)
	assert.Equal(t, market.Quantity(5), fills[0].Quantity)
	assert.Equal(t, market.Ask, fills[1].Side)
	assert.Equal(t, market.Price(60), fills[1].Price)
	assert.Equal(t, market.Quantity(0), s.Position())
	assert.Equal(t, 2, s.Signals)
}

func TestCrossover_NoSignalBeforeWarmup(t *testing.T) {
	s := NewCrossover(2, 5, 1)
	fills := replay(s, 100, 200, 50, 300)
	assert.Empty(t, fills)
	assert.Equal(t, 0, s.Signals)
}

func TestCrossover_NoShortFromFlat(t *testing.T) {
	s := NewCrossover(1, 2, 1)
	fills := replay(s, 100, 100, 90, 80, 70)
	assert.Empty(t, fills, "bearish crosses while flat do not open shorts")
}
