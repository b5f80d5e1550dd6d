package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeOnlyView(t *testing.T) {
	t.Run("Initial state", func(t *testing.T) {
		v := NewTradeOnlyView()
		assert.False(t, v.HasTop())
		assert.False(t, v.HasLast())
	})

	t.Run("Single trade", func(t *testing.T) {
		v := NewTradeOnlyView()
		v.OnTrade(100)

		assert.True(t, v.HasTop())
		assert.True(t, v.HasLast())
		assert.Equal(t, Price(100), v.LastPrice())
		assert.Equal(t, Price(100), v.BestBid())
		assert.Equal(t, Price(100), v.BestAsk())
	})

	t.Run("Last trade wins", func(t *testing.T) {
		v := NewTradeOnlyView()
		v.OnTrade(100)
		v.OnTrade(105)
		v.OnTrade(95)

		assert.Equal(t, Price(95), v.LastPrice())
		assert.Equal(t, Price(95), v.BestBid())
		assert.Equal(t, Price(95), v.BestAsk())
	})
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in       string
		expected Price
		wantErr  bool
	}{
		{in: "42500.00", expected: 4250000},
		{in: "42500", expected: 4250000},
		{in: "42500.125", expected: 4250013},
		{in: "42500.124", expected: 4250012},
		{in: "0.01", expected: 1},
		{in: "-1.005", expected: -101},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrice(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTicksConversion(t *testing.T) {
	assert.True(t, decimal.RequireFromString("500").Equal(TicksToCurrency(50000)))
	assert.Equal(t, "42500.00", FormatPrice(4250000))
	assert.Equal(t, "-0.05", FormatPrice(-5))
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("buy")
	require.NoError(t, err)
	assert.Equal(t, Bid, s)

	s, err = ParseSide("ASK")
	require.NoError(t, err)
	assert.Equal(t, Ask, s)

	_, err = ParseSide("long")
	assert.Error(t, err)

	assert.Equal(t, "bid", Bid.String())
	assert.Equal(t, "ask", Ask.String())
}
