package trades

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/tfutils"
)

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "btcusdt")
	assert.Empty(t, w.Path())

	// 2024-01-15 00:00:00 UTC
	const base = uint64(1705276800000)
	rows := []Row{
		{Trade: market.Trade{ID: 1, Price: 4250050, Timestamp: base + 1000}, Quantity: decimal.RequireFromString("0.5")},
		{Trade: market.Trade{ID: 2, Price: 4250100, Timestamp: base + 2000}, Quantity: decimal.RequireFromString("0.25"), BuyerMaker: true},
	}
	for _, r := range rows {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "BTCUSDT", "trades-2024-01-15.csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "trade_id,price,qty,quote_qty,time,is_buyer_maker", lines[0])
	assert.Equal(t, "1,42500.50,0.5,21250.25,1705276801000,false", lines[1])

	m := NewManager(dir)
	got, err := m.LoadDay(context.Background(), "BTCUSDT", "2024-01-15", tfutils.Raw)
	require.NoError(t, err)
	assert.Equal(t, []market.Trade{rows[0].Trade, rows[1].Trade}, got)
}

func TestWriter_AppendsAndRollsOver(t *testing.T) {
	dir := t.TempDir()
	const base = uint64(1705276800000)

	w := NewWriter(dir, "BTCUSDT")
	require.NoError(t, w.Write(Row{Trade: market.Trade{ID: 1, Price: 100, Timestamp: base}, Quantity: decimal.NewFromInt(1)}))
	require.NoError(t, w.Close())

	// Reopening appends without a second header
	w = NewWriter(dir, "BTCUSDT")
	require.NoError(t, w.Write(Row{Trade: market.Trade{ID: 2, Price: 101, Timestamp: base + 1}, Quantity: decimal.NewFromInt(1)}))
	require.NoError(t, w.Write(Row{Trade: market.Trade{ID: 3, Price: 102, Timestamp: base + 86_400_000}, Quantity: decimal.NewFromInt(1)}))
	assert.Equal(t, filepath.Join(dir, "BTCUSDT", "trades-2024-01-16.csv"), w.Path())
	require.NoError(t, w.Close())

	loader := NewCSVLoader()
	day1, err := loader.Load(filepath.Join(dir, "BTCUSDT", "trades-2024-01-15.csv"))
	require.NoError(t, err)
	assert.Len(t, day1, 2)
	assert.Zero(t, loader.SkippedRows())

	day2, err := loader.Load(filepath.Join(dir, "BTCUSDT", "trades-2024-01-16.csv"))
	require.NoError(t, err)
	require.Len(t, day2, 1)
	assert.Equal(t, uint64(3), day2[0].ID)
}
