package trades

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVLoader_LoadReader(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expected    []market.Trade
		wantSkipped int
	}{
		{
			name: "Valid with header",
			content: "trade_id,price,qty,quote_qty,time,is_buyer_maker\n" +
				"1234567,42500.50,0.025,1062.5125,1640000000000,true\n" +
				"1234568,42501.00,0.100,4250.1000,1640000001000,false\n" +
				"1234569,42499.75,0.050,2124.9875,1640000002000,true\n",
			expected: []market.Trade{
				{ID: 1234567, Price: 4250050, Timestamp: 1640000000000},
				{ID: 1234568, Price: 4250100, Timestamp: 1640000001000},
				{ID: 1234569, Price: 4249975, Timestamp: 1640000002000},
			},
		},
		{
			name:     "Without header",
			content:  "1234567,42500.50,0.025,1062.5125,1640000000000,true\n",
			expected: []market.Trade{{ID: 1234567, Price: 4250050, Timestamp: 1640000000000}},
		},
		{
			name: "Malformed rows are skipped",
			content: "trade_id,price,qty,quote_qty,time,is_buyer_maker\n" +
				"1234567,42500.50,0.025,1062.5125,1640000000000,true\n" +
				"invalid,data,here\n" +
				"1234568,42501.00,0.100,4250.1000,1640000001000,false\n" +
				"1234569,not_a_price,0.050,2124.9875,1640000002000,true\n" +
				"1234570,42502.00,0.075,3187.65,1640000003000,false\n",
			expected: []market.Trade{
				{ID: 1234567, Price: 4250050, Timestamp: 1640000000000},
				{ID: 1234568, Price: 4250100, Timestamp: 1640000001000},
				{ID: 1234570, Price: 4250200, Timestamp: 1640000003000},
			},
			wantSkipped: 2,
		},
		{
			name:    "Empty lines are ignored",
			content: "\n1,100.00,1,100,1000,true\n\n\n2,101.00,1,101,2000,true\n",
			expected: []market.Trade{
				{ID: 1, Price: 10000, Timestamp: 1000},
				{ID: 2, Price: 10100, Timestamp: 2000},
			},
		},
		{
			name: "Price precision",
			content: "1,100.00,1,1,1,true\n" +
				"2,100.01,1,1,1,true\n" +
				"3,100.99,1,1,1,true\n" +
				"4,0.01,1,1,1,true\n" +
				"5,99999.99,1,1,1,true\n",
			expected: []market.Trade{
				{ID: 1, Price: 10000, Timestamp: 1},
				{ID: 2, Price: 10001, Timestamp: 1},
				{ID: 3, Price: 10099, Timestamp: 1},
				{ID: 4, Price: 1, Timestamp: 1},
				{ID: 5, Price: 9999999, Timestamp: 1},
			},
		},
		{name: "Empty input"},
		{name: "Only header", content: "trade_id,price,qty,quote_qty,time,is_buyer_maker\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewCSVLoader()
			got, err := l.LoadReader(strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.wantSkipped, l.SkippedRows())
		})
	}
}

func TestCSVLoader_Load(t *testing.T) {
	t.Run("File not found", func(t *testing.T) {
		_, err := NewCSVLoader().Load(filepath.Join(t.TempDir(), "missing.csv"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("Skipped count resets per load", func(t *testing.T) {
		dir := t.TempDir()
		bad := filepath.Join(dir, "bad.csv")
		good := filepath.Join(dir, "good.csv")
		require.NoError(t, os.WriteFile(bad, []byte("x,y\n"), 0644))
		require.NoError(t, os.WriteFile(good, []byte("1,43256.78,1,1,1,true\n"), 0644))

		l := NewCSVLoader()
		_, err := l.Load(bad)
		require.NoError(t, err)
		assert.Equal(t, 1, l.SkippedRows())

		got, err := l.Load(good)
		require.NoError(t, err)
		assert.Equal(t, 0, l.SkippedRows())
		assert.Equal(t, market.Price(4325678), got[0].Price)
	})
}
