package tradecache

import (
	"testing"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/tfutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := openTestCache(t)

	_, ok, err := c.Get("BTCUSDT", "2024-01-15", tfutils.PerMinute)
	require.NoError(t, err)
	assert.False(t, ok)

	want := Entry{
		RawCount:      10,
		SkippedRows:   2,
		SourceSize:    4096,
		SourceModTime: 1705276800123456789,
		Trades: []market.Trade{
			{ID: 1000, Price: 4250000, Timestamp: 1640000000000},
			{ID: 1060, Price: -5, Timestamp: 1640000060000},
		},
	}
	require.NoError(t, c.Put("BTCUSDT", "2024-01-15", tfutils.PerMinute, want))

	got, ok, err := c.Get("BTCUSDT", "2024-01-15", tfutils.PerMinute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok, err = c.Get("BTCUSDT", "2024-01-15", tfutils.Raw)
	require.NoError(t, err)
	assert.False(t, ok, "granularity is part of the key")
}

func TestCache_EmptyDay(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put("ETHUSDT", "2024-01-15", tfutils.Raw, Entry{}))

	got, ok, err := c.Get("ETHUSDT", "2024-01-15", tfutils.Raw)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, got.RawCount)
	assert.Empty(t, got.Trades)
}

func TestCache_Delete(t *testing.T) {
	c := openTestCache(t)
	e := Entry{RawCount: 1, Trades: []market.Trade{{ID: 1, Price: 1, Timestamp: 1}}}
	require.NoError(t, c.Put("BTCUSDT", "2024-01-15", tfutils.Raw, e))
	require.NoError(t, c.Put("BTCUSDT", "2024-01-15", tfutils.PerHour, e))
	require.NoError(t, c.Put("BTCUSDT", "2024-01-16", tfutils.Raw, e))

	require.NoError(t, c.Delete("BTCUSDT", "2024-01-15"))

	for _, g := range []tfutils.Granularity{tfutils.Raw, tfutils.PerHour} {
		_, ok, err := c.Get("BTCUSDT", "2024-01-15", g)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	_, ok, err := c.Get("BTCUSDT", "2024-01-16", tfutils.Raw)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEntry_Matches(t *testing.T) {
	e := Entry{SourceSize: 100, SourceModTime: 5}
	assert.True(t, e.Matches(100, 5))
	assert.False(t, e.Matches(101, 5), "file grew")
	assert.False(t, e.Matches(100, 6), "file rewritten")
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := decode([]byte{entryVersion, 0x80})
	assert.ErrorIs(t, err, errCorrupt)

	_, err = decode(nil)
	assert.ErrorIs(t, err, errCorrupt)

	// Entries written without a version byte are rejected.
	_, err = decode([]byte{0x01, 0x00})
	assert.ErrorIs(t, err, errCorrupt)

	b := encode(Entry{RawCount: 2, Trades: []market.Trade{{ID: 1, Price: 2, Timestamp: 3}}})
	_, err = decode(b[:len(b)-1])
	assert.ErrorIs(t, err, errCorrupt)
}
