// Package tradecache keeps parsed and sampled trade days in a local Pebble
// store so repeated backtests skip CSV parsing.
package tradecache

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/tfutils"
)

var errCorrupt = errors.New("corrupt cache entry")

// Entry is one cached day: the sampled trades, the raw and skipped row counts
// of the parse they came from, and the size and modification time (unix
// nanoseconds) of the source file at that parse.
type Entry struct {
	RawCount      int
	SkippedRows   int
	SourceSize    int64
	SourceModTime int64
	Trades        []market.Trade
}

// Matches reports whether the entry was built from a file with the given size
// and modification time.
func (e Entry) Matches(size, modTime int64) bool {
	return e.SourceSize == size && e.SourceModTime == modTime
}

type Cache struct {
	db *pebble.DB
}

func Open(path string) (*Cache, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open trade cache: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// keys: t:<SYMBOL>:<YYYY-MM-DD>:<granularity>
func dayKey(symbol, date string, g tfutils.Granularity) []byte {
	return []byte("t:" + symbol + ":" + date + ":" + string(g))
}

func (c *Cache) Put(symbol, date string, g tfutils.Granularity, e Entry) error {
	if err := c.db.Set(dayKey(symbol, date, g), encode(e), pebble.Sync); err != nil {
		return fmt.Errorf("failed to cache %s %s: %w", symbol, date, err)
	}
	return nil
}

// Get returns the cached day, or false when absent.
func (c *Cache) Get(symbol, date string, g tfutils.Granularity) (Entry, bool, error) {
	val, closer, err := c.db.Get(dayKey(symbol, date, g))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("failed to read cache %s %s: %w", symbol, date, err)
	}
	defer closer.Close()

	e, err := decode(val)
	if err != nil {
		return Entry{}, false, fmt.Errorf("%s %s: %w", symbol, date, err)
	}
	return e, true, nil
}

// Delete drops every granularity cached for a day.
func (c *Cache) Delete(symbol, date string) error {
	prefix := []byte("t:" + symbol + ":" + date + ":")
	upper := append([]byte(nil), prefix...)
	upper[len(upper)-1]++
	if err := c.db.DeleteRange(prefix, upper, pebble.Sync); err != nil {
		return fmt.Errorf("failed to evict %s %s: %w", symbol, date, err)
	}
	return nil
}

// entryVersion prefixes every value; entries of another layout fail to decode.
const entryVersion = 2

// value layout: version byte, uvarint raw count, uvarint skipped, varint source
// size, varint source mtime, uvarint n, then n x (uvarint id, varint price, uvarint ts)
func encode(e Entry) []byte {
	buf := make([]byte, 0, 1+5*binary.MaxVarintLen64+len(e.Trades)*3*binary.MaxVarintLen64)
	buf = append(buf, entryVersion)
	buf = binary.AppendUvarint(buf, uint64(e.RawCount))
	buf = binary.AppendUvarint(buf, uint64(e.SkippedRows))
	buf = binary.AppendVarint(buf, e.SourceSize)
	buf = binary.AppendVarint(buf, e.SourceModTime)
	buf = binary.AppendUvarint(buf, uint64(len(e.Trades)))
	for _, t := range e.Trades {
		buf = binary.AppendUvarint(buf, t.ID)
		buf = binary.AppendVarint(buf, t.Price)
		buf = binary.AppendUvarint(buf, t.Timestamp)
	}
	return buf
}

func decode(b []byte) (Entry, error) {
	if len(b) == 0 || b[0] != entryVersion {
		return Entry{}, errCorrupt
	}
	r := reader{b: b[1:]}
	e := Entry{
		RawCount:      int(r.uvarint()),
		SkippedRows:   int(r.uvarint()),
		SourceSize:    r.varint(),
		SourceModTime: r.varint(),
	}
	n := r.uvarint()
	if r.err != nil || n > uint64(len(b)) {
		return Entry{}, errCorrupt
	}
	e.Trades = make([]market.Trade, 0, n)
	for i := uint64(0); i < n; i++ {
		t := market.Trade{ID: r.uvarint(), Price: r.varint(), Timestamp: r.uvarint()}
		if r.err != nil {
			return Entry{}, errCorrupt
		}
		e.Trades = append(e.Trades, t)
	}
	return e, nil
}

type reader struct {
	b   []byte
	err error
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.b)
	if n <= 0 {
		r.err = errCorrupt
		return 0
	}
	r.b = r.b[n:]
	return v
}

func (r *reader) varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.b)
	if n <= 0 {
		r.err = errCorrupt
		return 0
	}
	r.b = r.b[n:]
	return v
}
