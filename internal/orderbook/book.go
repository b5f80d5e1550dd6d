// Package orderbook maintains price-level ledgers (price -> resting quantity)
// for both sides of a single market.
package orderbook

import (
	"math"
	"slices"
	"sort"

	"github.com/amirphl/signalforge/internal/market"
)

// Empty-side sentinels. NoBid compares below any real bid and NoAsk above any
// real ask, so crossing and spread checks stay sane with an empty side.
const (
	NoBid market.Price = math.MinInt64
	NoAsk market.Price = math.MaxInt64
)

// Level is a single price level.
type Level struct {
	Price    market.Price    `json:"price"`
	Quantity market.Quantity `json:"quantity"`
}

// ledger keeps prices sorted best-first next to a price->quantity map.
// Every stored quantity is strictly positive.
type ledger struct {
	prices []market.Price
	qty    map[market.Price]market.Quantity
	better func(a, b market.Price) bool
}

func newLedger(better func(a, b market.Price) bool) *ledger {
	return &ledger{
		qty:    make(map[market.Price]market.Quantity),
		better: better,
	}
}

// search returns the index of the first price that is not better than p.
func (l *ledger) search(p market.Price) int {
	return sort.Search(len(l.prices), func(i int) bool {
		return !l.better(l.prices[i], p)
	})
}

func (l *ledger) set(p market.Price, q market.Quantity) {
	if _, ok := l.qty[p]; !ok {
		i := l.search(p)
		l.prices = slices.Insert(l.prices, i, p)
	}
	l.qty[p] = q
}

func (l *ledger) delete(p market.Price) {
	if _, ok := l.qty[p]; !ok {
		return
	}
	delete(l.qty, p)
	i := l.search(p)
	if i < len(l.prices) && l.prices[i] == p {
		l.prices = slices.Delete(l.prices, i, i+1)
	}
}

func (l *ledger) reset() {
	l.prices = l.prices[:0]
	clear(l.qty)
}

// OrderBook holds bid (descending) and ask (ascending) ledgers and caches the
// best price of each side. Not safe for concurrent use.
type OrderBook struct {
	bids *ledger
	asks *ledger

	bestBid market.Price
	bestAsk market.Price
}

func New() *OrderBook {
	return &OrderBook{
		bids:    newLedger(func(a, b market.Price) bool { return a > b }),
		asks:    newLedger(func(a, b market.Price) bool { return a < b }),
		bestBid: NoBid,
		bestAsk: NoAsk,
	}
}

func (b *OrderBook) sideOf(side market.Side) *ledger {
	if side == market.Bid {
		return b.bids
	}
	return b.asks
}

// Clear empties both sides.
func (b *OrderBook) Clear() {
	b.bids.reset()
	b.asks.reset()
	b.updateBestLevels()
}

// SetLevel overwrites the level at price. qty <= 0 removes it.
func (b *OrderBook) SetLevel(side market.Side, price market.Price, qty market.Quantity) {
	l := b.sideOf(side)
	if qty <= 0 {
		l.delete(price)
	} else {
		l.set(price, qty)
	}
	b.updateBestLevels()
}

// AddLevel increments the level at price by delta, creating it if absent.
// delta <= 0 is a no-op.
func (b *OrderBook) AddLevel(side market.Side, price market.Price, delta market.Quantity) {
	if delta <= 0 {
		return
	}
	l := b.sideOf(side)
	l.set(price, l.qty[price]+delta)
	b.updateBestLevels()
}

// RemoveLevel decrements the level at price by delta and deletes the level
// once it reaches zero or below. delta <= 0 and absent levels are no-ops.
func (b *OrderBook) RemoveLevel(side market.Side, price market.Price, delta market.Quantity) {
	if delta <= 0 {
		return
	}
	l := b.sideOf(side)
	q, ok := l.qty[price]
	if !ok {
		return
	}
	if q -= delta; q <= 0 {
		l.delete(price)
	} else {
		l.qty[price] = q
	}
	b.updateBestLevels()
}

func (b *OrderBook) updateBestLevels() {
	b.bestBid = NoBid
	if len(b.bids.prices) > 0 {
		b.bestBid = b.bids.prices[0]
	}
	b.bestAsk = NoAsk
	if len(b.asks.prices) > 0 {
		b.bestAsk = b.asks.prices[0]
	}
}

// BestBid returns the highest bid or NoBid.
func (b *OrderBook) BestBid() market.Price { return b.bestBid }

// BestAsk returns the lowest ask or NoAsk.
func (b *OrderBook) BestAsk() market.Price { return b.bestAsk }

func (b *OrderBook) HasBid() bool { return b.bestBid != NoBid }
func (b *OrderBook) HasAsk() bool { return b.bestAsk != NoAsk }

// LevelQty returns the resting quantity at price, 0 if absent.
func (b *OrderBook) LevelQty(side market.Side, price market.Price) market.Quantity {
	return b.sideOf(side).qty[price]
}

// Levels returns the number of price levels on a side.
func (b *OrderBook) Levels(side market.Side) int {
	return len(b.sideOf(side).prices)
}

// Spread returns best ask minus best bid; false when either side is empty.
func (b *OrderBook) Spread() (market.Price, bool) {
	if !b.HasBid() || !b.HasAsk() {
		return 0, false
	}
	return b.bestAsk - b.bestBid, true
}

// Depth returns up to n levels of a side, best first. n <= 0 returns all levels.
func (b *OrderBook) Depth(side market.Side, n int) []Level {
	l := b.sideOf(side)
	if n <= 0 || n > len(l.prices) {
		n = len(l.prices)
	}
	out := make([]Level, 0, n)
	for _, p := range l.prices[:n] {
		out = append(out, Level{Price: p, Quantity: l.qty[p]})
	}
	return out
}
