package orderbook

import "github.com/amirphl/signalforge/internal/market"

// View exposes an OrderBook plus the last trade print as a market.MarketView.
// The top of book is only available when both sides have at least one level.
type View struct {
	book    *OrderBook
	hasLast bool
	last    market.Price
}

func NewView(book *OrderBook) *View {
	return &View{book: book}
}

func (v *View) Book() *OrderBook { return v.book }

// OnTrade records a trade print. The book itself is left untouched.
func (v *View) OnTrade(p market.Price) {
	v.last = p
	v.hasLast = true
}

func (v *View) HasTop() bool            { return v.book.HasBid() && v.book.HasAsk() }
func (v *View) BestBid() market.Price   { return v.book.BestBid() }
func (v *View) BestAsk() market.Price   { return v.book.BestAsk() }
func (v *View) HasLast() bool           { return v.hasLast }
func (v *View) LastPrice() market.Price { return v.last }

var _ market.MarketView = (*View)(nil)
