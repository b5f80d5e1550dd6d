// Package execution implements execution models that turn trade prints into
// fills for orders submitted by a strategy.
package execution

import (
	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/order"
)

// TradeThrough fills resting orders when the last trade prints through their
// limit. Fills execute at the trade price, never at the limit, and every
// order is filled in full or not at all.
//
// The model reads the view it was built with and never mutates it; the view
// must outlive the model. Not safe for concurrent use.
type TradeThrough struct {
	view   market.MarketView
	nextID order.ID

	open []order.Open

	fills []order.Fill
	head  int

	matched []int
}

func NewTradeThrough(view market.MarketView) *TradeThrough {
	return &TradeThrough{view: view, nextID: 1}
}

func (e *TradeThrough) Submit(in order.Intent) order.ID {
	id := e.nextID
	e.nextID++
	e.open = append(e.open, order.Open{ID: id, Intent: in})
	return id
}

func (e *TradeThrough) OnTick() {
	if !e.view.HasLast() || len(e.open) == 0 {
		return
	}
	last := e.view.LastPrice()

	e.matched = e.matched[:0]
	for i, o := range e.open {
		if !crosses(o.Intent, last) {
			continue
		}
		e.fills = append(e.fills, order.Fill{
			OrderID:  o.ID,
			Side:     o.Intent.Side,
			Price:    last,
			Quantity: o.Intent.Quantity,
		})
		e.matched = append(e.matched, i)
	}
	if len(e.matched) == 0 {
		return
	}

	// Stable compaction: survivors keep their submission order.
	kept := e.open[:0]
	m := 0
	for i, o := range e.open {
		if m < len(e.matched) && e.matched[m] == i {
			m++
			continue
		}
		kept = append(kept, o)
	}
	clear(e.open[len(kept):])
	e.open = kept
}

func crosses(in order.Intent, last market.Price) bool {
	if in.Type == order.Market {
		return true
	}
	if in.Side == market.Bid {
		return last <= in.LimitPrice
	}
	return last >= in.LimitPrice
}

func (e *TradeThrough) PollFill() (order.Fill, bool) {
	if e.head >= len(e.fills) {
		return order.Fill{}, false
	}
	f := e.fills[e.head]
	e.head++
	if e.head == len(e.fills) {
		e.fills = e.fills[:0]
		e.head = 0
	}
	return f, true
}

// OpenOrders returns the number of resting orders.
func (e *TradeThrough) OpenOrders() int { return len(e.open) }

// PendingFills returns the number of fills not yet polled.
func (e *TradeThrough) PendingFills() int { return len(e.fills) - e.head }

// Open returns a copy of the resting orders in submission order.
func (e *TradeThrough) Open() []order.Open {
	out := make([]order.Open, len(e.open))
	copy(out, e.open)
	return out
}

var _ order.ExecutionModel = (*TradeThrough)(nil)
