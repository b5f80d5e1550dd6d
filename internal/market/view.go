package market

// MarketView is a read-only snapshot of the current market state.
// BestBid/BestAsk are valid only when HasTop is true, LastPrice only when HasLast is true.
type MarketView interface {
	HasTop() bool
	BestBid() Price
	BestAsk() Price
	HasLast() bool
	LastPrice() Price
}

// TradeOnlyView approximates the top of book with the last trade print.
type TradeOnlyView struct {
	hasLast bool
	last    Price
}

func NewTradeOnlyView() *TradeOnlyView {
	return &TradeOnlyView{}
}

// OnTrade records a trade print.
func (v *TradeOnlyView) OnTrade(p Price) {
	v.last = p
	v.hasLast = true
}

func (v *TradeOnlyView) HasTop() bool     { return v.hasLast }
func (v *TradeOnlyView) BestBid() Price   { return v.last }
func (v *TradeOnlyView) BestAsk() Price   { return v.last }
func (v *TradeOnlyView) HasLast() bool    { return v.hasLast }
func (v *TradeOnlyView) LastPrice() Price { return v.last }

var _ MarketView = (*TradeOnlyView)(nil)
