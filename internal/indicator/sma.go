package indicator

import "fmt"

// RollingSMA keeps a streaming average of the last Period tick prices in a
// ring buffer.
type RollingSMA struct {
	window []int64
	next   int
	filled int
	sum    int64
}

// NewRollingSMA returns an average over period values. A period below 1 is
// treated as 1.
func NewRollingSMA(period int) *RollingSMA {
	if period <= 0 {
		period = 1
	}
	return &RollingSMA{window: make([]int64, period)}
}

func (r *RollingSMA) Name() string { return fmt.Sprintf("SMA(%d)", len(r.window)) }

// Add pushes a value, evicting the oldest once the window is full.
func (r *RollingSMA) Add(v int64) {
	if r.filled == len(r.window) {
		r.sum -= r.window[r.next]
	} else {
		r.filled++
	}
	r.window[r.next] = v
	r.sum += v
	r.next = (r.next + 1) % len(r.window)
}

// Ready reports whether a full window has been observed.
func (r *RollingSMA) Ready() bool { return r.filled == len(r.window) }

// Value returns the average of the values in the window, 0 when empty.
func (r *RollingSMA) Value() float64 {
	if r.filled == 0 {
		return 0
	}
	return float64(r.sum) / float64(r.filled)
}

var _ Indicator = (*RollingSMA)(nil)
