package trades

// idWindowMillis bounds how far behind the newest millisecond a late trade
// can arrive and still get a fresh id.
const idWindowMillis = 60_000

// IDAssigner numbers trades from sources that carry no trade id as
// unix_ms*1000 plus the trade's position within its millisecond, so ids sort
// with time and a replayed batch maps onto the same ids. Counters are kept
// per millisecond, so out-of-order trades do not reuse an id. At most 1000
// trades per millisecond get distinct ids. The zero value is ready to use.
type IDAssigner struct {
	counts map[uint64]uint64
	newest uint64
}

// Next returns the id for the next trade stamped ms.
func (a *IDAssigner) Next(ms uint64) uint64 {
	if a.counts == nil {
		a.counts = make(map[uint64]uint64)
	}
	n := a.counts[ms]
	a.counts[ms] = n + 1

	if ms > a.newest {
		a.newest = ms
		a.prune()
	}
	return ms*1000 + n
}

func (a *IDAssigner) prune() {
	if len(a.counts) < 1024 || a.newest < idWindowMillis {
		return
	}
	cutoff := a.newest - idWindowMillis
	for ms := range a.counts {
		if ms < cutoff {
			delete(a.counts, ms)
		}
	}
}
