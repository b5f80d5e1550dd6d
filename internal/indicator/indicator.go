package indicator

// Indicator is the interface for streaming technical indicators fed one tick
// price at a time.
type Indicator interface {
	Name() string
	Add(v int64)
	// Ready reports whether enough values have been seen for Value to be meaningful.
	Ready() bool
	Value() float64
}
