package tfutils

import (
	"fmt"
	"time"
)

// Granularity is the sampling rate applied to a day of trade prints.
type Granularity string

const (
	Raw       Granularity = "raw"
	PerSecond Granularity = "1s"
	PerMinute Granularity = "1m"
	PerHour   Granularity = "1h"
	PerDay    Granularity = "1d"
)

// ParseGranularity parses a granularity string (e.g., "raw", "1m").
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if !g.IsValid() {
		return "", fmt.Errorf("unsupported granularity: %q", s)
	}
	return g, nil
}

func (g Granularity) IsValid() bool {
	switch g {
	case Raw, PerSecond, PerMinute, PerHour, PerDay:
		return true
	default:
		return false
	}
}

// Duration returns the bucket width, 0 for Raw and unknown values.
func (g Granularity) Duration() time.Duration {
	switch g {
	case PerSecond:
		return time.Second
	case PerMinute:
		return time.Minute
	case PerHour:
		return time.Hour
	case PerDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// IntervalMillis returns the bucket width in milliseconds.
func (g Granularity) IntervalMillis() uint64 {
	return uint64(g.Duration() / time.Millisecond)
}

// Bucket maps a unix-millisecond timestamp to its bucket index.
// Raw has no buckets and returns the timestamp itself.
func (g Granularity) Bucket(tsMillis uint64) uint64 {
	iv := g.IntervalMillis()
	if iv == 0 {
		return tsMillis
	}
	return tsMillis / iv
}

// GetSupportedGranularities returns all supported granularities, finest first.
func GetSupportedGranularities() []Granularity {
	return []Granularity{Raw, PerSecond, PerMinute, PerHour, PerDay}
}

// DateLayout is the layout of the per-day trade files.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// DaysBetween returns every date from 'from' to 'to' inclusive as YYYY-MM-DD.
func DaysBetween(from, to time.Time) []string {
	var days []string
	for d := from.UTC().Truncate(24 * time.Hour); !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}
