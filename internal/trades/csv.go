// Package trades loads historical trade prints from per-day CSV files,
// samples them by time bucket and exposes them as a replay source.
package trades

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/amirphl/signalforge/internal/market"
)

const minFields = 5

// CSVLoader parses Binance spot trade dumps:
//
//	trade_id,price,qty,quote_qty,time,is_buyer_maker
//
// Malformed rows are skipped and counted rather than failing the load.
type CSVLoader struct {
	skipped int
}

func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

// Load reads every trade in the file at path.
func (l *CSVLoader) Load(path string) ([]market.Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trade file: %w", err)
	}
	defer f.Close()

	return l.LoadReader(f)
}

// LoadReader reads trades from r. A first line containing "trade_id" is
// treated as a header.
func (l *CSVLoader) LoadReader(r io.Reader) ([]market.Trade, error) {
	l.skipped = 0

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var out []market.Trade
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				l.skipped++
				first = false
				continue
			}
			return nil, fmt.Errorf("read trade csv: %w", err)
		}

		if first {
			first = false
			if strings.Contains(strings.Join(rec, ","), "trade_id") {
				continue
			}
		}

		t, ok := parseRecord(rec)
		if !ok {
			l.skipped++
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// SkippedRows reports how many rows the last load dropped.
func (l *CSVLoader) SkippedRows() int { return l.skipped }

func parseRecord(rec []string) (market.Trade, bool) {
	if len(rec) < minFields {
		return market.Trade{}, false
	}
	id, err := strconv.ParseUint(strings.TrimSpace(rec[0]), 10, 64)
	if err != nil {
		return market.Trade{}, false
	}
	price, err := market.ParsePrice(strings.TrimSpace(rec[1]))
	if err != nil {
		return market.Trade{}, false
	}
	ts, err := strconv.ParseUint(strings.TrimSpace(rec[4]), 10, 64)
	if err != nil {
		return market.Trade{}, false
	}
	return market.Trade{ID: id, Price: price, Timestamp: ts}, true
}
