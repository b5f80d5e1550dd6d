package trades

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amirphl/signalforge/internal/market"
	"github.com/amirphl/signalforge/internal/tfutils"
)

var header = []string{"trade_id", "price", "qty", "quote_qty", "time", "is_buyer_maker"}

// Row is a trade plus the columns only the CSV format carries.
type Row struct {
	Trade      market.Trade
	Quantity   decimal.Decimal
	BuyerMaker bool
}

// Writer appends rows to the per-day files Manager reads, so recorded days
// replay like downloaded ones. The file rolls over at UTC midnight.
type Writer struct {
	dataDir string
	symbol  string

	date string
	file *os.File
	w    *csv.Writer
}

func NewWriter(dataDir, symbol string) *Writer {
	return &Writer{dataDir: dataDir, symbol: strings.ToUpper(symbol)}
}

// Path returns the file the writer currently appends to, empty before the
// first row.
func (w *Writer) Path() string {
	if w.file == nil {
		return ""
	}
	return w.file.Name()
}

// Write appends one row, opening or rolling the day file as needed.
func (w *Writer) Write(r Row) error {
	date := time.UnixMilli(int64(r.Trade.Timestamp)).UTC().Format(tfutils.DateLayout)
	if date != w.date || w.file == nil {
		if err := w.open(date); err != nil {
			return err
		}
	}

	quote := market.TicksToCurrency(r.Trade.Price).Mul(r.Quantity)
	rec := []string{
		strconv.FormatUint(r.Trade.ID, 10),
		market.FormatPrice(r.Trade.Price),
		r.Quantity.String(),
		quote.String(),
		strconv.FormatUint(r.Trade.Timestamp, 10),
		strconv.FormatBool(r.BuyerMaker),
	}
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("write trade %d: %w", r.Trade.ID, err)
	}
	return nil
}

func (w *Writer) open(date string) error {
	if err := w.Close(); err != nil {
		return err
	}
	dir := filepath.Join(w.dataDir, w.symbol)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(dir, "trades-"+date+".csv")

	fileExists := false
	if stat, err := os.Stat(path); err == nil {
		fileExists = stat.Size() > 0
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trade file: %w", err)
	}
	w.file, w.w, w.date = f, csv.NewWriter(f), date

	if !fileExists {
		if err := w.w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	return nil
}

// Flush pushes buffered rows to disk.
func (w *Writer) Flush() error {
	if w.w == nil {
		return nil
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.Flush()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file, w.w, w.date = nil, nil, ""
	return err
}
