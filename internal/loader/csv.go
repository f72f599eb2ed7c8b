// Package loader reads long-format fuel price CSVs and reshapes them into
// one wide record per (date, city).
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/verte-zerg/fueldash/internal/model"
)

// Default column headers of the retail selling price dataset.
const (
	DefaultDateColumn    = "Calendar Day"
	DefaultProductColumn = "Products"
	DefaultCityColumn    = "Metro Cities"
	DefaultPriceColumn   = "Retail Selling Price (Rsp) Of Petrol And Diesel (UOM:INR/L(IndianRupeesperLitre)), Scaling Factor:1"
)

// Columns names the source headers. Headers are matched after trimming.
type Columns struct {
	Date    string
	Product string
	City    string
	Price   string
}

// DefaultColumns returns the headers of the retail selling price dataset.
func DefaultColumns() Columns {
	return Columns{
		Date:    DefaultDateColumn,
		Product: DefaultProductColumn,
		City:    DefaultCityColumn,
		Price:   DefaultPriceColumn,
	}
}

// Options controls how a source is parsed.
type Options struct {
	Columns     Columns
	DateLayouts []string
	Delimiter   rune
}

// DefaultOptions returns options for the retail selling price dataset.
func DefaultOptions() Options {
	return Options{
		Columns:     DefaultColumns(),
		DateLayouts: DefaultDateLayouts,
		Delimiter:   ',',
	}
}

type columnIndex struct {
	date, product, city, price int
}

type recordKey struct {
	date string
	city string
}

// Parse reads CSV text with a header row and returns the reshaped dataset.
// Rows missing a date, city or known product are dropped without error.
func Parse(r io.Reader, opts Options) (model.Dataset, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.Dataset{}, fmt.Errorf("source is empty")
		}
		return model.Dataset{}, fmt.Errorf("failed to read header: %w", err)
	}
	idx, err := resolveColumns(header, opts.Columns)
	if err != nil {
		return model.Dataset{}, err
	}

	var stats model.LoadStats
	var rows []model.RawRecord
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Dataset{}, fmt.Errorf("failed to read row %d: %w", stats.Rows+1, err)
		}
		if blankRow(fields) {
			continue
		}
		stats.Rows++
		raw, ok := toRawRecord(fields, idx)
		if !ok {
			stats.Dropped++
			continue
		}
		rows = append(rows, raw)
	}

	records := Reshape(rows)
	stats.Records = len(records)
	for _, rec := range records {
		if _, ok := ParseDate(rec.Date, opts.DateLayouts); !ok {
			stats.UndatedRecords++
		}
	}
	return model.Dataset{
		Records: records,
		Domain:  BuildDomain(records, opts.DateLayouts),
		Stats:   stats,
	}, nil
}

// Reshape merges long rows sharing a (date, city) into wide records,
// keeping first-seen order. A later price for the same product wins.
func Reshape(rows []model.RawRecord) []model.FuelRecord {
	positions := make(map[recordKey]int, len(rows))
	records := make([]model.FuelRecord, 0, len(rows)/2+1)
	for _, row := range rows {
		key := recordKey{date: row.Date, city: row.City}
		pos, ok := positions[key]
		if !ok {
			pos = len(records)
			positions[key] = pos
			records = append(records, model.FuelRecord{Date: row.Date, City: row.City})
		}
		switch row.Product {
		case model.Petrol:
			records[pos].PetrolPrice = row.Price
		case model.Diesel:
			records[pos].DieselPrice = row.Price
		}
	}
	return records
}

func resolveColumns(header []string, cols Columns) (columnIndex, error) {
	idx := columnIndex{date: -1, product: -1, city: -1, price: -1}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch h {
		case strings.TrimSpace(cols.Date):
			idx.date = i
		case strings.TrimSpace(cols.Product):
			idx.product = i
		case strings.TrimSpace(cols.City):
			idx.city = i
		case strings.TrimSpace(cols.Price):
			idx.price = i
		}
	}
	var missing []string
	if idx.date < 0 {
		missing = append(missing, cols.Date)
	}
	if idx.product < 0 {
		missing = append(missing, cols.Product)
	}
	if idx.city < 0 {
		missing = append(missing, cols.City)
	}
	if idx.price < 0 {
		missing = append(missing, cols.Price)
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("missing columns: %q", missing)
	}
	return idx, nil
}

func toRawRecord(fields []string, idx columnIndex) (model.RawRecord, bool) {
	date := field(fields, idx.date)
	city := field(fields, idx.city)
	product := field(fields, idx.product)
	if date == "" || city == "" || product == "" {
		return model.RawRecord{}, false
	}
	fuel, err := model.ParseFuel(product)
	if err != nil {
		return model.RawRecord{}, false
	}
	return model.RawRecord{
		Date:    date,
		Product: fuel,
		City:    city,
		Price:   ParsePrice(field(fields, idx.price)),
	}, true
}

// ParsePrice coerces a price cell to a non-negative finite number, defaulting to 0.
func ParsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func blankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
