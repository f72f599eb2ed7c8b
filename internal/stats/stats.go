// Package stats contains the monthly aggregation and derived metrics.
package stats

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/verte-zerg/fueldash/internal/loader"
	"github.com/verte-zerg/fueldash/internal/model"
)

type monthAccumulator struct {
	sum   float64
	count int
}

// MonthlyAverages averages the selected fuel's price per calendar month for
// records of the selected city and year. Prices <= 0 count as missing and
// months without observations are 0.
func MonthlyAverages(records []model.FuelRecord, sel model.Selection, layouts []string) model.MonthlySeries {
	var acc [12]monthAccumulator
	for _, rec := range records {
		if rec.City != sel.City {
			continue
		}
		t, ok := loader.ParseDate(rec.Date, layouts)
		if !ok || strconv.Itoa(t.Year()) != sel.Year {
			continue
		}
		price := rec.Price(sel.Fuel)
		if price <= 0 {
			continue
		}
		m := int(t.Month()) - 1
		acc[m].sum += price
		acc[m].count++
	}
	var series model.MonthlySeries
	for i, a := range acc {
		if a.count > 0 {
			series[i] = a.sum / float64(a.count)
		}
	}
	return series
}

// Summary describes the observed months of a series.
type Summary struct {
	Months int
	Min    float64
	Max    float64
	Mean   float64
	// MinMonth and MaxMonth are 0-based month indexes, -1 when Months is 0.
	MinMonth int
	MaxMonth int
}

// Summarize computes min, max and mean over the non-zero months.
func Summarize(series model.MonthlySeries) Summary {
	s := Summary{MinMonth: -1, MaxMonth: -1}
	var total float64
	for i, v := range series {
		if v <= 0 {
			continue
		}
		if s.Months == 0 || v < s.Min {
			s.Min = v
			s.MinMonth = i
		}
		if s.Months == 0 || v > s.Max {
			s.Max = v
			s.MaxMonth = i
		}
		total += v
		s.Months++
	}
	if s.Months > 0 {
		s.Mean = total / float64(s.Months)
	}
	return s
}

// Change returns the relative change in percent between the first and last
// observed months, or 0 with fewer than two observations.
func Change(series model.MonthlySeries) float64 {
	first, last := -1, -1
	for i, v := range series {
		if v <= 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 || first == last {
		return 0
	}
	return (series[last] - series[first]) / series[first] * 100
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// DailyPoint is one dated observation for the trend view.
type DailyPoint struct {
	Date   time.Time
	Petrol float64
	Diesel float64
}

// DailyPrices returns the selected city's records for the selected year in
// chronological order. Records with unparseable dates are skipped.
func DailyPrices(records []model.FuelRecord, sel model.Selection, layouts []string) []DailyPoint {
	var points []DailyPoint
	for _, rec := range records {
		if rec.City != sel.City {
			continue
		}
		t, ok := loader.ParseDate(rec.Date, layouts)
		if !ok || strconv.Itoa(t.Year()) != sel.Year {
			continue
		}
		points = append(points, DailyPoint{Date: t, Petrol: rec.PetrolPrice, Diesel: rec.DieselPrice})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}

// FuelValues extracts the positive prices of one fuel, carrying the previous
// observation forward over gaps so a missing product does not plot as 0.
func FuelValues(points []DailyPoint, fuel model.Fuel) []float64 {
	out := make([]float64, 0, len(points))
	last := math.NaN()
	for _, p := range points {
		v := p.Petrol
		if fuel == model.Diesel {
			v = p.Diesel
		}
		if v <= 0 {
			if math.IsNaN(last) {
				continue
			}
			v = last
		}
		last = v
		out = append(out, v)
	}
	return out
}
