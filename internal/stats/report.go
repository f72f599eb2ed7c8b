package stats

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/fueldash/internal/model"
)

// maxReportWorkers bounds concurrent per-city aggregation.
const maxReportWorkers = 4

// CityRow is one city's monthly series for a report.
type CityRow struct {
	City    string
	Series  model.MonthlySeries
	Summary Summary
}

// Report holds monthly series for every city of one fuel and year.
type Report struct {
	Year string
	Fuel model.Fuel
	Rows []CityRow
}

// BuildReport aggregates every city of the domain for the given fuel and year.
// Rows keep the domain's city order.
func BuildReport(ctx context.Context, ds model.Dataset, fuel model.Fuel, year string, layouts []string) (Report, error) {
	cities := ds.Domain.Cities
	rows := make([]CityRow, len(cities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxReportWorkers)
	for i, city := range cities {
		i, city := i, city
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sel := model.Selection{City: city, Fuel: fuel, Year: year}
			series := MonthlyAverages(ds.Records, sel, layouts)
			rows[i] = CityRow{City: city, Series: series, Summary: Summarize(series)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return Report{Year: year, Fuel: fuel, Rows: rows}, nil
}

// TopCitiesByMean returns up to n cities ordered by descending mean price.
// Cities without observations are left out.
func TopCitiesByMean(report Report, n int) []string {
	if n <= 0 || len(report.Rows) == 0 {
		return nil
	}
	items := make([]CityRow, 0, len(report.Rows))
	for _, row := range report.Rows {
		if row.Summary.Months == 0 {
			continue
		}
		items = append(items, row)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Summary.Mean == items[j].Summary.Mean {
			return items[i].City < items[j].City
		}
		return items[i].Summary.Mean > items[j].Summary.Mean
	})
	if n > len(items) {
		n = len(items)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, items[i].City)
	}
	return out
}
