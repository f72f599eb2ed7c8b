package loader

import (
	"sort"
	"strconv"

	"github.com/verte-zerg/fueldash/internal/model"
)

// BuildDomain derives the selectable cities (first-seen order) and years
// (newest first). Records with unparseable dates contribute no year.
func BuildDomain(records []model.FuelRecord, layouts []string) model.FilterDomain {
	seenCity := map[string]struct{}{}
	seenYear := map[int]struct{}{}
	cities := []string{}
	var years []int
	for _, rec := range records {
		if rec.City != "" {
			if _, ok := seenCity[rec.City]; !ok {
				seenCity[rec.City] = struct{}{}
				cities = append(cities, rec.City)
			}
		}
		t, ok := ParseDate(rec.Date, layouts)
		if !ok {
			continue
		}
		if _, ok := seenYear[t.Year()]; !ok {
			seenYear[t.Year()] = struct{}{}
			years = append(years, t.Year())
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	out := make([]string, len(years))
	for i, y := range years {
		out[i] = strconv.Itoa(y)
	}
	return model.FilterDomain{Cities: cities, Years: out}
}

// DefaultSelection picks the first city, the most recent year and petrol.
func DefaultSelection(domain model.FilterDomain) model.Selection {
	sel := model.Selection{Fuel: model.Petrol}
	if len(domain.Cities) > 0 {
		sel.City = domain.Cities[0]
	}
	if len(domain.Years) > 0 {
		sel.Year = domain.Years[0]
	}
	return sel
}
