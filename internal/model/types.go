// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Fuel identifies one of the two tracked products.
type Fuel int

const (
	// Petrol is the default fuel for a new selection.
	Petrol Fuel = iota
	Diesel
)

// Fuels lists the selectable fuels in display order.
var Fuels = []Fuel{Petrol, Diesel}

func (f Fuel) String() string {
	switch f {
	case Diesel:
		return "Diesel"
	default:
		return "Petrol"
	}
}

// ParseFuel maps a product name to a Fuel. Matching ignores case and surrounding space.
func ParseFuel(s string) (Fuel, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "petrol"):
		return Petrol, nil
	case strings.EqualFold(s, "diesel"):
		return Diesel, nil
	}
	return Petrol, fmt.Errorf("unknown fuel %q (use Petrol or Diesel)", s)
}

// RawRecord is one validated line of the long-format source.
type RawRecord struct {
	Date    string
	Product Fuel
	City    string
	Price   float64
}

// FuelRecord is the wide record for a single (date, city) pair.
type FuelRecord struct {
	Date        string
	City        string
	PetrolPrice float64
	DieselPrice float64
}

// Price returns the price recorded for the given fuel.
func (r FuelRecord) Price(f Fuel) float64 {
	if f == Diesel {
		return r.DieselPrice
	}
	return r.PetrolPrice
}

// FilterDomain holds the values a selection can take.
type FilterDomain struct {
	Cities []string
	Years  []string
}

// HasCity reports whether the city is part of the domain.
func (d FilterDomain) HasCity(city string) bool {
	for _, c := range d.Cities {
		if c == city {
			return true
		}
	}
	return false
}

// HasYear reports whether the year is part of the domain.
func (d FilterDomain) HasYear(year string) bool {
	for _, y := range d.Years {
		if y == year {
			return true
		}
	}
	return false
}

// Selection is the user-driven filter triple.
type Selection struct {
	City string
	Fuel Fuel
	Year string
}

// Complete reports whether city and year are both set.
func (s Selection) Complete() bool {
	return s.City != "" && s.Year != ""
}

// MonthlySeries holds one mean price per calendar month, January first.
type MonthlySeries [12]float64

// MonthLabels are the chart category labels.
var MonthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// LoadStats counts what happened while reshaping a source.
type LoadStats struct {
	Rows           int
	Dropped        int
	Records        int
	UndatedRecords int
}

// Dataset is the immutable result of a successful load.
type Dataset struct {
	Source  string
	Records []FuelRecord
	Domain  FilterDomain
	Stats   LoadStats
}

// Empty reports whether the dataset carries no records.
func (d Dataset) Empty() bool {
	return len(d.Records) == 0
}

// LoadEntry summarizes a recorded load attempt.
type LoadEntry struct {
	ID       int64
	Source   string
	LoadedAt time.Time
	Rows     int
	Dropped  int
	Records  int
	Error    string
}
