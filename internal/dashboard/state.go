// Package dashboard holds the reactive selection state and the Bubble Tea
// dashboard built on it.
package dashboard

import (
	"fmt"

	"github.com/verte-zerg/fueldash/internal/loader"
	"github.com/verte-zerg/fueldash/internal/model"
	"github.com/verte-zerg/fueldash/internal/stats"
)

// Snapshot is what subscribers receive after every change.
type Snapshot struct {
	Selection model.Selection
	Domain    model.FilterDomain
	Series    model.MonthlySeries
	Records   int
}

// State owns the loaded dataset and the current selection. Every mutation
// recomputes the monthly series and notifies subscribers. It is not safe for
// concurrent use.
type State struct {
	dataset     model.Dataset
	sel         model.Selection
	layouts     []string
	nextID      int
	subscribers map[int]func(Snapshot)
	order       []int
}

// NewState returns an empty state. layouts are the accepted date layouts.
func NewState(layouts []string) *State {
	return &State{
		layouts:     layouts,
		subscribers: map[int]func(Snapshot){},
		sel:         model.Selection{Fuel: model.Petrol},
	}
}

// Subscribe registers fn and returns a function removing it.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.order = append(s.order, id)
	return func() {
		delete(s.subscribers, id)
	}
}

// Replace swaps in a freshly loaded dataset. The preferred city and year are
// kept when the new domain contains them, otherwise defaults apply.
func (s *State) Replace(ds model.Dataset, preferred model.Selection) {
	s.dataset = ds
	sel := loader.DefaultSelection(ds.Domain)
	if preferred.City != "" && ds.Domain.HasCity(preferred.City) {
		sel.City = preferred.City
	}
	if preferred.Year != "" && ds.Domain.HasYear(preferred.Year) {
		sel.Year = preferred.Year
	}
	sel.Fuel = preferred.Fuel
	s.sel = sel
	s.notify()
}

// Dataset returns the current dataset.
func (s *State) Dataset() model.Dataset {
	return s.dataset
}

// Domain returns the filter domain of the current dataset.
func (s *State) Domain() model.FilterDomain {
	return s.dataset.Domain
}

// Selection returns the current selection.
func (s *State) Selection() model.Selection {
	return s.sel
}

// Series recomputes the monthly series for the current selection.
func (s *State) Series() model.MonthlySeries {
	if !s.sel.Complete() {
		return model.MonthlySeries{}
	}
	return stats.MonthlyAverages(s.dataset.Records, s.sel, s.layouts)
}

// Daily returns the daily points for the current selection.
func (s *State) Daily() []stats.DailyPoint {
	if !s.sel.Complete() {
		return nil
	}
	return stats.DailyPrices(s.dataset.Records, s.sel, s.layouts)
}

// SetCity selects a city from the domain.
func (s *State) SetCity(city string) error {
	if !s.dataset.Domain.HasCity(city) {
		return fmt.Errorf("unknown city %q", city)
	}
	s.sel.City = city
	s.notify()
	return nil
}

// SetYear selects a year from the domain.
func (s *State) SetYear(year string) error {
	if !s.dataset.Domain.HasYear(year) {
		return fmt.Errorf("unknown year %q", year)
	}
	s.sel.Year = year
	s.notify()
	return nil
}

// SetFuel selects the fuel.
func (s *State) SetFuel(f model.Fuel) {
	s.sel.Fuel = f
	s.notify()
}

// ToggleFuel switches between petrol and diesel.
func (s *State) ToggleFuel() {
	if s.sel.Fuel == model.Petrol {
		s.SetFuel(model.Diesel)
		return
	}
	s.SetFuel(model.Petrol)
}

// CycleCity moves the city selection by delta, wrapping around.
func (s *State) CycleCity(delta int) {
	if next, ok := cycle(s.dataset.Domain.Cities, s.sel.City, delta); ok {
		s.sel.City = next
		s.notify()
	}
}

// CycleYear moves the year selection by delta, wrapping around. Years are
// ordered newest first.
func (s *State) CycleYear(delta int) {
	if next, ok := cycle(s.dataset.Domain.Years, s.sel.Year, delta); ok {
		s.sel.Year = next
		s.notify()
	}
}

func (s *State) notify() {
	snap := Snapshot{
		Selection: s.sel,
		Domain:    s.dataset.Domain,
		Series:    s.Series(),
		Records:   len(s.dataset.Records),
	}
	live := s.order[:0]
	for _, id := range s.order {
		fn, ok := s.subscribers[id]
		if !ok {
			continue
		}
		live = append(live, id)
		fn(snap)
	}
	s.order = live
}

func cycle(values []string, current string, delta int) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	idx := -1
	for i, v := range values {
		if v == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return values[0], true
	}
	n := len(values)
	return values[((idx+delta)%n+n)%n], true
}
