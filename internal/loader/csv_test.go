package loader

import (
	"math"
	"strings"
	"testing"

	"github.com/verte-zerg/fueldash/internal/model"
)

func testOptions() Options {
	return Options{
		Columns: Columns{
			Date:    "Calendar Day",
			Product: "Products",
			City:    "Metro Cities",
			Price:   "Price",
		},
	}
}

func TestParseReshapesLongRows(t *testing.T) {
	csvText := " Calendar Day , Products ,Metro Cities, Price \n" +
		"2023-01-15,Petrol,Delhi,96.72\n" +
		"2023-01-15,Diesel,Delhi,89.62\n" +
		"2023-01-15,Petrol,Mumbai,106.31\n" +
		"2023-01-16,Diesel,Delhi,89.70\n"
	ds, err := Parse(strings.NewReader(csvText), testOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ds.Records) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(ds.Records), ds.Records)
	}
	first := ds.Records[0]
	if first.Date != "2023-01-15" || first.City != "Delhi" || first.PetrolPrice != 96.72 || first.DieselPrice != 89.62 {
		t.Fatalf("unexpected merged record: %+v", first)
	}
	if ds.Records[1].City != "Mumbai" || ds.Records[1].DieselPrice != 0 {
		t.Fatalf("unexpected second record: %+v", ds.Records[1])
	}
	if ds.Records[2].PetrolPrice != 0 || ds.Records[2].DieselPrice != 89.70 {
		t.Fatalf("unexpected third record: %+v", ds.Records[2])
	}
	if ds.Stats.Rows != 4 || ds.Stats.Records != 3 || ds.Stats.Dropped != 0 {
		t.Fatalf("unexpected stats: %+v", ds.Stats)
	}
}

func TestParseDropsMalformedRows(t *testing.T) {
	csvText := "Calendar Day,Products,Metro Cities,Price\n" +
		",Petrol,Delhi,96.72\n" +
		"2023-01-15,,Delhi,96.72\n" +
		"2023-01-15,Petrol,,96.72\n" +
		"2023-01-15,Kerosene,Delhi,50\n" +
		"2023-01-15,petrol,Delhi,abc\n" +
		"\n" +
		"2023-01-15,Diesel,Delhi\n"
	ds, err := Parse(strings.NewReader(csvText), testOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ds.Stats.Dropped != 4 {
		t.Fatalf("expected 4 dropped rows, got %d", ds.Stats.Dropped)
	}
	if len(ds.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(ds.Records))
	}
	if ds.Records[0].PetrolPrice != 0 || ds.Records[0].DieselPrice != 0 {
		t.Fatalf("expected zero prices, got %+v", ds.Records[0])
	}
}

func TestParseKeysDoNotCollide(t *testing.T) {
	csvText := "Calendar Day,Products,Metro Cities,Price\n" +
		"2023-01-15_A,Petrol,B,1\n" +
		"2023-01-15,Petrol,A_B,2\n"
	ds, err := Parse(strings.NewReader(csvText), testOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ds.Records) != 2 {
		t.Fatalf("expected 2 distinct records, got %d", len(ds.Records))
	}
}

func TestParseUniqueKeysAndNonNegativePrices(t *testing.T) {
	csvText := "Calendar Day,Products,Metro Cities,Price\n" +
		"2023-01-15,Petrol,Delhi,96.72\n" +
		"2023-01-15,Petrol,Delhi,97.00\n" +
		"2023-01-15,Diesel,Delhi,-5\n" +
		"2023-01-16,Diesel,Delhi,NaN\n" +
		"2023-01-17,Diesel,Delhi,+Inf\n" +
		"2023-01-18,Petrol,Chennai,1e2\n"
	ds, err := Parse(strings.NewReader(csvText), testOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	seen := map[[2]string]bool{}
	for _, rec := range ds.Records {
		key := [2]string{rec.Date, rec.City}
		if seen[key] {
			t.Fatalf("duplicate key %v", key)
		}
		seen[key] = true
		for _, p := range []float64{rec.PetrolPrice, rec.DieselPrice} {
			if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
				t.Fatalf("invalid price in %+v", rec)
			}
		}
	}
	if ds.Records[0].PetrolPrice != 97.00 {
		t.Fatalf("expected later price to win, got %v", ds.Records[0].PetrolPrice)
	}
	if ds.Records[3].PetrolPrice != 100 {
		t.Fatalf("expected exponent price to parse, got %v", ds.Records[3].PetrolPrice)
	}
}

func TestParseMissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("Calendar Day,Products,Price\n"), testOptions())
	if err == nil || !strings.Contains(err.Error(), "Metro Cities") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestParseEmptySource(t *testing.T) {
	if _, err := Parse(strings.NewReader(""), testOptions()); err == nil {
		t.Fatalf("expected error for empty source")
	}
}

func TestParseStripsBOMAndUsesDelimiter(t *testing.T) {
	opts := testOptions()
	opts.Delimiter = ';'
	csvText := "\ufeffCalendar Day;Products;Metro Cities;Price\n2023-03-01;Diesel;Kolkata;92.76\n"
	ds, err := Parse(strings.NewReader(csvText), opts)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ds.Records) != 1 || ds.Records[0].DieselPrice != 92.76 {
		t.Fatalf("unexpected records: %+v", ds.Records)
	}
}

func TestParseCountsUndatedRecords(t *testing.T) {
	csvText := "Calendar Day,Products,Metro Cities,Price\n" +
		"not a date,Petrol,Delhi,96\n" +
		"2022-05-01,Petrol,Delhi,96\n"
	ds, err := Parse(strings.NewReader(csvText), testOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ds.Records) != 2 {
		t.Fatalf("undated record should be kept, got %d records", len(ds.Records))
	}
	if ds.Stats.UndatedRecords != 1 {
		t.Fatalf("expected 1 undated record, got %d", ds.Stats.UndatedRecords)
	}
	if len(ds.Domain.Years) != 1 || ds.Domain.Years[0] != "2022" {
		t.Fatalf("unexpected years: %v", ds.Domain.Years)
	}
}

func TestReshapeKeepsFirstSeenOrder(t *testing.T) {
	rows := []model.RawRecord{
		{Date: "2023-01-02", City: "B", Product: model.Petrol, Price: 1},
		{Date: "2023-01-01", City: "A", Product: model.Diesel, Price: 2},
		{Date: "2023-01-02", City: "B", Product: model.Diesel, Price: 3},
	}
	got := Reshape(rows)
	if len(got) != 2 || got[0].City != "B" || got[1].City != "A" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].PetrolPrice != 1 || got[0].DieselPrice != 3 {
		t.Fatalf("unexpected merge: %+v", got[0])
	}
}

func TestParsePrice(t *testing.T) {
	cases := map[string]float64{
		"":        0,
		"  ":      0,
		"96.72":   96.72,
		" 101.5 ": 101.5,
		"abc":     0,
		"-1":      0,
		"NaN":     0,
		"Inf":     0,
	}
	for in, want := range cases {
		if got := ParsePrice(in); got != want {
			t.Fatalf("ParsePrice(%q) = %v, want %v", in, got, want)
		}
	}
}
