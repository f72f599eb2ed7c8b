package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/fueldash/internal/config"
	"github.com/verte-zerg/fueldash/internal/loader"
	"github.com/verte-zerg/fueldash/internal/log"
	"github.com/verte-zerg/fueldash/internal/model"
	"github.com/verte-zerg/fueldash/internal/stats"
	"github.com/verte-zerg/fueldash/internal/store"
)

func writeSampleCSV(t *testing.T, dir string) string {
	t.Helper()
	lines := []string{
		fmt.Sprintf("Calendar Day,Products,Metro Cities,%q", loader.DefaultPriceColumn),
		"2023-01-15,Petrol,Delhi,96.72",
		"2023-01-20,Petrol,Delhi,97.28",
		"2023-01-15,Diesel,Delhi,89.62",
		"2023-02-10,Diesel,Delhi,89.62",
		"2022-06-01,Petrol,Mumbai,106.31",
		"2022-06-01,Kerosene,Mumbai,50",
	}
	path := filepath.Join(dir, "prices.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "fueldash.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestResolveSettingsPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	cfgPath := filepath.Join(dir, "config.toml")
	content := `[source]
path = "file.csv"
city-column = "City"

[dashboard]
city = "Delhi"
fuel = "diesel"
year = "2022"
trend-window = 14
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(config.EnvSource, "env.csv")

	root := newRootCmd()
	if err := root.ParseFlags([]string{"--city", "Mumbai", "--config", cfgPath}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	s, err := resolveSettings(root)
	if err != nil {
		t.Fatalf("resolve settings: %v", err)
	}
	if s.Source != "env.csv" {
		t.Fatalf("expected env source to win over file, got %q", s.Source)
	}
	if s.Preferred.City != "Mumbai" {
		t.Fatalf("expected flag city to win, got %q", s.Preferred.City)
	}
	if s.Preferred.Fuel != model.Diesel || s.Preferred.Year != "2022" {
		t.Fatalf("expected file fuel and year, got %+v", s.Preferred)
	}
	if s.TrendWindow != 14 {
		t.Fatalf("expected trend window 14, got %d", s.TrendWindow)
	}
	if s.Options.Columns.City != "City" || s.Options.Columns.Date != loader.DefaultDateColumn {
		t.Fatalf("unexpected columns: %+v", s.Options.Columns)
	}
	if !s.History {
		t.Fatalf("history should default to enabled")
	}
	if s.DBPath != filepath.Join(dir, "fueldash", "fueldash.db") {
		t.Fatalf("unexpected db path %q", s.DBPath)
	}
}

func TestResolveSettingsRejectsBadFuel(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := newRootCmd()
	if err := root.ParseFlags([]string{"--fuel", "kerosene"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := resolveSettings(root); err == nil || !strings.Contains(err.Error(), "--fuel") {
		t.Fatalf("expected fuel error, got %v", err)
	}
}

func TestLoadFuncRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t)
	s := settings{
		Source:      writeSampleCSV(t, dir),
		History:     true,
		TrendWindow: defaultTrendWindow,
		Options:     loader.DefaultOptions(),
	}
	ctx := context.Background()
	ds, err := newLoadFunc(s, st, log.Discard())(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ds.Records) != 4 || ds.Stats.Dropped != 1 {
		t.Fatalf("unexpected dataset: %d records, %d dropped", len(ds.Records), ds.Stats.Dropped)
	}

	s.Source = filepath.Join(dir, "missing.csv")
	if _, err := newLoadFunc(s, st, log.Discard())(ctx); !errors.Is(err, loader.ErrLoadFailure) {
		t.Fatalf("expected load failure, got %v", err)
	}

	entries, err := st.ListLoads(ctx, 0)
	if err != nil {
		t.Fatalf("list loads: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 recorded loads, got %d", len(entries))
	}
	if entries[0].Error == "" || entries[1].Error != "" || entries[1].Records != 4 {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	s.Offline = true
	snap, err := newLoadFunc(s, st, log.Discard())(ctx)
	if err != nil {
		t.Fatalf("offline load: %v", err)
	}
	if len(snap.Records) != 4 {
		t.Fatalf("expected 4 snapshot records, got %d", len(snap.Records))
	}
	if strings.Join(snap.Domain.Cities, ",") != "Delhi,Mumbai" || strings.Join(snap.Domain.Years, ",") != "2023,2022" {
		t.Fatalf("unexpected snapshot domain: %+v", snap.Domain)
	}
}

func TestLoadFuncWithoutHistory(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t)
	s := settings{Source: writeSampleCSV(t, dir), Options: loader.DefaultOptions()}
	if _, err := newLoadFunc(s, st, log.Discard())(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	entries, err := st.ListLoads(context.Background(), 0)
	if err != nil {
		t.Fatalf("list loads: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no recorded loads, got %d", len(entries))
	}
}

func TestOfflineWithoutSnapshot(t *testing.T) {
	st := openTestStore(t)
	s := settings{Offline: true, Options: loader.DefaultOptions()}
	_, err := newLoadFunc(s, st, log.Discard())(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no recorded snapshot") {
		t.Fatalf("expected missing snapshot error, got %v", err)
	}
}

func TestResolveSelection(t *testing.T) {
	domain := model.FilterDomain{Cities: []string{"Delhi", "Mumbai"}, Years: []string{"2023", "2022"}}
	sel, err := resolveSelection(domain, model.Selection{Fuel: model.Diesel})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sel != (model.Selection{City: "Delhi", Fuel: model.Diesel, Year: "2023"}) {
		t.Fatalf("unexpected defaults: %+v", sel)
	}
	sel, err = resolveSelection(domain, model.Selection{City: "mumbai", Year: "2022"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sel.City != "Mumbai" || sel.Year != "2022" {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if _, err := resolveSelection(domain, model.Selection{City: "Pune"}); err == nil {
		t.Fatalf("expected unknown city error")
	}
	if _, err := resolveSelection(domain, model.Selection{Year: "1999"}); err == nil {
		t.Fatalf("expected unknown year error")
	}
	if _, err := resolveSelection(model.FilterDomain{}, model.Selection{}); err == nil {
		t.Fatalf("expected error for empty domain")
	}
}

func TestWriteSeries(t *testing.T) {
	var series model.MonthlySeries
	series[0] = 97
	var buf bytes.Buffer
	sel := model.Selection{City: "Delhi", Fuel: model.Petrol, Year: "2023"}
	if err := writeSeries(&buf, sel, series, 80); err != nil {
		t.Fatalf("write series: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Monthly Average RSP for Petrol in Delhi (2023)", "₹97.00", "Change +0.00%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteReport(t *testing.T) {
	var delhi, mumbai model.MonthlySeries
	delhi[0] = 96.72
	mumbai[0] = 106.31
	report := stats.Report{
		Year: "2023",
		Fuel: model.Petrol,
		Rows: []stats.CityRow{
			{City: "Delhi", Series: delhi, Summary: stats.Summarize(delhi)},
			{City: "Mumbai", Series: mumbai, Summary: stats.Summarize(mumbai)},
		},
	}
	report = filterReport(report, stats.TopCitiesByMean(report, 1))
	var buf bytes.Buffer
	if err := writeReport(&buf, report); err != nil {
		t.Fatalf("write report: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Mumbai") || strings.Contains(out, "Delhi") {
		t.Fatalf("expected only Mumbai:\n%s", out)
	}
	if !strings.Contains(out, "106.31") {
		t.Fatalf("expected Mumbai price:\n%s", out)
	}
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := writeHistory(&buf, nil); err != nil {
		t.Fatalf("write history: %v", err)
	}
	if !strings.Contains(buf.String(), "No loads recorded yet.") {
		t.Fatalf("unexpected empty output: %q", buf.String())
	}
	buf.Reset()
	entries := []model.LoadEntry{
		{ID: 2, Source: "bad.csv", LoadedAt: time.Now(), Error: "missing column"},
		{ID: 1, Source: "prices.csv", LoadedAt: time.Now(), Rows: 7, Dropped: 1, Records: 5},
	}
	if err := writeHistory(&buf, entries); err != nil {
		t.Fatalf("write history: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "failed: missing column") || !strings.Contains(out, "prices.csv") {
		t.Fatalf("unexpected history output:\n%s", out)
	}
}

func TestWriteDomain(t *testing.T) {
	var buf bytes.Buffer
	ds := model.Dataset{
		Source:  "prices.csv",
		Records: make([]model.FuelRecord, 3),
		Domain:  model.FilterDomain{Cities: []string{"Delhi"}, Years: nil},
	}
	if err := writeDomain(&buf, ds); err != nil {
		t.Fatalf("write domain: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Cities:  Delhi") || !strings.Contains(out, "Years:   -") {
		t.Fatalf("unexpected domain output:\n%s", out)
	}
}

func TestEnsureConfigFileWritesLoadableTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fueldash", "config.toml")
	if err := ensureConfigFile(path); err != nil {
		t.Fatalf("ensure config: %v", err)
	}
	if _, err := config.LoadConfig(path); err != nil {
		t.Fatalf("template should decode: %v", err)
	}
	if err := os.WriteFile(path, []byte("[dashboard]\ncity = \"Delhi\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := ensureConfigFile(path); err != nil {
		t.Fatalf("ensure config: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "Delhi") {
		t.Fatalf("existing config must not be overwritten")
	}
}
