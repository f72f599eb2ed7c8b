package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sampleCSV = "Calendar Day,Products,Metro Cities,Price\n" +
	"2023-01-15,Petrol,Delhi,96.72\n" +
	"2023-01-20,Petrol,Delhi,97.28\n" +
	"2023-02-10,Diesel,Delhi,89.62\n"

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	ds, err := Load(context.Background(), path, testOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Source != path {
		t.Fatalf("unexpected source %q", ds.Source)
	}
	if len(ds.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(ds.Records))
	}
}

func TestLoadFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/petrol-diesel-prices.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))
	t.Cleanup(srv.Close)

	ds, err := Load(context.Background(), srv.URL+"/petrol-diesel-prices.csv", testOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ds.Domain.Cities) != 1 || ds.Domain.Cities[0] != "Delhi" {
		t.Fatalf("unexpected domain: %+v", ds.Domain)
	}

	_, err = Load(context.Background(), srv.URL+"/missing.csv", testOptions())
	if !errors.Is(err, ErrLoadFailure) {
		t.Fatalf("expected load failure for 404, got %v", err)
	}
}

func TestLoadFailureIsObservable(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), testOptions())
	if !errors.Is(err, ErrLoadFailure) {
		t.Fatalf("expected ErrLoadFailure, got %v", err)
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %T", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestLoadCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, path, testOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !errors.Is(err, ErrLoadFailure) {
		t.Fatalf("expected ErrLoadFailure, got %v", err)
	}
}
