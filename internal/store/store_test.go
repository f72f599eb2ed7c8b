package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/fueldash/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "fueldash.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestRecordLoadAndSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.LatestSnapshot(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}

	ds := model.Dataset{
		Source: "prices.csv",
		Records: []model.FuelRecord{
			{Date: "2023-01-16", City: "Mumbai", PetrolPrice: 106.31},
			{Date: "2023-01-15", City: "Delhi", PetrolPrice: 96.72, DieselPrice: 89.62},
		},
		Stats: model.LoadStats{Rows: 3, Dropped: 1, Records: 2},
	}
	id, err := st.RecordLoad(ctx, ds, time.Unix(100, 0))
	if err != nil {
		t.Fatalf("record load: %v", err)
	}
	if _, err := st.RecordFailure(ctx, "broken.csv", errors.New("boom"), time.Unix(200, 0)); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	snap, err := st.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap.Source != "prices.csv" || len(snap.Records) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Records[0].City != "Mumbai" || snap.Records[1].DieselPrice != 89.62 {
		t.Fatalf("snapshot order or values changed: %+v", snap.Records)
	}
	if snap.Stats.Dropped != 1 {
		t.Fatalf("unexpected stats: %+v", snap.Stats)
	}

	loads, err := st.ListLoads(ctx, 0)
	if err != nil {
		t.Fatalf("list loads: %v", err)
	}
	if len(loads) != 2 {
		t.Fatalf("expected 2 loads, got %d", len(loads))
	}
	if loads[0].Error != "boom" || loads[1].ID != id {
		t.Fatalf("unexpected load order: %+v", loads)
	}
	if !loads[1].LoadedAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("unexpected loaded_at: %v", loads[1].LoadedAt)
	}

	limited, err := st.ListLoads(ctx, 1)
	if err != nil {
		t.Fatalf("list loads: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 load, got %d", len(limited))
	}
}

func TestRecordLoadRejectsDuplicateKeys(t *testing.T) {
	st := openTestStore(t)
	ds := model.Dataset{
		Source: "dup.csv",
		Records: []model.FuelRecord{
			{Date: "2023-01-15", City: "Delhi"},
			{Date: "2023-01-15", City: "Delhi"},
		},
	}
	if _, err := st.RecordLoad(context.Background(), ds, time.Now()); err == nil {
		t.Fatalf("expected primary key violation")
	}
	loads, err := st.ListLoads(context.Background(), 0)
	if err != nil {
		t.Fatalf("list loads: %v", err)
	}
	if len(loads) != 0 {
		t.Fatalf("expected rollback, got %d loads", len(loads))
	}
}
