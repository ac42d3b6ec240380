package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/gapdash/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "gap.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return st
}

func TestReplaceRecordsRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	records := []model.Record{
		{Country: "Zimbabwe", Continent: "Africa", Year: 1952, Population: 3080907, GDPPerCapita: 406.8841148, LifeExpectancy: 48.451, ISO3: "ZWE"},
		{Country: "Afghanistan", Continent: "Asia", Year: 1952, Population: 8425333, GDPPerCapita: 779.4453145, LifeExpectancy: 28.801, ISO3: "AFG"},
	}

	id, err := st.ReplaceRecords(ctx, "sample.csv", records)
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive import id, got %d", id)
	}

	got, err := st.LoadRecords(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(got))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Fatalf("record %d: expected %+v, got %+v", i, records[i], got[i])
		}
	}

	info, err := st.LastImport(ctx)
	if err != nil {
		t.Fatalf("last import failed: %v", err)
	}
	if info.ID != id || info.Source != "sample.csv" || info.Rows != 2 || info.ImportedAt.IsZero() {
		t.Fatalf("unexpected import info: %+v", info)
	}
}

func TestReplaceRecordsOverwrites(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	first := []model.Record{{Country: "A", Continent: "Europe", Year: 1952, ISO3: "AAA"}}
	second := []model.Record{{Country: "B", Continent: "Asia", Year: 2007, ISO3: "BBB"}}

	if _, err := st.ReplaceRecords(ctx, "first", first); err != nil {
		t.Fatalf("first replace failed: %v", err)
	}
	if _, err := st.ReplaceRecords(ctx, "second", second); err != nil {
		t.Fatalf("second replace failed: %v", err)
	}
	got, err := st.LoadRecords(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != 1 || got[0].Country != "B" {
		t.Fatalf("expected only the second import, got %+v", got)
	}
}

func TestReplaceRecordsRollsBackDuplicates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	good := []model.Record{{Country: "A", Continent: "Europe", Year: 1952, ISO3: "AAA"}}
	if _, err := st.ReplaceRecords(ctx, "good", good); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	dup := []model.Record{
		{Country: "B", Continent: "Asia", Year: 1952, ISO3: "BBB"},
		{Country: "B", Continent: "Asia", Year: 1952, ISO3: "BBB"},
	}
	if _, err := st.ReplaceRecords(ctx, "dup", dup); err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}
	got, err := st.LoadRecords(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != 1 || got[0].Country != "A" {
		t.Fatalf("expected previous dataset to survive, got %+v", got)
	}
}

func TestLastImportEmpty(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.LastImport(context.Background()); !errors.Is(err, ErrNoImport) {
		t.Fatalf("expected ErrNoImport, got %v", err)
	}
}
