package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "test.db")
	s, err := NewSQLiteStore(dsn)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeRecord(city string) Record {
	return Record{
		CountryCode:       "IN",
		Coordinate:        "77.2167 28.6667",
		TemperatureKelvin: "300.00k",
		Pressure:          1009,
		Humidity:          54,
		CityName:          city,
	}
}

func TestSQLiteStore_SaveAndGetRecord(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-2 * time.Second)
	rec := makeRecord("Delhi")
	if err := s.SaveRecord(ctx, &rec); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	if rec.ID == 0 {
		t.Error("SaveRecord did not assign an ID")
	}
	if rec.CreatedAt.Before(before) || rec.CreatedAt.After(time.Now().UTC().Add(2*time.Second)) {
		t.Errorf("CreatedAt = %v, want close to now", rec.CreatedAt)
	}

	got, err := s.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got == nil {
		t.Fatal("GetRecord returned nil")
	}
	if got.CountryCode != "IN" || got.Coordinate != "77.2167 28.6667" || got.TemperatureKelvin != "300.00k" {
		t.Errorf("got %+v", got)
	}
	if got.Pressure != 1009 || got.Humidity != 54 || got.CityName != "Delhi" {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestSQLiteStore_GetRecordMissing(t *testing.T) {
	s := newTestSQLiteStore(t)
	got, err := s.GetRecord(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSQLiteStore_DuplicatesAccumulate(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	first := makeRecord("Delhi")
	second := makeRecord("Delhi")
	second.TemperatureKelvin = "301.50k"

	if err := s.SaveRecord(ctx, &first); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRecord(ctx, &second); err != nil {
		t.Fatal(err)
	}

	if first.ID == second.ID {
		t.Errorf("both records got ID %d", first.ID)
	}

	count, err := s.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	// The first row is untouched by the second insert.
	got, err := s.GetRecord(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TemperatureKelvin != "300.00k" {
		t.Errorf("first record temp = %q, want %q", got.TemperatureKelvin, "300.00k")
	}
}

func TestSQLiteStore_ListRecords(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, city := range []string{"Delhi", "London", "Delhi", "Paris", "Delhi"} {
		rec := makeRecord(city)
		if err := s.SaveRecord(ctx, &rec); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("all", func(t *testing.T) {
		recs, err := s.ListRecords(ctx, "", 0)
		if err != nil {
			t.Fatalf("ListRecords: %v", err)
		}
		if len(recs) != 5 {
			t.Fatalf("got %d records, want 5", len(recs))
		}
		// Newest first.
		for i := 1; i < len(recs); i++ {
			if recs[i-1].ID < recs[i].ID {
				t.Errorf("records not newest first: %d before %d", recs[i-1].ID, recs[i].ID)
			}
		}
	})

	t.Run("by city", func(t *testing.T) {
		recs, err := s.ListRecords(ctx, "Delhi", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 3 {
			t.Errorf("got %d Delhi records, want 3", len(recs))
		}
		for _, r := range recs {
			if r.CityName != "Delhi" {
				t.Errorf("unexpected city %q", r.CityName)
			}
		}
	})

	t.Run("limit", func(t *testing.T) {
		recs, err := s.ListRecords(ctx, "", 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 2 {
			t.Errorf("got %d records, want 2", len(recs))
		}
	})

	t.Run("unknown city", func(t *testing.T) {
		recs, err := s.ListRecords(ctx, "Atlantis", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 0 {
			t.Errorf("got %d records, want 0", len(recs))
		}
	})
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "weather.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dsn)
	if err != nil {
		t.Fatal(err)
	}
	rec := makeRecord("Tokyo")
	if err := s.SaveRecord(ctx, &rec); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	// Migrations are idempotent on an existing database.
	s, err = NewSQLiteStore(dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close() //nolint:errcheck

	count, err := s.CountRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestSQLiteStore_FilePermissions(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "sub", "weather.db")
	s, err := NewSQLiteStore(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close() //nolint:errcheck

	info, err := os.Stat(dsn)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		t.Errorf("permissions = %04o, want no group/other access", perm)
	}
}

func TestSQLiteStore_SaveRecordCanceledContext(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := makeRecord("Delhi")
	if err := s.SaveRecord(ctx, &rec); err == nil {
		t.Fatal("expected error with canceled context")
	}
	if rec.ID != 0 {
		t.Errorf("ID = %d, want 0 after failed save", rec.ID)
	}

	count, err := s.CountRecords(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)
	for _, in := range []any{
		"2024-06-15 12:30:00",
		"2024-06-15T12:30:00Z",
		[]byte("2024-06-15 12:30:00"),
		want,
	} {
		got, err := parseTimestamp(in)
		if err != nil {
			t.Errorf("parseTimestamp(%v): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseTimestamp(%v) = %v, want %v", in, got, want)
		}
	}

	if _, err := parseTimestamp(42); err == nil {
		t.Error("expected error for int input")
	}
	if _, err := parseTimestamp("yesterday"); err == nil {
		t.Error("expected error for unparseable string")
	}
}

func TestReplacePlaceholders(t *testing.T) {
	q, args := buildListQuery("Delhi", 5)
	got := replacePlaceholders(q)
	if len(args) != 2 {
		t.Fatalf("args = %v, want 2", args)
	}
	want := "WHERE cityname = $1 ORDER BY created_at DESC, id DESC LIMIT $2"
	if !strings.Contains(got, want) {
		t.Errorf("query = %q, want it to contain %q", got, want)
	}
}
