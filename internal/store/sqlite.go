package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a SQLite database, sets file permissions, and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if err := os.Chmod(dsn, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("setting file permissions: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying database connection for migration commands.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *Record) error {
	return saveRecord(ctx, s.db, `
		INSERT INTO weather (country_code, coordinate, temp, pressure, humidity, cityname)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`, rec)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, country_code, coordinate, temp, pressure, humidity, cityname, created_at
		FROM weather WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, city string, limit int) ([]Record, error) {
	query, args := buildListQuery(city, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanRecords(rows)
}

func (s *SQLiteStore) CountRecords(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM weather`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Shared helpers ---

type scanner interface {
	Scan(dest ...any) error
}

// saveRecord runs the dialect-specific INSERT ... RETURNING in its own
// transaction and copies the generated columns back into rec.
func saveRecord(ctx context.Context, db *sql.DB, query string, rec *Record) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is harmless

	var id int64
	var createdRaw any
	if err := tx.QueryRowContext(ctx, query,
		rec.CountryCode, rec.Coordinate, rec.TemperatureKelvin,
		rec.Pressure, rec.Humidity, rec.CityName,
	).Scan(&id, &createdRaw); err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}

	createdAt, err := parseTimestamp(createdRaw)
	if err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = createdAt
	return nil
}

func buildListQuery(city string, limit int) (string, []any) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := `SELECT id, country_code, coordinate, temp, pressure, humidity, cityname, created_at
		FROM weather`
	var args []any
	if city != "" {
		q += ` WHERE cityname = ?`
		args = append(args, city)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)
	return q, args
}

// parseTimestamp handles both time.Time and string timestamp values from SQLite.
func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case []byte:
		return parseTimestamp(string(t))
	case string:
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05.999999999-07:00",
			"2006-01-02 15:04:05+00:00",
			"2006-01-02 15:04:05 +0000 UTC",
			"2006-01-02 15:04:05",
		} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", t)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type: %T", v)
	}
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var temp sql.NullString
	var pressure, humidity sql.NullInt64
	var createdRaw any
	if err := row.Scan(
		&rec.ID, &rec.CountryCode, &rec.Coordinate, &temp,
		&pressure, &humidity, &rec.CityName, &createdRaw,
	); err != nil {
		return nil, err
	}
	rec.TemperatureKelvin = temp.String
	rec.Pressure = int(pressure.Int64)
	rec.Humidity = int(humidity.Int64)

	ts, err := parseTimestamp(createdRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = ts
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

// replacePlaceholders converts ? to $1, $2, $3 etc for postgres.
func replacePlaceholders(query string) string {
	result := make([]byte, 0, len(query))
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, fmt.Sprintf("$%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
