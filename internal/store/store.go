package store

import (
	"context"
	"fmt"
	"io/fs"
	"time"
)

// Store defines the interface for weather record storage.
// Both SQLite and PostgreSQL implementations satisfy this interface.
// Records are append-only: there is no update or delete path.
type Store interface {
	// SaveRecord inserts rec as a new row in a single transaction and fills
	// in the store-assigned ID and CreatedAt.
	SaveRecord(ctx context.Context, rec *Record) error

	// GetRecord retrieves one record by ID. It returns nil, nil when absent.
	GetRecord(ctx context.Context, id int64) (*Record, error)

	// ListRecords returns up to limit records, newest first. An empty city
	// matches all rows.
	ListRecords(ctx context.Context, city string, limit int) ([]Record, error)

	// CountRecords returns the total number of stored records.
	CountRecords(ctx context.Context) (int, error)

	// Close closes the database connection.
	Close() error
}

// DefaultListLimit is used by ListRecords when limit is not positive.
const DefaultListLimit = 50

// Record is the database model for one successful weather fetch.
type Record struct {
	ID                int64
	CountryCode       string
	Coordinate        string
	TemperatureKelvin string
	Pressure          int
	Humidity          int
	CityName          string
	CreatedAt         time.Time
}

// MigrationSource returns the embedded migration files, their directory and
// the goose dialect for a storage driver.
func MigrationSource(driver string) (fs.FS, string, string, error) {
	switch driver {
	case "sqlite":
		return migrations, "migrations", "sqlite3", nil
	case "postgres":
		return pgMigrations, "pgmigrations", "postgres", nil
	default:
		return nil, "", "", fmt.Errorf("unknown storage driver: %s", driver)
	}
}
