// Package lookup runs the validate, fetch and persist steps for a single
// city request.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chadmayfield/weatherapp/internal/store"
	"github.com/chadmayfield/weatherapp/internal/weather"
)

// ErrBadRequest wraps every failure that should reach the client as a
// plain 400: unknown city, unreadable reference list, any upstream failure.
var ErrBadRequest = errors.New("bad request")

// CityChecker accepts or rejects a city name.
type CityChecker interface {
	Check(name string) error
}

// Fetcher retrieves current weather for a city.
type Fetcher interface {
	Fetch(ctx context.Context, city string) (*weather.Report, error)
}

// Service wires the validator, fetcher and store together.
type Service struct {
	cities  CityChecker
	fetcher Fetcher
	store   store.Store
	logger  *slog.Logger
}

// NewService creates a new lookup service.
func NewService(c CityChecker, f Fetcher, s store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cities: c, fetcher: f, store: s, logger: logger}
}

// Lookup validates city, fetches its current weather and appends one row
// to the store. Nothing is written unless the fetch succeeds.
//
// Validation and fetch failures are returned wrapped in ErrBadRequest.
// Store failures are returned as-is.
func (s *Service) Lookup(ctx context.Context, city string) (*weather.Report, *store.Record, error) {
	s.logger.Info("request made for city", "city", city)

	if err := s.cities.Check(city); err != nil {
		s.logger.Error("city is not a valid city name", "city", city, "error", err)
		return nil, nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	rep, err := s.fetcher.Fetch(ctx, city)
	if err != nil {
		s.logger.Error("weather api error", "city", city, "error", err)
		return nil, nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	rec := &store.Record{
		CountryCode:       rep.CountryCode,
		Coordinate:        rep.Coordinate,
		TemperatureKelvin: rep.TemperatureKelvin,
		Pressure:          rep.Pressure,
		Humidity:          rep.Humidity,
		CityName:          rep.CityName,
	}
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		s.logger.Error("failed to save weather record", "city", city, "error", err)
		return nil, nil, err
	}

	s.logger.Debug("weather record saved", "city", city, "id", rec.ID)
	return rep, rec, nil
}
