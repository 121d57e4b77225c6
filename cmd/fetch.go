package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/chadmayfield/weatherapp/internal/cities"
	"github.com/chadmayfield/weatherapp/internal/lookup"
	"github.com/chadmayfield/weatherapp/internal/weather"
	"github.com/spf13/cobra"
)

var fetchCity string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and record current weather for one city without starting the server",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchCity, "city", "", "city name (default: configured default_city)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	city := fetchCity
	if city == "" {
		city = cfg.DefaultCity
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	client, err := weather.NewClient(cfg.OpenWeather.APIKey,
		weather.WithBaseURL(cfg.OpenWeather.BaseURL),
		weather.WithTimeout(cfg.OpenWeather.Timeout),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := lookup.NewService(cities.NewFile(cfg.CitiesFile), client, s, slog.Default())
	rep, rec, err := svc.Lookup(ctx, city)
	if err != nil {
		return fmt.Errorf("fetching %q: %w", city, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", rep.CityName, rep.CountryCode)
	fmt.Fprintf(out, "  Coordinate:  %s\n", rep.Coordinate)
	fmt.Fprintf(out, "  Temperature: %s / %s\n", rep.TemperatureKelvin, rep.TemperatureCelsius)
	fmt.Fprintf(out, "  Pressure:    %d hPa\n", rep.Pressure)
	fmt.Fprintf(out, "  Humidity:    %d%%\n", rep.Humidity)
	fmt.Fprintf(out, "Saved record #%d at %s\n", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
