// Package weather fetches current conditions for a city from the
// OpenWeatherMap API.
package weather

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the OpenWeatherMap current weather endpoint.
const DefaultBaseURL = "http://api.openweathermap.org/data/2.5/weather"

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20

	breakerMaxFailures = 5
	breakerOpenTimeout = 60 * time.Second
)

var (
	// ErrUpstreamStatus is returned for any non-2xx response.
	ErrUpstreamStatus = errors.New("unexpected upstream status")

	// ErrMalformedResponse is returned when the body is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrIncompleteResponse is returned when a required field is absent.
	ErrIncompleteResponse = errors.New("incomplete upstream response")

	// ErrCircuitOpen is returned without contacting the upstream while the
	// breaker is open after repeated failures.
	ErrCircuitOpen = errors.New("upstream circuit open")
)

// Report is the normalized result of one successful fetch.
type Report struct {
	CountryCode        string
	Coordinate         string // "<lon> <lat>"
	TemperatureKelvin  string // e.g. "300.15k"
	TemperatureCelsius string // e.g. "26.99C"
	Pressure           int    // hPa
	Humidity           int    // percent
	CityName           string
}

// Client calls the current weather endpoint. It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	timeoutSet bool
	breaker    *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the endpoint URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client. The client is copied,
// so a later WithTimeout never modifies the caller's value. Nil is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the overall timeout of each upstream call. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		c.timeoutSet = true
	}
}

// NewClient creates a Client for the given API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openweathermap api key is required")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}

	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		}
	} else {
		hc := *c.httpClient
		c.httpClient = &hc
	}
	if c.timeoutSet {
		c.httpClient.Timeout = c.timeout
	}

	// Opens after breakerMaxFailures consecutive upstream failures and
	// half-opens after breakerOpenTimeout. Requests are never retried.
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openweathermap",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		IsSuccessful: isUpstreamHealthy,
	})

	return c, nil
}

// notUpstreamFault wraps errors that say nothing about the upstream's health:
// the caller gave up, or the upstream answered with a client error.
type notUpstreamFault struct{ err error }

func (e *notUpstreamFault) Error() string { return e.err.Error() }
func (e *notUpstreamFault) Unwrap() error { return e.err }

func isUpstreamHealthy(err error) bool {
	var nf *notUpstreamFault
	return err == nil || errors.As(err, &nf)
}

// Fetch retrieves current weather for city. It makes exactly one request.
func (c *Client) Fetch(ctx context.Context, city string) (*Report, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	result, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := c.do(req)
		if err != nil && ctx.Err() != nil {
			return nil, &notUpstreamFault{err: err}
		}
		return body, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		var nf *notUpstreamFault
		if errors.As(err, &nf) {
			return nil, nf.err
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T from circuit breaker", result)
	}
	return parseReport(body, city)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting weather: %w", redactURLError(err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		err := fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
		// 4xx other than 429 is an answer about this request, not an outage.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &notUpstreamFault{err: err}
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// currentWeather mirrors the parts of the upstream payload we use. Pointers
// distinguish an absent field from a zero value.
type currentWeather struct {
	Sys *struct {
		Country *string `json:"country"`
	} `json:"sys"`
	Coord *struct {
		Lon *json.Number `json:"lon"`
		Lat *json.Number `json:"lat"`
	} `json:"coord"`
	Main *struct {
		Temp     *json.Number `json:"temp"`
		Pressure *json.Number `json:"pressure"`
		Humidity *json.Number `json:"humidity"`
	} `json:"main"`
}

func parseReport(body []byte, city string) (*Report, error) {
	var cw currentWeather
	if err := json.Unmarshal(body, &cw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch {
	case cw.Sys == nil || cw.Sys.Country == nil:
		return nil, fmt.Errorf("%w: sys.country", ErrIncompleteResponse)
	case cw.Coord == nil || cw.Coord.Lon == nil || cw.Coord.Lat == nil:
		return nil, fmt.Errorf("%w: coord", ErrIncompleteResponse)
	case cw.Main == nil || cw.Main.Temp == nil:
		return nil, fmt.Errorf("%w: main.temp", ErrIncompleteResponse)
	case cw.Main.Pressure == nil:
		return nil, fmt.Errorf("%w: main.pressure", ErrIncompleteResponse)
	case cw.Main.Humidity == nil:
		return nil, fmt.Errorf("%w: main.humidity", ErrIncompleteResponse)
	}

	celsius, err := ToCelsius(cw.Main.Temp.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	pressure, err := cw.Main.Pressure.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: main.pressure %q is not an integer", ErrMalformedResponse, cw.Main.Pressure.String())
	}
	humidity, err := cw.Main.Humidity.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: main.humidity %q is not an integer", ErrMalformedResponse, cw.Main.Humidity.String())
	}

	return &Report{
		CountryCode:        *cw.Sys.Country,
		Coordinate:         cw.Coord.Lon.String() + " " + cw.Coord.Lat.String(),
		TemperatureKelvin:  cw.Main.Temp.String() + "k",
		TemperatureCelsius: celsius + "C",
		Pressure:           int(pressure),
		Humidity:           int(humidity),
		CityName:           city,
	}, nil
}

// redactURLError masks the appid query parameter in transport errors so the
// API key never reaches the logs.
func redactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u, perr := url.Parse(uerr.URL)
	if perr != nil {
		return err
	}
	q := u.Query()
	if q.Has("appid") {
		q.Set("appid", "***")
		u.RawQuery = q.Encode()
	}
	return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
}
