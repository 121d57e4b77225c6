package api

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/chadmayfield/weatherapp/internal/lookup"
	"github.com/chadmayfield/weatherapp/internal/store"
	"github.com/chadmayfield/weatherapp/internal/weather"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

var validate = validator.New()

const (
	maxListLimit = 500
	maxFormBytes = 1 << 20
)

// WeatherLookup runs the validate, fetch and persist pipeline for a city.
type WeatherLookup interface {
	Lookup(ctx context.Context, city string) (*weather.Report, *store.Record, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Lookup        WeatherLookup
	Store         store.Store
	Logger        *slog.Logger
	DefaultCity   string
	StartTime     time.Time
	StorageDriver string
	StoragePath   string
	Version       string
}

// cityForm is the POST body of the weather page.
type cityForm struct {
	City string `validate:"required,max=80"`
}

// pageData is what index.html renders.
type pageData struct {
	Data   *weather.Report
	Record *store.Record
}

// apiError is a JSON error response.
type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg, Code: status})
}

// plainError writes the bare status text, with no detail about the cause.
func plainError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// cityFromRequest picks the city for the weather page: the "city" form field
// on POST, the configured default otherwise.
func (h *Handlers) cityFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		h.Logger.Debug("returning default city", "city", h.DefaultCity)
		return h.DefaultCity, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.Logger.Error("parsing form", "error", err)
		return "", false
	}
	values, ok := r.PostForm["city"]
	if !ok || len(values) == 0 {
		h.Logger.Error("missing city form field")
		return "", false
	}

	form := cityForm{City: values[0]}
	if err := validate.Struct(form); err != nil {
		h.Logger.Error("invalid city form field", "city", form.City, "error", err)
		return "", false
	}
	return form.City, true
}

// Weather handles GET / and POST /
func (h *Handlers) Weather(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityFromRequest(w, r)
	if !ok {
		plainError(w, http.StatusBadRequest)
		return
	}

	rep, rec, err := h.Lookup.Lookup(r.Context(), city)
	if err != nil {
		if errors.Is(err, lookup.ErrBadRequest) {
			plainError(w, http.StatusBadRequest)
			return
		}
		plainError(w, http.StatusInternalServerError)
		return
	}

	// Render fully before writing so a template error cannot leave a half page.
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, pageData{Data: rep, Record: rec}); err != nil {
		h.Logger.Error("rendering weather page", "city", city, "error", err)
		plainError(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ListRecords handles GET /api/v1/records
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city := q.Get("city")

	limit := store.DefaultListLimit
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxListLimit {
			limit = n
		}
	}

	recs, err := h.Store.ListRecords(r.Context(), city, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	result := make([]map[string]any, len(recs))
	for i := range recs {
		result[i] = recordToMap(&recs[i])
	}

	type recordsResponse struct {
		City    string           `json:"city,omitempty"`
		Limit   int              `json:"limit"`
		Total   int              `json:"total"`
		Records []map[string]any `json:"records"`
	}

	writeJSON(w, http.StatusOK, recordsResponse{
		City:    city,
		Limit:   limit,
		Total:   len(result),
		Records: result,
	})
}

// GetRecord handles GET /api/v1/records/{id}
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	rec, err := h.Store.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get record")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	writeJSON(w, http.StatusOK, recordToMap(rec))
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	type dbHealth struct {
		Driver       string `json:"driver"`
		Status       string `json:"status"`
		SizeBytes    int64  `json:"size_bytes,omitempty"`
		TotalRecords int    `json:"total_records"`
	}
	type healthResponse struct {
		Status      string   `json:"status"`
		Version     string   `json:"version"`
		Uptime      string   `json:"uptime"`
		DefaultCity string   `json:"default_city"`
		Database    dbHealth `json:"database"`
	}

	resp := healthResponse{
		Status:      "healthy",
		Version:     h.Version,
		Uptime:      formatUptime(time.Since(h.StartTime)),
		DefaultCity: h.DefaultCity,
		Database: dbHealth{
			Driver: h.StorageDriver,
			Status: "ok",
		},
	}

	if count, err := h.Store.CountRecords(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database.Status = "error"
	} else {
		resp.Database.TotalRecords = count
	}

	// Path omitted to avoid exposing filesystem details.
	if h.StorageDriver == "sqlite" && h.StoragePath != "" {
		if info, err := os.Stat(h.StoragePath); err == nil {
			resp.Database.SizeBytes = info.Size()
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// recordToMap converts a Record to a map with snake_case keys for JSON responses.
func recordToMap(rec *store.Record) map[string]any {
	return map[string]any{
		"id":           rec.ID,
		"country_code": rec.CountryCode,
		"coordinate":   rec.Coordinate,
		"temp":         rec.TemperatureKelvin,
		"pressure":     rec.Pressure,
		"humidity":     rec.Humidity,
		"cityname":     rec.CityName,
		"created_at":   rec.CreatedAt,
	}
}
