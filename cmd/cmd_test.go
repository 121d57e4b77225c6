package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRedactDSN(t *testing.T) {
	got := redactDSN("postgres://weather:secret@db:5432/weather?sslmode=disable")
	if strings.Contains(got, "secret") {
		t.Errorf("redactDSN leaks password: %q", got)
	}
	if !strings.HasPrefix(got, "postgres://weather:") || !strings.Contains(got, "@db:5432/weather?sslmode=disable") {
		t.Errorf("redactDSN = %q, want user, host and query kept", got)
	}

	plain := "postgres://db:5432/weather"
	if got := redactDSN(plain); got != plain {
		t.Errorf("redactDSN(%q) = %q, want unchanged", plain, got)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1247832: "1,247,832"}
	for n, want := range tests {
		if got := formatNumber(n); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{512: "512 B", 2048: "2.0 KB", 5 << 20: "5.0 MB", 3 << 30: "3.0 GB"}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestRunStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","version":"1.2.3","uptime":"5m","default_city":"Delhi",
			"database":{"driver":"sqlite","status":"ok","size_bytes":4096,"total_records":1234}}`))
	}))
	defer srv.Close()

	statusServer = srv.URL
	t.Cleanup(func() { statusServer = "http://localhost:8000" })

	var out bytes.Buffer
	statusCmd.SetOut(&out)
	t.Cleanup(func() { statusCmd.SetOut(nil) })

	if err := runStatus(statusCmd, nil); err != nil {
		t.Fatalf("runStatus: %v", err)
	}

	for _, want := range []string{"weatherapp 1.2.3", "Status: healthy", "Default city: Delhi", "Records: 1,234", "Size: 4.0 KB"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
