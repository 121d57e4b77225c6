package cmd

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusServer string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the health endpoint of a running weatherapp instance",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:8000", "weatherapp server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
	resp, err := client.Get(statusServer + "/api/v1/health")
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", statusServer, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var health struct {
		Status      string `json:"status"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime"`
		DefaultCity string `json:"default_city"`
		Database    struct {
			Driver       string `json:"driver"`
			Status       string `json:"status"`
			SizeBytes    int64  `json:"size_bytes"`
			TotalRecords int    `json:"total_records"`
		} `json:"database"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&health); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "weatherapp %s\n", health.Version)
	fmt.Fprintf(out, "Status: %s\n", health.Status)
	fmt.Fprintf(out, "Uptime: %s\n", health.Uptime)
	fmt.Fprintf(out, "Default city: %s\n", health.DefaultCity)
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Database: %s (%s)\n", health.Database.Driver, health.Database.Status)
	if health.Database.SizeBytes > 0 {
		fmt.Fprintf(out, "  Size: %s\n", formatBytes(health.Database.SizeBytes))
	}
	fmt.Fprintf(out, "  Records: %s\n", formatNumber(health.Database.TotalRecords))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server reported %s (HTTP %d)", health.Status, resp.StatusCode)
	}
	return nil
}

// formatNumber formats an integer with comma separators (e.g., 1,247,832).
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
