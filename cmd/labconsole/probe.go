package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/labconsole/internal/backend"
	"github.com/jpalmerr/labconsole/internal/health"
)

const defaultProbeTimeout = 10 * time.Second

// probeCmd runs a single backend health probe.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe the backend health once",
	Long: `Probe the device-control backend's health endpoint once and print the
result, without starting the console.

Exit codes:
  0 - Backend answered with a 2xx status
  1 - Backend unreachable or answered with an error status

Example:
  labconsole probe --backend http://localhost:8000
  labconsole probe --backend http://lab-backend:8000 --timeout 3s -H X-Api-Key=secret`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().String("backend", "", "backend base URL (required)")
	probeCmd.Flags().Duration("timeout", defaultProbeTimeout, "probe timeout")
	probeCmd.Flags().StringSliceP("header", "H", nil, "request header as key=value (repeatable)")
	_ = probeCmd.MarkFlagRequired("backend")
}

func runProbe(cmd *cobra.Command, args []string) error {
	backendURL, _ := cmd.Flags().GetString("backend")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	rawHeaders, _ := cmd.Flags().GetStringSlice("header")

	u, err := url.Parse(backendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend URL %q: must be http:// or https:// with a host", backendURL)
	}
	if timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", timeout)
	}

	headers := make(map[string]string, len(rawHeaders))
	for _, h := range rawHeaders {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid header %q: expected key=value", h)
		}
		headers[k] = v
	}

	prober := health.NewHTTPProber(backend.NewClient(headers), backendURL, timeout)
	defer prober.Close()

	reading := prober.Probe(cmd.Context())

	fmt.Printf("Probed %s\n", prober.URL())
	fmt.Printf("  Phase:   %s\n", reading.Phase)
	if reading.StatusCode != 0 {
		fmt.Printf("  Status:  %d\n", reading.StatusCode)
	}
	if reading.Healthy() {
		fmt.Printf("  Modules: %d\n", reading.ModulesLoaded)
	}
	fmt.Printf("  Latency: %s\n", reading.Latency.Round(time.Millisecond))

	if !reading.Healthy() {
		return fmt.Errorf("backend %s: %w", reading.Phase, reading.Err)
	}
	return nil
}
