package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
backend_url: http://localhost:8000
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.ProbeInterval.Duration() != 30*time.Second {
		t.Errorf("ProbeInterval = %v, want 30s", cfg.ProbeInterval.Duration())
	}
	if cfg.ProbeTimeout.Duration() != 10*time.Second {
		t.Errorf("ProbeTimeout = %v, want 10s", cfg.ProbeTimeout.Duration())
	}
	if cfg.TransitionNotices {
		t.Error("TransitionNotices = true, want false")
	}
	if len(cfg.Devices) != 0 {
		t.Errorf("len(Devices) = %d, want 0", len(cfg.Devices))
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: MIR Bench
port: 9090
backend_url: https://lab-backend.local:8000
probe_interval: 15s
probe_timeout: 3s
transition_notices: true

backend_headers:
  X-Api-Key: secret

devices:
  - id: arduino_uno_r4
    name: Arduino Uno R4
    route: arduino
  - id: picoscope_5244d
    name: PicoScope 5244D
    placeholder: true
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "MIR Bench" {
		t.Errorf("Title = %q, want %q", cfg.Title, "MIR Bench")
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.BackendURL != "https://lab-backend.local:8000" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.ProbeInterval.Duration() != 15*time.Second {
		t.Errorf("ProbeInterval = %v, want 15s", cfg.ProbeInterval.Duration())
	}
	if cfg.ProbeTimeout.Duration() != 3*time.Second {
		t.Errorf("ProbeTimeout = %v, want 3s", cfg.ProbeTimeout.Duration())
	}
	if !cfg.TransitionNotices {
		t.Error("TransitionNotices = false, want true")
	}
	if cfg.BackendHeaders["X-Api-Key"] != "secret" {
		t.Errorf("BackendHeaders[X-Api-Key] = %q, want %q", cfg.BackendHeaders["X-Api-Key"], "secret")
	}

	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}
	if cfg.Devices[0].Route != "arduino" || cfg.Devices[0].Placeholder {
		t.Errorf("Devices[0] = %+v", cfg.Devices[0])
	}
	if !cfg.Devices[1].Placeholder {
		t.Errorf("Devices[1].Placeholder = false, want true")
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("LAB_BACKEND", "http://bench-7:8000")
	t.Setenv("LAB_API_KEY", "k-123")

	yaml := `
backend_url: ${LAB_BACKEND}
backend_headers:
  X-Api-Key: ${LAB_API_KEY}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.BackendURL != "http://bench-7:8000" {
		t.Errorf("BackendURL = %q, want %q", cfg.BackendURL, "http://bench-7:8000")
	}
	if cfg.BackendHeaders["X-Api-Key"] != "k-123" {
		t.Errorf("BackendHeaders[X-Api-Key] = %q, want %q", cfg.BackendHeaders["X-Api-Key"], "k-123")
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	yaml := `
backend_url: ${LAB_UNSET_BACKEND:-http://localhost:8000}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.BackendURL != "http://localhost:8000" {
		t.Errorf("BackendURL = %q, want %q", cfg.BackendURL, "http://localhost:8000")
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
backend_url: http://localhost:8000
backend_headers:
  X-Api-Key: ${LAB_MISSING_KEY}
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "backend_headers[X-Api-Key]") {
		t.Errorf("error = %q, want to name the header", err.Error())
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantErrLike string
	}{
		{
			name:        "missing backend_url",
			yaml:        `port: 8080`,
			wantErrLike: "backend_url is required",
		},
		{
			name:        "backend_url without scheme",
			yaml:        `backend_url: localhost`,
			wantErrLike: "must have a scheme",
		},
		{
			name:        "backend_url bad scheme",
			yaml:        `backend_url: ftp://lab-backend`,
			wantErrLike: "scheme must be http or https",
		},
		{
			name:        "backend_url without host",
			yaml:        `backend_url: "http://"`,
			wantErrLike: "must have a host",
		},
		{
			name: "port out of range",
			yaml: `
backend_url: http://localhost:8000
port: 70000
`,
			wantErrLike: "port must be between 1 and 65535",
		},
		{
			name: "probe_interval too short",
			yaml: `
backend_url: http://localhost:8000
probe_interval: 500ms
`,
			wantErrLike: "probe_interval must be at least 1s",
		},
		{
			name: "probe_timeout too short",
			yaml: `
backend_url: http://localhost:8000
probe_timeout: 100ms
`,
			wantErrLike: "probe_timeout must be at least 1s",
		},
		{
			name: "device missing id",
			yaml: `
backend_url: http://localhost:8000
devices:
  - name: Arduino
    route: arduino
`,
			wantErrLike: "devices[0]: id is required",
		},
		{
			name: "device id with space",
			yaml: `
backend_url: http://localhost:8000
devices:
  - id: arduino uno
    name: Arduino
    route: arduino
`,
			wantErrLike: "cannot contain whitespace",
		},
		{
			name: "device missing name",
			yaml: `
backend_url: http://localhost:8000
devices:
  - id: arduino_uno_r4
    route: arduino
`,
			wantErrLike: "devices[0] (arduino_uno_r4): name is required",
		},
		{
			name: "device missing route",
			yaml: `
backend_url: http://localhost:8000
devices:
  - id: arduino_uno_r4
    name: Arduino Uno R4
    route: arduino
  - id: continuum_surelite
    name: Continuum Nd:YAG Laser
    placeholder: true
  - id: zurich_hf2li
    name: Zurich HF2LI
`,
			wantErrLike: "devices[2] (zurich_hf2li): route is required",
		},
		{
			name: "device nested route",
			yaml: `
backend_url: http://localhost:8000
devices:
  - id: arduino_uno_r4
    name: Arduino Uno R4
    route: arduino/mux
`,
			wantErrLike: "must be a single path segment",
		},
		{
			name: "duplicate device id",
			yaml: `
backend_url: http://localhost:8000
devices:
  - id: arduino_uno_r4
    name: Arduino Uno R4
    route: arduino
  - id: arduino_uno_r4
    name: Spare Arduino
    route: arduino2
`,
			wantErrLike: "devices[1] (arduino_uno_r4): duplicate id, first defined at devices[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErrLike)
			}
		})
	}
}

func TestParse_PlaceholderNeedsNoRoute(t *testing.T) {
	yaml := `
backend_url: http://localhost:8000
devices:
  - id: zurich_hf2li
    name: Zurich HF2LI
    placeholder: true
`
	if _, err := Parse([]byte(yaml)); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	yaml := `
this is not: valid: yaml: at all
  - broken
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	yaml := `
backend_url: http://localhost:8000
probe_interval: not-a-duration
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error = %q, want to contain 'invalid duration'", err.Error())
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "10s", 10 * time.Second, false},
		{"milliseconds", "1500ms", 1500 * time.Millisecond, false},
		{"minutes", "2m", 2 * time.Minute, false},
		{"combined", "1m30s", 90 * time.Second, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := `
backend_url: http://localhost:8000
probe_interval: ` + tt.input

			cfg, err := Parse([]byte(yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.ProbeInterval.Duration() != tt.want {
				t.Errorf("ProbeInterval = %v, want %v", cfg.ProbeInterval.Duration(), tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(path, []byte("backend_url: http://localhost:8000\ntitle: Bench\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Title != "Bench" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Bench")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %q", err.Error())
	}
}
