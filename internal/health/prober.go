package health

//go:generate mockgen -destination=mock_prober.go -package=health github.com/jpalmerr/labconsole/internal/health Prober

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jpalmerr/labconsole/internal/backend"
)

// HealthPath is the backend's liveness endpoint.
const HealthPath = "/api/health"

// Phase is the backend health as last observed.
type Phase string

const (
	// PhaseUnknown means no probe has completed yet.
	PhaseUnknown Phase = "unknown"

	// PhaseConnected means the backend answered the probe with a 2xx status.
	PhaseConnected Phase = "connected"

	// PhaseDisconnected means the backend could not be reached at all.
	PhaseDisconnected Phase = "disconnected"

	// PhaseError means the backend was reachable but answered with a non-2xx status.
	PhaseError Phase = "error"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Reading is the outcome of one health probe.
type Reading struct {
	Phase Phase `json:"phase"`

	// ModulesLoaded is the number of device modules the backend reports.
	// Zero unless Phase is PhaseConnected.
	ModulesLoaded int `json:"modulesLoaded"`

	// StatusCode is zero when the request failed before a response.
	StatusCode int           `json:"statusCode,omitempty"`
	Latency    time.Duration `json:"-"`
	CheckedAt  time.Time     `json:"checkedAt"`
	Err        error         `json:"-"`
}

// Healthy reports whether the reading counts as "backend connected".
func (r Reading) Healthy() bool {
	return r.Phase == PhaseConnected
}

// Prober performs a single backend health probe. Implementations must never
// panic on network or protocol failures; they report them in the Reading.
type Prober interface {
	Probe(ctx context.Context) Reading
}

// healthResponse is the body of a successful health probe.
type healthResponse struct {
	ModulesLoaded int `json:"modules_loaded"`
}

// HTTPProber probes GET <base>/api/health.
type HTTPProber struct {
	client  *backend.Client
	url     string
	timeout time.Duration
}

// NewHTTPProber creates a prober for the backend at baseURL.
func NewHTTPProber(client *backend.Client, baseURL string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client:  client,
		url:     strings.TrimRight(baseURL, "/") + HealthPath,
		timeout: timeout,
	}
}

// URL returns the probed URL.
func (p *HTTPProber) URL() string {
	return p.url
}

// Probe performs one health probe.
//
// A 2xx answer is connected even when the body cannot be decoded; the module
// count is then zero. Transport failures map to PhaseDisconnected and non-2xx
// answers to PhaseError.
func (p *HTTPProber) Probe(ctx context.Context) Reading {
	resp := p.client.Fetch(ctx, backend.Request{URL: p.url, Timeout: p.timeout})

	reading := Reading{
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
		CheckedAt:  time.Now(),
	}

	switch {
	case resp.Error != nil:
		reading.Phase = PhaseDisconnected
		reading.Err = resp.Error
	case !resp.OK():
		reading.Phase = PhaseError
		reading.Err = fmt.Errorf("health probe returned HTTP %d", resp.StatusCode)
	default:
		reading.Phase = PhaseConnected
		var body healthResponse
		if err := json.Unmarshal(resp.Body, &body); err == nil {
			reading.ModulesLoaded = body.ModulesLoaded
		}
	}

	return reading
}

// Close releases the prober's idle connections.
func (p *HTTPProber) Close() {
	p.client.Close()
}
