// Package health watches backend liveness for the lab console.
//
// An [HTTPProber] performs one GET against the backend's /api/health
// endpoint and classifies the outcome as a [Reading]. A [Monitor] runs the
// prober on a fixed interval and reports every reading into the application
// store as a SetBackendConnection action, optionally announcing phase changes
// as notifications.
//
// The main components are:
//
//   - [Prober]: single-shot probe abstraction, mocked in tests with [MockProber]
//   - [HTTPProber]: the production prober
//   - [Monitor]: the periodic schedule with idempotent Start and Stop
//   - [Reading]: the classified outcome of one probe
package health
