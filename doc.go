// Package labconsole is the state synchronization engine behind a lab
// instrument console.
//
// A console keeps one consistent picture of a spectroscopy bench: whether the
// device-control backend is reachable, the connection state of every
// instrument, a global error slot, a loading flag and a queue of transient
// notifications. Device operations and a periodic backend health probe
// report into a single store; the browser page renders from its snapshots,
// streamed over Server-Sent Events or WebSocket.
//
// # Quick Start
//
//	c, _ := labconsole.New(labconsole.WithBackendURL("http://localhost:8000"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	c.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Configuration uses functional options:
//
//	arduino, _ := labconsole.NewDevice("arduino_uno_r4", "Arduino Uno R4",
//	    labconsole.WithRoute("arduino"),
//	)
//	scope, _ := labconsole.NewDevice("picoscope_5244d", "PicoScope 5244D",
//	    labconsole.WithPlaceholder(),
//	)
//
//	c, err := labconsole.New(
//	    labconsole.WithBackendURL("http://lab-backend:8000"),
//	    labconsole.WithDevices(arduino, scope),
//	    labconsole.WithProbeInterval(15 * time.Second),
//	    labconsole.WithTransitionNotices(true),
//	    labconsole.WithPort(9090),
//	)
//
// Without [WithDevices] the console lists the six instruments of the
// standard setup, see [DefaultDevices].
//
// # Notifications
//
// Notifications are shown one at a time: the most recently added one is
// surfaced, and it expires after its duration (3s for success and info, 4s
// for warnings, 5s for errors). When it goes, the one below it is surfaced
// with a fresh timer. Users dismiss the surfaced notification explicitly;
// clicking elsewhere on the page does not dismiss it.
//
// # HTTP API
//
//   - GET /: console page
//   - GET /api/state: snapshot, summary and latest health reading
//   - GET /api/sse, GET /api/ws: snapshot streams
//   - POST /api/notifications/{id}/dismiss
//   - DELETE /api/notifications, DELETE /api/error
//   - POST /api/devices/{id}/connect|disconnect|refresh
package labconsole
