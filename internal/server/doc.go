// Package server provides the HTTP surface of the lab console.
//
// It handles all HTTP concerns:
//
//   - Console page: serves the embedded HTML page at "/"
//   - REST API: "/api/state" for the current snapshot plus the notification,
//     error and device action routes
//   - Server-Sent Events: snapshot stream at "/api/sse"
//   - WebSocket: the same stream at "/api/ws"
//
// Every route reads from or dispatches into the application store; the
// server holds no state of its own. It shuts down gracefully on context
// cancellation, with a 5-second timeout for in-flight requests.
package server
