// Package dashboard provides the embedded console page.
//
// The page is compiled into the binary with Go's embed directive, so the
// console ships as a single binary. It renders the snapshots streamed from
// /api/sse and posts device actions and dismissals back to the API.
//
// The server package serves it at the root path ("/"). Users of the
// labconsole library should not need to interact with this package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the console page.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Console page with inline CSS and JavaScript; {{.Title}} is
//	                  substituted by the server
//
// Assets is used by the server package to serve the dashboard. The embed
// directive includes all files in the assets directory at compile time.
//
//go:embed assets/*
var Assets embed.FS
