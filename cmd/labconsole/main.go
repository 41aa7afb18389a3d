// Package main is the entry point for the labconsole CLI.
//
// The lab console can be run either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	labconsole serve -c config.yaml                # Start the console
//	labconsole validate -c config.yaml             # Validate configuration
//	labconsole probe --backend http://localhost:8000 # One-shot health probe
//	labconsole version                             # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "labconsole",
	Short: "A live console for a lab instrument bench",
	Long: `labconsole keeps one consistent view of a spectroscopy bench.

It probes the device-control backend's health, tracks the connection state
of every instrument and streams the console state to a web page over
Server-Sent Events and WebSocket.

Quick start:
  1. Create a config file (labconsole.yaml)
  2. Run: labconsole serve -c labconsole.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  backend_url: http://localhost:8000
  probe_interval: 30s
  transition_notices: true`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this labconsole binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("labconsole %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
