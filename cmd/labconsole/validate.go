package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/labconsole/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a lab console configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  labconsole validate -c config.yaml
  labconsole validate --config /etc/labconsole/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// build the devices as serve would, so SDK-level checks run too
	devs, err := config.BuildDevices(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	total, placeholders := len(devs), 0
	for _, d := range devs {
		if d.Placeholder() {
			placeholders++
		}
	}
	devices := fmt.Sprintf("%d configured, %d placeholders", total, placeholders)
	if total == 0 {
		devices = "default table"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:           %d\n", cfg.Port)
	fmt.Printf("  Backend:        %s\n", cfg.BackendURL)
	fmt.Printf("  Probe interval: %s\n", cfg.ProbeInterval.Duration())
	fmt.Printf("  Probe timeout:  %s\n", cfg.ProbeTimeout.Duration())
	fmt.Printf("  Devices:        %s\n", devices)

	return nil
}
