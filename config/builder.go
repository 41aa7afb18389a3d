package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/labconsole"
)

// BuildOptions converts parsed configuration into SDK options for
// [labconsole.New].
//
// Devices are only passed when the file lists some, so an omitted devices
// key keeps the SDK's default instrument table.
func BuildOptions(cfg *Config) ([]labconsole.Option, error) {
	opts := []labconsole.Option{
		labconsole.WithBackendURL(cfg.BackendURL),
		labconsole.WithPort(cfg.Port),
		labconsole.WithProbeInterval(cfg.ProbeInterval.Duration()),
		labconsole.WithProbeTimeout(cfg.ProbeTimeout.Duration()),
		labconsole.WithTransitionNotices(cfg.TransitionNotices),
	}

	if cfg.Title != "" {
		opts = append(opts, labconsole.WithTitle(cfg.Title))
	}

	if len(cfg.BackendHeaders) > 0 {
		opts = append(opts, labconsole.WithBackendHeaders(mapToKeyValuePairs(cfg.BackendHeaders)...))
	}

	if len(cfg.Devices) > 0 {
		devs, err := BuildDevices(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, labconsole.WithDevices(devs...))
	}

	return opts, nil
}

// BuildDevices converts the configured device table into SDK devices.
func BuildDevices(cfg *Config) ([]labconsole.Device, error) {
	devs := make([]labconsole.Device, 0, len(cfg.Devices))
	for i, dc := range cfg.Devices {
		var opts []labconsole.DeviceOption
		if dc.Placeholder {
			opts = append(opts, labconsole.WithPlaceholder())
		} else {
			opts = append(opts, labconsole.WithRoute(dc.Route))
		}

		d, err := labconsole.NewDevice(dc.ID, dc.Name, opts...)
		if err != nil {
			return nil, fmt.Errorf("devices[%d]: %w", i, err)
		}
		devs = append(devs, d)
	}
	return devs, nil
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
