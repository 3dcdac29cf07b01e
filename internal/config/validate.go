package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// knownResources matches the engine's resource kinds. Kept here as strings
// so the config package does not depend on the engine.
var knownResources = map[string]bool{
	"content":       true,
	"prayer_status": true,
	"prayer_times":  true,
	"events":        true,
	"schedule":      true,
	"heartbeat":     true,
}

// validLogLevels for [logging].level.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks a Config for errors with actionable messages.
func Validate(cfg *Config) error {
	if err := validateURL("server.base_url", cfg.Server.BaseURL, "http", "https"); err != nil {
		return err
	}

	if cfg.Server.NotifyURL != "" {
		if err := validateURL("server.notify_url", cfg.Server.NotifyURL, "ws", "wss"); err != nil {
			return err
		}
	}

	if err := validateDuration("sync.aggregate_window", cfg.Sync.AggregateWindow); err != nil {
		return err
	}

	for resource, cad := range cfg.Sync.Cadence {
		if !knownResources[resource] {
			return fmt.Errorf("unknown resource %q in [sync.cadence] (known: content, prayer_status, prayer_times, events, schedule, heartbeat)", resource)
		}

		prefix := "sync.cadence." + resource

		if err := validateDuration(prefix+".interval", cad.Interval); err != nil {
			return err
		}

		if err := validateDuration(prefix+".min_spacing", cad.MinSpacing); err != nil {
			return err
		}

		if err := validateDuration(prefix+".cooldown", cad.Cooldown); err != nil {
			return err
		}
	}

	if err := validateDuration("network.probe_interval", cfg.Network.ProbeInterval); err != nil {
		return err
	}

	if cfg.Logging.Level != "" && !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", cfg.Logging.Format)
	}

	return nil
}

func validateURL(key, value string, schemes ...string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", key)
	}

	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}

	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}

	return fmt.Errorf("%s must use scheme %s (got %q)", key, strings.Join(schemes, " or "), u.Scheme)
}

func validateDuration(key, value string) error {
	if value == "" {
		return nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid duration (e.g. \"30s\", \"5m\"): %w", key, err)
	}

	if d <= 0 {
		return fmt.Errorf("%s must be positive (got %s)", key, value)
	}

	return nil
}
