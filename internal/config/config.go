// Package config implements TOML configuration loading, validation, and
// platform path resolution for kioskd. Configuration is optional: a kiosk
// with no config file runs entirely on defaults plus the pairing token.
package config

import "time"

// Config is the top-level structure parsed from the TOML config file.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Cache   CacheConfig   `toml:"cache"`
	Sync    SyncConfig    `toml:"sync"`
	Network NetworkConfig `toml:"network"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig identifies the backend and this device.
type ServerConfig struct {
	BaseURL    string `toml:"base_url"`
	NotifyURL  string `toml:"notify_url"` // derived from base_url when empty
	DeviceID   string `toml:"device_id"`
	DeviceName string `toml:"device_name"`
}

// CacheConfig locates the resource cache database.
type CacheConfig struct {
	Path string `toml:"path"` // empty means the platform data directory
}

// SyncConfig tunes the sync engine. Cadence overrides are keyed by resource
// name ([sync.cadence.content] etc.); unlisted resources keep the built-in
// defaults.
type SyncConfig struct {
	AggregateWindow string                   `toml:"aggregate_window"`
	Cadence         map[string]CadenceConfig `toml:"cadence"`
}

// CadenceConfig overrides the timing for one resource. All fields are Go
// duration strings; empty fields keep their defaults.
type CadenceConfig struct {
	Interval   string `toml:"interval"`
	MinSpacing string `toml:"min_spacing"`
	Cooldown   string `toml:"cooldown"`
}

// NetworkConfig tunes connectivity probing.
type NetworkConfig struct {
	ProbeInterval string `toml:"probe_interval"`
}

// LoggingConfig controls log verbosity and format.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // auto (empty), text, json
}

// ParsedDuration returns the parsed duration for a non-empty config string,
// or fallback. Validation guarantees the parse cannot fail after Load.
func ParsedDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}

	return d
}
