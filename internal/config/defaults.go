package config

// Default values. Cadence defaults live in the engine; the config file only
// carries overrides.
const (
	defaultBaseURL    = "https://api.azaanlabs.com/v1"
	defaultDeviceName = "kiosk"
)

// DefaultConfig returns a Config populated with all default values. A kiosk
// with no config file runs on exactly this.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:    defaultBaseURL,
			DeviceName: defaultDeviceName,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
