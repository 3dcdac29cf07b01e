package main

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/azaanlabs/kioskd/internal/config"
)

func testLoggerMain() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their zero values. Tests set
// globals AFTER newRootCmd() returns, or drive Cobra with cmd.SetArgs().

func resetFlags(t *testing.T) {
	t.Helper()

	oldConfig := flagConfigPath
	oldJSON := flagJSON
	oldVerbose := flagVerbose
	oldQuiet := flagQuiet

	t.Cleanup(func() {
		flagConfigPath = oldConfig
		flagJSON = oldJSON
		flagVerbose = oldVerbose
		flagQuiet = oldQuiet
	})

	flagConfigPath = ""
	flagJSON = false
	flagVerbose = false
	flagQuiet = false
}

func TestBuildLogger_Default(t *testing.T) {
	resetFlags(t)

	logger := buildLogger(config.DefaultConfig())

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_ConfigDebug(t *testing.T) {
	resetFlags(t)

	cfg := config.DefaultConfig()
	cfg.Logging.Level = "debug"

	logger := buildLogger(cfg)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_VerboseOverrides(t *testing.T) {
	resetFlags(t)

	// Config says error, but --verbose should override to Debug.
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"
	flagVerbose = true

	logger := buildLogger(cfg)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_QuietOverrides(t *testing.T) {
	resetFlags(t)

	flagQuiet = true

	logger := buildLogger(config.DefaultConfig())

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}

func TestBuildLogger_NilConfig(t *testing.T) {
	resetFlags(t)

	logger := buildLogger(nil)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	expected := []string{"run", "sync", "status", "show", "pair"}
	for _, name := range expected {
		found := false

		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true

				break
			}
		}

		assert.True(t, found, "expected subcommand %q not found", name)
	}
}

func TestNewRootCmd_PersistentFlags(t *testing.T) {
	cmd := newRootCmd()

	expectedFlags := []string{"config", "json", "verbose", "quiet"}
	for _, name := range expectedFlags {
		flag := cmd.PersistentFlags().Lookup(name)
		assert.NotNil(t, flag, "expected persistent flag %q not found", name)
	}
}

func TestDefaultHTTPClient_HasTimeout(t *testing.T) {
	client := defaultHTTPClient()
	assert.Equal(t, httpClientTimeout, client.Timeout)
}

func TestResolveConfigPath_FlagWins(t *testing.T) {
	resetFlags(t)

	flagConfigPath = "/tmp/override.toml"
	assert.Equal(t, "/tmp/override.toml", resolveConfigPath())
}

func TestResolveConfigPath_EnvFallback(t *testing.T) {
	resetFlags(t)

	t.Setenv(envConfigPath, "/etc/kioskd/config.toml")
	assert.Equal(t, "/etc/kioskd/config.toml", resolveConfigPath())

	// --config beats the environment.
	flagConfigPath = "/tmp/override.toml"
	assert.Equal(t, "/tmp/override.toml", resolveConfigPath())
}

func TestResolveConfigPath_Default(t *testing.T) {
	resetFlags(t)

	t.Setenv(envConfigPath, "")

	assert.Equal(t, config.DefaultConfigPath(), resolveConfigPath())
}
