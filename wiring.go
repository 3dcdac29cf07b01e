package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/azaanlabs/kioskd/internal/api"
	"github.com/azaanlabs/kioskd/internal/config"
	"github.com/azaanlabs/kioskd/internal/engine"
	"github.com/azaanlabs/kioskd/internal/tokenfile"
)

// deviceAuth holds the pairing token. It implements api.TokenSource for the
// HTTP client and engine-side authentication checks for the sync engine.
// The token is set once at startup from the token file; an unpaired device
// carries an empty token and the engine idles.
type deviceAuth struct {
	mu    sync.RWMutex
	token string
}

// loadDeviceAuth reads the pairing token file. A missing file is not an
// error — the device simply runs unpaired until someone pairs it.
func loadDeviceAuth(tokenPath string) (*deviceAuth, error) {
	tok, _, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	a := &deviceAuth{}
	if tok != nil {
		a.token = tok.AccessToken
	}

	return a, nil
}

// Token implements api.TokenSource.
func (a *deviceAuth) Token() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.token == "" {
		return "", fmt.Errorf("device not paired, run 'kioskd pair <code>'")
	}

	return a.token, nil
}

// Authenticated implements engine.Auth.
func (a *deviceAuth) Authenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.token != ""
}

// apiFetcher adapts api.Client to the engine's Fetcher interface, mapping
// resource kinds to API resource names and heartbeat structs to wire form.
type apiFetcher struct {
	client *api.Client
}

func (f *apiFetcher) Fetch(ctx context.Context, kind engine.Kind, force bool) ([]byte, error) {
	return f.client.FetchResource(ctx, kind.Key(), force)
}

func (f *apiFetcher) SubmitHeartbeat(ctx context.Context, hb engine.Heartbeat) error {
	return f.client.SubmitHeartbeat(ctx, api.HeartbeatReport{
		UptimeSeconds: int64(hb.Uptime.Seconds()),
		LastError:     hb.LastError,
	})
}

// cadencesFromConfig converts [sync.cadence] overrides to engine cadences.
// Unset fields fall back to the built-in defaults; validation has already
// guaranteed the keys and durations parse.
func cadencesFromConfig(cfg *config.Config) map[engine.Kind]engine.Cadence {
	if len(cfg.Sync.Cadence) == 0 {
		return nil
	}

	defaults := engine.DefaultCadences()
	out := make(map[engine.Kind]engine.Cadence, len(cfg.Sync.Cadence))

	for resource, override := range cfg.Sync.Cadence {
		kind, err := engine.ParseKind(resource)
		if err != nil {
			continue
		}

		base := defaults[kind]
		out[kind] = engine.Cadence{
			Interval:   config.ParsedDuration(override.Interval, base.Interval),
			MinSpacing: config.ParsedDuration(override.MinSpacing, base.MinSpacing),
			Cooldown:   config.ParsedDuration(override.Cooldown, base.Cooldown),
		}
	}

	return out
}

// notifyURL returns the websocket notify endpoint: the configured one, or
// the base URL with its scheme flipped to websocket and /notify appended.
func notifyURL(cfg *config.Config) string {
	if cfg.Server.NotifyURL != "" {
		return cfg.Server.NotifyURL
	}

	base := cfg.Server.BaseURL

	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	return base + "/notify"
}

// cachePath returns the cache database location: config override, or the
// platform data directory.
func cachePath(cfg *config.Config) string {
	if cfg.Cache.Path != "" {
		return cfg.Cache.Path
	}

	return config.DefaultCachePath()
}
