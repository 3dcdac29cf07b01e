package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/azaanlabs/kioskd/internal/api"
	"github.com/azaanlabs/kioskd/internal/cache"
	"github.com/azaanlabs/kioskd/internal/config"
	"github.com/azaanlabs/kioskd/internal/engine"
	"github.com/azaanlabs/kioskd/internal/netmon"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon",
		Long: `Run the kiosk sync daemon in the foreground.

The daemon keeps the local resource cache fresh by polling the backend on
per-resource cadences, listens for server push nudges over a websocket, and
reports a periodic heartbeat. Intended to be supervised by systemd.`,
		Args: cobra.NoArgs,
		RunE: runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfgPath := resolveConfigPath()

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	ctx := shutdownContext(cmd.Context(), logger)

	auth, err := loadDeviceAuth(config.DefaultTokenPath())
	if err != nil {
		return err
	}

	store, err := cache.Open(cachePath(cfg), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	monitor := netmon.New(cfg.Server.BaseURL+"/ping", nil,
		config.ParsedDuration(cfg.Network.ProbeInterval, 0), logger)
	monitor.Start(ctx)

	defer monitor.Stop()

	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.DeviceID, defaultHTTPClient(), auth, logger)

	buildEngine := func(c *config.Config) (*engine.Engine, error) {
		return engine.New(engine.Config{
			Fetcher:         &apiFetcher{client: client},
			Store:           store,
			Network:         monitor,
			Auth:            auth,
			Logger:          logger,
			Cadences:        cadencesFromConfig(c),
			AggregateWindow: config.ParsedDuration(c.Sync.AggregateWindow, 0),
		})
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	holder := &engineHolder{}
	holder.swap(ctx, eng)

	defer holder.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	if auth.Authenticated() {
		listener := api.NewNotifyListener(notifyURL(cfg), auth, func(resource string) {
			holder.nudge(gctx, resource)
		}, logger)
		g.Go(func() error { return listener.Run(gctx) })
	} else {
		logger.Info("device not paired, push notifications disabled")
	}

	// Hot-reload only applies when a config file actually exists; a
	// zero-config kiosk has nothing to watch.
	if _, statErr := os.Stat(cfgPath); statErr == nil {
		watcher := config.NewWatcher(cfgPath, func(fresh *config.Config) {
			freshEng, buildErr := buildEngine(fresh)
			if buildErr != nil {
				logger.Warn("reloaded config rejected", slog.String("error", buildErr.Error()))

				return
			}

			logger.Info("applying reloaded configuration")
			holder.swap(gctx, freshEng)
		}, logger)
		g.Go(func() error { return watcher.Run(gctx) })
	}

	logger.Info("kioskd running",
		slog.String("base_url", cfg.Server.BaseURL),
		slog.String("cache", cachePath(cfg)),
		slog.Bool("paired", auth.Authenticated()),
	)

	<-gctx.Done()

	return g.Wait()
}

// engineHolder serializes engine replacement on config reload so the nudge
// callback and the watcher never race on a half-stopped engine.
type engineHolder struct {
	mu  sync.Mutex
	eng *engine.Engine
}

// swap installs a fresh engine, stopping the previous one first so the two
// never poll concurrently.
func (h *engineHolder) swap(ctx context.Context, fresh *engine.Engine) {
	h.mu.Lock()
	old := h.eng
	h.eng = fresh
	h.mu.Unlock()

	if old != nil {
		old.Cleanup()
	}

	fresh.Initialize(ctx)
}

func (h *engineHolder) cleanup() {
	h.mu.Lock()
	eng := h.eng
	h.eng = nil
	h.mu.Unlock()

	if eng != nil {
		eng.Cleanup()
	}
}

// nudge reacts to a server push. A named resource syncs just that kind; an
// empty or unknown one falls back to an aggregate sync. Non-forced, so the
// engine's gates absorb nudge storms.
func (h *engineHolder) nudge(ctx context.Context, resource string) {
	h.mu.Lock()
	eng := h.eng
	h.mu.Unlock()

	if eng == nil {
		return
	}

	if resource == "" {
		eng.SyncAll(ctx, false)

		return
	}

	kind, err := engine.ParseKind(resource)
	if err != nil {
		eng.SyncAll(ctx, false)

		return
	}

	eng.SyncKind(ctx, kind, false)
}
