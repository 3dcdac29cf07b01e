package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/azaanlabs/kioskd/internal/api"
	"github.com/azaanlabs/kioskd/internal/cache"
	"github.com/azaanlabs/kioskd/internal/config"
	"github.com/azaanlabs/kioskd/internal/engine"
	"github.com/azaanlabs/kioskd/internal/netmon"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [resource]",
		Short: "Force an immediate sync",
		Long: `Run one forced sync and exit.

With no argument, every resource is synced concurrently and the heartbeat is
pushed. With a resource argument (content, prayer_status, prayer_times,
events, schedule, heartbeat), only that resource is synced. Forced syncs
bypass throttles and failure cooldowns.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSync,
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(resolveConfigPath())
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)

	auth, err := loadDeviceAuth(config.DefaultTokenPath())
	if err != nil {
		return err
	}

	if !auth.Authenticated() {
		return fmt.Errorf("device not paired, run 'kioskd pair <code>' first")
	}

	store, err := cache.Open(cachePath(cfg), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.DeviceID, defaultHTTPClient(), auth, logger)

	// The monitor is never started: its optimistic initial state lets the
	// one-shot sync proceed, and actual reachability problems surface as
	// fetch errors anyway.
	monitor := netmon.New(cfg.Server.BaseURL+"/ping", nil,
		config.ParsedDuration(cfg.Network.ProbeInterval, 0), logger)

	eng, err := engine.New(engine.Config{
		Fetcher:         &apiFetcher{client: client},
		Store:           store,
		Network:         monitor,
		Auth:            auth,
		Logger:          logger,
		Cadences:        cadencesFromConfig(cfg),
		AggregateWindow: config.ParsedDuration(cfg.Sync.AggregateWindow, 0),
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if len(args) == 1 {
		kind, parseErr := engine.ParseKind(args[0])
		if parseErr != nil {
			return parseErr
		}

		outcome := eng.SyncKind(ctx, kind, true)
		fmt.Printf("%s: %s\n", kind.Key(), outcome)

		if outcome == engine.OutcomeFailed {
			return fmt.Errorf("sync of %s failed", kind.Key())
		}

		return nil
	}

	eng.SyncAll(ctx, true)

	return printFreshness(ctx, store)
}
