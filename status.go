package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/azaanlabs/kioskd/internal/cache"
	"github.com/azaanlabs/kioskd/internal/config"
	"github.com/azaanlabs/kioskd/internal/engine"
	"github.com/azaanlabs/kioskd/internal/tokenfile"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pairing state and cache freshness",
		Long: `Display the device's pairing state and the age of every cached resource.

Reads the token file and the cache directly; works whether or not the daemon
is running.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

// statusReport is the JSON form of the status output.
type statusReport struct {
	Paired     bool             `json:"paired"`
	DeviceName string           `json:"device_name,omitempty"`
	PairedAt   string           `json:"paired_at,omitempty"`
	CachePath  string           `json:"cache_path"`
	Resources  []statusResource `json:"resources"`
}

// statusResource holds freshness info for a single cached resource.
type statusResource struct {
	Resource  string    `json:"resource"`
	Cached    bool      `json:"cached"`
	SyncedAt  time.Time `json:"synced_at,omitzero"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault(resolveConfigPath())
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)

	report := statusReport{CachePath: cachePath(cfg)}

	tok, meta, err := tokenfile.Load(config.DefaultTokenPath())
	if err != nil {
		return err
	}

	if tok != nil {
		report.Paired = true
		report.DeviceName = meta["device_name"]
		report.PairedAt = meta["paired_at"]
	}

	report.Resources, err = collectResources(cmd, cfg, logger)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	printStatusText(&report)

	return nil
}

// collectResources reads cache freshness for every pull resource. A cache
// that cannot be opened (e.g. first boot, nothing ever synced) yields
// uncached entries rather than an error.
func collectResources(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) ([]statusResource, error) {
	resources := make([]statusResource, 0, len(engine.PullKinds))

	byKey := make(map[string]cache.Entry)

	if _, statErr := os.Stat(cachePath(cfg)); statErr == nil {
		store, err := cache.Open(cachePath(cfg), logger)
		if err != nil {
			logger.Debug("cache unreadable for status", "error", err.Error())
		} else {
			defer store.Close()

			entries, err := store.Entries(cmd.Context())
			if err != nil {
				return nil, err
			}

			for _, e := range entries {
				byKey[e.Key] = e
			}
		}
	}

	for _, kind := range engine.PullKinds {
		entry, ok := byKey[kind.Key()]
		if !ok {
			resources = append(resources, statusResource{Resource: kind.Key()})

			continue
		}

		resources = append(resources, statusResource{
			Resource:  kind.Key(),
			Cached:    true,
			SyncedAt:  entry.SavedAt,
			SizeBytes: entry.Size,
		})
	}

	return resources, nil
}

func printStatusText(report *statusReport) {
	if report.Paired {
		label := "yes"
		if report.DeviceName != "" {
			label = fmt.Sprintf("yes (%s)", report.DeviceName)
		}

		fmt.Printf("Paired: %s\n", label)
	} else {
		fmt.Println("Paired: no — run 'kioskd pair <code>'")
	}

	fmt.Printf("Cache:  %s\n", report.CachePath)
	fmt.Println()

	now := time.Now()

	for _, r := range report.Resources {
		if !r.Cached {
			fmt.Printf("  %-15s never synced\n", r.Resource)

			continue
		}

		fmt.Printf("  %-15s synced %s ago  (%s)\n", r.Resource, formatAge(r.SyncedAt, now), formatSize(r.SizeBytes))
	}
}
