package main

import (
	"context"
	"fmt"
	"time"

	"github.com/azaanlabs/kioskd/internal/cache"
	"github.com/azaanlabs/kioskd/internal/engine"
)

// formatAge renders the time since t as a compact human age ("42s", "3m",
// "2h15m", "3d").
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}

	age := now.Sub(t)

	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		h := int(age.Hours())
		m := int(age.Minutes()) - h*60

		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}

		return fmt.Sprintf("%dh%dm", h, m)
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}

// formatSize renders a byte count compactly ("312B", "4.2KB", "1.1MB").
func formatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
	}
}

// printFreshness prints one line per resource with its cache age and size.
// Resources that have never synced are listed as such.
func printFreshness(ctx context.Context, store *cache.Store) error {
	entries, err := store.Entries(ctx)
	if err != nil {
		return err
	}

	byKey := make(map[string]cache.Entry, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e
	}

	now := time.Now()

	for _, kind := range engine.PullKinds {
		entry, ok := byKey[kind.Key()]
		if !ok {
			fmt.Printf("  %-15s %s\n", kind.Key(), "never synced")

			continue
		}

		fmt.Printf("  %-15s synced %s ago  (%s)\n", entry.Key, formatAge(entry.SavedAt, now), formatSize(entry.Size))
	}

	return nil
}
