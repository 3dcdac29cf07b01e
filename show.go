package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/azaanlabs/kioskd/internal/api"
	"github.com/azaanlabs/kioskd/internal/cache"
	"github.com/azaanlabs/kioskd/internal/config"
	"github.com/azaanlabs/kioskd/internal/engine"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <resource>",
		Short: "Print a cached resource",
		Long: `Print the cached payload for one resource.

Renders a readable summary for known resource shapes; --json prints the raw
cached payload. Reads the cache directly, so it works while the daemon runs.`,
		Args: cobra.ExactArgs(1),
		RunE: runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	kind, err := engine.ParseKind(args[0])
	if err != nil {
		return err
	}

	if kind == engine.KindHeartbeat {
		return fmt.Errorf("heartbeat is push-only and never cached")
	}

	cfg, err := config.LoadOrDefault(resolveConfigPath())
	if err != nil {
		return err
	}

	store, err := cache.Open(cachePath(cfg), buildLogger(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	payload, err := store.Get(cmd.Context(), kind.Key())
	if errors.Is(err, cache.ErrNotCached) {
		return fmt.Errorf("%s has never been synced, run 'kioskd sync %s'", kind.Key(), kind.Key())
	}

	if err != nil {
		return err
	}

	if flagJSON {
		return printRawJSON(payload)
	}

	return printPayload(cmd.Context(), kind, payload)
}

func printRawJSON(payload []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return fmt.Errorf("cached payload is not valid JSON: %w", err)
	}

	fmt.Println(buf.String())

	return nil
}

func printPayload(_ context.Context, kind engine.Kind, payload []byte) error {
	switch kind {
	case engine.KindContent:
		return printContent(payload)
	case engine.KindPrayerStatus:
		return printPrayerStatus(payload)
	case engine.KindPrayerTimes:
		return printPrayerTimes(payload)
	case engine.KindEvents:
		return printEvents(payload)
	default:
		// Schedule has no fixed shape; raw JSON is the summary.
		return printRawJSON(payload)
	}
}

func printContent(payload []byte) error {
	var content api.ContentPayload
	if err := json.Unmarshal(payload, &content); err != nil {
		return fmt.Errorf("decoding content payload: %w", err)
	}

	fmt.Printf("Announcements (%d):\n", len(content.Announcements))

	for _, a := range content.Announcements {
		fmt.Printf("  %s: %s\n", a.Title, a.Body)
	}

	if len(content.Slides) > 0 {
		fmt.Printf("Slides (%d):\n", len(content.Slides))

		for _, s := range content.Slides {
			fmt.Printf("  %s (%ds)\n", s.ImageURL, s.Seconds)
		}
	}

	return nil
}

func printPrayerStatus(payload []byte) error {
	var status api.PrayerStatusPayload
	if err := json.Unmarshal(payload, &status); err != nil {
		return fmt.Errorf("decoding prayer status payload: %w", err)
	}

	fmt.Printf("Current: %s\n", status.Current)
	fmt.Printf("Next:    %s at %s\n", status.Next, status.NextAt)

	return nil
}

func printPrayerTimes(payload []byte) error {
	var times api.PrayerTimesPayload
	if err := json.Unmarshal(payload, &times); err != nil {
		return fmt.Errorf("decoding prayer times payload: %w", err)
	}

	fmt.Printf("Date: %s\n", times.Date)

	names := make([]string, 0, len(times.Times))
	for name := range times.Times {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		line := fmt.Sprintf("  %-10s %s", name, times.Times[name])
		if iqamah, ok := times.Iqamahs[name]; ok {
			line += fmt.Sprintf("  (iqamah %s)", iqamah)
		}

		fmt.Println(line)
	}

	return nil
}

func printEvents(payload []byte) error {
	var parsed struct {
		Events []api.Event `json:"events"`
	}

	if err := json.Unmarshal(payload, &parsed); err != nil {
		return fmt.Errorf("decoding events payload: %w", err)
	}

	if len(parsed.Events) == 0 {
		fmt.Println("No upcoming events.")

		return nil
	}

	for _, ev := range parsed.Events {
		line := fmt.Sprintf("  %s  %s", ev.StartsAt, ev.Title)
		if ev.Location != "" {
			line += " @ " + ev.Location
		}

		fmt.Println(line)
	}

	return nil
}
