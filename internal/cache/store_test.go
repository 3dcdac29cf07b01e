package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	s, err := Open(":memory:", logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	return s
}

func TestStore_SaveAndGet(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	payload := []byte(`{"announcements":[]}`)
	if err := s.Save(ctx, "content", payload); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "content")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if string(got) != string(payload) {
		t.Fatalf("Get = %q, want %q", got, payload)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := testStore(t)

	_, err := s.Get(context.Background(), "schedule")
	if !errors.Is(err, ErrNotCached) {
		t.Fatalf("Get error = %v, want ErrNotCached", err)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "events", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	if err := s.Save(ctx, "events", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Get(ctx, "events")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if string(got) != `{"v":2}` {
		t.Fatalf("Get = %q, want the last write", got)
	}
}

func TestStore_EntriesReportFreshness(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	savedAt := time.Date(2026, 3, 1, 5, 30, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return savedAt }

	if err := s.Save(ctx, "prayer_times", []byte(`{"date":"2026-03-01"}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}

	e := entries[0]
	if e.Key != "prayer_times" {
		t.Fatalf("Key = %q, want prayer_times", e.Key)
	}

	if !e.SavedAt.Equal(savedAt) {
		t.Fatalf("SavedAt = %v, want %v", e.SavedAt, savedAt)
	}

	if e.Size != int64(len(`{"date":"2026-03-01"}`)) {
		t.Fatalf("Size = %d, want payload length", e.Size)
	}
}

func TestStore_ClearAndClearAll(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	for _, key := range []string{"content", "events", "schedule"} {
		if err := s.Save(ctx, key, []byte(`{}`)); err != nil {
			t.Fatalf("Save %s: %v", key, err)
		}
	}

	if err := s.Clear(ctx, "events"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, err := s.Get(ctx, "events"); !errors.Is(err, ErrNotCached) {
		t.Fatalf("Get after Clear = %v, want ErrNotCached", err)
	}

	if _, err := s.Get(ctx, "content"); err != nil {
		t.Fatalf("Clear removed an unrelated key: %v", err)
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}

	if len(entries) != 0 {
		t.Fatalf("len(entries) after ClearAll = %d, want 0", len(entries))
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.Save(ctx, "content", []byte(`{"v":"survives"}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Cache contents survive an engine restart.
	reopened, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "content")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}

	if string(got) != `{"v":"survives"}` {
		t.Fatalf("Get after reopen = %q", got)
	}
}
