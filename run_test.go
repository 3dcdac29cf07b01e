package main

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineHolder_NudgeWithoutEngine(t *testing.T) {
	holder := &engineHolder{}

	// Must not panic before an engine is installed or after cleanup.
	holder.nudge(context.Background(), "content")
	holder.cleanup()
	holder.cleanup()
}

func TestRunDaemon_StartsAndShutsDown(t *testing.T) {
	resetFlags(t)
	pairForTest(t)

	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	cacheFile := filepath.Join(t.TempDir(), "cache.db")
	cfgPath := writeCLIConfig(t, srv.URL, "\n[cache]\npath = \""+cacheFile+"\"\n")

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		cmd := newRootCmd()
		cmd.SetArgs([]string{"--config", cfgPath, "--quiet", "run"})
		done <- cmd.ExecuteContext(ctx)
	}()

	// The initial aggregate sync should land promptly.
	require.Eventually(t, func() bool {
		return backend.hit("/display/content") && backend.hit("/devices/heartbeat")
	}, 10*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not shut down on context cancellation")
	}
}

func TestRunDaemon_UnpairedIdles(t *testing.T) {
	resetFlags(t)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	cacheFile := filepath.Join(t.TempDir(), "cache.db")
	cfgPath := writeCLIConfig(t, srv.URL, "\n[cache]\npath = \""+cacheFile+"\"\n")

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		cmd := newRootCmd()
		cmd.SetArgs([]string{"--config", cfgPath, "--quiet", "run"})
		done <- cmd.ExecuteContext(ctx)
	}()

	// Give the daemon time to start; an unpaired device must not call the
	// backend apart from connectivity probes.
	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not shut down on context cancellation")
	}

	assert.False(t, backend.hit("/display/content"))
	assert.False(t, backend.hit("/devices/heartbeat"))
}
