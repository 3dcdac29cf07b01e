// Package netmon tracks the kiosk's network state by periodically probing
// the backend and notifies subscribers on online/offline edges. Mounted
// kiosks sit on flaky venue WiFi; the sync engine uses these edges to pause
// polling on a dead network and catch up immediately on reconnect.
package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Probe timing constants.
const (
	defaultInterval = 15 * time.Second
	probeTimeout    = 5 * time.Second
)

// Monitor probes connectivity on a fixed interval and fires edge-triggered
// callbacks. State starts optimistic (online) so a freshly-booted kiosk
// attempts its first sync without waiting for a probe round.
type Monitor struct {
	probe    func(ctx context.Context) bool
	interval time.Duration
	logger   *slog.Logger

	// sleepFunc paces the probe loop. Tests inject their own.
	sleepFunc func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	online bool
	subs   map[int]func(online bool)
	nextID int
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Monitor that probes probeURL with a HEAD request. A nil
// httpClient uses a default with a short timeout.
func New(probeURL string, httpClient *http.Client, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	if interval <= 0 {
		interval = defaultInterval
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: probeTimeout}
	}

	return &Monitor{
		probe:     httpProbe(probeURL, httpClient),
		interval:  interval,
		logger:    logger,
		sleepFunc: timeSleep,
		online:    true,
		subs:      make(map[int]func(bool)),
	}
}

// httpProbe reports reachability of the backend. Any HTTP response counts
// as online — a 500 still means the network path works.
func httpProbe(url string, client *http.Client) func(ctx context.Context) bool {
	return func(ctx context.Context) bool {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}

		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()

		return true
	}
}

// Online returns the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.online
}

// Subscribe registers an edge-triggered transition callback and returns its
// unsubscribe function. The callback runs on the monitor's goroutine; it
// must not block for long.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		delete(m.subs, id)
	}
}

// Start launches the probe loop. Idempotent: a second Start while running
// does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.loop(runCtx, done)
}

// loop probes immediately, then on every interval, publishing edges.
func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		m.observe(m.probe(ctx))

		if err := m.sleepFunc(ctx, m.interval); err != nil {
			return
		}
	}
}

// observe updates the state and fires subscribers when it changed.
func (m *Monitor) observe(online bool) {
	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()

		return
	}

	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("network is online")
	} else {
		m.logger.Warn("network is offline")
	}

	for _, fn := range subs {
		fn(online)
	}
}

// Stop cancels the probe loop and waits for it to exit. Idempotent, safe on
// a never-started monitor.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
