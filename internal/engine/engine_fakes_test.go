package engine

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable Clock shared by the engine tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

// fakeNetwork is a Network with a settable state that fires subscribers on
// every set() edge.
type fakeNetwork struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(online bool)
	nextID int
}

func newFakeNetwork(online bool) *fakeNetwork {
	return &fakeNetwork{online: online, subs: make(map[int]func(bool))}
}

func (n *fakeNetwork) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.online
}

func (n *fakeNetwork) Subscribe(fn func(online bool)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		delete(n.subs, id)
	}
}

func (n *fakeNetwork) set(online bool) {
	n.mu.Lock()
	n.online = online
	subs := make([]func(bool), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// fakeAuth is an Auth with a settable pairing state.
type fakeAuth struct {
	mu     sync.Mutex
	paired bool
}

func (a *fakeAuth) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.paired
}

func (a *fakeAuth) set(paired bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.paired = paired
}

// fakeFetcher counts calls per kind and fails the kinds listed in fail.
// blockOn, when set for a kind, makes Fetch wait until released.
type fakeFetcher struct {
	mu         sync.Mutex
	calls      map[Kind]int
	fail       map[Kind]error
	heartbeats []Heartbeat
	hbErr      error
	blockOn    map[Kind]chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:   make(map[Kind]int),
		fail:    make(map[Kind]error),
		blockOn: make(map[Kind]chan struct{}),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, kind Kind, _ bool) ([]byte, error) {
	f.mu.Lock()
	f.calls[kind]++
	block := f.blockOn[kind]
	err := f.fail[kind]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	return []byte(`{"kind":"` + kind.Key() + `"}`), nil
}

func (f *fakeFetcher) SubmitHeartbeat(_ context.Context, hb Heartbeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.hbErr != nil {
		return f.hbErr
	}

	f.heartbeats = append(f.heartbeats, hb)

	return nil
}

func (f *fakeFetcher) count(kind Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[kind]
}

func (f *fakeFetcher) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.heartbeats)
}

// fakeStore records saves per key.
type fakeStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string][]byte)}
}

func (s *fakeStore) Save(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.saved[key] = payload

	return nil
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.saved[key]

	return ok
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testHarness bundles an engine with its fakes.
type testHarness struct {
	engine  *Engine
	clock   *fakeClock
	network *fakeNetwork
	auth    *fakeAuth
	fetcher *fakeFetcher
	store   *fakeStore
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		clock:   newFakeClock(),
		network: newFakeNetwork(true),
		auth:    &fakeAuth{paired: true},
		fetcher: newFakeFetcher(),
		store:   newFakeStore(),
	}

	e, err := New(Config{
		Fetcher: h.fetcher,
		Store:   h.store,
		Network: h.network,
		Auth:    h.auth,
		Clock:   h.clock,
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	h.engine = e

	return h
}
