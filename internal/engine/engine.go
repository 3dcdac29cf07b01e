// Package engine keeps the kiosk's local cache of remote resources fresh.
// It runs one independent polling loop per resource kind, applies per-kind
// failure backoff and attempt throttling, pauses polling across network
// flaps, and pushes a one-way heartbeat. No failure inside the engine is
// fatal: the only externally observable failure mode is a cache entry that
// stops updating.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// defaultAggregateWindow is the minimum spacing between non-forced SyncAll
// invocations, independent of the per-kind throttles.
const defaultAggregateWindow = 5 * time.Second

// Heartbeat is the one-way status report pushed to the backend.
type Heartbeat struct {
	Uptime    time.Duration
	LastError string
}

// Fetcher performs one authenticated remote operation per resource kind.
// Implemented by api.Client; tests use in-memory fakes.
type Fetcher interface {
	Fetch(ctx context.Context, kind Kind, force bool) ([]byte, error)
	SubmitHeartbeat(ctx context.Context, hb Heartbeat) error
}

// Store persists one opaque payload per resource kind, keyed by Kind.Key().
// Writes are whole-value overwrites; last writer wins by design.
type Store interface {
	Save(ctx context.Context, key string, payload []byte) error
}

// Network reports current connectivity and notifies subscribers on
// online/offline transitions. Implemented by netmon.Monitor.
type Network interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Auth reports whether the device holds credentials. While unpaired the
// engine idles: every sync is a silent no-op.
type Auth interface {
	Authenticated() bool
}

// Config holds the collaborators and tunables for constructing an Engine.
// Fetcher, Store, Network, and Auth are required; the rest default.
type Config struct {
	Fetcher Fetcher
	Store   Store
	Network Network
	Auth    Auth
	Logger  *slog.Logger

	// Clock defaults to the system clock. Tests inject a fake.
	Clock Clock

	// Cadences overrides individual kinds' timing; unlisted kinds keep
	// their defaults.
	Cadences map[Kind]Cadence

	// AggregateWindow overrides the SyncAll throttle. Zero means default.
	AggregateWindow time.Duration
}

// Engine owns the channel registry and the process-wide sync state. It is a
// plain constructed value, not a package singleton — the daemon builds one,
// tests build as many as they need.
type Engine struct {
	fetcher  Fetcher
	store    Store
	network  Network
	auth     Auth
	logger   *slog.Logger
	clock    Clock
	channels map[Kind]*channel
	window   time.Duration

	mu            sync.Mutex
	initialized   bool
	startedAt     time.Time
	lastAggregate time.Time
	lastHeartbeat time.Time
	lastErr       string
	unsubscribe   func()
	runCtx        context.Context
	runCancel     context.CancelFunc
}

// New constructs an Engine from cfg. It does not start any timers; call
// Initialize for that.
func New(cfg Config) (*Engine, error) {
	if cfg.Fetcher == nil || cfg.Store == nil || cfg.Network == nil || cfg.Auth == nil {
		return nil, fmt.Errorf("engine: fetcher, store, network, and auth are all required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	window := cfg.AggregateWindow
	if window == 0 {
		window = defaultAggregateWindow
	}

	cadences := DefaultCadences()
	for kind, cad := range cfg.Cadences {
		cadences[kind] = cad
	}

	e := &Engine{
		fetcher:  cfg.Fetcher,
		store:    cfg.Store,
		network:  cfg.Network,
		auth:     cfg.Auth,
		logger:   logger,
		clock:    clock,
		channels: make(map[Kind]*channel, len(Kinds)),
		window:   window,

		// Initialize resets this; setting it here keeps heartbeat uptime
		// sane for one-shot engines that sync without initializing.
		startedAt: clock.Now(),
	}

	throttle := newThrottleGate()
	backoff := newBackoffGate()

	for _, kind := range PullKinds {
		e.channels[kind] = newChannel(kind, cadences[kind], e.pullFn(kind), throttle, backoff, clock, logger)
	}

	e.channels[KindHeartbeat] = newChannel(KindHeartbeat, cadences[KindHeartbeat], e.pushHeartbeat, throttle, backoff, clock, logger)

	for _, ch := range e.channels {
		ch.online = e.network.Online
		ch.authed = e.auth.Authenticated
		ch.onFailure = e.noteFailure
	}

	return e, nil
}

// pullFn builds the fetch-and-store sync function for a pull kind. A cache
// write failure is a failure of the attempt like any remote error.
func (e *Engine) pullFn(kind Kind) syncFn {
	return func(ctx context.Context, force bool) error {
		payload, err := e.fetcher.Fetch(ctx, kind, force)
		if err != nil {
			return err
		}

		if err := e.store.Save(ctx, kind.Key(), payload); err != nil {
			return fmt.Errorf("engine: caching %s: %w", kind, err)
		}

		return nil
	}
}

// pushHeartbeat submits one heartbeat. The minimum spacing is evaluated
// against a single shared lastHeartbeat timestamp, so the aggregate sync and
// the heartbeat channel's own timer can never double-fire within the window
// no matter which of them asks first.
func (e *Engine) pushHeartbeat(ctx context.Context, _ bool) error {
	now := e.clock.Now()

	e.mu.Lock()
	if !e.heartbeatDueLocked(now) {
		e.mu.Unlock()

		return errSkip
	}
	hb := Heartbeat{
		Uptime:    now.Sub(e.startedAt),
		LastError: e.lastErr,
	}
	e.mu.Unlock()

	if err := e.fetcher.SubmitHeartbeat(ctx, hb); err != nil {
		return err
	}

	e.mu.Lock()
	e.lastHeartbeat = e.clock.Now()
	e.mu.Unlock()

	return nil
}

// heartbeatDueLocked reports whether the shared heartbeat spacing has
// elapsed. Caller holds e.mu.
func (e *Engine) heartbeatDueLocked(now time.Time) bool {
	if e.lastHeartbeat.IsZero() {
		return true
	}

	return now.Sub(e.lastHeartbeat) >= e.channels[KindHeartbeat].cad.MinSpacing
}

// noteFailure records the most recent channel failure for heartbeat reports.
func (e *Engine) noteFailure(kind Kind, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastErr = fmt.Sprintf("%s: %v", kind, err)
}

// Initialize registers network transition listeners and, if the device is
// paired, runs one aggregate sync and starts every channel timer. Idempotent:
// a second call is a logged no-op. Failures inside the triggered sync are
// absorbed — Initialize never reports them.
func (e *Engine) Initialize(ctx context.Context) {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		e.logger.Debug("engine already initialized")

		return
	}

	e.initialized = true
	e.startedAt = e.clock.Now()
	e.runCtx, e.runCancel = context.WithCancel(ctx)
	runCtx := e.runCtx
	e.unsubscribe = e.network.Subscribe(e.onTransition)
	e.mu.Unlock()

	e.logger.Info("sync engine starting", slog.Int("channels", len(e.channels)))

	if !e.auth.Authenticated() {
		e.logger.Info("device not paired, sync idle until pairing")

		return
	}

	e.SyncAll(runCtx, false)
	e.startChannels(runCtx)
}

// Cleanup stops every channel timer and removes the network listener. Safe
// to call repeatedly, and before Initialize. Cache contents survive — the
// engine never clears the store on shutdown.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()

		return
	}

	e.initialized = false
	unsubscribe := e.unsubscribe
	cancel := e.runCancel
	e.unsubscribe = nil
	e.runCtx = nil
	e.runCancel = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	e.stopChannels()

	if cancel != nil {
		cancel()
	}

	e.logger.Info("sync engine stopped")
}

// onTransition reacts to network edges. Coming online triggers an immediate
// aggregate sync so a flaky connection doesn't sit out a full cadence window;
// going offline stops the timers but leaves gate state untouched, so
// cooldowns keep counting down in wall-clock time.
func (e *Engine) onTransition(online bool) {
	e.mu.Lock()
	runCtx := e.runCtx
	initialized := e.initialized
	e.mu.Unlock()

	if !initialized {
		return
	}

	if !online {
		e.logger.Info("network offline, pausing channel timers")
		e.stopChannels()

		return
	}

	e.logger.Info("network online, resuming sync")

	if !e.auth.Authenticated() {
		return
	}

	e.SyncAll(runCtx, false)
	e.startChannels(runCtx)
}

// startChannels starts any channel timer that is not already running.
func (e *Engine) startChannels(ctx context.Context) {
	for _, kind := range Kinds {
		e.channels[kind].Start(ctx)
	}
}

// stopChannels stops all channel timers and waits for their goroutines.
func (e *Engine) stopChannels() {
	for _, kind := range Kinds {
		e.channels[kind].Stop()
	}
}

// SyncAll fans out one sync attempt per channel, concurrently and
// independently, and waits for all of them to settle — one channel's failure
// never cancels or delays a sibling's attempt. Non-forced invocations inside
// the aggregate window are complete no-ops. The heartbeat joins the fan-out
// only when its shared spacing has elapsed; otherwise it is skipped for this
// round, not failed. SyncAll never returns an error, even if every channel
// failed — callers needing visibility inspect the cache's freshness.
func (e *Engine) SyncAll(ctx context.Context, force bool) {
	if !e.network.Online() {
		e.logger.Debug("skipping aggregate sync while offline")

		return
	}

	if !e.auth.Authenticated() {
		e.logger.Debug("skipping aggregate sync while unpaired")

		return
	}

	now := e.clock.Now()

	e.mu.Lock()
	if !force && !e.lastAggregate.IsZero() && now.Sub(e.lastAggregate) < e.window {
		e.mu.Unlock()
		e.logger.Debug("aggregate sync throttled")

		return
	}
	e.lastAggregate = now
	heartbeatDue := e.heartbeatDueLocked(now)
	e.mu.Unlock()

	kinds := make([]Kind, 0, len(Kinds))
	kinds = append(kinds, PullKinds...)

	if heartbeatDue {
		kinds = append(kinds, KindHeartbeat)
	}

	outcomes := make([]Outcome, len(kinds))

	var wg sync.WaitGroup

	for i, kind := range kinds {
		wg.Add(1)

		go func(idx int, k Kind) {
			defer wg.Done()

			outcomes[idx] = e.channels[k].Sync(ctx, force)
		}(i, kind)
	}

	wg.Wait()

	var synced, skipped, failed int

	attrs := make([]any, 0, len(kinds)+3)

	for i, kind := range kinds {
		switch outcomes[i] {
		case OutcomeSynced:
			synced++
		case OutcomeFailed:
			failed++
		default:
			skipped++
		}

		attrs = append(attrs, slog.String(kind.Key(), outcomes[i].String()))
	}

	attrs = append(attrs,
		slog.Int("synced", synced),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
	)

	e.logger.Info("aggregate sync complete", attrs...)
}

// SyncKind runs one attempt for a single kind. The CLI's per-resource
// refresh actions call this with force=true.
func (e *Engine) SyncKind(ctx context.Context, kind Kind, force bool) Outcome {
	ch, ok := e.channels[kind]
	if !ok {
		return OutcomeSkipped
	}

	return ch.Sync(ctx, force)
}

// Per-kind convenience wrappers for UI-layer "refresh now" actions.

func (e *Engine) SyncContent(ctx context.Context, force bool) Outcome {
	return e.SyncKind(ctx, KindContent, force)
}

func (e *Engine) SyncPrayerStatus(ctx context.Context, force bool) Outcome {
	return e.SyncKind(ctx, KindPrayerStatus, force)
}

func (e *Engine) SyncPrayerTimes(ctx context.Context, force bool) Outcome {
	return e.SyncKind(ctx, KindPrayerTimes, force)
}

func (e *Engine) SyncEvents(ctx context.Context, force bool) Outcome {
	return e.SyncKind(ctx, KindEvents, force)
}

func (e *Engine) SyncSchedule(ctx context.Context, force bool) Outcome {
	return e.SyncKind(ctx, KindSchedule, force)
}

func (e *Engine) SubmitHeartbeat(ctx context.Context, force bool) Outcome {
	return e.SyncKind(ctx, KindHeartbeat, force)
}

// LastSync returns the time of the last successful sync for kind, or the
// zero time if none has completed since process start.
func (e *Engine) LastSync(kind Kind) time.Time {
	ch, ok := e.channels[kind]
	if !ok {
		return time.Time{}
	}

	return ch.lastSyncTime()
}
