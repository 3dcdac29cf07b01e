package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// errSkip is returned by a channel's sync function to signal that this round
// should be silently skipped — not a success, not a failure, no backoff.
// The heartbeat push uses it when the shared minimum spacing has not elapsed.
var errSkip = errors.New("engine: attempt skipped")

// Outcome describes how a single sync attempt ended.
type Outcome int

const (
	// OutcomeSkipped means no network call was made: offline, unpaired,
	// throttled, backing off, or another attempt was already in flight.
	OutcomeSkipped Outcome = iota
	// OutcomeSynced means the fetch (or heartbeat submit) succeeded.
	OutcomeSynced
	// OutcomeFailed means the attempt reached the network and failed.
	OutcomeFailed
)

// String implements fmt.Stringer for log attributes.
func (o Outcome) String() string {
	switch o {
	case OutcomeSynced:
		return "synced"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// syncFn performs one fetch-and-store (or heartbeat submit) attempt for a
// channel's kind. A returned errSkip is treated as a silent no-op.
type syncFn func(ctx context.Context, force bool) error

// channel is the unit of work: one resource kind bound to its cadence, its
// sync function, and the shared gate state. Each running channel owns one
// timer goroutine; Start and Stop are idempotent.
type channel struct {
	kind     Kind
	cad      Cadence
	run      syncFn
	throttle *throttleGate
	backoff  *backoffGate
	clock    Clock
	logger   *slog.Logger

	// online and authed short-circuit attempts before any gate state is
	// touched. Both are expected, frequent conditions — Debug, not Warn.
	online func() bool
	authed func() bool

	// onFailure, when set, records the failure for heartbeat reporting.
	onFailure func(kind Kind, err error)

	// sleepFunc paces the timer loop. Tests inject their own.
	sleepFunc func(ctx context.Context, d time.Duration) error

	// inFlight guarantees at most one sync per kind at a time when a forced
	// aggregate races a scheduled tick. A losing caller skips, it does not queue.
	inFlight atomic.Bool

	mu       sync.Mutex
	lastSync time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func newChannel(kind Kind, cad Cadence, run syncFn, throttle *throttleGate, backoff *backoffGate, clock Clock, logger *slog.Logger) *channel {
	return &channel{
		kind:      kind,
		cad:       cad,
		run:       run,
		throttle:  throttle,
		backoff:   backoff,
		clock:     clock,
		logger:    logger,
		sleepFunc: timeSleep,
	}
}

// Sync runs one attempt for this channel's kind. Gate order: connectivity and
// auth first (no state mutated), then throttle, then backoff with self-healing
// expiry, then the in-flight guard. A forced attempt bypasses throttle and
// backoff checks but still stamps the attempt baseline, and its failure never
// arms backoff so a user-triggered refresh cannot lock out the next one.
func (c *channel) Sync(ctx context.Context, force bool) Outcome {
	if !c.online() {
		c.logger.Debug("skipping sync while offline", slog.String("kind", c.kind.String()))

		return OutcomeSkipped
	}

	if !c.authed() {
		c.logger.Debug("skipping sync while unpaired", slog.String("kind", c.kind.String()))

		return OutcomeSkipped
	}

	now := c.clock.Now()

	if force {
		c.throttle.record(c.kind, now)
	} else if !c.throttle.tryAcquire(c.kind, now, c.cad.MinSpacing) {
		c.logger.Debug("sync attempt throttled", slog.String("kind", c.kind.String()))

		return OutcomeSkipped
	}

	if !force && c.backoff.blocked(c.kind, now) {
		c.logger.Debug("sync attempt suppressed by backoff", slog.String("kind", c.kind.String()))

		return OutcomeSkipped
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.Debug("sync already in flight", slog.String("kind", c.kind.String()))

		return OutcomeSkipped
	}
	defer c.inFlight.Store(false)

	err := c.runSafe(ctx, force)
	if err != nil {
		if errors.Is(err, errSkip) {
			return OutcomeSkipped
		}

		c.logger.Warn("resource sync failed",
			slog.String("kind", c.kind.String()),
			slog.Bool("forced", force),
			slog.String("error", err.Error()),
		)

		if c.onFailure != nil {
			c.onFailure(c.kind, err)
		}

		if !force {
			c.backoff.arm(c.kind, c.clock.Now(), c.cad.Cooldown)
		}

		return OutcomeFailed
	}

	c.backoff.clear(c.kind)

	c.mu.Lock()
	c.lastSync = c.clock.Now()
	c.mu.Unlock()

	c.logger.Debug("resource synced", slog.String("kind", c.kind.String()))

	return OutcomeSynced
}

// runSafe invokes the sync function with panic recovery. An unexpected panic
// inside a fetch or store is converted to an error and handled like any other
// failure — nothing in the engine is fatal to the process.
func (c *channel) runSafe(ctx context.Context, force bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: panic during %s sync: %v", c.kind, r)
		}
	}()

	return c.run(ctx, force)
}

// Start launches the channel's timer goroutine. Idempotent: a second Start
// while the timer is running does nothing. The first tick fires one full
// interval after Start — the orchestrator runs an immediate aggregate sync
// on startup, so the timer never needs a leading tick.
func (c *channel) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go c.loop(runCtx, done)
}

// loop is the channel's timer goroutine: sleep one interval, attempt a
// non-forced sync, repeat until the channel context is canceled.
func (c *channel) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if err := c.sleepFunc(ctx, c.cad.Interval); err != nil {
			return
		}

		c.Sync(ctx, false)
	}
}

// Stop cancels the timer goroutine and waits for it to exit. Idempotent and
// safe to call on a never-started channel. An in-flight request is not
// interrupted mid-attempt; its cache write is an idempotent overwrite.
func (c *channel) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// running reports whether the timer goroutine is active.
func (c *channel) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cancel != nil
}

// lastSyncTime returns the time of the last successful sync, or the zero
// time if none has completed.
func (c *channel) lastSyncTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastSync
}
