package engine

import (
	"sync"
	"time"
)

// throttleGate enforces a minimum spacing between sync attempts per kind,
// regardless of whether those attempts succeed. It protects the backend from
// chatty retries when timers, network transitions, and forced syncs pile up.
// Thread-safe. State is in-memory only — a restart starts unthrottled.
type throttleGate struct {
	mu          sync.Mutex
	lastAttempt map[Kind]time.Time
}

func newThrottleGate() *throttleGate {
	return &throttleGate{lastAttempt: make(map[Kind]time.Time)}
}

// tryAcquire returns true and records now as the new attempt baseline when
// at least minInterval has elapsed since the last recorded attempt for kind.
// On a false return nothing is recorded, so a denied attempt does not push
// the window forward.
func (g *throttleGate) tryAcquire(kind Kind, now time.Time, minInterval time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastAttempt[kind]; ok && now.Sub(last) < minInterval {
		return false
	}

	g.lastAttempt[kind] = now

	return true
}

// record stamps an attempt without consulting the window. Forced syncs bypass
// the throttle but still update the baseline, so a timer tick racing a
// just-completed forced sync is suppressed.
func (g *throttleGate) record(kind Kind, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastAttempt[kind] = now
}

// backoffGate suppresses attempts for a kind while a previous failure's
// cooldown window has not elapsed. Unlike the throttle, it is armed only on
// failure and cleared on success. Thread-safe, in-memory only — a restart
// starts optimistic, not in backoff.
type backoffGate struct {
	mu       sync.Mutex
	resumeAt map[Kind]time.Time
}

func newBackoffGate() *backoffGate {
	return &backoffGate{resumeAt: make(map[Kind]time.Time)}
}

// blocked reports whether kind is still inside its cooldown window. An
// expired window is cleared as a side effect: the gate heals on the next
// eligible attempt without requiring a success.
func (g *backoffGate) blocked(kind Kind, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	resume, ok := g.resumeAt[kind]
	if !ok {
		return false
	}

	if !resume.After(now) {
		delete(g.resumeAt, kind)

		return false
	}

	return true
}

// arm starts a cooldown window for kind ending at now+cooldown.
func (g *backoffGate) arm(kind Kind, now time.Time, cooldown time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resumeAt[kind] = now.Add(cooldown)
}

// clear resets kind to the unblocked state.
func (g *backoffGate) clear(kind Kind) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.resumeAt, kind)
}
