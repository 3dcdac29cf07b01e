package engine

import (
	"testing"
	"time"
)

func TestThrottleGate_EnforcesSpacing(t *testing.T) {
	t.Parallel()

	g := newThrottleGate()
	now := time.Now()
	spacing := 10 * time.Second

	if !g.tryAcquire(KindContent, now, spacing) {
		t.Fatal("first attempt should acquire")
	}

	if g.tryAcquire(KindContent, now.Add(5*time.Second), spacing) {
		t.Fatal("attempt within spacing should be denied")
	}

	if !g.tryAcquire(KindContent, now.Add(spacing), spacing) {
		t.Fatal("attempt at spacing boundary should acquire")
	}
}

func TestThrottleGate_DeniedAttemptRecordsNothing(t *testing.T) {
	t.Parallel()

	g := newThrottleGate()
	now := time.Now()
	spacing := 10 * time.Second

	if !g.tryAcquire(KindEvents, now, spacing) {
		t.Fatal("first attempt should acquire")
	}

	// A denied attempt must not push the window forward.
	g.tryAcquire(KindEvents, now.Add(9*time.Second), spacing)

	if !g.tryAcquire(KindEvents, now.Add(10*time.Second), spacing) {
		t.Fatal("window should be measured from the last acquired attempt")
	}
}

func TestThrottleGate_KindsIndependent(t *testing.T) {
	t.Parallel()

	g := newThrottleGate()
	now := time.Now()
	spacing := 10 * time.Second

	if !g.tryAcquire(KindContent, now, spacing) {
		t.Fatal("content should acquire")
	}

	if !g.tryAcquire(KindSchedule, now, spacing) {
		t.Fatal("schedule should not be throttled by content's attempt")
	}
}

func TestThrottleGate_RecordStampsBaseline(t *testing.T) {
	t.Parallel()

	g := newThrottleGate()
	now := time.Now()
	spacing := 10 * time.Second

	// A forced attempt bypasses the check but stamps the baseline.
	g.record(KindPrayerStatus, now)

	if g.tryAcquire(KindPrayerStatus, now.Add(time.Second), spacing) {
		t.Fatal("tick right after a forced attempt should be throttled")
	}
}

func TestBackoffGate_BlocksUntilResume(t *testing.T) {
	t.Parallel()

	g := newBackoffGate()
	now := time.Now()
	cooldown := 2 * time.Minute

	if g.blocked(KindPrayerStatus, now) {
		t.Fatal("unarmed gate should not block")
	}

	g.arm(KindPrayerStatus, now, cooldown)

	if !g.blocked(KindPrayerStatus, now.Add(time.Minute)) {
		t.Fatal("gate should block inside the cooldown window")
	}

	if g.blocked(KindPrayerStatus, now.Add(cooldown)) {
		t.Fatal("gate should not block at the window boundary")
	}
}

func TestBackoffGate_ExpiryHeals(t *testing.T) {
	t.Parallel()

	g := newBackoffGate()
	now := time.Now()

	g.arm(KindEvents, now, time.Minute)

	// The expired check clears the entry as a side effect.
	if g.blocked(KindEvents, now.Add(2*time.Minute)) {
		t.Fatal("expired window should not block")
	}

	g.mu.Lock()
	_, stillArmed := g.resumeAt[KindEvents]
	g.mu.Unlock()

	if stillArmed {
		t.Fatal("expired entry should have been cleared")
	}
}

func TestBackoffGate_ClearResets(t *testing.T) {
	t.Parallel()

	g := newBackoffGate()
	now := time.Now()

	g.arm(KindContent, now, 30*time.Minute)
	g.clear(KindContent)

	if g.blocked(KindContent, now.Add(time.Second)) {
		t.Fatal("cleared gate should not block")
	}
}
