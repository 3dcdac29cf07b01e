package engine

import (
	"fmt"
	"time"
)

// Kind identifies one of the independently-synced resource categories.
type Kind int

const (
	KindContent Kind = iota
	KindPrayerStatus
	KindPrayerTimes
	KindEvents
	KindSchedule
	KindHeartbeat
)

// Kinds lists every resource kind in declaration order. Heartbeat is last so
// pull kinds can be iterated with Kinds[:len(Kinds)-1].
var Kinds = []Kind{
	KindContent,
	KindPrayerStatus,
	KindPrayerTimes,
	KindEvents,
	KindSchedule,
	KindHeartbeat,
}

// PullKinds lists the kinds fetched from the backend (everything except the
// heartbeat push).
var PullKinds = Kinds[: len(Kinds)-1 : len(Kinds)-1]

var kindKeys = map[Kind]string{
	KindContent:      "content",
	KindPrayerStatus: "prayer_status",
	KindPrayerTimes:  "prayer_times",
	KindEvents:       "events",
	KindSchedule:     "schedule",
	KindHeartbeat:    "heartbeat",
}

// Key returns the stable lowercase identifier used as the cache key and in
// API paths and config sections.
func (k Kind) Key() string {
	if key, ok := kindKeys[k]; ok {
		return key
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// String implements fmt.Stringer for log attributes.
func (k Kind) String() string { return k.Key() }

// ParseKind resolves a kind from its Key() form. Used by the CLI to map a
// resource argument to a kind.
func ParseKind(s string) (Kind, error) {
	for k, key := range kindKeys {
		if key == s {
			return k, nil
		}
	}

	return 0, fmt.Errorf("engine: unknown resource kind %q", s)
}

// Cadence bundles the timing constants for one resource kind: how often its
// timer fires, the minimum spacing between attempts regardless of outcome,
// and how long to back off after a non-forced failure.
type Cadence struct {
	Interval   time.Duration
	MinSpacing time.Duration
	Cooldown   time.Duration
}

// DefaultCadences holds the per-kind timing constants. Prayer status and
// heartbeat are near-real-time; prayer times change twice a year and poll
// slowly; events tolerate long staleness so a failing events endpoint is
// left alone for half an hour.
func DefaultCadences() map[Kind]Cadence {
	return map[Kind]Cadence{
		KindContent:      {Interval: 5 * time.Minute, MinSpacing: 10 * time.Second, Cooldown: 5 * time.Minute},
		KindPrayerStatus: {Interval: 30 * time.Second, MinSpacing: 10 * time.Second, Cooldown: 2 * time.Minute},
		KindPrayerTimes:  {Interval: 6 * time.Hour, MinSpacing: 30 * time.Second, Cooldown: 5 * time.Minute},
		KindEvents:       {Interval: 5 * time.Minute, MinSpacing: 10 * time.Second, Cooldown: 30 * time.Minute},
		KindSchedule:     {Interval: 3 * time.Minute, MinSpacing: 10 * time.Second, Cooldown: 5 * time.Minute},
		KindHeartbeat:    {Interval: 45 * time.Second, MinSpacing: 30 * time.Second, Cooldown: time.Minute},
	}
}
