package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero time", time.Time{}, "never"},
		{"seconds", now.Add(-42 * time.Second), "42s"},
		{"minutes", now.Add(-3 * time.Minute), "3m"},
		{"whole hours", now.Add(-2 * time.Hour), "2h"},
		{"hours and minutes", now.Add(-2*time.Hour - 15*time.Minute), "2h15m"},
		{"days", now.Add(-73 * time.Hour), "3d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatAge(tt.t, now))
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "312B", formatSize(312))
	assert.Equal(t, "4.0KB", formatSize(4096))
	assert.Equal(t, "1.5MB", formatSize(1536*1024))
}
