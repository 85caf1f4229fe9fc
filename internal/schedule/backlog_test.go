package schedule

import (
	"testing"
	"time"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestInactiveWhenUnset(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		interval int
	}{
		{"both unset", time.Time{}, 0},
		{"no start", time.Time{}, 3},
		{"no interval", start, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.start, tt.interval)
			if b.Active() {
				t.Error("Backlog should be inactive")
			}
			// Inactive pacing restricts nothing.
			if !b.Unlocked(100, start) {
				t.Error("inactive Backlog must unlock everything")
			}
		})
	}
}

func TestUnlockSchedule(t *testing.T) {
	b := New(start, 2) // one episode every two days

	tests := []struct {
		rank int
		now  time.Time
		want bool
	}{
		{0, start, true},
		{1, start, false},
		{1, start.Add(47 * time.Hour), false},
		{1, start.Add(48 * time.Hour), true},
		{5, start.Add(9 * 24 * time.Hour), false},
		{5, start.Add(10 * 24 * time.Hour), true},
	}

	for _, tt := range tests {
		if got := b.Unlocked(tt.rank, tt.now); got != tt.want {
			t.Errorf("Unlocked(%d, %v) = %v, want %v", tt.rank, tt.now, got, tt.want)
		}
	}
}

func TestUnlockMonotonicInRank(t *testing.T) {
	b := New(start, 3)
	for k := 0; k < 50; k++ {
		if b.UnlockTime(k + 1).Before(b.UnlockTime(k)) {
			t.Fatalf("unlock time for rank %d precedes rank %d", k+1, k)
		}
	}
}

func TestPaced(t *testing.T) {
	b := New(start, 1)
	if b.Paced(start.Add(-time.Hour)) {
		t.Error("episodes before the start date are not paced")
	}
	if !b.Paced(start) {
		t.Error("episodes at the start date are paced")
	}
	if New(time.Time{}, 0).Paced(start) {
		t.Error("inactive backlog paces nothing")
	}
}
