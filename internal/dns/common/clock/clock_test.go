package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v, outside [%v, %v]", got, before, after)
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	if !c.Now().Equal(start) {
		t.Errorf("expected %v, got %v", start, c.Now())
	}
	c.Advance(10 * time.Second)
	if got := c.Now(); !got.Equal(start.Add(10 * time.Second)) {
		t.Errorf("expected %v, got %v", start.Add(10*time.Second), got)
	}
}
