package subscription

import (
	"testing"
	"time"
)

func TestPolicyNextDelaySchedule(t *testing.T) {
	p := Policy{BaseDelay: 500 * time.Millisecond, MaxDelay: 30000 * time.Millisecond}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
		{4, 4000 * time.Millisecond},
	}
	for _, c := range cases {
		got := p.NextDelay(c.attempt)
		if got != c.want {
			t.Errorf("NextDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestPolicyNextDelayCapsAtMax(t *testing.T) {
	p := Policy{BaseDelay: 500 * time.Millisecond, MaxDelay: 3000 * time.Millisecond}
	got := p.NextDelay(10)
	if got != p.MaxDelay {
		t.Errorf("expected delay capped at max %v, got %v", p.MaxDelay, got)
	}
}

func TestPolicyNextDelayResetsOnNewAttemptSequence(t *testing.T) {
	p := Policy{BaseDelay: 500 * time.Millisecond, MaxDelay: 30000 * time.Millisecond}
	// After a success Client.run restarts its attempt counter, so the next
	// failure is attempt 1 again; this checks that attempt 1 gets the base
	// delay. The counter reset inside Client.run is not exercised here.
	if got := p.NextDelay(1); got != 500*time.Millisecond {
		t.Errorf("first attempt after reset = %v, want 500ms", got)
	}
}
