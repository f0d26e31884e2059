package sim

import (
	"math"
	"testing"
	"time"
)

// fixed clock the tests step manually
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCounter() (*RateCounter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	r := &RateCounter{now: clock.now}
	r.Reset()
	return r, clock
}

func TestRateBlendsTowardInstantaneous(t *testing.T) {
	r, clock := newTestCounter()

	// one event after one second: instantaneous rate 1.0
	clock.advance(time.Second)
	r.Update()
	if math.Abs(r.Rate()-0.9) > 1e-9 {
		t.Errorf("rate after first update is %v, expected 0.9", r.Rate())
	}

	// two events over two seconds: instantaneous still 1.0
	clock.advance(time.Second)
	r.Update()
	if math.Abs(r.Rate()-0.99) > 1e-9 {
		t.Errorf("rate after second update is %v, expected 0.99", r.Rate())
	}
	if r.Count() != 2 {
		t.Errorf("count is %d, expected 2", r.Count())
	}
}

func TestRateSkipsZeroElapsed(t *testing.T) {
	r, _ := newTestCounter()

	// no time has passed since Reset
	r.Update()
	if r.Rate() != 0 {
		t.Errorf("rate updated with zero elapsed time: %v", r.Rate())
	}
	if r.Count() != 1 {
		t.Errorf("count is %d, expected the event still counted", r.Count())
	}
}

func TestResetClearsStateAndClock(t *testing.T) {
	r, clock := newTestCounter()
	clock.advance(time.Second)
	r.Update()

	clock.advance(5 * time.Second)
	r.Reset()
	if r.Count() != 0 || r.Rate() != 0 {
		t.Fatalf("reset left count=%d rate=%v", r.Count(), r.Rate())
	}

	// the clock restarts at reset, so one event after one more second is
	// an instantaneous rate of 1.0 again
	clock.advance(time.Second)
	r.Update()
	if math.Abs(r.Rate()-0.9) > 1e-9 {
		t.Errorf("rate after reset is %v, expected 0.9", r.Rate())
	}
}
