package sim

import "time"

// decay applied to each new rate sample
const decayRate = 0.9

// RateCounter counts events and reports their rate in events/sec using an
// exponential moving average.
type RateCounter struct {
	count int
	rate  float64
	start time.Time

	now func() time.Time
}

func NewRateCounter() *RateCounter {
	r := &RateCounter{now: time.Now}
	r.Reset()
	return r
}

// Update registers one event and blends the instantaneous rate into the
// average. A zero elapsed time skips the update rather than dividing by it.
func (r *RateCounter) Update() {
	r.count++
	elapsed := r.now().Sub(r.start).Seconds()
	if elapsed == 0 {
		return
	}
	instantaneous := float64(r.count) / elapsed
	r.rate = instantaneous*decayRate + r.rate*(1.0-decayRate)
}

// Reset zeroes the counters and restarts the clock.
func (r *RateCounter) Reset() {
	r.count = 0
	r.rate = 0
	r.start = r.now()
}

// Rate returns the current smoothed events/sec.
func (r *RateCounter) Rate() float64 { return r.rate }

// Count returns the number of events since the last reset.
func (r *RateCounter) Count() int { return r.count }
