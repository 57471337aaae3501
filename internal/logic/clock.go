package logic

import "time"

// Millis is a wrapping 32-bit millisecond counter.
type Millis uint32

// Elapsed returns now-last. Unsigned subtraction stays correct across a
// single wraparound of the counter.
func Elapsed(now, last Millis) Millis {
	return now - last
}

// Duration converts a millisecond count to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// Clock produces Millis readings from a monotonic source.
type Clock struct {
	start time.Time
	now   func() time.Time
}

// NewClock starts a clock at zero. now is usually time.Now; its monotonic
// reading is what Since uses.
func NewClock(now func() time.Time) *Clock {
	return &Clock{start: now(), now: now}
}

// Now returns milliseconds since the clock started, truncated to 32 bits.
func (c *Clock) Now() Millis {
	return Millis(uint64(c.now().Sub(c.start).Milliseconds()))
}
