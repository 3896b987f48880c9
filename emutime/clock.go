package emutime

import "fmt"

// A Clock counts cycles of a fixed frequency on the reference timeline. Its
// current time is always a whole number of cycles away from the time it was
// reset to.
type Clock struct {
	freq FreqInHz
	step uint64
	last EmuTime
}

// ClockState is the persistent form of a Clock.
type ClockState struct {
	Freq FreqInHz `json:"freq"`
	Last EmuTime  `json:"last"`
}

// NewClock creates a clock running at freq, with its first tick at t.
func NewClock(freq FreqInHz, t EmuTime) *Clock {
	return &Clock{
		freq: freq,
		step: freq.Step(),
		last: t,
	}
}

// Freq returns the frequency of the clock.
func (c *Clock) Freq() FreqInHz {
	return c.freq
}

// Period returns the duration of one cycle.
func (c *Clock) Period() EmuDuration {
	return EmuDuration(c.step)
}

// Time returns the time of the most recent tick.
func (c *Clock) Time() EmuTime {
	return c.last
}

// Reset moves the clock to t. The tick grid is re-anchored at t.
func (c *Clock) Reset(t EmuTime) {
	c.last = t
}

// Add advances the clock by n cycles.
func (c *Clock) Add(n uint64) {
	c.last = c.TimeAfter(n)
}

// Advance moves the clock to the last tick that is not later than t.
func (c *Clock) Advance(t EmuTime) {
	c.last = c.last.Add(EmuDuration(c.TicksTill(t) * c.step))
}

// TicksTill returns the number of whole cycles between the current time and
// t.
func (c *Clock) TicksTill(t EmuTime) uint64 {
	return uint64(t.Sub(c.last)) / c.step
}

// TimeAfter returns the time n cycles after the current time.
func (c *Clock) TimeAfter(n uint64) EmuTime {
	return c.last.Add(EmuDuration(c.step).Mul(n))
}

// TicksBetween returns the number of ticks of the clock's grid that fall in
// (a, b]. The result is additive: for a <= b <= c,
// TicksBetween(a, c) == TicksBetween(a, b) + TicksBetween(b, c).
func (c *Clock) TicksBetween(a, b EmuTime) uint64 {
	if a > b {
		panic(fmt.Sprintf("emutime: TicksBetween(%d, %d) runs backwards", a, b))
	}

	return c.gridIndex(b) - c.gridIndex(a)
}

// gridIndex counts the grid points in [phase, t].
func (c *Clock) gridIndex(t EmuTime) uint64 {
	phase := uint64(c.last) % c.step
	if uint64(t) < phase {
		return 0
	}

	return (uint64(t)-phase)/c.step + 1
}

// State returns the persistent form of the clock.
func (c *Clock) State() ClockState {
	return ClockState{Freq: c.freq, Last: c.last}
}

// SetState restores the clock from its persistent form.
func (c *Clock) SetState(s ClockState) {
	c.freq = s.Freq
	c.step = s.Freq.Step()
	c.last = s.Last
}
