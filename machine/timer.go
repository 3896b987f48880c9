package machine

import (
	"encoding/binary"
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/sarchlab/emucore/clockpin"
	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/naming"
	"github.com/sarchlab/emucore/scheduler"
)

// A Sampler reads the input lines a Timer latches on every tick.
type Sampler func() []byte

// Timer is a periodic interrupt source. It is driven by a clock pin and, on
// every rising edge, latches the input lines into a running checksum, the
// way an interrupt handler polls the ports.
type Timer struct {
	naming.NamedBase

	pin    *clockpin.ClockPin
	sample Sampler

	ticks uint64
	latch uint64
}

// NewTimer creates a stopped timer. Its pin is named after it.
func NewTimer(name string, s *scheduler.Scheduler, sample Sampler) *Timer {
	t := &Timer{
		NamedBase: naming.MakeNamedBase(name),
		sample:    sample,
	}
	t.pin = clockpin.NewClockPin(name+".pin", s, t)

	return t
}

// Pin returns the clock pin driving the timer.
func (t *Timer) Pin() *clockpin.ClockPin {
	return t.pin
}

// Start runs the timer with a waveform of the given period and high time,
// the first tick being at now.
func (t *Timer) Start(period, hi emutime.EmuDuration, now emutime.EmuTime) {
	t.pin.SetPeriodicState(period, hi, now)
	t.pin.GenerateEdgeSignals(true, now)
}

// Stop halts the timer at now.
func (t *Timer) Stop(now emutime.EmuTime) {
	t.pin.GenerateEdgeSignals(false, now)
	t.pin.SetState(false, now)
}

// Ticks returns how many times the timer fired.
func (t *Timer) Ticks() uint64 {
	return t.ticks
}

// Latch returns the checksum of everything sampled so far.
func (t *Timer) Latch() uint64 {
	return t.latch
}

// Signal is called on every level change of the pin.
func (t *Timer) Signal(*clockpin.ClockPin, emutime.EmuTime) {}

// SignalPosEdge ticks the timer.
func (t *Timer) SignalPosEdge(*clockpin.ClockPin, emutime.EmuTime) {
	t.ticks++

	var prev [8]byte
	binary.LittleEndian.PutUint64(prev[:], t.latch)

	h := xxhash.New()
	_, _ = h.Write(prev[:])
	if t.sample != nil {
		_, _ = h.Write(t.sample())
	}

	t.latch = h.Sum64()
}

type timerState struct {
	Ticks uint64 `json:"ticks"`
	Latch uint64 `json:"latch"`
}

// MarshalState encodes the counters of the timer. The pin is saved on its
// own.
func (t *Timer) MarshalState() ([]byte, error) {
	return json.Marshal(timerState{Ticks: t.ticks, Latch: t.latch})
}

// UnmarshalState restores what MarshalState saved.
func (t *Timer) UnmarshalState(data []byte) error {
	var s timerState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	t.ticks = s.Ticks
	t.latch = s.Latch

	return nil
}
