package emutime

import "fmt"

// FreqInHz is the frequency of a clock, in Hz.
type FreqInHz uint64

// Frequency units.
const (
	Hz  FreqInHz = 1
	KHz FreqInHz = 1e3
	MHz FreqInHz = 1e6
)

// Divides reports whether a clock running at f lines up exactly with the
// reference timeline.
func (f FreqInHz) Divides() bool {
	return f != 0 && MainFreq%f == 0
}

// Step returns the number of reference ticks in one cycle at f.
func (f FreqInHz) Step() uint64 {
	if f == 0 {
		panic("emutime: frequency cannot be 0")
	}

	if !f.Divides() {
		panic(fmt.Sprintf(
			"emutime: %d Hz does not divide the reference frequency %d Hz",
			f, MainFreq,
		))
	}

	return uint64(MainFreq / f)
}

// Period returns the duration of one cycle at f.
func (f FreqInHz) Period() EmuDuration {
	return EmuDuration(f.Step())
}
