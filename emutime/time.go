// Package emutime defines the virtual timeline shared by every emulated chip.
//
// All times are integer counts of a single reference frequency, MainFreq,
// which is chosen so that every chip frequency used by the emulator divides it
// exactly. Converting between chip cycles and the reference timeline is
// therefore always a lossless integer operation.
package emutime

import (
	"fmt"
	"math"
)

// MainFreq is the frequency of the reference timeline, in Hz.
const MainFreq FreqInHz = 3579545 * 960

// EmuTime is an absolute point on the virtual timeline, counted in ticks of
// MainFreq.
type EmuTime uint64

// EmuDuration is the distance between two EmuTimes, counted in ticks of
// MainFreq.
type EmuDuration uint64

const (
	// Zero is the start of the virtual timeline.
	Zero EmuTime = 0

	// Infinity is later than any time that can actually be reached.
	Infinity EmuTime = math.MaxUint64
)

// Add returns t + d. It panics if the result does not fit on the timeline.
func (t EmuTime) Add(d EmuDuration) EmuTime {
	if uint64(d) > uint64(Infinity-t) {
		panic(fmt.Sprintf("emutime: overflow adding %d to %d", d, t))
	}

	return t + EmuTime(d)
}

// Sub returns the duration t - u. The timeline never runs backwards, so u must
// not be later than t.
func (t EmuTime) Sub(u EmuTime) EmuDuration {
	if u > t {
		panic(fmt.Sprintf("emutime: negative duration %d - %d", t, u))
	}

	return EmuDuration(t - u)
}

// Before reports whether t is strictly earlier than u.
func (t EmuTime) Before(u EmuTime) bool {
	return t < u
}

// After reports whether t is strictly later than u.
func (t EmuTime) After(u EmuTime) bool {
	return t > u
}

// Seconds converts the time to seconds since the start of the timeline. The
// result is for display only and must never feed back into emulation.
func (t EmuTime) Seconds() float64 {
	return float64(t) / float64(MainFreq)
}

func (t EmuTime) String() string {
	if t == Infinity {
		return "inf"
	}

	return fmt.Sprintf("%d(%.9fs)", uint64(t), t.Seconds())
}

// Min returns the earlier of two times.
func Min(a, b EmuTime) EmuTime {
	if a < b {
		return a
	}

	return b
}

// DurationOf returns the exact duration of count cycles of a clock running at
// freq. The frequency must divide MainFreq.
func DurationOf(count uint64, freq FreqInHz) EmuDuration {
	step := freq.Step()
	if count != 0 && step > math.MaxUint64/count {
		panic(fmt.Sprintf("emutime: %d cycles at %d Hz overflow", count, freq))
	}

	return EmuDuration(count * step)
}

// DurationFromSeconds converts seconds to the nearest whole number of
// reference ticks. It is meant for user-facing configuration values.
func DurationFromSeconds(sec float64) EmuDuration {
	if sec < 0 || math.IsNaN(sec) {
		panic(fmt.Sprintf("emutime: invalid duration %g s", sec))
	}

	return EmuDuration(math.Round(sec * float64(MainFreq)))
}

// Mul returns d * n.
func (d EmuDuration) Mul(n uint64) EmuDuration {
	if n != 0 && uint64(d) > math.MaxUint64/n {
		panic(fmt.Sprintf("emutime: overflow multiplying %d by %d", d, n))
	}

	return d * EmuDuration(n)
}

// Div returns how many whole times e fits in d.
func (d EmuDuration) Div(e EmuDuration) uint64 {
	return uint64(d / e)
}

// Mod returns the remainder of d divided by e.
func (d EmuDuration) Mod(e EmuDuration) EmuDuration {
	return d % e
}

// Seconds converts the duration to seconds, for display only.
func (d EmuDuration) Seconds() float64 {
	return float64(d) / float64(MainFreq)
}

func (d EmuDuration) String() string {
	return fmt.Sprintf("%d(%.9fs)", uint64(d), d.Seconds())
}
