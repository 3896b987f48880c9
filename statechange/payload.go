// Package statechange is the only path through which input from outside the
// emulated machine may change its state.
//
// Devices turn live input into small, time-stamped deltas and hand them to the
// Distributor. While recording, every delta is appended to a Log before it is
// applied. While replaying, the deltas come from a saved Log instead, at the
// exact virtual times they were recorded, so the machine runs identically.
package statechange

import "fmt"

// Kind identifies a payload type in logs.
type Kind int

// Payload kinds.
const (
	KindJoystick Kind = iota + 1
	KindKeyMatrix
	KindEndOfLog
	KindPaddle
)

// A Payload is the content of a Record. The set of payloads is closed; only
// the types in this package implement it.
type Payload interface {
	Kind() Kind

	payload()
}

// JoystickState changes the active-low status lines of the joystick on a
// port. Press clears lines, Release sets them.
type JoystickState struct {
	Port    int   `json:"port"`
	Press   uint8 `json:"press"`
	Release uint8 `json:"release"`
}

// NewJoystickState creates a JoystickState. It rejects empty deltas and
// deltas that press and release the same line.
func NewJoystickState(port int, press, release uint8) (JoystickState, error) {
	js := JoystickState{Port: port, Press: press, Release: release}
	if err := checkDelta(press, release); err != nil {
		return JoystickState{}, err
	}

	return js, nil
}

// Kind returns KindJoystick.
func (JoystickState) Kind() Kind { return KindJoystick }

// Apply returns status with the delta applied.
func (s JoystickState) Apply(status uint8) uint8 {
	return ApplyDelta(status, s.Press, s.Release)
}

func (s JoystickState) String() string {
	return fmt.Sprintf("joystick%d press %#02x release %#02x",
		s.Port, s.Press, s.Release)
}

// KeyMatrixState changes one active-low row of a keyboard matrix.
type KeyMatrixState struct {
	Row     int   `json:"row"`
	Press   uint8 `json:"press"`
	Release uint8 `json:"release"`
}

// NewKeyMatrixState creates a KeyMatrixState. It rejects empty deltas and
// deltas that press and release the same key.
func NewKeyMatrixState(row int, press, release uint8) (KeyMatrixState, error) {
	ks := KeyMatrixState{Row: row, Press: press, Release: release}
	if err := checkDelta(press, release); err != nil {
		return KeyMatrixState{}, err
	}

	return ks, nil
}

// Kind returns KindKeyMatrix.
func (KeyMatrixState) Kind() Kind { return KindKeyMatrix }

// Apply returns the row with the delta applied.
func (s KeyMatrixState) Apply(row uint8) uint8 {
	return ApplyDelta(row, s.Press, s.Release)
}

func (s KeyMatrixState) String() string {
	return fmt.Sprintf("keymatrix row %d press %#02x release %#02x",
		s.Row, s.Press, s.Release)
}

// PaddleState turns the dial of the paddle on a port by Dial steps and
// changes its active-low button lines.
type PaddleState struct {
	Port    int   `json:"port"`
	Dial    int   `json:"dial,omitempty"`
	Press   uint8 `json:"press,omitempty"`
	Release uint8 `json:"release,omitempty"`
}

// NewPaddleState creates a PaddleState. It rejects changes that neither turn
// the dial nor change a button, and deltas that press and release the same
// line.
func NewPaddleState(port, dial int, press, release uint8) (PaddleState, error) {
	ps := PaddleState{Port: port, Dial: dial, Press: press, Release: release}
	if dial != 0 && press == 0 && release == 0 {
		return ps, nil
	}

	if err := checkDelta(press, release); err != nil {
		return PaddleState{}, err
	}

	return ps, nil
}

// Kind returns KindPaddle.
func (PaddleState) Kind() Kind { return KindPaddle }

// Apply returns the button lines with the delta applied.
func (s PaddleState) Apply(buttons uint8) uint8 {
	return ApplyDelta(buttons, s.Press, s.Release)
}

func (s PaddleState) String() string {
	return fmt.Sprintf("paddle%d dial %+d press %#02x release %#02x",
		s.Port, s.Dial, s.Press, s.Release)
}

// EndOfLog marks the end of a recording. Replaying it stops the replay.
type EndOfLog struct{}

// Kind returns KindEndOfLog.
func (EndOfLog) Kind() Kind { return KindEndOfLog }

func (EndOfLog) String() string { return "end of log" }

func (JoystickState) payload()  {}
func (KeyMatrixState) payload() {}
func (PaddleState) payload()    {}
func (EndOfLog) payload()       {}

// Delta returns the smallest change that turns the active-low lines from into
// to: press holds the lines that drop to 0, release those that rise to 1.
func Delta(from, to uint8) (press, release uint8) {
	diff := from ^ to
	return from & diff, to & diff
}

// ApplyDelta clears the pressed lines of status and sets the released ones.
// Lines not named by the delta keep their value.
func ApplyDelta(status, press, release uint8) uint8 {
	return (status &^ press) | release
}

func checkDelta(press, release uint8) error {
	if press == 0 && release == 0 {
		return fmt.Errorf("statechange: empty delta")
	}

	if press&release != 0 {
		return fmt.Errorf(
			"statechange: lines %#02x both pressed and released", press&release)
	}

	return nil
}
