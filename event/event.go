// Package event carries host input and UI requests from any goroutine to the
// execution goroutine.
//
// Producers call Distributor.DistributeEvent. The execution goroutine drains
// the pending events with Distributor.DeliverEvents, handing each event to
// the listeners registered for its type in priority order.
package event

import "fmt"

// Type identifies the kind of an event. Listeners register per Type.
type Type int

// All event types.
const (
	TypeKeyDown Type = iota
	TypeKeyUp
	TypeMouseMotion
	TypeMouseButtonDown
	TypeMouseButtonUp
	TypeJoystickAxis
	TypeJoystickButtonDown
	TypeJoystickButtonUp
	TypeFocus
	TypePause
	TypeQuit

	// NumTypes is the number of event types.
	NumTypes
)

var typeNames = [NumTypes]string{
	TypeKeyDown:            "KeyDown",
	TypeKeyUp:              "KeyUp",
	TypeMouseMotion:        "MouseMotion",
	TypeMouseButtonDown:    "MouseButtonDown",
	TypeMouseButtonUp:      "MouseButtonUp",
	TypeJoystickAxis:       "JoystickAxis",
	TypeJoystickButtonDown: "JoystickButtonDown",
	TypeJoystickButtonUp:   "JoystickButtonUp",
	TypeFocus:              "Focus",
	TypePause:              "Pause",
	TypeQuit:               "Quit",
}

func (t Type) String() string {
	if t < 0 || t >= NumTypes {
		return fmt.Sprintf("Type(%d)", int(t))
	}

	return typeNames[t]
}

// An Event is a host-originated notification. The set of events is closed;
// only the types in this package implement it.
type Event interface {
	Type() Type

	event()
}

// KeyEvent reports a host key being pressed or released.
type KeyEvent struct {
	Key  Key
	Down bool
}

// Type returns TypeKeyDown or TypeKeyUp.
func (e KeyEvent) Type() Type {
	if e.Down {
		return TypeKeyDown
	}

	return TypeKeyUp
}

func (e KeyEvent) String() string {
	if e.Down {
		return fmt.Sprintf("key down %s", e.Key)
	}

	return fmt.Sprintf("key up %s", e.Key)
}

// MouseMotionEvent reports a relative mouse movement.
type MouseMotionEvent struct {
	X, Y int
}

// Type returns TypeMouseMotion.
func (MouseMotionEvent) Type() Type { return TypeMouseMotion }

func (e MouseMotionEvent) String() string {
	return fmt.Sprintf("mouse motion %d %d", e.X, e.Y)
}

// MouseButtonEvent reports a mouse button being pressed or released.
type MouseButtonEvent struct {
	Button int
	Down   bool
}

// Type returns TypeMouseButtonDown or TypeMouseButtonUp.
func (e MouseButtonEvent) Type() Type {
	if e.Down {
		return TypeMouseButtonDown
	}

	return TypeMouseButtonUp
}

func (e MouseButtonEvent) String() string {
	return fmt.Sprintf("mouse button %d down=%t", e.Button, e.Down)
}

// JoystickAxisEvent reports the position of a host joystick axis. Value lies
// in [-32768, 32767].
type JoystickAxisEvent struct {
	Joystick int
	Axis     int
	Value    int
}

// Type returns TypeJoystickAxis.
func (JoystickAxisEvent) Type() Type { return TypeJoystickAxis }

func (e JoystickAxisEvent) String() string {
	return fmt.Sprintf("joy%d axis%d %d", e.Joystick, e.Axis, e.Value)
}

// JoystickButtonEvent reports a host joystick button being pressed or
// released.
type JoystickButtonEvent struct {
	Joystick int
	Button   int
	Down     bool
}

// Type returns TypeJoystickButtonDown or TypeJoystickButtonUp.
func (e JoystickButtonEvent) Type() Type {
	if e.Down {
		return TypeJoystickButtonDown
	}

	return TypeJoystickButtonUp
}

func (e JoystickButtonEvent) String() string {
	return fmt.Sprintf("joy%d button%d down=%t", e.Joystick, e.Button, e.Down)
}

// FocusEvent reports the emulator window gaining or losing input focus.
type FocusEvent struct {
	Gained bool
}

// Type returns TypeFocus.
func (FocusEvent) Type() Type { return TypeFocus }

// PauseEvent asks the main loop to stop or resume advancing virtual time.
type PauseEvent struct {
	Paused bool
}

// Type returns TypePause.
func (PauseEvent) Type() Type { return TypePause }

// QuitEvent asks the main loop to exit.
type QuitEvent struct{}

// Type returns TypeQuit.
func (QuitEvent) Type() Type { return TypeQuit }

func (KeyEvent) event()            {}
func (MouseMotionEvent) event()    {}
func (MouseButtonEvent) event()    {}
func (JoystickAxisEvent) event()   {}
func (JoystickButtonEvent) event() {}
func (FocusEvent) event()          {}
func (PauseEvent) event()          {}
func (QuitEvent) event()           {}
