// Package input implements emulated input devices. They listen to host
// events and turn them into state changes, which is the only way they change
// what the emulated machine sees.
package input

import (
	"encoding/json"
	"fmt"

	"github.com/pion/logging"
	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/event"
	"github.com/sarchlab/emucore/logs"
	"github.com/sarchlab/emucore/naming"
	"github.com/sarchlab/emucore/statechange"
)

// Active-low joystick status lines.
const (
	JoyUp      uint8 = 0x01
	JoyDown    uint8 = 0x02
	JoyLeft    uint8 = 0x04
	JoyRight   uint8 = 0x08
	JoyButtonA uint8 = 0x10
	JoyButtonB uint8 = 0x20

	joyReleased = JoyUp | JoyDown | JoyLeft | JoyRight | JoyButtonA | JoyButtonB
)

// AxisThreshold is how far a host axis must be pushed to count as a
// direction.
const AxisThreshold = 32768 / 10

var joystickEventTypes = []event.Type{
	event.TypeJoystickAxis,
	event.TypeJoystickButtonDown,
	event.TypeJoystickButtonUp,
	event.TypeFocus,
}

// Joystick is a two-button joystick connected to one of the machine's ports.
// It follows the host joystick with the same index.
type Joystick struct {
	naming.NamedBase

	port    int
	events  *event.Distributor
	changes *statechange.Distributor

	axes    map[int]int
	buttons map[int]bool

	status  uint8
	pin8    bool
	plugged bool

	log logging.LeveledLogger
}

// NewJoystick creates an unplugged joystick for a port.
func NewJoystick(
	name string,
	port int,
	events *event.Distributor,
	changes *statechange.Distributor,
	loggerFactory logging.LoggerFactory,
) *Joystick {
	return &Joystick{
		NamedBase: naming.MakeNamedBase(name),
		port:      port,
		events:    events,
		changes:   changes,
		axes:      make(map[int]int),
		buttons:   make(map[int]bool),
		status:    joyReleased,
		log:       logs.OrDiscard(loggerFactory).NewLogger(logs.ScopeInput),
	}
}

// Plug connects the joystick to its distributors. The status starts from the
// current host state.
func (j *Joystick) Plug() {
	if j.plugged {
		return
	}

	for _, t := range joystickEventTypes {
		j.events.RegisterEventListener(t, j, event.Machine)
	}
	j.changes.RegisterListener(j)

	j.status = j.hostState()
	j.plugged = true
}

// Unplug disconnects the joystick from its distributors.
func (j *Joystick) Unplug() {
	if !j.plugged {
		return
	}

	j.changes.UnregisterListener(j)
	for _, t := range joystickEventTypes {
		j.events.UnregisterEventListener(t, j)
	}

	j.plugged = false
}

// Port returns the port the joystick is connected to.
func (j *Joystick) Port() int {
	return j.port
}

// Read returns the status lines as the machine sees them.
func (j *Joystick) Read() uint8 {
	if j.pin8 {
		return joyReleased
	}

	return j.status
}

// Write sets the output lines driven by the machine. Bit 2 is pin 8.
func (j *Joystick) Write(value uint8) {
	j.pin8 = value&0x04 != 0
}

// SignalEvent follows the host joystick. Losing focus releases everything.
func (j *Joystick) SignalEvent(evt event.Event) (event.Priority, error) {
	switch e := evt.(type) {
	case event.JoystickAxisEvent:
		if e.Joystick != j.port {
			return event.NoBlock, nil
		}

		if e.Value < -32768 || e.Value > 32767 {
			return event.NoBlock, fmt.Errorf(
				"%s: axis %d value %d out of range", j.Name(), e.Axis, e.Value)
		}

		j.axes[e.Axis] = e.Value
	case event.JoystickButtonEvent:
		if e.Joystick != j.port {
			return event.NoBlock, nil
		}

		j.buttons[e.Button] = e.Down
	case event.FocusEvent:
		if e.Gained {
			return event.NoBlock, nil
		}

		// The host stops telling us about releases.
		clear(j.axes)
		clear(j.buttons)
	default:
		return event.NoBlock, nil
	}

	j.follow(j.hostState())

	return event.NoBlock, nil
}

// hostState computes the status lines from the host joystick.
func (j *Joystick) hostState() uint8 {
	status := joyReleased

	if j.axes[0] < -AxisThreshold {
		status &^= JoyLeft
	}

	if j.axes[0] > AxisThreshold {
		status &^= JoyRight
	}

	if j.axes[1] < -AxisThreshold {
		status &^= JoyUp
	}

	if j.axes[1] > AxisThreshold {
		status &^= JoyDown
	}

	for b, down := range j.buttons {
		if !down {
			continue
		}

		if b%2 == 0 {
			status &^= JoyButtonA
		} else {
			status &^= JoyButtonB
		}
	}

	return status
}

// follow distributes the smallest change that brings the status to
// newStatus.
func (j *Joystick) follow(newStatus uint8) {
	press, release := statechange.Delta(j.status, newStatus)
	if press == 0 && release == 0 {
		return
	}

	js, err := statechange.NewJoystickState(j.port, press, release)
	if err != nil {
		panic(err)
	}

	j.log.Tracef("%s %v", j.Name(), js)
	j.changes.DistributeNew(js)
}

// SignalStateChange applies the changes for this joystick's port.
func (j *Joystick) SignalStateChange(r statechange.Record) error {
	js, ok := r.Payload.(statechange.JoystickState)
	if !ok || js.Port != j.port {
		return nil
	}

	if js.Press&^joyReleased != 0 || js.Release&^joyReleased != 0 {
		return fmt.Errorf("%s: unknown lines in %v", j.Name(), js)
	}

	j.status = js.Apply(j.status)

	return nil
}

// StopReplay catches up with the host joystick.
func (j *Joystick) StopReplay(emutime.EmuTime) {
	j.follow(j.hostState())
}

type joystickState struct {
	Status uint8 `json:"status"`
}

// MarshalState encodes the status lines. Pin 8 is restored by the machine
// writing it again.
func (j *Joystick) MarshalState() ([]byte, error) {
	return json.Marshal(joystickState{Status: j.status})
}

// UnmarshalState restores the status lines.
func (j *Joystick) UnmarshalState(data []byte) error {
	var s joystickState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}

	j.status = s.Status

	return nil
}
