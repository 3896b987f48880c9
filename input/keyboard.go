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

// NumRows is the number of rows of the keyboard matrix.
const NumRows = 11

// KeyPos is the place of a key in the matrix.
type KeyPos struct {
	Row int
	Bit uint8
}

// keyMap places the host keys on an international MSX matrix. Rows 9 and 10
// hold the numeric keypad, which no host key maps to.
var keyMap = map[event.Key]KeyPos{
	event.Key0: {0, 0x01},
	event.Key1: {0, 0x02},
	event.Key2: {0, 0x04},
	event.Key3: {0, 0x08},
	event.Key4: {0, 0x10},
	event.Key5: {0, 0x20},
	event.Key6: {0, 0x40},
	event.Key7: {0, 0x80},
	event.Key8: {1, 0x01},
	event.Key9: {1, 0x02},

	event.KeyA: {2, 0x40},
	event.KeyB: {2, 0x80},
	event.KeyC: {3, 0x01},
	event.KeyD: {3, 0x02},
	event.KeyE: {3, 0x04},
	event.KeyF: {3, 0x08},
	event.KeyG: {3, 0x10},
	event.KeyH: {3, 0x20},
	event.KeyI: {3, 0x40},
	event.KeyJ: {3, 0x80},
	event.KeyK: {4, 0x01},
	event.KeyL: {4, 0x02},
	event.KeyM: {4, 0x04},
	event.KeyN: {4, 0x08},
	event.KeyO: {4, 0x10},
	event.KeyP: {4, 0x20},
	event.KeyQ: {4, 0x40},
	event.KeyR: {4, 0x80},
	event.KeyS: {5, 0x01},
	event.KeyT: {5, 0x02},
	event.KeyU: {5, 0x04},
	event.KeyV: {5, 0x08},
	event.KeyW: {5, 0x10},
	event.KeyX: {5, 0x20},
	event.KeyY: {5, 0x40},
	event.KeyZ: {5, 0x80},

	event.KeyShift: {6, 0x01},
	event.KeyCtrl:  {6, 0x02},
	event.KeyF1:    {6, 0x20},
	event.KeyF2:    {6, 0x40},
	event.KeyF3:    {6, 0x80},

	event.KeyF4:        {7, 0x01},
	event.KeyF5:        {7, 0x02},
	event.KeyEscape:    {7, 0x04},
	event.KeyTab:       {7, 0x08},
	event.KeyBackspace: {7, 0x20},
	event.KeyReturn:    {7, 0x80},

	event.KeySpace: {8, 0x01},
	event.KeyLeft:  {8, 0x10},
	event.KeyUp:    {8, 0x20},
	event.KeyDown:  {8, 0x40},
	event.KeyRight: {8, 0x80},
}

// PositionOf returns where a host key sits in the matrix.
func PositionOf(k event.Key) (KeyPos, bool) {
	pos, ok := keyMap[k]
	return pos, ok
}

// Keyboard is the keyboard matrix of the machine. A row reads 0 for every
// pressed key.
type Keyboard struct {
	naming.NamedBase

	events  *event.Distributor
	changes *statechange.Distributor

	pressed map[event.Key]bool
	matrix  [NumRows]uint8
	plugged bool

	log logging.LeveledLogger
}

// NewKeyboard creates an unplugged keyboard with no key pressed.
func NewKeyboard(
	name string,
	events *event.Distributor,
	changes *statechange.Distributor,
	loggerFactory logging.LoggerFactory,
) *Keyboard {
	k := &Keyboard{
		NamedBase: naming.MakeNamedBase(name),
		events:    events,
		changes:   changes,
		pressed:   make(map[event.Key]bool),
		log:       logs.OrDiscard(loggerFactory).NewLogger(logs.ScopeInput),
	}

	for i := range k.matrix {
		k.matrix[i] = 0xFF
	}

	return k
}

// Plug connects the keyboard to its distributors.
func (k *Keyboard) Plug() {
	if k.plugged {
		return
	}

	k.events.RegisterEventListener(event.TypeKeyDown, k, event.Machine)
	k.events.RegisterEventListener(event.TypeKeyUp, k, event.Machine)
	k.events.RegisterEventListener(event.TypeFocus, k, event.Machine)
	k.changes.RegisterListener(k)
	k.plugged = true
}

// Unplug disconnects the keyboard from its distributors.
func (k *Keyboard) Unplug() {
	if !k.plugged {
		return
	}

	k.changes.UnregisterListener(k)
	k.events.UnregisterEventListener(event.TypeKeyDown, k)
	k.events.UnregisterEventListener(event.TypeKeyUp, k)
	k.events.UnregisterEventListener(event.TypeFocus, k)
	k.plugged = false
}

// Row returns a row of the matrix as the machine sees it.
func (k *Keyboard) Row(row int) uint8 {
	if row < 0 || row >= NumRows {
		return 0xFF
	}

	return k.matrix[row]
}

// SignalEvent follows the host keyboard. Keys without a place in the matrix
// are left to other listeners. Losing focus releases every key.
func (k *Keyboard) SignalEvent(evt event.Event) (event.Priority, error) {
	if f, ok := evt.(event.FocusEvent); ok {
		if !f.Gained {
			clear(k.pressed)
			for row := 0; row < NumRows; row++ {
				k.follow(row)
			}
		}

		return event.NoBlock, nil
	}

	e, ok := evt.(event.KeyEvent)
	if !ok {
		return event.NoBlock, nil
	}

	pos, mapped := keyMap[e.Key]
	if !mapped {
		return event.NoBlock, nil
	}

	k.pressed[e.Key] = e.Down
	k.follow(pos.Row)

	return event.NoBlock, nil
}

// hostRow computes a row from the host keys that are down.
func (k *Keyboard) hostRow(row int) uint8 {
	value := uint8(0xFF)

	for key, down := range k.pressed {
		if pos := keyMap[key]; down && pos.Row == row {
			value &^= pos.Bit
		}
	}

	return value
}

func (k *Keyboard) follow(row int) {
	press, release := statechange.Delta(k.matrix[row], k.hostRow(row))
	if press == 0 && release == 0 {
		return
	}

	ks, err := statechange.NewKeyMatrixState(row, press, release)
	if err != nil {
		panic(err)
	}

	k.log.Tracef("%s %v", k.Name(), ks)
	k.changes.DistributeNew(ks)
}

// SignalStateChange applies matrix changes.
func (k *Keyboard) SignalStateChange(r statechange.Record) error {
	ks, ok := r.Payload.(statechange.KeyMatrixState)
	if !ok {
		return nil
	}

	if ks.Row < 0 || ks.Row >= NumRows {
		return fmt.Errorf("%s: row %d out of range", k.Name(), ks.Row)
	}

	k.matrix[ks.Row] = ks.Apply(k.matrix[ks.Row])

	return nil
}

// StopReplay catches up with the host keyboard, one change per row that
// differs.
func (k *Keyboard) StopReplay(emutime.EmuTime) {
	for row := 0; row < NumRows; row++ {
		k.follow(row)
	}
}

type keyboardState struct {
	Matrix [NumRows]uint8 `json:"matrix"`
}

// MarshalState encodes the matrix.
func (k *Keyboard) MarshalState() ([]byte, error) {
	return json.Marshal(keyboardState{Matrix: k.matrix})
}

// UnmarshalState restores the matrix.
func (k *Keyboard) UnmarshalState(data []byte) error {
	var s keyboardState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%s: %w", k.Name(), err)
	}

	k.matrix = s.Matrix

	return nil
}
