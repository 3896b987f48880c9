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

// Dial range of the paddle. The limits are where Arkanoid games still reach
// the exit doors on both sides.
const (
	PaddleDialMin    = 152
	PaddleDialMax    = 309
	PaddleDialCenter = (PaddleDialMin + PaddleDialMax) / 2

	// PaddleScale is how many host mouse units turn the dial one step.
	PaddleScale = 2
)

// PaddleButton is the active-low button line of the paddle.
const PaddleButton uint8 = 0x02

const (
	paddleReleased  uint8  = 0x3E
	paddleShiftIdle uint16 = 0x1FF
)

var paddleEventTypes = []event.Type{
	event.TypeMouseMotion,
	event.TypeMouseButtonDown,
	event.TypeMouseButtonUp,
	event.TypeFocus,
}

// Paddle is an Arkanoid style dial controller driven by the host mouse.
// Horizontal movement turns the dial and any mouse button presses its
// button. The machine reads the dial position serially: a rising pin 8
// latches it into a 9 bit shift register and every rising pin 6 shifts it
// out one bit at a time.
type Paddle struct {
	naming.NamedBase

	port    int
	events  *event.Distributor
	changes *statechange.Distributor

	mouseButtons map[int]bool

	dial      int
	buttons   uint8
	shiftReg  uint16
	lastWrite uint8
	plugged   bool

	log logging.LeveledLogger
}

// NewPaddle creates an unplugged paddle for a port, with the dial centered.
func NewPaddle(
	name string,
	port int,
	events *event.Distributor,
	changes *statechange.Distributor,
	loggerFactory logging.LoggerFactory,
) *Paddle {
	return &Paddle{
		NamedBase:    naming.MakeNamedBase(name),
		port:         port,
		events:       events,
		changes:      changes,
		mouseButtons: make(map[int]bool),
		dial:         PaddleDialCenter,
		buttons:      paddleReleased,
		shiftReg:     paddleShiftIdle,
		log:          logs.OrDiscard(loggerFactory).NewLogger(logs.ScopeInput),
	}
}

// Plug connects the paddle to its distributors.
func (p *Paddle) Plug() {
	if p.plugged {
		return
	}

	for _, t := range paddleEventTypes {
		p.events.RegisterEventListener(t, p, event.Machine)
	}
	p.changes.RegisterListener(p)

	p.plugged = true
}

// Unplug disconnects the paddle from its distributors.
func (p *Paddle) Unplug() {
	if !p.plugged {
		return
	}

	p.changes.UnregisterListener(p)
	for _, t := range paddleEventTypes {
		p.events.UnregisterEventListener(t, p)
	}

	p.plugged = false
}

// Port returns the port the paddle is connected to.
func (p *Paddle) Port() int {
	return p.port
}

// Dial returns the dial position.
func (p *Paddle) Dial() int {
	return p.dial
}

// Read returns the button lines, with the top bit of the shift register on
// line 0.
func (p *Paddle) Read() uint8 {
	return p.buttons | uint8((p.shiftReg&0x100)>>8)
}

// Write drives pins 6 (bit 0) and 8 (bit 2).
func (p *Paddle) Write(value uint8) {
	rising := (p.lastWrite ^ value) & value
	p.lastWrite = value

	if rising&0x04 != 0 {
		p.shiftReg = uint16(p.dial)
	}

	if rising&0x01 != 0 {
		p.shiftReg = (p.shiftReg<<1 | 0x01) & paddleShiftIdle
	}
}

// SignalEvent follows the host mouse.
func (p *Paddle) SignalEvent(evt event.Event) (event.Priority, error) {
	dial := p.dial

	switch e := evt.(type) {
	case event.MouseMotionEvent:
		dial = clampDial(p.dial + e.X/PaddleScale)
	case event.MouseButtonEvent:
		p.mouseButtons[e.Button] = e.Down
	case event.FocusEvent:
		if e.Gained {
			return event.NoBlock, nil
		}

		clear(p.mouseButtons)
	default:
		return event.NoBlock, nil
	}

	p.follow(dial, p.hostButtons())

	return event.NoBlock, nil
}

func (p *Paddle) hostButtons() uint8 {
	for _, down := range p.mouseButtons {
		if down {
			return paddleReleased &^ PaddleButton
		}
	}

	return paddleReleased
}

// follow distributes the smallest change that brings the paddle to dial and
// buttons.
func (p *Paddle) follow(dial int, buttons uint8) {
	press, release := statechange.Delta(p.buttons, buttons)
	steps := dial - p.dial

	if steps == 0 && press == 0 && release == 0 {
		return
	}

	ps, err := statechange.NewPaddleState(p.port, steps, press, release)
	if err != nil {
		panic(err)
	}

	p.log.Tracef("%s %v", p.Name(), ps)
	p.changes.DistributeNew(ps)
}

// SignalStateChange applies the changes for this paddle's port.
func (p *Paddle) SignalStateChange(r statechange.Record) error {
	ps, ok := r.Payload.(statechange.PaddleState)
	if !ok || ps.Port != p.port {
		return nil
	}

	if ps.Press&^PaddleButton != 0 || ps.Release&^PaddleButton != 0 {
		return fmt.Errorf("%s: unknown lines in %v", p.Name(), ps)
	}

	p.dial = clampDial(p.dial + ps.Dial)
	p.buttons = ps.Apply(p.buttons)

	return nil
}

// StopReplay catches up with the host mouse buttons. The mouse only reports
// movement, so the dial stays where the replay left it.
func (p *Paddle) StopReplay(emutime.EmuTime) {
	p.follow(p.dial, p.hostButtons())
}

func clampDial(dial int) int {
	return min(PaddleDialMax, max(PaddleDialMin, dial))
}

type paddleState struct {
	Dial      int    `json:"dial"`
	Buttons   uint8  `json:"buttons"`
	ShiftReg  uint16 `json:"shift_reg"`
	LastWrite uint8  `json:"last_write"`
}

// MarshalState encodes the dial, the buttons and the serial interface.
func (p *Paddle) MarshalState() ([]byte, error) {
	return json.Marshal(paddleState{
		Dial:      p.dial,
		Buttons:   p.buttons,
		ShiftReg:  p.shiftReg,
		LastWrite: p.lastWrite,
	})
}

// UnmarshalState restores the state encoded by MarshalState.
func (p *Paddle) UnmarshalState(data []byte) error {
	var s paddleState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%s: %w", p.Name(), err)
	}

	if s.Dial < PaddleDialMin || s.Dial > PaddleDialMax {
		return fmt.Errorf("%s: dial %d out of range", p.Name(), s.Dial)
	}

	p.dial = s.Dial
	p.buttons = s.Buttons
	p.shiftReg = s.ShiftReg & paddleShiftIdle
	p.lastWrite = s.LastWrite

	return nil
}
