// Package machine wires the core into a small demo machine: two joystick
// ports, a paddle, a keyboard matrix and a timer that polls them, all driven
// by one reactor and saved by one savestate manager.
package machine

import (
	"context"
	"fmt"
	"io"

	"github.com/pion/logging"

	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/event"
	"github.com/sarchlab/emucore/input"
	"github.com/sarchlab/emucore/reactor"
	"github.com/sarchlab/emucore/savestate"
	"github.com/sarchlab/emucore/statechange"
)

// TimerFreq is the default tick rate of the timer.
const TimerFreq = 60 * emutime.Hz

// NumJoysticks is the number of joystick ports.
const NumJoysticks = 2

// PaddlePort is the port of the paddle, after the joystick ports.
const PaddlePort = NumJoysticks

// Builder can be used to build a Machine.
type Builder struct {
	config        reactor.Config
	loggerFactory logging.LoggerFactory
	timerPeriod   emutime.EmuDuration
	timerHigh     emutime.EmuDuration
	timerStart    emutime.EmuTime
}

// MakeBuilder creates a new builder. The timer runs at TimerFreq with a 50%
// duty cycle.
func MakeBuilder() Builder {
	period := TimerFreq.Period()

	return Builder{
		config:      reactor.DefaultConfig(),
		timerPeriod: period,
		timerHigh:   period / 2,
	}
}

// WithConfig sets the reactor configuration.
func (b Builder) WithConfig(c reactor.Config) Builder {
	b.config = c
	return b
}

// WithLoggerFactory sets the logger factory shared by all parts.
func (b Builder) WithLoggerFactory(f logging.LoggerFactory) Builder {
	b.loggerFactory = f
	return b
}

// WithTimerWaveform sets the timer period and high time, with the first tick
// at start.
func (b Builder) WithTimerWaveform(
	period, hi emutime.EmuDuration,
	start emutime.EmuTime,
) Builder {
	b.timerPeriod = period
	b.timerHigh = hi
	b.timerStart = start

	return b
}

// Build builds the machine.
func (b Builder) Build() *Machine {
	rb := reactor.MakeBuilder().WithConfig(b.config)
	if b.loggerFactory != nil {
		rb = rb.WithLoggerFactory(b.loggerFactory)
	}

	r := rb.Build()
	lf := r.LoggerFactory()

	m := &Machine{reactor: r}

	for i := range m.joysticks {
		m.joysticks[i] = input.NewJoystick(
			fmt.Sprintf("machine.joystick[%d]", i), i,
			r.Events(), r.StateChanges(), lf)
	}

	m.paddle = input.NewPaddle(
		"machine.paddle", PaddlePort, r.Events(), r.StateChanges(), lf)
	m.keyboard = input.NewKeyboard(
		"machine.keyboard", r.Events(), r.StateChanges(), lf)
	m.timer = NewTimer("machine.timer", r.Scheduler(), m.sampleInputs)

	m.savestates = savestate.NewManager(r.Scheduler(), r.StateChanges())
	for _, j := range m.joysticks {
		m.savestates.Register(j)
	}
	m.savestates.Register(m.paddle)
	m.savestates.Register(m.keyboard)
	m.savestates.Register(m.timer)
	m.savestates.Register(m.timer.Pin())

	for _, j := range m.joysticks {
		j.Plug()
	}
	m.paddle.Plug()
	m.keyboard.Plug()

	m.timer.Start(b.timerPeriod, b.timerHigh, b.timerStart)

	return m
}

// Machine is the demo machine.
type Machine struct {
	reactor    *reactor.Reactor
	joysticks  [NumJoysticks]*input.Joystick
	paddle     *input.Paddle
	keyboard   *input.Keyboard
	timer      *Timer
	savestates *savestate.Manager
}

// Reactor returns the reactor running the machine.
func (m *Machine) Reactor() *reactor.Reactor {
	return m.reactor
}

// Joystick returns the joystick in port i.
func (m *Machine) Joystick(i int) *input.Joystick {
	return m.joysticks[i]
}

// Paddle returns the paddle.
func (m *Machine) Paddle() *input.Paddle {
	return m.paddle
}

// Keyboard returns the keyboard.
func (m *Machine) Keyboard() *input.Keyboard {
	return m.keyboard
}

// Timer returns the timer.
func (m *Machine) Timer() *Timer {
	return m.timer
}

// Savestates returns the savestate manager of the machine.
func (m *Machine) Savestates() *savestate.Manager {
	return m.savestates
}

// sampleInputs is what the timer reads on every tick: both joystick ports,
// the paddle, then every keyboard row.
func (m *Machine) sampleInputs() []byte {
	buf := make([]byte, 0, NumJoysticks+3+input.NumRows)
	for _, j := range m.joysticks {
		buf = append(buf, j.Read())
	}

	dial, buttons := m.readPaddle()
	buf = append(buf, byte(dial>>8), byte(dial), buttons)

	for row := 0; row < input.NumRows; row++ {
		buf = append(buf, m.keyboard.Row(row))
	}

	return buf
}

// readPaddle latches the dial with pin 8 and clocks its 9 bits out with pin
// 6, most significant first.
func (m *Machine) readPaddle() (dial uint16, buttons uint8) {
	m.paddle.Write(0x00)
	m.paddle.Write(0x04)

	for i := 0; i < 9; i++ {
		if i > 0 {
			m.paddle.Write(0x05)
			m.paddle.Write(0x04)
		}

		v := m.paddle.Read()
		dial = dial<<1 | uint16(v&0x01)
		buttons = v &^ 0x01
	}

	return dial, buttons
}

// Run runs the machine on the calling goroutine until the reactor stops.
func (m *Machine) Run(ctx context.Context) error {
	return m.reactor.Run(ctx)
}

// Record sends every state change from now on to sink as well.
func (m *Machine) Record(sink statechange.Sink) {
	m.reactor.StateChanges().SetSink(sink)
}

// EndRecording releases all host input, as when the emulator loses focus,
// and closes the replay log at the current time. A replay of the log then
// ends in the state the machine is in now. It must not be called while the
// machine runs.
func (m *Machine) EndRecording() {
	events := m.reactor.Events()
	events.DistributeEvent(event.FocusEvent{Gained: false})
	events.DeliverEvents()

	m.reactor.StateChanges().EndLog()
}

// Replay replays a recorded log from the current time.
func (m *Machine) Replay(log *statechange.Log) error {
	return m.reactor.StateChanges().StartReplay(log)
}

// Log returns the state changes applied so far.
func (m *Machine) Log() *statechange.Log {
	return m.reactor.StateChanges().Log()
}

// Digest hashes the machine state. Two runs that saw the same input at the
// same virtual times have the same digest.
func (m *Machine) Digest() (uint64, error) {
	return m.savestates.Digest()
}

// Save writes a savestate to w.
func (m *Machine) Save(w io.Writer) error {
	return m.savestates.Save(w)
}

// Load restores a savestate read from r.
func (m *Machine) Load(r io.Reader) error {
	return m.savestates.Load(r)
}
