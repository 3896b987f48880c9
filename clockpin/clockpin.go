// Package clockpin models a clock or strobe line between two chips.
//
// A pin is either static, holding a level until it is changed, or periodic,
// repeating a high/low waveform. Consumers can ask for the level or the number
// of edges over an interval at any time, which costs nothing. Only consumers
// that need to react on every edge turn on edge signals, which makes the pin
// schedule a callback for each edge.
package clockpin

import (
	"encoding/json"
	"fmt"

	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/naming"
	"github.com/sarchlab/emucore/scheduler"
)

// A Listener is told about the edges of a pin that generates edge signals.
type Listener interface {
	// Signal is called on every level change.
	Signal(pin *ClockPin, t emutime.EmuTime)

	// SignalPosEdge is called on every rising edge, after Signal.
	SignalPosEdge(pin *ClockPin, t emutime.EmuTime)
}

// ClockPin is an edge signal generator.
type ClockPin struct {
	naming.NamedBase

	scheduler *scheduler.Scheduler
	listener  Listener

	total     emutime.EmuDuration
	hi        emutime.EmuDuration
	reference emutime.EmuTime

	periodic   bool
	level      bool
	signalEdge bool

	// generation changes whenever pending edges are invalidated, so that an
	// edge callback can tell whether its listener reconfigured the pin.
	generation uint64
}

// NewClockPin creates a static, low pin. The listener may be nil if edge
// signals are never turned on.
func NewClockPin(
	name string,
	s *scheduler.Scheduler,
	listener Listener,
) *ClockPin {
	return &ClockPin{
		NamedBase: naming.MakeNamedBase(name),
		scheduler: s,
		listener:  listener,
	}
}

// SetState makes the pin static at the given level.
func (p *ClockPin) SetState(level bool, t emutime.EmuTime) {
	old := p.State(t)

	p.periodic = false
	p.level = level

	if !p.signalEdge {
		return
	}

	p.unschedule()

	if old == level {
		return
	}

	p.listener.Signal(p, t)
	if level {
		p.listener.SignalPosEdge(p, t)
	}
}

// SetPeriodicState makes the pin repeat a waveform that is high for hi out of
// every total, starting with a rising edge at t.
func (p *ClockPin) SetPeriodicState(total, hi emutime.EmuDuration, t emutime.EmuTime) {
	if total == 0 || hi > total {
		panic(fmt.Sprintf(
			"clockpin: %s invalid waveform, total %d, high %d",
			p.Name(), total, hi,
		))
	}

	p.periodic = true
	p.total = total
	p.hi = hi
	p.reference = t

	if p.signalEdge {
		p.unschedule()
		p.schedule(t)
	}
}

// State returns the level of the pin at t. A periodic pin is low before its
// first rising edge.
func (p *ClockPin) State(t emutime.EmuTime) bool {
	if !p.periodic {
		return p.level
	}

	if t < p.reference {
		return false
	}

	return p.phase(t) < p.hi
}

// IsPeriodic reports whether the pin repeats a waveform.
func (p *ClockPin) IsPeriodic() bool {
	return p.periodic
}

// TotalDuration returns the period of the waveform.
func (p *ClockPin) TotalDuration() emutime.EmuDuration {
	return p.total
}

// HighDuration returns how long the waveform stays high in each period.
func (p *ClockPin) HighDuration() emutime.EmuDuration {
	return p.hi
}

// TicksBetween returns the number of rising edges in [begin, end). It gives
// the same answer as watching the pin tick by tick, without doing so.
func (p *ClockPin) TicksBetween(begin, end emutime.EmuTime) uint64 {
	if begin > end {
		panic(fmt.Sprintf(
			"clockpin: TicksBetween(%d, %d) runs backwards", begin, end))
	}

	if !p.hasEdges() {
		return 0
	}

	return p.edgesBefore(end) - p.edgesBefore(begin)
}

// GenerateEdgeSignals turns edge callbacks to the listener on or off.
func (p *ClockPin) GenerateEdgeSignals(wanted bool, t emutime.EmuTime) {
	if p.signalEdge == wanted {
		return
	}

	if wanted && p.listener == nil {
		panic(fmt.Sprintf("clockpin: %s has no listener for edge signals", p.Name()))
	}

	p.signalEdge = wanted

	if wanted {
		p.schedule(t)
	} else {
		p.unschedule()
	}
}

// ExecuteUntil fires an edge. It is called by the scheduler.
func (p *ClockPin) ExecuteUntil(t emutime.EmuTime, _ int) {
	gen := p.generation
	rising := p.State(t)

	p.listener.Signal(p, t)
	if rising {
		p.listener.SignalPosEdge(p, t)
	}

	if gen != p.generation {
		return
	}

	if rising {
		p.scheduler.Schedule(p, t.Add(p.hi), 0)
	} else {
		p.scheduler.Schedule(p, t.Add(p.total-p.hi), 0)
	}
}

// hasEdges reports whether the pin is periodic with a waveform that actually
// changes level.
func (p *ClockPin) hasEdges() bool {
	return p.periodic && p.hi != 0 && p.hi < p.total
}

// phase returns how far t is into its period. t must not be before the
// reference time.
func (p *ClockPin) phase(t emutime.EmuTime) emutime.EmuDuration {
	return t.Sub(p.reference).Mod(p.total)
}

// edgesBefore counts the rising edges strictly before t.
func (p *ClockPin) edgesBefore(t emutime.EmuTime) uint64 {
	if t <= p.reference {
		return 0
	}

	d := t.Sub(p.reference)

	return (uint64(d) + uint64(p.total) - 1) / uint64(p.total)
}

// nextEdge returns the first edge at or after t.
func (p *ClockPin) nextEdge(t emutime.EmuTime) emutime.EmuTime {
	if t <= p.reference {
		return p.reference
	}

	phase := p.phase(t)

	switch {
	case phase == 0 || phase == p.hi:
		return t
	case phase < p.hi:
		return t.Add(p.hi - phase)
	default:
		return t.Add(p.total - phase)
	}
}

func (p *ClockPin) schedule(t emutime.EmuTime) {
	if !p.signalEdge || !p.hasEdges() {
		return
	}

	p.scheduler.Schedule(p, p.nextEdge(t), 0)
}

func (p *ClockPin) unschedule() {
	p.generation++
	p.scheduler.RemoveSyncPoints(p)
}

type pinState struct {
	Level      bool                `json:"level"`
	Periodic   bool                `json:"periodic"`
	Total      emutime.EmuDuration `json:"total"`
	High       emutime.EmuDuration `json:"high"`
	Reference  emutime.EmuTime     `json:"reference"`
	SignalEdge bool                `json:"signal_edge"`
}

// MarshalState encodes the pin. A pending edge callback is part of the
// scheduler's state, not the pin's.
func (p *ClockPin) MarshalState() ([]byte, error) {
	return json.Marshal(pinState{
		Level:      p.level,
		Periodic:   p.periodic,
		Total:      p.total,
		High:       p.hi,
		Reference:  p.reference,
		SignalEdge: p.signalEdge,
	})
}

// UnmarshalState restores the pin from MarshalState's output.
func (p *ClockPin) UnmarshalState(data []byte) error {
	var s pinState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("clockpin: %s: %w", p.Name(), err)
	}

	if s.Periodic && (s.Total == 0 || s.High > s.Total) {
		return fmt.Errorf("clockpin: %s: invalid waveform in state", p.Name())
	}

	if s.SignalEdge && p.listener == nil {
		return fmt.Errorf("clockpin: %s: edge signals saved but no listener", p.Name())
	}

	p.level = s.Level
	p.periodic = s.Periodic
	p.total = s.Total
	p.hi = s.High
	p.reference = s.Reference
	p.signalEdge = s.SignalEdge
	p.generation++

	return nil
}
