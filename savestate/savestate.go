// Package savestate captures and restores a whole machine: the scheduler with
// its pending sync points, the state of every component, and the replay log.
// A restored machine continues exactly as the saved one would have.
package savestate

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/sarchlab/emucore/naming"
	"github.com/sarchlab/emucore/scheduler"
	"github.com/sarchlab/emucore/statechange"
)

// Version is the snapshot format version.
const Version = 1

// ErrIncompatible is returned for a snapshot that does not fit the machine.
var ErrIncompatible = errors.New("savestate: incompatible snapshot")

// A Holder is a component with state to save.
type Holder interface {
	naming.Named

	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

// Snapshot is a saved machine.
type Snapshot struct {
	Version    int                        `json:"version"`
	Scheduler  scheduler.State            `json:"scheduler"`
	Components map[string]json.RawMessage `json:"components"`
	Log        *statechange.Log           `json:"log"`
}

// Manager knows the parts of a machine that make up its state.
type Manager struct {
	scheduler *scheduler.Scheduler
	changes   *statechange.Distributor
	codec     Codec

	holders []Holder
	owners  map[string]scheduler.Schedulable
}

// NewManager creates a Manager for the machine driven by s and changes.
// changes may be nil when the machine has no replay log.
func NewManager(s *scheduler.Scheduler, changes *statechange.Distributor) *Manager {
	return &Manager{
		scheduler: s,
		changes:   changes,
		codec:     JSONCodec{},
		owners:    make(map[string]scheduler.Schedulable),
	}
}

// SetCodec replaces the default JSON codec.
func (m *Manager) SetCodec(c Codec) {
	m.codec = c
}

// Register adds a component. Names must be unique. A component that is also
// a Schedulable may own sync points.
func (m *Manager) Register(h Holder) {
	if m.holder(h.Name()) != nil {
		panic(fmt.Sprintf("savestate: %s registered twice", h.Name()))
	}

	m.holders = append(m.holders, h)

	if s, ok := h.(scheduler.Schedulable); ok {
		m.owners[h.Name()] = s
	}
}

// RegisterSchedulable adds a sync point owner that has no state of its own.
func (m *Manager) RegisterSchedulable(s scheduler.Schedulable) {
	if _, dup := m.owners[s.Name()]; dup {
		panic(fmt.Sprintf("savestate: %s registered twice", s.Name()))
	}

	m.owners[s.Name()] = s
}

func (m *Manager) holder(name string) Holder {
	for _, h := range m.holders {
		if h.Name() == name {
			return h
		}
	}

	return nil
}

// Snapshot captures the machine. It fails during a replay, since the replay
// position is not part of a snapshot.
func (m *Manager) Snapshot() (*Snapshot, error) {
	if m.changes != nil && m.changes.IsReplaying() {
		return nil, statechange.ErrReplaying
	}

	components, err := m.componentStates()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Version:    Version,
		Scheduler:  m.scheduler.State(),
		Components: components,
	}

	if m.changes != nil {
		snap.Log = m.changes.Log()
	}

	return snap, nil
}

func (m *Manager) componentStates() (map[string]json.RawMessage, error) {
	states := make(map[string]json.RawMessage, len(m.holders))

	for _, h := range m.holders {
		data, err := h.MarshalState()
		if err != nil {
			return nil, fmt.Errorf("savestate: saving %s: %w", h.Name(), err)
		}

		states[h.Name()] = data
	}

	return states, nil
}

// Restore brings the machine to a snapshot: components first, then the
// scheduler, then the replay log. When it fails the machine is left as it
// was.
func (m *Manager) Restore(snap *Snapshot) error {
	if snap.Version != Version {
		return fmt.Errorf("%w: version %d, want %d", ErrIncompatible, snap.Version, Version)
	}

	if m.changes != nil && m.changes.IsReplaying() {
		return statechange.ErrReplaying
	}

	for name := range snap.Components {
		if m.holder(name) == nil {
			return fmt.Errorf("%w: unknown component %s", ErrIncompatible, name)
		}
	}

	for _, h := range m.holders {
		if _, ok := snap.Components[h.Name()]; !ok {
			return fmt.Errorf("%w: no state for %s", ErrIncompatible, h.Name())
		}
	}

	current, err := m.componentStates()
	if err != nil {
		return err
	}

	for i, h := range m.holders {
		if err := h.UnmarshalState(snap.Components[h.Name()]); err != nil {
			err = fmt.Errorf("savestate: restoring %s: %w", h.Name(), err)
			return m.rollback(current, m.holders[:i+1], err)
		}
	}

	err = m.scheduler.SetState(snap.Scheduler, func(name string) (scheduler.Schedulable, bool) {
		s, ok := m.owners[name]
		return s, ok
	})
	if err != nil {
		return m.rollback(current, m.holders, fmt.Errorf("%w: %w", ErrIncompatible, err))
	}

	if m.changes != nil {
		log := snap.Log
		if log == nil {
			log = statechange.NewLog()
		}

		// Cannot fail, replays were ruled out above.
		_ = m.changes.SetLog(log)
	}

	return nil
}

// rollback puts the states saved in states back into holders and returns
// cause, joined with any error met on the way.
func (m *Manager) rollback(
	states map[string]json.RawMessage,
	holders []Holder,
	cause error,
) error {
	errs := []error{cause}

	for _, h := range holders {
		if err := h.UnmarshalState(states[h.Name()]); err != nil {
			errs = append(errs, fmt.Errorf("savestate: rolling back %s: %w", h.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// Save writes a snapshot of the machine to w.
func (m *Manager) Save(w io.Writer) error {
	snap, err := m.Snapshot()
	if err != nil {
		return err
	}

	if err := m.codec.Encode(w, snap); err != nil {
		return fmt.Errorf("savestate: %w", err)
	}

	return nil
}

// Load restores the machine from a snapshot read from r.
func (m *Manager) Load(r io.Reader) error {
	snap, err := m.codec.Decode(r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIncompatible, err)
	}

	return m.Restore(snap)
}

// Digest hashes the state of every component and the pending sync points, so
// that two machines can be compared bit for bit. The replay log is left out,
// so a replayed run has the digest of the run it replays.
func (m *Manager) Digest() (uint64, error) {
	states, err := m.componentStates()
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	slices.Sort(names)

	h := xxhash.New()

	for _, name := range names {
		writeUint(h, uint64(len(name)))
		_, _ = h.WriteString(name)
		writeUint(h, uint64(len(states[name])))
		_, _ = h.Write(states[name])
	}

	// Sequence numbers only order ties, so they stay out of the digest.
	state := m.scheduler.State()
	writeUint(h, uint64(state.Now))
	for _, sp := range state.SyncPoints {
		writeUint(h, uint64(sp.Time))
		writeUint(h, uint64(len(sp.Owner)))
		_, _ = h.WriteString(sp.Owner)
		writeUint(h, uint64(sp.UserData))
	}

	return h.Sum64(), nil
}

func writeUint(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}
