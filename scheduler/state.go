package scheduler

import (
	"container/heap"
	"fmt"

	"github.com/sarchlab/emucore/emutime"
)

// SyncPointState is the persistent form of a SyncPoint. The owner is referred
// to by name.
type SyncPointState struct {
	Time     emutime.EmuTime `json:"time"`
	Owner    string          `json:"owner"`
	UserData int             `json:"user_data"`
	Seq      uint64          `json:"seq"`
}

// State is the persistent form of a Scheduler.
type State struct {
	Now        emutime.EmuTime  `json:"now"`
	NextSeq    uint64           `json:"next_seq"`
	SyncPoints []SyncPointState `json:"sync_points"`
}

// A Resolver finds the live Schedulable that carries a name.
type Resolver func(name string) (Schedulable, bool)

// State captures the current time and every pending sync point, in firing
// order.
func (s *Scheduler) State() State {
	state := State{
		Now:        s.now,
		NextSeq:    s.nextSeq,
		SyncPoints: make([]SyncPointState, 0, len(s.queue)),
	}

	for _, sp := range s.sorted() {
		state.SyncPoints = append(state.SyncPoints, SyncPointState{
			Time:     sp.Time,
			Owner:    sp.Owner.Name(),
			UserData: sp.UserData,
			Seq:      sp.seq,
		})
	}

	return state
}

// SetState replaces the pending sync points with the ones in state. Sync points
// keep their tie-breaking order, so the restored scheduler fires them exactly
// as the saved one would have.
func (s *Scheduler) SetState(state State, resolve Resolver) error {
	if s.firing {
		panic("scheduler: SetState called from within a sync point")
	}

	queue := make(syncPointHeap, 0, len(state.SyncPoints))

	for _, sps := range state.SyncPoints {
		owner, ok := resolve(sps.Owner)
		if !ok {
			return fmt.Errorf("scheduler: unknown sync point owner %q", sps.Owner)
		}

		if sps.Time < state.Now {
			return fmt.Errorf(
				"scheduler: sync point of %s @ %d is before the saved time %d",
				sps.Owner, sps.Time, state.Now,
			)
		}

		if sps.Seq >= state.NextSeq {
			return fmt.Errorf(
				"scheduler: sync point of %s has sequence %d beyond %d",
				sps.Owner, sps.Seq, state.NextSeq,
			)
		}

		queue = append(queue, SyncPoint{
			Time:     sps.Time,
			Owner:    owner,
			UserData: sps.UserData,
			seq:      sps.Seq,
		})
	}

	heap.Init(&queue)

	s.now = state.Now
	s.nextSeq = state.NextSeq
	s.queue = queue

	return nil
}

// MapResolver resolves names from a map of owners.
func MapResolver(owners map[string]Schedulable) Resolver {
	return func(name string) (Schedulable, bool) {
		o, ok := owners[name]
		return o, ok
	}
}
