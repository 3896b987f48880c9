// Package scheduler orders and fires time-stamped callbacks, called sync
// points, on the virtual timeline.
//
// The scheduler is not safe for concurrent use. It belongs to the execution
// goroutine, the only goroutine that is allowed to advance virtual time.
package scheduler

import (
	"container/heap"
	"fmt"

	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/hooking"
	"github.com/sarchlab/emucore/naming"
)

// A Schedulable receives callbacks from the Scheduler. Any time-driven chip
// model implements it.
type Schedulable interface {
	naming.Named

	// ExecuteUntil is called exactly once for every sync point the
	// Schedulable set, at the exact time that was requested.
	ExecuteUntil(time emutime.EmuTime, userData int)
}

// HookPosBeforeSyncPoint is the hook position right before a sync point fires.
var HookPosBeforeSyncPoint = &hooking.HookPos{Name: "BeforeSyncPoint"}

// HookPosAfterSyncPoint is the hook position right after a sync point fires.
var HookPosAfterSyncPoint = &hooking.HookPos{Name: "AfterSyncPoint"}

// A SyncPoint is a pending callback. The scheduler does not own the owner; an
// owner must remove its sync points before it is dropped.
type SyncPoint struct {
	Time     emutime.EmuTime
	Owner    Schedulable
	UserData int

	// seq breaks ties between sync points at the same time, in the order
	// they were scheduled.
	seq uint64
}

// Scheduler keeps the pending sync points of a machine.
type Scheduler struct {
	*hooking.HookableBase

	now     emutime.EmuTime
	queue   syncPointHeap
	nextSeq uint64
	firing  bool
}

// NewScheduler creates a Scheduler whose current time is zero.
func NewScheduler() *Scheduler {
	return &Scheduler{
		HookableBase: hooking.NewHookableBase(),
	}
}

// CurrentTime returns the time of the sync point being fired, or the limit of
// the last Advance when no sync point is firing.
func (s *Scheduler) CurrentTime() emutime.EmuTime {
	return s.now
}

// Schedule asks for owner.ExecuteUntil(t, userData) to be called at t. The
// time must not be earlier than the current time.
func (s *Scheduler) Schedule(
	owner Schedulable,
	t emutime.EmuTime,
	userData int,
) {
	if t < s.now {
		panic(fmt.Sprintf(
			"scheduler: cannot schedule %s in the past, sync point @ %d, now %d",
			owner.Name(), t, s.now,
		))
	}

	heap.Push(&s.queue, SyncPoint{
		Time:     t,
		Owner:    owner,
		UserData: userData,
		seq:      s.nextSeq,
	})
	s.nextSeq++
}

// RemoveSyncPoint cancels the earliest pending sync point of owner carrying
// userData. It returns false if there is none.
func (s *Scheduler) RemoveSyncPoint(owner Schedulable, userData int) bool {
	found := -1

	for i, sp := range s.queue {
		if sp.Owner != owner || sp.UserData != userData {
			continue
		}

		if found < 0 || s.queue.Less(i, found) {
			found = i
		}
	}

	if found < 0 {
		return false
	}

	heap.Remove(&s.queue, found)

	return true
}

// RemoveSyncPoints cancels all pending sync points of owner and returns how
// many there were.
func (s *Scheduler) RemoveSyncPoints(owner Schedulable) int {
	kept := s.queue[:0]
	removed := 0

	for _, sp := range s.queue {
		if sp.Owner == owner {
			removed++
			continue
		}

		kept = append(kept, sp)
	}

	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = SyncPoint{}
	}

	s.queue = kept
	heap.Init(&s.queue)

	return removed
}

// PendingSyncPoint reports whether owner has a sync point carrying userData.
func (s *Scheduler) PendingSyncPoint(owner Schedulable, userData int) bool {
	for _, sp := range s.queue {
		if sp.Owner == owner && sp.UserData == userData {
			return true
		}
	}

	return false
}

// SyncPoints returns the pending sync points of owner in firing order.
func (s *Scheduler) SyncPoints(owner Schedulable) []SyncPoint {
	var list []SyncPoint

	for _, sp := range s.sorted() {
		if sp.Owner == owner {
			list = append(list, sp)
		}
	}

	return list
}

// Len returns the number of pending sync points.
func (s *Scheduler) Len() int {
	return len(s.queue)
}

// Next returns the time of the earliest pending sync point, or
// emutime.Infinity if there is none. The execution loop may run emulated code
// up to this time without consulting the scheduler.
func (s *Scheduler) Next() emutime.EmuTime {
	if len(s.queue) == 0 {
		return emutime.Infinity
	}

	return s.queue[0].Time
}

// Advance fires, in order, every sync point whose time is not later than
// limit, including sync points that are scheduled while firing. Afterwards the
// current time is limit.
func (s *Scheduler) Advance(limit emutime.EmuTime) {
	if limit < s.now {
		panic(fmt.Sprintf(
			"scheduler: cannot advance to the past, limit %d, now %d",
			limit, s.now,
		))
	}

	if s.firing {
		panic("scheduler: Advance called from within a sync point")
	}

	s.firing = true
	defer func() { s.firing = false }()

	for len(s.queue) > 0 && s.queue[0].Time <= limit {
		sp := heap.Pop(&s.queue).(SyncPoint)
		s.now = sp.Time

		hookCtx := hooking.HookCtx{
			Domain: s,
			Pos:    HookPosBeforeSyncPoint,
			Time:   sp.Time,
			Item:   sp,
		}
		s.InvokeHook(hookCtx)

		sp.Owner.ExecuteUntil(sp.Time, sp.UserData)

		hookCtx.Pos = HookPosAfterSyncPoint
		s.InvokeHook(hookCtx)
	}

	s.now = limit
}
