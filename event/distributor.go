package event

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/sarchlab/emucore/hooking"
	"github.com/sarchlab/emucore/logs"
)

// Priority orders the listeners of an event type. Listeners with a lower
// Priority see an event first.
type Priority int

// Listener priorities, in visiting order.
const (
	Other Priority = iota
	Hotkey
	Console
	Machine
)

// NoBlock is returned by a listener that lets the event pass to all
// remaining listeners.
const NoBlock Priority = 0

// blockNone is the block level of an event nobody has blocked yet.
const blockNone = Priority(math.MaxInt)

// A Listener handles events of the types it registered for.
type Listener interface {
	// SignalEvent handles an event. Returning a priority B other than NoBlock
	// hides the event from every later listener whose priority is B or
	// higher. B must be higher than the listener's own priority.
	//
	// An error is logged and reported, then delivery continues as if the
	// listener returned NoBlock.
	SignalEvent(evt Event) (Priority, error)
}

// HookPosDeliverEvent marks an event about to be handed to its listeners.
var HookPosDeliverEvent = &hooking.HookPos{Name: "DeliverEvent"}

// HookPosListenerError marks a listener returning an error. The hook's Item
// is the event and its Detail the error.
var HookPosListenerError = &hooking.HookPos{Name: "EventListenerError"}

type registration struct {
	priority Priority
	listener Listener
}

// Distributor fans host events in from any goroutine and delivers them on
// the execution goroutine.
//
// DistributeEvent, RegisterEventListener, UnregisterEventListener and
// IsRegistered are safe for concurrent use. DeliverEvents must only be called
// by the execution goroutine. Hooks must be attached before delivery starts.
type Distributor struct {
	*hooking.HookableBase

	mu        sync.Mutex
	listeners [NumTypes][]registration
	pending   []Event

	wake       chan struct{}
	delivering atomic.Bool

	log logging.LeveledLogger
}

// NewDistributor creates a Distributor. loggerFactory may be nil.
func NewDistributor(loggerFactory logging.LoggerFactory) *Distributor {
	return &Distributor{
		HookableBase: hooking.NewHookableBase(),
		wake:         make(chan struct{}, 1),
		log:          logs.OrDiscard(loggerFactory).NewLogger(logs.ScopeEvent),
	}
}

// RegisterEventListener adds a listener for events of type t. The listener
// goes after the already registered listeners of the same priority. A
// listener can only be registered once per type. Listeners are compared by
// identity, so they must be of a comparable type, typically a pointer.
func (d *Distributor) RegisterEventListener(
	t Type,
	listener Listener,
	priority Priority,
) {
	mustBeValidType(t)

	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.listeners[t]
	for _, r := range regs {
		if r.listener == listener {
			panic(fmt.Sprintf("event: listener registered twice for %s", t))
		}
	}

	pos, _ := slices.BinarySearchFunc(regs, priority,
		func(r registration, p Priority) int {
			if r.priority <= p {
				return -1
			}

			return 1
		})

	d.listeners[t] = slices.Insert(regs, pos,
		registration{priority: priority, listener: listener})
}

// UnregisterEventListener removes a listener for events of type t. The
// listener must be registered.
func (d *Distributor) UnregisterEventListener(t Type, listener Listener) {
	mustBeValidType(t)

	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.indexOf(t, listener)
	if i < 0 {
		panic(fmt.Sprintf("event: unregistering unknown listener for %s", t))
	}

	d.listeners[t] = slices.Delete(d.listeners[t], i, i+1)
}

// IsRegistered reports whether listener is registered for events of type t.
func (d *Distributor) IsRegistered(t Type, listener Listener) bool {
	mustBeValidType(t)

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.indexOf(t, listener) >= 0
}

func (d *Distributor) indexOf(t Type, listener Listener) int {
	return slices.IndexFunc(d.listeners[t], func(r registration) bool {
		return r.listener == listener
	})
}

// DistributeEvent queues an event for delivery and wakes the execution
// goroutine. An event nobody listens to is dropped. DistributeEvent never
// waits for the delivery and may be called from any goroutine, including
// from within a listener.
func (d *Distributor) DistributeEvent(evt Event) {
	if evt == nil {
		panic("event: distributing a nil event")
	}

	t := evt.Type()
	mustBeValidType(t)

	d.mu.Lock()
	if len(d.listeners[t]) == 0 {
		d.mu.Unlock()
		return
	}

	d.pending = append(d.pending, evt)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of events waiting for delivery.
func (d *Distributor) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pending)
}

// DeliverEvents hands every pending event to its listeners. Events that are
// distributed while delivering, by listeners or by other goroutines, are
// delivered before DeliverEvents returns.
func (d *Distributor) DeliverEvents() {
	if !d.delivering.CompareAndSwap(false, true) {
		panic("event: DeliverEvents is not re-entrant")
	}
	defer d.delivering.Store(false)

	for {
		d.mu.Lock()
		batch := d.pending
		d.pending = nil
		d.mu.Unlock()

		if len(batch) == 0 {
			return
		}

		for _, evt := range batch {
			d.deliver(evt)
		}
	}
}

func (d *Distributor) deliver(evt Event) {
	t := evt.Type()

	d.mu.Lock()
	regs := slices.Clone(d.listeners[t])
	d.mu.Unlock()

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosDeliverEvent,
		Item:   evt,
	})

	blockLevel := blockNone
	for _, r := range regs {
		// An earlier listener may have unregistered this one.
		if !d.IsRegistered(t, r.listener) {
			continue
		}

		if r.priority >= blockLevel {
			break
		}

		block, err := r.listener.SignalEvent(evt)
		if err != nil {
			d.reportError(evt, err)
			continue
		}

		if block == NoBlock {
			continue
		}

		if block <= r.priority {
			panic(fmt.Sprintf(
				"event: listener with priority %d blocked %s at level %d",
				r.priority, t, block,
			))
		}

		blockLevel = min(blockLevel, block)
	}
}

func (d *Distributor) reportError(evt Event, err error) {
	d.log.Errorf("listener failed on %s: %v", evt.Type(), err)

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosListenerError,
		Item:   evt,
		Detail: err,
	})
}

// Sleep waits until an event is distributed or until dur passes, whichever
// comes first. It reports whether it was woken by an event.
func (d *Distributor) Sleep(dur time.Duration) bool {
	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-d.wake:
		return true
	case <-timer.C:
		return false
	}
}

// Wakeup returns the channel that receives a value when events are
// distributed. Several distributions may collapse into one value.
func (d *Distributor) Wakeup() <-chan struct{} {
	return d.wake
}

func mustBeValidType(t Type) {
	if t < 0 || t >= NumTypes {
		panic(fmt.Sprintf("event: invalid event type %d", int(t)))
	}
}
