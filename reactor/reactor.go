// Package reactor is the application context of an emulator. A Reactor owns
// the scheduler and both distributors of one machine and runs the main loop
// on the execution goroutine.
package reactor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/event"
	"github.com/sarchlab/emucore/scheduler"
	"github.com/sarchlab/emucore/statechange"
)

// ErrRunning is returned when Run is called while the loop already runs.
var ErrRunning = errors.New("reactor: already running")

// StopHandler is notified when the main loop returns.
type StopHandler interface {
	Handle(now emutime.EmuTime)
}

// StopHandlerFunc adapts a function to the StopHandler interface.
type StopHandlerFunc func(now emutime.EmuTime)

// Handle calls f(now).
func (f StopHandlerFunc) Handle(now emutime.EmuTime) {
	f(now)
}

// Status is a snapshot of the loop published for other goroutines.
type Status struct {
	Now               emutime.EmuTime `json:"now"`
	Seconds           float64         `json:"seconds"`
	Running           bool            `json:"running"`
	Paused            bool            `json:"paused"`
	Replaying         bool            `json:"replaying"`
	ReplayDone        int             `json:"replay_done"`
	ReplayTotal       int             `json:"replay_total"`
	LogLength         int             `json:"log_length"`
	PendingSyncPoints int             `json:"pending_sync_points"`
	PendingEvents     int             `json:"pending_events"`
}

// Reactor runs one machine.
type Reactor struct {
	config        Config
	loggerFactory logging.LoggerFactory

	scheduler *scheduler.Scheduler
	events    *event.Distributor
	changes   *statechange.Distributor

	running atomic.Bool

	// Owned by the execution goroutine.
	paused       bool
	quit         bool
	stopHandlers []StopHandler

	statusLock sync.RWMutex
	status     Status

	log logging.LeveledLogger
}

// Config returns the configuration the reactor was built with.
func (r *Reactor) Config() Config {
	return r.config
}

// LoggerFactory returns the factory devices should create their loggers
// from.
func (r *Reactor) LoggerFactory() logging.LoggerFactory {
	return r.loggerFactory
}

// Scheduler returns the scheduler of the machine.
func (r *Reactor) Scheduler() *scheduler.Scheduler {
	return r.scheduler
}

// Events returns the event distributor.
func (r *Reactor) Events() *event.Distributor {
	return r.events
}

// StateChanges returns the state-change distributor.
func (r *Reactor) StateChanges() *statechange.Distributor {
	return r.changes
}

// RegisterStopHandler adds a handler called each time Run returns.
func (r *Reactor) RegisterStopHandler(h StopHandler) {
	r.stopHandlers = append(r.stopHandlers, h)
}

// Pause asks the loop to stop advancing virtual time. It may be called from
// any goroutine.
func (r *Reactor) Pause() {
	r.events.DistributeEvent(event.PauseEvent{Paused: true})
}

// Continue undoes Pause. It may be called from any goroutine.
func (r *Reactor) Continue() {
	r.events.DistributeEvent(event.PauseEvent{Paused: false})
}

// Quit asks the loop to return. It may be called from any goroutine.
func (r *Reactor) Quit() {
	r.events.DistributeEvent(event.QuitEvent{})
}

// SignalEvent handles pause and quit requests.
func (r *Reactor) SignalEvent(evt event.Event) (event.Priority, error) {
	switch e := evt.(type) {
	case event.PauseEvent:
		if r.paused != e.Paused {
			r.log.Infof("paused=%t at %s", e.Paused, r.scheduler.CurrentTime())
		}

		r.paused = e.Paused
	case event.QuitEvent:
		r.log.Infof("quit requested at %s", r.scheduler.CurrentTime())
		r.quit = true
	}

	return event.NoBlock, nil
}

// Run executes the main loop on the calling goroutine, which becomes the
// execution goroutine. Every iteration delivers the pending events, then
// advances virtual time by one slice unless paused. Run returns nil on a quit
// request or when StopAt is reached, and the context's error when ctx ends.
func (r *Reactor) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer r.running.Store(false)

	r.quit = false
	defer r.finish()

	for {
		r.events.DeliverEvents()
		r.publish(true)

		if r.quit {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		now := r.scheduler.CurrentTime()
		if now >= r.config.StopAt {
			return nil
		}

		if r.paused {
			r.wait(ctx, r.config.IdleSleep)
			continue
		}

		r.scheduler.Advance(r.sliceEnd(now))

		if r.config.Pace > 0 {
			r.wait(ctx, r.config.Pace)
		}
	}
}

func (r *Reactor) sliceEnd(now emutime.EmuTime) emutime.EmuTime {
	if r.config.StopAt.Sub(now) <= r.config.Slice {
		return r.config.StopAt
	}

	return now.Add(r.config.Slice)
}

// wait blocks for at most d host time, returning early when events arrive or
// ctx ends.
func (r *Reactor) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-r.events.Wakeup():
	case <-timer.C:
	}
}

func (r *Reactor) finish() {
	now := r.scheduler.CurrentTime()
	r.log.Debugf("loop stopped at %s", now)

	r.publish(false)

	for _, h := range r.stopHandlers {
		h.Handle(now)
	}
}

func (r *Reactor) publish(running bool) {
	done, total := r.changes.ReplayProgress()
	now := r.scheduler.CurrentTime()

	s := Status{
		Now:               now,
		Seconds:           now.Seconds(),
		Running:           running,
		Paused:            r.paused,
		Replaying:         r.changes.IsReplaying(),
		ReplayDone:        done,
		ReplayTotal:       total,
		LogLength:         r.changes.Log().Len(),
		PendingSyncPoints: r.scheduler.Len(),
		PendingEvents:     r.events.Pending(),
	}

	r.statusLock.Lock()
	r.status = s
	r.statusLock.Unlock()
}

// Status returns the last published snapshot. It is safe for concurrent
// use.
func (r *Reactor) Status() Status {
	r.statusLock.RLock()
	defer r.statusLock.RUnlock()

	return r.status
}

// Now returns the virtual time of the last published snapshot.
func (r *Reactor) Now() emutime.EmuTime {
	return r.Status().Now
}
