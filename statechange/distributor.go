package statechange

import (
	"slices"

	"github.com/pion/logging"
	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/hooking"
	"github.com/sarchlab/emucore/logs"
	"github.com/sarchlab/emucore/scheduler"
)

// A Listener owns emulated state that records may change.
type Listener interface {
	// SignalStateChange applies a record. Listeners receive every record and
	// ignore those addressed to other devices. An error is logged and
	// reported, and delivery continues.
	SignalStateChange(r Record) error

	// StopReplay is called when a replay ends at t. The listener brings its
	// emulated state in line with the live host input by distributing a new
	// delta, if there is any difference.
	StopReplay(t emutime.EmuTime)
}

// A Sink receives every record appended to the active log, for example to
// persist it.
type Sink interface {
	Append(r Record) error
}

// HookPosStateChange marks a record about to be applied. The hook's Item is
// the record and its Detail tells whether it is replayed.
var HookPosStateChange = &hooking.HookPos{Name: "StateChange"}

// HookPosListenerError marks a listener or the sink returning an error. The
// hook's Item is the record and its Detail the error.
var HookPosListenerError = &hooking.HookPos{Name: "StateChangeListenerError"}

// HookPosReplayStopped marks the end of a replay.
var HookPosReplayStopped = &hooking.HookPos{Name: "ReplayStopped"}

// Distributor records live state changes and replays recorded ones.
//
// A Distributor is used by the execution goroutine only and is not safe for
// concurrent use.
type Distributor struct {
	*hooking.HookableBase

	scheduler *scheduler.Scheduler
	listeners []Listener
	active    *Log
	sink      Sink
	replay    *replayer

	takeControlOnInput bool

	log logging.LeveledLogger
}

// NewDistributor creates a Distributor in recording mode with an empty log.
// loggerFactory may be nil.
func NewDistributor(
	s *scheduler.Scheduler,
	loggerFactory logging.LoggerFactory,
) *Distributor {
	return &Distributor{
		HookableBase: hooking.NewHookableBase(),
		scheduler:    s,
		active:       NewLog(),
		log:          logs.OrDiscard(loggerFactory).NewLogger(logs.ScopeStateChange),
	}
}

// RegisterListener adds a listener. A listener can only be registered once.
func (d *Distributor) RegisterListener(l Listener) {
	if d.isRegistered(l) {
		panic("statechange: listener registered twice")
	}

	d.listeners = append(d.listeners, l)
}

// UnregisterListener removes a registered listener.
func (d *Distributor) UnregisterListener(l Listener) {
	i := slices.Index(d.listeners, l)
	if i < 0 {
		panic("statechange: unregistering unknown listener")
	}

	d.listeners = slices.Delete(d.listeners, i, i+1)
}

func (d *Distributor) isRegistered(l Listener) bool {
	return slices.Contains(d.listeners, l)
}

// SetSink makes every record appended to the active log also go to s. A nil
// s removes the sink.
func (d *Distributor) SetSink(s Sink) {
	d.sink = s
}

// SetTakeControlOnInput chooses what live input does during a replay. When
// false, the default, live input is ignored. When true, live input stops the
// replay and is then recorded.
func (d *Distributor) SetTakeControlOnInput(take bool) {
	d.takeControlOnInput = take
}

// Log returns the active log, the records applied so far.
func (d *Distributor) Log() *Log {
	return d.active
}

// SetLog replaces the active log, as when restoring a savestate. It fails
// during a replay.
func (d *Distributor) SetLog(l *Log) error {
	if d.IsReplaying() {
		return ErrReplaying
	}

	if l == nil {
		l = NewLog()
	}

	d.active = l

	return nil
}

// IsReplaying reports whether records come from a log rather than from live
// input.
func (d *Distributor) IsReplaying() bool {
	return d.replay != nil
}

// ReplayProgress returns how many records of the log being replayed have been
// applied, and how many it holds. Both are zero when not replaying.
func (d *Distributor) ReplayProgress() (done, total int) {
	if d.replay == nil {
		return 0, 0
	}

	return d.replay.next, d.replay.source.Len()
}

// DistributeNew records a payload created from live input at the current
// virtual time and applies it.
func (d *Distributor) DistributeNew(p Payload) {
	r := Record{Time: d.scheduler.CurrentTime(), Payload: p}

	if d.replay != nil {
		if !d.takeControlOnInput {
			d.log.Debugf("ignoring live %v during replay", p)
			return
		}

		d.StopReplay(r.Time)
	}

	d.distribute(r, false)
}

// EndLog closes the active log at the current time, so that a replay of it
// runs until then. The end marker also goes to the sink. Closing a closed log
// does nothing.
func (d *Distributor) EndLog() {
	if d.active.Finished() {
		return
	}

	d.distribute(Record{Time: d.scheduler.CurrentTime(), Payload: EndOfLog{}}, false)
}

func (d *Distributor) distribute(r Record, replayed bool) {
	d.active.Append(r)

	if d.sink != nil {
		if err := d.sink.Append(r); err != nil {
			d.reportError(r, err)
		}
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosStateChange,
		Time:   r.Time,
		Item:   r,
		Detail: replayed,
	})

	if _, end := r.Payload.(EndOfLog); end {
		return
	}

	for _, l := range slices.Clone(d.listeners) {
		if !d.isRegistered(l) {
			continue
		}

		if err := l.SignalStateChange(r); err != nil {
			d.reportError(r, err)
		}
	}
}

func (d *Distributor) reportError(r Record, err error) {
	d.log.Errorf("state change %v: %v", r, err)

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosListenerError,
		Time:   r.Time,
		Item:   r,
		Detail: err,
	})
}

// StartReplay replays the records of l at their recorded times. The log must
// be in time order and must not start before the current time; otherwise an
// error matching ErrIncompatibleLog is returned. Replayed records are also
// appended to the active log.
func (d *Distributor) StartReplay(l *Log) error {
	if d.replay != nil {
		return ErrReplaying
	}

	now := d.scheduler.CurrentTime()
	if err := l.Validate(now); err != nil {
		return err
	}

	d.replay = &replayer{
		d:        d,
		source:   l,
		position: now,
	}

	first := now
	if l.Len() > 0 {
		first = l.Records[0].Time
	}

	d.scheduler.Schedule(d.replay, first, 0)
	d.log.Infof("replaying %d records from %v", l.Len(), now)

	return nil
}

// StopReplay ends a replay at t and hands control back to live input. Every
// listener gets a chance to catch up with the live input. Calling StopReplay
// when not replaying does nothing.
func (d *Distributor) StopReplay(t emutime.EmuTime) {
	if d.replay == nil {
		return
	}

	done := d.replay.next
	d.scheduler.RemoveSyncPoints(d.replay)
	d.replay = nil

	d.log.Infof("replay stopped at %v after %d records", t, done)
	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosReplayStopped,
		Time:   t,
		Item:   done,
	})

	for _, l := range slices.Clone(d.listeners) {
		if d.isRegistered(l) {
			l.StopReplay(t)
		}
	}
}
