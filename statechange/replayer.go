package statechange

import (
	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/naming"
)

const replayerName = "StateChangeReplayer"

type replayer struct {
	d        *Distributor
	source   *Log
	next     int
	position emutime.EmuTime
}

func (r *replayer) Name() string {
	return replayerName
}

// ExecuteUntil applies every record due at t and schedules itself for the
// next one.
//
// A live record made at t comes after every sync point at t, so the replayer
// lets those fire first.
func (r *replayer) ExecuteUntil(t emutime.EmuTime, _ int) {
	if r.d.scheduler.Next() == t {
		r.d.scheduler.Schedule(r, t, 0)
		return
	}

	records := r.source.Records

	for r.next < len(records) {
		rec := records[r.next]
		if rec.Time > t {
			r.d.scheduler.Schedule(r, rec.Time, 0)
			return
		}

		if rec.Time < r.position {
			panic(&LogError{Index: r.next, Time: rec.Time, Position: r.position})
		}

		r.next++
		r.position = rec.Time

		if _, end := rec.Payload.(EndOfLog); end {
			r.d.StopReplay(t)
			return
		}

		r.d.distribute(rec, true)

		if r.d.replay != r {
			return
		}
	}

	r.d.StopReplay(t)
}

var _ naming.Named = (*replayer)(nil)
