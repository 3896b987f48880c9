package statechange

import (
	"errors"
	"fmt"

	"github.com/sarchlab/emucore/emutime"
)

// ErrIncompatibleLog is returned for a log that cannot be replayed on the
// current machine.
var ErrIncompatibleLog = errors.New("statechange: incompatible replay log")

// ErrUnknownKind is returned when decoding a record of an unknown kind.
var ErrUnknownKind = errors.New("statechange: unknown payload kind")

// ErrReplaying is returned by operations that are not allowed during a
// replay.
var ErrReplaying = errors.New("statechange: replay in progress")

// A LogError reports a replay log that turned out to be corrupt while it was
// being replayed. The distributor panics with a *LogError, since continuing
// would break the recorded history.
type LogError struct {
	Index    int
	Time     emutime.EmuTime
	Position emutime.EmuTime
}

func (e *LogError) Error() string {
	return fmt.Sprintf(
		"statechange: replay log record %d at %s is before the replay position %s",
		e.Index, e.Time, e.Position)
}

// Unwrap makes a LogError match ErrIncompatibleLog.
func (e *LogError) Unwrap() error {
	return ErrIncompatibleLog
}
