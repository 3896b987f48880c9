package scheduler

import (
	"github.com/pion/logging"
	"github.com/sarchlab/emucore/hooking"
)

// SyncPointLogger is a hook that traces every sync point as it fires.
type SyncPointLogger struct {
	logger logging.LeveledLogger
}

// NewSyncPointLogger returns a SyncPointLogger that writes to logger.
func NewSyncPointLogger(logger logging.LeveledLogger) *SyncPointLogger {
	return &SyncPointLogger{logger: logger}
}

// Func writes the sync point information into the logger.
func (h *SyncPointLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeSyncPoint {
		return
	}

	sp, ok := ctx.Item.(SyncPoint)
	if !ok {
		return
	}

	h.logger.Tracef("%d, %s, user data %d", sp.Time, sp.Owner.Name(), sp.UserData)
}
