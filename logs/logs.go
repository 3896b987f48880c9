// Package logs builds the scoped, leveled loggers used across the emulator.
package logs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pion/logging"
)

// Scopes used by the core packages.
const (
	ScopeScheduler   = "scheduler"
	ScopeEvent       = "event"
	ScopeStateChange = "statechange"
	ScopeReactor     = "reactor"
	ScopeReplayLog   = "replaylog"
	ScopeMonitor     = "monitor"
	ScopeInput       = "input"
)

var levelNames = map[string]logging.LogLevel{
	"disable": logging.LogLevelDisabled,
	"error":   logging.LogLevelError,
	"warn":    logging.LogLevelWarn,
	"info":    logging.LogLevelInfo,
	"debug":   logging.LogLevelDebug,
	"trace":   logging.LogLevelTrace,
}

// ParseLevel converts a level name such as "info" to a pion log level.
func ParseLevel(name string) (logging.LogLevel, error) {
	level, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return logging.LogLevelDisabled, fmt.Errorf("logs: unknown log level %q", name)
	}

	return level, nil
}

// NewFactory creates a logger factory writing to w at the given default
// level. scopeLevels overrides the level of individual scopes and may be nil.
func NewFactory(
	level logging.LogLevel,
	w io.Writer,
	scopeLevels map[string]logging.LogLevel,
) *logging.DefaultLoggerFactory {
	if w == nil {
		w = os.Stderr
	}

	f := &logging.DefaultLoggerFactory{
		Writer:          w,
		DefaultLogLevel: level,
		ScopeLevels:     make(map[string]logging.LogLevel),
	}

	for scope, l := range scopeLevels {
		f.ScopeLevels[scope] = l
	}

	return f
}

// Discard returns a factory whose loggers never write anything.
func Discard() logging.LoggerFactory {
	return NewFactory(logging.LogLevelDisabled, io.Discard, nil)
}

// OrDiscard returns f, or a discarding factory when f is nil.
func OrDiscard(f logging.LoggerFactory) logging.LoggerFactory {
	if f == nil {
		return Discard()
	}

	return f
}
