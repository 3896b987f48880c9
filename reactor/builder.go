package reactor

import (
	"fmt"
	"os"

	"github.com/pion/logging"
	"github.com/sarchlab/emucore/event"
	"github.com/sarchlab/emucore/logs"
	"github.com/sarchlab/emucore/scheduler"
	"github.com/sarchlab/emucore/statechange"
)

// Builder can be used to build a Reactor.
type Builder struct {
	config        Config
	loggerFactory logging.LoggerFactory
}

// MakeBuilder creates a new builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultConfig(),
	}
}

// WithConfig sets the configuration of the reactor.
func (b Builder) WithConfig(c Config) Builder {
	b.config = c
	return b
}

// WithLoggerFactory sets where the loggers of the reactor and of everything
// it owns come from. By default, a factory writing to stderr at the
// configured level is used.
func (b Builder) WithLoggerFactory(f logging.LoggerFactory) Builder {
	b.loggerFactory = f
	return b
}

func (b Builder) parametersMustBeValid() logging.LogLevel {
	if b.config.Slice == 0 {
		panic("reactor: slice must be positive")
	}

	level, err := logs.ParseLevel(b.config.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("reactor: %v", err))
	}

	return level
}

// Build builds the reactor.
func (b Builder) Build() *Reactor {
	level := b.parametersMustBeValid()

	lf := b.loggerFactory
	if lf == nil {
		lf = logs.NewFactory(level, os.Stderr, nil)
	}

	s := scheduler.NewScheduler()
	if level == logging.LogLevelTrace {
		s.AcceptHook(scheduler.NewSyncPointLogger(lf.NewLogger(logs.ScopeScheduler)))
	}

	changes := statechange.NewDistributor(s, lf)
	changes.SetTakeControlOnInput(b.config.TakeControlOnInput)

	r := &Reactor{
		config:        b.config,
		loggerFactory: lf,
		scheduler:     s,
		events:        event.NewDistributor(lf),
		changes:       changes,
		log:           lf.NewLogger(logs.ScopeReactor),
	}

	r.events.RegisterEventListener(event.TypePause, r, event.Other)
	r.events.RegisterEventListener(event.TypeQuit, r, event.Other)
	r.publish(false)

	return r
}
