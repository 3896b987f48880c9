package reactor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/logs"
)

// Environment variables read by LoadConfig.
const (
	EnvSlice       = "EMUCORE_SLICE"
	EnvIdleSleep   = "EMUCORE_IDLE_SLEEP"
	EnvPace        = "EMUCORE_PACE"
	EnvStopAt      = "EMUCORE_STOP_AT"
	EnvLogLevel    = "EMUCORE_LOG_LEVEL"
	EnvMonitorPort = "EMUCORE_MONITOR_PORT"
	EnvOpenBrowser = "EMUCORE_OPEN_BROWSER"
	EnvReplayDB    = "EMUCORE_REPLAY_DB"
	EnvTakeControl = "EMUCORE_TAKE_CONTROL"
)

// Config controls the main loop and the outer layers of an emulator.
type Config struct {
	// Slice is how far virtual time advances between two event deliveries.
	Slice emutime.EmuDuration

	// IdleSleep is how long the loop waits for events while paused.
	IdleSleep time.Duration

	// Pace is host time spent waiting after every slice. Zero runs as fast as
	// possible.
	Pace time.Duration

	// StopAt ends the run once virtual time reaches it.
	StopAt emutime.EmuTime

	// LogLevel is a level name understood by logs.ParseLevel.
	LogLevel string

	// MonitorPort is the port of the HTTP monitor. Zero picks a free port,
	// a negative value disables the monitor.
	MonitorPort int
	OpenBrowser bool

	// ReplayDB is the SQLite file the replay log is written to. Empty picks
	// a unique name.
	ReplayDB string

	// TakeControlOnInput lets live input end a replay.
	TakeControlOnInput bool
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Slice:       emutime.DurationFromSeconds(0.001),
		IdleSleep:   10 * time.Millisecond,
		StopAt:      emutime.Infinity,
		LogLevel:    "warn",
		MonitorPort: -1,
	}
}

// LoadConfig starts from DefaultConfig and applies the EMUCORE_* variables.
// Values from the process environment win over values from files, which are
// read with godotenv in the given order. Missing files are an error.
func LoadConfig(files ...string) (Config, error) {
	fileVars := map[string]string{}

	if len(files) > 0 {
		vars, err := godotenv.Read(files...)
		if err != nil {
			return Config{}, fmt.Errorf("reactor: reading env files: %w", err)
		}

		fileVars = vars
	}

	return configFrom(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}

		v, ok := fileVars[key]

		return v, ok
	})
}

func configFrom(lookup func(string) (string, bool)) (Config, error) {
	c := DefaultConfig()

	var err error

	get := func(key string, parse func(string) error) {
		v, ok := lookup(key)
		if !ok || err != nil {
			return
		}

		v = strings.TrimSpace(v)
		if v == "" {
			return
		}

		if perr := parse(v); perr != nil {
			err = fmt.Errorf("reactor: invalid %s=%q: %w", key, v, perr)
		}
	}

	get(EnvSlice, func(v string) error {
		d, perr := virtualDuration(v)
		if perr != nil {
			return perr
		}

		if d == 0 {
			return fmt.Errorf("slice must be positive")
		}

		c.Slice = d

		return nil
	})
	get(EnvIdleSleep, func(v string) error {
		d, perr := time.ParseDuration(v)
		c.IdleSleep = d

		return perr
	})
	get(EnvPace, func(v string) error {
		d, perr := time.ParseDuration(v)
		c.Pace = d

		return perr
	})
	get(EnvStopAt, func(v string) error {
		if strings.EqualFold(v, "inf") {
			c.StopAt = emutime.Infinity
			return nil
		}

		d, perr := virtualDuration(v)
		c.StopAt = emutime.Zero.Add(d)

		return perr
	})
	get(EnvLogLevel, func(v string) error {
		if _, perr := logs.ParseLevel(v); perr != nil {
			return perr
		}

		c.LogLevel = v

		return nil
	})
	get(EnvMonitorPort, func(v string) error {
		p, perr := strconv.Atoi(v)
		c.MonitorPort = p

		return perr
	})
	get(EnvOpenBrowser, func(v string) error {
		b, perr := strconv.ParseBool(v)
		c.OpenBrowser = b

		return perr
	})
	get(EnvReplayDB, func(v string) error {
		c.ReplayDB = v
		return nil
	})
	get(EnvTakeControl, func(v string) error {
		b, perr := strconv.ParseBool(v)
		c.TakeControlOnInput = b

		return perr
	})

	if err != nil {
		return Config{}, err
	}

	return c, nil
}

// virtualDuration parses a Go duration string such as "20ms" as an amount of
// virtual time.
func virtualDuration(v string) (emutime.EmuDuration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}

	if d < 0 {
		return 0, fmt.Errorf("negative duration")
	}

	return emutime.DurationFromSeconds(d.Seconds()), nil
}
