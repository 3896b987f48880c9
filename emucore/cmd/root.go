// Package cmd provides the command-line interface of emucore.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/pion/logging"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/logs"
	"github.com/sarchlab/emucore/reactor"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "emucore",
	Short: "emucore runs a deterministic demo machine.",
	Long: `emucore runs a demo machine on a deterministic emulation core. ` +
		`It can record a run driven by synthetic host input into a replay ` +
		`log, replay such a log, and print the records of a log. ` +
		`Settings come from EMUCORE_* environment variables, optional .env ` +
		`files, and flags, in increasing order of precedence.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringSlice("env-file", nil, "read EMUCORE_* settings from these files")
	f.String("log-level", "", "log level: disable, error, warn, info, debug, trace")
	f.Duration("slice", 0, "virtual time between two event deliveries")
	f.Duration("pace", 0, "host time to wait after every slice")
	f.Int("monitor-port", 0, "serve the monitor on this port, 0 for any port")
	f.Bool("monitor", false, "serve the monitor")
	f.Bool("open-browser", false, "open the monitor in a browser")
}

// loadConfig reads the configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (reactor.Config, error) {
	f := cmd.Flags()

	envFiles, _ := f.GetStringSlice("env-file")

	c, err := reactor.LoadConfig(envFiles...)
	if err != nil {
		return c, err
	}

	if f.Changed("log-level") {
		c.LogLevel, _ = f.GetString("log-level")
		if _, err := logs.ParseLevel(c.LogLevel); err != nil {
			return c, err
		}
	}

	if f.Changed("slice") {
		d, _ := f.GetDuration("slice")
		if d <= 0 {
			return c, fmt.Errorf("slice must be positive")
		}

		c.Slice = emutime.DurationFromSeconds(d.Seconds())
	}

	if f.Changed("pace") {
		c.Pace, _ = f.GetDuration("pace")
	}

	if f.Changed("monitor-port") {
		c.MonitorPort, _ = f.GetInt("monitor-port")
	} else if on, _ := f.GetBool("monitor"); on && c.MonitorPort < 0 {
		c.MonitorPort = 0
	}

	if f.Changed("open-browser") {
		c.OpenBrowser, _ = f.GetBool("open-browser")
	}

	return c, nil
}

func loggerFactory(c reactor.Config) logging.LoggerFactory {
	level, err := logs.ParseLevel(c.LogLevel)
	if err != nil {
		level = logging.LogLevelWarn
	}

	return logs.NewFactory(level, os.Stderr, nil)
}

// virtualTime converts a host-style duration flag into a point on the
// virtual timeline.
func virtualTime(d time.Duration) emutime.EmuTime {
	if d <= 0 {
		return emutime.Infinity
	}

	return emutime.Zero.Add(emutime.DurationFromSeconds(d.Seconds()))
}
