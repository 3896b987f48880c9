package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sarchlab/emucore/machine"
	"github.com/sarchlab/emucore/replaylog"
	"github.com/sarchlab/emucore/statechange"
)

var replayCmd = &cobra.Command{
	Use:   "replay <db>",
	Short: "Replay a recorded log on a fresh demo machine.",
	Long: `replay feeds the records of a replay log to a fresh demo machine ` +
		`and runs it until the end of the log. The printed digest equals ` +
		`the one printed by the recording.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := replaylog.Load(args[0])
	if err != nil {
		return err
	}

	if !log.Finished() {
		return fmt.Errorf("%s was not closed, it cannot be replayed to the end",
			args[0])
	}

	c.StopAt = log.Records[log.Len()-1].Time

	lf := loggerFactory(c)
	m := machine.MakeBuilder().WithConfig(c).WithLoggerFactory(lf).Build()

	if err := m.Replay(log); err != nil {
		return err
	}

	mon, err := startMonitor(c, m.Reactor(), lf)
	if err != nil {
		return err
	}
	defer stopMonitor(mon)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := m.Run(ctx); err != nil {
		return err
	}

	if m.Reactor().StateChanges().IsReplaying() {
		return errors.New("replay did not reach the end of the log")
	}

	return report(cmd, m, fmt.Sprintf("replayed %d records from %s",
		countChanges(log), args[0]))
}

// countChanges counts the records that are not the end marker.
func countChanges(log *statechange.Log) int {
	n := log.Len()
	if log.Finished() {
		n--
	}

	return n
}
