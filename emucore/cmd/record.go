package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/emucore/event"
	"github.com/sarchlab/emucore/machine"
	"github.com/sarchlab/emucore/monitoring"
	"github.com/sarchlab/emucore/replaylog"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Run the demo machine with synthetic input and record it.",
	Long: `record runs the demo machine for a virtual duration while a ` +
		`goroutine plays random host input into it, the way a user would. ` +
		`The state changes are written to an SQLite replay log, and the ` +
		`digest of the final machine state is printed.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	f := recordCmd.Flags()
	f.Duration("duration", 5*time.Second, "virtual time to run")
	f.Int64("seed", 1, "seed of the synthetic input")
	f.Int("events", 200, "number of synthetic host events")
	f.Duration("max-gap", 20*time.Millisecond, "longest host time between two events")
	f.String("db", "", "replay log file, a unique name by default")
}

func runRecord(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	duration, _ := f.GetDuration("duration")
	seed, _ := f.GetInt64("seed")
	numEvents, _ := f.GetInt("events")
	maxGap, _ := f.GetDuration("max-gap")

	c.StopAt = virtualTime(duration)
	if f.Changed("db") {
		c.ReplayDB, _ = f.GetString("db")
	}

	if !f.Changed("pace") && c.Pace == 0 {
		// Without pacing the run would be over before any input arrives.
		c.Pace = time.Millisecond
	}

	lf := loggerFactory(c)
	m := machine.MakeBuilder().WithConfig(c).WithLoggerFactory(lf).Build()

	w := replaylog.NewSQLiteWriter(c.ReplayDB, lf)
	if err := w.Init(); err != nil {
		return err
	}
	m.Record(w)

	mon, err := startMonitor(c, m.Reactor(), lf)
	if err != nil {
		return err
	}
	defer stopMonitor(mon)

	var bar *monitoring.ProgressBar
	if mon != nil {
		bar = mon.CreateProgressBar("synthetic input", uint64(numEvents))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	inputCtx, cancelInput := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		feedInput(inputCtx, m.Reactor().Events(), inputGen{
			rng:    rand.New(rand.NewSource(seed)),
			maxGap: maxGap,
		}, numEvents, bar)
	}()

	err = m.Run(ctx)
	cancelInput()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	m.EndRecording()

	if err := w.Close(); err != nil {
		return err
	}

	return report(cmd, m, fmt.Sprintf("recorded %d records to %s",
		m.Log().Len(), w.Path()))
}

func report(cmd *cobra.Command, m *machine.Machine, what string) error {
	digest, err := m.Digest()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, what)
	fmt.Fprintf(out, "time %s\n", m.Reactor().Scheduler().CurrentTime())
	fmt.Fprintf(out, "timer ticks %d\n", m.Timer().Ticks())
	fmt.Fprintf(out, "digest %016x\n", digest)

	return nil
}

// inputGen makes up host events.
type inputGen struct {
	rng    *rand.Rand
	maxGap time.Duration
}

func (g inputGen) gap() time.Duration {
	if g.maxGap <= 0 {
		return 0
	}

	return time.Duration(g.rng.Int63n(int64(g.maxGap))) + 1
}

func (g inputGen) event() event.Event {
	joystick := g.rng.Intn(machine.NumJoysticks)

	switch g.rng.Intn(5) {
	case 0:
		return event.JoystickAxisEvent{
			Joystick: joystick,
			Axis:     g.rng.Intn(2),
			Value:    g.rng.Intn(65536) - 32768,
		}
	case 1:
		return event.JoystickButtonEvent{
			Joystick: joystick,
			Button:   g.rng.Intn(2),
			Down:     g.rng.Intn(2) == 0,
		}
	case 2:
		return event.MouseMotionEvent{
			X: g.rng.Intn(81) - 40,
			Y: g.rng.Intn(81) - 40,
		}
	case 3:
		return event.MouseButtonEvent{
			Button: g.rng.Intn(3),
			Down:   g.rng.Intn(2) == 0,
		}
	default:
		keys := event.Keys()

		return event.KeyEvent{
			Key:  keys[g.rng.Intn(len(keys))],
			Down: g.rng.Intn(2) == 0,
		}
	}
}

// feedInput distributes n events from another goroutine than the one running
// the machine, with random host time in between.
func feedInput(
	ctx context.Context,
	events *event.Distributor,
	g inputGen,
	n int,
	bar *monitoring.ProgressBar,
) {
	for i := 0; i < n; i++ {
		timer := time.NewTimer(g.gap())

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		events.DistributeEvent(g.event())

		if bar != nil {
			bar.IncrementFinished(1)
		}
	}
}
