package cmd

import (
	"context"
	"time"

	"github.com/pion/logging"

	"github.com/sarchlab/emucore/monitoring"
	"github.com/sarchlab/emucore/reactor"
)

// startMonitor serves the monitor when the configuration asks for it.
func startMonitor(
	c reactor.Config,
	r *reactor.Reactor,
	lf logging.LoggerFactory,
) (*monitoring.Monitor, error) {
	if c.MonitorPort < 0 {
		return nil, nil
	}

	mon := monitoring.NewMonitor(r, lf).WithPortNumber(c.MonitorPort)
	if _, err := mon.StartServer(c.OpenBrowser); err != nil {
		return nil, err
	}

	return mon, nil
}

func stopMonitor(mon *monitoring.Monitor) {
	if mon == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = mon.StopServer(ctx)
}
