// Package monitoring serves a small HTTP API for watching and steering a
// running emulator from outside.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pion/logging"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/emucore/logs"
	"github.com/sarchlab/emucore/monitoring/web"
	"github.com/sarchlab/emucore/reactor"
)

// A Target is the emulator being monitored. *reactor.Reactor is one.
type Target interface {
	Status() reactor.Status
	Pause()
	Continue()
}

// Monitor can turn an emulator into a server and allows external monitoring
// and controlling of it.
type Monitor struct {
	target     Target
	portNumber int

	profileDuration time.Duration
	streamInterval  time.Duration

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
	replayBar        *ProgressBar

	server    *http.Server
	closing   chan struct{}
	closeOnce sync.Once

	log logging.LeveledLogger
}

// NewMonitor creates a new Monitor. loggerFactory may be nil.
func NewMonitor(target Target, loggerFactory logging.LoggerFactory) *Monitor {
	return &Monitor{
		target:          target,
		profileDuration: time.Second,
		streamInterval:  200 * time.Millisecond,
		closing:         make(chan struct{}),
		log:             logs.OrDiscard(loggerFactory).NewLogger(logs.ScopeMonitor),
	}
}

// WithPortNumber sets the port number of the monitor. Zero, or a port below
// 1000, picks a free port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.log.Warnf("port %d is not allowed for the monitor, using a random port",
			portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.removeBar(pb)
}

func (m *Monitor) removeBar(pb *ProgressBar) {
	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router serving the API and the web pages.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/api/continue", m.resume).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/status/{field}", m.statusField)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/stream", m.stream)
	r.PathPrefix("/").Handler(http.FileServer(web.Assets(m.log))).
		Methods(http.MethodGet, http.MethodHead)

	return r
}

// StartServer starts the monitor as a web server and returns its address.
// When openBrowser is set, the monitor page is opened in the default
// browser.
func (m *Monitor) StartServer(openBrowser bool) (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("monitoring: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring emulator with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorf("server stopped: %v", err)
		}
	}()

	if openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.log.Warnf("cannot open browser: %v", err)
		}
	}

	return url, nil
}

// StopServer shuts the web server down and ends the open status streams.
func (m *Monitor) StopServer(ctx context.Context) error {
	m.closeOnce.Do(func() { close(m.closing) })

	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.target.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) resume(w http.ResponseWriter, _ *http.Request) {
	m.target.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	s := m.target.Status()
	fmt.Fprintf(w, "{\"now\":%d,\"seconds\":%.9f}", uint64(s.Now), s.Seconds)
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	s := m.target.Status()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&s)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) statusField(w http.ResponseWriter, r *http.Request) {
	field := mux.Vars(r)["field"]
	s := m.target.Status()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&s)
	serializer.SetMaxDepth(1)

	if err := serializer.SetEntryPoint([]string{field}); err != nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Field %s not found", field)

		return
	}

	err := serializer.Serialize(w)
	dieOnErr(err)
}

// syncReplayBar shows the replay position as a progress bar while a replay
// runs.
func (m *Monitor) syncReplayBar(s reactor.Status) {
	switch {
	case s.Replaying && m.replayBar == nil:
		m.replayBar = &ProgressBar{
			ID:        xid.New().String(),
			Name:      "replay",
			StartTime: time.Now(),
			Total:     uint64(s.ReplayTotal),
		}
		m.progressBars = append(m.progressBars, m.replayBar)
	case !s.Replaying && m.replayBar != nil:
		m.removeBar(m.replayBar)
		m.replayBar = nil
	}

	if m.replayBar != nil {
		m.replayBar.SetFinished(uint64(s.ReplayDone))
	}
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	s := m.target.Status()

	m.progressBarsLock.Lock()
	m.syncReplayBar(s)

	views := make([]progressBarView, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		views = append(views, b.view())
	}
	m.progressBarsLock.Unlock()

	bytes, err := json.Marshal(views)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
