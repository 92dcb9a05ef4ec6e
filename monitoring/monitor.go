// Package monitoring turns a running simulation into a web server, so that the
// clock, the ready queue and the live processes can be inspected from outside.
package monitoring

import (
	"bytes"
	"encoding/json"
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
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/procsim/monitoring/web"
	"github.com/sarchlab/procsim/sim"
)

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation.
type Monitor struct {
	kernel      sim.Kernel
	portNumber  int
	openBrowser bool
	idGenerator sim.IDGenerator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		idGenerator: sim.NewSequentialIDGenerator(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open the dashboard in a browser when the
// server starts.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterKernel registers the scheduler of the simulation.
func (m *Monitor) RegisterKernel(k sim.Kernel) {
	m.kernel = k
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGenerator.Generate(),
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

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler that serves the monitoring API and the
// dashboard.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/queue", m.listQueue)
	r.HandleFunc("/api/processes", m.listProcesses)
	r.HandleFunc("/api/process/{id}", m.processDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server in the background and
// returns its URL.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	handler := m.Router()
	go func() {
		err := http.Serve(listener, handler)
		dieOnErr(err)
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return url
}

type nowRsp struct {
	Now       float64 `json:"now"`
	Started   bool    `json:"started"`
	Resetting bool    `json:"resetting"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if !m.kernelOr503(w) {
		return
	}

	writeJSON(w, nowRsp{
		Now:       float64(m.kernel.CurrentTime()),
		Started:   m.kernel.IsStarted(),
		Resetting: m.kernel.IsResetting(),
	})
}

type processRsp struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	EvTime     float64 `json:"ev_time"`
	Idle       bool    `json:"idle"`
	Passivated bool    `json:"passivated"`
	Terminated bool    `json:"terminated"`
}

func describe(p *sim.Process) processRsp {
	return processRsp{
		ID:         p.ID(),
		Name:       p.Name(),
		EvTime:     float64(p.EvTime()),
		Idle:       p.Idle(),
		Passivated: p.Passivated(),
		Terminated: p.Terminated(),
	}
}

func describeAll(procs []*sim.Process) []processRsp {
	rsp := make([]processRsp, 0, len(procs))
	for _, p := range procs {
		rsp = append(rsp, describe(p))
	}

	return rsp
}

func (m *Monitor) listQueue(w http.ResponseWriter, _ *http.Request) {
	if !m.kernelOr503(w) {
		return
	}

	writeJSON(w, describeAll(m.kernel.QueueSnapshot()))
}

func (m *Monitor) listProcesses(w http.ResponseWriter, _ *http.Request) {
	if !m.kernelOr503(w) {
		return
	}

	writeJSON(w, describeAll(m.kernel.Processes()))
}

func (m *Monitor) processDetails(w http.ResponseWriter, r *http.Request) {
	if !m.kernelOr503(w) {
		return
	}

	p := m.findProcessOr404(w, mux.Vars(r)["id"])
	if p == nil {
		return
	}

	detail := describe(p)

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&detail)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) findProcessOr404(
	w http.ResponseWriter,
	id string,
) *sim.Process {
	candidates := append(m.kernel.Processes(), m.kernel.QueueSnapshot()...)
	for _, p := range candidates {
		if p.ID() == id {
			return p
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Process not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) kernelOr503(w http.ResponseWriter) bool {
	if m.kernel != nil {
		return true
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	_, err := w.Write([]byte("No simulation registered"))
	dieOnErr(err)

	return false
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
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

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

// collectProfile samples the CPU for one second, or for the number of
// milliseconds given in the "ms" query parameter.
func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if ms := r.URL.Query().Get("ms"); ms != "" {
		n, err := strconv.Atoi(ms)
		if err != nil || n <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Invalid duration: %s", ms)
			return
		}

		duration = time.Duration(n) * time.Millisecond
	}

	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
