// Package monitoring turns a running emulation into a small web server
// so the kernel's state (device table, pool cursors, pending actions)
// can be inspected from outside while a boot is being diagnosed.
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
	"time"

	// Enable profiling endpoints.
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/lowcore/nucleus/kernel"
	"github.com/lowcore/nucleus/machine"
)

// A Monitor serves the inspection API for one kernel and its machine.
type Monitor struct {
	kernel      *kernel.Kernel
	mach        *machine.Machine
	portNumber  int
	openBrowser bool
}

// NewMonitor creates a Monitor.
func NewMonitor(k *kernel.Kernel, m *machine.Machine) *Monitor {
	return &Monitor{kernel: k, mach: m}
}

// WithPortNumber sets the port the server listens on.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber > 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is not allowed for the monitoring server. "+
				"Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser opens the dashboard in the default browser on start.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// StartServer starts serving the inspection API in the background.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/devices", m.listDevices)
	r.HandleFunc("/api/device/{addr}", m.showDevice)
	r.HandleFunc("/api/pool", m.showPool)
	r.HandleFunc("/api/pending", m.listPending)
	r.HandleFunc("/api/interrupts", m.showInterrupts)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber >= 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring the emulation with %s\n", url)

	if m.openBrowser {
		_ = browser.OpenURL(url)
	}

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

type deviceRsp struct {
	DeviceAddr string `json:"device_addr"`
	Class      uint8  `json:"class"`
	Status     uint8  `json:"status"`
	UnitStatus uint8  `json:"unit_status"`
	ChanStatus uint8  `json:"channel_status"`
	Sense      uint8  `json:"sense"`
	Pending    uint8  `json:"pending_action"`
	EntryAddr  string `json:"entry_addr"`
}

func (m *Monitor) listDevices(w http.ResponseWriter, _ *http.Request) {
	table := m.kernel.DeviceTable()
	if table == nil {
		fmt.Fprint(w, "[]")
		return
	}

	rsps := make([]deviceRsp, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		addr := table.EntryAddr(i)
		entry, err := table.ByAddr(addr)
		if err != nil {
			continue
		}

		rsps = append(rsps, deviceRsp{
			DeviceAddr: fmt.Sprintf("%03X", entry.DeviceAddr),
			Class:      uint8(entry.Class),
			Status:     entry.Status,
			UnitStatus: entry.AccumUnit,
			ChanStatus: entry.AccumChannel,
			Sense:      entry.Sense,
			Pending:    uint8(entry.Pending),
			EntryAddr:  fmt.Sprintf("%#x", addr),
		})
	}

	bs, err := json.Marshal(rsps)
	dieOnErr(err)

	_, err = w.Write(bs)
	dieOnErr(err)
}

// showDevice serializes one device entry with full field detail.
func (m *Monitor) showDevice(w http.ResponseWriter, r *http.Request) {
	table := m.kernel.DeviceTable()
	if table == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	addr, err := strconv.ParseUint(mux.Vars(r)["addr"], 16, 16)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	entry, ferr := table.Find(uint16(addr))
	if ferr != nil {
		w.WriteHeader(http.StatusNotFound)
		_, err = w.Write([]byte("Device not found"))
		dieOnErr(err)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(entry)
	serializer.SetMaxDepth(1)
	dieOnErr(serializer.Serialize(w))
}

func (m *Monitor) showPool(w http.ResponseWriter, _ *http.Request) {
	pool := m.kernel.Pool()

	fmt.Fprintf(w,
		`{"base":%d,"limit":%d,"low_cursor":%d,"high_cursor":%d,"available":%d}`,
		pool.Base(), pool.Limit(),
		pool.LowCursor(), pool.HighCursor(), pool.Available())
}

func (m *Monitor) listPending(w http.ResponseWriter, _ *http.Request) {
	table := m.kernel.DeviceTable()
	if table == nil {
		fmt.Fprint(w, `{"count":0}`)
		return
	}

	fmt.Fprintf(w, `{"count":%d}`, table.PendingCount())
}

func (m *Monitor) showInterrupts(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, `{"queued":%d}`, m.mach.PendingInterrupts())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bs, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bs)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bs, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bs)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
