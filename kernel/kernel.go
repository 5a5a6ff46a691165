// Package kernel assembles the resident kernel: the memory pool, the
// device table, the channel-I/O executor, and the service table, all
// threaded through one context object instead of process-wide state.
package kernel

import (
	"github.com/lowcore/nucleus/iotrace"
	"github.com/lowcore/nucleus/kernel/archmode"
	"github.com/lowcore/nucleus/kernel/chanio"
	"github.com/lowcore/nucleus/kernel/devtab"
	"github.com/lowcore/nucleus/kernel/ipl"
	"github.com/lowcore/nucleus/kernel/mempool"
	"github.com/lowcore/nucleus/kernel/svc"
	"github.com/lowcore/nucleus/machine"
)

// DefaultServiceSlots leaves room past the implemented services so the
// not-implemented path stays reachable.
const DefaultServiceSlots = 8

// Config fixes the kernel's resident footprint.
type Config struct {
	// ArenaBase and ArenaSize locate the scratch arena inside the
	// kernel's resident region. Both must be multiples of 8 so carved
	// regions stay doubleword aligned.
	ArenaBase uint64
	ArenaSize uint64

	// ServiceSlots sizes the service table; zero selects the default.
	ServiceSlots int

	// Tracer, when set, records every channel-I/O completion.
	Tracer *iotrace.Tracer
}

// A Kernel is the resident service layer.
type Kernel struct {
	mach     *machine.Machine
	pool     *mempool.Pool
	services *svc.Table
	tracer   *iotrace.Tracer

	// devices and exec exist only after the device-table init service
	// has run; services that need them refuse to run before that.
	devices *devtab.Table
	exec    *chanio.Executor
}

// New builds a kernel on the given machine. The service table is
// populated here, once; the device table is created later by the
// table-init service so that initialization order stays explicit.
func New(m *machine.Machine, cfg Config) *Kernel {
	slots := cfg.ServiceSlots
	if slots == 0 {
		slots = DefaultServiceSlots
	}

	k := &Kernel{
		mach:   m,
		pool:   mempool.New(cfg.ArenaBase, cfg.ArenaSize),
		tracer: cfg.Tracer,
	}

	t := svc.NewTable(slots)
	t.Register(svc.IDNoop, k.svcNoop, false)
	t.Register(svc.IDInitTable, k.svcInitTable, true)
	t.Register(svc.IDFind, k.svcFind, false)
	t.Register(svc.IDRegister, k.svcRegister, false)
	t.Register(svc.IDExecIO, k.svcExecIO, false)
	t.Register(svc.IDQueryPending, k.svcQueryPending, false)
	k.services = t

	return k
}

// Dispatch is the kernel's call gate.
func (k *Kernel) Dispatch(
	caller svc.Caller,
	id int,
	req *svc.Request,
) (svc.Status, error) {
	return k.services.Dispatch(caller, id, req)
}

// Pool returns the kernel's scratch allocator.
func (k *Kernel) Pool() *mempool.Pool {
	return k.pool
}

// Storage returns the emulated core the kernel runs in.
func (k *Kernel) Storage() *machine.Storage {
	return k.mach.Storage()
}

// MachineConfig returns the hardware generation configuration.
func (k *Kernel) MachineConfig() machine.Config {
	return k.mach.Config()
}

// DeviceTable returns the device table, or nil before the table-init
// service has run.
func (k *Kernel) DeviceTable() *devtab.Table {
	return k.devices
}

// CeilingMode returns the highest addressing mode the hardware supports.
func (k *Kernel) CeilingMode() archmode.Mode {
	m, ok := archmode.FromWidth(k.mach.Config().AddressWidth)
	if !ok {
		return archmode.Addr24
	}

	return m
}

// Boot runs the boot loader driver against this kernel.
func (k *Kernel) Boot(cfg ipl.Config) (ipl.Handoff, error) {
	h, f := ipl.Run(supervisorView{k}, cfg)
	if f != nil {
		return h, f
	}

	return h, nil
}

// supervisorView adapts the kernel to the loader's Supervisor interface,
// pinning the caller state to the kernel itself.
type supervisorView struct {
	k *Kernel
}

func (v supervisorView) Dispatch(id int, req *svc.Request) (svc.Status, error) {
	return v.k.Dispatch(svc.CallerKernel, id, req)
}

func (v supervisorView) Storage() *machine.Storage {
	return v.k.Storage()
}

func (v supervisorView) Pool() *mempool.Pool {
	return v.k.Pool()
}

func (v supervisorView) CurrentModeCeiling() archmode.Mode {
	return v.k.CeilingMode()
}
