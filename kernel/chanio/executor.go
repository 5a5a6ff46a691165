package chanio

import (
	"errors"

	"github.com/lowcore/nucleus/iotrace"
	"github.com/lowcore/nucleus/kernel/devtab"
	"github.com/lowcore/nucleus/machine"
)

// Outcome is the terminal state of one channel-I/O request.
type Outcome int

// Outcomes.
const (
	OutcomeSuccess Outcome = iota
	OutcomePhysicalEOF
	OutcomeDeviceError
	OutcomeDeviceUnavailable
	OutcomeInvalidRequest
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePhysicalEOF:
		return "physical-eof"
	case OutcomeDeviceError:
		return "device-error"
	case OutcomeDeviceUnavailable:
		return "device-unavailable"
	case OutcomeInvalidRequest:
		return "invalid-request"
	default:
		return "unknown"
	}
}

// WaitPolicy names which completion indications a request waits for.
type WaitPolicy int

// Wait policies.
const (
	WaitBoth WaitPolicy = iota
	WaitChannelEnd
	WaitDeviceEnd
	NoWait
)

func (p WaitPolicy) mask() uint8 {
	switch p {
	case WaitChannelEnd:
		return machine.UnitChannelEnd
	case WaitDeviceEnd:
		return machine.UnitDeviceEnd
	case NoWait:
		return 0
	default:
		return machine.UnitChannelEnd | machine.UnitDeviceEnd
	}
}

// Request errors, all reported to the caller and never retried here.
var (
	ErrOutstanding    = errors.New("an I/O request is already outstanding")
	ErrBadEntryAddr   = errors.New("entry address outside device table")
	ErrBadAlignment   = errors.New("channel-program address not doubleword aligned")
	ErrFormatSupport  = errors.New("31-bit program address on a machine without subchannel I/O")
	ErrNotOperational = errors.New("device not operational")
	ErrDeviceBusy     = errors.New("device busy")
	ErrUnitCheck      = errors.New("unit check, sense data pending")
	ErrUnitError      = errors.New("device presented error status")
	ErrChannelError   = errors.New("channel presented error status")
	ErrNoStatus       = errors.New("condition code promised a CSW but none was stored")
)

// A Request asks for one channel operation.
type Request struct {
	Block ControlBlock
	Wait  WaitPolicy
}

// System is the slice of the machine the executor drives.
type System interface {
	StartIO(addr uint16, key uint8, ccwAddr uint32) int
	StoredCSW() (machine.CSW, bool)
	WaitForIOInterrupt() machine.Interruption
	Config() machine.Config
}

// An Executor runs the channel-I/O state machine. It services one
// request at a time: there is exactly one wait context, so a service
// must never issue a second request while one is outstanding.
type Executor struct {
	sys    System
	table  *devtab.Table
	tracer *iotrace.Tracer
	busy   bool
}

// NewExecutor creates an Executor over the machine and device table.
func NewExecutor(sys System, table *devtab.Table) *Executor {
	return &Executor{sys: sys, table: table}
}

// AttachTracer wires an I/O tracer; nil detaches.
func (x *Executor) AttachTracer(t *iotrace.Tracer) {
	x.tracer = t
}

// Execute runs one request to a terminal outcome. Malformed requests and
// unreachable devices are reported, never retried: retry policy belongs
// to the caller.
func (x *Executor) Execute(req Request) (Outcome, error) {
	if x.busy {
		return OutcomeInvalidRequest, ErrOutstanding
	}

	entry, err := x.validate(req)
	if err != nil {
		return OutcomeInvalidRequest, err
	}

	x.busy = true
	defer func() { x.busy = false }()

	x.beginOperation(entry)
	defer func() { entry.Status &^= devtab.StatusBusy }()

	outcome, err := x.run(entry, req)

	x.tracer.Operation(entry.DeviceAddr, outcome.String(),
		entry.AccumUnit, entry.AccumChannel, entry.Residual)

	return outcome, err
}

// validate checks the request's addressing and flags before anything
// reaches hardware.
func (x *Executor) validate(req Request) (*devtab.Entry, error) {
	entry, err := x.table.ByAddr(uint64(req.Block.EntryAddr))
	if err != nil {
		return nil, ErrBadEntryAddr
	}

	if req.Block.ProgramAddr%8 != 0 {
		return nil, ErrBadAlignment
	}

	if req.Block.Format31 && !x.sys.Config().SupportsSubchannelIO {
		return nil, ErrFormatSupport
	}

	return entry, nil
}

// beginOperation moves the entry into the busy state. Busy implies all
// status and pending flags are clear; whatever action was pending is
// considered collected by this operation.
func (x *Executor) beginOperation(entry *devtab.Entry) {
	entry.ClearOperation()
	entry.Pending = devtab.ActionNone
	entry.Status &^= devtab.StatusActionPending | devtab.StatusSensePending
	entry.Status |= devtab.StatusBusy
}

func (x *Executor) run(entry *devtab.Entry, req Request) (Outcome, error) {
	cc := x.sys.StartIO(entry.DeviceAddr, req.Block.Key, req.Block.ProgramAddr)

	switch cc {
	case machine.CCNotOperational:
		return OutcomeDeviceUnavailable, ErrNotOperational
	case machine.CCBusy:
		// Distinguished from not-operational for diagnosis only; both
		// are non-retryable at this layer.
		return OutcomeDeviceUnavailable, ErrDeviceBusy
	case machine.CCStatusStored:
		csw, ok := x.sys.StoredCSW()
		if !ok {
			return OutcomeDeviceError, ErrNoStatus
		}
		accumulate(entry, csw)
	}

	if req.Wait == NoWait {
		// The operation is under way; later status arrives as
		// unsolicited interruptions recorded against the entry.
		return OutcomeSuccess, nil
	}

	mask := req.Wait.mask()

	for {
		switch analyze(entry.Class, entry.AccumUnit, entry.AccumChannel, mask) {
		case verdictChannelError:
			return OutcomeDeviceError, ErrChannelError

		case verdictUnitCheck:
			entry.Pending = devtab.ActionReadSense
			entry.Status |= devtab.StatusActionPending | devtab.StatusSensePending
			entry.Status &^= devtab.StatusBusy
			return OutcomeDeviceError, ErrUnitCheck

		case verdictUnitError:
			return OutcomeDeviceError, ErrUnitError

		case verdictPhysicalEOF:
			return OutcomePhysicalEOF, nil

		case verdictSuccess:
			return OutcomeSuccess, nil

		case verdictWait:
			intr := x.sys.WaitForIOInterrupt()
			if intr.DeviceAddr != entry.DeviceAddr {
				x.noteOther(intr)
				continue
			}
			accumulate(entry, intr.CSW)
		}
	}
}

// noteOther records status for a device that is not the target of the
// outstanding request. The status is kept in that device's own entry and
// the wait resumes; nothing is dropped.
func (x *Executor) noteOther(intr machine.Interruption) {
	other, err := x.table.Find(intr.DeviceAddr)
	if err != nil {
		// Status from a device the kernel never registered; there is no
		// entry to record it in.
		return
	}

	other.NoteUnsolicited(intr.CSW.Unit)
	other.AccumChannel |= intr.CSW.Channel
}

func accumulate(entry *devtab.Entry, csw machine.CSW) {
	entry.AccumUnit |= csw.Unit
	entry.AccumChannel |= csw.Channel
	entry.Residual = csw.Residual
}
