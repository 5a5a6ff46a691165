// Package svc implements the kernel's service dispatch framework: a
// fixed table of numbered entry points behind one calling convention.
// The caller fills a request block, names a service ID, and receives a
// signed status code; no panic crosses this boundary. A service either
// returns a code or the dispatcher reports a fatal fault for the
// top-level handler to halt on.
package svc

import (
	"fmt"
	"log"

	"github.com/lowcore/nucleus/kernel/chanio"
	"github.com/lowcore/nucleus/kernel/devtab"
	"github.com/lowcore/nucleus/kernel/fault"
)

// Status is the signed result code of a service call. Zero is success,
// negative codes are errors, positive codes are partial-completion
// counts whose meaning belongs to the individual service.
type Status int

// Statuses.
const (
	StatusOK             Status = 0
	StatusInvalidID      Status = -1
	StatusNotImplemented Status = -2
	StatusNotInitialized Status = -3
	StatusBadRequest     Status = -4
	StatusNotFound       Status = -5
	StatusTableFull      Status = -6
	StatusClassMismatch  Status = -7
	StatusUnavailable    Status = -8
	StatusIOError        Status = -9

	// StatusEndOfMedium reports a read that ran off the physical end of
	// the medium: one boundary crossed, nothing transferred.
	StatusEndOfMedium Status = 1
)

// Service IDs.
const (
	IDNoop         = 0
	IDInitTable    = 1
	IDFind         = 2
	IDRegister     = 3
	IDExecIO       = 4
	IDQueryPending = 5
)

// Caller states. The dispatcher trusts the kernel and distrusts the
// loaded program.
type Caller int

// Callers.
const (
	CallerKernel Caller = iota
	CallerProgram
)

// A Request is the request block of the service calling convention. The
// caller fills the input fields for the service it names; the service
// writes its results back into the same block.
type Request struct {
	// Inputs.
	DeviceAddr       uint16
	Class            devtab.Class
	PassThrough      bool
	TableCapacity    int
	ControlBlockAddr uint32
	Wait             chanio.WaitPolicy

	// Outputs.
	EntryAddr uint64
	TableBase uint64
	Outcome   chanio.Outcome
	Pending   devtab.PendingAction
}

// A Handler is one service entry point.
type Handler func(*Request) Status

type slot struct {
	handler    Handler
	privileged bool
}

// A Table maps service IDs to entry points. It is populated once at
// start-up and read-only afterwards; empty slots answer not-implemented.
type Table struct {
	slots []slot
}

// NewTable creates a service table with the given number of slots.
func NewTable(size int) *Table {
	return &Table{slots: make([]slot, size)}
}

// Size returns the number of slots.
func (t *Table) Size() int {
	return len(t.slots)
}

// Register installs a handler. Installing out of range or over an
// occupied slot is a build error, not a runtime condition.
func (t *Table) Register(id int, h Handler, privileged bool) {
	if id < 0 || id >= len(t.slots) {
		log.Panicf("service ID %d outside table of %d slots", id, len(t.slots))
	}
	if t.slots[id].handler != nil {
		log.Panicf("service ID %d registered twice", id)
	}

	t.slots[id] = slot{handler: h, privileged: privileged}
}

// Dispatch validates the service ID, enforces the caller-privilege
// check, and runs the service. A privilege violation is fatal rather
// than an error return: it means the resident kernel's own state can no
// longer be trusted.
func (t *Table) Dispatch(caller Caller, id int, req *Request) (Status, error) {
	if id < 0 || id >= len(t.slots) {
		return StatusInvalidID, nil
	}

	s := t.slots[id]
	if s.handler == nil {
		return StatusNotImplemented, nil
	}

	if s.privileged && caller != CallerKernel {
		return StatusInvalidID, fault.New(fault.CodePrivilege,
			fmt.Sprintf("service %d called from problem state", id))
	}

	return s.handler(req), nil
}
