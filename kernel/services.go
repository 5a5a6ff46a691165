package kernel

import (
	"errors"

	"github.com/lowcore/nucleus/kernel/chanio"
	"github.com/lowcore/nucleus/kernel/devtab"
	"github.com/lowcore/nucleus/kernel/svc"
)

// svcNoop does nothing, successfully. It exists so callers can probe the
// call gate itself.
func (k *Kernel) svcNoop(*svc.Request) svc.Status {
	return svc.StatusOK
}

// svcInitTable carves the device table out of the pool and brings up the
// channel-I/O executor. Privileged: the loaded program must never re-run
// initialization under the kernel's feet.
func (k *Kernel) svcInitTable(req *svc.Request) svc.Status {
	if k.devices != nil {
		return svc.StatusBadRequest
	}
	if req.TableCapacity <= 0 {
		return svc.StatusBadRequest
	}

	table, err := devtab.New(k.pool, k.mach, req.TableCapacity)
	if err != nil {
		return svc.StatusBadRequest
	}

	k.devices = table
	k.exec = chanio.NewExecutor(k.mach, table)
	k.exec.AttachTracer(k.tracer)

	req.TableBase = table.Base()

	return svc.StatusOK
}

// svcFind looks a device address up in the table.
func (k *Kernel) svcFind(req *svc.Request) svc.Status {
	if k.devices == nil {
		return svc.StatusNotInitialized
	}

	i, err := k.devices.FindIndex(req.DeviceAddr)
	if err != nil {
		return svc.StatusNotFound
	}

	req.EntryAddr = k.devices.EntryAddr(i)

	return svc.StatusOK
}

// svcRegister adds a device to the table, or finds the existing entry
// when the device is already registered with the same class.
func (k *Kernel) svcRegister(req *svc.Request) svc.Status {
	if k.devices == nil {
		return svc.StatusNotInitialized
	}

	_, err := k.devices.Register(req.DeviceAddr, req.Class, req.PassThrough)
	switch {
	case errors.Is(err, devtab.ErrClassMismatch):
		return svc.StatusClassMismatch
	case errors.Is(err, devtab.ErrTableFull):
		return svc.StatusTableFull
	case errors.Is(err, devtab.ErrNotOperational),
		errors.Is(err, devtab.ErrBusy):
		return svc.StatusUnavailable
	case err != nil:
		return svc.StatusBadRequest
	}

	i, err := k.devices.FindIndex(req.DeviceAddr)
	if err != nil {
		return svc.StatusNotFound
	}

	req.EntryAddr = k.devices.EntryAddr(i)

	return svc.StatusOK
}

// svcExecIO decodes the control block from storage and runs one channel
// operation to completion.
func (k *Kernel) svcExecIO(req *svc.Request) svc.Status {
	if k.devices == nil || k.exec == nil {
		return svc.StatusNotInitialized
	}

	raw, err := k.mach.Storage().Read(
		uint64(req.ControlBlockAddr), chanio.ControlBlockSize)
	if err != nil {
		return svc.StatusBadRequest
	}

	block, err := chanio.Decode(raw)
	if err != nil {
		return svc.StatusBadRequest
	}

	outcome, _ := k.exec.Execute(chanio.Request{Block: block, Wait: req.Wait})
	req.Outcome = outcome

	switch outcome {
	case chanio.OutcomeSuccess:
		return svc.StatusOK
	case chanio.OutcomePhysicalEOF:
		return svc.StatusEndOfMedium
	case chanio.OutcomeDeviceUnavailable:
		return svc.StatusUnavailable
	case chanio.OutcomeInvalidRequest:
		return svc.StatusBadRequest
	default:
		return svc.StatusIOError
	}
}

// svcQueryPending reports the first device owing the loaded program an
// action, and how many such devices exist in total.
func (k *Kernel) svcQueryPending(req *svc.Request) svc.Status {
	if k.devices == nil {
		return svc.StatusNotInitialized
	}

	entry, err := k.devices.QueryPending()
	if err != nil {
		return svc.StatusOK
	}

	i, err := k.devices.FindIndex(entry.DeviceAddr)
	if err != nil {
		return svc.StatusNotFound
	}

	req.EntryAddr = k.devices.EntryAddr(i)
	req.DeviceAddr = entry.DeviceAddr
	req.Pending = entry.Pending

	return svc.Status(k.devices.PendingCount())
}
