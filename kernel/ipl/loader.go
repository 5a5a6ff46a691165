package ipl

import (
	"encoding/binary"
	"fmt"

	"github.com/lowcore/nucleus/kernel/archmode"
	"github.com/lowcore/nucleus/kernel/chanio"
	"github.com/lowcore/nucleus/kernel/devtab"
	"github.com/lowcore/nucleus/kernel/fault"
	"github.com/lowcore/nucleus/kernel/mempool"
	"github.com/lowcore/nucleus/kernel/svc"
	"github.com/lowcore/nucleus/machine"
)

// Supervisor is the slice of the resident kernel the loader drives. The
// loader always calls services from the kernel's own state.
type Supervisor interface {
	Dispatch(id int, req *svc.Request) (svc.Status, error)
	Storage() *machine.Storage
	Pool() *mempool.Pool
	CurrentModeCeiling() archmode.Mode
}

// Config parameterizes one boot.
type Config struct {
	// BootDevice is the device the medium is mounted on. The hardware
	// boot sequence has already proven it good, so registration skips
	// the operability probe.
	BootDevice uint16

	// HighWater is the highest address of the resident kernel. No
	// directed record may land at or below it.
	HighWater uint64

	// TableCapacity sizes the device table.
	TableCapacity int

	// CurrentMode is the addressing mode the kernel boots in.
	CurrentMode archmode.Mode
}

// A Handoff is the loader's final product: where the loaded program
// starts, in which mode, and how much of it arrived.
type Handoff struct {
	Entry       uint32
	Mode        archmode.Mode
	BytesLoaded uint64
}

// loadState carries the loader's scratch addresses through one boot.
type loadState struct {
	sup     Supervisor
	cfg     Config
	bufAddr uint64
	cbAddr  uint64
}

// Run performs the boot: subsystem init, the record loop, the cumulative
// length check, and the mode check. Every failure is fatal with a
// distinct wait-state code; the loader never retries I/O.
func Run(sup Supervisor, cfg Config) (Handoff, *fault.Fault) {
	st := &loadState{sup: sup, cfg: cfg}

	if f := st.initSubsystems(); f != nil {
		return Handoff{}, f
	}

	header, f := st.readVolumeHeader()
	if f != nil {
		return Handoff{}, f
	}

	loaded, f := st.loadRecords()
	if f != nil {
		return Handoff{}, f
	}

	if loaded != uint64(header.DeclaredTotal) {
		return Handoff{}, fault.New(fault.CodeSizeMismatch, fmt.Sprintf(
			"loaded %d bytes, medium declared %d", loaded, header.DeclaredTotal))
	}

	verdict, mode := archmode.Check(
		header.Mode, cfg.CurrentMode, sup.CurrentModeCeiling())
	if verdict == archmode.Incompatible {
		return Handoff{}, fault.New(fault.CodeBadMode, fmt.Sprintf(
			"entry point requests %v on %v hardware",
			header.Mode, sup.CurrentModeCeiling()))
	}

	return Handoff{Entry: header.Entry, Mode: mode, BytesLoaded: loaded}, nil
}

// initSubsystems builds the device table, registers the boot device
// pass-through, and carves the loader's scratch areas from the top of
// the pool: one block buffer, one CCW, one control block.
func (st *loadState) initSubsystems() *fault.Fault {
	req := &svc.Request{TableCapacity: st.cfg.TableCapacity}
	if f := st.call(svc.IDInitTable, req); f != nil {
		return f
	}

	req = &svc.Request{
		DeviceAddr:  st.cfg.BootDevice,
		Class:       devtab.ClassEndOfMedium | devtab.SubclassReader,
		PassThrough: true,
	}
	if f := st.call(svc.IDRegister, req); f != nil {
		return f
	}
	entryAddr := req.EntryAddr

	pool := st.sup.Pool()

	bufAddr, got := pool.AllocHigh(BlockSize)
	if got == 0 {
		return fault.New(fault.CodeNotInitialized, "no pool space for block buffer")
	}
	st.bufAddr = bufAddr

	ccwAddr, got := pool.AllocHigh(8)
	if got == 0 {
		return fault.New(fault.CodeNotInitialized, "no pool space for channel program")
	}

	cbAddr, got := pool.AllocHigh(chanio.ControlBlockSize)
	if got == 0 {
		return fault.New(fault.CodeNotInitialized, "no pool space for control block")
	}
	st.cbAddr = cbAddr

	// One read CCW, reused for every block: read BlockSize bytes into
	// the buffer, suppress the short-length indication.
	ccw := make([]byte, 8)
	ccw[0] = machine.CmdRead
	ccw[1] = byte(bufAddr >> 16)
	ccw[2] = byte(bufAddr >> 8)
	ccw[3] = byte(bufAddr)
	ccw[4] = 0x20 // SLI
	binary.BigEndian.PutUint16(ccw[6:8], BlockSize)

	storage := st.sup.Storage()
	if err := storage.Write(ccwAddr, ccw); err != nil {
		return fault.Wrap(fault.CodeLoadIO, err)
	}

	block := chanio.ControlBlock{
		EntryAddr:   uint32(entryAddr),
		ProgramAddr: uint32(ccwAddr),
	}
	if err := storage.Write(cbAddr, block.Encode()); err != nil {
		return fault.Wrap(fault.CodeLoadIO, err)
	}

	return nil
}

// call runs one service as the kernel and converts any failure into the
// loader's fatal tier.
func (st *loadState) call(id int, req *svc.Request) *fault.Fault {
	status, err := st.sup.Dispatch(id, req)
	if err != nil {
		if f, ok := err.(*fault.Fault); ok {
			return f
		}
		return fault.Wrap(fault.CodeNotInitialized, err)
	}

	if status != svc.StatusOK {
		return fault.New(fault.CodeNotInitialized, fmt.Sprintf(
			"service %d answered %d during boot setup", id, status))
	}

	return nil
}

// readBlock reads the next medium block into the scratch buffer. The
// second return is true at physical end of medium.
func (st *loadState) readBlock() ([]byte, bool, *fault.Fault) {
	req := &svc.Request{
		ControlBlockAddr: uint32(st.cbAddr),
		Wait:             chanio.WaitBoth,
	}

	status, err := st.sup.Dispatch(svc.IDExecIO, req)
	if err != nil {
		if f, ok := err.(*fault.Fault); ok {
			return nil, false, f
		}
		return nil, false, fault.Wrap(fault.CodeLoadIO, err)
	}

	switch {
	case status == svc.StatusEndOfMedium:
		return nil, true, nil
	case status != svc.StatusOK:
		return nil, false, fault.New(fault.CodeLoadIO, fmt.Sprintf(
			"boot device read answered %d (%v)", status, req.Outcome))
	}

	raw, rerr := st.sup.Storage().Read(st.bufAddr, BlockSize)
	if rerr != nil {
		return nil, false, fault.Wrap(fault.CodeLoadIO, rerr)
	}

	return raw, false, nil
}

func (st *loadState) readVolumeHeader() (VolumeHeader, *fault.Fault) {
	raw, eof, f := st.readBlock()
	if f != nil {
		return VolumeHeader{}, f
	}
	if eof {
		return VolumeHeader{}, fault.New(fault.CodeBadMedium, "empty boot medium")
	}

	header, err := parseVolume(raw)
	if err != nil {
		return VolumeHeader{}, fault.Wrap(fault.CodeBadMedium, err)
	}

	return header, nil
}

// loadRecords runs the record loop: read, guard, copy, accumulate, until
// the record carrying the last-record mark has been placed.
func (st *loadState) loadRecords() (uint64, *fault.Fault) {
	storage := st.sup.Storage()
	loaded := uint64(0)

	for {
		raw, eof, f := st.readBlock()
		if f != nil {
			return 0, f
		}
		if eof {
			return 0, fault.New(fault.CodeBadMedium,
				"medium ended before the last-record mark")
		}

		record, err := parseRecord(raw)
		if err != nil {
			return 0, fault.Wrap(fault.CodeBadMedium, err)
		}

		if f := st.guardDestination(record); f != nil {
			return 0, f
		}

		if len(record.Payload) > 0 {
			if werr := storage.Write(uint64(record.Dest), record.Payload); werr != nil {
				return 0, fault.Wrap(fault.CodeLoadIO, werr)
			}
		}

		loaded += uint64(len(record.Payload))

		if record.Last {
			return loaded, nil
		}
	}
}

// guardDestination refuses any record that would land on the resident
// kernel or on the loader's own scratch area.
func (st *loadState) guardDestination(r Record) *fault.Fault {
	if len(r.Payload) == 0 {
		return nil
	}

	dest := uint64(r.Dest)
	end := dest + uint64(len(r.Payload))

	if dest < st.cfg.HighWater {
		return fault.New(fault.CodeOverwrite, fmt.Sprintf(
			"record [%#x, %#x) overlaps resident kernel below %#x",
			dest, end, st.cfg.HighWater))
	}

	pool := st.sup.Pool()
	scratchBase, scratchEnd := pool.HighCursor(), pool.Limit()
	if dest < scratchEnd && end > scratchBase {
		return fault.New(fault.CodeCopyOverlap, fmt.Sprintf(
			"record [%#x, %#x) overlaps load scratch [%#x, %#x)",
			dest, end, scratchBase, scratchEnd))
	}

	return nil
}
