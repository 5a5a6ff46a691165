// Package machine emulates the hardware the kernel runs on: a
// byte-addressable core, a set of channel-attached devices, and the I/O
// interruption mechanism. The channel fetches and executes channel
// programs (CCW chains) from storage on behalf of the kernel.
package machine

import (
	"encoding/binary"
	"log"
)

// Condition codes answered by a start-I/O attempt.
const (
	CCStarted        = 0 // operation started, completion will interrupt
	CCStatusStored   = 1 // immediate completion, CSW already stored
	CCBusy           = 2
	CCNotOperational = 3
)

// Config selects the hardware generation being emulated. It is chosen
// once at construction; there is no architecture-variant code path.
type Config struct {
	// AddressWidth is the widest address the machine supports: 24, 31,
	// or 64 bits.
	AddressWidth int

	// SupportsSubchannelIO enables format-1 (31-bit) channel-program
	// addresses in control blocks.
	SupportsSubchannelIO bool
}

// A Machine owns the emulated core, the attached devices, and the queue
// of pending I/O interruptions.
type Machine struct {
	cfg     Config
	storage *Storage
	devices map[uint16]Device
	intrs   *InterruptQueue

	storedCSW *CSW
}

// NewMachine creates a machine with the given core size and generation
// configuration.
func NewMachine(coreSize uint64, cfg Config) *Machine {
	if cfg.AddressWidth == 0 {
		cfg.AddressWidth = 24
	}

	return &Machine{
		cfg:     cfg,
		storage: NewStorage(coreSize),
		devices: make(map[uint16]Device),
		intrs:   NewInterruptQueue(),
	}
}

// Config returns the generation configuration the machine was built with.
func (m *Machine) Config() Config {
	return m.cfg
}

// Storage returns the emulated core.
func (m *Machine) Storage() *Storage {
	return m.storage
}

// Attach connects a device at the given device address. Attaching two
// devices at one address is a configuration error.
func (m *Machine) Attach(addr uint16, d Device) {
	if _, taken := m.devices[addr]; taken {
		log.Panicf("device address %03X already attached", addr)
	}

	m.devices[addr] = d

	if b, ok := d.(AttentionBinder); ok {
		b.BindAttention(func(unit uint8) {
			m.PostUnsolicited(addr, unit)
		})
	}
}

// Probe answers the condition code a test-I/O of the address would give,
// without starting anything.
func (m *Machine) Probe(addr uint16) int {
	d, ok := m.devices[addr]
	switch {
	case !ok || !d.Ready():
		return CCNotOperational
	case d.Busy():
		return CCBusy
	default:
		return CCStarted
	}
}

// PostUnsolicited queues an interruption for status a device raised on
// its own, outside any channel program.
func (m *Machine) PostUnsolicited(addr uint16, unit uint8) {
	m.intrs.Post(Interruption{
		DeviceAddr:  addr,
		CSW:         CSW{Unit: unit},
		Unsolicited: true,
	})
}

// WaitForIOInterrupt parks the caller until an I/O interruption is
// pending, then delivers it.
func (m *Machine) WaitForIOInterrupt() Interruption {
	return m.intrs.Wait()
}

// PendingInterrupts returns how many interruptions are queued.
func (m *Machine) PendingInterrupts() int {
	return m.intrs.Len()
}

// StoredCSW returns the CSW stored by the last start that answered
// CCStatusStored, and clears it.
func (m *Machine) StoredCSW() (CSW, bool) {
	if m.storedCSW == nil {
		return CSW{}, false
	}

	csw := *m.storedCSW
	m.storedCSW = nil

	return csw, true
}

// StartIO starts the channel program at ccwAddr on the addressed device
// and returns the condition code. On CCStarted the completion arrives as
// an I/O interruption; on CCStatusStored the CSW is available through
// StoredCSW immediately.
func (m *Machine) StartIO(addr uint16, key uint8, ccwAddr uint32) int {
	d, ok := m.devices[addr]
	if !ok || !d.Ready() {
		return CCNotOperational
	}

	if d.Busy() {
		return CCBusy
	}

	csw, immediate := m.runProgram(d, key, ccwAddr)

	if immediate {
		stored := csw
		m.storedCSW = &stored
		return CCStatusStored
	}

	m.intrs.Post(Interruption{DeviceAddr: addr, CSW: csw})

	return CCStarted
}

// CCW flag bits (format-0).
const (
	ccwFlagCD   uint8 = 0x80 // chain data (not supported)
	ccwFlagCC   uint8 = 0x40 // chain command
	ccwFlagSLI  uint8 = 0x20 // suppress incorrect-length indication
	ccwFlagSkip uint8 = 0x10
)

const maxChainedCCWs = 256

// runProgram executes the CCW chain. An immediate completion is one
// where a single control-class command finished with channel end at
// initiation; such completions store the CSW instead of interrupting.
func (m *Machine) runProgram(d Device, key uint8, ccwAddr uint32) (CSW, bool) {
	csw := CSW{Key: key}
	ticsSeen := 0
	first := true
	immediate := false

	for steps := 0; ; steps++ {
		if steps >= maxChainedCCWs {
			csw.Channel |= ChanProgramCheck
			break
		}

		raw, err := m.storage.Read(uint64(ccwAddr), 8)
		if err != nil {
			csw.Channel |= ChanProgramCheck
			break
		}

		cmd := raw[0]
		dataAddr := uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
		flags := raw[4]
		count := binary.BigEndian.Uint16(raw[6:8])
		csw.CCWAddr = ccwAddr + 8

		// Bits 40-47 of a format-0 CCW must be zero.
		if raw[5] != 0 {
			csw.Channel |= ChanProgramCheck
			break
		}

		if cmd == CmdTIC {
			ticsSeen++
			if first || ticsSeen > 1 {
				csw.Channel |= ChanProgramCheck
				break
			}
			ccwAddr = dataAddr
			continue
		}
		ticsSeen = 0

		if count == 0 && cmd != CmdNOP {
			csw.Channel |= ChanProgramCheck
			break
		}

		res, chanStatus := m.execute(d, cmd, dataAddr, count)
		csw.Unit |= res.Unit
		csw.Channel |= chanStatus
		csw.Residual = count - uint16(res.Count)

		if csw.Residual != 0 && flags&ccwFlagSLI == 0 {
			csw.Channel |= ChanIncorrectLength
		}

		if first && flags&ccwFlagCC == 0 && isControl(cmd) &&
			res.Unit&UnitChannelEnd != 0 && csw.Channel == 0 {
			immediate = true
		}
		first = false

		errorSeen := res.Unit&(UnitCheck|UnitException) != 0 || csw.Channel != 0
		chainWanted := flags&ccwFlagCC != 0
		ended := res.Unit&UnitChannelEnd != 0 && res.Unit&UnitDeviceEnd != 0

		if !chainWanted || errorSeen || !ended {
			break
		}

		ccwAddr += 8
	}

	return csw, immediate
}

func isControl(cmd uint8) bool {
	return cmd&0x0F == CmdNOP
}

// execute runs one command against the device, moving data between the
// device and storage as the command class requires.
func (m *Machine) execute(
	d Device,
	cmd uint8,
	dataAddr uint32,
	count uint16,
) (Result, uint8) {
	switch {
	case cmd == CmdNOP:
		return d.Exec(cmd, nil), 0

	case cmd == CmdWrite || cmd&0x0F == CmdWrite:
		data, err := m.storage.Read(uint64(dataAddr), uint64(count))
		if err != nil {
			return Result{}, ChanProgramCheck
		}
		return d.Exec(cmd, data), 0

	default:
		// Read, sense, and read-backward produce data into storage.
		buf := make([]byte, count)
		res := d.Exec(cmd, buf)
		if res.Count > 0 {
			err := m.storage.Write(uint64(dataAddr), buf[:res.Count])
			if err != nil {
				return res, ChanProgramCheck
			}
		}
		return res, 0
	}
}
