// Package chanio implements the kernel's channel-I/O machinery: the
// bit-exact operation control block, request validation, and the state
// machine that starts a device operation, waits for its interruptions,
// and classifies the accumulated completion status.
package chanio

import (
	"encoding/binary"
	"errors"
)

// ControlBlockSize is the storage footprint of an encoded control block.
const ControlBlockSize = 16

// Control-block codec errors.
var (
	ErrShortBlock   = errors.New("control block truncated")
	ErrReservedBits = errors.New("reserved control-block bits not zero")
	ErrBadProgram   = errors.New("channel-program address out of range for format")
)

// A ControlBlock describes one channel operation. Its encoded layout is
// hardware-defined and must stay bit-exact:
//
//	bytes  0-3  device-table entry address
//	byte   4    protection key in bits 0-3, bits 4-7 zero
//	byte   5    format flags: bit 0 set selects a 31-bit program address
//	byte   6    logical-path mask
//	byte   7    zero
//	bytes  8-11 channel-program address (24-bit unless format-1)
//	bytes 12-15 zero
type ControlBlock struct {
	EntryAddr   uint32
	Key         uint8
	Format31    bool
	PathMask    uint8
	ProgramAddr uint32
}

const formatFlag31 = 0x80

// Encode renders the control block into its wire layout.
func (b ControlBlock) Encode() []byte {
	raw := make([]byte, ControlBlockSize)

	binary.BigEndian.PutUint32(raw[0:4], b.EntryAddr)
	raw[4] = (b.Key & 0x0F) << 4
	if b.Format31 {
		raw[5] = formatFlag31
	}
	raw[6] = b.PathMask
	binary.BigEndian.PutUint32(raw[8:12], b.ProgramAddr)

	return raw
}

// Decode parses an encoded control block, rejecting any layout whose
// reserved bits are not zero. A malformed block never reaches hardware.
func Decode(raw []byte) (ControlBlock, error) {
	if len(raw) < ControlBlockSize {
		return ControlBlock{}, ErrShortBlock
	}

	if raw[4]&0x0F != 0 || raw[5]&^uint8(formatFlag31) != 0 || raw[7] != 0 {
		return ControlBlock{}, ErrReservedBits
	}
	for _, v := range raw[12:16] {
		if v != 0 {
			return ControlBlock{}, ErrReservedBits
		}
	}

	b := ControlBlock{
		EntryAddr:   binary.BigEndian.Uint32(raw[0:4]),
		Key:         raw[4] >> 4,
		Format31:    raw[5]&formatFlag31 != 0,
		PathMask:    raw[6],
		ProgramAddr: binary.BigEndian.Uint32(raw[8:12]),
	}

	if b.Format31 {
		if b.ProgramAddr&0x8000_0000 != 0 {
			return ControlBlock{}, ErrBadProgram
		}
	} else if b.ProgramAddr&0xFF00_0000 != 0 {
		return ControlBlock{}, ErrBadProgram
	}

	return b, nil
}
