// Package ipl implements the boot loader driver: it validates the boot
// medium, pulls directed records off the boot device through the kernel's
// I/O service, places each payload at its destination without touching
// the resident kernel, and hands control to the loaded program.
package ipl

import (
	"encoding/binary"
	"errors"

	"github.com/lowcore/nucleus/kernel/archmode"
)

// BlockSize is the fixed size of every block on the boot medium.
const BlockSize = 512

const recordHeader = 6

// MaxPayload is the payload capacity of one directed record.
const MaxPayload = BlockSize - recordHeader

// lastRecordFlag is the high bit of the destination field marking the
// final record of the image.
const lastRecordFlag = uint32(0x8000_0000)

// VolumeMagic tags a boot medium this kernel understands.
const VolumeMagic = "NVOL"

// Codec errors.
var (
	ErrShortBlock  = errors.New("boot medium block truncated")
	ErrBadCount    = errors.New("directed record count exceeds capacity")
	ErrBadMagic    = errors.New("boot medium carries an unknown volume tag")
	ErrPayloadSize = errors.New("payload exceeds directed-record capacity")
)

// A Record is one directed record: a chunk of the program image plus the
// core address it must land at.
type Record struct {
	Dest    uint32
	Last    bool
	Payload []byte
}

func parseRecord(raw []byte) (Record, error) {
	if len(raw) < BlockSize {
		return Record{}, ErrShortBlock
	}

	dest := binary.BigEndian.Uint32(raw[0:4])
	count := binary.BigEndian.Uint16(raw[4:6])
	if int(count) > MaxPayload {
		return Record{}, ErrBadCount
	}

	return Record{
		Dest:    dest &^ lastRecordFlag,
		Last:    dest&lastRecordFlag != 0,
		Payload: raw[recordHeader : recordHeader+int(count)],
	}, nil
}

func encodeRecord(r Record) ([]byte, error) {
	if len(r.Payload) > MaxPayload {
		return nil, ErrPayloadSize
	}

	raw := make([]byte, BlockSize)
	dest := r.Dest
	if r.Last {
		dest |= lastRecordFlag
	}

	binary.BigEndian.PutUint32(raw[0:4], dest)
	binary.BigEndian.PutUint16(raw[4:6], uint16(len(r.Payload)))
	copy(raw[recordHeader:], r.Payload)

	return raw, nil
}

// A VolumeHeader is the first block of the boot medium: the medium tag,
// the declared total image size, and the entry point the loaded program
// asks control be transferred to.
type VolumeHeader struct {
	DeclaredTotal uint32
	Entry         uint32
	Mode          archmode.Mode
}

func parseVolume(raw []byte) (VolumeHeader, error) {
	if len(raw) < BlockSize {
		return VolumeHeader{}, ErrShortBlock
	}

	if string(raw[0:4]) != VolumeMagic {
		return VolumeHeader{}, ErrBadMagic
	}

	return VolumeHeader{
		DeclaredTotal: binary.BigEndian.Uint32(raw[4:8]),
		Entry:         binary.BigEndian.Uint32(raw[8:12]),
		Mode:          archmode.Mode(raw[12]),
	}, nil
}

func encodeVolume(h VolumeHeader, magic string) []byte {
	raw := make([]byte, BlockSize)

	copy(raw[0:4], magic)
	binary.BigEndian.PutUint32(raw[4:8], h.DeclaredTotal)
	binary.BigEndian.PutUint32(raw[8:12], h.Entry)
	raw[12] = byte(h.Mode)

	return raw
}
