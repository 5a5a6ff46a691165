package chanio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowcore/nucleus/kernel/chanio"
)

func TestDecodeRejectsMalformedBlocks(t *testing.T) {
	good := chanio.ControlBlock{
		EntryAddr:   0x1000,
		Key:         0x4,
		PathMask:    0x80,
		ProgramAddr: 0x500,
	}

	tests := []struct {
		name   string
		mangle func(raw []byte)
		want   error
	}{
		{
			name:   "low nibble of the key byte",
			mangle: func(raw []byte) { raw[4] |= 0x01 },
			want:   chanio.ErrReservedBits,
		},
		{
			name:   "undefined format flag",
			mangle: func(raw []byte) { raw[5] |= 0x01 },
			want:   chanio.ErrReservedBits,
		},
		{
			name:   "reserved byte seven",
			mangle: func(raw []byte) { raw[7] = 0xFF },
			want:   chanio.ErrReservedBits,
		},
		{
			name:   "reserved tail",
			mangle: func(raw []byte) { raw[14] = 0x01 },
			want:   chanio.ErrReservedBits,
		},
		{
			name:   "program address beyond 24 bits in format 0",
			mangle: func(raw []byte) { raw[8] = 0x01 },
			want:   chanio.ErrBadProgram,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := good.Encode()
			tt.mangle(raw)

			_, err := chanio.Decode(raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := chanio.Decode(make([]byte, chanio.ControlBlockSize-1))
	assert.ErrorIs(t, err, chanio.ErrShortBlock)
}

func TestEncodeDecodeFormat1(t *testing.T) {
	b := chanio.ControlBlock{
		EntryAddr:   0x1020,
		Key:         0xF,
		Format31:    true,
		PathMask:    0x01,
		ProgramAddr: 0x0100_0000, // out of range for format 0
	}

	got, err := chanio.Decode(b.Encode())
	require.NoError(t, err)
	assert.Equal(t, b, got)

	b.ProgramAddr = 0x8000_0000
	_, err = chanio.Decode(b.Encode())
	assert.ErrorIs(t, err, chanio.ErrBadProgram)
}
