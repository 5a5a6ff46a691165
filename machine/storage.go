package machine

import "errors"

// ErrOutOfBounds is returned when an access reaches past the end of the
// emulated core.
var ErrOutOfBounds = errors.New("storage access beyond capacity")

// A Storage keeps the contents of the emulated core.
//
// Storage manages its backing memory in fixed-size units and allocates a
// unit only when it is first touched, so a large core image costs memory
// proportional to the bytes actually written.
type Storage struct {
	unitSize uint64
	capacity uint64
	units    map[uint64][]byte
}

// NewStorage creates a Storage with the given capacity in bytes.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		unitSize: 4096,
		capacity: capacity,
		units:    make(map[uint64][]byte),
	}
}

// Capacity returns the size of the emulated core in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) unit(addr uint64) ([]byte, error) {
	if addr >= s.capacity {
		return nil, ErrOutOfBounds
	}

	base := addr - addr%s.unitSize
	u, ok := s.units[base]
	if !ok {
		u = make([]byte, s.unitSize)
		s.units[base] = u
	}

	return u, nil
}

// Read copies n bytes starting at addr out of the core.
func (s *Storage) Read(addr, n uint64) ([]byte, error) {
	if n > 0 && addr+n > s.capacity {
		return nil, ErrOutOfBounds
	}

	out := make([]byte, n)
	offset := uint64(0)

	for offset < n {
		u, err := s.unit(addr + offset)
		if err != nil {
			return nil, err
		}

		inUnit := (addr + offset) % s.unitSize
		chunk := s.unitSize - inUnit
		if left := n - offset; left < chunk {
			chunk = left
		}

		copy(out[offset:offset+chunk], u[inUnit:inUnit+chunk])
		offset += chunk
	}

	return out, nil
}

// Write copies data into the core starting at addr.
func (s *Storage) Write(addr uint64, data []byte) error {
	n := uint64(len(data))
	if n > 0 && addr+n > s.capacity {
		return ErrOutOfBounds
	}

	offset := uint64(0)
	for offset < n {
		u, err := s.unit(addr + offset)
		if err != nil {
			return err
		}

		inUnit := (addr + offset) % s.unitSize
		chunk := s.unitSize - inUnit
		if left := n - offset; left < chunk {
			chunk = left
		}

		copy(u[inUnit:inUnit+chunk], data[offset:offset+chunk])
		offset += chunk
	}

	return nil
}
