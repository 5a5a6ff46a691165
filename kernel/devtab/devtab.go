// Package devtab implements the kernel's device table: a fixed-capacity,
// append-only array of device descriptors carved out of the memory pool.
// Each entry tracks one device's address, class, and latest completion
// status; the channel-I/O machinery is the only writer of the status
// fields.
package devtab

import (
	"errors"

	"github.com/lowcore/nucleus/kernel/mempool"
	"github.com/lowcore/nucleus/machine"
)

// Class describes what a device is and which completion conventions it
// follows.
type Class uint8

// Class flag bits. The low nibble is the device subclass.
const (
	// ClassEndOfMedium marks devices that present unit exception to mean
	// physical end-of-medium.
	ClassEndOfMedium Class = 0x80

	// ClassAttention marks devices that raise unsolicited attention,
	// such as the console.
	ClassAttention Class = 0x40

	// ClassSubclassMask extracts the device subclass.
	ClassSubclassMask Class = 0x0F
)

// Subclasses.
const (
	SubclassConsole Class = 0x01
	SubclassReader  Class = 0x02
)

// Entry status flag bits.
const (
	StatusBusy          uint8 = 0x80
	StatusStatusPending uint8 = 0x40
	StatusActionPending uint8 = 0x20
	StatusSensePending  uint8 = 0x10
)

// PendingAction names what the loaded program must do for a device that
// raised unsolicited or error status.
type PendingAction uint8

// Pending actions.
const (
	ActionNone PendingAction = iota
	ActionReadSense
	ActionReadData
)

// EntrySize is the storage footprint of one table entry in bytes. Entry
// addresses handed to callers are base + index*EntrySize.
const EntrySize = 32

// An Entry is one device descriptor.
type Entry struct {
	DeviceAddr uint16
	Class      Class

	// Status holds the busy/pending flags. Busy implies every pending
	// flag is clear.
	Status uint8

	// AccumUnit and AccumChannel accumulate completion status across the
	// interruptions of one operation.
	AccumUnit    uint8
	AccumChannel uint8

	// Residual is the byte count left over by the last completion.
	Residual uint16

	// Sense is the sense byte captured after a unit check.
	Sense uint8

	Pending   PendingAction
	ErrorMask uint8

	// Private is one word reserved for the loaded program.
	Private uint64
}

// Registration and lookup errors.
var (
	ErrNotFound       = errors.New("device not in table")
	ErrTableFull      = errors.New("device table full")
	ErrClassMismatch  = errors.New("device already registered with a different class")
	ErrNotOperational = errors.New("device not operational")
	ErrBusy           = errors.New("device busy")
	ErrNoPool         = errors.New("pool too small for device table")
)

// A Prober answers condition codes for device operability checks.
type Prober interface {
	Probe(addr uint16) int
}

// A Table is the device table. It is append-only: entries are never
// removed, and registering a device twice yields the original entry.
type Table struct {
	prober  Prober
	base    uint64
	entries []Entry
	cap     int
}

// New reserves capacity entries from the pool and returns the
// zero-initialized table.
func New(pool *mempool.Pool, prober Prober, capacity int) (*Table, error) {
	base, got := pool.AllocLow(uint64(capacity) * EntrySize)
	if capacity > 0 && got == 0 {
		return nil, ErrNoPool
	}

	return &Table{
		prober:  prober,
		base:    base,
		entries: make([]Entry, 0, capacity),
		cap:     capacity,
	}, nil
}

// Base returns the address of the first entry.
func (t *Table) Base() uint64 {
	return t.base
}

// Limit returns the address one past the last possible entry.
func (t *Table) Limit() uint64 {
	return t.base + uint64(t.cap)*EntrySize
}

// Len returns the number of populated entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Capacity returns the fixed entry capacity.
func (t *Table) Capacity() int {
	return t.cap
}

// EntryAddr returns the table address of the populated entry at index i.
func (t *Table) EntryAddr(i int) uint64 {
	return t.base + uint64(i)*EntrySize
}

// ByAddr resolves a table address back to its entry. The address must
// point at a populated entry on an entry boundary.
func (t *Table) ByAddr(addr uint64) (*Entry, error) {
	if addr < t.base || addr >= t.Limit() {
		return nil, ErrNotFound
	}

	offset := addr - t.base
	if offset%EntrySize != 0 {
		return nil, ErrNotFound
	}

	i := int(offset / EntrySize)
	if i >= len(t.entries) {
		return nil, ErrNotFound
	}

	return &t.entries[i], nil
}

// Find returns the entry for a device address, scanning populated
// entries in order.
func (t *Table) Find(devAddr uint16) (*Entry, error) {
	i, err := t.FindIndex(devAddr)
	if err != nil {
		return nil, err
	}

	return &t.entries[i], nil
}

// FindIndex returns the index of the entry for a device address.
func (t *Table) FindIndex(devAddr uint16) (int, error) {
	for i := range t.entries {
		if t.entries[i].DeviceAddr == devAddr {
			return i, nil
		}
	}

	return 0, ErrNotFound
}

// Register adds a device to the table, probing it for operability first.
// Registering an already-present device returns the existing entry, or
// ErrClassMismatch if the recorded class differs from the request. When
// passThrough is set the operability probe is skipped: the boot sequence
// registers the boot device this way because the hardware has already
// proven it good.
func (t *Table) Register(
	devAddr uint16,
	class Class,
	passThrough bool,
) (*Entry, error) {
	if e, err := t.Find(devAddr); err == nil {
		if e.Class != class {
			return nil, ErrClassMismatch
		}
		return e, nil
	}

	if !passThrough {
		switch t.prober.Probe(devAddr) {
		case machine.CCNotOperational:
			return nil, ErrNotOperational
		case machine.CCBusy:
			return nil, ErrBusy
		}
	}

	if len(t.entries) >= t.cap {
		return nil, ErrTableFull
	}

	t.entries = append(t.entries, Entry{DeviceAddr: devAddr, Class: class})

	return &t.entries[len(t.entries)-1], nil
}

// QueryPending returns the first entry whose action-pending flag is set,
// or ErrNotFound when no device needs attention.
func (t *Table) QueryPending() (*Entry, error) {
	for i := range t.entries {
		if t.entries[i].Status&StatusActionPending != 0 {
			return &t.entries[i], nil
		}
	}

	return nil, ErrNotFound
}

// PendingCount returns how many entries have the action-pending flag
// set.
func (t *Table) PendingCount() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].Status&StatusActionPending != 0 {
			n++
		}
	}

	return n
}

// ClearOperation resets the per-operation completion state of an entry
// before a new request starts.
func (e *Entry) ClearOperation() {
	e.AccumUnit = 0
	e.AccumChannel = 0
	e.Residual = 0
	e.Status &^= StatusStatusPending
}

// NoteUnsolicited folds unsolicited status into the entry, marking the
// action the loaded program owes the device.
func (e *Entry) NoteUnsolicited(unit uint8) {
	e.AccumUnit |= unit

	switch {
	case unit&machine.UnitCheck != 0:
		e.Pending = ActionReadSense
		e.Status |= StatusActionPending | StatusSensePending
	case unit&machine.UnitAttention != 0:
		e.Pending = ActionReadData
		e.Status |= StatusActionPending
	default:
		e.Status |= StatusStatusPending
	}
}
