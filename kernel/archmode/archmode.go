// Package archmode decides whether an entry point's requested addressing
// mode can run on the current hardware, and what mode switch that takes.
// One ordered generation table replaces per-generation code variants.
package archmode

import "fmt"

// Mode is a hardware addressing generation.
type Mode int

// Known generations, oldest first.
const (
	Addr24 Mode = iota
	Addr31
	Addr64
)

// Width returns the address width of the mode in bits.
func (m Mode) Width() int {
	switch m {
	case Addr24:
		return 24
	case Addr31:
		return 31
	case Addr64:
		return 64
	default:
		return 0
	}
}

func (m Mode) String() string {
	if m.Width() == 0 {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return fmt.Sprintf("%d-bit", m.Width())
}

// FromWidth maps an address width in bits to its mode.
func FromWidth(width int) (Mode, bool) {
	switch width {
	case 24:
		return Addr24, true
	case 31:
		return Addr31, true
	case 64:
		return Addr64, true
	default:
		return 0, false
	}
}

// Verdict is the result of a compatibility check.
type Verdict int

// Verdicts.
const (
	Compatible Verdict = iota
	Upgrade
	Downgrade
	Incompatible
)

// Check compares the mode an entry point requests against the mode the
// kernel currently runs in and the highest mode the hardware supports.
// Upgrade and Downgrade carry the mode to switch to before transferring
// control; Incompatible is fatal to the boot.
func Check(requested, current, ceiling Mode) (Verdict, Mode) {
	if requested.Width() == 0 || requested > ceiling {
		return Incompatible, current
	}

	switch {
	case requested == current:
		return Compatible, current
	case requested > current:
		return Upgrade, requested
	default:
		return Downgrade, requested
	}
}
