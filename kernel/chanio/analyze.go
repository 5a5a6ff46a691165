package chanio

import (
	"github.com/lowcore/nucleus/kernel/devtab"
	"github.com/lowcore/nucleus/machine"
)

type verdict int

const (
	verdictWait verdict = iota
	verdictSuccess
	verdictPhysicalEOF
	verdictUnitCheck
	verdictUnitError
	verdictChannelError
)

// endingStatus is the set of unit bits that describe normal progress
// rather than trouble.
const endingStatus = machine.UnitChannelEnd | machine.UnitDeviceEnd |
	machine.UnitControlEnd | machine.UnitStatusModifier

// analyze inspects accumulated completion status in a fixed order:
// channel errors first, then device errors (excluding bits the device
// class declares benign), then whether the caller's completion mask is
// satisfied, then the physical end-of-medium convention, and finally
// success. The order is part of the contract; callers depend on a unit
// check always being surfaced even when ending status is also present.
func analyze(class devtab.Class, unit, channel, mask uint8) verdict {
	if channel&^machine.ChanPCI != 0 {
		return verdictChannelError
	}

	benign := uint8(0)
	if class&devtab.ClassAttention != 0 {
		benign |= machine.UnitAttention
	}
	if class&devtab.ClassEndOfMedium != 0 {
		benign |= machine.UnitException
	}

	errBits := unit &^ endingStatus &^ benign
	if errBits&machine.UnitCheck != 0 {
		return verdictUnitCheck
	}
	if errBits != 0 {
		return verdictUnitError
	}

	if unit&mask != mask {
		return verdictWait
	}

	if unit&machine.UnitException != 0 && class&devtab.ClassEndOfMedium != 0 {
		return verdictPhysicalEOF
	}

	return verdictSuccess
}
