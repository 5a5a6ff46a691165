package machine

// Unit-status bits a device presents when a channel command completes.
// The encoding follows the System/370 channel convention and must stay
// bit-exact: the kernel's completion analysis masks these directly.
const (
	UnitAttention      uint8 = 0x80 // unsolicited attention
	UnitStatusModifier uint8 = 0x40
	UnitControlEnd     uint8 = 0x20
	UnitBusy           uint8 = 0x10
	UnitChannelEnd     uint8 = 0x08
	UnitDeviceEnd      uint8 = 0x04
	UnitCheck          uint8 = 0x02 // sense data available
	UnitException      uint8 = 0x01 // physical end-of-medium on devices that use it
)

// Channel-status bits reported in the completion word.
const (
	ChanPCI             uint8 = 0x80 // program-controlled interruption
	ChanIncorrectLength uint8 = 0x40
	ChanProgramCheck    uint8 = 0x20
	ChanProtectionCheck uint8 = 0x10
	ChanDataCheck       uint8 = 0x08
	ChanControlCheck    uint8 = 0x04
	ChanInterfaceCheck  uint8 = 0x02
	ChanChainingCheck   uint8 = 0x01
)

// Sense bits a device latches after presenting unit check.
const (
	SenseCommandReject uint8 = 0x80
	SenseIntervention  uint8 = 0x40
	SenseBusOutCheck   uint8 = 0x20
	SenseEquipCheck    uint8 = 0x10
	SenseDataCheck     uint8 = 0x08
	SenseOverrun       uint8 = 0x02
)

// Channel command codes.
const (
	CmdWrite        uint8 = 0x01
	CmdRead         uint8 = 0x02
	CmdNOP          uint8 = 0x03
	CmdSense        uint8 = 0x04
	CmdTIC          uint8 = 0x08
	CmdReadBackward uint8 = 0x0C
)

// A Result describes the completion of one channel command on a device.
type Result struct {
	// Count is the number of bytes the device actually transferred in or
	// out of the data buffer.
	Count int

	// Unit carries the unit-status bits for this command.
	Unit uint8

	// Sense carries the sense byte latched when Unit includes UnitCheck.
	Sense uint8
}

// A Device serves channel commands for one device address.
//
// Exec receives the command code and the data buffer the channel prepared
// for it. For read-class commands the device fills the buffer; for
// write-class commands the buffer holds the data fetched from storage.
// Exec must never block: a device completes every command it accepts.
type Device interface {
	Name() string

	// Ready reports whether the device is operational. A device that is
	// not ready answers condition code 3 to any start attempt.
	Ready() bool

	// Busy reports whether the device is holding status for an earlier
	// operation. A busy device answers condition code 2.
	Busy() bool

	Exec(cmd uint8, data []byte) Result
}

// An AttentionBinder is implemented by devices that raise unsolicited
// status, such as a console signalling operator input. The machine binds
// the device to its interruption queue when the device is attached.
type AttentionBinder interface {
	BindAttention(post func(unit uint8))
}
