package machine

// BootBlockSize is the fixed block size the boot device serves.
const BootBlockSize = 512

// A BootDisk serves a boot medium image as a sequence of fixed-size
// blocks. Each read command delivers the next block; reading past the
// end of the image presents unit exception, the device's physical
// end-of-medium convention.
type BootDisk struct {
	image []byte
	pos   int
	sense uint8
	ready bool
}

// NewBootDisk creates a boot device over the given medium image.
func NewBootDisk(image []byte) *BootDisk {
	return &BootDisk{image: image, ready: true}
}

// Name identifies the device in diagnostics.
func (d *BootDisk) Name() string { return "bootdisk" }

// Ready reports whether the device is operational.
func (d *BootDisk) Ready() bool { return d.ready }

// Busy is always false: block reads complete immediately.
func (d *BootDisk) Busy() bool { return false }

// SetReady changes the operational state, for fault injection.
func (d *BootDisk) SetReady(ready bool) { d.ready = ready }

// Rewind repositions the device at the first block.
func (d *BootDisk) Rewind() { d.pos = 0 }

// Exec serves one channel command.
func (d *BootDisk) Exec(cmd uint8, data []byte) Result {
	switch cmd {
	case CmdNOP:
		return Result{Unit: UnitChannelEnd | UnitDeviceEnd}

	case CmdRead:
		if d.pos >= len(d.image) {
			return Result{Unit: UnitChannelEnd | UnitDeviceEnd | UnitException}
		}

		block := d.image[d.pos:]
		if len(block) > BootBlockSize {
			block = block[:BootBlockSize]
		}

		n := copy(data, block)
		d.pos += BootBlockSize

		return Result{Count: n, Unit: UnitChannelEnd | UnitDeviceEnd}

	case CmdSense:
		n := 0
		if len(data) > 0 {
			data[0] = d.sense
			n = 1
		}
		d.sense = 0
		return Result{Count: n, Unit: UnitChannelEnd | UnitDeviceEnd}

	default:
		d.sense = SenseCommandReject
		return Result{Unit: UnitChannelEnd | UnitDeviceEnd | UnitCheck, Sense: d.sense}
	}
}
