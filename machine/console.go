package machine

import (
	"io"
	"sync"
)

// A Console is the single line console. Writes go to the attached
// io.Writer one line per channel command. Operator input submitted
// through Submit is queued and announced with an unsolicited attention,
// to be collected later with a read command.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	input [][]byte
	sense uint8
	post  func(unit uint8)
}

// NewConsole creates a console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Name identifies the device in diagnostics.
func (c *Console) Name() string { return "console" }

// Ready reports the console operational whenever an output sink exists.
func (c *Console) Ready() bool { return c.out != nil }

// Busy is always false: console commands complete immediately.
func (c *Console) Busy() bool { return false }

// BindAttention connects the console to the machine's interruption
// queue. Called by Machine.Attach.
func (c *Console) BindAttention(post func(unit uint8)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.post = post
}

// Submit queues one line of operator input and raises attention.
func (c *Console) Submit(line string) {
	c.mu.Lock()
	c.input = append(c.input, []byte(line))
	post := c.post
	c.mu.Unlock()

	if post != nil {
		post(UnitAttention)
	}
}

// Exec serves one channel command.
func (c *Console) Exec(cmd uint8, data []byte) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd {
	case CmdNOP:
		return Result{Unit: UnitChannelEnd | UnitDeviceEnd}

	case CmdWrite:
		if _, err := c.out.Write(append(data, '\n')); err != nil {
			c.sense = SenseEquipCheck
			return Result{Unit: UnitChannelEnd | UnitDeviceEnd | UnitCheck, Sense: c.sense}
		}
		return Result{Count: len(data), Unit: UnitChannelEnd | UnitDeviceEnd}

	case CmdRead:
		if len(c.input) == 0 {
			c.sense = SenseIntervention
			return Result{Unit: UnitChannelEnd | UnitDeviceEnd | UnitCheck, Sense: c.sense}
		}
		line := c.input[0]
		c.input = c.input[1:]
		n := copy(data, line)
		return Result{Count: n, Unit: UnitChannelEnd | UnitDeviceEnd}

	case CmdSense:
		n := 0
		if len(data) > 0 {
			data[0] = c.sense
			n = 1
		}
		c.sense = 0
		return Result{Count: n, Unit: UnitChannelEnd | UnitDeviceEnd}

	default:
		c.sense = SenseCommandReject
		return Result{Unit: UnitChannelEnd | UnitDeviceEnd | UnitCheck, Sense: c.sense}
	}
}
