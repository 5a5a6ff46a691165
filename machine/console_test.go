package machine_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowcore/nucleus/machine"
)

func TestConsoleWriteEmitsLine(t *testing.T) {
	var out bytes.Buffer
	c := machine.NewConsole(&out)

	res := c.Exec(machine.CmdWrite, []byte("nucleus ready"))

	assert.Equal(t, machine.UnitChannelEnd|machine.UnitDeviceEnd, res.Unit)
	assert.Equal(t, 13, res.Count)
	assert.Equal(t, "nucleus ready\n", out.String())
}

func TestConsoleSubmitRaisesAttention(t *testing.T) {
	m := machine.NewMachine(1<<20, machine.Config{AddressWidth: 24})
	c := machine.NewConsole(&bytes.Buffer{})
	m.Attach(0x009, c)

	c.Submit("ipl 00c")

	intr := m.WaitForIOInterrupt()
	assert.True(t, intr.Unsolicited)
	assert.Equal(t, uint16(0x009), intr.DeviceAddr)
	assert.Equal(t, machine.UnitAttention, intr.CSW.Unit)
}

func TestConsoleReadDeliversQueuedInput(t *testing.T) {
	c := machine.NewConsole(&bytes.Buffer{})
	c.Submit("first")
	c.Submit("second")

	buf := make([]byte, 16)
	res := c.Exec(machine.CmdRead, buf)
	require.Equal(t, 5, res.Count)
	assert.Equal(t, "first", string(buf[:res.Count]))

	res = c.Exec(machine.CmdRead, buf)
	assert.Equal(t, "second", string(buf[:res.Count]))
}

func TestConsoleReadWithoutInputNeedsIntervention(t *testing.T) {
	c := machine.NewConsole(&bytes.Buffer{})

	res := c.Exec(machine.CmdRead, make([]byte, 16))
	require.NotZero(t, res.Unit&machine.UnitCheck)
	assert.Equal(t, machine.SenseIntervention, res.Sense)

	buf := make([]byte, 1)
	res = c.Exec(machine.CmdSense, buf)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, machine.SenseIntervention, buf[0])

	// Sense is cleared by being read.
	res = c.Exec(machine.CmdSense, buf)
	assert.Zero(t, buf[0])
}

func TestConsoleRejectsUnknownCommand(t *testing.T) {
	c := machine.NewConsole(&bytes.Buffer{})

	res := c.Exec(machine.CmdReadBackward, make([]byte, 8))
	assert.NotZero(t, res.Unit&machine.UnitCheck)
	assert.Equal(t, machine.SenseCommandReject, res.Sense)
}
