package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/lowcore/nucleus/iotrace"
	"github.com/lowcore/nucleus/kernel"
	"github.com/lowcore/nucleus/kernel/archmode"
	"github.com/lowcore/nucleus/kernel/fault"
	"github.com/lowcore/nucleus/kernel/ipl"
	"github.com/lowcore/nucleus/machine"
	"github.com/lowcore/nucleus/monitoring"
)

var bootFlags struct {
	coreSize      uint64
	addressWidth  int
	subchannelIO  bool
	consoleAddr   uint16
	bootAddr      uint16
	arenaBase     uint64
	arenaSize     uint64
	highWater     uint64
	tableCapacity int
	tracePath     string
	monitor       bool
	monitorPort   int
	openBrowser   bool
}

var bootCmd = &cobra.Command{
	Use:   "boot <image>",
	Short: "Boot a directed-record image on the emulated machine.",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoot,
}

func init() {
	f := bootCmd.Flags()

	f.Uint64Var(&bootFlags.coreSize, "core-size", 16<<20,
		"emulated core size in bytes")
	f.IntVar(&bootFlags.addressWidth, "arch", 31,
		"hardware address width: 24, 31, or 64")
	f.BoolVar(&bootFlags.subchannelIO, "subchannel-io", true,
		"emulate subchannel I/O (31-bit channel-program addresses)")
	f.Uint16Var(&bootFlags.consoleAddr, "console-device", 0x009,
		"device address of the line console")
	f.Uint16Var(&bootFlags.bootAddr, "boot-device", 0x00C,
		"device address of the boot device")
	f.Uint64Var(&bootFlags.arenaBase, "arena-base", 0x1000,
		"base address of the kernel scratch arena")
	f.Uint64Var(&bootFlags.arenaSize, "arena-size", 0x1000,
		"size of the kernel scratch arena in bytes")
	f.Uint64Var(&bootFlags.highWater, "high-water", 0x2000,
		"highest address of the resident kernel; loads below it are refused")
	f.IntVar(&bootFlags.tableCapacity, "device-table-capacity", 16,
		"device table capacity in entries")
	f.StringVar(&bootFlags.tracePath, "trace",
		envDefault("NUCLEUS_TRACE", ""),
		"record channel-I/O operations into this SQLite database")
	f.BoolVar(&bootFlags.monitor, "monitor", false,
		"serve the inspection API while booting")
	f.IntVar(&bootFlags.monitorPort, "monitor-port", 0,
		"port for the inspection API; 0 picks one")
	f.BoolVar(&bootFlags.openBrowser, "open-browser", false,
		"open the inspection API in the default browser")

	rootCmd.AddCommand(bootCmd)
}

func runBoot(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	if _, ok := archmode.FromWidth(bootFlags.addressWidth); !ok {
		return fmt.Errorf("unsupported address width %d", bootFlags.addressWidth)
	}

	m := machine.NewMachine(bootFlags.coreSize, machine.Config{
		AddressWidth:         bootFlags.addressWidth,
		SupportsSubchannelIO: bootFlags.subchannelIO,
	})
	m.Attach(bootFlags.consoleAddr, machine.NewConsole(os.Stdout))
	m.Attach(bootFlags.bootAddr, machine.NewBootDisk(image))

	var tracer *iotrace.Tracer
	if bootFlags.tracePath != "" {
		tracer = iotrace.NewTracer(iotrace.New(bootFlags.tracePath))
	}

	k := kernel.New(m, kernel.Config{
		ArenaBase: bootFlags.arenaBase,
		ArenaSize: bootFlags.arenaSize,
		Tracer:    tracer,
	})

	if bootFlags.monitor {
		mon := monitoring.NewMonitor(k, m).
			WithPortNumber(bootFlags.monitorPort)
		if bootFlags.openBrowser {
			mon = mon.WithBrowser()
		}
		mon.StartServer()
	}

	handoff, err := k.Boot(ipl.Config{
		BootDevice:    bootFlags.bootAddr,
		HighWater:     bootFlags.highWater,
		TableCapacity: bootFlags.tableCapacity,
		CurrentMode:   archmode.Addr24,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		var f *fault.Fault
		if errors.As(err, &f) {
			// The wait-state code is the process exit code, so a failed
			// boot can be diagnosed from scripts.
			atexit.Exit(int(f.Code))
		}
		atexit.Exit(1)
	}

	fmt.Printf("load complete: %d bytes, entering %#06x in %v mode\n",
		handoff.BytesLoaded, handoff.Entry, handoff.Mode)

	atexit.Exit(0)

	return nil
}
