package chanio

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/lowcore/nucleus/kernel/devtab"
	"github.com/lowcore/nucleus/kernel/mempool"
	"github.com/lowcore/nucleus/machine"
)

type alwaysStartedProber struct{}

func (alwaysStartedProber) Probe(addr uint16) int {
	return machine.CCStarted
}

var _ = Describe("Executor", func() {
	var (
		mockCtrl *gomock.Controller
		sys      *MockSystem
		table    *devtab.Table
		reader   *devtab.Entry
		executor *Executor
		req      Request
	)

	bothEnds := machine.UnitChannelEnd | machine.UnitDeviceEnd

	interrupt := func(dev uint16, unit, channel uint8) machine.Interruption {
		return machine.Interruption{
			DeviceAddr: dev,
			CSW:        machine.CSW{Unit: unit, Channel: channel},
		}
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sys = NewMockSystem(mockCtrl)

		pool := mempool.New(0x1000, 0x1000)
		var err error
		table, err = devtab.New(pool, alwaysStartedProber{}, 4)
		Expect(err).ToNot(HaveOccurred())

		reader, err = table.Register(0x00C, devtab.SubclassReader, false)
		Expect(err).ToNot(HaveOccurred())

		executor = NewExecutor(sys, table)
		req = Request{
			Block: ControlBlock{
				EntryAddr:   uint32(table.EntryAddr(0)),
				ProgramAddr: 0x500,
			},
			Wait: WaitBoth,
		}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should complete when channel end and device end arrive separately", func() {
		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCStarted)
		sys.EXPECT().
			WaitForIOInterrupt().
			Return(interrupt(0x00C, machine.UnitChannelEnd, 0))
		sys.EXPECT().
			WaitForIOInterrupt().
			Return(interrupt(0x00C, machine.UnitDeviceEnd, 0))

		outcome, err := executor.Execute(req)

		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(OutcomeSuccess))
		Expect(reader.AccumUnit).To(Equal(bothEnds))
		Expect(reader.Status & devtab.StatusBusy).To(BeZero())
	})

	It("should return early when the mask only asks for channel end", func() {
		req.Wait = WaitChannelEnd

		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCStarted)
		sys.EXPECT().
			WaitForIOInterrupt().
			Return(interrupt(0x00C, machine.UnitChannelEnd, 0))

		outcome, err := executor.Execute(req)

		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(OutcomeSuccess))
	})

	It("should record status for another device and resume waiting", func() {
		console, err := table.Register(
			0x009, devtab.ClassAttention|devtab.SubclassConsole, false)
		Expect(err).ToNot(HaveOccurred())

		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCStarted)
		sys.EXPECT().
			WaitForIOInterrupt().
			Return(interrupt(0x009, machine.UnitAttention, 0))
		sys.EXPECT().
			WaitForIOInterrupt().
			Return(interrupt(0x00C, bothEnds, 0))

		outcome, err := executor.Execute(req)

		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(OutcomeSuccess))
		Expect(console.Pending).To(Equal(devtab.ActionReadData))
		Expect(console.Status & devtab.StatusActionPending).ToNot(BeZero())
	})

	It("should surface a unit check and queue a sense read", func() {
		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCStarted)
		sys.EXPECT().
			WaitForIOInterrupt().
			Return(interrupt(0x00C, bothEnds|machine.UnitCheck, 0))

		outcome, err := executor.Execute(req)

		Expect(err).To(MatchError(ErrUnitCheck))
		Expect(outcome).To(Equal(OutcomeDeviceError))
		Expect(reader.Pending).To(Equal(devtab.ActionReadSense))
		Expect(reader.Status & devtab.StatusSensePending).ToNot(BeZero())
		Expect(reader.Status & devtab.StatusBusy).To(BeZero())
	})

	It("should report a channel error", func() {
		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCStarted)
		sys.EXPECT().
			WaitForIOInterrupt().
			Return(interrupt(0x00C, machine.UnitChannelEnd,
				machine.ChanProgramCheck))

		outcome, err := executor.Execute(req)

		Expect(err).To(MatchError(ErrChannelError))
		Expect(outcome).To(Equal(OutcomeDeviceError))
	})

	It("should report physical end-of-medium for an end-of-medium device", func() {
		_, err := table.Register(
			0x00D, devtab.ClassEndOfMedium|devtab.SubclassReader, false)
		Expect(err).ToNot(HaveOccurred())

		req.Block.EntryAddr = uint32(table.EntryAddr(1))

		sys.EXPECT().
			StartIO(uint16(0x00D), uint8(0), uint32(0x500)).
			Return(machine.CCStarted)
		sys.EXPECT().
			WaitForIOInterrupt().
			Return(interrupt(0x00D, bothEnds|machine.UnitException, 0))

		outcome, err := executor.Execute(req)

		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(OutcomePhysicalEOF))
	})

	It("should report a device that is not operational", func() {
		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCNotOperational)

		outcome, err := executor.Execute(req)

		Expect(err).To(MatchError(ErrNotOperational))
		Expect(outcome).To(Equal(OutcomeDeviceUnavailable))
	})

	It("should report a busy device", func() {
		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCBusy)

		outcome, err := executor.Execute(req)

		Expect(err).To(MatchError(ErrDeviceBusy))
		Expect(outcome).To(Equal(OutcomeDeviceUnavailable))
	})

	It("should fold a stored CSW into the completion state", func() {
		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCStatusStored)
		sys.EXPECT().
			StoredCSW().
			Return(machine.CSW{Unit: bothEnds, Residual: 6}, true)

		outcome, err := executor.Execute(req)

		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(OutcomeSuccess))
		Expect(reader.Residual).To(Equal(uint16(6)))
	})

	It("should fail when the promised CSW is missing", func() {
		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCStatusStored)
		sys.EXPECT().
			StoredCSW().
			Return(machine.CSW{}, false)

		outcome, err := executor.Execute(req)

		Expect(err).To(MatchError(ErrNoStatus))
		Expect(outcome).To(Equal(OutcomeDeviceError))
	})

	It("should return without waiting under the no-wait policy", func() {
		req.Wait = NoWait

		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCStarted)

		outcome, err := executor.Execute(req)

		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(OutcomeSuccess))
	})

	It("should reject an entry address outside the table", func() {
		req.Block.EntryAddr = uint32(table.Limit())

		outcome, err := executor.Execute(req)

		Expect(err).To(MatchError(ErrBadEntryAddr))
		Expect(outcome).To(Equal(OutcomeInvalidRequest))
	})

	It("should reject a misaligned channel-program address", func() {
		req.Block.ProgramAddr = 0x502

		outcome, err := executor.Execute(req)

		Expect(err).To(MatchError(ErrBadAlignment))
		Expect(outcome).To(Equal(OutcomeInvalidRequest))
	})

	It("should reject a format-1 block without subchannel I/O support", func() {
		req.Block.Format31 = true

		sys.EXPECT().
			Config().
			Return(machine.Config{AddressWidth: 24})

		outcome, err := executor.Execute(req)

		Expect(err).To(MatchError(ErrFormatSupport))
		Expect(outcome).To(Equal(OutcomeInvalidRequest))
	})

	It("should refuse a second request while one is outstanding", func() {
		sys.EXPECT().
			StartIO(uint16(0x00C), uint8(0), uint32(0x500)).
			Return(machine.CCStarted)
		sys.EXPECT().
			WaitForIOInterrupt().
			DoAndReturn(func() machine.Interruption {
				outcome, err := executor.Execute(req)
				Expect(err).To(MatchError(ErrOutstanding))
				Expect(outcome).To(Equal(OutcomeInvalidRequest))

				return interrupt(0x00C, bothEnds, 0)
			})

		outcome, err := executor.Execute(req)

		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(OutcomeSuccess))
	})
})
