package clockpin

import (
	"fmt"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/scheduler"
)

// edgeRecorder is a listener that writes down every callback.
type edgeRecorder struct {
	calls    []string
	onSignal func(pin *ClockPin, t emutime.EmuTime)
}

func (r *edgeRecorder) Signal(pin *ClockPin, t emutime.EmuTime) {
	r.calls = append(r.calls, fmt.Sprintf("signal@%d", t))
	if r.onSignal != nil {
		r.onSignal(pin, t)
	}
}

func (r *edgeRecorder) SignalPosEdge(_ *ClockPin, t emutime.EmuTime) {
	r.calls = append(r.calls, fmt.Sprintf("pos@%d", t))
}

func tickByTickRisingEdges(pin *ClockPin, begin, end emutime.EmuTime) uint64 {
	var n uint64

	for t := begin; t < end; t++ {
		prev := false
		if t > 0 {
			prev = pin.State(t - 1)
		}

		if pin.State(t) && !prev {
			n++
		}
	}

	return n
}

var _ = Describe("ClockPin", func() {
	var (
		mockCtrl *gomock.Controller
		sched    *scheduler.Scheduler
		listener *MockListener
		pin      *ClockPin
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sched = scheduler.NewScheduler()
		listener = NewMockListener(mockCtrl)
		pin = NewClockPin("pin", sched, listener)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should hold a static level", func() {
		Expect(pin.State(0)).To(BeFalse())

		pin.SetState(true, 10)

		Expect(pin.IsPeriodic()).To(BeFalse())
		Expect(pin.State(1000)).To(BeTrue())
		Expect(pin.TicksBetween(0, 1000)).To(BeZero())
	})

	It("should follow a periodic waveform", func() {
		pin.SetPeriodicState(100, 30, 0)

		Expect(pin.IsPeriodic()).To(BeTrue())
		Expect(pin.TotalDuration()).To(Equal(emutime.EmuDuration(100)))
		Expect(pin.HighDuration()).To(Equal(emutime.EmuDuration(30)))
		Expect(pin.State(10)).To(BeTrue())
		Expect(pin.State(50)).To(BeFalse())
		Expect(pin.State(129)).To(BeTrue())
		Expect(pin.State(130)).To(BeFalse())
		Expect(pin.State(200)).To(BeTrue())
		Expect(pin.TicksBetween(0, 1000)).To(Equal(uint64(10)))
	})

	It("should count edges like a tick-by-tick simulation", func() {
		rng := rand.New(rand.NewSource(7))

		for i := 0; i < 200; i++ {
			total := emutime.EmuDuration(2 + rng.Intn(40))
			hi := emutime.EmuDuration(1 + rng.Intn(int(total)-1))
			ref := emutime.EmuTime(rng.Intn(50))
			begin := emutime.EmuTime(rng.Intn(200))
			end := begin + emutime.EmuTime(rng.Intn(300))

			pin.SetPeriodicState(total, hi, ref)

			Expect(pin.TicksBetween(begin, end)).To(
				Equal(tickByTickRisingEdges(pin, begin, end)),
				"total %d hi %d ref %d [%d, %d)", total, hi, ref, begin, end)
		}
	})

	It("should have no edges on a flat waveform", func() {
		pin.SetPeriodicState(10, 0, 0)
		Expect(pin.State(5)).To(BeFalse())
		Expect(pin.TicksBetween(0, 100)).To(BeZero())

		pin.SetPeriodicState(10, 10, 0)
		Expect(pin.State(5)).To(BeTrue())
		Expect(pin.TicksBetween(0, 100)).To(BeZero())
	})

	It("should reject an invalid waveform", func() {
		Expect(func() { pin.SetPeriodicState(0, 0, 0) }).To(Panic())
		Expect(func() { pin.SetPeriodicState(10, 11, 0) }).To(Panic())
	})

	It("should not schedule anything without edge signals", func() {
		pin.SetPeriodicState(100, 30, 0)
		pin.SetState(true, 5)
		pin.SetPeriodicState(100, 30, 10)

		Expect(sched.Len()).To(BeZero())
	})

	It("should signal a single static edge", func() {
		t0 := emutime.EmuTime(1000)
		pin.SetState(true, t0)
		pin.GenerateEdgeSignals(true, t0)

		listener.EXPECT().Signal(pin, t0+5).Times(1)

		pin.SetState(false, t0+5)
		sched.Advance(t0 + 100)
	})

	It("should signal rising static edges", func() {
		pin.GenerateEdgeSignals(true, 0)

		signal := listener.EXPECT().Signal(pin, emutime.EmuTime(7))
		listener.EXPECT().SignalPosEdge(pin, emutime.EmuTime(7)).After(signal)

		pin.SetState(true, 7)
		pin.SetState(true, 9)
	})

	It("should panic when edge signals have no listener", func() {
		silent := NewClockPin("silent", sched, nil)

		Expect(func() { silent.GenerateEdgeSignals(true, 0) }).To(Panic())
	})
})

var _ = Describe("ClockPin edge signals", func() {
	var (
		sched    *scheduler.Scheduler
		recorder *edgeRecorder
		pin      *ClockPin
	)

	BeforeEach(func() {
		sched = scheduler.NewScheduler()
		recorder = &edgeRecorder{}
		pin = NewClockPin("pin", sched, recorder)
	})

	It("should signal every edge of a periodic waveform", func() {
		pin.GenerateEdgeSignals(true, 0)
		pin.SetPeriodicState(100, 30, 0)

		sched.Advance(250)

		Expect(recorder.calls).To(Equal([]string{
			"signal@0", "pos@0",
			"signal@30",
			"signal@100", "pos@100",
			"signal@130",
			"signal@200", "pos@200",
			"signal@230",
		}))
	})

	It("should start with the next edge when turned on mid-period", func() {
		pin.SetPeriodicState(100, 30, 0)
		pin.GenerateEdgeSignals(true, 140)

		sched.Advance(230)

		Expect(recorder.calls).To(Equal([]string{
			"signal@200", "pos@200",
			"signal@230",
		}))
	})

	It("should stop signalling when turned off", func() {
		pin.SetPeriodicState(100, 30, 0)
		pin.GenerateEdgeSignals(true, 0)
		sched.Advance(50)

		pin.GenerateEdgeSignals(false, 50)
		sched.Advance(1000)

		Expect(recorder.calls).To(Equal([]string{"signal@0", "pos@0", "signal@30"}))
		Expect(sched.Len()).To(BeZero())
	})

	It("should stop when the listener turns edge signals off", func() {
		recorder.onSignal = func(p *ClockPin, t emutime.EmuTime) {
			if t == 130 {
				p.GenerateEdgeSignals(false, t)
			}
		}
		pin.SetPeriodicState(100, 30, 0)
		pin.GenerateEdgeSignals(true, 0)

		sched.Advance(1000)

		Expect(recorder.calls).To(Equal([]string{
			"signal@0", "pos@0",
			"signal@30",
			"signal@100", "pos@100",
			"signal@130",
		}))
		Expect(sched.Len()).To(BeZero())
	})

	It("should drop stale edges when the listener changes the waveform", func() {
		recorder.onSignal = func(p *ClockPin, t emutime.EmuTime) {
			if t == 130 {
				p.SetPeriodicState(50, 10, 160)
			}
		}
		pin.SetPeriodicState(100, 30, 0)
		pin.GenerateEdgeSignals(true, 0)

		sched.Advance(230)

		Expect(recorder.calls).To(Equal([]string{
			"signal@0", "pos@0",
			"signal@30",
			"signal@100", "pos@100",
			"signal@130",
			"signal@160", "pos@160",
			"signal@170",
			"signal@210", "pos@210",
			"signal@220",
		}))
	})

	It("should resume identical edges after a state restore", func() {
		pin.SetPeriodicState(100, 30, 0)
		pin.GenerateEdgeSignals(true, 0)
		sched.Advance(120)

		pinState, err := pin.MarshalState()
		Expect(err).NotTo(HaveOccurred())
		schedState := sched.State()

		seen := len(recorder.calls)
		sched.Advance(400)
		expected := recorder.calls[seen:]

		restoredRecorder := &edgeRecorder{}
		restoredSched := scheduler.NewScheduler()
		restored := NewClockPin("pin", restoredSched, restoredRecorder)
		Expect(restored.UnmarshalState(pinState)).To(Succeed())
		Expect(restoredSched.SetState(schedState, scheduler.MapResolver(
			map[string]scheduler.Schedulable{"pin": restored},
		))).To(Succeed())

		restoredSched.Advance(400)

		Expect(restoredRecorder.calls).To(Equal(expected))
	})
})
