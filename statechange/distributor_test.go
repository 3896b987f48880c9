package statechange

import (
	"bytes"
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/hooking"
	"github.com/sarchlab/emucore/scheduler"
)

// pad is a minimal joystick: live is what the host says, status is what the
// emulated machine sees.
type pad struct {
	d      *Distributor
	port   int
	live   uint8
	status uint8

	statusAtStop uint8
}

func newPad(d *Distributor, port int) *pad {
	p := &pad{d: d, port: port, live: 0x3F, status: 0x3F}
	d.RegisterListener(p)

	return p
}

func (p *pad) setLive(live uint8) {
	p.live = live
	p.sync()
}

func (p *pad) sync() {
	press, release := Delta(p.status, p.live)
	if press == 0 && release == 0 {
		return
	}

	js, err := NewJoystickState(p.port, press, release)
	Expect(err).NotTo(HaveOccurred())
	p.d.DistributeNew(js)
}

func (p *pad) SignalStateChange(r Record) error {
	js, ok := r.Payload.(JoystickState)
	if !ok || js.Port != p.port {
		return nil
	}

	p.status = js.Apply(p.status)

	return nil
}

func (p *pad) StopReplay(emutime.EmuTime) {
	p.statusAtStop = p.status
	p.sync()
}

// sampler reads a pad when its sync point fires.
type sampler struct {
	p    *pad
	seen []uint8
}

func (s *sampler) Name() string { return "Sampler" }

func (s *sampler) ExecuteUntil(emutime.EmuTime, int) {
	s.seen = append(s.seen, s.p.status)
}

func joystick(port int, press, release uint8) JoystickState {
	js, err := NewJoystickState(port, press, release)
	Expect(err).NotTo(HaveOccurred())

	return js
}

var _ = Describe("Distributor", func() {
	var (
		mockCtrl *gomock.Controller
		sched    *scheduler.Scheduler
		d        *Distributor
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sched = scheduler.NewScheduler()
		d = NewDistributor(sched, nil)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should stamp and record live changes", func() {
		listener := NewMockListener(mockCtrl)
		d.RegisterListener(listener)
		js := joystick(0, 0x01, 0)

		listener.EXPECT().SignalStateChange(Record{Time: 500, Payload: js})

		sched.Advance(500)
		d.DistributeNew(js)

		Expect(d.Log().Records).To(Equal([]Record{{Time: 500, Payload: js}}))
	})

	It("should panic on unbalanced registration", func() {
		listener := NewMockListener(mockCtrl)
		d.RegisterListener(listener)

		Expect(func() { d.RegisterListener(listener) }).To(Panic())

		d.UnregisterListener(listener)

		Expect(func() { d.UnregisterListener(listener) }).To(Panic())
	})

	It("should skip a listener unregistered during delivery", func() {
		l1 := NewMockListener(mockCtrl)
		l2 := NewMockListener(mockCtrl)
		d.RegisterListener(l1)
		d.RegisterListener(l2)

		l1.EXPECT().SignalStateChange(gomock.Any()).DoAndReturn(func(Record) error {
			d.UnregisterListener(l2)
			return nil
		})

		d.DistributeNew(joystick(0, 0x01, 0))
	})

	It("should report listener errors and keep delivering", func() {
		l1 := NewMockListener(mockCtrl)
		l2 := NewMockListener(mockCtrl)
		d.RegisterListener(l1)
		d.RegisterListener(l2)

		var reported []error
		d.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosListenerError {
				reported = append(reported, ctx.Detail.(error))
			}
		}))

		failure := errors.New("malformed")
		l1.EXPECT().SignalStateChange(gomock.Any()).Return(failure)
		l2.EXPECT().SignalStateChange(gomock.Any()).Return(nil)

		d.DistributeNew(joystick(0, 0x01, 0))

		Expect(reported).To(ConsistOf(failure))
	})

	It("should pass records to the sink", func() {
		sink := NewMockSink(mockCtrl)
		d.SetSink(sink)
		js := joystick(1, 0, 0x02)

		sink.EXPECT().Append(Record{Time: 0, Payload: js}).Return(nil)

		d.DistributeNew(js)
	})

	It("should close the log and tell the sink", func() {
		sink := NewMockSink(mockCtrl)
		d.SetSink(sink)

		sink.EXPECT().Append(Record{Time: 700, Payload: EndOfLog{}})

		sched.Advance(700)
		d.EndLog()
		d.EndLog()

		Expect(d.Log().Finished()).To(BeTrue())
		Expect(d.Log().Len()).To(Equal(1))
	})

	Context("when replaying", func() {
		var (
			p   *pad
			log *Log
		)

		BeforeEach(func() {
			p = newPad(d, 0)
			log = NewLog()
			log.Append(Record{Time: 100, Payload: joystick(0, 0x01, 0)})
			log.Append(Record{Time: 200, Payload: joystick(0, 0x10, 0)})
			log.Append(Record{Time: 300, Payload: joystick(0, 0, 0x01)})
			log.Finish(400)
		})

		It("should apply records at their recorded times", func() {
			Expect(d.StartReplay(log)).To(Succeed())
			Expect(d.IsReplaying()).To(BeTrue())

			sched.Advance(150)
			Expect(p.status).To(Equal(uint8(0x3E)))
			done, total := d.ReplayProgress()
			Expect(done).To(Equal(1))
			Expect(total).To(Equal(4))

			sched.Advance(399)
			Expect(p.status).To(Equal(uint8(0x2F)))
			Expect(d.IsReplaying()).To(BeTrue())

			sched.Advance(1000)
			Expect(d.IsReplaying()).To(BeFalse())
		})

		It("should apply a record after the other sync points of its time", func() {
			Expect(d.StartReplay(log)).To(Succeed())
			smp := &sampler{p: p}
			sched.Schedule(smp, 100, 0)

			sched.Advance(250)

			Expect(smp.seen).To(Equal([]uint8{0x3F}))
			Expect(p.status).To(Equal(uint8(0x2E)))
		})

		It("should catch up with the live input when the replay stops", func() {
			p.live = 0x3E

			Expect(d.StartReplay(log)).To(Succeed())
			sched.Advance(1000)

			Expect(p.statusAtStop).To(Equal(uint8(0x2F)))
			Expect(p.status).To(Equal(uint8(0x3E)))
			Expect(d.Log().Records[d.Log().Len()-1]).To(Equal(
				Record{Time: 400, Payload: joystick(0, 0x01, 0x10)}))
		})

		It("should not synthesize anything when live input matches", func() {
			p.live = 0x2F

			Expect(d.StartReplay(log)).To(Succeed())
			sched.Advance(1000)

			Expect(d.Log().Len()).To(Equal(3))
		})

		It("should ignore live input by default", func() {
			Expect(d.StartReplay(log)).To(Succeed())
			sched.Advance(250)

			d.DistributeNew(joystick(0, 0x08, 0))

			Expect(d.IsReplaying()).To(BeTrue())
			Expect(d.Log().Len()).To(Equal(2))
			Expect(p.status).To(Equal(uint8(0x2E)))
		})

		It("should hand control to live input when asked to", func() {
			d.SetTakeControlOnInput(true)
			Expect(d.StartReplay(log)).To(Succeed())
			sched.Advance(250)

			p.setLive(0x37)

			Expect(d.IsReplaying()).To(BeFalse())
			Expect(p.status).To(Equal(uint8(0x37)))

			sched.Advance(1000)
			Expect(p.status).To(Equal(uint8(0x37)))
		})

		It("should tell listeners when the replay stops", func() {
			p.live = 0x2F
			listener := NewMockListener(mockCtrl)
			d.RegisterListener(listener)

			listener.EXPECT().SignalStateChange(gomock.Any()).Times(3)
			listener.EXPECT().StopReplay(emutime.EmuTime(400))

			Expect(d.StartReplay(log)).To(Succeed())
			sched.Advance(1000)
		})

		It("should stop at the last record of an unfinished log", func() {
			log.Records = log.Records[:2]
			p.live = 0x2E
			listener := NewMockListener(mockCtrl)
			d.RegisterListener(listener)

			listener.EXPECT().SignalStateChange(gomock.Any()).Times(2)
			listener.EXPECT().StopReplay(emutime.EmuTime(200))

			Expect(d.StartReplay(log)).To(Succeed())
			sched.Advance(1000)

			Expect(d.IsReplaying()).To(BeFalse())
		})

		It("should stop early on request", func() {
			Expect(d.StartReplay(log)).To(Succeed())
			sched.Advance(150)

			d.StopReplay(150)
			sched.Advance(1000)

			Expect(d.IsReplaying()).To(BeFalse())
			Expect(p.status).To(Equal(uint8(0x3F)))
			Expect(sched.Len()).To(BeZero())
		})

		It("should refuse a second replay", func() {
			Expect(d.StartReplay(log)).To(Succeed())
			Expect(d.StartReplay(log)).To(MatchError(ErrReplaying))
			Expect(d.SetLog(NewLog())).To(MatchError(ErrReplaying))
		})

		It("should refuse a log that starts in the past", func() {
			sched.Advance(150)

			Expect(errors.Is(d.StartReplay(log), ErrIncompatibleLog)).To(BeTrue())
			Expect(d.IsReplaying()).To(BeFalse())
		})

		It("should refuse a log out of time order", func() {
			log.Records[0], log.Records[1] = log.Records[1], log.Records[0]

			Expect(errors.Is(d.StartReplay(log), ErrIncompatibleLog)).To(BeTrue())
		})

		It("should panic on a log corrupted during the replay", func() {
			Expect(d.StartReplay(log)).To(Succeed())
			sched.Advance(150)

			log.Records[1].Time = 50

			Expect(func() { sched.Advance(1000) }).To(
				PanicWith(BeAssignableToTypeOf(&LogError{})))
		})
	})

	It("should reproduce the recorded state when replaying", func() {
		rng := rand.New(rand.NewSource(42))

		var pads [2]*pad
		for i := range pads {
			pads[i] = newPad(d, i)
		}

		t := emutime.EmuTime(0)
		for i := 0; i < 200; i++ {
			t += emutime.EmuTime(1 + rng.Intn(1000))
			sched.Advance(t)
			pads[rng.Intn(2)].setLive(uint8(rng.Intn(0x40)))
		}
		d.Log().Finish(t + 1)

		var buf bytes.Buffer
		Expect(d.Log().Save(&buf)).To(Succeed())
		recorded := d.Log()

		loaded, err := LoadLog(&buf)
		Expect(err).NotTo(HaveOccurred())

		replaySched := scheduler.NewScheduler()
		replay := NewDistributor(replaySched, nil)
		var replayPads [2]*pad
		for i := range replayPads {
			replayPads[i] = newPad(replay, i)
		}

		Expect(replay.StartReplay(loaded)).To(Succeed())
		replaySched.Advance(t + 1000)

		for i := range pads {
			Expect(replayPads[i].statusAtStop).To(Equal(pads[i].status))
		}
		n := recorded.Len() - 1
		Expect(replay.Log().Records[:n]).To(Equal(recorded.Records[:n]))
	})
})
