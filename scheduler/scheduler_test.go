package scheduler

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/hooking"
)

// recordingOwner appends "<name>@<time>/<data>" to a shared trace every time
// it fires and can react by scheduling more sync points.
type recordingOwner struct {
	name   string
	trace  *[]string
	onFire func(t emutime.EmuTime, userData int)
}

func (o *recordingOwner) Name() string { return o.name }

func (o *recordingOwner) ExecuteUntil(t emutime.EmuTime, userData int) {
	*o.trace = append(*o.trace, fmt.Sprintf("%s@%d/%d", o.name, t, userData))
	if o.onFire != nil {
		o.onFire(t, userData)
	}
}

var _ = Describe("Scheduler", func() {
	var (
		mockCtrl  *gomock.Controller
		scheduler *Scheduler
		owner     *MockSchedulable
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		scheduler = NewScheduler()
		owner = NewMockSchedulable(mockCtrl)
		owner.EXPECT().Name().Return("owner").AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should fire a sync point exactly once at its time", func() {
		scheduler.Schedule(owner, 100, 7)

		owner.EXPECT().ExecuteUntil(emutime.EmuTime(100), 7).Do(
			func(t emutime.EmuTime, _ int) {
				Expect(scheduler.CurrentTime()).To(Equal(t))
			})

		scheduler.Advance(99)
		Expect(scheduler.Len()).To(Equal(1))

		scheduler.Advance(100)
		scheduler.Advance(1000)

		Expect(scheduler.CurrentTime()).To(Equal(emutime.EmuTime(1000)))
		Expect(scheduler.Len()).To(Equal(0))
	})

	It("should never fire a removed sync point", func() {
		scheduler.Schedule(owner, 100, 1)
		scheduler.Schedule(owner, 200, 2)

		Expect(scheduler.RemoveSyncPoint(owner, 1)).To(BeTrue())
		Expect(scheduler.RemoveSyncPoint(owner, 1)).To(BeFalse())

		owner.EXPECT().ExecuteUntil(emutime.EmuTime(200), 2)

		scheduler.Advance(500)
	})

	It("should remove the earliest matching sync point", func() {
		scheduler.Schedule(owner, 300, 1)
		scheduler.Schedule(owner, 100, 1)
		scheduler.Schedule(owner, 200, 1)

		Expect(scheduler.RemoveSyncPoint(owner, 1)).To(BeTrue())

		sps := scheduler.SyncPoints(owner)
		Expect(sps).To(HaveLen(2))
		Expect(sps[0].Time).To(Equal(emutime.EmuTime(200)))
		Expect(sps[1].Time).To(Equal(emutime.EmuTime(300)))
	})

	It("should remove all sync points of an owner", func() {
		other := NewMockSchedulable(mockCtrl)
		other.EXPECT().Name().Return("other").AnyTimes()

		scheduler.Schedule(owner, 10, 1)
		scheduler.Schedule(other, 20, 1)
		scheduler.Schedule(owner, 30, 2)

		Expect(scheduler.RemoveSyncPoints(owner)).To(Equal(2))
		Expect(scheduler.PendingSyncPoint(owner, 1)).To(BeFalse())
		Expect(scheduler.PendingSyncPoint(other, 1)).To(BeTrue())

		other.EXPECT().ExecuteUntil(emutime.EmuTime(20), 1)
		scheduler.Advance(100)
	})

	It("should report the earliest pending time", func() {
		Expect(scheduler.Next()).To(Equal(emutime.Infinity))

		scheduler.Schedule(owner, 50, 0)
		scheduler.Schedule(owner, 20, 0)

		Expect(scheduler.Next()).To(Equal(emutime.EmuTime(20)))
	})

	It("should panic when scheduling in the past", func() {
		scheduler.Advance(100)

		Expect(func() { scheduler.Schedule(owner, 99, 0) }).To(Panic())
		Expect(func() { scheduler.Schedule(owner, 100, 0) }).NotTo(Panic())
	})

	It("should panic when advancing backwards", func() {
		scheduler.Advance(100)

		Expect(func() { scheduler.Advance(50) }).To(Panic())
	})

	It("should panic when advancing from within a sync point", func() {
		scheduler.Schedule(owner, 10, 0)
		owner.EXPECT().ExecuteUntil(emutime.EmuTime(10), 0).Do(
			func(emutime.EmuTime, int) { scheduler.Advance(20) })

		Expect(func() { scheduler.Advance(10) }).To(Panic())
	})

	It("should fire sync points scheduled while firing", func() {
		var trace []string
		a := &recordingOwner{name: "a", trace: &trace}
		b := &recordingOwner{name: "b", trace: &trace}
		a.onFire = func(t emutime.EmuTime, userData int) {
			if userData == 0 {
				scheduler.Schedule(b, t, 1)
				scheduler.Schedule(a, t+5, 2)
				scheduler.Schedule(a, t+500, 3)
			}
		}

		scheduler.Schedule(a, 10, 0)
		scheduler.Advance(100)

		Expect(trace).To(Equal([]string{"a@10/0", "b@10/1", "a@15/2"}))
		Expect(scheduler.Next()).To(Equal(emutime.EmuTime(510)))
	})

	It("should break ties in scheduling order on every run", func() {
		run := func() []string {
			var trace []string
			s := NewScheduler()
			owners := []*recordingOwner{
				{name: "fdc", trace: &trace},
				{name: "rtc", trace: &trace},
				{name: "vdp", trace: &trace},
			}

			for i := 0; i < 20; i++ {
				s.Schedule(owners[i%3], emutime.EmuTime(100+(i%2)*50), i)
			}
			s.Advance(1000)

			return trace
		}

		first := run()
		Expect(first[0]).To(Equal("fdc@100/0"))
		Expect(first[1]).To(Equal("vdp@100/2"))
		for i := 0; i < 10; i++ {
			Expect(run()).To(Equal(first))
		}
	})

	It("should invoke hooks around each sync point", func() {
		var positions []string
		scheduler.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			sp := ctx.Item.(SyncPoint)
			positions = append(positions,
				fmt.Sprintf("%s %d %d", ctx.Pos.Name, ctx.Time, sp.UserData))
		}))

		scheduler.Schedule(owner, 10, 4)
		owner.EXPECT().ExecuteUntil(emutime.EmuTime(10), 4)

		scheduler.Advance(10)

		Expect(positions).To(Equal([]string{
			"BeforeSyncPoint 10 4",
			"AfterSyncPoint 10 4",
		}))
	})
})
