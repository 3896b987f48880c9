package scheduler

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/emucore/emutime"
)

var _ = Describe("Scheduler state", func() {
	var (
		trace  []string
		owners map[string]Schedulable
	)

	newOwners := func() map[string]Schedulable {
		return map[string]Schedulable{
			"fdc": &recordingOwner{name: "fdc", trace: &trace},
			"rtc": &recordingOwner{name: "rtc", trace: &trace},
		}
	}

	BeforeEach(func() {
		trace = nil
		owners = newOwners()
	})

	It("should resume with an identical firing order", func() {
		s := NewScheduler()
		s.Schedule(owners["rtc"], 300, 1)
		s.Schedule(owners["fdc"], 200, 2)
		s.Schedule(owners["rtc"], 200, 3)
		s.Schedule(owners["fdc"], 50, 4)
		s.Advance(100)

		raw, err := json.Marshal(s.State())
		Expect(err).NotTo(HaveOccurred())

		s.Advance(1000)
		expected := trace

		trace = nil
		restoredOwners := newOwners()
		var state State
		Expect(json.Unmarshal(raw, &state)).To(Succeed())

		restored := NewScheduler()
		Expect(restored.SetState(state, MapResolver(restoredOwners))).To(Succeed())
		Expect(restored.CurrentTime()).To(Equal(emutime.EmuTime(100)))

		restored.Advance(1000)

		Expect(trace).To(Equal(expected[1:]))
		Expect(trace).To(Equal([]string{"fdc@200/2", "rtc@200/3", "rtc@300/1"}))
	})

	It("should keep tie-breaking order for new sync points", func() {
		s := NewScheduler()
		s.Schedule(owners["fdc"], 10, 1)

		restored := NewScheduler()
		Expect(restored.SetState(s.State(), MapResolver(owners))).To(Succeed())
		restored.Schedule(owners["rtc"], 10, 2)

		state := restored.State()
		Expect(state.SyncPoints[0].Owner).To(Equal("fdc"))
		Expect(state.SyncPoints[1].Owner).To(Equal("rtc"))
		Expect(state.SyncPoints[1].Seq).To(BeNumerically(">", state.SyncPoints[0].Seq))
	})

	It("should reject unknown owners", func() {
		state := State{
			NextSeq: 1,
			SyncPoints: []SyncPointState{
				{Time: 5, Owner: "psg", Seq: 0},
			},
		}

		err := NewScheduler().SetState(state, MapResolver(owners))

		Expect(err).To(MatchError(ContainSubstring("psg")))
	})

	It("should reject sync points before the saved time", func() {
		state := State{
			Now:     10,
			NextSeq: 1,
			SyncPoints: []SyncPointState{
				{Time: 5, Owner: "fdc", Seq: 0},
			},
		}

		Expect(NewScheduler().SetState(state, MapResolver(owners))).NotTo(Succeed())
	})
})
