package input

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/event"
	"github.com/sarchlab/emucore/statechange"
)

var _ = Describe("Keyboard", func() {
	var (
		r  *rig
		kb *Keyboard
	)

	BeforeEach(func() {
		r = newRig()
		kb = NewKeyboard("Keyboard", r.events, r.changes, nil)
		kb.Plug()
	})

	It("should start with no key pressed", func() {
		for row := 0; row < NumRows; row++ {
			Expect(kb.Row(row)).To(Equal(uint8(0xFF)))
		}
		Expect(kb.Row(NumRows)).To(Equal(uint8(0xFF)))
	})

	It("should press and release matrix keys", func() {
		r.send(100, event.KeyEvent{Key: event.KeyA, Down: true})

		Expect(kb.Row(2)).To(Equal(uint8(0xFF &^ 0x40)))
		Expect(r.changes.Log().Records).To(Equal([]statechange.Record{{
			Time:    100,
			Payload: statechange.KeyMatrixState{Row: 2, Press: 0x40},
		}}))

		r.send(200, event.KeyEvent{Key: event.KeyA})

		Expect(kb.Row(2)).To(Equal(uint8(0xFF)))
	})

	It("should keep keys of the same row apart", func() {
		r.send(100,
			event.KeyEvent{Key: event.KeySpace, Down: true},
			event.KeyEvent{Key: event.KeyRight, Down: true})
		r.send(200, event.KeyEvent{Key: event.KeySpace})

		Expect(kb.Row(8)).To(Equal(uint8(0xFF &^ 0x80)))
	})

	It("should release every key when the host loses focus", func() {
		r.send(100,
			event.KeyEvent{Key: event.KeyA, Down: true},
			event.KeyEvent{Key: event.KeySpace, Down: true})

		r.send(200, event.FocusEvent{Gained: false})

		for row := 0; row < NumRows; row++ {
			Expect(kb.Row(row)).To(Equal(uint8(0xFF)))
		}
		Expect(r.changes.Log().Len()).To(Equal(4))
		Expect(r.changes.Log().Records[2].Time).To(Equal(emutime.EmuTime(200)))

		r.send(300, event.KeyEvent{Key: event.KeyA})
		Expect(r.changes.Log().Len()).To(Equal(4))
	})

	It("should not record repeated key downs", func() {
		r.send(100,
			event.KeyEvent{Key: event.KeyQ, Down: true},
			event.KeyEvent{Key: event.KeyQ, Down: true})

		Expect(r.changes.Log().Len()).To(Equal(1))
	})

	It("should leave unmapped keys alone", func() {
		r.send(100, event.KeyEvent{Key: event.KeyUnknown, Down: true})

		Expect(r.changes.Log().Len()).To(BeZero())
	})

	It("should know where keys are", func() {
		pos, ok := PositionOf(event.KeyReturn)
		Expect(ok).To(BeTrue())
		Expect(pos).To(Equal(KeyPos{Row: 7, Bit: 0x80}))

		_, ok = PositionOf(event.KeyUnknown)
		Expect(ok).To(BeFalse())
	})

	It("should reject rows outside the matrix", func() {
		Expect(kb.SignalStateChange(statechange.Record{
			Payload: statechange.KeyMatrixState{Row: NumRows, Press: 1},
		})).NotTo(Succeed())
	})

	It("should catch up with the host keyboard row by row after a replay", func() {
		log := statechange.NewLog()
		log.Append(statechange.Record{
			Time:    100,
			Payload: statechange.KeyMatrixState{Row: 3, Press: 0x01},
		})
		log.Finish(200)

		Expect(r.changes.StartReplay(log)).To(Succeed())
		r.send(150,
			event.KeyEvent{Key: event.KeyZ, Down: true},
			event.KeyEvent{Key: event.KeyX, Down: true})

		Expect(kb.Row(3)).To(Equal(uint8(0xFE)))
		Expect(kb.Row(5)).To(Equal(uint8(0xFF)))

		r.sched.Advance(300)

		Expect(kb.Row(3)).To(Equal(uint8(0xFF)))
		Expect(kb.Row(5)).To(Equal(uint8(0xFF &^ 0xA0)))
		Expect(r.changes.Log().Records[1:]).To(Equal([]statechange.Record{
			{Time: 200, Payload: statechange.KeyMatrixState{Row: 3, Release: 0x01}},
			{Time: 200, Payload: statechange.KeyMatrixState{Row: 5, Press: 0xA0}},
		}))
	})

	It("should save and restore the matrix", func() {
		r.send(100, event.KeyEvent{Key: event.KeyF1, Down: true})

		data, err := kb.MarshalState()
		Expect(err).NotTo(HaveOccurred())

		other := NewKeyboard("Keyboard", r.events, r.changes, nil)
		Expect(other.UnmarshalState(data)).To(Succeed())
		Expect(other.Row(6)).To(Equal(uint8(0xFF &^ 0x20)))
	})
})
