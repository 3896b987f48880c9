package emutime

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EmuTime", func() {
	It("should round trip a duration", func() {
		for _, a := range []EmuTime{0, 1, 959, 123456789} {
			for _, d := range []EmuDuration{0, 1, 960, DurationOf(3579545, 3579545)} {
				Expect(a.Add(d).Sub(a)).To(Equal(d))
			}
		}
	})

	It("should panic on a negative duration", func() {
		Expect(func() { EmuTime(5).Sub(6) }).To(Panic())
	})

	It("should panic when overflowing the timeline", func() {
		Expect(func() { Infinity.Add(1) }).To(Panic())
	})

	It("should convert cycles exactly", func() {
		Expect(DurationOf(1, 3579545)).To(Equal(EmuDuration(960)))
		Expect(DurationOf(3579545, 3579545)).To(Equal(EmuDuration(MainFreq)))
		Expect(DurationOf(2, 50*Hz).Seconds()).To(BeNumerically("~", 0.04, 1e-12))
	})

	It("should reject frequencies that do not divide the reference", func() {
		Expect(KHz.Divides()).To(BeFalse())
		Expect(func() { DurationOf(1, 32768) }).To(Panic())
		Expect(func() { FreqInHz(0).Step() }).To(Panic())
	})

	It("should convert seconds by rounding", func() {
		Expect(DurationFromSeconds(1)).To(Equal(EmuDuration(MainFreq)))
		Expect(func() { DurationFromSeconds(-1) }).To(Panic())
	})

	It("should find the earlier time", func() {
		Expect(Min(3, 7)).To(Equal(EmuTime(3)))
		Expect(Min(Infinity, 7)).To(Equal(EmuTime(7)))
	})
})
