package timeline_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/config"
	"github.com/sarchlab/rvsim/priv"
	"github.com/sarchlab/rvsim/timeline"
)

var _ = Describe("Timeline", func() {
	var (
		hart *priv.Hart
		tl   *timeline.Timeline
	)

	BeforeEach(func() {
		hart = priv.NewHart(
			priv.WithISA(config.DefaultISA()),
			priv.WithTrace(nil),
		)
		tl = timeline.New(hart)
	})

	It("should apply actions in virtual-time order", func() {
		// Scheduled out of order on purpose.
		tl.Add(timeline.Action{Time: 2, Op: "step", PC: 0x100})
		tl.Add(timeline.Action{Time: 1, Op: "csr_write",
			CSR: uint16(priv.CSRMTvec), Value: 0x2000})

		Expect(tl.Run()).To(Succeed())

		records := tl.Records()
		Expect(records).To(HaveLen(2))
		Expect(records[0].Time).To(Equal(1.0))
		Expect(records[1].Time).To(Equal(2.0))
	})

	It("should take a pending interrupt on the following step", func() {
		r := hart.RegFile()
		r.Status.SetMIE(true)
		r.MIE = 1 << priv.IntMTimer
		r.MTvec = 0x2000

		tl.Add(timeline.Action{Time: 1, Op: "interrupt", Code: priv.IntMTimer})
		tl.Add(timeline.Action{Time: 2, Op: "step", PC: 0x100})

		Expect(tl.Run()).To(Succeed())

		Expect(r.MCause.Interrupt).To(BeTrue())
		Expect(r.MCause.Code).To(Equal(priv.IntMTimer))
		Expect(r.MEpc).To(Equal(uint64(0x100)))
	})

	It("should not trap once an interrupt line is cleared", func() {
		r := hart.RegFile()
		r.Status.SetMIE(true)
		r.MIE = 1 << priv.IntMTimer

		tl.Add(timeline.Action{Time: 1, Op: "interrupt", Code: priv.IntMTimer})
		tl.Add(timeline.Action{Time: 2, Op: "clear", Code: priv.IntMTimer})
		tl.Add(timeline.Action{Time: 3, Op: "step", PC: 0x100})

		Expect(tl.Run()).To(Succeed())

		Expect(r.MCause.Interrupt).To(BeFalse())
		Expect(hart.Priv()).To(Equal(priv.PrivM))
	})

	It("should replay a trap and return sequence", func() {
		r := hart.RegFile()
		r.Priv = priv.PrivU
		r.MTvec = 0x2000

		tl.Add(timeline.Action{Time: 1, Op: "exception",
			Code: priv.ExcEcallU, PC: 0x500})
		tl.Add(timeline.Action{Time: 2, Op: "mret"})

		Expect(tl.Run()).To(Succeed())

		Expect(hart.Priv()).To(Equal(priv.PrivU))
	})

	It("should fail on an unknown op", func() {
		tl.Add(timeline.Action{Time: 1, Op: "teleport"})

		err := tl.Run()

		Expect(err).NotTo(BeNil())
		Expect(err.Error()).To(ContainSubstring("teleport"))
	})

	It("should keep the first failure even when later actions succeed", func() {
		tl.Add(timeline.Action{Time: 1, Op: "teleport"})
		tl.Add(timeline.Action{Time: 2, Op: "step", PC: 0x100})

		Expect(tl.Run()).NotTo(Succeed())
	})

	Describe("Load", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "timeline-test")
			Expect(err).To(BeNil())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should schedule every action from a scenario file", func() {
			scenario := `[
				{"time": 1, "op": "csr_write", "csr": 773, "value": 8192},
				{"time": 2, "op": "step", "pc": 256}
			]`
			path := filepath.Join(tempDir, "scenario.json")
			Expect(os.WriteFile(path, []byte(scenario), 0644)).To(Succeed())

			Expect(tl.Load(path)).To(Succeed())
			Expect(tl.Run()).To(Succeed())
			Expect(tl.Records()).To(HaveLen(2))
		})

		It("should fail on a missing file", func() {
			Expect(tl.Load(filepath.Join(tempDir, "missing.json"))).NotTo(Succeed())
		})

		It("should fail on malformed JSON", func() {
			path := filepath.Join(tempDir, "bad.json")
			Expect(os.WriteFile(path, []byte("nope"), 0644)).To(Succeed())
			Expect(tl.Load(path)).NotTo(Succeed())
		})
	})
})
