package priv_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/config"
	"github.com/sarchlab/rvsim/priv"
)

var _ = Describe("Hart", func() {
	var (
		cfg  *config.ISA
		hart *priv.Hart
	)

	BeforeEach(func() {
		cfg = config.DefaultISA()
		hart = priv.NewHart(priv.WithISA(cfg), priv.WithTrace(nil))
	})

	Describe("NewHart", func() {
		It("should start in machine mode", func() {
			Expect(hart.Priv()).To(Equal(priv.PrivM))
		})
	})

	Describe("CheckInterrupt", func() {
		It("should report no interrupt on an idle hart", func() {
			_, taken := hart.CheckInterrupt(0x100)
			Expect(taken).To(BeFalse())
		})

		It("should commit the trap and return the handler address", func() {
			r := hart.RegFile()
			r.Status.SetMIE(true)
			r.MTvec = 0x2000
			r.MIE = 1 << priv.IntMTimer
			r.MIP = 1 << priv.IntMTimer

			entry, taken := hart.CheckInterrupt(0x8000_0004)

			Expect(taken).To(BeTrue())
			Expect(entry).To(Equal(uint64(0x2000)))
			Expect(r.MEpc).To(Equal(uint64(0x8000_0004)))
			Expect(r.MCause.Interrupt).To(BeTrue())
			Expect(r.MCause.Code).To(Equal(priv.IntMTimer))
		})
	})

	Describe("RaiseException", func() {
		It("should route a delegated exception from user mode to supervisor", func() {
			r := hart.RegFile()
			r.Medeleg = 1 << priv.ExcLoadPageFault
			r.STvec = 0x3000
			r.Priv = priv.PrivU

			entry := hart.RaiseException(priv.TrapContext{
				Code: priv.ExcLoadPageFault,
				PC:   0x600,
				Tval: 0x1234_0000,
			})

			Expect(entry).To(Equal(uint64(0x3000)))
			Expect(hart.Priv()).To(Equal(priv.PrivS))
			Expect(r.STval).To(Equal(uint64(0x1234_0000)))
		})
	})

	Describe("Dispatch", func() {
		It("should handle the trap variant", func() {
			r := hart.RegFile()
			r.MTvec = 0x2000
			r.Priv = priv.PrivU

			next, err := hart.Dispatch(priv.TrapExit{
				Kind:    priv.ExitTrap,
				Context: priv.TrapContext{Code: priv.ExcEcallU, PC: 0x700},
			})

			Expect(err).To(BeNil())
			Expect(next).To(Equal(uint64(0x2000)))
			Expect(hart.Priv()).To(Equal(priv.PrivM))
		})

		It("should reject MRET below machine mode", func() {
			hart.RegFile().Priv = priv.PrivS

			_, err := hart.Dispatch(priv.TrapExit{Kind: priv.ExitMRET})

			Expect(err).To(MatchError(priv.ErrIllegalInstruction))
		})

		It("should reject SRET from user mode", func() {
			hart.RegFile().Priv = priv.PrivU

			_, err := hart.Dispatch(priv.TrapExit{Kind: priv.ExitSRET})

			Expect(err).To(MatchError(priv.ErrIllegalInstruction))
		})

		It("should reject SRET without a supervisor extension", func() {
			hart := priv.NewHart(priv.WithISA(config.MachineOnlyISA()),
				priv.WithTrace(nil))

			_, err := hart.Dispatch(priv.TrapExit{Kind: priv.ExitSRET})

			Expect(err).To(MatchError(priv.ErrIllegalInstruction))
		})

		It("should allow SRET from machine mode", func() {
			_, err := hart.Dispatch(priv.TrapExit{Kind: priv.ExitSRET})
			Expect(err).To(BeNil())
		})

		It("should panic on an unknown exit kind", func() {
			Expect(func() {
				_, _ = hart.Dispatch(priv.TrapExit{Kind: priv.TrapExitKind(99)})
			}).To(Panic())
		})
	})

	Describe("ReadCSR and WriteCSR", func() {
		It("should reject a denied access with ErrIllegalInstruction", func() {
			hart.RegFile().Priv = priv.PrivU

			_, err := hart.ReadCSR(priv.CSRMStatus)

			Expect(err).To(MatchError(priv.ErrIllegalInstruction))
		})

		It("should round-trip mscratch", func() {
			Expect(hart.WriteCSR(priv.CSRMScratch, 0xABCD)).To(Succeed())

			v, err := hart.ReadCSR(priv.CSRMScratch)
			Expect(err).To(BeNil())
			Expect(v).To(Equal(uint64(0xABCD)))
		})

		It("should mask medeleg writes to delegatable exceptions", func() {
			Expect(hart.WriteCSR(priv.CSRMedeleg, ^uint64(0))).To(Succeed())

			v, _ := hart.ReadCSR(priv.CSRMedeleg)
			// Machine ecall is never delegatable.
			Expect(v >> priv.ExcEcallM & 1).To(BeZero())
			Expect(v >> priv.ExcLoadPageFault & 1).To(Equal(uint64(1)))
		})

		It("should mask mideleg writes to supervisor interrupt bits", func() {
			Expect(hart.WriteCSR(priv.CSRMideleg, ^uint64(0))).To(Succeed())

			v, _ := hart.ReadCSR(priv.CSRMideleg)
			Expect(v).To(Equal(uint64(1<<priv.IntSExt | 1<<priv.IntSSoft |
				1<<priv.IntSTimer)))
		})

		It("should expose only delegated bits through sie and sip", func() {
			r := hart.RegFile()
			r.Mideleg = 1 << priv.IntSTimer
			r.MIE = 1<<priv.IntSTimer | 1<<priv.IntMTimer
			r.MIP = 1<<priv.IntSTimer | 1<<priv.IntMTimer

			sie, _ := hart.ReadCSR(priv.CSRSIE)
			sip, _ := hart.ReadCSR(priv.CSRSIP)

			Expect(sie).To(Equal(uint64(1 << priv.IntSTimer)))
			Expect(sip).To(Equal(uint64(1 << priv.IntSTimer)))
		})

		It("should restrict sstatus writes to the supervisor fields", func() {
			r := hart.RegFile()
			r.Priv = priv.PrivS

			Expect(hart.WriteCSR(priv.CSRSStatus, ^uint64(0))).To(Succeed())

			Expect(r.Status.SIE()).To(BeTrue())
			Expect(r.Status.MIE()).To(BeFalse())
			Expect(r.Status.TVM()).To(BeFalse())
		})

		It("should keep the old mtvec mode on a reserved mode write", func() {
			Expect(hart.WriteCSR(priv.CSRMTvec, 0x2000|1)).To(Succeed())
			Expect(hart.WriteCSR(priv.CSRMTvec, 0x4000|2)).To(Succeed())

			v, _ := hart.ReadCSR(priv.CSRMTvec)
			Expect(v).To(Equal(uint64(0x4000 | 1)))
		})
	})

	Describe("delegation masks without a supervisor extension", func() {
		It("should keep the masks undefined and zero", func() {
			hart := priv.NewHart(priv.WithISA(config.MachineOnlyISA()),
				priv.WithTrace(nil))

			_, err := hart.ReadCSR(priv.CSRMideleg)
			Expect(err).To(MatchError(priv.ErrIllegalInstruction))

			Expect(hart.RegFile().Mideleg).To(BeZero())
			Expect(hart.RegFile().Medeleg).To(BeZero())
		})
	})
})
