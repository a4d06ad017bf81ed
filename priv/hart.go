package priv

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/sarchlab/rvsim/config"
)

// ErrIllegalInstruction reports a CSR access or xRET that the current
// privilege level is not allowed to perform. The caller raises it as
// an illegal-instruction exception.
var ErrIllegalInstruction = errors.New("illegal instruction")

// Hart bundles the register file with the privilege and trap units and
// exposes the operations the surrounding instruction loop needs: the
// per-step interrupt check, exception raising, validated CSR access,
// and trap return.
type Hart struct {
	regFile     *RegFile
	cfg         *config.ISA
	checker     *AccessChecker
	dispatcher  *Dispatcher
	trapUnit    *TrapUnit
	reservation Reservation
	hook        ExtensionHook
	trace       io.Writer
}

// HartOption is a functional option for configuring a Hart.
type HartOption func(*Hart)

// WithISA sets the ISA configuration. The default is config.DefaultISA.
func WithISA(cfg *config.ISA) HartOption {
	return func(h *Hart) {
		h.cfg = cfg
	}
}

// WithReservation injects the platform reservation set.
func WithReservation(r Reservation) HartOption {
	return func(h *Hart) {
		h.reservation = r
	}
}

// WithExtensionHook installs a callback invoked on every trap entry.
func WithExtensionHook(hook ExtensionHook) HartOption {
	return func(h *Hart) {
		h.hook = hook
	}
}

// WithTrace sets the writer trace output is printed to.
func WithTrace(w io.Writer) HartOption {
	return func(h *Hart) {
		h.trace = w
	}
}

// NewHart creates a hart in the architectural reset state.
func NewHart(opts ...HartOption) *Hart {
	h := &Hart{
		trace: os.Stdout,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.cfg == nil {
		h.cfg = config.DefaultISA()
	}
	if h.reservation == nil {
		h.reservation = NewLocalReservation()
	}

	h.regFile = NewRegFile(h.cfg.XLEN, h.cfg.Supervisor, h.cfg.User)
	h.checker = NewAccessChecker(h.regFile, h.cfg)
	h.dispatcher = NewDispatcher(h.regFile, h.cfg)
	h.trapUnit = NewTrapUnit(h.regFile, h.cfg, h.reservation, h.hook, h.trace)

	return h
}

// RegFile returns the hart's register file.
func (h *Hart) RegFile() *RegFile {
	return h.regFile
}

// Priv returns the hart's current privilege level.
func (h *Hart) Priv() PrivLevel {
	return h.regFile.Priv
}

// CheckInterrupt asks whether a pending enabled interrupt should
// preempt execution at pc. When one should, the trap is committed and
// the handler address is returned with taken=true.
func (h *Hart) CheckInterrupt(pc uint64) (entry uint64, taken bool) {
	code, target, ok := h.dispatcher.PendingInterrupt()
	if !ok {
		return 0, false
	}

	ctx := TrapContext{Code: code, Interrupt: true, PC: pc}
	return h.trapUnit.Enter(ctx, target), true
}

// RaiseException commits a synchronous exception raised at the current
// privilege and returns the handler address.
func (h *Hart) RaiseException(ctx TrapContext) uint64 {
	target := h.dispatcher.ExceptionTarget(ctx.Code)
	return h.trapUnit.Enter(ctx, target)
}

// CanAccess reports whether the CSR may be accessed from the current
// privilege in the given direction.
func (h *Hart) CanAccess(csr CSR, isWrite bool) bool {
	return h.checker.CanAccess(csr, h.regFile.Priv, isWrite)
}

// TrapExitKind discriminates the ways a trap-related control transfer
// leaves the normal instruction stream.
type TrapExitKind uint8

// Trap exit kinds.
const (
	ExitTrap TrapExitKind = iota
	ExitMRET
	ExitSRET
)

// TrapExit is one trap-related control transfer: either a synchronous
// exception described by Context, or a trap return.
type TrapExit struct {
	Kind    TrapExitKind
	Context TrapContext
}

// Dispatch applies a trap exit and returns the next program counter.
// MRET and SRET from insufficient privilege, or SRET without a
// supervisor extension, fail with ErrIllegalInstruction before any
// state changes.
func (h *Hart) Dispatch(exit TrapExit) (uint64, error) {
	switch exit.Kind {
	case ExitTrap:
		return h.RaiseException(exit.Context), nil
	case ExitMRET:
		if h.regFile.Priv != PrivM {
			return 0, ErrIllegalInstruction
		}
		return h.trapUnit.MRET(), nil
	case ExitSRET:
		if !h.cfg.Supervisor || h.regFile.Priv < PrivS {
			return 0, ErrIllegalInstruction
		}
		return h.trapUnit.SRET(), nil
	default:
		panic(fmt.Sprintf("unhandled trap exit kind %d", exit.Kind))
	}
}

// ReadCSR performs a validated CSR read at the current privilege.
func (h *Hart) ReadCSR(csr CSR) (uint64, error) {
	if !h.CanAccess(csr, false) {
		h.traceCSR("read", csr, 0, false)
		return 0, ErrIllegalInstruction
	}

	v := h.readCSR(csr)
	h.traceCSR("read", csr, v, true)
	return v, nil
}

// WriteCSR performs a validated CSR write at the current privilege.
// Write-any-read-legal fields are masked before commit.
func (h *Hart) WriteCSR(csr CSR, value uint64) error {
	if !h.CanAccess(csr, true) {
		h.traceCSR("write", csr, value, false)
		return ErrIllegalInstruction
	}

	h.writeCSR(csr, value)
	h.traceCSR("write", csr, value, true)
	return nil
}

// sstatus exposes a restricted view of mstatus.
const (
	sstatusReadMask uint64 = 1<<statusSIE | 1<<statusSPIE | 1<<statusSPP |
		1<<statusMPRV | 0b11<<statusUXL
	sstatusWriteMask uint64 = 1<<statusSIE | 1<<statusSPIE | 1<<statusSPP
)

// mieWritableMask covers the six standard interrupt sources.
const mieWritableMask uint64 = 1<<IntMExt | 1<<IntMSoft | 1<<IntMTimer |
	delegatableInterrupts

func (h *Hart) readCSR(csr CSR) uint64 {
	r := h.regFile

	switch csr {
	case CSRMStatus:
		return r.Status.Bits()
	case CSRSStatus:
		return r.Status.Bits() & sstatusReadMask
	case CSRMisa:
		return r.Misa
	case CSRMedeleg:
		return r.Medeleg
	case CSRMideleg:
		return r.Mideleg
	case CSRMIE:
		return r.MIE
	case CSRSIE:
		return r.MIE & r.Mideleg
	case CSRMIP:
		return r.MIP
	case CSRSIP:
		return r.MIP & r.Mideleg
	case CSRMTvec:
		return r.MTvec
	case CSRSTvec:
		return r.STvec
	case CSRMCounteren:
		return uint64(r.MCounteren)
	case CSRSCounteren:
		return uint64(r.SCounteren)
	case CSRMEnvcfg:
		return r.MEnvcfg
	case CSRMScratch:
		return r.MScratch
	case CSRSScratch:
		return r.SScratch
	case CSRMEpc:
		return r.MEpc
	case CSRSEpc:
		return r.SEpc
	case CSRMCause:
		return r.MCause.Bits(h.cfg.XLEN)
	case CSRSCause:
		return r.SCause.Bits(h.cfg.XLEN)
	case CSRMTval:
		return r.MTval
	case CSRSTval:
		return r.STval
	case CSRSatp:
		return r.Satp
	case CSRSTimecmp:
		return r.STimecmp
	case CSRSTimecmpH:
		return r.STimecmp >> 32
	case CSRCycle:
		return r.Cycle
	case CSRTime:
		return r.Time
	case CSRInstret:
		return r.InstRet
	default:
		// Unimplemented hpm counters and event selectors read as zero.
		return 0
	}
}

func (h *Hart) writeCSR(csr CSR, value uint64) {
	r := h.regFile

	switch csr {
	case CSRMStatus:
		r.Status.Write(value)
	case CSRSStatus:
		masked := r.Status.Bits()&^sstatusWriteMask | value&sstatusWriteMask
		r.Status.Write(masked)
	case CSRMisa:
		// The configured extension set is fixed; misa writes are
		// accepted and discarded.
	case CSRMedeleg:
		if h.cfg.Supervisor {
			r.Medeleg = value & delegatableExceptions
		}
	case CSRMideleg:
		if h.cfg.Supervisor {
			r.Mideleg = value & delegatableInterrupts
		}
	case CSRMIE:
		r.MIE = value & mieWritableMask
	case CSRSIE:
		d := r.Mideleg
		r.MIE = r.MIE&^d | value&d
	case CSRMIP:
		r.MIP = r.MIP&^delegatableInterrupts | value&delegatableInterrupts
	case CSRSIP:
		// Only the supervisor software-interrupt bit is writable
		// from the supervisor view.
		d := r.Mideleg & (1 << IntSSoft)
		r.MIP = r.MIP&^d | value&d
	case CSRMTvec:
		r.MTvec = legalizeTvec(value, r.MTvec)
	case CSRSTvec:
		r.STvec = legalizeTvec(value, r.STvec)
	case CSRMCounteren:
		r.MCounteren = uint32(value)
	case CSRSCounteren:
		r.SCounteren = uint32(value)
	case CSRMEnvcfg:
		r.MEnvcfg = value
	case CSRMScratch:
		r.MScratch = value
	case CSRSScratch:
		r.SScratch = value
	case CSRMEpc:
		r.MEpc = value &^ 1
	case CSRSEpc:
		r.SEpc = value &^ 1
	case CSRMCause:
		r.MCause = causeFromBits(value, h.cfg.XLEN)
	case CSRSCause:
		r.SCause = causeFromBits(value, h.cfg.XLEN)
	case CSRMTval:
		r.MTval = value
	case CSRSTval:
		r.STval = value
	case CSRSatp:
		r.Satp = value
	case CSRSTimecmp:
		r.STimecmp = value
	case CSRSTimecmpH:
		r.STimecmp = r.STimecmp&0xFFFFFFFF | value<<32
	case CSRSeed:
		// Entropy-source writes poll the source; no architectural
		// state changes.
	}
}

// legalizeTvec keeps the previous MODE when the written value carries
// a reserved one.
func legalizeTvec(value, old uint64) uint64 {
	if value&0b11 > 1 {
		return value&^0b11 | old&0b11
	}
	return value
}

// causeFromBits unpacks an xcause value written by software.
func causeFromBits(value uint64, xlen int) Cause {
	intBit := uint64(1) << (xlen - 1)
	return Cause{
		Interrupt: value&intBit != 0,
		Code:      value &^ intBit,
	}
}

func (h *Hart) traceCSR(dir string, csr CSR, value uint64, ok bool) {
	if h.trace == nil || !h.cfg.TraceCSR {
		return
	}
	status := "ok"
	if !ok {
		status = "denied"
	}
	fmt.Fprintf(h.trace, "csr %s %#03x priv=%s value=%#x %s\n",
		dir, uint16(csr), h.regFile.Priv, value, status)
}
