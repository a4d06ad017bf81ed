package priv

import (
	"fmt"
	"io"

	"github.com/sarchlab/rvsim/config"
)

// TrapContext describes one trap occurrence. It is built by the caller
// (instruction execution or the interrupt dispatcher) and consumed by
// a single trap-entry commit.
type TrapContext struct {
	// Code is the exception or interrupt code.
	Code uint64

	// Interrupt is true for interrupts, false for synchronous
	// exceptions.
	Interrupt bool

	// PC is the faulting program counter.
	PC uint64

	// Tval is auxiliary trap information such as a faulting address,
	// or zero when none applies.
	Tval uint64

	// Payload carries optional extension-supplied state through to
	// the extension hook. The core never inspects it.
	Payload any
}

// ExtensionHook is invoked during trap entry, after the architectural
// commit, so extensions can capture auxiliary state. It must not
// change the handling privilege or the entry address.
type ExtensionHook func(target PrivLevel, pc uint64, payload any)

// TrapUnit commits trap entries and trap returns. It is the only
// component allowed to change the current privilege level.
type TrapUnit struct {
	regFile     *RegFile
	cfg         *config.ISA
	reservation Reservation
	hook        ExtensionHook
	trace       io.Writer
}

// NewTrapUnit creates a TrapUnit. The reservation set must not be nil;
// hook may be nil; trace may be nil to disable trace output.
func NewTrapUnit(regFile *RegFile, cfg *config.ISA, reservation Reservation,
	hook ExtensionHook, trace io.Writer) *TrapUnit {
	return &TrapUnit{
		regFile:     regFile,
		cfg:         cfg,
		reservation: reservation,
		hook:        hook,
		trace:       trace,
	}
}

// Enter commits a trap at the resolved target privilege and returns
// the program counter of the handler. Only Machine and Supervisor are
// valid targets; a User target indicates a broken resolver and panics.
func (t *TrapUnit) Enter(ctx TrapContext, target PrivLevel) uint64 {
	switch target {
	case PrivM:
		return t.enterMachine(ctx)
	case PrivS:
		return t.enterSupervisor(ctx)
	default:
		panic(fmt.Sprintf("trap routed to invalid target privilege %s", target))
	}
}

// enterMachine commits a machine-mode trap entry.
func (t *TrapUnit) enterMachine(ctx TrapContext) uint64 {
	r := t.regFile

	r.MCause = Cause{Interrupt: ctx.Interrupt, Code: ctx.Code}

	s := &r.Status
	s.SetMPIE(s.MIE())
	s.SetMIE(false)
	s.SetMPP(r.Priv)

	r.MTval = ctx.Tval
	r.MEpc = ctx.PC
	r.Priv = PrivM

	if t.hook != nil {
		t.hook(PrivM, ctx.PC, ctx.Payload)
	}
	t.reservation.Cancel()

	entry := vectorEntry(r.MTvec, ctx)
	t.traceTrap(ctx, PrivM, entry)
	return entry
}

// enterSupervisor commits a supervisor-mode trap entry. The delegation
// resolver never routes a trap taken in machine mode to supervisor
// mode, so the previous privilege always fits the one-bit SPP field.
func (t *TrapUnit) enterSupervisor(ctx TrapContext) uint64 {
	if !t.cfg.Supervisor {
		panic("supervisor trap entry without supervisor mode configured")
	}

	r := t.regFile
	if r.Priv == PrivM {
		panic("supervisor trap entry from machine mode")
	}

	r.SCause = Cause{Interrupt: ctx.Interrupt, Code: ctx.Code}

	s := &r.Status
	s.SetSPIE(s.SIE())
	s.SetSIE(false)
	s.SetSPP(r.Priv == PrivS)

	r.STval = ctx.Tval
	r.SEpc = ctx.PC
	r.Priv = PrivS

	if t.hook != nil {
		t.hook(PrivS, ctx.PC, ctx.Payload)
	}
	t.reservation.Cancel()

	entry := vectorEntry(r.STvec, ctx)
	t.traceTrap(ctx, PrivS, entry)
	return entry
}

// vectorEntry computes the handler address from an xtvec register.
// MODE 0 sends every trap to BASE; MODE 1 offsets interrupt traps by
// four bytes per cause code.
func vectorEntry(tvec uint64, ctx TrapContext) uint64 {
	base := tvec &^ 0b11
	if tvec&0b11 == 1 && ctx.Interrupt {
		return base + 4*ctx.Code
	}
	return base
}

func (t *TrapUnit) traceTrap(ctx TrapContext, target PrivLevel, entry uint64) {
	if t.trace == nil || !t.cfg.TraceTraps {
		return
	}
	kind := "exception"
	if ctx.Interrupt {
		kind = "interrupt"
	}
	fmt.Fprintf(t.trace, "trap: %s code=%d pc=%#x -> %s entry=%#x\n",
		kind, ctx.Code, ctx.PC, target, entry)
}
