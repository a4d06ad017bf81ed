package priv

import "github.com/sarchlab/rvsim/config"

// Interrupt codes. The code for a source at privilege p is the base
// code plus the numeric privilege level.
const (
	IntSSoft  uint64 = 1  // supervisor software
	IntMSoft  uint64 = 3  // machine software
	IntSTimer uint64 = 5  // supervisor timer
	IntMTimer uint64 = 7  // machine timer
	IntSExt   uint64 = 9  // supervisor external
	IntMExt   uint64 = 11 // machine external
)

// Exception codes.
const (
	ExcInstrMisaligned  uint64 = 0
	ExcInstrAccess      uint64 = 1
	ExcIllegalInstr     uint64 = 2
	ExcBreakpoint       uint64 = 3
	ExcLoadMisaligned   uint64 = 4
	ExcLoadAccess       uint64 = 5
	ExcStoreMisaligned  uint64 = 6
	ExcStoreAccess      uint64 = 7
	ExcEcallU           uint64 = 8
	ExcEcallS           uint64 = 9
	ExcEcallM           uint64 = 11
	ExcInstrPageFault   uint64 = 12
	ExcLoadPageFault    uint64 = 13
	ExcStorePageFault   uint64 = 15
	excCodeCount               = 16
)

// delegatableExceptions masks the exception codes that may be routed to
// supervisor mode. Machine ecall is never delegated.
const delegatableExceptions uint64 = 1<<excCodeCount - 1 - 1<<ExcEcallM

// delegatableInterrupts masks the supervisor-level interrupt bits.
const delegatableInterrupts uint64 = 1<<IntSExt | 1<<IntSSoft | 1<<IntSTimer

// Dispatcher decides which pending interrupt preempts execution and at
// which privilege level a trap is handled.
type Dispatcher struct {
	regFile *RegFile
	cfg     *config.ISA
}

// NewDispatcher creates a Dispatcher operating on the given register
// file under the given ISA configuration.
func NewDispatcher(regFile *RegFile, cfg *config.ISA) *Dispatcher {
	return &Dispatcher{regFile: regFile, cfg: cfg}
}

// selectPending picks the highest-priority set bit in mask among the
// sources of one privilege level: external first, then software, then
// timer.
func selectPending(mask uint64, priv PrivLevel) (uint64, bool) {
	for _, base := range [3]uint64{8, 0, 4} {
		code := base + uint64(priv)
		if mask>>code&1 == 1 {
			return code, true
		}
	}
	return 0, false
}

// selectMachineOwned picks the highest-priority bit in the
// machine-owned set. The set also holds supervisor-level sources whose
// delegation bit is clear; those are handled at machine level too, after
// the machine-level sources.
func selectMachineOwned(mask uint64) (uint64, bool) {
	for _, p := range [2]PrivLevel{PrivM, PrivS} {
		if code, ok := selectPending(mask, p); ok {
			return code, true
		}
	}
	return 0, false
}

// PendingInterrupt returns the interrupt that should preempt execution
// now, with the privilege level that will handle it, or ok=false when
// no enabled interrupt is visible at the current privilege.
//
// Machine-owned interrupts are considered before supervisor-owned
// interrupts regardless of per-source priority.
func (d *Dispatcher) PendingInterrupt() (code uint64, target PrivLevel, ok bool) {
	r := d.regFile
	pending := r.MIP & r.MIE

	mOwned := pending &^ r.Mideleg
	sOwned := pending & r.Mideleg

	mVisible := r.Priv < PrivM || (r.Priv == PrivM && r.Status.MIE())
	if mVisible {
		if code, ok := selectMachineOwned(mOwned); ok {
			return code, PrivM, true
		}
	}

	sVisible := r.Priv == PrivU || (r.Priv == PrivS && r.Status.SIE())
	if sVisible {
		if code, ok := selectPending(sOwned, PrivS); ok {
			return code, PrivS, true
		}
	}

	return 0, 0, false
}

// ExceptionTarget resolves the privilege level that handles a
// synchronous exception raised at the current privilege. Delegation
// never lowers the handling privilege below the privilege the
// exception was raised at.
func (d *Dispatcher) ExceptionTarget(code uint64) PrivLevel {
	r := d.regFile

	target := PrivM
	if d.cfg.Supervisor && code < excCodeCount && r.Medeleg>>code&1 == 1 {
		target = PrivS
	}

	if target < r.Priv {
		target = r.Priv
	}
	return target
}
