package priv

import "fmt"

// Status is the machine status register (mstatus). It is stored as a
// packed value, with named accessors over the architectural bit ranges
// so that every mutation is checked at the field boundary.
type Status struct {
	value uint64
}

// mstatus bit positions.
const (
	statusSIE  = 1
	statusMIE  = 3
	statusSPIE = 5
	statusMPIE = 7
	statusSPP  = 8
	statusMPP  = 11 // 2 bits
	statusMPRV = 17
	statusTVM  = 20
	statusUXL  = 32 // 2 bits
	statusSXL  = 34 // 2 bits
)

// statusWritableMask covers the mstatus fields software may modify
// through a CSR write. The XL fields are read-only in this model.
const statusWritableMask uint64 = 1<<statusSIE | 1<<statusMIE |
	1<<statusSPIE | 1<<statusMPIE | 1<<statusSPP | 0b11<<statusMPP |
	1<<statusMPRV | 1<<statusTVM

func (s *Status) bit(pos uint) bool {
	return s.value>>pos&1 == 1
}

func (s *Status) setBit(pos uint, v bool) {
	if v {
		s.value |= 1 << pos
	} else {
		s.value &^= 1 << pos
	}
}

// SIE returns the supervisor global interrupt-enable bit.
func (s *Status) SIE() bool { return s.bit(statusSIE) }

// SetSIE sets the supervisor global interrupt-enable bit.
func (s *Status) SetSIE(v bool) { s.setBit(statusSIE, v) }

// MIE returns the machine global interrupt-enable bit.
func (s *Status) MIE() bool { return s.bit(statusMIE) }

// SetMIE sets the machine global interrupt-enable bit.
func (s *Status) SetMIE(v bool) { s.setBit(statusMIE, v) }

// SPIE returns the supervisor previous interrupt-enable bit.
func (s *Status) SPIE() bool { return s.bit(statusSPIE) }

// SetSPIE sets the supervisor previous interrupt-enable bit.
func (s *Status) SetSPIE(v bool) { s.setBit(statusSPIE, v) }

// MPIE returns the machine previous interrupt-enable bit.
func (s *Status) MPIE() bool { return s.bit(statusMPIE) }

// SetMPIE sets the machine previous interrupt-enable bit.
func (s *Status) SetMPIE(v bool) { s.setBit(statusMPIE, v) }

// SPP returns the supervisor previous privilege bit
// (false = User, true = Supervisor).
func (s *Status) SPP() bool { return s.bit(statusSPP) }

// SetSPP sets the supervisor previous privilege bit.
func (s *Status) SetSPP(v bool) { s.setBit(statusSPP, v) }

// MPP returns the machine previous privilege field. A stored value
// that does not decode to a valid privilege level indicates state
// corruption and panics.
func (s *Status) MPP() PrivLevel {
	p := PrivLevel(s.value >> statusMPP & 0b11)
	if p != PrivU && p != PrivS && p != PrivM {
		panic(fmt.Sprintf("mstatus.MPP holds invalid privilege encoding %d", p))
	}
	return p
}

// SetMPP sets the machine previous privilege field. Storing a value
// that is not a valid privilege level panics.
func (s *Status) SetMPP(p PrivLevel) {
	if p != PrivU && p != PrivS && p != PrivM {
		panic(fmt.Sprintf("attempt to encode invalid privilege %d into mstatus.MPP", p))
	}
	s.value = s.value&^(0b11<<statusMPP) | uint64(p)<<statusMPP
}

// MPRV returns the memory-privilege-override bit.
func (s *Status) MPRV() bool { return s.bit(statusMPRV) }

// SetMPRV sets the memory-privilege-override bit.
func (s *Status) SetMPRV(v bool) { s.setBit(statusMPRV, v) }

// TVM returns the trap-virtual-memory bit.
func (s *Status) TVM() bool { return s.bit(statusTVM) }

// SetTVM sets the trap-virtual-memory bit.
func (s *Status) SetTVM(v bool) { s.setBit(statusTVM, v) }

// Bits returns the packed mstatus value.
func (s *Status) Bits() uint64 { return s.value }

// Write updates the software-writable mstatus fields from a packed
// value. An invalid privilege encoding in the incoming MPP field is
// treated as write-any-read-legal and leaves the stored MPP unchanged.
func (s *Status) Write(v uint64) {
	mpp := PrivLevel(v >> statusMPP & 0b11)
	mask := statusWritableMask
	if mpp != PrivU && mpp != PrivS && mpp != PrivM {
		mask &^= 0b11 << statusMPP
	}
	s.value = s.value&^mask | v&mask
}

// Cause is an xcause register: an interrupt flag plus a cause code.
type Cause struct {
	// Interrupt is true for interrupt traps, false for exceptions.
	Interrupt bool

	// Code is the exception or interrupt code.
	Code uint64
}

// Bits returns the packed xcause value for the given register width.
func (c Cause) Bits(xlen int) uint64 {
	v := c.Code
	if c.Interrupt {
		v |= 1 << (xlen - 1)
	}
	return v
}

// RegFile holds the privileged architectural state of one hart: the
// current privilege level and every CSR the privilege and trap logic
// touches. It is pure state; all behavior lives in the units that
// operate on it.
type RegFile struct {
	// Priv is the current privilege level of the hart.
	Priv PrivLevel

	// Status is the mstatus register. sstatus is a restricted view
	// of the same state.
	Status Status

	// MEpc and SEpc are the trap exception program counters.
	MEpc uint64
	SEpc uint64

	// MCause and SCause record the cause of the last trap taken at
	// each privilege level.
	MCause Cause
	SCause Cause

	// MTval and STval hold auxiliary trap information (e.g. a
	// faulting address), or zero when none applies.
	MTval uint64
	STval uint64

	// MTvec and STvec are the trap-vector base-address registers.
	MTvec uint64
	STvec uint64

	// MScratch and SScratch are the trap-handler scratch registers.
	MScratch uint64
	SScratch uint64

	// Medeleg and Mideleg are the exception and interrupt delegation
	// masks. Both must read as zero when supervisor mode is not
	// configured.
	Medeleg uint64
	Mideleg uint64

	// MIE and MIP are the interrupt enable and pending masks.
	// The supervisor views (sie/sip) expose only delegated bits.
	MIE uint64
	MIP uint64

	// MCounteren and SCounteren gate access to the performance
	// counter CSRs from less-privileged modes.
	MCounteren uint32
	SCounteren uint32

	// MEnvcfg is the machine environment configuration register.
	MEnvcfg uint64

	// Misa describes the configured base width and extensions.
	Misa uint64

	// Satp is the supervisor address translation and protection
	// register. Translation itself is outside this model; the
	// register exists so TVM gating has a subject.
	Satp uint64

	// STimecmp is the supervisor timer compare register (Sstc).
	STimecmp uint64

	// Cycle, Time, and InstRet back the user-visible counters.
	Cycle   uint64
	Time    uint64
	InstRet uint64
}

// misa extension bits.
const (
	misaS = 1 << 18
	misaU = 1 << 20
)

// menvcfg bit positions.
const envcfgSTCE = 63

// STCE returns the Sstc-enable bit of menvcfg.
func (r *RegFile) STCE() bool {
	return r.MEnvcfg>>envcfgSTCE&1 == 1
}

// mcounteren.TM gates the time CSR and the stimecmp pair.
const counterenTM = 1 << 1

// NewRegFile creates a register file in the architectural reset state:
// machine privilege, interrupts disabled, all delegation cleared.
func NewRegFile(xlen int, supervisor, user bool) *RegFile {
	r := &RegFile{
		Priv: PrivM,
	}

	if xlen == 64 {
		r.Misa = 2 << 62
		// UXL/SXL encode the 64-bit width for the lower levels.
		r.Status.value |= 2<<statusUXL | 2<<statusSXL
	} else {
		r.Misa = 1 << 30
	}
	if supervisor {
		r.Misa |= misaS
	}
	if user {
		r.Misa |= misaU
	}

	// Reset leaves a valid privilege in MPP so the field never
	// decodes to a reserved value.
	r.Status.SetMPP(PrivM)

	return r
}
