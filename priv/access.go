package priv

import "github.com/sarchlab/rvsim/config"

// AccessChecker validates CSR accesses against the current privilege
// level and the per-CSR attribute metadata. It is a pure predicate
// over the register file; it never mutates state.
type AccessChecker struct {
	regFile *RegFile
	cfg     *config.ISA
}

// NewAccessChecker creates an AccessChecker for the given register
// file and ISA configuration.
func NewAccessChecker(regFile *RegFile, cfg *config.ISA) *AccessChecker {
	return &AccessChecker{regFile: regFile, cfg: cfg}
}

// CanAccess reports whether the CSR may be accessed from the given
// privilege level in the given direction. An access is legal only if
// every rule passes; the caller turns a false result into an
// illegal-instruction exception.
func (a *AccessChecker) CanAccess(csr CSR, priv PrivLevel, isWrite bool) bool {
	attr, defined := a.lookup(csr)
	if !defined {
		return false
	}

	return a.checkMode(attr, isWrite) &&
		a.checkPriv(csr, priv) &&
		a.checkTVM(csr, priv) &&
		a.checkCounter(csr, priv) &&
		a.checkSpecial(csr, priv, isWrite)
}

// lookup resolves the CSR attribute metadata, applying the configured
// extension set: a CSR whose extension is absent is undefined.
func (a *AccessChecker) lookup(csr CSR) (csrAttr, bool) {
	attr, ok := csrAttrs[csr]
	if !ok {
		return csrAttr{}, false
	}
	if attr.supervisor && !a.cfg.Supervisor {
		return csrAttr{}, false
	}
	if attr.sstc && !a.cfg.Sstc {
		return csrAttr{}, false
	}
	if attr.zkr && !a.cfg.Zkr {
		return csrAttr{}, false
	}
	if attr.rv32 && a.cfg.XLEN != 32 {
		return csrAttr{}, false
	}
	return attr, true
}

// checkMode rejects writes to read-only CSRs and every access to a
// no-access CSR.
func (a *AccessChecker) checkMode(attr csrAttr, isWrite bool) bool {
	switch attr.mode {
	case AccessNone:
		return false
	case AccessReadOnly, AccessReadOnly1:
		return !isWrite
	default:
		return true
	}
}

// checkPriv requires the requesting privilege to be at least the
// CSR's minimum privilege.
func (a *AccessChecker) checkPriv(csr CSR, priv PrivLevel) bool {
	return priv >= csr.MinPriv()
}

// checkTVM blocks satp from supervisor mode while mstatus.TVM is set.
func (a *AccessChecker) checkTVM(csr CSR, priv PrivLevel) bool {
	if csr == CSRSatp && priv == PrivS && a.regFile.Status.TVM() {
		return false
	}
	return true
}

// checkCounter gates the performance-counter CSRs on the
// counter-enable masks. Machine mode is always allowed. Supervisor
// mode requires the mcounteren bit. User mode requires the mcounteren
// bit, and additionally the scounteren bit when supervisor mode is
// configured; without a supervisor extension the scounteren gate does
// not exist and is treated as permissive.
func (a *AccessChecker) checkCounter(csr CSR, priv PrivLevel) bool {
	if !csr.IsCounter() || priv == PrivM {
		return true
	}

	idx := csr.CounterIndex()
	if a.regFile.MCounteren>>idx&1 == 0 {
		return false
	}
	if priv == PrivU && a.cfg.Supervisor {
		return a.regFile.SCounteren>>idx&1 == 1
	}
	return true
}

// checkSpecial applies the fixed per-CSR rules that override the
// generic coding.
func (a *AccessChecker) checkSpecial(csr CSR, priv PrivLevel, isWrite bool) bool {
	switch csr {
	case CSRSTimecmp, CSRSTimecmpH:
		// Machine always; supervisor only when the time counter is
		// exposed and the Sstc enable is set.
		if priv == PrivM {
			return true
		}
		return priv == PrivS &&
			a.regFile.MCounteren&counterenTM != 0 &&
			a.regFile.STCE()
	case CSRSeed:
		// The entropy source accepts machine-mode writes only.
		// TODO: relax for lower privileges once an mseccfg model
		// exists to base the policy on.
		return isWrite && priv == PrivM
	default:
		return true
	}
}
