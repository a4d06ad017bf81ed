package priv

import "fmt"

// MRET commits a machine-mode trap return and returns the program
// counter to resume at. The caller must already have verified that the
// hart is in machine mode.
func (t *TrapUnit) MRET() uint64 {
	r := t.regFile
	s := &r.Status

	prev := s.MPP()
	s.SetMIE(s.MPIE())
	s.SetMPIE(true)
	r.Priv = prev

	// MPP resets to the least-privileged configured level.
	if t.cfg.User {
		s.SetMPP(PrivU)
	} else {
		s.SetMPP(PrivM)
	}

	if r.Priv != PrivM {
		s.SetMPRV(false)
	}

	t.reservation.Cancel()

	target := retTarget(r.MEpc)
	t.traceRet("mret", target)
	return target
}

// SRET commits a supervisor-mode trap return and returns the program
// counter to resume at. The caller rejects SRET when supervisor mode
// is not configured or the current privilege is insufficient; reaching
// this method in such a state is a programming error.
func (t *TrapUnit) SRET() uint64 {
	if !t.cfg.Supervisor {
		panic("SRET without supervisor mode configured")
	}

	r := t.regFile
	s := &r.Status

	s.SetSIE(s.SPIE())
	s.SetSPIE(true)
	if s.SPP() {
		r.Priv = PrivS
	} else {
		r.Priv = PrivU
	}
	s.SetSPP(false)

	if r.Priv != PrivM {
		s.SetMPRV(false)
	}

	t.reservation.Cancel()

	target := retTarget(r.SEpc)
	t.traceRet("sret", target)
	return target
}

// retTarget masks an xepc value down to the instruction alignment the
// model supports.
func retTarget(epc uint64) uint64 {
	return epc &^ 0b11
}

func (t *TrapUnit) traceRet(kind string, target uint64) {
	if t.trace == nil || !t.cfg.TraceTraps {
		return
	}
	fmt.Fprintf(t.trace, "%s: priv=%s target=%#x\n",
		kind, t.regFile.Priv, target)
}
