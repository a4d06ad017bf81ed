// Package priv implements RISC-V privilege levels, CSR access control,
// and trap entry/return semantics for a single hart.
package priv

// PrivLevel represents a RISC-V privilege level. The numeric values
// follow the architectural encoding, so ordinal comparison gives the
// privilege ordering (User < Supervisor < Machine).
type PrivLevel uint8

// RISC-V privilege levels.
const (
	PrivU PrivLevel = 0 // User
	PrivS PrivLevel = 1 // Supervisor
	PrivM PrivLevel = 3 // Machine
)

// String returns the conventional single-letter name of the privilege level.
func (p PrivLevel) String() string {
	switch p {
	case PrivU:
		return "U"
	case PrivS:
		return "S"
	case PrivM:
		return "M"
	default:
		return "?"
	}
}

// CSR identifies a control-and-status register by its 12-bit address.
type CSR uint16

// CSR addresses used by the privilege and trap logic.
const (
	CSRSeed CSR = 0x015 // entropy source (Zkr)

	CSRSStatus    CSR = 0x100
	CSRSIE        CSR = 0x104
	CSRSTvec      CSR = 0x105
	CSRSCounteren CSR = 0x106
	CSRSScratch   CSR = 0x140
	CSRSEpc       CSR = 0x141
	CSRSCause     CSR = 0x142
	CSRSTval      CSR = 0x143
	CSRSIP        CSR = 0x144
	CSRSTimecmp   CSR = 0x14D
	CSRSTimecmpH  CSR = 0x15D // RV32 high half
	CSRSatp       CSR = 0x180

	CSRMStatus    CSR = 0x300
	CSRMisa       CSR = 0x301
	CSRMedeleg    CSR = 0x302
	CSRMideleg    CSR = 0x303
	CSRMIE        CSR = 0x304
	CSRMTvec      CSR = 0x305
	CSRMCounteren CSR = 0x306
	CSRMEnvcfg    CSR = 0x30A
	CSRMScratch   CSR = 0x340
	CSRMEpc       CSR = 0x341
	CSRMCause     CSR = 0x342
	CSRMTval      CSR = 0x343
	CSRMIP        CSR = 0x344

	CSRCycle   CSR = 0xC00
	CSRTime    CSR = 0xC01
	CSRInstret CSR = 0xC02

	// Performance counter ranges. The low 5 address bits select the
	// counter index within mcounteren/scounteren.
	csrCounterBase  CSR = 0xC00
	csrCounterLast  CSR = 0xC1F
	csrCounterHBase CSR = 0xC80 // RV32 high halves
	csrCounterHLast CSR = 0xC9F
)

// AccessMode is the two-bit access-control coding carried in the CSR
// attribute metadata.
type AccessMode uint8

// Access-control codes. Two distinct read-only codes exist because the
// attribute space reserves both; they behave identically.
const (
	AccessReadOnly  AccessMode = 0b00
	AccessReadOnly1 AccessMode = 0b01
	AccessReadWrite AccessMode = 0b10
	AccessNone      AccessMode = 0b11
)

// MinPriv returns the minimum privilege required to access the CSR,
// decoded from bits [9:8] of the address.
func (c CSR) MinPriv() PrivLevel {
	return PrivLevel((c >> 8) & 0b11)
}

// IsCounter reports whether the CSR lies in a performance-counter
// address range.
func (c CSR) IsCounter() bool {
	return (c >= csrCounterBase && c <= csrCounterLast) ||
		(c >= csrCounterHBase && c <= csrCounterHLast)
}

// CounterIndex returns the counter-enable bit index for a counter CSR.
func (c CSR) CounterIndex() uint {
	return uint(c & 0x1F)
}

// csrAttr holds the static per-CSR attribute metadata.
type csrAttr struct {
	mode AccessMode
	// supervisor marks CSRs that exist only when the supervisor
	// extension is configured.
	supervisor bool
	// sstc marks CSRs that exist only with the Sstc extension.
	sstc bool
	// zkr marks CSRs that exist only with the Zkr extension.
	zkr bool
	// rv32 marks the high-half CSRs that exist only when XLEN is 32.
	rv32 bool
}

// csrAttrs is the attribute table for every CSR the model implements.
// CSRs absent from the table are undefined and read as AccessNone.
var csrAttrs = map[CSR]csrAttr{
	CSRSeed: {mode: AccessReadWrite, zkr: true},

	CSRSStatus:    {mode: AccessReadWrite, supervisor: true},
	CSRSIE:        {mode: AccessReadWrite, supervisor: true},
	CSRSTvec:      {mode: AccessReadWrite, supervisor: true},
	CSRSCounteren: {mode: AccessReadWrite, supervisor: true},
	CSRSScratch:   {mode: AccessReadWrite, supervisor: true},
	CSRSEpc:       {mode: AccessReadWrite, supervisor: true},
	CSRSCause:     {mode: AccessReadWrite, supervisor: true},
	CSRSTval:      {mode: AccessReadWrite, supervisor: true},
	CSRSIP:        {mode: AccessReadWrite, supervisor: true},
	CSRSTimecmp:   {mode: AccessReadWrite, supervisor: true, sstc: true},
	CSRSTimecmpH:  {mode: AccessReadWrite, supervisor: true, sstc: true, rv32: true},
	CSRSatp:       {mode: AccessReadWrite, supervisor: true},

	CSRMStatus:    {mode: AccessReadWrite},
	CSRMisa:       {mode: AccessReadWrite},
	CSRMedeleg:    {mode: AccessReadWrite, supervisor: true},
	CSRMideleg:    {mode: AccessReadWrite, supervisor: true},
	CSRMIE:        {mode: AccessReadWrite},
	CSRMTvec:      {mode: AccessReadWrite},
	CSRMCounteren: {mode: AccessReadWrite},
	CSRMEnvcfg:    {mode: AccessReadWrite},
	CSRMScratch:   {mode: AccessReadWrite},
	CSRMEpc:       {mode: AccessReadWrite},
	CSRMCause:     {mode: AccessReadWrite},
	CSRMTval:      {mode: AccessReadWrite},
	CSRMIP:        {mode: AccessReadWrite},
}

func init() {
	// Performance counters are read-only from software at every level.
	for c := csrCounterBase; c <= csrCounterLast; c++ {
		csrAttrs[c] = csrAttr{mode: AccessReadOnly}
	}
	for c := csrCounterHBase; c <= csrCounterHLast; c++ {
		csrAttrs[c] = csrAttr{mode: AccessReadOnly, rv32: true}
	}
}
