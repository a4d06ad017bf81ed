package priv

import "sync"

// Reservation models the hardware reservation set used by
// load-reserve/store-conditional sequences. The privilege and trap
// logic only cancels reservations; acquiring and matching them belongs
// to the memory system. Implementations must be safe to call from
// multiple harts.
type Reservation interface {
	// Begin opens a speculative reservation, returning false when the
	// platform refuses one.
	Begin() bool

	// Load records a reservation on the given physical address.
	Load(addr uint64)

	// Match reports whether an outstanding reservation covers the
	// given physical address.
	Match(addr uint64) bool

	// Cancel clears any outstanding reservation. Called on every
	// privilege transition.
	Cancel()
}

// LocalReservation is an in-process reservation set covering a single
// address, sufficient for single-platform simulation.
type LocalReservation struct {
	mu    sync.Mutex
	valid bool
	addr  uint64
}

// NewLocalReservation creates an empty reservation set.
func NewLocalReservation() *LocalReservation {
	return &LocalReservation{}
}

// Begin opens a speculative reservation. The local implementation
// always grants one.
func (r *LocalReservation) Begin() bool {
	return true
}

// Load records a reservation on addr, replacing any previous one.
func (r *LocalReservation) Load(addr uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.valid = true
	r.addr = addr
}

// Match reports whether the outstanding reservation covers addr.
func (r *LocalReservation) Match(addr uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.valid && r.addr == addr
}

// Cancel clears the outstanding reservation.
func (r *LocalReservation) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.valid = false
}
