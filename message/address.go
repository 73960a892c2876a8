package message

import (
	"fmt"
	"sync/atomic"
)

// Address is an opaque identity used to key targeted and broadcast
// registrations and emissions. Addresses are comparable, immutable, and
// independent of the bus: the bus never checks whether the owner behind an
// address is still alive.
//
// The zero value is the None sentinel, meaning "no address". It is what
// the ledger records for registrations that are not addressed (catch-all
// and global registrations).
type Address struct {
	id uint64
}

// None is the empty address sentinel.
var None = Address{}

var addressCounter atomic.Uint64

// NewAddress allocates a process-unique address.
func NewAddress() Address {
	return Address{id: addressCounter.Add(1)}
}

// At builds an address from an identity the host already owns, such as an
// entity or session id. The host is responsible for uniqueness; id 0 is
// reserved for None.
func At(id uint64) Address {
	return Address{id: id}
}

// IsNone reports whether a is the empty sentinel.
func (a Address) IsNone() bool { return a.id == 0 }

// ID returns the underlying identity value. Zero means None.
func (a Address) ID() uint64 { return a.id }

// String implements fmt.Stringer.
func (a Address) String() string {
	if a.IsNone() {
		return "addr(none)"
	}
	return fmt.Sprintf("addr(%d)", a.id)
}
