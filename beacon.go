// Package beacon ties the dispatch core together for convenience call
// sites: a process-wide default bus with a scoped override mechanism,
// plus thin emission helpers that resolve it.
//
// The bus type itself (package bus) knows nothing about any of this; it
// stays instantiable and isolated, and hosts that want explicit wiring
// should pass *bus.Bus values around instead. The default-bus holder
// exists for code where threading a bus through every call site is not
// worth it.
package beacon

import (
	"sync"

	"github.com/dwhitmore/beacon/bus"
	"github.com/dwhitmore/beacon/message"
)

type frame struct {
	b *bus.Bus
}

var (
	holderMu sync.Mutex
	holder   []*frame
)

// Default returns the current process-wide bus, creating it on first use.
// While an override is in place, Default returns the override instead.
func Default() *bus.Bus {
	holderMu.Lock()
	defer holderMu.Unlock()
	if len(holder) == 0 {
		holder = append(holder, &frame{b: bus.New()})
	}
	return holder[len(holder)-1].b
}

// Override installs b as the bus Default returns and gives back the
// restore function. Call restore with defer so the previous bus comes
// back even when the scope fails:
//
//	restore := beacon.Override(testBus)
//	defer restore()
//
// Restore is idempotent, and overrides can nest; restoring out of order
// removes only the matching frame.
func Override(b *bus.Bus) (restore func()) {
	if b == nil {
		panic("beacon: Override called with nil bus")
	}
	f := &frame{b: b}

	holderMu.Lock()
	holder = append(holder, f)
	holderMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			holderMu.Lock()
			defer holderMu.Unlock()
			for i := len(holder) - 1; i >= 0; i-- {
				if holder[i] == f {
					holder = append(holder[:i], holder[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit sends an untargeted message on the default bus.
func Emit(msg message.Message) error {
	return Default().EmitUntargeted(msg)
}

// EmitAt sends a targeted message to addr on the default bus.
func EmitAt(addr message.Address, msg message.Message) error {
	return Default().EmitTargeted(addr, msg)
}

// EmitFrom sends a broadcast message from origin on the default bus.
func EmitFrom(origin message.Address, msg message.Message) error {
	return Default().EmitBroadcast(origin, msg)
}
