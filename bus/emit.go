package bus

import (
	"fmt"
	"reflect"

	"github.com/dwhitmore/beacon/message"
)

// EmitUntargeted runs the untargeted pipeline for msg: interceptors,
// global catch-all listeners, the type's catch-all listeners, then the
// type's post-processors. It returns only after every listener returned;
// a listener panic propagates to the caller and skips the remaining
// listeners of this emission.
func (b *Bus) EmitUntargeted(msg message.Message) error {
	t, err := validateEmit(msg, message.CategoryUntargeted)
	if err != nil {
		return err
	}

	ec := EmitContext{Category: message.CategoryUntargeted, Type: t}
	m, cancelled := b.runInterceptors(ec, msg)
	if cancelled {
		b.diag(Diagnostic{Kind: DiagInterceptorCancellation, Category: ec.Category, Type: t})
		return nil
	}

	matched := fanOut(b.global, func(n Node, p int) { n.HandleGlobalUntargeted(p, m) })
	matched = fanOut(b.catchAll[t], func(n Node, p int) { n.HandleCatchAll(p, message.None, m) }) || matched
	matched = fanOut(b.postCatchAll[t], func(fn PostProcessor, _ int) { fn(message.None, m) }) || matched

	if !matched {
		b.diag(Diagnostic{Kind: DiagNoMatchingListener, Category: ec.Category, Type: t})
	}
	return nil
}

// EmitTargeted runs the targeted pipeline for msg sent to addr:
// interceptors, global catch-all, the (type, address) listeners, the
// type's address-agnostic listeners, then post-processors in the mirrored
// order.
func (b *Bus) EmitTargeted(addr message.Address, msg message.Message) error {
	t, err := validateEmit(msg, message.CategoryTargeted)
	if err != nil {
		return err
	}
	if addr.IsNone() {
		return fmt.Errorf("%w: address is empty", ErrInvalidArgument)
	}

	ec := EmitContext{Category: message.CategoryTargeted, Address: addr, Type: t}
	m, cancelled := b.runInterceptors(ec, msg)
	if cancelled {
		b.diag(Diagnostic{Kind: DiagInterceptorCancellation, Category: ec.Category, Type: t, Address: addr})
		return nil
	}

	matched := fanOut(b.global, func(n Node, p int) { n.HandleGlobalTargeted(p, addr, m) })
	matched = fanOut(lookupAddr(b.targeted, t, addr), func(n Node, p int) { n.HandleTargeted(p, addr, m) }) || matched
	matched = fanOut(b.catchAll[t], func(n Node, p int) { n.HandleCatchAll(p, addr, m) }) || matched
	matched = fanOut(lookupAddr(b.postTargeted, t, addr), func(fn PostProcessor, _ int) { fn(addr, m) }) || matched
	matched = fanOut(b.postCatchAll[t], func(fn PostProcessor, _ int) { fn(addr, m) }) || matched

	if !matched {
		b.diag(Diagnostic{Kind: DiagNoMatchingListener, Category: ec.Category, Type: t, Address: addr})
	}
	return nil
}

// EmitBroadcast runs the broadcast pipeline for msg sent from origin. It
// is the mirror of EmitTargeted with the origin in place of the
// destination.
func (b *Bus) EmitBroadcast(origin message.Address, msg message.Message) error {
	t, err := validateEmit(msg, message.CategoryBroadcast)
	if err != nil {
		return err
	}
	if origin.IsNone() {
		return fmt.Errorf("%w: origin is empty", ErrInvalidArgument)
	}

	ec := EmitContext{Category: message.CategoryBroadcast, Address: origin, Type: t}
	m, cancelled := b.runInterceptors(ec, msg)
	if cancelled {
		b.diag(Diagnostic{Kind: DiagInterceptorCancellation, Category: ec.Category, Type: t, Address: origin})
		return nil
	}

	matched := fanOut(b.global, func(n Node, p int) { n.HandleGlobalBroadcast(p, origin, m) })
	matched = fanOut(lookupAddr(b.broadcast, t, origin), func(n Node, p int) { n.HandleBroadcast(p, origin, m) }) || matched
	matched = fanOut(b.catchAll[t], func(n Node, p int) { n.HandleCatchAll(p, origin, m) }) || matched
	matched = fanOut(lookupAddr(b.postBroadcast, t, origin), func(fn PostProcessor, _ int) { fn(origin, m) }) || matched
	matched = fanOut(b.postCatchAll[t], func(fn PostProcessor, _ int) { fn(origin, m) }) || matched

	if !matched {
		b.diag(Diagnostic{Kind: DiagNoMatchingListener, Category: ec.Category, Type: t, Address: origin})
	}
	return nil
}

// runInterceptors walks the chain for the emission's category and type in
// priority order. It returns the possibly rewritten message, or cancelled
// when an interceptor returned nil. The chain is snapshotted like every
// other table, so an interceptor adding or removing interceptors only
// affects future emissions.
func (b *Bus) runInterceptors(ec EmitContext, msg message.Message) (message.Message, bool) {
	s := b.interceptors[ec.Category][ec.Type]
	if s == nil || s.len() == 0 {
		return msg, false
	}
	snap := s.snapshot()
	defer s.release(snap)
	for _, e := range snap {
		msg = e.value(ec, msg)
		if msg == nil {
			return nil, true
		}
	}
	return msg, false
}

// validateEmit rejects nil messages and category mismatches before any
// pipeline stage runs.
func validateEmit(msg message.Message, want message.Category) (reflect.Type, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: message is nil", ErrInvalidArgument)
	}
	if got := msg.Category(); got != want {
		return nil, fmt.Errorf("%w: %s message emitted through the %s entry point",
			ErrInvalidArgument, got, want)
	}
	return message.TypeOf(msg), nil
}

// fanOut snapshots a set and invokes call for every entry in order,
// passing the entry's priority so node listeners run only the matching
// band. It reports whether the set had at least one entry, which feeds
// the no-matching-listener diagnostic.
func fanOut[V any](s *entrySet[V], call func(v V, priority int)) bool {
	if s == nil || s.len() == 0 {
		return false
	}
	snap := s.snapshot()
	defer s.release(snap)
	for _, e := range snap {
		call(e.value, e.priority)
	}
	return true
}

// lookupAddr resolves the set under (t, addr), or nil.
func lookupAddr[V any](table map[reflect.Type]map[message.Address]*entrySet[V], t reflect.Type, addr message.Address) *entrySet[V] {
	byAddr, ok := table[t]
	if !ok {
		return nil
	}
	return byAddr[addr]
}
