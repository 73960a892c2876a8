package bus

import (
	"fmt"
	"reflect"

	"github.com/dwhitmore/beacon/internal/ident"
	"github.com/dwhitmore/beacon/ledger"
	"github.com/dwhitmore/beacon/message"
)

// RegisterOption configures one registration.
type RegisterOption func(*regConfig)

type regConfig struct {
	priority int
	key      any
}

// WithPriority sets the registration's priority. Lower values run first;
// the default is 0.
func WithPriority(p int) RegisterOption {
	return func(c *regConfig) {
		c.priority = p
	}
}

// WithIdentityKey overrides the reference-counting identity for an
// interceptor or post-processor registration. Wrappers that adapt a user
// callback into the bus's raw signature pass the user callback's identity
// here so duplicate registrations of the same callback still collapse
// into one counted entry.
func WithIdentityKey(key any) RegisterOption {
	return func(c *regConfig) {
		c.key = key
	}
}

func buildRegConfig(opts []RegisterOption) regConfig {
	var c regConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// PriorityOf evaluates opts and returns the effective priority. Callers
// that mirror a bus registration in a node's own buckets use it to file
// the callback under the same priority band the bus will dispatch.
func PriorityOf(opts ...RegisterOption) int {
	return buildRegConfig(opts).priority
}

// nodeKey identifies one (node, priority) pair in the listener tables.
// A node registered at two priorities holds two entries, so the fan-out
// walk interleaves its bands with other nodes' in priority order instead
// of collapsing them onto the first registration's priority.
type nodeKey struct {
	node     Node
	priority int
}

// RegisterUntargeted adds n to the catch-all table for t. For untargeted
// types this is the only listener table; for targeted and broadcast types
// the same table serves the address-agnostic variants.
func (b *Bus) RegisterUntargeted(t reflect.Type, n Node, opts ...RegisterOption) (Deregister, error) {
	return b.registerCatchAll(t, n, ledger.MethodUntargeted, opts)
}

// RegisterTargetedAnyAddress adds n as a listener for every targeted
// emission of type t regardless of destination.
func (b *Bus) RegisterTargetedAnyAddress(t reflect.Type, n Node, opts ...RegisterOption) (Deregister, error) {
	return b.registerCatchAll(t, n, ledger.MethodTargetedAnyAddress, opts)
}

// RegisterBroadcastAnySource adds n as a listener for every broadcast
// emission of type t regardless of origin.
func (b *Bus) RegisterBroadcastAnySource(t reflect.Type, n Node, opts ...RegisterOption) (Deregister, error) {
	return b.registerCatchAll(t, n, ledger.MethodBroadcastAnySource, opts)
}

func (b *Bus) registerCatchAll(t reflect.Type, n Node, m ledger.Method, opts []RegisterOption) (Deregister, error) {
	if err := validateTypeAndNode(t, n); err != nil {
		return nil, err
	}
	c := buildRegConfig(opts)

	s, ok := b.catchAll[t]
	if !ok {
		s = newEntrySet[Node]()
		b.catchAll[t] = s
	}
	k := nodeKey{node: n, priority: c.priority}
	s.add(k, n, c.priority, ident.StyleHandler, b.nextSeq())
	b.logRegister(m, message.None, t)

	remove := func() bool {
		s, ok := b.catchAll[t]
		if !ok || !s.remove(k) {
			return false
		}
		if s.len() == 0 {
			delete(b.catchAll, t)
		}
		return true
	}
	return b.makeDeregister(m, message.None, t, remove), nil
}

// RegisterTargeted adds n as a listener for type t sent to addr.
func (b *Bus) RegisterTargeted(t reflect.Type, addr message.Address, n Node, opts ...RegisterOption) (Deregister, error) {
	return b.registerAddressed(b.targeted, t, addr, n, ledger.MethodTargeted, opts)
}

// RegisterBroadcast adds n as a listener for type t sent from origin.
func (b *Bus) RegisterBroadcast(t reflect.Type, origin message.Address, n Node, opts ...RegisterOption) (Deregister, error) {
	return b.registerAddressed(b.broadcast, t, origin, n, ledger.MethodBroadcast, opts)
}

func (b *Bus) registerAddressed(
	table map[reflect.Type]map[message.Address]*entrySet[Node],
	t reflect.Type, addr message.Address, n Node, m ledger.Method, opts []RegisterOption,
) (Deregister, error) {
	if err := validateTypeAndNode(t, n); err != nil {
		return nil, err
	}
	if addr.IsNone() {
		return nil, fmt.Errorf("%w: address is empty", ErrInvalidArgument)
	}
	c := buildRegConfig(opts)

	k := nodeKey{node: n, priority: c.priority}
	addSetEntry(table, t, addr, k, n, c.priority, ident.StyleHandler, b.nextSeq())
	b.logRegister(m, addr, t)

	remove := func() bool { return removeSetEntry(table, t, addr, k) }
	return b.makeDeregister(m, addr, t, remove), nil
}

// RegisterGlobal adds n as a global catch-all: it receives every message
// of every type and category through its three global entry points.
func (b *Bus) RegisterGlobal(n Node, opts ...RegisterOption) (Deregister, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: node is nil", ErrInvalidArgument)
	}
	c := buildRegConfig(opts)

	k := nodeKey{node: n, priority: c.priority}
	b.global.add(k, n, c.priority, ident.StyleHandler, b.nextSeq())
	b.logRegister(ledger.MethodGlobal, message.None, nil)

	remove := func() bool { return b.global.remove(k) }
	return b.makeDeregister(ledger.MethodGlobal, message.None, nil, remove), nil
}

// RegisterUntargetedInterceptor adds fn to the interceptor chain for
// untargeted emissions of type t.
func (b *Bus) RegisterUntargetedInterceptor(t reflect.Type, fn Interceptor, opts ...RegisterOption) (Deregister, error) {
	return b.registerInterceptor(message.CategoryUntargeted, t, fn, opts)
}

// RegisterTargetedInterceptor adds fn to the interceptor chain for
// targeted emissions of type t.
func (b *Bus) RegisterTargetedInterceptor(t reflect.Type, fn Interceptor, opts ...RegisterOption) (Deregister, error) {
	return b.registerInterceptor(message.CategoryTargeted, t, fn, opts)
}

// RegisterBroadcastInterceptor adds fn to the interceptor chain for
// broadcast emissions of type t.
func (b *Bus) RegisterBroadcastInterceptor(t reflect.Type, fn Interceptor, opts ...RegisterOption) (Deregister, error) {
	return b.registerInterceptor(message.CategoryBroadcast, t, fn, opts)
}

func (b *Bus) registerInterceptor(cat message.Category, t reflect.Type, fn Interceptor, opts []RegisterOption) (Deregister, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: message type is nil", ErrInvalidArgument)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: interceptor is nil", ErrInvalidArgument)
	}
	c := buildRegConfig(opts)
	key, style := ident.Key(fn)
	if c.key != nil {
		key = c.key
	}

	chains := b.interceptors[cat]
	s, ok := chains[t]
	if !ok {
		s = newEntrySet[Interceptor]()
		chains[t] = s
	}
	s.add(key, fn, c.priority, style, b.nextSeq())
	b.logRegister(ledger.MethodInterceptor, message.None, t)

	remove := func() bool {
		s, ok := chains[t]
		if !ok || !s.remove(key) {
			return false
		}
		if s.len() == 0 {
			delete(chains, t)
		}
		return true
	}
	return b.makeDeregister(ledger.MethodInterceptor, message.None, t, remove), nil
}

// RegisterUntargetedPostProcessor adds fn to the post-processor table for
// t. Like the listener tables, the catch-all post table is shared with
// the any-address and any-source variants.
func (b *Bus) RegisterUntargetedPostProcessor(t reflect.Type, fn PostProcessor, opts ...RegisterOption) (Deregister, error) {
	return b.registerPostCatchAll(t, fn, ledger.MethodPostProcessor, opts)
}

// RegisterTargetedAnyAddressPostProcessor adds fn as a post-processor for
// every targeted emission of type t regardless of destination.
func (b *Bus) RegisterTargetedAnyAddressPostProcessor(t reflect.Type, fn PostProcessor, opts ...RegisterOption) (Deregister, error) {
	return b.registerPostCatchAll(t, fn, ledger.MethodPostProcessorAnyAddress, opts)
}

// RegisterBroadcastAnySourcePostProcessor adds fn as a post-processor for
// every broadcast emission of type t regardless of origin.
func (b *Bus) RegisterBroadcastAnySourcePostProcessor(t reflect.Type, fn PostProcessor, opts ...RegisterOption) (Deregister, error) {
	return b.registerPostCatchAll(t, fn, ledger.MethodPostProcessorAnySource, opts)
}

func (b *Bus) registerPostCatchAll(t reflect.Type, fn PostProcessor, m ledger.Method, opts []RegisterOption) (Deregister, error) {
	if err := validateTypeAndCallback(t, fn); err != nil {
		return nil, err
	}
	c := buildRegConfig(opts)
	key, style := ident.Key(fn)
	if c.key != nil {
		key = c.key
	}

	s, ok := b.postCatchAll[t]
	if !ok {
		s = newEntrySet[PostProcessor]()
		b.postCatchAll[t] = s
	}
	s.add(key, fn, c.priority, style, b.nextSeq())
	b.logRegister(m, message.None, t)

	remove := func() bool {
		s, ok := b.postCatchAll[t]
		if !ok || !s.remove(key) {
			return false
		}
		if s.len() == 0 {
			delete(b.postCatchAll, t)
		}
		return true
	}
	return b.makeDeregister(m, message.None, t, remove), nil
}

// RegisterTargetedPostProcessor adds fn as a post-processor for type t
// sent to addr.
func (b *Bus) RegisterTargetedPostProcessor(t reflect.Type, addr message.Address, fn PostProcessor, opts ...RegisterOption) (Deregister, error) {
	return b.registerPostAddressed(b.postTargeted, t, addr, fn, opts)
}

// RegisterBroadcastPostProcessor adds fn as a post-processor for type t
// sent from origin.
func (b *Bus) RegisterBroadcastPostProcessor(t reflect.Type, origin message.Address, fn PostProcessor, opts ...RegisterOption) (Deregister, error) {
	return b.registerPostAddressed(b.postBroadcast, t, origin, fn, opts)
}

func (b *Bus) registerPostAddressed(
	table map[reflect.Type]map[message.Address]*entrySet[PostProcessor],
	t reflect.Type, addr message.Address, fn PostProcessor, opts []RegisterOption,
) (Deregister, error) {
	if err := validateTypeAndCallback(t, fn); err != nil {
		return nil, err
	}
	if addr.IsNone() {
		return nil, fmt.Errorf("%w: address is empty", ErrInvalidArgument)
	}
	c := buildRegConfig(opts)
	key, style := ident.Key(fn)
	if c.key != nil {
		key = c.key
	}

	addSetEntry(table, t, addr, key, fn, c.priority, style, b.nextSeq())
	b.logRegister(ledger.MethodPostProcessor, addr, t)

	remove := func() bool { return removeSetEntry(table, t, addr, key) }
	return b.makeDeregister(ledger.MethodPostProcessor, addr, t, remove), nil
}

func validateTypeAndNode(t reflect.Type, n Node) error {
	if t == nil {
		return fmt.Errorf("%w: message type is nil", ErrInvalidArgument)
	}
	if n == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidArgument)
	}
	return nil
}

func validateTypeAndCallback(t reflect.Type, fn PostProcessor) error {
	if t == nil {
		return fmt.Errorf("%w: message type is nil", ErrInvalidArgument)
	}
	if fn == nil {
		return fmt.Errorf("%w: post-processor is nil", ErrInvalidArgument)
	}
	return nil
}

// logRegister appends the Register record for a successful registration.
func (b *Bus) logRegister(m ledger.Method, addr message.Address, t reflect.Type) {
	if !b.ledger.Enabled() {
		return
	}
	b.ledger.Log(ledger.Record{
		Address:   addr,
		Type:      typeName(t),
		Direction: ledger.Register,
		Method:    m,
	})
}

// makeDeregister wraps a table-removal closure with the once-only guard
// and the audit record. The guard keeps a deregistration that is invoked
// twice from decrementing a count another registration still holds.
func (b *Bus) makeDeregister(m ledger.Method, addr message.Address, t reflect.Type, remove func() bool) Deregister {
	done := false
	return func() {
		if done || !remove() {
			done = true
			b.diag(Diagnostic{
				Kind:    DiagRedundantDeregistration,
				Address: addr,
				Type:    t,
			})
			return
		}
		done = true
		if b.ledger.Enabled() {
			b.ledger.Log(ledger.Record{
				Address:   addr,
				Type:      typeName(t),
				Direction: ledger.Deregister,
				Method:    m,
			})
		}
	}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "*"
	}
	return t.String()
}

// addSetEntry inserts into a two-level (type, address) table, creating
// levels on demand.
func addSetEntry[V any](
	table map[reflect.Type]map[message.Address]*entrySet[V],
	t reflect.Type, addr message.Address,
	key any, value V, priority, style int, seq uint64,
) {
	byAddr, ok := table[t]
	if !ok {
		byAddr = make(map[message.Address]*entrySet[V])
		table[t] = byAddr
	}
	s, ok := byAddr[addr]
	if !ok {
		s = newEntrySet[V]()
		byAddr[addr] = s
	}
	s.add(key, value, priority, style, seq)
}

// removeSetEntry decrements an entry in a two-level table and prunes the
// map levels its removal empties.
func removeSetEntry[V any](
	table map[reflect.Type]map[message.Address]*entrySet[V],
	t reflect.Type, addr message.Address, key any,
) bool {
	byAddr, ok := table[t]
	if !ok {
		return false
	}
	s, ok := byAddr[addr]
	if !ok || !s.remove(key) {
		return false
	}
	if s.len() == 0 {
		delete(byAddr, addr)
		if len(byAddr) == 0 {
			delete(table, t)
		}
	}
	return true
}
