// Package node bridges one logical owner to the callbacks it has
// registered on a dispatch bus. The bus fans out to nodes; each node
// routes into the right callback bucket for the message's runtime type.
package node

import (
	"reflect"

	"github.com/dwhitmore/beacon/internal/ident"
	"github.com/dwhitmore/beacon/message"
)

// Callback invocation shape shared by every bucket. Buckets that have no
// address to report pass message.None.
type invokeFunc = func(addr message.Address, msg message.Message)

// Node owns the callback groups for one logical owner. It is not safe for
// concurrent use; all mutation and dispatch happen on the single logical
// thread the bus contract prescribes. Reentrant mutation from inside a
// callback is supported through the same snapshot rule the bus uses.
type Node struct {
	active bool
	groups map[reflect.Type]*group

	// Global buckets are node-wide rather than per-type: a global
	// registration receives every message of every type, so there is no
	// single type to file it under.
	globalUntargeted *bucket
	globalTargeted   *bucket
	globalBroadcast  *bucket

	seq     uint64
	scratch scratchPool
}

// New creates an active node with no registrations.
func New() *Node {
	return &Node{
		active:           true,
		groups:           make(map[reflect.Type]*group),
		globalUntargeted: newBucket(),
		globalTargeted:   newBucket(),
		globalBroadcast:  newBucket(),
	}
}

// SetActive toggles dispatch through this node. While inactive, every
// entry point is a no-op; registrations are kept.
func (n *Node) SetActive(active bool) { n.active = active }

// Active reports whether the node is dispatching.
func (n *Node) Active() bool { return n.active }

// group returns the callback group for t, creating it only when create is
// set. Dispatch never creates groups; registration does.
func (n *Node) groupFor(t reflect.Type, create bool) *group {
	g, ok := n.groups[t]
	if !ok && create {
		g = newGroup()
		n.groups[t] = g
	}
	return g
}

func (n *Node) nextSeq() uint64 {
	n.seq++
	return n.seq
}

// AddCatchAll registers a callback in the shared catch-all bucket for t.
// The bucket serves untargeted messages and the address-agnostic stage of
// targeted and broadcast emissions; invoke receives message.None when the
// emission carried no address. cb is the user's original callback value,
// used only for reference-counting identity. priority must match the
// priority the node is registered under on the bus; the bus dispatches
// one priority band at a time so that bands from different nodes
// interleave in priority order.
func (n *Node) AddCatchAll(t reflect.Type, cb any, priority int, invoke invokeFunc) func() bool {
	key, style := ident.Key(cb)
	g := n.groupFor(t, true)
	g.catchAll.add(key, priority, style, n.nextSeq(), invoke)
	return func() bool { return n.removeFrom(g.catchAll, key) }
}

// AddTargeted registers a callback for messages of type t sent to addr.
func (n *Node) AddTargeted(t reflect.Type, addr message.Address, cb any, priority int, invoke invokeFunc) func() bool {
	key, style := ident.Key(cb)
	b := n.groupFor(t, true).targetedBucket(addr, true)
	b.add(key, priority, style, n.nextSeq(), invoke)
	return func() bool { return n.removeFrom(b, key) }
}

// AddBroadcast registers a callback for messages of type t sent from origin.
func (n *Node) AddBroadcast(t reflect.Type, origin message.Address, cb any, priority int, invoke invokeFunc) func() bool {
	key, style := ident.Key(cb)
	b := n.groupFor(t, true).broadcastBucket(origin, true)
	b.add(key, priority, style, n.nextSeq(), invoke)
	return func() bool { return n.removeFrom(b, key) }
}

// AddGlobalUntargeted registers a callback for every untargeted message of
// every type.
func (n *Node) AddGlobalUntargeted(cb any, priority int, invoke invokeFunc) func() bool {
	key, style := ident.Key(cb)
	n.globalUntargeted.add(key, priority, style, n.nextSeq(), invoke)
	return func() bool { return n.removeFrom(n.globalUntargeted, key) }
}

// AddGlobalTargeted registers a callback for every targeted message of
// every type.
func (n *Node) AddGlobalTargeted(cb any, priority int, invoke invokeFunc) func() bool {
	key, style := ident.Key(cb)
	n.globalTargeted.add(key, priority, style, n.nextSeq(), invoke)
	return func() bool { return n.removeFrom(n.globalTargeted, key) }
}

// AddGlobalBroadcast registers a callback for every broadcast message of
// every type.
func (n *Node) AddGlobalBroadcast(cb any, priority int, invoke invokeFunc) func() bool {
	key, style := ident.Key(cb)
	n.globalBroadcast.add(key, priority, style, n.nextSeq(), invoke)
	return func() bool { return n.removeFrom(n.globalBroadcast, key) }
}

// removeFrom decrements and reports whether the entry was still present.
func (n *Node) removeFrom(b *bucket, key any) bool {
	return b.remove(key)
}

// invokeBucket snapshots the bucket's entries and invokes the copy, so a
// callback that mutates the bucket mid-dispatch only affects future
// emissions. Only the requested priority band runs; the bus asks for each
// band separately so listeners on different nodes interleave correctly.
func (n *Node) invokeBucket(b *bucket, priority int, addr message.Address, msg message.Message) {
	if b == nil || b.empty() {
		return
	}
	snap := n.scratch.take(b.sorted())
	defer n.scratch.give(snap)
	for _, e := range snap {
		if e.priority != priority {
			continue
		}
		e.invoke(addr, msg)
	}
}

// HandleCatchAll dispatches the requested priority band of the catch-all
// bucket for the message's type. addr is message.None for untargeted
// emissions and the destination or origin during the address-agnostic
// stage of addressed emissions.
func (n *Node) HandleCatchAll(priority int, addr message.Address, msg message.Message) {
	if !n.active {
		return
	}
	g := n.groupFor(message.TypeOf(msg), false)
	if g == nil {
		return
	}
	n.invokeBucket(g.catchAll, priority, addr, msg)
}

// HandleTargeted dispatches into the targeted bucket for addr.
func (n *Node) HandleTargeted(priority int, addr message.Address, msg message.Message) {
	if !n.active {
		return
	}
	g := n.groupFor(message.TypeOf(msg), false)
	if g == nil {
		return
	}
	n.invokeBucket(g.targetedBucket(addr, false), priority, addr, msg)
}

// HandleBroadcast dispatches into the broadcast bucket for origin.
func (n *Node) HandleBroadcast(priority int, origin message.Address, msg message.Message) {
	if !n.active {
		return
	}
	g := n.groupFor(message.TypeOf(msg), false)
	if g == nil {
		return
	}
	n.invokeBucket(g.broadcastBucket(origin, false), priority, origin, msg)
}

// HandleGlobalUntargeted dispatches into the global untargeted bucket.
func (n *Node) HandleGlobalUntargeted(priority int, msg message.Message) {
	if !n.active {
		return
	}
	n.invokeBucket(n.globalUntargeted, priority, message.None, msg)
}

// HandleGlobalTargeted dispatches into the global targeted bucket.
func (n *Node) HandleGlobalTargeted(priority int, addr message.Address, msg message.Message) {
	if !n.active {
		return
	}
	n.invokeBucket(n.globalTargeted, priority, addr, msg)
}

// HandleGlobalBroadcast dispatches into the global broadcast bucket.
func (n *Node) HandleGlobalBroadcast(priority int, origin message.Address, msg message.Message) {
	if !n.active {
		return
	}
	n.invokeBucket(n.globalBroadcast, priority, origin, msg)
}

// scratchPool recycles the snapshot slices invokeBucket copies entries
// into. Reentrant dispatch can nest, so the pool is a small free list
// rather than a single buffer.
type scratchPool struct {
	free [][]*entry
}

func (p *scratchPool) take(src []*entry) []*entry {
	var buf []*entry
	if n := len(p.free); n > 0 {
		buf = p.free[n-1]
		p.free = p.free[:n-1]
	}
	return append(buf[:0], src...)
}

func (p *scratchPool) give(buf []*entry) {
	p.free = append(p.free, buf)
}
