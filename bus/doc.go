// Package bus implements the in-process dispatch bus: registration
// tables, priority-ordered fan-out, interceptor and post-processor
// chains, and an append-only registration ledger.
//
// # Model
//
// Producers emit immutable message values through one of three entry
// points matching the message type's category:
//
//	b.EmitUntargeted(msg)          // no address
//	b.EmitTargeted(addr, msg)      // to a destination
//	b.EmitBroadcast(origin, msg)   // from an origin
//
// Consumers register Handler Nodes (see the node package) against a
// message type, optionally keyed by address. Each emission runs its
// category's pipeline: interceptors first, then global catch-all
// listeners, then address-specific listeners, then the type's catch-all
// listeners, then post-processors in the mirrored order. An interceptor
// returning nil cancels the remaining stages for that one emission.
//
// # Ordering
//
// Listeners run in ascending priority; ties break by registration order,
// with handler-interface callbacks ahead of plain functions inside a tie.
//
// # Reentrancy
//
// The bus is single-threaded and reentrant, with no internal locking.
// Immediately before invoking any table, the bus copies the table's
// current entries into a pooled scratch buffer and iterates the copy, so
// a listener that registers or deregisters listeners for the same type
// during its own invocation only affects future emissions. Hosts with
// concurrent producers must serialize all bus calls externally.
//
// Multiple independent Bus instances can coexist; they share no state.
package bus
