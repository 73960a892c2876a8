// Package ledger records register and deregister events as an append-only
// audit trail. It is a passive observer: nothing in dispatch reads it, and
// with the gate left off (the default) logging is a single branch.
package ledger

import (
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/dwhitmore/beacon/message"
)

// Direction says whether a record captures a registration or its removal.
type Direction uint8

const (
	Register Direction = iota
	Deregister
)

// String returns a human-readable direction name.
func (d Direction) String() string {
	switch d {
	case Register:
		return "register"
	case Deregister:
		return "deregister"
	default:
		return "unknown"
	}
}

// Method identifies which registration surface produced a record.
type Method uint8

const (
	MethodUntargeted Method = iota
	MethodTargeted
	MethodBroadcast
	MethodTargetedAnyAddress
	MethodBroadcastAnySource
	MethodGlobal
	MethodInterceptor
	MethodPostProcessor
	MethodPostProcessorAnyAddress
	MethodPostProcessorAnySource
)

var methodNames = map[Method]string{
	MethodUntargeted:              "untargeted",
	MethodTargeted:                "targeted",
	MethodBroadcast:               "broadcast",
	MethodTargetedAnyAddress:      "targeted-any-address",
	MethodBroadcastAnySource:      "broadcast-any-source",
	MethodGlobal:                  "global",
	MethodInterceptor:             "interceptor",
	MethodPostProcessor:           "post-processor",
	MethodPostProcessorAnyAddress: "post-processor-any-address",
	MethodPostProcessorAnySource:  "post-processor-any-source",
}

// String returns a human-readable method name.
func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "unknown"
}

// Record is one immutable audit entry. Address is message.None for
// registrations that carry no address (catch-all, global, interceptor).
type Record struct {
	ID        string
	Time      time.Time
	Address   message.Address
	Type      string
	Direction Direction
	Method    Method
}

// String renders the record in the stable default format used by Format.
func (r Record) String() string {
	return fmt.Sprintf("%s %s %s via %s", r.Direction, r.Type, r.Address, r.Method)
}

// Ledger is the append-only record store. It is not safe for concurrent
// use; like the bus that owns it, it relies on the single-threaded
// dispatch contract.
type Ledger struct {
	enabled bool
	records []Record
}

// New creates a ledger with recording disabled.
func New() *Ledger {
	return &Ledger{}
}

// SetEnabled toggles recording. Records appended while disabled are
// silently dropped; existing records are kept.
func (l *Ledger) SetEnabled(enabled bool) { l.enabled = enabled }

// Enabled reports whether recording is on.
func (l *Ledger) Enabled() bool { return l.enabled }

// Log appends a record, assigning an ID and timestamp if the caller left
// them empty. It is a no-op while the ledger is disabled.
func (l *Ledger) Log(r Record) {
	if !l.enabled {
		return
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	l.records = append(l.records, r)
}

// Len returns the number of stored records.
func (l *Ledger) Len() int { return len(l.records) }

// All iterates over every record in append order.
func (l *Ledger) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, r := range l.records {
			if !yield(r) {
				return
			}
		}
	}
}

// RecordsFor iterates over the records whose address matches addr,
// in append order. The ledger keeps deregistered history, so this can
// report entries the bus tables no longer hold.
func (l *Ledger) RecordsFor(addr message.Address) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, r := range l.records {
			if r.Address != addr {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Clear removes records matching the predicate and returns how many were
// removed. A nil predicate removes everything.
func (l *Ledger) Clear(pred func(Record) bool) int {
	if pred == nil {
		n := len(l.records)
		l.records = l.records[:0]
		return n
	}
	kept := l.records[:0]
	removed := 0
	for _, r := range l.records {
		if pred(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	l.records = kept
	return removed
}

// Format writes every record on its own line using the given formatter,
// or Record.String when formatter is nil. Output order is append order,
// which makes the result deterministic for tests and tooling.
func (l *Ledger) Format(w io.Writer, formatter func(Record) string) error {
	if formatter == nil {
		formatter = Record.String
	}
	for _, r := range l.records {
		if _, err := fmt.Fprintln(w, formatter(r)); err != nil {
			return fmt.Errorf("ledger: format: %w", err)
		}
	}
	return nil
}
