// Package token manages the registration lifecycle for one owner: many
// registrations staged up front, then activated and deactivated as a
// unit. A host adapter typically stages during its owner's setup phase
// and calls Enable and Disable from the owner's activation transitions.
package token

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dwhitmore/beacon/bus"
	"github.com/dwhitmore/beacon/message"
	"github.com/dwhitmore/beacon/node"
)

// Token stages (register, deregister) pairs against one bus and toggles
// them together. Staging never touches the bus; only Enable does. Like
// the bus it fronts, a Token is single-threaded.
type Token struct {
	bus  *bus.Bus
	node *node.Node

	staged  []*staged
	enabled bool
	nextID  uint64

	diagnostics bool
	recent      ring
}

// staged is one stored registration: how to apply it, and how to undo it
// once applied.
type staged struct {
	id    uint64
	apply func() (undo func(), err error)
	undo  func()
	calls uint64
}

// Registration is the opaque handle returned by the staging helpers.
type Registration struct {
	id  uint64
	tok *Token
}

// Calls returns this registration's invocation counter; see
// Token.SetDiagnostics.
func (r Registration) Calls() uint64 {
	if r.tok == nil {
		return 0
	}
	return r.tok.Calls(r)
}

// New creates a token bound to b with a fresh handler node.
func New(b *bus.Bus) *Token {
	return &Token{
		bus:  b,
		node: node.New(),
		recent: ring{
			buf: make([]EmissionRecord, 0, recentCapacity),
		},
	}
}

// Enabled reports whether the staged registrations are currently applied.
func (t *Token) Enabled() bool { return t.enabled }

// Enable applies every staged registration against the bus in staging
// order. It is idempotent: a second call before Disable does nothing.
// Registration failures are joined into the returned error; the other
// staged entries are still applied.
func (t *Token) Enable() error {
	if t.enabled {
		return nil
	}
	t.enabled = true
	t.node.SetActive(true)

	var errs []error
	for _, s := range t.staged {
		if s.undo != nil {
			continue
		}
		undo, err := s.apply()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.undo = undo
	}
	return errors.Join(errs...)
}

// Disable undoes every applied registration in reverse staging order,
// keeping the stage so Enable can run again. Idempotent.
func (t *Token) Disable() {
	if !t.enabled {
		return
	}
	t.enabled = false
	t.node.SetActive(false)

	for i := len(t.staged) - 1; i >= 0; i-- {
		s := t.staged[i]
		if s.undo == nil {
			continue
		}
		s.undo()
		s.undo = nil
	}
}

// UnregisterAll disables the token and discards the stage entirely.
func (t *Token) UnregisterAll() {
	t.Disable()
	t.staged = nil
}

// Remove deregisters and discards one staged entry, leaving the rest
// untouched. Removing a handle twice is a logged no-op.
func (t *Token) Remove(r Registration) {
	for i, s := range t.staged {
		if s.id != r.id {
			continue
		}
		if s.undo != nil {
			s.undo()
			s.undo = nil
		}
		t.staged = append(t.staged[:i], t.staged[i+1:]...)
		return
	}
	slog.Debug("Token registration already removed", "id", r.id)
}

// SetDiagnostics toggles diagnostic mode. When on, every dispatch that
// reaches a staged registration increments its invocation counter and
// records the emission in a bounded ring buffer. When off (the default)
// the per-dispatch cost is a single branch.
func (t *Token) SetDiagnostics(enabled bool) { t.diagnostics = enabled }

// Calls returns r's invocation counter. Always zero unless diagnostic
// mode was on while dispatches arrived.
func (t *Token) Calls(r Registration) uint64 {
	for _, s := range t.staged {
		if s.id == r.id {
			return s.calls
		}
	}
	return 0
}

// Recent returns a copy of the ring buffer of recent emissions observed
// in diagnostic mode, oldest first.
func (t *Token) Recent() []EmissionRecord {
	return t.recent.list()
}

// stage appends a registration, applying it immediately when the token
// is already enabled. build receives the staged entry so wrapped
// callbacks can feed its diagnostic counter.
func (t *Token) stage(build func(s *staged) (func(), error)) (Registration, error) {
	t.nextID++
	s := &staged{id: t.nextID}
	s.apply = func() (func(), error) { return build(s) }
	t.staged = append(t.staged, s)
	if t.enabled {
		undo, err := s.apply()
		if err != nil {
			t.staged = t.staged[:len(t.staged)-1]
			return Registration{}, err
		}
		s.undo = undo
	}
	return Registration{id: s.id, tok: t}, nil
}

// observe is called from wrapped callbacks on every delivery when
// diagnostic mode is on.
func (t *Token) observe(s *staged, typeName string, addr message.Address) {
	s.calls++
	t.recent.push(EmissionRecord{
		Time:    time.Now(),
		Type:    typeName,
		Address: addr,
	})
}

const recentCapacity = 32

// EmissionRecord is one diagnostic-mode snapshot of a delivery.
type EmissionRecord struct {
	Time    time.Time
	Type    string
	Address message.Address
}

// ring is a fixed-capacity record buffer; once full, new entries evict
// the oldest.
type ring struct {
	buf   []EmissionRecord
	start int
}

func (r *ring) push(rec EmissionRecord) {
	if len(r.buf) < cap(r.buf) {
		r.buf = append(r.buf, rec)
		return
	}
	r.buf[r.start] = rec
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) list() []EmissionRecord {
	out := make([]EmissionRecord, 0, len(r.buf))
	out = append(out, r.buf[r.start:]...)
	out = append(out, r.buf[:r.start]...)
	return out
}
