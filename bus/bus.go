package bus

import (
	"log/slog"
	"reflect"

	"github.com/dwhitmore/beacon/ledger"
	"github.com/dwhitmore/beacon/message"
)

// Node is the dispatch surface the bus fans out to. One node bridges one
// logical owner to its registered callbacks; the node package provides
// the standard implementation. Node values must be comparable (pointer
// implementations are) because registration tables reference-count them
// by identity.
//
// The bus tracks one table entry per (node, priority) pair and walks
// entries in priority order, so a node holding listeners at several
// priorities is called once per band with the band's priority. Each
// Handle method must run only the callbacks registered at that priority.
type Node interface {
	// HandleCatchAll receives messages for a type the node listens to
	// regardless of addressing. addr is message.None for untargeted
	// emissions and the destination or origin during the
	// address-agnostic stage of addressed emissions.
	HandleCatchAll(priority int, addr message.Address, msg message.Message)

	// HandleTargeted receives messages sent to an address the node
	// registered for.
	HandleTargeted(priority int, addr message.Address, msg message.Message)

	// HandleBroadcast receives messages sent from an origin the node
	// registered for.
	HandleBroadcast(priority int, origin message.Address, msg message.Message)

	// HandleGlobalUntargeted, HandleGlobalTargeted and
	// HandleGlobalBroadcast receive every message of every type when the
	// node is registered as a global catch-all.
	HandleGlobalUntargeted(priority int, msg message.Message)
	HandleGlobalTargeted(priority int, addr message.Address, msg message.Message)
	HandleGlobalBroadcast(priority int, origin message.Address, msg message.Message)
}

// Deregister undoes one registration. Calling it more than once is safe;
// the extra calls are no-ops reported through the diagnostic sink.
type Deregister func()

// EmitContext describes the emission an interceptor is running inside.
// It is passed by value; interceptors can rewrite the message but not the
// address.
type EmitContext struct {
	Category message.Category
	Address  message.Address
	Type     reflect.Type
}

// Interceptor runs before any listener for an emission. It returns the
// message to continue with (usually its argument, possibly rewritten to
// another value of the same type) or nil to cancel the emission.
type Interceptor func(ctx EmitContext, msg message.Message) message.Message

// PostProcessor runs after every listener for an emission. addr is
// message.None when the emission carried no address.
type PostProcessor func(addr message.Address, msg message.Message)

// Bus owns the registration tables, the interceptor and post-processor
// chains, and the registration ledger. It is not safe for concurrent use;
// see the package documentation for the threading contract.
type Bus struct {
	// Listener tables. catchAll doubles as the address-agnostic table
	// for targeted and broadcast types: listening to every instance of a
	// type regardless of addressing has the same dispatch semantics
	// whether the type is inherently addressless or the caller opted out
	// of address filtering.
	catchAll  map[reflect.Type]*entrySet[Node]
	targeted  map[reflect.Type]map[message.Address]*entrySet[Node]
	broadcast map[reflect.Type]map[message.Address]*entrySet[Node]
	global    *entrySet[Node]

	// Interceptor chains, one per category.
	interceptors [3]map[reflect.Type]*entrySet[Interceptor]

	// Post-processor tables, mirroring the listener tables.
	postCatchAll  map[reflect.Type]*entrySet[PostProcessor]
	postTargeted  map[reflect.Type]map[message.Address]*entrySet[PostProcessor]
	postBroadcast map[reflect.Type]map[message.Address]*entrySet[PostProcessor]

	ledger *ledger.Ledger
	diag   DiagnosticFunc
	logger *slog.Logger
	seq    uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger behind the default diagnostic sink.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDiagnostics replaces the default log-based diagnostic sink with a
// structured one, letting hosts observe and assert on conditions like
// "no listener matched".
func WithDiagnostics(fn DiagnosticFunc) Option {
	return func(b *Bus) {
		if fn != nil {
			b.diag = fn
		}
	}
}

// WithLedgerEnabled turns registration auditing on from the start.
// Equivalent to calling b.Ledger().SetEnabled(true) after New.
func WithLedgerEnabled() Option {
	return func(b *Bus) {
		b.ledger.SetEnabled(true)
	}
}

// New creates an empty bus. Every bus owns its tables, chains, scratch
// buffers and ledger exclusively; independent instances share nothing.
func New(opts ...Option) *Bus {
	b := &Bus{
		catchAll:      make(map[reflect.Type]*entrySet[Node]),
		targeted:      make(map[reflect.Type]map[message.Address]*entrySet[Node]),
		broadcast:     make(map[reflect.Type]map[message.Address]*entrySet[Node]),
		global:        newEntrySet[Node](),
		postCatchAll:  make(map[reflect.Type]*entrySet[PostProcessor]),
		postTargeted:  make(map[reflect.Type]map[message.Address]*entrySet[PostProcessor]),
		postBroadcast: make(map[reflect.Type]map[message.Address]*entrySet[PostProcessor]),
		ledger:        ledger.New(),
		logger:        slog.Default(),
	}
	for i := range b.interceptors {
		b.interceptors[i] = make(map[reflect.Type]*entrySet[Interceptor])
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.diag == nil {
		b.diag = logDiagnostics(b.logger)
	}
	return b
}

// Ledger returns the bus's registration ledger. Recording is off by
// default; enable it through the ledger itself.
func (b *Bus) Ledger() *ledger.Ledger { return b.ledger }

func (b *Bus) nextSeq() uint64 {
	b.seq++
	return b.seq
}
