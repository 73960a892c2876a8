package bus

import (
	"log/slog"
	"reflect"

	"github.com/dwhitmore/beacon/message"
)

// DiagnosticKind classifies the non-fatal conditions the bus reports.
// None of these abort dispatch; they exist to make silent misses and
// sloppy deregistration visible.
type DiagnosticKind uint8

const (
	// DiagNoMatchingListener fires when an emission finished with zero
	// listeners at every stage. Usually a wiring typo, never fatal.
	DiagNoMatchingListener DiagnosticKind = iota

	// DiagRedundantDeregistration fires when a deregistration runs after
	// its entry is already gone. The call is a no-op.
	DiagRedundantDeregistration

	// DiagInterceptorCancellation fires when an interceptor returned nil
	// and short-circuited the remaining pipeline stages.
	DiagInterceptorCancellation
)

// String returns a human-readable kind name.
func (k DiagnosticKind) String() string {
	switch k {
	case DiagNoMatchingListener:
		return "no-matching-listener"
	case DiagRedundantDeregistration:
		return "redundant-deregistration"
	case DiagInterceptorCancellation:
		return "interceptor-cancellation"
	default:
		return "unknown"
	}
}

// Diagnostic is one structured notice. Type is nil when the condition is
// not tied to a message type.
type Diagnostic struct {
	Kind     DiagnosticKind
	Category message.Category
	Type     reflect.Type
	Address  message.Address
}

// DiagnosticFunc receives bus diagnostics. Implementations must not
// retain the Diagnostic's Type beyond reasonable bookkeeping needs and
// must not assume they are called from any particular goroutine beyond
// the bus's own single-threaded contract.
type DiagnosticFunc func(Diagnostic)

// logDiagnostics returns the default sink, which writes debug-level
// structured logs.
func logDiagnostics(logger *slog.Logger) DiagnosticFunc {
	return func(d Diagnostic) {
		typeName := ""
		if d.Type != nil {
			typeName = d.Type.String()
		}
		logger.Debug("Bus diagnostic",
			"kind", d.Kind.String(),
			"category", d.Category.String(),
			"type", typeName,
			"address", d.Address.String(),
		)
	}
}
