package bridge

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwhitmore/beacon/message"
)

// Emitter is the emission surface of a bus, satisfied by *bus.Bus.
type Emitter interface {
	EmitUntargeted(msg message.Message) error
	EmitTargeted(addr message.Address, msg message.Message) error
	EmitBroadcast(origin message.Address, msg message.Message) error
}

// Tracing decorates an Emitter with OpenTelemetry spans, one per
// emission, covering the full synchronous pipeline including every
// listener. Emission is depth-first and returns only after all listeners
// ran, so span duration is the real fan-out cost.
type Tracing struct {
	next   Emitter
	tracer trace.Tracer
}

// NewTracing wraps next. The decorator satisfies Emitter itself, so it
// can front a bus anywhere one is expected.
func NewTracing(next Emitter, tracer trace.Tracer) *Tracing {
	return &Tracing{next: next, tracer: tracer}
}

// EmitUntargeted implements Emitter.
func (t *Tracing) EmitUntargeted(msg message.Message) error {
	return t.traced("beacon.emit.untargeted", message.None, msg, func() error {
		return t.next.EmitUntargeted(msg)
	})
}

// EmitTargeted implements Emitter.
func (t *Tracing) EmitTargeted(addr message.Address, msg message.Message) error {
	return t.traced("beacon.emit.targeted", addr, msg, func() error {
		return t.next.EmitTargeted(addr, msg)
	})
}

// EmitBroadcast implements Emitter.
func (t *Tracing) EmitBroadcast(origin message.Address, msg message.Message) error {
	return t.traced("beacon.emit.broadcast", origin, msg, func() error {
		return t.next.EmitBroadcast(origin, msg)
	})
}

func (t *Tracing) traced(name string, addr message.Address, msg message.Message, emit func() error) error {
	attrs := []attribute.KeyValue{
		attribute.String("messaging.system", "beacon"),
		attribute.String("messaging.operation", "emit"),
	}
	if msg != nil {
		attrs = append(attrs,
			attribute.String("messaging.message_type", message.TypeOf(msg).String()),
			attribute.String("messaging.category", msg.Category().String()),
		)
	}
	if !addr.IsNone() {
		attrs = append(attrs, attribute.String("messaging.destination", addr.String()))
	}

	_, span := t.tracer.Start(context.Background(), name, trace.WithAttributes(attrs...))
	defer span.End()

	err := emit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
