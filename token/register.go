package token

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/dwhitmore/beacon/bus"
	"github.com/dwhitmore/beacon/internal/ident"
	"github.com/dwhitmore/beacon/message"
)

// Handler is the interface form of an unaddressed callback. Handler
// values run before plain function callbacks when both share a priority.
type Handler[T message.Message] interface {
	HandleMessage(msg T)
}

// AddressedHandler is the interface form of a callback that receives the
// emission's address alongside the message.
type AddressedHandler[T message.Message] interface {
	HandleMessage(addr message.Address, msg T)
}

// Untargeted stages fn for messages of type T emitted without an address.
func Untargeted[T message.Message](t *Token, fn func(T), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	return stageCatchAll[T](t, fn, dropAddr(fn), opts)
}

// UntargetedHandler stages h for messages of type T emitted without an
// address.
func UntargetedHandler[T message.Message](t *Token, h Handler[T], opts ...bus.RegisterOption) (Registration, error) {
	if h == nil {
		return Registration{}, nilCallbackErr()
	}
	return stageCatchAll[T](t, h, dropAddr(h.HandleMessage), opts)
}

// TargetedAnyAddress stages fn for every targeted emission of type T
// regardless of destination. fn receives the destination.
func TargetedAnyAddress[T message.Message](t *Token, fn func(message.Address, T), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	return stageAnyAddress[T](t, fn, keepAddr(fn), (*bus.Bus).RegisterTargetedAnyAddress, opts)
}

// BroadcastAnySource stages fn for every broadcast emission of type T
// regardless of origin. fn receives the origin.
func BroadcastAnySource[T message.Message](t *Token, fn func(message.Address, T), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	return stageAnyAddress[T](t, fn, keepAddr(fn), (*bus.Bus).RegisterBroadcastAnySource, opts)
}

// Targeted stages fn for messages of type T sent to addr.
func Targeted[T message.Message](t *Token, addr message.Address, fn func(message.Address, T), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	return stageAddressed[T](t, addr, fn, keepAddr(fn), targetedTables, opts)
}

// TargetedHandler stages h for messages of type T sent to addr.
func TargetedHandler[T message.Message](t *Token, addr message.Address, h AddressedHandler[T], opts ...bus.RegisterOption) (Registration, error) {
	if h == nil {
		return Registration{}, nilCallbackErr()
	}
	return stageAddressed[T](t, addr, h, keepAddr(h.HandleMessage), targetedTables, opts)
}

// Broadcast stages fn for messages of type T sent from origin.
func Broadcast[T message.Message](t *Token, origin message.Address, fn func(message.Address, T), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	return stageAddressed[T](t, origin, fn, keepAddr(fn), broadcastTables, opts)
}

// BroadcastHandler stages h for messages of type T sent from origin.
func BroadcastHandler[T message.Message](t *Token, origin message.Address, h AddressedHandler[T], opts ...bus.RegisterOption) (Registration, error) {
	if h == nil {
		return Registration{}, nilCallbackErr()
	}
	return stageAddressed[T](t, origin, h, keepAddr(h.HandleMessage), broadcastTables, opts)
}

// Global stages fn as a global catch-all: it receives every message of
// every type and category. addr is message.None for untargeted emissions.
func Global(t *Token, fn func(addr message.Address, msg message.Message), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	prio := bus.PriorityOf(opts...)
	return t.stage(func(s *staged) (func(), error) {
		invoke := t.wrapInvoke(s, "*", fn)
		removeU := t.node.AddGlobalUntargeted(fn, prio, invoke)
		removeT := t.node.AddGlobalTargeted(fn, prio, invoke)
		removeB := t.node.AddGlobalBroadcast(fn, prio, invoke)
		dereg, err := t.bus.RegisterGlobal(t.node, opts...)
		if err != nil {
			t.undoNode(removeU)
			t.undoNode(removeT)
			t.undoNode(removeB)
			return nil, err
		}
		return func() {
			dereg()
			t.undoNode(removeB)
			t.undoNode(removeT)
			t.undoNode(removeU)
		}, nil
	})
}

// InterceptUntargeted stages fn on the untargeted interceptor chain for
// T. Return ok=false to cancel the emission.
func InterceptUntargeted[T message.Message](t *Token, fn func(ctx bus.EmitContext, msg T) (T, bool), opts ...bus.RegisterOption) (Registration, error) {
	return stageInterceptor[T](t, fn, (*bus.Bus).RegisterUntargetedInterceptor, opts)
}

// InterceptTargeted stages fn on the targeted interceptor chain for T.
func InterceptTargeted[T message.Message](t *Token, fn func(ctx bus.EmitContext, msg T) (T, bool), opts ...bus.RegisterOption) (Registration, error) {
	return stageInterceptor[T](t, fn, (*bus.Bus).RegisterTargetedInterceptor, opts)
}

// InterceptBroadcast stages fn on the broadcast interceptor chain for T.
func InterceptBroadcast[T message.Message](t *Token, fn func(ctx bus.EmitContext, msg T) (T, bool), opts ...bus.RegisterOption) (Registration, error) {
	return stageInterceptor[T](t, fn, (*bus.Bus).RegisterBroadcastInterceptor, opts)
}

// PostUntargeted stages fn as a post-processor for untargeted emissions
// of T.
func PostUntargeted[T message.Message](t *Token, fn func(T), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	return stagePost[T](t, fn, dropAddr(fn), (*bus.Bus).RegisterUntargetedPostProcessor, opts)
}

// PostTargetedAnyAddress stages fn as a post-processor for every targeted
// emission of T regardless of destination.
func PostTargetedAnyAddress[T message.Message](t *Token, fn func(message.Address, T), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	return stagePost[T](t, fn, keepAddr(fn), (*bus.Bus).RegisterTargetedAnyAddressPostProcessor, opts)
}

// PostBroadcastAnySource stages fn as a post-processor for every
// broadcast emission of T regardless of origin.
func PostBroadcastAnySource[T message.Message](t *Token, fn func(message.Address, T), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	return stagePost[T](t, fn, keepAddr(fn), (*bus.Bus).RegisterBroadcastAnySourcePostProcessor, opts)
}

// PostTargeted stages fn as a post-processor for emissions of T sent to
// addr.
func PostTargeted[T message.Message](t *Token, addr message.Address, fn func(message.Address, T), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	return stagePostAddressed[T](t, addr, fn, (*bus.Bus).RegisterTargetedPostProcessor, opts)
}

// PostBroadcast stages fn as a post-processor for emissions of T sent
// from origin.
func PostBroadcast[T message.Message](t *Token, origin message.Address, fn func(message.Address, T), opts ...bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	return stagePostAddressed[T](t, origin, fn, (*bus.Bus).RegisterBroadcastPostProcessor, opts)
}

// ---- staging plumbing ----

func nilCallbackErr() error {
	return fmt.Errorf("%w: callback is nil", bus.ErrInvalidArgument)
}

// dropAddr adapts an unaddressed callback to the node invoke shape.
func dropAddr[T message.Message](fn func(T)) func(message.Address, message.Message) {
	return func(_ message.Address, m message.Message) { fn(m.(T)) }
}

// keepAddr adapts an addressed callback to the node invoke shape.
func keepAddr[T message.Message](fn func(message.Address, T)) func(message.Address, message.Message) {
	return func(a message.Address, m message.Message) { fn(a, m.(T)) }
}

// wrapInvoke threads diagnostic-mode accounting in front of a callback.
func (t *Token) wrapInvoke(s *staged, typeName string, invoke func(message.Address, message.Message)) func(message.Address, message.Message) {
	return func(addr message.Address, msg message.Message) {
		if t.diagnostics {
			t.observe(s, typeName, addr)
		}
		invoke(addr, msg)
	}
}

func (t *Token) undoNode(remove func() bool) {
	if !remove() {
		slog.Debug("Callback already removed from node")
	}
}

func asUndo(d bus.Deregister, err error) (func(), error) {
	if err != nil {
		return nil, err
	}
	return func() { d() }, nil
}

func stageCatchAll[T message.Message](t *Token, cb any, invoke func(message.Address, message.Message), opts []bus.RegisterOption) (Registration, error) {
	mt := message.TypeFor[T]()
	prio := bus.PriorityOf(opts...)
	return t.stage(func(s *staged) (func(), error) {
		wrapped := t.wrapInvoke(s, mt.String(), invoke)
		removeCB := t.node.AddCatchAll(mt, cb, prio, wrapped)
		dereg, err := t.bus.RegisterUntargeted(mt, t.node, opts...)
		if err != nil {
			t.undoNode(removeCB)
			return nil, err
		}
		return func() {
			dereg()
			t.undoNode(removeCB)
		}, nil
	})
}

// busRegisterCatchAll is the shape shared by the any-address and
// any-source catch-all registrations.
type busRegisterCatchAll func(*bus.Bus, reflect.Type, bus.Node, ...bus.RegisterOption) (bus.Deregister, error)

func stageAnyAddress[T message.Message](t *Token, cb any, invoke func(message.Address, message.Message), register busRegisterCatchAll, opts []bus.RegisterOption) (Registration, error) {
	mt := message.TypeFor[T]()
	prio := bus.PriorityOf(opts...)
	return t.stage(func(s *staged) (func(), error) {
		wrapped := t.wrapInvoke(s, mt.String(), invoke)
		removeCB := t.node.AddCatchAll(mt, cb, prio, wrapped)
		dereg, err := register(t.bus, mt, t.node, opts...)
		if err != nil {
			t.undoNode(removeCB)
			return nil, err
		}
		return func() {
			dereg()
			t.undoNode(removeCB)
		}, nil
	})
}

// addressedTables selects the node and bus registration pair for the
// targeted or broadcast direction.
type addressedTables struct {
	addNode func(*Token, reflect.Type, message.Address, any, int, func(message.Address, message.Message)) func() bool
	addBus  func(*bus.Bus, reflect.Type, message.Address, bus.Node, ...bus.RegisterOption) (bus.Deregister, error)
}

var targetedTables = addressedTables{
	addNode: func(t *Token, mt reflect.Type, addr message.Address, cb any, prio int, invoke func(message.Address, message.Message)) func() bool {
		return t.node.AddTargeted(mt, addr, cb, prio, invoke)
	},
	addBus: (*bus.Bus).RegisterTargeted,
}

var broadcastTables = addressedTables{
	addNode: func(t *Token, mt reflect.Type, addr message.Address, cb any, prio int, invoke func(message.Address, message.Message)) func() bool {
		return t.node.AddBroadcast(mt, addr, cb, prio, invoke)
	},
	addBus: (*bus.Bus).RegisterBroadcast,
}

func stageAddressed[T message.Message](t *Token, addr message.Address, cb any, invoke func(message.Address, message.Message), tables addressedTables, opts []bus.RegisterOption) (Registration, error) {
	if addr.IsNone() {
		return Registration{}, fmt.Errorf("%w: address is empty", bus.ErrInvalidArgument)
	}
	mt := message.TypeFor[T]()
	prio := bus.PriorityOf(opts...)
	return t.stage(func(s *staged) (func(), error) {
		wrapped := t.wrapInvoke(s, mt.String(), invoke)
		removeCB := tables.addNode(t, mt, addr, cb, prio, wrapped)
		dereg, err := tables.addBus(t.bus, mt, addr, t.node, opts...)
		if err != nil {
			t.undoNode(removeCB)
			return nil, err
		}
		return func() {
			dereg()
			t.undoNode(removeCB)
		}, nil
	})
}

type busRegisterInterceptor func(*bus.Bus, reflect.Type, bus.Interceptor, ...bus.RegisterOption) (bus.Deregister, error)

func stageInterceptor[T message.Message](t *Token, fn func(bus.EmitContext, T) (T, bool), register busRegisterInterceptor, opts []bus.RegisterOption) (Registration, error) {
	if fn == nil {
		return Registration{}, nilCallbackErr()
	}
	mt := message.TypeFor[T]()
	key, _ := ident.Key(fn)
	opts = append(opts, bus.WithIdentityKey(key))
	return t.stage(func(s *staged) (func(), error) {
		raw := bus.Interceptor(func(ctx bus.EmitContext, m message.Message) message.Message {
			if t.diagnostics {
				t.observe(s, mt.String(), ctx.Address)
			}
			out, ok := fn(ctx, m.(T))
			if !ok {
				return nil
			}
			return out
		})
		return asUndo(register(t.bus, mt, raw, opts...))
	})
}

type busRegisterPost func(*bus.Bus, reflect.Type, bus.PostProcessor, ...bus.RegisterOption) (bus.Deregister, error)

func stagePost[T message.Message](t *Token, cb any, invoke func(message.Address, message.Message), register busRegisterPost, opts []bus.RegisterOption) (Registration, error) {
	mt := message.TypeFor[T]()
	key, _ := ident.Key(cb)
	opts = append(opts, bus.WithIdentityKey(key))
	return t.stage(func(s *staged) (func(), error) {
		raw := bus.PostProcessor(t.wrapInvoke(s, mt.String(), invoke))
		return asUndo(register(t.bus, mt, raw, opts...))
	})
}

type busRegisterPostAddressed func(*bus.Bus, reflect.Type, message.Address, bus.PostProcessor, ...bus.RegisterOption) (bus.Deregister, error)

func stagePostAddressed[T message.Message](t *Token, addr message.Address, fn func(message.Address, T), register busRegisterPostAddressed, opts []bus.RegisterOption) (Registration, error) {
	if addr.IsNone() {
		return Registration{}, fmt.Errorf("%w: address is empty", bus.ErrInvalidArgument)
	}
	mt := message.TypeFor[T]()
	key, _ := ident.Key(fn)
	opts = append(opts, bus.WithIdentityKey(key))
	invoke := keepAddr(fn)
	return t.stage(func(s *staged) (func(), error) {
		raw := bus.PostProcessor(t.wrapInvoke(s, mt.String(), invoke))
		return asUndo(register(t.bus, mt, addr, raw, opts...))
	})
}
