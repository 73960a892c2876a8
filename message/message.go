// Package message defines the contract every value carried by the dispatch
// bus must satisfy: a fixed addressing category and a runtime type the bus
// can key its tables on.
package message

import "reflect"

// Category classifies how a message type is addressed. Every message type
// belongs to exactly one category for its whole lifetime; the bus rejects
// nothing at compile time here, but routing a type through the wrong
// emission entry point is a programming error.
type Category uint8

const (
	// CategoryUntargeted messages carry no address at all.
	CategoryUntargeted Category = iota

	// CategoryTargeted messages are sent to a destination Address.
	CategoryTargeted

	// CategoryBroadcast messages are sent from an origin Address.
	CategoryBroadcast
)

// String returns a human-readable category name.
func (c Category) String() string {
	switch c {
	case CategoryUntargeted:
		return "untargeted"
	case CategoryTargeted:
		return "targeted"
	case CategoryBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Message is implemented by every value emitted on a bus. Concrete types
// usually embed one of the category bases rather than implementing this
// directly. Messages are immutable value data; the bus never retains them
// past the emission that carried them.
type Message interface {
	Category() Category
}

// UntargetedBase marks a message type as Untargeted. Embed it in the
// message struct.
type UntargetedBase struct{}

// Category implements Message.
func (UntargetedBase) Category() Category { return CategoryUntargeted }

// TargetedBase marks a message type as Targeted.
type TargetedBase struct{}

// Category implements Message.
func (TargetedBase) Category() Category { return CategoryTargeted }

// BroadcastBase marks a message type as Broadcast.
type BroadcastBase struct{}

// Category implements Message.
func (BroadcastBase) Category() Category { return CategoryBroadcast }

// TypeOf returns the runtime dispatch key for a message value.
func TypeOf(m Message) reflect.Type {
	return reflect.TypeOf(m)
}

// TypeFor returns the dispatch key for a message type known at compile
// time. It is the registration-side counterpart of TypeOf.
func TypeFor[T Message]() reflect.Type {
	return reflect.TypeFor[T]()
}
