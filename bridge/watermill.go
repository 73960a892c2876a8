// Package bridge connects the dispatch core to external observability
// and transport layers. Everything here is a consumer of the bus's public
// surface; dispatch correctness never depends on a bridge.
package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	wm "github.com/ThreeDotsLabs/watermill/message"

	"github.com/dwhitmore/beacon/bus"
	"github.com/dwhitmore/beacon/message"
	"github.com/dwhitmore/beacon/token"
)

// Metadata keys set on forwarded watermill messages.
const (
	metaKeyCategory = "category"
	metaKeyAddress  = "address"
	metaKeyType     = "type"
)

// Watermill forwards every emission on a bus onto a watermill publisher
// as JSON. It listens through a global catch-all registration, so it sees
// all types and categories without per-type wiring. Delivery stays
// in-process unless the supplied publisher says otherwise; the bridge
// itself is transport-agnostic.
type Watermill struct {
	pub    wm.Publisher
	tok    *token.Token
	prefix string
	kinds  *message.KindRegistry
}

// WatermillOption configures the bridge.
type WatermillOption func(*Watermill)

// WithTopicPrefix prepends prefix to every forwarded topic.
func WithTopicPrefix(prefix string) WatermillOption {
	return func(w *Watermill) {
		w.prefix = prefix
	}
}

// WithKindRegistry resolves topic names against a specific registry
// instead of the process default.
func WithKindRegistry(kinds *message.KindRegistry) WatermillOption {
	return func(w *Watermill) {
		if kinds != nil {
			w.kinds = kinds
		}
	}
}

// NewWatermill attaches a forwarding bridge to b. The caller keeps
// ownership of pub; Close detaches from the bus without closing it.
func NewWatermill(b *bus.Bus, pub wm.Publisher, opts ...WatermillOption) (*Watermill, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: publisher is nil", bus.ErrInvalidArgument)
	}
	w := &Watermill{
		pub:   pub,
		tok:   token.New(b),
		kinds: message.Kinds(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if _, err := token.Global(w.tok, w.forward); err != nil {
		return nil, err
	}
	if err := w.tok.Enable(); err != nil {
		return nil, err
	}
	return w, nil
}

// forward publishes one emission. Marshal or publish failures are logged
// and swallowed; a broken bridge must never break dispatch.
func (w *Watermill) forward(addr message.Address, msg message.Message) {
	topic := w.topicFor(msg)

	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal forwarded message", "topic", topic, "error", err)
		return
	}

	wmMsg := wm.NewMessage(watermill.NewUUID(), payload)
	wmMsg.Metadata.Set(metaKeyCategory, msg.Category().String())
	wmMsg.Metadata.Set(metaKeyType, message.TypeOf(msg).String())
	if !addr.IsNone() {
		wmMsg.Metadata.Set(metaKeyAddress, addr.String())
	}

	if err := w.pub.Publish(topic, wmMsg); err != nil {
		slog.Error("Failed to forward message", "topic", topic, "error", err)
	}
}

// topicFor prefers the registered kind name and falls back to the
// runtime type's string form for unregistered types.
func (w *Watermill) topicFor(msg message.Message) string {
	name := message.TypeOf(msg).String()
	if k, ok := w.kinds.ForType(message.TypeOf(msg)); ok {
		name = k.Name
	}
	return w.prefix + name
}

// Close detaches the bridge from its bus.
func (w *Watermill) Close() error {
	w.tok.UnregisterAll()
	return nil
}
