package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wm "github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwhitmore/beacon/bus"
	"github.com/dwhitmore/beacon/message"
)

type noteMsg struct {
	message.UntargetedBase
	Text string `json:"text"`
}

type memoMsg struct {
	message.TargetedBase
	Text string `json:"text"`
}

func newGoChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
}

func receive(t *testing.T, ch <-chan *wm.Message) *wm.Message {
	t.Helper()
	select {
	case m := <-ch:
		m.Ack()
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded message")
		return nil
	}
}

func TestWatermillForwardsEmissions(t *testing.T) {
	b := bus.New()
	pubsub := newGoChannel()
	defer pubsub.Close()

	kinds := message.NewKindRegistry()
	_, err := kinds.Register(message.Kind{
		Name:     "test.note",
		Category: message.CategoryUntargeted,
		Type:     message.TypeFor[noteMsg](),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := pubsub.Subscribe(ctx, "test.note")
	require.NoError(t, err)

	br, err := NewWatermill(b, pubsub, WithKindRegistry(kinds))
	require.NoError(t, err)
	defer br.Close()

	require.NoError(t, b.EmitUntargeted(noteMsg{Text: "hello"}))

	got := receive(t, msgs)
	assert.Equal(t, "untargeted", got.Metadata.Get(metaKeyCategory))
	assert.Equal(t, message.TypeFor[noteMsg]().String(), got.Metadata.Get(metaKeyType))
	assert.Empty(t, got.Metadata.Get(metaKeyAddress), "untargeted emissions carry no address")

	var payload noteMsg
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "hello", payload.Text)
}

func TestWatermillForwardsAddress(t *testing.T) {
	b := bus.New()
	pubsub := newGoChannel()
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No kind registered; the topic falls back to the type string.
	topic := message.TypeFor[memoMsg]().String()
	msgs, err := pubsub.Subscribe(ctx, topic)
	require.NoError(t, err)

	br, err := NewWatermill(b, pubsub, WithKindRegistry(message.NewKindRegistry()))
	require.NoError(t, err)
	defer br.Close()

	room := message.NewAddress()
	require.NoError(t, b.EmitTargeted(room, memoMsg{Text: "for you"}))

	got := receive(t, msgs)
	assert.Equal(t, "targeted", got.Metadata.Get(metaKeyCategory))
	assert.Equal(t, room.String(), got.Metadata.Get(metaKeyAddress))
}

func TestWatermillTopicPrefix(t *testing.T) {
	b := bus.New()
	pubsub := newGoChannel()
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	topic := "app." + message.TypeFor[noteMsg]().String()
	msgs, err := pubsub.Subscribe(ctx, topic)
	require.NoError(t, err)

	br, err := NewWatermill(b, pubsub,
		WithTopicPrefix("app."),
		WithKindRegistry(message.NewKindRegistry()))
	require.NoError(t, err)
	defer br.Close()

	require.NoError(t, b.EmitUntargeted(noteMsg{Text: "prefixed"}))
	receive(t, msgs)
}

func TestWatermillCloseDetaches(t *testing.T) {
	b := bus.New()
	pubsub := newGoChannel()
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	topic := message.TypeFor[noteMsg]().String()
	msgs, err := pubsub.Subscribe(ctx, topic)
	require.NoError(t, err)

	br, err := NewWatermill(b, pubsub, WithKindRegistry(message.NewKindRegistry()))
	require.NoError(t, err)
	require.NoError(t, br.Close())

	require.NoError(t, b.EmitUntargeted(noteMsg{Text: "dropped"}))

	select {
	case m := <-msgs:
		t.Fatalf("received %q after the bridge was closed", m.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewWatermillRequiresPublisher(t *testing.T) {
	_, err := NewWatermill(bus.New(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, bus.ErrInvalidArgument)
}
