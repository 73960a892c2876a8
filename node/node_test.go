package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwhitmore/beacon/message"
)

type tickMsg struct {
	message.UntargetedBase
	N int
}

type lineMsg struct {
	message.TargetedBase
	Body string
}

type joinMsg struct {
	message.BroadcastBase
}

// identified is a comparable callback carrier, the handler-style shape.
type identified struct {
	name string
}

func TestCatchAllDispatch(t *testing.T) {
	n := New()
	var got []int
	cb := func(tickMsg) {}
	n.AddCatchAll(message.TypeFor[tickMsg](), cb, 0, func(addr message.Address, msg message.Message) {
		assert.True(t, addr.IsNone())
		got = append(got, msg.(tickMsg).N)
	})

	n.HandleCatchAll(0, message.None, tickMsg{N: 1})
	n.HandleCatchAll(0, message.None, tickMsg{N: 2})
	assert.Equal(t, []int{1, 2}, got)
}

func TestCatchAllIgnoresOtherTypes(t *testing.T) {
	n := New()
	calls := 0
	cb := func(tickMsg) {}
	n.AddCatchAll(message.TypeFor[tickMsg](), cb, 0, func(message.Address, message.Message) {
		calls++
	})

	n.HandleCatchAll(0, message.None, lineMsg{Body: "hi"})
	assert.Equal(t, 0, calls, "a catch-all registration must only see its own type")
}

func TestDuplicateRegistrationCountsReferences(t *testing.T) {
	n := New()
	calls := 0
	cb := func(tickMsg) {}
	invoke := func(message.Address, message.Message) { calls++ }

	remove1 := n.AddCatchAll(message.TypeFor[tickMsg](), cb, 0, invoke)
	remove2 := n.AddCatchAll(message.TypeFor[tickMsg](), cb, 0, invoke)

	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, 1, calls, "a twice-registered callback still fires once per emission")

	assert.True(t, remove1(), "first removal decrements the count")
	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, 2, calls, "callback stays registered while its count is positive")

	assert.True(t, remove2(), "second removal drops the entry")
	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, 2, calls)

	assert.False(t, remove2(), "removal after the count hit zero is redundant")
}

func TestTargetedAddressExactness(t *testing.T) {
	n := New()
	room := message.NewAddress()
	other := message.NewAddress()

	var got []string
	cb := func(message.Address, lineMsg) {}
	n.AddTargeted(message.TypeFor[lineMsg](), room, cb, 0, func(addr message.Address, msg message.Message) {
		got = append(got, msg.(lineMsg).Body)
	})

	n.HandleTargeted(0, other, lineMsg{Body: "wrong room"})
	assert.Empty(t, got, "a targeted registration must not hear other addresses")

	n.HandleTargeted(0, room, lineMsg{Body: "right room"})
	assert.Equal(t, []string{"right room"}, got)
}

func TestBroadcastOriginExactness(t *testing.T) {
	n := New()
	src := message.NewAddress()
	calls := 0
	cb := func(message.Address, joinMsg) {}
	n.AddBroadcast(message.TypeFor[joinMsg](), src, cb, 0, func(message.Address, message.Message) {
		calls++
	})

	n.HandleBroadcast(0, message.NewAddress(), joinMsg{})
	assert.Equal(t, 0, calls)

	n.HandleBroadcast(0, src, joinMsg{})
	assert.Equal(t, 1, calls)
}

func TestHandlerStyleRunsBeforeFuncStyle(t *testing.T) {
	n := New()
	typ := message.TypeFor[tickMsg]()
	var order []string

	// Func-style registered first, handler-style second. Style outranks
	// registration order.
	fn := func(tickMsg) {}
	n.AddCatchAll(typ, fn, 0, func(message.Address, message.Message) {
		order = append(order, "func")
	})
	n.AddCatchAll(typ, identified{name: "h"}, 0, func(message.Address, message.Message) {
		order = append(order, "handler")
	})

	n.HandleCatchAll(0, message.None, tickMsg{})
	require.Equal(t, []string{"handler", "func"}, order)
}

func TestRegistrationOrderWithinStyle(t *testing.T) {
	n := New()
	typ := message.TypeFor[tickMsg]()
	var order []int

	n.AddCatchAll(typ, identified{name: "a"}, 0, func(message.Address, message.Message) {
		order = append(order, 1)
	})
	n.AddCatchAll(typ, identified{name: "b"}, 0, func(message.Address, message.Message) {
		order = append(order, 2)
	})
	n.AddCatchAll(typ, identified{name: "c"}, 0, func(message.Address, message.Message) {
		order = append(order, 3)
	})

	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestInactiveNodeDropsDispatch(t *testing.T) {
	n := New()
	calls := 0
	cb := func(tickMsg) {}
	n.AddCatchAll(message.TypeFor[tickMsg](), cb, 0, func(message.Address, message.Message) {
		calls++
	})

	n.SetActive(false)
	assert.False(t, n.Active())
	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, 0, calls, "an inactive node must not dispatch")

	n.SetActive(true)
	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, 1, calls, "registrations survive an inactive period")
}

func TestRemovalDuringDispatchKeepsSnapshot(t *testing.T) {
	n := New()
	typ := message.TypeFor[tickMsg]()
	var order []string
	var removeSecond func() bool

	n.AddCatchAll(typ, identified{name: "first"}, 0, func(message.Address, message.Message) {
		order = append(order, "first")
		removeSecond()
	})
	removeSecond = n.AddCatchAll(typ, identified{name: "second"}, 0, func(message.Address, message.Message) {
		order = append(order, "second")
	})

	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, []string{"first", "second"}, order,
		"a callback removed mid-emission still runs in that emission")

	order = nil
	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, []string{"first"}, order, "the removal applies to later emissions")
}

func TestAdditionDuringDispatchWaitsForNextEmission(t *testing.T) {
	n := New()
	typ := message.TypeFor[tickMsg]()
	var order []string

	n.AddCatchAll(typ, identified{name: "outer"}, 0, func(message.Address, message.Message) {
		order = append(order, "outer")
		if len(order) == 1 {
			n.AddCatchAll(typ, identified{name: "inner"}, 0, func(message.Address, message.Message) {
				order = append(order, "inner")
			})
		}
	})

	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, []string{"outer"}, order, "a callback added mid-emission must wait")

	order = nil
	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestReentrantDispatch(t *testing.T) {
	n := New()
	var order []string

	n.AddCatchAll(message.TypeFor[tickMsg](), identified{name: "t"}, 0, func(message.Address, message.Message) {
		order = append(order, "tick")
		// Emit a different type from inside the callback.
		n.HandleCatchAll(0, message.None, joinMsg{})
	})
	n.AddCatchAll(message.TypeFor[joinMsg](), identified{name: "j"}, 0, func(message.Address, message.Message) {
		order = append(order, "join")
	})

	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, []string{"tick", "join"}, order)
}

func TestDispatchRunsOnlyTheRequestedPriorityBand(t *testing.T) {
	n := New()
	typ := message.TypeFor[tickMsg]()
	var order []string

	n.AddCatchAll(typ, identified{name: "late"}, 10, func(message.Address, message.Message) {
		order = append(order, "late")
	})
	n.AddCatchAll(typ, identified{name: "early"}, 0, func(message.Address, message.Message) {
		order = append(order, "early")
	})

	n.HandleCatchAll(0, message.None, tickMsg{})
	assert.Equal(t, []string{"early"}, order, "a band dispatch must skip other priorities")

	n.HandleCatchAll(10, message.None, tickMsg{})
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestGlobalBucketsSeeEveryType(t *testing.T) {
	n := New()
	var seen []string
	record := func(label string) func(message.Address, message.Message) {
		return func(addr message.Address, msg message.Message) {
			seen = append(seen, label)
		}
	}

	n.AddGlobalUntargeted(identified{name: "u"}, 0, record("untargeted"))
	n.AddGlobalTargeted(identified{name: "t"}, 0, record("targeted"))
	n.AddGlobalBroadcast(identified{name: "b"}, 0, record("broadcast"))

	n.HandleGlobalUntargeted(0, tickMsg{})
	n.HandleGlobalTargeted(0, message.NewAddress(), lineMsg{})
	n.HandleGlobalBroadcast(0, message.NewAddress(), joinMsg{})

	assert.Equal(t, []string{"untargeted", "targeted", "broadcast"}, seen)
}

func TestGlobalRemove(t *testing.T) {
	n := New()
	calls := 0
	remove := n.AddGlobalUntargeted(identified{name: "u"}, 0, func(message.Address, message.Message) {
		calls++
	})

	n.HandleGlobalUntargeted(0, tickMsg{})
	require.True(t, remove())
	n.HandleGlobalUntargeted(0, tickMsg{})
	assert.Equal(t, 1, calls)
	assert.False(t, remove())
}
