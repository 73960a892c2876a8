package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwhitmore/beacon/message"
)

func record(addr message.Address, typ string, dir Direction, m Method) Record {
	return Record{Address: addr, Type: typ, Direction: dir, Method: m}
}

func TestLedgerDisabledByDefault(t *testing.T) {
	l := New()
	assert.False(t, l.Enabled())

	l.Log(record(message.None, "demo.Tick", Register, MethodUntargeted))
	assert.Equal(t, 0, l.Len(), "records logged while disabled must be dropped")
}

func TestLedgerLogAssignsIDAndTime(t *testing.T) {
	l := New()
	l.SetEnabled(true)

	l.Log(record(message.None, "demo.Tick", Register, MethodUntargeted))
	require.Equal(t, 1, l.Len())

	var got Record
	for r := range l.All() {
		got = r
	}
	assert.NotEmpty(t, got.ID, "Log must assign an ID")
	assert.False(t, got.Time.IsZero(), "Log must assign a timestamp")
}

func TestLedgerLogKeepsCallerFields(t *testing.T) {
	l := New()
	l.SetEnabled(true)

	when := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.Log(Record{ID: "fixed", Time: when, Type: "demo.Tick"})

	for r := range l.All() {
		assert.Equal(t, "fixed", r.ID)
		assert.Equal(t, when, r.Time)
	}
}

func TestLedgerDisableKeepsHistory(t *testing.T) {
	l := New()
	l.SetEnabled(true)
	l.Log(record(message.None, "a", Register, MethodUntargeted))

	l.SetEnabled(false)
	l.Log(record(message.None, "b", Register, MethodUntargeted))

	require.Equal(t, 1, l.Len(), "disabling must keep existing records and drop new ones")
}

func TestLedgerRecordsFor(t *testing.T) {
	l := New()
	l.SetEnabled(true)

	room := message.At(1)
	other := message.At(2)
	l.Log(record(room, "chat.Line", Register, MethodTargeted))
	l.Log(record(other, "chat.Line", Register, MethodTargeted))
	l.Log(record(room, "chat.Line", Deregister, MethodTargeted))

	var dirs []Direction
	for r := range l.RecordsFor(room) {
		assert.Equal(t, room, r.Address)
		dirs = append(dirs, r.Direction)
	}
	require.Equal(t, []Direction{Register, Deregister}, dirs,
		"records must come back in append order, including deregistered history")
}

func TestLedgerIterationStopsEarly(t *testing.T) {
	l := New()
	l.SetEnabled(true)
	for i := 0; i < 5; i++ {
		l.Log(record(message.None, "x", Register, MethodGlobal))
	}

	count := 0
	for range l.All() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestLedgerClear(t *testing.T) {
	l := New()
	l.SetEnabled(true)

	room := message.At(1)
	l.Log(record(room, "chat.Line", Register, MethodTargeted))
	l.Log(record(message.None, "demo.Tick", Register, MethodUntargeted))
	l.Log(record(room, "chat.Line", Deregister, MethodTargeted))

	t.Run("predicate removes matches only", func(t *testing.T) {
		removed := l.Clear(func(r Record) bool { return r.Address == room })
		assert.Equal(t, 2, removed)
		assert.Equal(t, 1, l.Len())
	})

	t.Run("nil predicate removes everything", func(t *testing.T) {
		removed := l.Clear(nil)
		assert.Equal(t, 1, removed)
		assert.Equal(t, 0, l.Len())
	})
}

func TestLedgerFormat(t *testing.T) {
	l := New()
	l.SetEnabled(true)
	l.Log(record(message.At(3), "chat.Line", Register, MethodTargeted))
	l.Log(record(message.At(3), "chat.Line", Deregister, MethodTargeted))

	t.Run("default formatter", func(t *testing.T) {
		var sb strings.Builder
		require.NoError(t, l.Format(&sb, nil))
		lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "register")
		assert.Contains(t, lines[1], "deregister")
	})

	t.Run("custom formatter", func(t *testing.T) {
		var sb strings.Builder
		require.NoError(t, l.Format(&sb, func(r Record) string { return r.Type }))
		assert.Equal(t, "chat.Line\nchat.Line\n", sb.String())
	})
}

func TestMethodAndDirectionStrings(t *testing.T) {
	assert.Equal(t, "register", Register.String())
	assert.Equal(t, "deregister", Deregister.String())
	assert.NotEqual(t, MethodTargeted.String(), MethodBroadcast.String())
	assert.NotEmpty(t, MethodInterceptor.String())
}
