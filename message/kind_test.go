package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPlaced struct {
	TargetedBase
	OrderID string `json:"order_id"`
	Total   int    `json:"total,omitempty"`
	Note    string `json:"-"`
	Raw     []byte
}

func TestKindRegistryRegister(t *testing.T) {
	r := NewKindRegistry()

	k, err := r.Register(buildKind[orderPlaced]("shop.order.placed", "An order was placed"))
	require.NoError(t, err)
	assert.Equal(t, "shop.order.placed", k.Name)
	assert.Equal(t, CategoryTargeted, k.Category)
	assert.Equal(t, TypeFor[orderPlaced](), k.Type)

	t.Run("duplicate name is rejected", func(t *testing.T) {
		_, err := r.Register(buildKind[orderPlaced]("shop.order.placed", "again"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		_, err := r.Register(Kind{})
		require.Error(t, err)
	})
}

func TestKindFieldsFollowJSONTags(t *testing.T) {
	r := NewKindRegistry()
	k, err := r.Register(buildKind[orderPlaced]("shop.order.placed", ""))
	require.NoError(t, err)

	// Embedded base and "-" tagged fields are skipped; untagged fields
	// keep their Go names.
	assert.Equal(t, []string{"order_id", "total", "Raw"}, k.Fields)
}

func TestKindRegistryLookup(t *testing.T) {
	r := NewKindRegistry()
	_, err := r.Register(buildKind[orderPlaced]("shop.order.placed", ""))
	require.NoError(t, err)

	k, ok := r.Get("shop.order.placed")
	require.True(t, ok)
	assert.Equal(t, "shop.order.placed", k.Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	byType, ok := r.ForType(TypeFor[orderPlaced]())
	require.True(t, ok)
	assert.Equal(t, k.Name, byType.Name)
}

func TestKindRegistryListSorted(t *testing.T) {
	r := NewKindRegistry()
	for _, name := range []string{"c.third", "a.first", "b.second"} {
		_, err := r.Register(Kind{Name: name})
		require.NoError(t, err)
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a.first", list[0].Name)
	assert.Equal(t, "b.second", list[1].Name)
	assert.Equal(t, "c.third", list[2].Name)
}

func TestRegisterKindDefaultRegistry(t *testing.T) {
	k := RegisterKind[orderPlaced]("shop.order.placed.default-test", "test entry")
	got, ok := Kinds().Get(k.Name)
	require.True(t, ok)
	assert.Equal(t, k.Type, got.Type)

	assert.Panics(t, func() {
		RegisterKind[orderPlaced]("shop.order.placed.default-test", "dup")
	})
}
