package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func namedCallback() {}

func TestFuncKeysByCodePointer(t *testing.T) {
	k1, s1 := Key(namedCallback)
	k2, s2 := Key(namedCallback)
	assert.Equal(t, k1, k2, "the same function must produce the same key")
	assert.Equal(t, StyleFunc, s1)
	assert.Equal(t, StyleFunc, s2)
}

func TestStoredClosureKeysStable(t *testing.T) {
	fn := func() {}
	k1, _ := Key(fn)
	k2, _ := Key(fn)
	assert.Equal(t, k1, k2, "a stored closure registered twice must collapse")
}

func TestComparableValueKeysByItself(t *testing.T) {
	type handler struct {
		name string
	}
	k1, s1 := Key(handler{name: "a"})
	k2, _ := Key(handler{name: "a"})
	k3, _ := Key(handler{name: "b"})

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Equal(t, StyleHandler, s1)
}

func TestNonComparableValueGetsUniqueKey(t *testing.T) {
	k1, s1 := Key([]int{1})
	k2, _ := Key([]int{1})
	assert.NotEqual(t, k1, k2, "non-comparable values never collapse")
	assert.Equal(t, StyleHandler, s1)
}

func TestHandlerStyleOutranksFuncStyle(t *testing.T) {
	assert.Less(t, StyleHandler, StyleFunc)
}
