// Package ident derives reference-counting identities for callback
// values. The dispatch tables collapse duplicate registrations of the
// same callback into one counted entry, which needs a comparable key per
// callback.
package ident

import "reflect"

// Style ranks break priority ties: handler values registered as
// interfaces run before plain function callbacks.
const (
	StyleHandler = 0
	StyleFunc    = 1
)

// Key derives the identity key and style rank for a callback value.
// Functions key by code pointer, so the same named function or the same
// stored closure registered twice collapses into one entry. Comparable
// non-function values key by themselves. Non-comparable values get a
// fresh unique key and never collapse.
func Key(cb any) (key any, style int) {
	v := reflect.ValueOf(cb)
	if v.Kind() == reflect.Func {
		return v.Pointer(), StyleFunc
	}
	if t := reflect.TypeOf(cb); t != nil && t.Comparable() {
		return cb, StyleHandler
	}
	return new(int), StyleHandler
}
