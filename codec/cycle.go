package codec

import (
	"errors"
	"reflect"
)

var errCycle = errors.New("reference cycle")

type visit struct {
	ptr uintptr
	typ reflect.Type
}

// checkCycles reports errCycle when v reaches one of its own ancestors
// through a pointer, map or slice. Shared acyclic references are fine.
func checkCycles(v any) error {
	w := walker{onPath: make(map[visit]struct{})}
	if w.walk(reflect.ValueOf(v)) {
		return errCycle
	}
	return nil
}

type walker struct {
	onPath map[visit]struct{}
}

func (w walker) enter(v reflect.Value) (leave func(), seen bool) {
	k := visit{ptr: v.Pointer(), typ: v.Type()}
	if _, ok := w.onPath[k]; ok {
		return nil, true
	}
	w.onPath[k] = struct{}{}
	return func() { delete(w.onPath, k) }, false
}

func (w walker) walk(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return false
		}
		leave, seen := w.enter(v)
		if seen {
			return true
		}
		defer leave()
		return w.walk(v.Elem())
	case reflect.Interface:
		if v.IsNil() {
			return false
		}
		return w.walk(v.Elem())
	case reflect.Map:
		if v.IsNil() || v.Len() == 0 {
			return false
		}
		leave, seen := w.enter(v)
		if seen {
			return true
		}
		defer leave()
		it := v.MapRange()
		for it.Next() {
			if w.walk(it.Key()) || w.walk(it.Value()) {
				return true
			}
		}
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 || !mayRefer(v.Type().Elem()) {
			return false
		}
		leave, seen := w.enter(v)
		if seen {
			return true
		}
		defer leave()
		for i := 0; i < v.Len(); i++ {
			if w.walk(v.Index(i)) {
				return true
			}
		}
	case reflect.Array:
		if !mayRefer(v.Type().Elem()) {
			return false
		}
		for i := 0; i < v.Len(); i++ {
			if w.walk(v.Index(i)) {
				return true
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			// encoders skip unexported fields, except embedded structs
			if f := t.Field(i); !f.IsExported() && !f.Anonymous {
				continue
			}
			if w.walk(v.Field(i)) {
				return true
			}
		}
	}
	return false
}

// mayRefer reports whether values of t can hold a pointer, map or slice.
func mayRefer(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	case reflect.Array:
		return mayRefer(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if mayRefer(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
