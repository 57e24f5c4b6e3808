package binding

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"unsafe"
	"weak"
)

// ErrInvalidObject is returned for objects that cannot be bound: nil,
// non-pointers and pointers to zero-size values (which share addresses).
var ErrInvalidObject = errors.New("object cannot be bound")

// Binding is the engine's handle for one host object. It holds the object
// weakly; identity is the object's address and pointer type while it is
// alive, so a struct and its first field bind separately.
//
// Anchor is engine-owned payload reached from the binding, typically the
// nodes keyed by this object alone. The binding holds no strong reference
// to its object, so anything reachable from Anchor must not point back to
// the object either, or it never dies.
type Binding[A any] struct {
	Anchor A

	addr  uintptr
	ref   weak.Pointer[byte]
	typ   reflect.Type
	links backlinks

	next     *Binding[A] // bucket chain
	listed   bool        // in the hash table
	pending  bool        // found expired, waiting for Reclaim
	released bool
	gen      uint64
	cleanup  runtime.Cleanup
}

// Object returns the bound object, or nil once it has been reclaimed.
func (b *Binding[A]) Object() any {
	p := b.ref.Value()
	if p == nil {
		return nil
	}
	return reflect.NewAt(b.typ.Elem(), unsafe.Pointer(p)).Interface()
}

// Alive reports whether the bound object is still reachable. Once false it
// stays false.
func (b *Binding[A]) Alive() bool {
	return !b.released && b.ref.Value() != nil
}

// Released reports whether the store has released b. A released binding
// is never returned by lookups again.
func (b *Binding[A]) Released() bool { return b.released }

// AddBacklink records l to be unlinked when b is released.
func (b *Binding[A]) AddBacklink(l Backlink) {
	b.links.add(l)
}

// Backlinks returns the number of recorded backlinks.
func (b *Binding[A]) Backlinks() int { return b.links.len() }

func (b *Binding[A]) String() string {
	return fmt.Sprintf("binding(%s@%#x)", b.typ, b.addr)
}

// identity validates obj and returns its address and pointer type.
func identity(obj any) (unsafe.Pointer, reflect.Type, error) {
	if obj == nil {
		return nil, nil, fmt.Errorf("%w: nil", ErrInvalidObject)
	}
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer {
		return nil, nil, fmt.Errorf("%w: %T is not a pointer", ErrInvalidObject, obj)
	}
	if v.IsNil() {
		return nil, nil, fmt.Errorf("%w: nil %T", ErrInvalidObject, obj)
	}
	if v.Type().Elem().Size() == 0 {
		return nil, nil, fmt.Errorf("%w: %T points to a zero-size value", ErrInvalidObject, obj)
	}
	return v.UnsafePointer(), v.Type(), nil
}

// Validate reports whether obj can be bound.
func Validate(obj any) error {
	_, _, err := identity(obj)
	return err
}
