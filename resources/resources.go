// Package resources implements the typed resource map: a single
// concurrent, heterogeneous store keyed by type, supporting shared-immutable
// and exclusive-mutable borrows with conflict reporting.
package resources

import (
	"fmt"
	"reflect"
	"sync"
)

// ErrValueNotFound is returned when no value of the requested type has been
// inserted.
type ErrValueNotFound struct {
	Type reflect.Type
}

func (e *ErrValueNotFound) Error() string {
	return fmt.Sprintf("no value of type %s in resource map", e.Type)
}

// ErrBorrowConflictImm is returned by TryBorrowMut when a shared borrow is
// already outstanding.
type ErrBorrowConflictImm struct {
	Type reflect.Type
}

func (e *ErrBorrowConflictImm) Error() string {
	return fmt.Sprintf("cannot borrow %s mutably: shared borrow(s) outstanding", e.Type)
}

// ErrBorrowConflictMut is returned by TryBorrow/TryBorrowMut when an
// exclusive borrow is already outstanding.
type ErrBorrowConflictMut struct {
	Type reflect.Type
}

func (e *ErrBorrowConflictMut) Error() string {
	return fmt.Sprintf("cannot borrow %s: exclusive borrow outstanding", e.Type)
}

type entry struct {
	mu       sync.Mutex
	value    any
	sharedN  int
	exclHeld bool
}

// Map is a concurrent, heterogeneous, type-keyed store. The zero value is
// not usable; construct with New.
type Map struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*entry
}

// New returns an empty resource map.
func New() *Map {
	return &Map{entries: make(map[reflect.Type]*entry)}
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (m *Map) entryFor(t reflect.Type) *entry {
	m.mu.RLock()
	e, ok := m.entries[t]
	m.mu.RUnlock()
	if ok {
		return e
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[t]; ok {
		return e
	}
	e = &entry{}
	m.entries[t] = e
	return e
}

// Insert overwrites any previous entry for T.
func Insert[T any](m *Map, value T) {
	t := keyOf[T]()
	e := m.entryFor(t)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = value
}

// Remove deletes and returns the current value for T, if any.
func Remove[T any](m *Map) (T, bool) {
	t := keyOf[T]()
	m.mu.Lock()
	e, ok := m.entries[t]
	if ok {
		delete(m.entries, t)
	}
	m.mu.Unlock()
	var zero T
	if !ok {
		return zero, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Ref is a released-on-Release shared borrow handle.
type Ref[T any] struct {
	value T
	e     *entry
}

// Get returns the borrowed value.
func (r *Ref[T]) Get() T { return r.value }

// Release ends the shared borrow.
func (r *Ref[T]) Release() {
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	r.e.sharedN--
}

// RefMut is a released-on-Release exclusive borrow handle.
type RefMut[T any] struct {
	ptr *T
	e   *entry
}

// Get returns a pointer to the borrowed value, mutable in place.
func (r *RefMut[T]) Get() *T { return r.ptr }

// Release ends the exclusive borrow, writing back any mutation made
// through Get() so it is visible to subsequent borrows.
func (r *RefMut[T]) Release() {
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	r.e.value = any(*r.ptr)
	r.e.exclHeld = false
}

// TryBorrow acquires a shared, immutable borrow on T. It fails with
// *ErrValueNotFound if nothing has been inserted, or *ErrBorrowConflictMut
// if an exclusive borrow is outstanding.
func TryBorrow[T any](m *Map) (*Ref[T], error) {
	t := keyOf[T]()
	m.mu.RLock()
	e, ok := m.entries[t]
	m.mu.RUnlock()
	if !ok {
		return nil, &ErrValueNotFound{Type: t}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exclHeld {
		return nil, &ErrBorrowConflictMut{Type: t}
	}
	v, ok := e.value.(T)
	if !ok {
		return nil, &ErrValueNotFound{Type: t}
	}
	e.sharedN++
	return &Ref[T]{value: v, e: e}, nil
}

// TryBorrowMut acquires an exclusive, mutable borrow on T. It fails with
// *ErrValueNotFound if nothing has been inserted, *ErrBorrowConflictImm if
// shared borrows are outstanding, or *ErrBorrowConflictMut if an exclusive
// borrow is outstanding.
func TryBorrowMut[T any](m *Map) (*RefMut[T], error) {
	t := keyOf[T]()
	m.mu.RLock()
	e, ok := m.entries[t]
	m.mu.RUnlock()
	if !ok {
		return nil, &ErrValueNotFound{Type: t}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exclHeld {
		return nil, &ErrBorrowConflictMut{Type: t}
	}
	if e.sharedN > 0 {
		return nil, &ErrBorrowConflictImm{Type: t}
	}
	v, ok := e.value.(T)
	if !ok {
		return nil, &ErrValueNotFound{Type: t}
	}
	e.exclHeld = true
	ptr := new(T)
	*ptr = v
	return &RefMut[T]{ptr: ptr, e: e}, nil
}
