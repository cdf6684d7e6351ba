// Package handle hands out opaque integer handles for values that must not
// cross an API boundary directly.
package handle

import (
	"fmt"
	"sync"

	txerrors "github.com/pushchain/svm-txkit/errors"
)

// Handle is an opaque reference into a Table. The zero Handle is never valid.
type Handle uint64

const indexBits = 32

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<indexBits | uint64(index))
}

func (h Handle) index() uint32 {
	return uint32(h)
}

func (h Handle) generation() uint32 {
	return uint32(h >> indexBits)
}

func (h Handle) String() string {
	return fmt.Sprintf("handle(%d/%d)", h.index(), h.generation())
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Table is a generation-checked arena. A released slot is reused with a new
// generation, so a stale handle never resolves to the new occupant.
// Table is safe for concurrent use.
type Table[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	live  int
}

// New creates an empty table.
func New[T any]() *Table[T] {
	return &Table[T]{}
}

// Acquire stores value and returns its handle.
func (t *Table[T]) Acquire(value T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot[T]{})
		index = uint32(len(t.slots) - 1)
	}

	s := &t.slots[index]
	s.generation++
	s.value = value
	s.live = true
	t.live++
	return makeHandle(index, s.generation)
}

// Get resolves h.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, err := t.lookup(h, "get")
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Release frees h and returns the value it held. Releasing twice fails.
func (t *Table[T]) Release(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	s, err := t.lookup(h, "release")
	if err != nil {
		return zero, err
	}
	value := s.value
	s.value = zero
	s.live = false
	t.free = append(t.free, h.index())
	t.live--
	return value, nil
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

func (t *Table[T]) lookup(h Handle, op string) (*slot[T], error) {
	index := h.index()
	if h == 0 || int(index) >= len(t.slots) {
		return nil, txerrors.NewInvalidInputError(op, "unknown handle", nil).WithContext("handle", h.String())
	}
	s := &t.slots[index]
	if !s.live || s.generation != h.generation() {
		return nil, txerrors.NewInvalidInputError(op, "stale handle", nil).WithContext("handle", h.String())
	}
	return s, nil
}
