// Package tile implements the Tile value type: a contiguous element buffer
// over a single tile's element range. Numeric kernels between tiles
// (contraction, element-wise ops, permutation) are assumed to be supplied
// by an external BLAS-level library in production; the implementations
// here are reference loops for float64 only, not a re-specification of
// kernel performance.
package tile

import (
	"fmt"

	"go.tiledarray.dev/core/go/skerr"
	"go.tiledarray.dev/core/go/tiledrange"
)

// Tile is a value type: a range plus a contiguous buffer of elements in
// row-major order. A zero-value Tile is empty (Volume() == 0) and
// represents a structurally zero tile; its Data must never be
// dereferenced.
type Tile[T any] struct {
	rng  tiledrange.ElementRange
	data []T
}

// Empty returns the empty Tile: a structurally zero tile with no range and
// no backing storage.
func Empty[T any]() Tile[T] {
	return Tile[T]{}
}

func volumeOf(r tiledrange.ElementRange) int64 {
	v := int64(1)
	for _, d := range r {
		v *= d.Volume()
	}
	return v
}

// New allocates a zero-filled Tile over the given range.
func New[T any](r tiledrange.ElementRange) Tile[T] {
	return Tile[T]{rng: r, data: make([]T, volumeOf(r))}
}

// FromSlice builds a Tile over r from pre-populated row-major data. The
// slice length must equal the range's volume.
func FromSlice[T any](r tiledrange.ElementRange, data []T) (Tile[T], error) {
	want := volumeOf(r)
	if int64(len(data)) != want {
		return Tile[T]{}, skerr.Fmt("tile: data has %d elements, range requires %d", len(data), want)
	}
	cp := make([]T, len(data))
	copy(cp, data)
	return Tile[T]{rng: r, data: cp}, nil
}

// FromIterator builds a Tile over r, filling elements in row-major order by
// repeatedly calling next.
func FromIterator[T any](r tiledrange.ElementRange, next func() T) Tile[T] {
	n := volumeOf(r)
	data := make([]T, n)
	for i := range data {
		data[i] = next()
	}
	return Tile[T]{rng: r, data: data}
}

// Broadcast builds a Tile over r with every element set to value.
func Broadcast[T any](r tiledrange.ElementRange, value T) Tile[T] {
	data := make([]T, volumeOf(r))
	for i := range data {
		data[i] = value
	}
	return Tile[T]{rng: r, data: data}
}

// Range returns the tile's element range.
func (t Tile[T]) Range() tiledrange.ElementRange { return t.rng }

// Volume returns the number of elements in the tile.
func (t Tile[T]) Volume() int64 { return int64(len(t.data)) }

// IsEmpty reports whether the tile is the structurally-zero empty tile.
func (t Tile[T]) IsEmpty() bool { return len(t.data) == 0 }

// Data returns the tile's underlying row-major buffer. Callers must not
// mutate it: Tiles are immutable once published into a store.
func (t Tile[T]) Data() []T { return t.data }

// At returns the element at flat row-major index i.
func (t Tile[T]) At(i int64) T { return t.data[i] }

// Equal reports whether t and o have equal ranges and elementwise-equal
// data.
func (t Tile[T]) Equal(o Tile[T], eq func(a, b T) bool) bool {
	if len(t.data) != len(o.data) || len(t.rng) != len(o.rng) {
		return false
	}
	for d := range t.rng {
		if t.rng[d] != o.rng[d] {
			return false
		}
	}
	for i := range t.data {
		if !eq(t.data[i], o.data[i]) {
			return false
		}
	}
	return true
}

func (t Tile[T]) String() string {
	if t.IsEmpty() {
		return "Tile(empty)"
	}
	return fmt.Sprintf("Tile(range=%v, volume=%d)", t.rng, t.Volume())
}
