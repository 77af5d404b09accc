package tiledrange

import (
	"fmt"

	"go.tiledarray.dev/core/go/skerr"
)

// TileIndex is an ordered tuple of tile coordinates, one per dimension.
type TileIndex []int

func (i TileIndex) clone() TileIndex {
	out := make(TileIndex, len(i))
	copy(out, i)
	return out
}

func (i TileIndex) String() string { return fmt.Sprintf("%v", []int(i)) }

// ElementIndex is an ordered tuple of element coordinates, one per
// dimension.
type ElementIndex []int64

// ElementRange is the rank-r product of per-dimension element ranges.
type ElementRange []ElementRange1

// Includes reports whether e falls within every dimension's range.
func (er ElementRange) Includes(e ElementIndex) bool {
	if len(e) != len(er) {
		return false
	}
	for d, r := range er {
		if !r.Includes(e[d]) {
			return false
		}
	}
	return true
}

// TiledRange is a rank-r product of Range1 dimensions. It names every tile
// in the array and converts between tile multi-indices, tile ordinals, and
// element coordinates.
type TiledRange struct {
	dims    []Range1
	strides []int // row-major strides over tile counts, precomputed once
	tileCnt int
}

// NewTiledRange builds a TiledRange from one Range1 per dimension.
func NewTiledRange(dims ...Range1) (TiledRange, error) {
	if len(dims) == 0 {
		return TiledRange{}, skerr.Fmt("tiledrange: need at least one dimension")
	}
	cp := make([]Range1, len(dims))
	copy(cp, dims)

	strides := make([]int, len(cp))
	acc := 1
	for d := len(cp) - 1; d >= 0; d-- {
		strides[d] = acc
		acc *= cp[d].TileCount()
	}
	return TiledRange{dims: cp, strides: strides, tileCnt: acc}, nil
}

// Rank returns the number of dimensions.
func (tr TiledRange) Rank() int { return len(tr.dims) }

// TileCount returns the total number of tiles (the product of per-dimension
// tile counts).
func (tr TiledRange) TileCount() int { return tr.tileCnt }

// ElementCount returns the total number of elements (the product of
// per-dimension extents).
func (tr TiledRange) ElementCount() int64 {
	n := int64(1)
	for _, d := range tr.dims {
		er := d.ElementRange()
		n *= er.Volume()
	}
	return n
}

// Dim returns the Range1 for dimension d.
func (tr TiledRange) Dim(d int) Range1 { return tr.dims[d] }

func (tr TiledRange) validIndex(i TileIndex) bool {
	if len(i) != tr.Rank() {
		return false
	}
	for d, v := range i {
		if v < 0 || v >= tr.dims[d].TileCount() {
			return false
		}
	}
	return true
}

// Includes reports whether i names a tile in this TiledRange.
func (tr TiledRange) Includes(i TileIndex) bool { return tr.validIndex(i) }

// IncludesElement reports whether e falls within the enclosing element
// range.
func (tr TiledRange) IncludesElement(e ElementIndex) bool {
	return tr.ElementRangeOf().Includes(e)
}

// ElementRangeOf returns the element range enclosing the whole array.
func (tr TiledRange) ElementRangeOf() ElementRange {
	out := make(ElementRange, tr.Rank())
	for d, dim := range tr.dims {
		out[d] = dim.ElementRange()
	}
	return out
}

// TileRange returns the element sub-range of tile i.
func (tr TiledRange) TileRange(i TileIndex) (ElementRange, error) {
	if !tr.validIndex(i) {
		return nil, skerr.Wrapf(ErrOutOfRange, "tile index %s out of range for rank-%d TiledRange", i, tr.Rank())
	}
	out := make(ElementRange, tr.Rank())
	for d, v := range i {
		er, err := tr.dims[d].TileRange(v)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		out[d] = er
	}
	return out, nil
}

// TileOrdinal converts a tile multi-index to its row-major ordinal using
// the precomputed per-dimension strides (O(rank), no division).
func (tr TiledRange) TileOrdinal(i TileIndex) (int, error) {
	if !tr.validIndex(i) {
		return 0, skerr.Wrapf(ErrOutOfRange, "tile index %s out of range for rank-%d TiledRange", i, tr.Rank())
	}
	k := 0
	for d, v := range i {
		k += v * tr.strides[d]
	}
	return k, nil
}

// TileIndexOf converts an ordinal back to its tile multi-index.
func (tr TiledRange) TileIndexOf(k int) (TileIndex, error) {
	if k < 0 || k >= tr.tileCnt {
		return nil, skerr.Wrapf(ErrOutOfRange, "ordinal %d out of range for TileCount=%d", k, tr.tileCnt)
	}
	out := make(TileIndex, tr.Rank())
	rem := k
	for d := 0; d < tr.Rank(); d++ {
		out[d] = rem / tr.strides[d]
		rem %= tr.strides[d]
	}
	return out, nil
}

// ElementToTileIndex returns the tile multi-index containing element e.
func (tr TiledRange) ElementToTileIndex(e ElementIndex) (TileIndex, error) {
	if len(e) != tr.Rank() {
		return nil, skerr.Wrapf(ErrOutOfRange, "element %v has wrong rank for rank-%d TiledRange", e, tr.Rank())
	}
	out := make(TileIndex, tr.Rank())
	for d, v := range e {
		ti, err := tr.dims[d].ElementToTile(v)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		out[d] = ti
	}
	return out, nil
}

// Equal reports whether tr and o have pointwise-equal dimensions.
func (tr TiledRange) Equal(o TiledRange) bool {
	if tr.Rank() != o.Rank() {
		return false
	}
	for d := range tr.dims {
		if !tr.dims[d].Equal(o.dims[d]) {
			return false
		}
	}
	return true
}

func (tr TiledRange) String() string {
	return fmt.Sprintf("TiledRange(rank=%d, tiles=%d, dims=%v)", tr.Rank(), tr.tileCnt, tr.dims)
}
