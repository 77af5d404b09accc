package tiledrange

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.tiledarray.dev/core/go/skerr"
)

// ElementRange1 is a half-open range [Begin, End) of element offsets along
// one dimension.
type ElementRange1 struct {
	Begin int64
	End   int64
}

// Volume returns the number of elements in the range.
func (r ElementRange1) Volume() int64 { return r.End - r.Begin }

// Includes reports whether e falls within [Begin, End).
func (r ElementRange1) Includes(e int64) bool { return e >= r.Begin && e < r.End }

func (r ElementRange1) String() string { return fmt.Sprintf("[%d,%d)", r.Begin, r.End) }

// Range1 is a strictly increasing sequence of t+1 element offsets
// partitioning [offsets[0], offsets[t]) into t contiguous tile ranges.
type Range1 struct {
	offsets []int64
}

// NewRange1 validates offsets and builds a Range1. All structural
// violations are collected into a single *multierror.Error rather than
// failing on the first one, so a caller constructing a whole TiledRange can
// report every bad dimension in one pass.
func NewRange1(offsets ...int64) (Range1, error) {
	var result *multierror.Error
	if len(offsets) < 2 {
		result = multierror.Append(result, fmt.Errorf("%w: need at least 2 offsets, got %d", ErrInvalidRange1, len(offsets)))
		return Range1{}, skerr.Wrap(result.ErrorOrNil())
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			result = multierror.Append(result, fmt.Errorf("%w: offsets[%d]=%d is not greater than offsets[%d]=%d",
				ErrInvalidRange1, i, offsets[i], i-1, offsets[i-1]))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return Range1{}, skerr.Wrap(err)
	}
	cp := make([]int64, len(offsets))
	copy(cp, offsets)
	return Range1{offsets: cp}, nil
}

// TileCount returns the number of tiles in this dimension.
func (r Range1) TileCount() int { return len(r.offsets) - 1 }

// ElementRange returns the enclosing element range [offsets[0], offsets[t]).
func (r Range1) ElementRange() ElementRange1 {
	return ElementRange1{Begin: r.offsets[0], End: r.offsets[len(r.offsets)-1]}
}

// TileRange returns the element sub-range of tile i.
func (r Range1) TileRange(i int) (ElementRange1, error) {
	if i < 0 || i >= r.TileCount() {
		return ElementRange1{}, skerr.Wrapf(ErrOutOfRange, "tile index %d not in [0,%d)", i, r.TileCount())
	}
	return ElementRange1{Begin: r.offsets[i], End: r.offsets[i+1]}, nil
}

// ElementToTile returns the tile index whose range contains element e.
func (r Range1) ElementToTile(e int64) (int, error) {
	er := r.ElementRange()
	if !er.Includes(e) {
		return 0, skerr.Wrapf(ErrOutOfRange, "element %d not in %s", e, er)
	}
	// Linear scan: tile counts per dimension are small in practice (the
	// owning TiledRange precomputes strides for ordinal math instead of
	// repeatedly calling this).
	for i := 0; i < r.TileCount(); i++ {
		if e < r.offsets[i+1] {
			return i, nil
		}
	}
	return 0, skerr.Wrapf(ErrOutOfRange, "element %d not in %s", e, er)
}

// Equal reports whether r and o have identical offsets.
func (r Range1) Equal(o Range1) bool {
	if len(r.offsets) != len(o.offsets) {
		return false
	}
	for i := range r.offsets {
		if r.offsets[i] != o.offsets[i] {
			return false
		}
	}
	return true
}

func (r Range1) String() string { return fmt.Sprintf("%v", r.offsets) }
