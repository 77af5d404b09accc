// Package shape implements the structural-sparsity descriptor (Dense or a
// bitset-over-tiles Sparse mask) and the binary combinators used to
// propagate it across an expression. See package shapeprop for the
// higher-level per-operation rules built on top of these combinators.
package shape

import (
	"fmt"

	"github.com/willf/bitset"
	"go.tiledarray.dev/core/go/skerr"
)

// ErrNotApplicable is returned when querying the bitset of a Dense Shape.
var ErrNotApplicable = fmt.Errorf("shape: bitset not applicable to a Dense shape")

// ErrShapeMismatch is returned when combining two shapes of different tile
// counts.
var ErrShapeMismatch = fmt.Errorf("shape: tile counts do not match")

// Shape is either Dense (every tile structurally present) or Sparse
// (carries an explicit bitset over tile ordinals). Once constructed, a
// Shape is immutable.
type Shape struct {
	dense     bool
	tileCount uint
	bits      *bitset.BitSet // nil when dense
}

// NewDenseShape returns a Shape that marks every one of tileCount tiles as
// present.
func NewDenseShape(tileCount uint) Shape {
	return Shape{dense: true, tileCount: tileCount}
}

// NewSparseShape returns a Sparse Shape over tileCount tiles with the given
// ordinals marked non-zero.
func NewSparseShape(tileCount uint, setBits ...uint) Shape {
	b := bitset.New(tileCount)
	for _, k := range setBits {
		b.Set(k)
	}
	return Shape{tileCount: tileCount, bits: b}
}

// NewSparseShapeFromBitSet wraps an existing bitset as a Sparse Shape. The
// bitset is cloned so subsequent external mutation cannot violate Shape's
// immutability.
func NewSparseShapeFromBitSet(tileCount uint, b *bitset.BitSet) Shape {
	return Shape{tileCount: tileCount, bits: b.Clone()}
}

// IsDense reports whether every tile is implicitly present.
func (s Shape) IsDense() bool { return s.dense }

// TileCount returns the number of tiles this Shape is defined over.
func (s Shape) TileCount() uint { return s.tileCount }

// IsZero reports whether tile k is structurally zero. Always false for a
// Dense shape.
func (s Shape) IsZero(k uint) bool {
	if s.dense {
		return false
	}
	return !s.bits.Test(k)
}

// BitSet returns the underlying bitset of a Sparse shape. Fails with
// ErrNotApplicable for a Dense shape.
func (s Shape) BitSet() (*bitset.BitSet, error) {
	if s.dense {
		return nil, skerr.Wrap(ErrNotApplicable)
	}
	return s.bits.Clone(), nil
}

// Density returns the fraction of tiles that are structurally present: 1.0
// for Dense, bits-set/tileCount for Sparse, and 0 for a shape over zero
// tiles.
func (s Shape) Density() float64 {
	if s.tileCount == 0 {
		return 0
	}
	if s.dense {
		return 1.0
	}
	return float64(s.bits.Count()) / float64(s.tileCount)
}

func (s Shape) String() string {
	if s.dense {
		return fmt.Sprintf("Shape(Dense, tiles=%d)", s.tileCount)
	}
	return fmt.Sprintf("Shape(Sparse, tiles=%d, set=%d)", s.tileCount, s.bits.Count())
}

func checkSameTileCount(a, b Shape) error {
	if a.tileCount != b.tileCount {
		return skerr.Wrapf(ErrShapeMismatch, "tile counts %d and %d differ", a.tileCount, b.tileCount)
	}
	return nil
}

// Sum computes the element-wise sum combinator: shape_C[k] = shape_A[k] OR
// shape_B[k], Dense if either operand is Dense.
func Sum(a, b Shape) (Shape, error) {
	if err := checkSameTileCount(a, b); err != nil {
		return Shape{}, err
	}
	if a.dense || b.dense {
		return NewDenseShape(a.tileCount), nil
	}
	return Shape{tileCount: a.tileCount, bits: a.bits.Union(b.bits)}, nil
}

// Product computes the element-wise (Hadamard) product combinator:
// shape_C[k] = shape_A[k] AND shape_B[k], Sparse unless both operands are
// Dense.
func Product(a, b Shape) (Shape, error) {
	if err := checkSameTileCount(a, b); err != nil {
		return Shape{}, err
	}
	if a.dense && b.dense {
		return NewDenseShape(a.tileCount), nil
	}
	if a.dense {
		return Shape{tileCount: b.tileCount, bits: b.bits.Clone()}, nil
	}
	if b.dense {
		return Shape{tileCount: a.tileCount, bits: a.bits.Clone()}, nil
	}
	return Shape{tileCount: a.tileCount, bits: a.bits.Intersection(b.bits)}, nil
}
