// Package shapeprop implements the C6 ShapePropagation rules: given the
// Shapes of two operands of a binary tensor expression, compute the Shape
// of the result before any tile is actually computed. Propagation runs
// once per expression, synchronously, and the result is sealed (immutable)
// and bound into the output array's store.
package shapeprop

import (
	"go.tiledarray.dev/core/go/shape"
	"go.tiledarray.dev/core/go/skerr"
)

// ElementWiseSum computes the Shape of C = A + B (same index set on both
// operands): shape_C[k] = shape_A[k] OR shape_B[k], Dense if either operand
// is Dense.
func ElementWiseSum(a, b shape.Shape) (shape.Shape, error) {
	s, err := shape.Sum(a, b)
	if err != nil {
		return shape.Shape{}, skerr.Wrap(err)
	}
	return s, nil
}

// ElementWiseProduct computes the Shape of the Hadamard product C = A ⊙ B:
// shape_C[k] = shape_A[k] AND shape_B[k], Sparse unless both operands are
// Dense.
func ElementWiseProduct(a, b shape.Shape) (shape.Shape, error) {
	s, err := shape.Product(a, b)
	if err != nil {
		return shape.Shape{}, skerr.Wrap(err)
	}
	return s, nil
}

// Contraction computes the Shape of C = A·B where A is laid out as a
// row-major ni×nk tile grid, B as nk×nj, and the k dimension is contracted:
//
//	shape_C[i,j] = OR_k (shape_A[i,k] AND shape_B[k,j])
//
// computed over the tile grid, not the element grid. Dense if both operands
// are Dense and nk > 0.
func Contraction(ni, nk, nj uint, a, b shape.Shape) (shape.Shape, error) {
	if a.TileCount() != ni*nk {
		return shape.Shape{}, skerr.Fmt("shapeprop: operand A has %d tiles, want %d (ni=%d * nk=%d)", a.TileCount(), ni*nk, ni, nk)
	}
	if b.TileCount() != nk*nj {
		return shape.Shape{}, skerr.Fmt("shapeprop: operand B has %d tiles, want %d (nk=%d * nj=%d)", b.TileCount(), nk*nj, nk, nj)
	}

	if a.IsDense() && b.IsDense() {
		if nk > 0 {
			return shape.NewDenseShape(ni * nj), nil
		}
		return shape.NewSparseShape(ni * nj), nil
	}

	bits := make([]bool, ni*nj)
	for i := uint(0); i < ni; i++ {
		for k := uint(0); k < nk; k++ {
			if a.IsZero(i*nk + k) {
				continue
			}
			for j := uint(0); j < nj; j++ {
				if bits[i*nj+j] {
					continue
				}
				if !b.IsZero(k*nj + j) {
					bits[i*nj+j] = true
				}
			}
		}
	}
	var set []uint
	for idx, v := range bits {
		if v {
			set = append(set, uint(idx))
		}
	}
	return shape.NewSparseShape(ni*nj, set...), nil
}

// Permutation computes the Shape of C where shape_C[perm[i]] = shape_A[i]
// for every tile ordinal i, i.e. perm maps a source ordinal to its
// destination ordinal.
func Permutation(a shape.Shape, perm []int) (shape.Shape, error) {
	if uint(len(perm)) != a.TileCount() {
		return shape.Shape{}, skerr.Fmt("shapeprop: permutation length %d does not match tile count %d", len(perm), a.TileCount())
	}
	if a.IsDense() {
		return shape.NewDenseShape(a.TileCount()), nil
	}
	var set []uint
	for i := 0; i < len(perm); i++ {
		if !a.IsZero(uint(i)) {
			set = append(set, uint(perm[i]))
		}
	}
	return shape.NewSparseShape(a.TileCount(), set...), nil
}
