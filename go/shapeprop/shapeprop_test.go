package shapeprop_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.tiledarray.dev/core/go/shape"
	"go.tiledarray.dev/core/go/shapeprop"
	"go.tiledarray.dev/core/go/testutils/unittest"
)

// Property 7: contraction shape equals the OR over the contracted axis of
// bitwise-ANDs.
func TestContraction_SparseOperands(t *testing.T) {
	unittest.SmallTest(t)
	// A is 2x2 (ni=2,nk=2): tiles (0,0)=1 (0,1)=0 (1,0)=0 (1,1)=1
	a := shape.NewSparseShape(4, 0, 3)
	// B is 2x2 (nk=2,nj=2): tiles (0,0)=0 (0,1)=1 (1,0)=1 (1,1)=0
	b := shape.NewSparseShape(4, 1, 2)

	c, err := shapeprop.Contraction(2, 2, 2, a, b)
	require.NoError(t, err)
	require.False(t, c.IsDense())
	// C[0,0] = A[0,0]&B[0,0] | A[0,1]&B[1,0] = 1&0 | 0&1 = 0
	require.True(t, c.IsZero(0))
	// C[0,1] = A[0,0]&B[0,1] | A[0,1]&B[1,1] = 1&1 | 0&0 = 1
	require.False(t, c.IsZero(1))
	// C[1,0] = A[1,0]&B[0,0] | A[1,1]&B[1,0] = 0&0 | 1&1 = 1
	require.False(t, c.IsZero(2))
	// C[1,1] = A[1,0]&B[0,1] | A[1,1]&B[1,1] = 0&1 | 1&0 = 0
	require.True(t, c.IsZero(3))
}

func TestContraction_DenseWhenBothDenseAndNonEmptyContraction(t *testing.T) {
	unittest.SmallTest(t)
	a := shape.NewDenseShape(6)
	b := shape.NewDenseShape(6)
	c, err := shapeprop.Contraction(2, 3, 2, a, b)
	require.NoError(t, err)
	require.True(t, c.IsDense())
}

func TestContraction_ShapeSizeMismatch(t *testing.T) {
	unittest.SmallTest(t)
	a := shape.NewSparseShape(4)
	b := shape.NewSparseShape(4)
	_, err := shapeprop.Contraction(2, 3, 2, a, b)
	require.Error(t, err)
}

func TestPermutation(t *testing.T) {
	unittest.SmallTest(t)
	a := shape.NewSparseShape(4, 0, 2)
	// swap tile 0 and 3, leave 1 and 2 in place
	perm := []int{3, 1, 2, 0}
	c, err := shapeprop.Permutation(a, perm)
	require.NoError(t, err)
	require.True(t, c.IsZero(0))
	require.True(t, c.IsZero(1))
	require.False(t, c.IsZero(2))
	require.False(t, c.IsZero(3))
}
