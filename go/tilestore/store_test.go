package tilestore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.tiledarray.dev/core/go/pmap"
	"go.tiledarray.dev/core/go/shape"
	"go.tiledarray.dev/core/go/testutils/unittest"
	"go.tiledarray.dev/core/go/tile"
	"go.tiledarray.dev/core/go/tiledrange"
	"go.tiledarray.dev/core/go/tilestore"
	"go.tiledarray.dev/core/go/worldsim"
)

func denseRange2x2(t *testing.T) tiledrange.TiledRange {
	r0, err := tiledrange.NewRange1(0, 2, 4)
	require.NoError(t, err)
	r1, err := tiledrange.NewRange1(0, 2, 4)
	require.NoError(t, err)
	tr, err := tiledrange.NewTiledRange(r0, r1)
	require.NoError(t, err)
	return tr
}

// buildDenseCluster builds the cluster for scenario S4: a 2x2 tile grid
// with a Dense shape, Blocked over P processes. It sets no tiles; callers
// fill each local tile themselves.
func buildDenseCluster(t *testing.T, p int) []*tilestore.Store[int] {
	tr := denseRange2x2(t)
	sh := shape.NewDenseShape(uint(tr.TileCount()))
	u := worldsim.NewUniverse(p)

	stores, err := tilestore.NewCluster[int](u, tr, sh, func(self int) (pmap.Pmap, error) {
		return pmap.NewBlocked(tr.TileCount(), p, self)
	}, 16)
	require.NoError(t, err)
	return stores
}

func TestStore_DenseClusterFindResolvesToOwner(t *testing.T) {
	unittest.MediumTest(t)
	const p = 2
	stores := buildDenseCluster(t, p)

	for _, st := range stores {
		for k := 0; k < 4; k++ {
			owner, err := st.Owner(k)
			require.NoError(t, err)
			if st.IsLocal(k) {
				require.NoError(t, st.SetScalar(k, owner))
			}
		}
	}

	for _, st := range stores {
		for k := 0; k < 4; k++ {
			owner, err := st.Owner(k)
			require.NoError(t, err)
			f := st.Find(k)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			v, err := f.Get(ctx)
			cancel()
			require.NoError(t, err)
			require.Equal(t, owner, v.At(0))
		}
	}
}

func TestStore_SparseShapeResolvesWithoutTraffic(t *testing.T) {
	unittest.SmallTest(t)
	tr := denseRange2x2(t)
	sh := shape.NewSparseShape(uint(tr.TileCount()), 0, 3)
	pm, err := pmap.NewBlocked(tr.TileCount(), 1, 0)
	require.NoError(t, err)
	w := worldsim.NewUniverse(1).Rank(0)

	st, err := tilestore.New[float64](w, tr, sh, pm, 4)
	require.NoError(t, err)

	// Ordinals 1 and 2 are structurally zero: find() must resolve
	// immediately to an empty tile without ever requiring a Set.
	for _, k := range []int{1, 2} {
		f := st.Find(k)
		require.True(t, f.Probe())
		v, err := f.Get(context.Background())
		require.NoError(t, err)
		require.True(t, v.IsEmpty())
	}
}

func TestStore_OneWriterInvariant(t *testing.T) {
	unittest.SmallTest(t)
	tr := denseRange2x2(t)
	sh := shape.NewDenseShape(uint(tr.TileCount()))
	pm, err := pmap.NewBlocked(tr.TileCount(), 1, 0)
	require.NoError(t, err)
	w := worldsim.NewUniverse(1).Rank(0)

	st, err := tilestore.New[int](w, tr, sh, pm, 4)
	require.NoError(t, err)

	require.NoError(t, st.SetScalar(0, 7))
	err = st.SetScalar(0, 9)
	require.ErrorIs(t, err, tilestore.ErrAlreadySet)
}

func TestStore_SetRejectsNonLocalOrdinal(t *testing.T) {
	unittest.SmallTest(t)
	tr := denseRange2x2(t)
	sh := shape.NewDenseShape(uint(tr.TileCount()))
	u := worldsim.NewUniverse(2)

	stores, err := tilestore.NewCluster[int](u, tr, sh, func(self int) (pmap.Pmap, error) {
		return pmap.NewBlocked(tr.TileCount(), 2, self)
	}, 4)
	require.NoError(t, err)

	// ordinal 0 belongs to rank 0 under Blocked(4,2): block size 2.
	rank1 := stores[1]
	require.False(t, rank1.IsLocal(0))
	err = rank1.SetScalar(0, 1)
	require.ErrorIs(t, err, tilestore.ErrNotOwner)
}

// TestStore_FindBeforeSetRace matches scenario S6: a remote find() arrives
// before the owner has called Set, and must still resolve once Set happens.
func TestStore_FindBeforeSetRace(t *testing.T) {
	unittest.MediumTest(t)
	tr := denseRange2x2(t)
	sh := shape.NewDenseShape(uint(tr.TileCount()))
	u := worldsim.NewUniverse(2)

	stores, err := tilestore.NewCluster[int](u, tr, sh, func(self int) (pmap.Pmap, error) {
		return pmap.NewBlocked(tr.TileCount(), 2, self)
	}, 4)
	require.NoError(t, err)

	requester, owner := stores[0], stores[1]
	var ordinal int
	for k := 0; k < 4; k++ {
		if owner.IsLocal(k) {
			ordinal = k
			break
		}
	}

	f := requester.Find(ordinal)
	require.False(t, f.Probe())

	go func() {
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, owner.SetScalar(ordinal, 42))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := f.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 42, v.At(0))
}

// TestStore_FindBeforeProcessPendingRace covers the construction-race case
// where an unset ordinal is finalized absent by process_pending rather than
// ever being set.
func TestStore_FindBeforeProcessPendingRace(t *testing.T) {
	unittest.MediumTest(t)
	tr := denseRange2x2(t)
	sh := shape.NewDenseShape(uint(tr.TileCount()))
	u := worldsim.NewUniverse(2)

	stores, err := tilestore.NewCluster[int](u, tr, sh, func(self int) (pmap.Pmap, error) {
		return pmap.NewBlocked(tr.TileCount(), 2, self)
	}, 4)
	require.NoError(t, err)

	requester, owner := stores[0], stores[1]
	var ordinal int
	for k := 0; k < 4; k++ {
		if owner.IsLocal(k) {
			ordinal = k
			break
		}
	}

	f := requester.Find(ordinal)

	go func() {
		time.Sleep(10 * time.Millisecond)
		owner.ProcessPending()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := f.Get(ctx)
	require.NoError(t, err)
	require.True(t, v.IsEmpty())

	// Set() after finalization must now be an invariant violation.
	err = owner.SetScalar(ordinal, 1)
	require.ErrorIs(t, err, tilestore.ErrInvariantViolation)
}

func TestStore_ProcessPendingIsIdempotent(t *testing.T) {
	unittest.SmallTest(t)
	tr := denseRange2x2(t)
	sh := shape.NewDenseShape(uint(tr.TileCount()))
	pm, err := pmap.NewBlocked(tr.TileCount(), 1, 0)
	require.NoError(t, err)
	w := worldsim.NewUniverse(1).Rank(0)

	st, err := tilestore.New[int](w, tr, sh, pm, 4)
	require.NoError(t, err)

	require.NoError(t, st.SetScalar(0, 5))
	st.ProcessPending()
	st.ProcessPending() // must not panic or re-finalize ordinal 0

	f := st.Find(0)
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, v.At(0))
}

func TestStore_LocalSetIsAscendingAndExhaustive(t *testing.T) {
	unittest.SmallTest(t)
	tr := denseRange2x2(t)
	sh := shape.NewDenseShape(uint(tr.TileCount()))
	pm, err := pmap.NewBlocked(tr.TileCount(), 1, 0)
	require.NoError(t, err)
	w := worldsim.NewUniverse(1).Rank(0)

	st, err := tilestore.New[int](w, tr, sh, pm, 4)
	require.NoError(t, err)

	for _, k := range []int{3, 1, 0, 2} {
		require.NoError(t, st.SetScalar(k, k*10))
	}
	st.ProcessPending()

	require.Equal(t, []int{0, 1, 2, 3}, st.LocalSet())
}

func TestStore_Reduce(t *testing.T) {
	unittest.SmallTest(t)
	tr := denseRange2x2(t)
	sh := shape.NewDenseShape(uint(tr.TileCount()))
	pm, err := pmap.NewBlocked(tr.TileCount(), 1, 0)
	require.NoError(t, err)
	w := worldsim.NewUniverse(1).Rank(0)

	st, err := tilestore.New[int](w, tr, sh, pm, 4)
	require.NoError(t, err)

	rng, err := tr.TileRange(tiledrange.TileIndex{0, 0})
	require.NoError(t, err)
	a, err := tile.FromSlice[int](rng, []int{1, 2, 3, 4})
	require.NoError(t, err)
	b, err := tile.FromSlice[int](rng, []int{10, 20, 30, 40})
	require.NoError(t, err)

	err = st.Reduce(0, []tile.Tile[int]{a, b}, 0, func(acc, v int) int { return acc + v })
	require.NoError(t, err)

	f := st.Find(0)
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{11, 22, 33, 44}, v.Data())

	// A second Reduce on the same ordinal is still just a Set and must hit
	// the one-writer invariant.
	err = st.Reduce(0, []tile.Tile[int]{a}, 0, func(acc, v int) int { return acc + v })
	require.ErrorIs(t, err, tilestore.ErrAlreadySet)
}

// TestStore_ClusterRegisterFenceProcessPending drives the collective
// lifecycle directly through worldsim: every rank registers its local
// tiles concurrently, then blocks on the shared Universe's Fence() before
// any rank calls ProcessPending, then every rank resolves every ordinal —
// including ordinals owned by other ranks, which must cross the simulated
// RPC transport via worldsim.RemoteInvoke rather than a direct call.
func TestStore_ClusterRegisterFenceProcessPending(t *testing.T) {
	unittest.MediumTest(t)
	const p = 4
	tr := denseRange2x2(t)
	sh := shape.NewDenseShape(uint(tr.TileCount()))
	u := worldsim.NewUniverse(p)

	stores, err := tilestore.NewCluster[int](u, tr, sh, func(self int) (pmap.Pmap, error) {
		return pmap.NewBlocked(tr.TileCount(), p, self)
	}, 16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for r := 0; r < p; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := stores[r]
			for k := 0; k < tr.TileCount(); k++ {
				if st.IsLocal(k) {
					require.NoError(t, st.SetScalar(k, r*100))
				}
			}
			// Collective fence: no rank proceeds to ProcessPending until
			// every rank has finished registering its local tiles.
			u.Rank(r).Fence()
			st.ProcessPending()
		}()
	}
	wg.Wait()

	for r, st := range stores {
		for k := 0; k < tr.TileCount(); k++ {
			owner, err := st.Owner(k)
			require.NoError(t, err)
			f := st.Find(k)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			v, err := f.Get(ctx)
			cancel()
			require.NoError(t, err, "rank %d resolving ordinal %d", r, k)
			require.Equal(t, owner*100, v.At(0))
		}
	}
}

func TestStore_NewRejectsShapeMismatch(t *testing.T) {
	unittest.SmallTest(t)
	tr := denseRange2x2(t)
	sh := shape.NewDenseShape(uint(tr.TileCount()) + 1)
	pm, err := pmap.NewBlocked(tr.TileCount(), 1, 0)
	require.NoError(t, err)
	w := worldsim.NewUniverse(1).Rank(0)

	_, err = tilestore.New[int](w, tr, sh, pm, 4)
	require.ErrorIs(t, err, tilestore.ErrShapeMismatch)
}
