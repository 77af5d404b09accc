// Package tilestore implements the DistributedTileStore: an asynchronous,
// owner-authoritative mapping from tile ordinal to Tile, with at-most-once
// local construction, pending-request queueing, and remote pull
// resolution.
package tilestore

import (
	"context"
	"strconv"
	"sync"

	lru "github.com/golang/groupcache/lru"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"go.tiledarray.dev/core/go/pmap"
	"go.tiledarray.dev/core/go/shape"
	"go.tiledarray.dev/core/go/skerr"
	"go.tiledarray.dev/core/go/sklog"
	"go.tiledarray.dev/core/go/tile"
	"go.tiledarray.dev/core/go/tiledrange"
	"go.tiledarray.dev/core/go/util"
	"go.tiledarray.dev/core/go/worldsim"
)

// DefaultRemoteCacheCapacity bounds the number of remote tile replies kept
// per store when no explicit capacity is configured.
const DefaultRemoteCacheCapacity = 256

// cell is the per-ordinal resolution state: unset/set, the resolved value,
// and the single future (if any) that every concurrent local find(k) call
// for this ordinal is attached to — "the first caller creates it,
// subsequent ones receive the same handle". Mutations are guarded by the
// Store's CondMonitor keyed on the ordinal, giving per-cell locking
// without a single store-wide mutex.
type cell[T any] struct {
	set             bool
	finalizedAbsent bool // true if process_pending decided this cell is structurally absent
	value           tile.Tile[T]
	fut             *worldsim.Future[tile.Tile[T]] // lazily created, resolved exactly once
}

// Store is the DistributedTileStore for element type T. One Store exists
// per process per array; stores for the same array on different processes
// are linked via Bind so that remote find() can reach the owning process
// through worldsim.RemoteInvoke rather than a direct method call.
type Store[T any] struct {
	world *worldsim.World
	tr    tiledrange.TiledRange
	sh    shape.Shape
	pm    pmap.Pmap

	mapMu sync.Mutex // guards creation/lookup of entries in cells
	cells map[int]*cell[T]
	mon   *util.CondMonitor

	remoteFetch   singleflight.Group // coalesces concurrent RemoteInvoke launches for the same ordinal
	remoteMu      sync.Mutex
	remoteCache   *lru.Cache                            // ordinal -> tile.Tile[T], replies cached by the requester
	pendingRemote map[int]*worldsim.Future[tile.Tile[T]] // ordinal -> shared future for an in-flight remote fetch

	peersMu sync.RWMutex
	peers   []*Store[T] // one entry per rank, set once by Bind

	finalizedMu sync.Mutex
	finalized   bool
}

// New constructs a Store for one process. Use Bind afterward (or NewCluster
// for the common collective case) before calling find() for remote
// ordinals.
func New[T any](world *worldsim.World, tr tiledrange.TiledRange, sh shape.Shape, pm pmap.Pmap, cacheCapacity int) (*Store[T], error) {
	if uint(tr.TileCount()) != sh.TileCount() {
		return nil, skerr.Wrapf(ErrShapeMismatch, "TiledRange has %d tiles, Shape has %d", tr.TileCount(), sh.TileCount())
	}
	if pm.Size() != tr.TileCount() {
		return nil, skerr.Wrapf(ErrShapeMismatch, "TiledRange has %d tiles, Pmap covers %d", tr.TileCount(), pm.Size())
	}
	if cacheCapacity <= 0 {
		cacheCapacity = DefaultRemoteCacheCapacity
	}
	return &Store[T]{
		world:         world,
		tr:            tr,
		sh:            sh,
		pm:            pm,
		cells:         make(map[int]*cell[T]),
		mon:           util.NewCondMonitor(32),
		remoteCache:   lru.New(cacheCapacity),
		pendingRemote: make(map[int]*worldsim.Future[tile.Tile[T]]),
	}, nil
}

// Bind links this store to the full set of peer stores for the array, one
// per rank, so remote find() calls can reach the owning process directly.
// Collective: every process must call Bind with the same (complete) slice.
func (s *Store[T]) Bind(peers []*Store[T]) {
	s.peersMu.Lock()
	s.peers = peers
	s.peersMu.Unlock()
}

// NewCluster builds and binds one Store per rank of the universe: every
// process constructs an identical TiledRange/Shape and its own Pmap, then
// the stores are linked together.
func NewCluster[T any](u *worldsim.Universe, tr tiledrange.TiledRange, sh shape.Shape, pmFactory func(self int) (pmap.Pmap, error), cacheCapacity int) ([]*Store[T], error) {
	stores := make([]*Store[T], u.Size())
	var errs *multierror.Error
	for r := 0; r < u.Size(); r++ {
		pm, err := pmFactory(r)
		if err != nil {
			errs = multierror.Append(errs, skerr.Wrapf(err, "rank %d: building pmap", r))
			continue
		}
		st, err := New[T](u.Rank(r), tr, sh, pm, cacheCapacity)
		if err != nil {
			errs = multierror.Append(errs, skerr.Wrapf(err, "rank %d: building store", r))
			continue
		}
		stores[r] = st
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, skerr.Wrap(err)
	}
	for _, st := range stores {
		st.Bind(stores)
	}
	return stores, nil
}

// Owner returns the rank that owns ordinal k.
func (s *Store[T]) Owner(k int) (int, error) { return s.pm.Owner(k) }

// IsLocal reports whether ordinal k is owned by this process.
func (s *Store[T]) IsLocal(k int) bool { return s.pm.IsLocal(k) }

// IsZero reports whether ordinal k is structurally zero per this array's
// Shape.
func (s *Store[T]) IsZero(k int) bool { return s.sh.IsZero(uint(k)) }

func (s *Store[T]) getOrCreateCell(k int) *cell[T] {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	c, ok := s.cells[k]
	if !ok {
		c = &cell[T]{}
		s.cells[k] = c
	}
	return c
}

func (s *Store[T]) peerRank(rank int) *Store[T] {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	if s.peers == nil || rank < 0 || rank >= len(s.peers) {
		return nil
	}
	return s.peers[rank]
}

// peerWorld returns the World handle of the store bound at rank, so a
// remote fetch can be dispatched through worldsim.RemoteInvoke instead of
// calling the peer Store directly.
func (s *Store[T]) peerWorld(rank int) *worldsim.World {
	if peer := s.peerRank(rank); peer != nil {
		return peer.world
	}
	return nil
}

// Probe reports, without blocking, whether the local cell for k has been
// resolved. For a remote ordinal it reports whether a cached reply has
// already arrived.
func (s *Store[T]) Probe(k int) bool {
	if s.sh.IsZero(uint(k)) {
		return true
	}
	if s.pm.IsLocal(k) {
		s.mapMu.Lock()
		c, ok := s.cells[k]
		s.mapMu.Unlock()
		return ok && c.set
	}
	s.remoteMu.Lock()
	_, ok := s.remoteCache.Get(k)
	s.remoteMu.Unlock()
	return ok
}

// Find resolves ordinal k to a Future[Tile[T]]: structurally zero resolves
// immediately, a local set/unset ordinal attaches to its cell, and a remote
// ordinal is pulled from its owner. It never blocks the caller.
func (s *Store[T]) Find(k int) *worldsim.Future[tile.Tile[T]] {
	if s.sh.IsZero(uint(k)) {
		return worldsim.Resolved(tile.Empty[T]())
	}
	if s.pm.IsLocal(k) {
		return s.findLocal(k)
	}
	return s.findRemote(k)
}

// findLocal returns the cell's future, creating it on the first call for
// an unresolved ordinal: every concurrent caller for the same k receives
// the identical *Future handle rather than one each.
func (s *Store[T]) findLocal(k int) *worldsim.Future[tile.Tile[T]] {
	releaser := s.mon.Enter(int64(k))
	defer releaser.Release()

	c := s.getOrCreateCell(k)
	if c.set {
		return worldsim.Resolved(c.value)
	}
	if c.fut == nil {
		c.fut = worldsim.NewFuture[tile.Tile[T]]()
	}
	return c.fut
}

// findRemote returns the shared future for an in-flight fetch of ordinal
// k, launching exactly one worldsim.RemoteInvoke per key: the first caller
// creates and registers the future, every subsequent caller for the same k
// (while the fetch is outstanding) receives that same handle.
func (s *Store[T]) findRemote(k int) *worldsim.Future[tile.Tile[T]] {
	s.remoteMu.Lock()
	if cached, ok := s.remoteCache.Get(k); ok {
		s.remoteMu.Unlock()
		return worldsim.Resolved(cached.(tile.Tile[T]))
	}
	if f, ok := s.pendingRemote[k]; ok {
		s.remoteMu.Unlock()
		return f
	}
	f := worldsim.NewFuture[tile.Tile[T]]()
	s.pendingRemote[k] = f
	s.remoteMu.Unlock()

	go s.fetchRemote(k, f)
	return f
}

// fetchRemote drives the one outstanding REQ_TILE/REPLY_TILE round trip
// for ordinal k over worldsim.RemoteInvoke, then resolves f for every
// caller that was coalesced onto it.
func (s *Store[T]) fetchRemote(k int, f *worldsim.Future[tile.Tile[T]]) {
	result, err, _ := s.remoteFetch.Do(strconv.Itoa(k), func() (interface{}, error) {
		ownerRank, err := s.pm.Owner(k)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		ownerWorld := s.peerWorld(ownerRank)
		owner := s.peerRank(ownerRank)
		if ownerWorld == nil || owner == nil {
			return nil, skerr.Wrapf(ErrTransportError, "no peer bound for rank %d", ownerRank)
		}

		rf := worldsim.RemoteInvoke(ownerWorld, func(w *worldsim.World) ([]byte, error) {
			sklog.Debugf("tilestore: REQ_TILE(%d) -> rank %d", k, w.Rank())
			return owner.serveRequest(context.Background(), k)
		})
		wire, err := rf.Get(context.Background())
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		return decodeTile[T](wire)
	})

	s.remoteMu.Lock()
	delete(s.pendingRemote, k)
	s.remoteMu.Unlock()

	if err != nil {
		f.Set(tile.Tile[T]{}, skerr.Wrap(err))
		return
	}
	v := result.(tile.Tile[T])
	s.remoteMu.Lock()
	s.remoteCache.Add(k, v)
	s.remoteMu.Unlock()
	f.Set(v, nil)
}

// serveRequest is the owner's handler for an incoming REQ_TILE(k), invoked
// on the owner's World through worldsim.RemoteInvoke: it attaches to the
// same coalesced future findLocal would hand a local caller, blocks until
// it resolves (by Set or process_pending finalizing it absent), and
// encodes the reply across the gob-encoded REPLY_TILE boundary.
func (s *Store[T]) serveRequest(ctx context.Context, k int) ([]byte, error) {
	f := s.findLocal(k)
	v, err := f.Get(ctx)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return encodeTile(v)
}

// Set publishes tile at ordinal k. Asserts IsLocal(k) and that the ordinal
// is unset; resolves the cell's shared future, which fulfils every local
// and remote caller coalesced onto it.
func (s *Store[T]) Set(k int, t tile.Tile[T]) error {
	if !s.pm.IsLocal(k) {
		return skerr.Wrapf(ErrNotOwner, "ordinal %d is owned by rank %d, not %d", k, mustOwner(s, k), s.pm.Self())
	}
	releaser := s.mon.Enter(int64(k))
	c := s.getOrCreateCell(k)
	if c.set {
		finalizedAbsent := c.finalizedAbsent
		releaser.Release()
		if finalizedAbsent {
			return skerr.Wrapf(ErrInvariantViolation, "ordinal %d: set called after process_pending finalized it absent", k)
		}
		return skerr.Wrapf(ErrAlreadySet, "ordinal %d", k)
	}
	c.value = t
	c.set = true
	fut := c.fut
	c.fut = nil
	releaser.Release()

	if fut != nil {
		fut.Set(t, nil)
	}
	return nil
}

func mustOwner[T any](s *Store[T], k int) int {
	o, err := s.pm.Owner(k)
	if err != nil {
		return -1
	}
	return o
}

// SetFromIterator constructs a Tile over k's element range by repeatedly
// calling next, then Sets it.
func (s *Store[T]) SetFromIterator(k int, next func() T) error {
	r, err := s.elementRangeOf(k)
	if err != nil {
		return err
	}
	return s.Set(k, tile.FromIterator[T](r, next))
}

// SetScalar constructs a Tile over k's element range filled with value,
// then Sets it.
func (s *Store[T]) SetScalar(k int, value T) error {
	r, err := s.elementRangeOf(k)
	if err != nil {
		return err
	}
	return s.Set(k, tile.Broadcast[T](r, value))
}

// Reduce is sugar over Set: it accumulates every contribution into a local
// staging buffer with combine (seeded at zero) and performs exactly one
// final Set (see DESIGN.md for why accumulate-then-single-set was chosen
// over incremental partial sets).
func (s *Store[T]) Reduce(k int, contributions []tile.Tile[T], zero T, combine func(acc, v T) T) error {
	if len(contributions) == 0 {
		return s.SetScalar(k, zero)
	}
	n := contributions[0].Volume()
	staging := make([]T, n)
	for i := range staging {
		staging[i] = zero
	}
	for _, c := range contributions {
		data := c.Data()
		if int64(len(data)) != n {
			return skerr.Fmt("tilestore: Reduce contribution has volume %d, want %d", len(data), n)
		}
		for i, v := range data {
			staging[i] = combine(staging[i], v)
		}
	}
	t, err := tile.FromSlice[T](contributions[0].Range(), staging)
	if err != nil {
		return skerr.Wrap(err)
	}
	return s.Set(k, t)
}

func (s *Store[T]) elementRangeOf(k int) (tiledrange.ElementRange, error) {
	idx, err := s.tr.TileIndexOf(k)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return s.tr.TileRange(idx)
}

// ProcessPending sweeps every locally-owned, non-zero ordinal that is still
// unset, marking it structurally absent (an empty Tile) and fulfilling its
// pending queue. Idempotent: calling it again is a no-op for ordinals
// already set or already finalized (see Open Questions in DESIGN.md).
func (s *Store[T]) ProcessPending() {
	s.finalizedMu.Lock()
	if s.finalized {
		s.finalizedMu.Unlock()
		return
	}
	s.finalized = true
	s.finalizedMu.Unlock()

	var g errgroup.Group
	for _, k := range s.pm.Local() {
		if s.sh.IsZero(uint(k)) {
			continue
		}
		k := k
		g.Go(func() error {
			s.finalizeAbsent(k)
			return nil
		})
	}
	_ = g.Wait() // finalizeAbsent never errors; fan-out is purely for concurrency
}

func (s *Store[T]) finalizeAbsent(k int) {
	releaser := s.mon.Enter(int64(k))
	c := s.getOrCreateCell(k)
	if c.set {
		releaser.Release()
		return
	}
	empty := tile.Empty[T]()
	c.value = empty
	c.set = true
	c.finalizedAbsent = true
	fut := c.fut
	c.fut = nil
	releaser.Release()

	if fut != nil {
		fut.Set(empty, nil)
	}
}

// LocalSet returns, in ascending order, every ordinal that is both owned by
// this process and currently set — a point-in-time snapshot; concurrent
// Set calls are not guaranteed to appear.
func (s *Store[T]) LocalSet() []int {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	out := make([]int, 0, len(s.cells))
	for k, c := range s.cells {
		if c.set {
			out = append(out, k)
		}
	}
	sortInts(out)
	return out
}

func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}
