package worldsim

import (
	"math/rand"
	"sync"
)

// Universe is a fixed-size collective of ranks that can fence together and
// remote-invoke one another. It stands in for a real MPI world.
type Universe struct {
	size    int
	ranks   []*World
	barrier *cyclicBarrier
}

// NewUniverse builds a Universe of `size` ranks.
func NewUniverse(size int) *Universe {
	u := &Universe{size: size, barrier: newCyclicBarrier(size)}
	u.ranks = make([]*World, size)
	for i := 0; i < size; i++ {
		u.ranks[i] = &World{rank: i, universe: u}
	}
	return u
}

// Rank returns the World handle for rank i.
func (u *Universe) Rank(i int) *World { return u.ranks[i] }

// Size returns the number of ranks in the universe.
func (u *Universe) Size() int { return u.size }

// World is one process's view of the Universe: its own rank plus
// operations that reach other ranks.
type World struct {
	rank     int
	universe *Universe
}

// Rank returns this process's rank, in [0, Size()).
func (w *World) Rank() int { return w.rank }

// Size returns the number of ranks in the world.
func (w *World) Size() int { return w.universe.size }

// Fence blocks the calling goroutine until every rank in the universe has
// called Fence, a collective barrier matching a distributed `fence()`.
func (w *World) Fence() { w.universe.barrier.Wait() }

// Rand returns a process-local random source seeded deterministically from
// seed, so anything drawing from it behaves identically across repeated
// runs given the same seed.
func (w *World) Rand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Task schedules fn to run asynchronously on a new goroutine and returns a
// Future for its result. The caller never blocks here; it chooses whether
// to await the Future.
func Task[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		v, err := fn()
		f.Set(v, err)
	}()
	return f
}

// RemoteInvoke simulates sending fn to run on dest and returns a Future for
// its result, the way a real RPC layer would deliver REQ_TILE/REPLY_TILE.
// Because this is an in-process simulation, "sending" is simply running fn
// on a new goroutine; a real transport would serialize the request instead.
func RemoteInvoke[T any](dest *World, fn func(*World) (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		v, err := fn(dest)
		f.Set(v, err)
	}()
	return f
}

// cyclicBarrier is a reusable rendezvous point for exactly `n` parties,
// matching a collective fence()/barrier primitive.
type cyclicBarrier struct {
	n          int
	mu         sync.Mutex
	cond       *sync.Cond
	count      int
	generation int
}

func newCyclicBarrier(n int) *cyclicBarrier {
	b := &cyclicBarrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *cyclicBarrier) Wait() {
	b.mu.Lock()
	gen := b.generation
	b.count++
	if b.count == b.n {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	b.mu.Unlock()
}
