// Package pmap implements the ProcessMap (Pmap) abstraction: a pure,
// deterministic function from a tile ordinal to its owning process, plus
// the set of ordinals owned by the current process.
package pmap

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"go.tiledarray.dev/core/go/skerr"
)

// Pmap assigns exactly one owning process to every tile ordinal in
// [0, Size). It is pure: owner(k) is deterministic for the lifetime of the
// map given (WorldSize, Size, Seed).
type Pmap interface {
	// Owner returns the rank that owns ordinal k.
	Owner(k int) (int, error)
	// IsLocal reports whether ordinal k is owned by Self.
	IsLocal(k int) bool
	// Local returns every ordinal owned by Self, in ascending order.
	Local() []int
	// Size returns the number of tile ordinals this map covers.
	Size() int
	// WorldSize returns the number of processes.
	WorldSize() int
	// Self returns this process's rank.
	Self() int
}

func validateArgs(size, worldSize, self int) error {
	if size < 0 {
		return skerr.Fmt("pmap: size must be >= 0, got %d", size)
	}
	if worldSize <= 0 {
		return skerr.Fmt("pmap: worldSize must be > 0, got %d", worldSize)
	}
	if self < 0 || self >= worldSize {
		return skerr.Fmt("pmap: self=%d not in [0,%d)", self, worldSize)
	}
	return nil
}

func computeLocal(size int, owner func(int) int, self int) []int {
	var local []int
	for k := 0; k < size; k++ {
		if owner(k) == self {
			local = append(local, k)
		}
	}
	return local
}

// ---- Blocked ----

// Blocked assigns each process a contiguous run of ceil(size/P) ordinals.
type Blocked struct {
	size, worldSize, self, blockSize int
	local                            []int
}

// NewBlocked builds a Blocked Pmap over `size` ordinals across `worldSize`
// processes, for the given `self` rank.
func NewBlocked(size, worldSize, self int) (*Blocked, error) {
	if err := validateArgs(size, worldSize, self); err != nil {
		return nil, err
	}
	blockSize := (size + worldSize - 1) / worldSize
	if blockSize == 0 {
		blockSize = 1
	}
	b := &Blocked{size: size, worldSize: worldSize, self: self, blockSize: blockSize}
	b.local = computeLocal(size, func(k int) int { return k / blockSize }, self)
	return b, nil
}

func (b *Blocked) Owner(k int) (int, error) {
	if k < 0 || k >= b.size {
		return 0, skerr.Fmt("pmap: ordinal %d out of range [0,%d)", k, b.size)
	}
	return k / b.blockSize, nil
}
func (b *Blocked) IsLocal(k int) bool { o, err := b.Owner(k); return err == nil && o == b.self }
func (b *Blocked) Local() []int       { return b.local }
func (b *Blocked) Size() int          { return b.size }
func (b *Blocked) WorldSize() int     { return b.worldSize }
func (b *Blocked) Self() int          { return b.self }

// ---- Cyclic (2-D block-cyclic) ----

// Cyclic distributes an m-row-by-n-column tile grid across a Pr-by-Pc
// process grid: owner(i,j) = (i mod Pr)*Pc + (j mod Pc), where (i,j) is the
// row-major decomposition of ordinal k = i*n+j.
type Cyclic struct {
	m, n, pr, pc, worldSize, self int
	local                         []int
}

// NewCyclic builds a Cyclic Pmap for an m×n tile grid over a Pr×Pc process
// grid. Requires Pr*Pc == worldSize.
func NewCyclic(m, n, pr, pc, self int) (*Cyclic, error) {
	worldSize := pr * pc
	if err := validateArgs(m*n, worldSize, self); err != nil {
		return nil, err
	}
	if m <= 0 || n <= 0 {
		return nil, skerr.Fmt("pmap: cyclic grid dims must be positive, got m=%d n=%d", m, n)
	}
	c := &Cyclic{m: m, n: n, pr: pr, pc: pc, worldSize: worldSize, self: self}
	c.local = computeLocal(m*n, func(k int) int { return c.ownerOf(k) }, self)
	return c, nil
}

func (c *Cyclic) ownerOf(k int) int {
	i, j := k/c.n, k%c.n
	return (i%c.pr)*c.pc + (j % c.pc)
}

func (c *Cyclic) Owner(k int) (int, error) {
	if k < 0 || k >= c.m*c.n {
		return 0, skerr.Fmt("pmap: ordinal %d out of range [0,%d)", k, c.m*c.n)
	}
	return c.ownerOf(k), nil
}
func (c *Cyclic) IsLocal(k int) bool { o, err := c.Owner(k); return err == nil && o == c.self }
func (c *Cyclic) Local() []int       { return c.local }
func (c *Cyclic) Size() int          { return c.m * c.n }
func (c *Cyclic) WorldSize() int     { return c.worldSize }
func (c *Cyclic) Self() int          { return c.self }

// ---- Hashed ----

// Hashed assigns owner(k) = hash(seed, k) mod P, for randomized
// load-balancing. Uses xxhash for a fast, well-distributed, seedable hash.
type Hashed struct {
	size, worldSize, self int
	seed                  int64
	local                 []int
}

// NewHashed builds a Hashed Pmap with the given seed.
func NewHashed(size, worldSize, self int, seed int64) (*Hashed, error) {
	if err := validateArgs(size, worldSize, self); err != nil {
		return nil, err
	}
	h := &Hashed{size: size, worldSize: worldSize, self: self, seed: seed}
	h.local = computeLocal(size, h.ownerOf, self)
	return h, nil
}

func (h *Hashed) ownerOf(k int) int {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(h.seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(k))
	sum := xxhash.Sum64(buf[:])
	return int(sum % uint64(h.worldSize))
}

func (h *Hashed) Owner(k int) (int, error) {
	if k < 0 || k >= h.size {
		return 0, skerr.Fmt("pmap: ordinal %d out of range [0,%d)", k, h.size)
	}
	return h.ownerOf(k), nil
}
func (h *Hashed) IsLocal(k int) bool { o, err := h.Owner(k); return err == nil && o == h.self }
func (h *Hashed) Local() []int       { return h.local }
func (h *Hashed) Size() int          { return h.size }
func (h *Hashed) WorldSize() int     { return h.worldSize }
func (h *Hashed) Self() int          { return h.self }
func (h *Hashed) Seed() int64        { return h.seed }

// ---- Replicated ----

// Replicated assigns every ordinal to every process: owner(k) == self,
// always. Used for small broadcast operands that every rank keeps a full
// local copy of.
type Replicated struct {
	size, worldSize, self int
	local                 []int
}

// NewReplicated builds a Replicated Pmap: every ordinal in [0,size) is
// local to every process.
func NewReplicated(size, worldSize, self int) (*Replicated, error) {
	if err := validateArgs(size, worldSize, self); err != nil {
		return nil, err
	}
	r := &Replicated{size: size, worldSize: worldSize, self: self}
	r.local = make([]int, size)
	for k := range r.local {
		r.local[k] = k
	}
	return r, nil
}

func (r *Replicated) Owner(k int) (int, error) {
	if k < 0 || k >= r.size {
		return 0, skerr.Fmt("pmap: ordinal %d out of range [0,%d)", k, r.size)
	}
	return r.self, nil
}
func (r *Replicated) IsLocal(k int) bool { return k >= 0 && k < r.size }
func (r *Replicated) Local() []int       { return r.local }
func (r *Replicated) Size() int          { return r.size }
func (r *Replicated) WorldSize() int     { return r.worldSize }
func (r *Replicated) Self() int          { return r.self }
