package tile

import "go.tiledarray.dev/core/go/skerr"

// The functions below are float64 reference loops standing in for
// externally-supplied BLAS-level kernels (GEMM-style contraction,
// AXPY-style element-wise ops, stride-based permutation). They exist so
// the store layer has something concrete to call in tests; they are not a
// statement about kernel performance.

// Add computes element-wise a+b. Both tiles must share the same range.
func Add(a, b Tile[float64]) (Tile[float64], error) {
	if a.Volume() != b.Volume() {
		return Tile[float64]{}, skerr.Fmt("tile: Add operands have volumes %d and %d", a.Volume(), b.Volume())
	}
	out := make([]float64, len(a.data))
	for i := range out {
		out[i] = a.data[i] + b.data[i]
	}
	return Tile[float64]{rng: a.rng, data: out}, nil
}

// Hadamard computes the element-wise product a⊙b.
func Hadamard(a, b Tile[float64]) (Tile[float64], error) {
	if a.Volume() != b.Volume() {
		return Tile[float64]{}, skerr.Fmt("tile: Hadamard operands have volumes %d and %d", a.Volume(), b.Volume())
	}
	out := make([]float64, len(a.data))
	for i := range out {
		out[i] = a.data[i] * b.data[i]
	}
	return Tile[float64]{rng: a.rng, data: out}, nil
}

// Contract computes a rank-2 matrix contraction C[i,j] = sum_k A[i,k]*B[k,j]
// for 2-D tiles laid out row-major. A reference GEMM stand-in, O(n^3).
func Contract(a Tile[float64], ni, nk int, b Tile[float64], nkB, nj int) (Tile[float64], error) {
	if nk != nkB {
		return Tile[float64]{}, skerr.Fmt("tile: Contract inner dimensions disagree: %d vs %d", nk, nkB)
	}
	if a.Volume() != int64(ni*nk) {
		return Tile[float64]{}, skerr.Fmt("tile: operand A has volume %d, want %d", a.Volume(), ni*nk)
	}
	if b.Volume() != int64(nk*nj) {
		return Tile[float64]{}, skerr.Fmt("tile: operand B has volume %d, want %d", b.Volume(), nk*nj)
	}
	out := make([]float64, ni*nj)
	for i := 0; i < ni; i++ {
		for k := 0; k < nk; k++ {
			av := a.data[i*nk+k]
			if av == 0 {
				continue
			}
			for j := 0; j < nj; j++ {
				out[i*nj+j] += av * b.data[k*nj+j]
			}
		}
	}
	return Tile[float64]{data: out}, nil
}

// Permute2D transposes a row-major ni×nj tile into an nj×ni tile.
func Permute2D(a Tile[float64], ni, nj int) (Tile[float64], error) {
	if a.Volume() != int64(ni*nj) {
		return Tile[float64]{}, skerr.Fmt("tile: Permute2D operand has volume %d, want %d", a.Volume(), ni*nj)
	}
	out := make([]float64, ni*nj)
	for i := 0; i < ni; i++ {
		for j := 0; j < nj; j++ {
			out[j*ni+i] = a.data[i*nj+j]
		}
	}
	return Tile[float64]{data: out}, nil
}
