package ranking

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// SimilarityMatrix holds item x item cosine similarities. It is square,
// symmetric, clamped to [0,1] and has a unit diagonal, including for items
// whose vector is all zero.
type SimilarityMatrix struct {
	n    int
	sims *mat.SymDense
}

// NewSimilarityMatrix computes X·Xᵀ over the L2-normalized rows of vs.
func NewSimilarityMatrix(vs *VectorSpace) *SimilarityMatrix {
	n := vs.Len()
	sm := &SimilarityMatrix{n: n}
	if n == 0 {
		return sm
	}
	sm.sims = mat.NewSymDense(n, nil)

	x := vs.Matrix()
	if x == nil {
		for i := 0; i < n; i++ {
			sm.sims.SetSym(i, i, 1)
		}
		return sm
	}

	var gram mat.Dense
	gram.Mul(x, x.T())
	for i := 0; i < n; i++ {
		sm.sims.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			sm.sims.SetSym(i, j, clamp01(gram.At(i, j)))
		}
	}
	return sm
}

// Len returns the number of items.
func (sm *SimilarityMatrix) Len() int {
	return sm.n
}

// At returns sim(i, j).
func (sm *SimilarityMatrix) At(i, j int) float64 {
	return sm.sims.At(i, j)
}

// Neighborhood returns Q(p): every index j with sim(p,j) >= threshold, in
// catalog order. p is always included.
func (sm *SimilarityMatrix) Neighborhood(p int, threshold float64) []int {
	q := make([]int, 0, 4)
	for j := 0; j < sm.n; j++ {
		if j == p || sm.At(p, j) >= threshold {
			q = append(q, j)
		}
	}
	return q
}

// Neighborhoods computes Q(p) for every item.
func (sm *SimilarityMatrix) Neighborhoods(threshold float64) [][]int {
	out := make([][]int, sm.n)
	for p := 0; p < sm.n; p++ {
		out[p] = sm.Neighborhood(p, threshold)
	}
	return out
}

// RankedNeighbors returns Q(p) without p, ordered by similarity descending
// with ties in catalog order.
func (sm *SimilarityMatrix) RankedNeighbors(p int, q []int) []int {
	out := make([]int, 0, len(q))
	for _, j := range q {
		if j != p {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return sm.At(p, out[a]) > sm.At(p, out[b])
	})
	return out
}
