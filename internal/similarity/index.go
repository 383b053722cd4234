package similarity

import (
	"container/heap"
	"math"
	"sort"
)

// DefaultTopK caps candidate retrieval per card in the approximate backend.
const DefaultTopK = 100

// Pair is a candidate near-duplicate: two vector indexes and their cosine
// similarity. A < B always, and each unordered pair appears at most once.
type Pair struct {
	A     int
	B     int
	Score float64
}

// FindPairs is the exact backend: brute-force comparison of every vector
// pair, keeping those at or above threshold, sorted by descending score.
func FindPairs(vectors [][]float32, threshold float64) []Pair {
	var pairs []Pair
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			score := Cosine(vectors[i], vectors[j])
			if score >= threshold {
				pairs = append(pairs, Pair{A: i, B: j, Score: score})
			}
		}
	}
	sortPairs(pairs)
	return pairs
}

// Cosine returns the cosine similarity of two vectors. Mismatched lengths
// and zero vectors score 0 rather than erroring; they can only come from a
// broken provider response and score as "not similar".
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Index is the approximate backend for large decks. Vectors are
// L2-normalized at insert so inner product equals cosine, and candidate
// retrieval is capped at each vector's K nearest neighbors. A true
// duplicate outside a card's top-K can be missed on very large,
// low-clustering decks; K trades recall for scan cost and is a tunable,
// not a correctness guarantee.
type Index struct {
	k       int
	vectors [][]float32
}

// NewIndex creates an approximate index with the given per-vector neighbor
// cap. Non-positive k falls back to DefaultTopK.
func NewIndex(k int) *Index {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Index{k: k}
}

// Add inserts a vector. Its index is its insertion position.
func (ix *Index) Add(vec []float32) {
	ix.vectors = append(ix.vectors, normalize(vec))
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// FindPairs returns every unordered pair where one side ranks within the
// other's top-K neighbors and the similarity clears threshold, sorted by
// descending score. Symmetric duplicates are collapsed regardless of which
// side retrieved the other.
func (ix *Index) FindPairs(threshold float64) []Pair {
	seen := make(map[[2]int]struct{})
	var pairs []Pair

	for i, v := range ix.vectors {
		for _, n := range ix.nearest(i, v) {
			if n.score < threshold {
				continue
			}
			key := [2]int{min(i, n.index), max(i, n.index)}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pairs = append(pairs, Pair{A: key[0], B: key[1], Score: n.score})
		}
	}

	sortPairs(pairs)
	return pairs
}

// nearest scans all other vectors keeping the top-K by inner product.
func (ix *Index) nearest(self int, v []float32) []neighbor {
	h := &neighborHeap{}
	for j, w := range ix.vectors {
		if j == self {
			continue
		}
		score := dot(v, w)
		if h.Len() < ix.k {
			heap.Push(h, neighbor{index: j, score: score})
		} else if score > (*h)[0].score {
			(*h)[0] = neighbor{index: j, score: score}
			heap.Fix(h, 0)
		}
	}
	return *h
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	n := math.Sqrt(sum)

	out := make([]float32, len(v))
	if n == 0 {
		return out
	}
	for i, f := range v {
		out[i] = float32(float64(f) / n)
	}
	return out
}

type neighbor struct {
	index int
	score float64
}

// neighborHeap is a min-heap by score, used to keep the best K while
// scanning.
type neighborHeap []neighbor

func (h neighborHeap) Len() int            { return len(h) }
func (h neighborHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h neighborHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(x interface{}) { *h = append(*h, x.(neighbor)) }
func (h *neighborHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
