package ranking

import (
	"fmt"
	"time"

	"github.com/temcen/glowrank/pkg/models"
)

// Index is an immutable fitted snapshot of the catalog: corpus, TF-IDF
// space, similarity matrix and neighborhoods. It is safe to share across
// concurrent ranking runs.
type Index struct {
	version       string
	items         []models.Item
	positions     map[string]int
	corpus        *Corpus
	space         *VectorSpace
	sims          *SimilarityMatrix
	neighborhoods [][]int
	penaltyTokens []*OrderedSet
	tokenizer     Tokenizer
	threshold     float64
	builtAt       time.Time
	buildDuration time.Duration
}

func newIndex(items []models.Item, version string, tok Tokenizer, threshold float64, sublinear bool) (*Index, error) {
	start := time.Now()
	snapshot := make([]models.Item, len(items))
	copy(snapshot, items)

	positions := make(map[string]int, len(snapshot))
	for i := range snapshot {
		id := snapshot[i].ID
		if _, dup := positions[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, id)
		}
		positions[id] = i
	}

	idx := &Index{
		version:   version,
		items:     snapshot,
		positions: positions,
		tokenizer: tok,
		threshold: threshold,
	}
	idx.corpus = BuildCorpus(snapshot, tok)
	idx.space = FitVectorSpace(idx.corpus, tok, sublinear)
	idx.sims = NewSimilarityMatrix(idx.space)
	idx.neighborhoods = idx.sims.Neighborhoods(threshold)
	idx.penaltyTokens = make([]*OrderedSet, len(snapshot))
	for i := range snapshot {
		idx.penaltyTokens[i] = PenaltyTokens(&snapshot[i], tok)
	}
	idx.builtAt = time.Now().UTC()
	idx.buildDuration = time.Since(start)
	return idx, nil
}

// Version identifies the catalog snapshot the index was fitted on.
func (idx *Index) Version() string { return idx.version }

// Len returns the number of indexed items.
func (idx *Index) Len() int { return len(idx.items) }

// Items returns the indexed items in catalog order. Callers must not
// modify them.
func (idx *Index) Items() []models.Item { return idx.items }

// Position returns the catalog position of an item id.
func (idx *Index) Position(id string) (int, bool) {
	p, ok := idx.positions[id]
	return p, ok
}

// Item returns the item with id.
func (idx *Index) Item(id string) (*models.Item, bool) {
	p, ok := idx.positions[id]
	if !ok {
		return nil, false
	}
	return &idx.items[p], true
}

// Space returns the fitted vector space.
func (idx *Index) Space() *VectorSpace { return idx.space }

// Similarity returns the similarity matrix.
func (idx *Index) Similarity() *SimilarityMatrix { return idx.sims }

// Neighborhood returns Q(p) for catalog position p.
func (idx *Index) Neighborhood(p int) []int { return idx.neighborhoods[p] }

// TokenSource reports which token source was used for position p.
func (idx *Index) TokenSource(p int) TokenSourceKind { return idx.corpus.Sources[p] }

// Similar returns up to limit neighbors of id, most similar first. A
// non-positive limit returns all of them.
func (idx *Index) Similar(id string, limit int) ([]models.Neighbor, error) {
	p, ok := idx.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	ranked := idx.sims.RankedNeighbors(p, idx.neighborhoods[p])
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]models.Neighbor, len(ranked))
	for i, j := range ranked {
		out[i] = models.Neighbor{ItemID: idx.items[j].ID, Similarity: idx.sims.At(p, j)}
	}
	return out, nil
}

// TokenBag returns a freshly tokenized bag for position p, suitable for
// persisting as the item's precomputed tokens.
func (idx *Index) TokenBag(p int) *models.TokenBag {
	return BuildTokenBag(&idx.items[p], idx.tokenizer)
}

// Summary describes the index.
func (idx *Index) Summary() models.IndexSummary {
	links := 0
	for _, q := range idx.neighborhoods {
		links += len(q) - 1
	}
	return models.IndexSummary{
		Version:       idx.version,
		Items:         idx.Len(),
		Vocabulary:    idx.space.Dim(),
		NeighborLinks: links,
		Threshold:     idx.threshold,
		BuiltAt:       idx.builtAt,
		BuildDuration: idx.buildDuration.String(),
	}
}
