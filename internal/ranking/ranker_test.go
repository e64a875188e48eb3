package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/glowrank/pkg/models"
)

func candidatesFor(items []models.Item, finals ...float64) []Candidate {
	out := make([]Candidate, len(items))
	for i := range items {
		out[i] = Candidate{Position: i, Item: &items[i], Final: finals[i]}
	}
	return out
}

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Item.ID
	}
	return out
}

func TestFiltersFor(t *testing.T) {
	assert.Nil(t, FiltersFor(nil))
	assert.Empty(t, FiltersFor(&models.UserContext{BrandPreference: models.NoBrandPreference}))

	filters := FiltersFor(&models.UserContext{BrandPreference: "Acme", InStockOnly: true})
	require.Len(t, filters, 2)
	assert.Equal(t, []string{"brand", "in_stock"}, filterNames(filters))
}

func TestRanker_Rank(t *testing.T) {
	items := []models.Item{
		{ID: "a", Brand: "Acme", Stock: 1},
		{ID: "b", Brand: "Beta", Stock: 4},
		{ID: "c", Brand: "Acme", Stock: 0},
		{ID: "d", Brand: "Acme", Stock: 2},
	}
	var r Ranker

	t.Run("sorted descending with stable ties", func(t *testing.T) {
		ranked, fallback := r.Rank(candidatesFor(items, 0.5, 0.9, 0.5, 0.1), nil)
		assert.False(t, fallback)
		assert.Equal(t, []string{"b", "a", "c", "d"}, ids(ranked))
	})

	t.Run("brand filter", func(t *testing.T) {
		ranked, fallback := r.Rank(candidatesFor(items, 0.5, 0.9, 0.5, 0.1), []HardFilter{BrandFilter{Brand: "Acme"}})
		assert.False(t, fallback)
		assert.Equal(t, []string{"a", "c", "d"}, ids(ranked))
	})

	t.Run("brand match is exact", func(t *testing.T) {
		ranked, fallback := r.Rank(candidatesFor(items, 0.5, 0.9, 0.5, 0.1), []HardFilter{BrandFilter{Brand: "acme"}})
		assert.True(t, fallback)
		assert.Len(t, ranked, 4)
	})

	t.Run("in stock filter", func(t *testing.T) {
		ranked, _ := r.Rank(candidatesFor(items, 0.5, 0.9, 0.5, 0.1), []HardFilter{InStockFilter{}})
		assert.Equal(t, []string{"b", "a", "d"}, ids(ranked))
	})

	t.Run("filters combine", func(t *testing.T) {
		ranked, _ := r.Rank(candidatesFor(items, 0.5, 0.9, 0.5, 0.1), []HardFilter{BrandFilter{Brand: "Acme"}, InStockFilter{}})
		assert.Equal(t, []string{"a", "d"}, ids(ranked))
	})

	t.Run("empty result falls back to unfiltered", func(t *testing.T) {
		unfiltered, _ := r.Rank(candidatesFor(items, 0.5, 0.9, 0.5, 0.1), nil)
		ranked, fallback := r.Rank(candidatesFor(items, 0.5, 0.9, 0.5, 0.1), []HardFilter{BrandFilter{Brand: "Nope"}})
		assert.True(t, fallback)
		assert.Equal(t, ids(unfiltered), ids(ranked))
	})

	t.Run("no candidates", func(t *testing.T) {
		ranked, fallback := r.Rank(nil, []HardFilter{InStockFilter{}})
		assert.Empty(t, ranked)
		assert.False(t, fallback)
	})
}

func TestScorer_Score(t *testing.T) {
	sc := NewScorer(DefaultParams())

	t.Run("base is the weighted sum", func(t *testing.T) {
		s := ItemSignals{TextMatch: 1, SeasonMatch: 1, VisitSimilarity: 1, VisitRatio: 1, NeighborRating: 1}
		base, final := sc.Score(s)
		assert.InDelta(t, 1.0, base, 1e-12)
		assert.InDelta(t, 1.0, final, 1e-12)
	})

	t.Run("boosts multiply", func(t *testing.T) {
		s := ItemSignals{NeighborRating: 1, FavoriteRatio: 0.5, PurchaseRatio: 0.5}
		base, final := sc.Score(s)
		assert.InDelta(t, 0.3, base, 1e-12)
		assert.InDelta(t, 0.3*1.125*1.2, final, 1e-12)
	})

	t.Run("penalties shrink", func(t *testing.T) {
		s := ItemSignals{NeighborRating: 1, BudgetPenalty: 0.1, ForbiddenPenalty: 0.2}
		_, final := sc.Score(s)
		assert.InDelta(t, 0.3*0.9*0.8, final, 1e-12)
	})

	t.Run("clamped to one", func(t *testing.T) {
		s := ItemSignals{TextMatch: 1, SeasonMatch: 1, VisitSimilarity: 1, VisitRatio: 1, NeighborRating: 1, FavoriteRatio: 1, PurchaseRatio: 1}
		base, final := sc.Score(s)
		assert.Greater(t, base*1.25*1.4, 1.0)
		assert.Equal(t, 1.0, final)
	})
}
