package ranking

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/glowrank/pkg/models"
)

var testNow = time.Date(2025, 8, 31, 23, 59, 59, 0, time.UTC)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultParams(), NewTextTokenizer(), testLogger())
	require.NoError(t, err)
	return engine
}

func testCatalog() []models.Item {
	return []models.Item{
		{ID: "p1", Name: "Hydra Serum", Brand: "Acme", Category: "serum", Tags: []string{"آبرسان", "hydrating"}, Price: ptr(250_000), Stock: 5, AverageRating: 4},
		{ID: "p2", Name: "Hydra Cream", Brand: "Beta", Category: "serum", Tags: []string{"آبرسان", "hydrating"}, Price: ptr(450_000), Stock: 0, AverageRating: 5},
		{ID: "p3", Name: "Sun Fluid", Brand: "Acme", Category: "sunscreen", Tags: []string{"ضد آفتاب"}, Price: ptr(380_000), Stock: 3, AverageRating: 3},
		{ID: "p4", Name: "Night Oil", Brand: "Gamma", Category: "oil", Tags: []string{"روغن", "شب"}, Price: ptr(1_200_000), Stock: 1},
	}
}

func rankedByID(result *models.RankingResult) map[string]models.RankedItem {
	out := make(map[string]models.RankedItem, len(result.Recommendations))
	for _, r := range result.Recommendations {
		out[r.ItemID] = r
	}
	return out
}

func TestNewEngine(t *testing.T) {
	t.Run("rejects weights that do not sum to one", func(t *testing.T) {
		params := DefaultParams()
		params.Weights.Text = 0.9
		_, err := NewEngine(params, nil, testLogger())
		assert.Error(t, err)
	})

	t.Run("defaults tokenizer and logger", func(t *testing.T) {
		engine, err := NewEngine(DefaultParams(), nil, nil)
		require.NoError(t, err)
		assert.IsType(t, &TextTokenizer{}, engine.Tokenizer())
	})
}

func TestEngine_BuildIndex(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("summary", func(t *testing.T) {
		idx, err := engine.BuildIndex(testCatalog(), "v1")
		require.NoError(t, err)
		summary := idx.Summary()
		assert.Equal(t, "v1", summary.Version)
		assert.Equal(t, 4, summary.Items)
		assert.Greater(t, summary.Vocabulary, 0)
		assert.Equal(t, 0.4, summary.Threshold)
	})

	t.Run("generated version", func(t *testing.T) {
		idx, err := engine.BuildIndex(testCatalog(), "")
		require.NoError(t, err)
		assert.NotEmpty(t, idx.Version())
	})

	t.Run("duplicate ids", func(t *testing.T) {
		items := append(testCatalog(), models.Item{ID: "p1", Name: "dup"})
		_, err := engine.BuildIndex(items, "v1")
		assert.ErrorIs(t, err, ErrDuplicateItem)
	})

	t.Run("snapshot is copied", func(t *testing.T) {
		items := testCatalog()
		idx, err := engine.BuildIndex(items, "v1")
		require.NoError(t, err)
		items[0].Name = "changed"
		item, ok := idx.Item("p1")
		require.True(t, ok)
		assert.Equal(t, "Hydra Serum", item.Name)
	})

	t.Run("similar items", func(t *testing.T) {
		idx, err := engine.BuildIndex(testCatalog(), "v1")
		require.NoError(t, err)

		neighbors, err := idx.Similar("p1", 10)
		require.NoError(t, err)
		require.NotEmpty(t, neighbors)
		assert.Equal(t, "p2", neighbors[0].ItemID)
		for _, n := range neighbors {
			assert.NotEqual(t, "p1", n.ItemID)
			assert.GreaterOrEqual(t, n.Similarity, 0.4)
		}

		_, err = idx.Similar("missing", 10)
		assert.ErrorIs(t, err, ErrUnknownItem)
	})

	t.Run("token bag for persistence", func(t *testing.T) {
		idx, err := engine.BuildIndex(testCatalog(), "v1")
		require.NoError(t, err)
		bag := idx.TokenBag(0)
		assert.Equal(t, []string{"hydra", "serum", "acme", "آبرسان", "hydrating"}, bag.Tokens)
		assert.Equal(t, NeedsTokenization, idx.TokenSource(0))
	})
}

func TestEngine_BuildIndex_RefitFromStoredBags(t *testing.T) {
	engine := newTestEngine(t)
	items := []models.Item{
		{ID: "a", Name: "hydra hydra serum", Category: "serum"},
		{ID: "b", Name: "hydra cream", Description: "cream cream rich"},
		{ID: "c", Name: "sun fluid", Tags: []string{"spf spf"}},
	}

	first, err := engine.BuildIndex(items, "v1")
	require.NoError(t, err)

	stored := make([]models.Item, len(items))
	copy(stored, items)
	for p := range stored {
		stored[p].TokenBag = first.TokenBag(p)
	}
	second, err := engine.BuildIndex(stored, "v1")
	require.NoError(t, err)

	for p := range items {
		assert.Equal(t, NeedsTokenization, first.TokenSource(p))
		assert.Equal(t, CachedTokens, second.TokenSource(p))
		for q := range items {
			assert.InDelta(t, first.Similarity().At(p, q), second.Similarity().At(p, q), 1e-12, "sim(%d,%d)", p, q)
		}
		assert.Equal(t, first.Neighborhood(p), second.Neighborhood(p))
	}
}

func TestEngine_Rank_Errors(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Rank(nil, &RankRequest{})
	assert.ErrorIs(t, err, ErrIndexNotReady)

	idx, err := engine.BuildIndex(nil, "empty")
	require.NoError(t, err)
	_, err = engine.Rank(idx, &RankRequest{})
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestEngine_Rank_Properties(t *testing.T) {
	engine := newTestEngine(t)
	idx, err := engine.BuildIndex(testCatalog(), "v1")
	require.NoError(t, err)

	cold := &RankRequest{User: &models.UserContext{UserID: "u1"}, Now: testNow}
	warm := &RankRequest{
		User: &models.UserContext{
			UserID:   "u1",
			Keywords: []models.KeywordGroup{{Topic: "wishlist_feature", Terms: []string{"آبرسان"}}},
			Budget:   band(ptr(200_000), ptr(400_000)),
		},
		Visits: []models.VisitEvent{
			{ItemID: "p1", At: "2025-08-30T10:00:00"},
			{ItemID: "p1", At: "2025-08-20T10:00:00"},
			{ItemID: "p3", At: "broken"},
		},
		Purchases: []models.PurchaseEvent{
			{UserID: "u1", ItemID: "p2", At: "2025-08-01T00:00:00", Quantity: 2},
			{UserID: "u9", ItemID: "p4", At: "2025-08-01T00:00:00", Quantity: 5},
		},
		Favorites: []string{"p1"},
		Now:       testNow,
	}

	t.Run("scores are within bounds for every item", func(t *testing.T) {
		for _, req := range []*RankRequest{cold, warm} {
			result, err := engine.Rank(idx, req)
			require.NoError(t, err)
			require.Len(t, result.Recommendations, 4)
			for i, r := range result.Recommendations {
				assert.GreaterOrEqual(t, r.FinalScore, 0.0)
				assert.LessOrEqual(t, r.FinalScore, 1.0)
				assert.Equal(t, i+1, r.Position)
				if i > 0 {
					assert.GreaterOrEqual(t, result.Recommendations[i-1].FinalScore, r.FinalScore)
				}
			}
		}
	})

	t.Run("no history means no behavioral signals", func(t *testing.T) {
		result, err := engine.Rank(idx, cold)
		require.NoError(t, err)
		for _, r := range result.Recommendations {
			assert.Equal(t, 0.0, r.Details.PurchaseRatio)
			assert.Equal(t, 0.0, r.Details.VisitRatio)
			assert.Equal(t, 0.0, r.Details.VisitSimilarity)
			assert.Equal(t, 0.0, r.Details.FavoriteRatio)
		}
		assert.Equal(t, QueryFromVisits, result.Metadata.TextQuery)
	})

	t.Run("history feeds the neighborhood signals", func(t *testing.T) {
		result, err := engine.Rank(idx, warm)
		require.NoError(t, err)
		byID := rankedByID(result)

		assert.Greater(t, byID["p1"].Details.VisitRatio, 0.0)
		assert.Greater(t, byID["p1"].Details.VisitSimilarity, 0.0)
		assert.Greater(t, byID["p1"].Details.FavoriteRatio, 0.0)
		assert.Greater(t, byID["p2"].Details.PurchaseRatio, 0.0)
		assert.Greater(t, byID["p1"].Details.TextMatch, 0.0)
		assert.Equal(t, 0.0, byID["p4"].Details.PurchaseRatio)
		assert.Equal(t, QueryFromPreferences, result.Metadata.TextQuery)
	})

	t.Run("budget penalty applies outside the band", func(t *testing.T) {
		result, err := engine.Rank(idx, warm)
		require.NoError(t, err)
		byID := rankedByID(result)

		assert.Equal(t, 0.0, byID["p1"].Details.BudgetPenalty)
		assert.Greater(t, byID["p2"].Details.BudgetPenalty, 0.0)
		assert.Equal(t, 0.12, byID["p4"].Details.BudgetPenalty)
	})

	t.Run("season keywords", func(t *testing.T) {
		result, err := engine.Rank(idx, cold)
		require.NoError(t, err)
		assert.Equal(t, "summer", result.Metadata.Season)
		assert.Contains(t, result.Metadata.SeasonKeywords, "ضد آفتاب")

		byID := rankedByID(result)
		assert.Greater(t, byID["p3"].Details.SeasonMatch, 0.0)
		assert.Equal(t, 0.0, byID["p1"].Details.SeasonMatch)
	})

	t.Run("metadata", func(t *testing.T) {
		result, err := engine.Rank(idx, warm)
		require.NoError(t, err)
		md := result.Metadata
		assert.NotEmpty(t, md.RunID)
		assert.Equal(t, "u1", md.UserID)
		assert.Equal(t, "v1", md.IndexVersion)
		assert.Equal(t, testNow, md.GeneratedAt)
		assert.Equal(t, 0.30, md.Params.Weights["W_T"])
		assert.Equal(t, 0.40, md.Params.Boosts["BETA_BUY"])
		assert.Zero(t, md.SkippedItems)
	})

	t.Run("comment ratings override item ratings", func(t *testing.T) {
		base, err := engine.Rank(idx, cold)
		require.NoError(t, err)
		req := *cold
		req.Ratings = map[string]float64{"p4": 5}
		rated, err := engine.Rank(idx, &req)
		require.NoError(t, err)
		assert.Equal(t, 0.0, rankedByID(base)["p4"].Details.NeighborRating)
		assert.Greater(t, rankedByID(rated)["p4"].Details.NeighborRating, 0.0)
	})
}

func TestEngine_Rank_HardFilters(t *testing.T) {
	engine := newTestEngine(t)
	idx, err := engine.BuildIndex(testCatalog(), "v1")
	require.NoError(t, err)

	t.Run("brand and stock", func(t *testing.T) {
		result, err := engine.Rank(idx, &RankRequest{
			User: &models.UserContext{UserID: "u1", BrandPreference: "Acme", InStockOnly: true},
			Now:  testNow,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"p1", "p3"}, []string{result.Recommendations[0].ItemID, result.Recommendations[1].ItemID})
		assert.Len(t, result.Recommendations, 2)
		assert.Equal(t, []string{"brand", "in_stock"}, result.Metadata.FiltersApplied)
		assert.False(t, result.Metadata.FilterFallback)
	})

	t.Run("no brand sentinel", func(t *testing.T) {
		result, err := engine.Rank(idx, &RankRequest{
			User: &models.UserContext{UserID: "u1", BrandPreference: models.NoBrandPreference},
			Now:  testNow,
		})
		require.NoError(t, err)
		assert.Len(t, result.Recommendations, 4)
		assert.Empty(t, result.Metadata.FiltersApplied)
	})

	t.Run("empty filter result falls back", func(t *testing.T) {
		unfiltered, err := engine.Rank(idx, &RankRequest{User: &models.UserContext{UserID: "u1"}, Now: testNow})
		require.NoError(t, err)
		result, err := engine.Rank(idx, &RankRequest{
			User: &models.UserContext{UserID: "u1", BrandPreference: "Unknown"},
			Now:  testNow,
		})
		require.NoError(t, err)
		assert.True(t, result.Metadata.FilterFallback)
		require.Len(t, result.Recommendations, len(unfiltered.Recommendations))
		for i := range unfiltered.Recommendations {
			assert.Equal(t, unfiltered.Recommendations[i].ItemID, result.Recommendations[i].ItemID)
			assert.Equal(t, unfiltered.Recommendations[i].FinalScore, result.Recommendations[i].FinalScore)
		}
	})
}

func TestEngine_Rank_ScenarioB(t *testing.T) {
	engine := newTestEngine(t)
	cached := &models.TokenBag{Tokens: []string{"hydra", "serum", "آبرسان"}}
	items := []models.Item{
		{ID: "twin-a", Name: "Hydra Serum", Description: "با پارابن", TokenBag: cached, AverageRating: 4, Stock: 2},
		{ID: "twin-b", Name: "Hydra Serum", Description: "ملایم", TokenBag: cached, AverageRating: 4, Stock: 2},
		{ID: "other", Name: "Sun Fluid", TokenBag: &models.TokenBag{Tokens: []string{"sun", "fluid"}}, AverageRating: 2},
	}
	idx, err := engine.BuildIndex(items, "v1")
	require.NoError(t, err)

	result, err := engine.Rank(idx, &RankRequest{
		User: &models.UserContext{UserID: "u1", Forbidden: []string{"پارابن نباشد"}},
		Now:  testNow,
	})
	require.NoError(t, err)
	byID := rankedByID(result)
	a, b := byID["twin-a"], byID["twin-b"]

	assert.InDelta(t, 0.06, a.Details.ForbiddenPenalty, 1e-12)
	assert.Equal(t, 0.0, b.Details.ForbiddenPenalty)
	assert.Equal(t, b.ScoreBase, a.ScoreBase)
	assert.Greater(t, b.FinalScore, 0.0)
	assert.InDelta(t, b.FinalScore*0.94, a.FinalScore, 1e-12)
}

func TestEngine_Rank_ScenarioC(t *testing.T) {
	engine := newTestEngine(t)
	items := []models.Item{
		{ID: "x", Name: "Alpha Balm", Tags: []string{"lips"}},
		{ID: "y", Name: "Beta Toner", Tags: []string{"toner", "pores", "balm"}},
		{ID: "z", Name: "Gamma Mask"},
	}
	idx, err := engine.BuildIndex(items, "v1")
	require.NoError(t, err)

	noSeason := SeasonTable{Spring: {}, Summer: {}, Autumn: {}, Winter: {}}
	result, err := engine.Rank(idx, &RankRequest{
		User:    &models.UserContext{UserID: "cold"},
		Seasons: noSeason,
		Now:     testNow,
	})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 3)
	assert.Empty(t, result.Metadata.SeasonKeywords)

	for i, r := range result.Recommendations {
		assert.Equal(t, 0.0, r.Details.SeasonMatch)
		assert.Equal(t, r.ScoreBase, r.FinalScore)
		if i > 0 {
			assert.GreaterOrEqual(t, result.Recommendations[i-1].ScoreBase, r.ScoreBase)
		}
	}
}

func TestEngine_ScoreItem(t *testing.T) {
	engine := newTestEngine(t)
	idx, err := engine.BuildIndex(testCatalog(), "v1")
	require.NoError(t, err)
	req := &RankRequest{User: &models.UserContext{UserID: "u1", InStockOnly: true}, Now: testNow}

	result, err := engine.Rank(idx, req)
	require.NoError(t, err)
	top := result.Recommendations[0]

	score, err := engine.ScoreItem(idx, req, top.ItemID)
	require.NoError(t, err)
	assert.Equal(t, top.FinalScore, score.FinalScore)
	assert.Equal(t, 1, score.Position)
	assert.Equal(t, top.Details, score.Details)

	t.Run("filtered item has no position", func(t *testing.T) {
		score, err := engine.ScoreItem(idx, req, "p2")
		require.NoError(t, err)
		assert.Equal(t, 0, score.Position)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := engine.ScoreItem(idx, req, "nope")
		assert.ErrorIs(t, err, ErrUnknownItem)
	})
}

func TestEngine_Rank_RecoversPerItem(t *testing.T) {
	engine := newTestEngine(t)
	idx, err := engine.BuildIndex(testCatalog(), "v1")
	require.NoError(t, err)

	// Truncated penalty tokens make scoring of every item after the first
	// fail with an index error.
	idx.penaltyTokens = idx.penaltyTokens[:1]

	result, err := engine.Rank(idx, &RankRequest{User: &models.UserContext{UserID: "u1"}, Now: testNow})
	require.NoError(t, err)
	assert.Len(t, result.Recommendations, 1)
	assert.Equal(t, "p1", result.Recommendations[0].ItemID)
	assert.Equal(t, 3, result.Metadata.SkippedItems)
}
