package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/config"
	"github.com/temcen/glowrank/internal/preferences"
	"github.com/temcen/glowrank/internal/ranking"
	"github.com/temcen/glowrank/internal/repository"
	"github.com/temcen/glowrank/pkg/models"
)

// RecommendationService owns the active catalog index and answers ranking
// queries against it. Rankings are cached per user, index version and
// history fingerprint.
type RecommendationService struct {
	engine    *ranking.Engine
	catalog   CatalogStore
	history   HistoryStore
	cache     ResultCache
	stored    NeighborSource
	extractor *preferences.Extractor
	metrics   *Metrics
	cfg       config.RankingConfig
	logger    *logrus.Logger
	now       func() time.Time

	mu        sync.RWMutex
	index     *ranking.Index
	checkedAt time.Time
	buildMu   sync.Mutex
}

// NewRecommendationService wires the service. cache may be nil.
func NewRecommendationService(
	engine *ranking.Engine,
	catalog CatalogStore,
	history HistoryStore,
	cache ResultCache,
	metrics *Metrics,
	cfg config.RankingConfig,
	logger *logrus.Logger,
) *RecommendationService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &RecommendationService{
		engine:    engine,
		catalog:   catalog,
		history:   history,
		cache:     cache,
		extractor: preferences.NewExtractor(engine.Tokenizer(), logger),
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Index returns the active index, rebuilding it when the catalog version
// has moved since the last check.
func (s *RecommendationService) Index(ctx context.Context) (*ranking.Index, error) {
	s.mu.RLock()
	idx, checkedAt := s.index, s.checkedAt
	s.mu.RUnlock()

	if idx != nil && s.cfg.Cache.IndexTTL > 0 && s.now().Sub(checkedAt) < s.cfg.Cache.IndexTTL {
		return idx, nil
	}

	version, err := s.catalog.CatalogVersion(ctx)
	if err != nil {
		if idx != nil {
			s.logger.WithError(err).Warn("Catalog version check failed, serving previous index")
			return idx, nil
		}
		return nil, fmt.Errorf("failed to read catalog version: %w", err)
	}
	if idx != nil && idx.Version() == version {
		s.mu.Lock()
		s.checkedAt = s.now()
		s.mu.Unlock()
		return idx, nil
	}
	return s.Refresh(ctx)
}

// Refresh loads the catalog and fits a new index unconditionally.
func (s *RecommendationService) Refresh(ctx context.Context) (*ranking.Index, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()
	version, err := s.catalog.CatalogVersion(ctx)
	if err != nil {
		s.metrics.IndexBuilds.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read catalog version: %w", err)
	}
	items, err := s.catalog.LoadCatalog(ctx)
	if err != nil {
		s.metrics.IndexBuilds.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	idx, err := s.engine.BuildIndex(items, version)
	if err != nil {
		s.metrics.IndexBuilds.WithLabelValues("error").Inc()
		return nil, err
	}

	s.mu.Lock()
	s.index = idx
	s.checkedAt = s.now()
	s.mu.Unlock()

	s.metrics.IndexBuilds.WithLabelValues("success").Inc()
	s.metrics.IndexDuration.Observe(time.Since(start).Seconds())
	s.metrics.IndexItems.Set(float64(idx.Len()))
	return idx, nil
}

// Recommend ranks the catalog for userID and returns at most limit items.
// A non-positive limit returns the full ranking.
func (s *RecommendationService) Recommend(ctx context.Context, userID string, limit int) (*models.RankingResult, error) {
	start := time.Now()
	defer func() { s.metrics.RankingLatency.Observe(time.Since(start).Seconds()) }()

	idx, err := s.Index(ctx)
	if err != nil {
		s.metrics.RankingRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	req, err := s.loadUserHistory(ctx, userID)
	if err != nil {
		s.metrics.RankingRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	var key string
	if s.cache != nil {
		fingerprint, err := historyFingerprint(req)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Skipping ranking cache")
		} else {
			key = rankingCacheKey(userID, idx.Version(), fingerprint)
		}
	}
	if key != "" {
		var cached models.RankingResult
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Ranking cache read failed")
		}
		if hit {
			s.metrics.CacheRequests.WithLabelValues("hit").Inc()
			s.metrics.RankingRuns.WithLabelValues("cached").Inc()
			cached.CacheHit = true
			return truncate(&cached, limit), nil
		}
		s.metrics.CacheRequests.WithLabelValues("miss").Inc()
	}

	if err := s.loadSharedSignals(ctx, req); err != nil {
		s.metrics.RankingRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	result, err := s.engine.Rank(idx, req)
	if err != nil {
		s.metrics.RankingRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	s.metrics.RankingRuns.WithLabelValues("computed").Inc()
	s.metrics.ItemsScored.Add(float64(len(result.Recommendations)))
	s.metrics.ItemFailures.Add(float64(result.Metadata.SkippedItems))
	if result.Metadata.FilterFallback {
		s.metrics.FilterFallbacks.Inc()
	}

	if key != "" && s.cfg.Cache.ResultsTTL > 0 {
		if err := s.cache.Set(ctx, key, result, s.cfg.Cache.ResultsTTL); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Ranking cache write failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":  result.Metadata.RunID,
		"user_id": userID,
		"items":   len(result.Recommendations),
		"season":  result.Metadata.Season,
		"latency": time.Since(start),
	}).Info("Recommendations generated")
	return truncate(result, limit), nil
}

// ScoreItem returns one item's score for userID.
func (s *RecommendationService) ScoreItem(ctx context.Context, userID, itemID string) (*models.ItemScore, error) {
	idx, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}
	req, err := s.buildRequest(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.engine.ScoreItem(idx, req, itemID)
}

// Similar returns the similarity neighborhood of itemID. When no index
// can be fitted it serves the neighborhood persisted by the last build,
// from the graph mirror when one is wired and from Postgres otherwise.
func (s *RecommendationService) Similar(ctx context.Context, itemID string, limit int) (*models.SimilarItemsResponse, error) {
	var (
		neighbors []models.Neighbor
		source    = "index"
	)
	idx, err := s.Index(ctx)
	if err == nil {
		neighbors, err = idx.Similar(itemID, limit)
		if err != nil {
			return nil, err
		}
	} else {
		s.logger.WithError(err).WithField("item_id", itemID).Warn("Index unavailable, serving stored neighbors")
		neighbors, source, err = s.storedNeighbors(ctx, itemID, limit, err)
		if err != nil {
			return nil, err
		}
	}
	if neighbors == nil {
		neighbors = []models.Neighbor{}
	}
	return &models.SimilarItemsResponse{
		ItemID:      itemID,
		Threshold:   s.engine.Params().SimilarityThreshold,
		Neighbors:   neighbors,
		Source:      source,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// storedNeighbors reads persisted neighbors. indexErr is returned when no
// store can answer.
func (s *RecommendationService) storedNeighbors(ctx context.Context, itemID string, limit int, indexErr error) ([]models.Neighbor, string, error) {
	if s.stored != nil {
		neighbors, err := s.stored.Neighbors(ctx, itemID, limit)
		if err == nil && len(neighbors) > 0 {
			return neighbors, "graph", nil
		}
		if err != nil {
			s.logger.WithError(err).WithField("item_id", itemID).Warn("Graph neighbor lookup failed")
		}
	}

	neighbors, err := s.catalog.GetSimilar(ctx, itemID)
	switch {
	case errors.Is(err, repository.ErrItemNotFound):
		return nil, "", fmt.Errorf("%w: %s", ranking.ErrUnknownItem, itemID)
	case err != nil:
		s.logger.WithError(err).WithField("item_id", itemID).Warn("Stored neighbor lookup failed")
		return nil, "", indexErr
	}
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, "store", nil
}

// InvalidateUser drops cached rankings of userID.
func (s *RecommendationService) InvalidateUser(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, userCachePrefix(userID)); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate cached rankings")
	}
}

func (s *RecommendationService) buildRequest(ctx context.Context, userID string) (*ranking.RankRequest, error) {
	req, err := s.loadUserHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.loadSharedSignals(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// loadUserHistory loads the user's profile and history. A user without a
// stored profile is ranked on history alone.
func (s *RecommendationService) loadUserHistory(ctx context.Context, userID string) (*ranking.RankRequest, error) {
	user := &models.UserContext{UserID: userID}
	profile, err := s.history.GetProfile(ctx, userID)
	switch {
	case err == nil:
		user = s.extractor.ToUserContext(profile)
	case errors.Is(err, repository.ErrUserNotFound):
	default:
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	req := &ranking.RankRequest{User: user, Now: s.now()}
	if req.Visits, err = s.history.GetVisits(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to load visits: %w", err)
	}
	if req.Purchases, err = s.history.GetPurchases(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to load purchases: %w", err)
	}
	if req.Favorites, err = s.history.GetFavorites(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	return req, nil
}

// loadSharedSignals adds the catalog-wide ratings and seasonal keywords.
func (s *RecommendationService) loadSharedSignals(ctx context.Context, req *ranking.RankRequest) error {
	var err error
	if req.Ratings, err = s.history.GetCommentRatings(ctx); err != nil {
		return fmt.Errorf("failed to load ratings: %w", err)
	}

	custom, err := s.history.HasSeasonalKeywords(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Seasonal keyword check failed, using defaults")
	} else if custom {
		if req.Seasons, err = s.history.GetSeasonalKeywords(ctx); err != nil {
			return fmt.Errorf("failed to load seasonal keywords: %w", err)
		}
	}
	return nil
}

func truncate(result *models.RankingResult, limit int) *models.RankingResult {
	if limit > 0 && len(result.Recommendations) > limit {
		result.Recommendations = result.Recommendations[:limit]
	}
	return result
}
