package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/temcen/glowrank/internal/ranking"
	"github.com/temcen/glowrank/internal/repository"
	"github.com/temcen/glowrank/pkg/models"
)

// CatalogStore reads and writes catalog rows and index artifacts.
type CatalogStore interface {
	LoadCatalog(ctx context.Context) ([]models.Item, error)
	CatalogVersion(ctx context.Context) (string, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
	UpsertItem(ctx context.Context, item *models.Item) error
	SaveIndexArtifacts(ctx context.Context, artifacts []repository.ItemArtifacts, threshold float64) error
	GetSimilar(ctx context.Context, id string) ([]models.Neighbor, error)
}

// HistoryStore reads user profiles and interaction history.
type HistoryStore interface {
	GetProfile(ctx context.Context, userID string) (*models.StoredProfile, error)
	SaveProfile(ctx context.Context, profile *models.StoredProfile) error
	GetVisits(ctx context.Context, userID string) ([]models.VisitEvent, error)
	GetPurchases(ctx context.Context, userID string) ([]models.PurchaseEvent, error)
	GetFavorites(ctx context.Context, userID string) ([]string, error)
	GetCommentRatings(ctx context.Context) (map[string]float64, error)
	GetSeasonalKeywords(ctx context.Context) (ranking.SeasonTable, error)
	HasSeasonalKeywords(ctx context.Context) (bool, error)
}

// ResultCache stores JSON-encoded values under string keys.
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// GraphMirror receives every freshly built index.
type GraphMirror interface {
	Sync(ctx context.Context, idx *ranking.Index) error
}

// NeighborSource serves neighborhoods written by an earlier index build.
type NeighborSource interface {
	Neighbors(ctx context.Context, itemID string, limit int) ([]models.Neighbor, error)
}

// EventPublisher queues catalog events for asynchronous indexing.
type EventPublisher interface {
	Publish(ctx context.Context, event models.CatalogEvent) (uuid.UUID, error)
}

// RecommendationServiceInterface is what the HTTP layer needs for ranking.
type RecommendationServiceInterface interface {
	Recommend(ctx context.Context, userID string, limit int) (*models.RankingResult, error)
	ScoreItem(ctx context.Context, userID, itemID string) (*models.ItemScore, error)
	Similar(ctx context.Context, itemID string, limit int) (*models.SimilarItemsResponse, error)
}

// PreferenceServiceInterface is what the HTTP layer needs for the quiz.
type PreferenceServiceInterface interface {
	SaveAnswers(ctx context.Context, userID string, answers map[string]interface{}) (*models.UserContext, error)
}

// CatalogIndexerInterface is what the HTTP layer needs for catalog changes.
type CatalogIndexerInterface interface {
	Submit(ctx context.Context, event models.CatalogEvent) (*SubmitResult, error)
	Reindex(ctx context.Context) (*models.IndexSummary, error)
}
