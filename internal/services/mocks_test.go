package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/temcen/glowrank/internal/ranking"
	"github.com/temcen/glowrank/internal/repository"
	"github.com/temcen/glowrank/pkg/models"
)

type MockCatalogStore struct {
	mock.Mock
}

func (m *MockCatalogStore) LoadCatalog(ctx context.Context) ([]models.Item, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *MockCatalogStore) CatalogVersion(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockCatalogStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}

func (m *MockCatalogStore) UpsertItem(ctx context.Context, item *models.Item) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockCatalogStore) SaveIndexArtifacts(ctx context.Context, artifacts []repository.ItemArtifacts, threshold float64) error {
	return m.Called(ctx, artifacts, threshold).Error(0)
}

func (m *MockCatalogStore) GetSimilar(ctx context.Context, id string) ([]models.Neighbor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Neighbor), args.Error(1)
}

type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) GetProfile(ctx context.Context, userID string) (*models.StoredProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoredProfile), args.Error(1)
}

func (m *MockHistoryStore) SaveProfile(ctx context.Context, profile *models.StoredProfile) error {
	return m.Called(ctx, profile).Error(0)
}

func (m *MockHistoryStore) GetVisits(ctx context.Context, userID string) ([]models.VisitEvent, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VisitEvent), args.Error(1)
}

func (m *MockHistoryStore) GetPurchases(ctx context.Context, userID string) ([]models.PurchaseEvent, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PurchaseEvent), args.Error(1)
}

func (m *MockHistoryStore) GetFavorites(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockHistoryStore) GetCommentRatings(ctx context.Context) (map[string]float64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *MockHistoryStore) GetSeasonalKeywords(ctx context.Context) (ranking.SeasonTable, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ranking.SeasonTable), args.Error(1)
}

func (m *MockHistoryStore) HasSeasonalKeywords(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

type MockGraphMirror struct {
	mock.Mock
}

func (m *MockGraphMirror) Sync(ctx context.Context, idx *ranking.Index) error {
	return m.Called(ctx, idx).Error(0)
}

type MockNeighborSource struct {
	mock.Mock
}

func (m *MockNeighborSource) Neighbors(ctx context.Context, itemID string, limit int) ([]models.Neighbor, error) {
	args := m.Called(ctx, itemID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Neighbor), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event models.CatalogEvent) (uuid.UUID, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// memCache is an in-process ResultCache.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, prefix)
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}
