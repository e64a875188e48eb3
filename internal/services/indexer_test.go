package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/glowrank/internal/messaging"
	"github.com/temcen/glowrank/internal/preferences"
	"github.com/temcen/glowrank/internal/repository"
	"github.com/temcen/glowrank/pkg/models"
)

func newEvent(action string) models.CatalogEvent {
	return models.CatalogEvent{
		Action: action,
		Item:   models.Item{ID: "p4", Name: "سرم ویتامین سی", Brand: "آردن", Category: "serum"},
	}
}

func TestCatalogIndexer_SubmitQueued(t *testing.T) {
	f := newServiceFixture(t, rankingConfig(), false)
	publisher := &MockEventPublisher{}
	id := uuid.New()
	publisher.On("Publish", mock.Anything, newEvent(messaging.ActionNew)).Return(id, nil)

	ix := NewCatalogIndexer(f.svc, f.catalog, nil, publisher, testLogger())
	result, err := ix.Submit(context.Background(), newEvent(messaging.ActionNew))
	require.NoError(t, err)

	assert.True(t, result.Queued)
	assert.Equal(t, id.String(), result.EventID)
	assert.Nil(t, result.Index)
	f.catalog.AssertNotCalled(t, "UpsertItem", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CatalogEvents.WithLabelValues("new", "queued")))
}

func TestCatalogIndexer_SubmitPublishError(t *testing.T) {
	f := newServiceFixture(t, rankingConfig(), false)
	publisher := &MockEventPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return(uuid.Nil, errors.New("broker down"))

	ix := NewCatalogIndexer(f.svc, f.catalog, nil, publisher, testLogger())
	_, err := ix.Submit(context.Background(), newEvent(messaging.ActionEdit))
	assert.ErrorContains(t, err, "broker down")
}

func TestCatalogIndexer_SubmitApplied(t *testing.T) {
	f := newServiceFixture(t, rankingConfig(), false)
	graph := &MockGraphMirror{}
	items := append(testItems(), newEvent(messaging.ActionNew).Item)

	f.catalog.On("UpsertItem", mock.Anything, mock.MatchedBy(func(item *models.Item) bool {
		return item.ID == "p4"
	})).Return(nil)
	f.catalog.On("CatalogVersion", mock.Anything).Return("v2", nil)
	f.catalog.On("LoadCatalog", mock.Anything).Return(items, nil)
	f.catalog.On("SaveIndexArtifacts", mock.Anything, mock.MatchedBy(func(a []repository.ItemArtifacts) bool {
		if len(a) != 4 || a[0].ItemID != "p1" || a[0].TokenBag == nil {
			return false
		}
		return len(a[0].Neighbors) == 1 && a[0].Neighbors[0].ItemID == "p2"
	}), 0.4).Return(nil)
	graph.On("Sync", mock.Anything, mock.Anything).Return(nil)

	ix := NewCatalogIndexer(f.svc, f.catalog, graph, nil, testLogger())
	result, err := ix.Submit(context.Background(), newEvent(messaging.ActionNew))
	require.NoError(t, err)

	assert.False(t, result.Queued)
	require.NotNil(t, result.Index)
	assert.Equal(t, "v2", result.Index.Version)
	assert.Equal(t, 4, result.Index.Items)
	f.catalog.AssertExpectations(t)
	graph.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CatalogEvents.WithLabelValues("new", "applied")))
}

func TestCatalogIndexer_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported action", func(t *testing.T) {
		f := newServiceFixture(t, rankingConfig(), false)
		ix := NewCatalogIndexer(f.svc, f.catalog, nil, nil, testLogger())

		_, err := ix.Apply(ctx, newEvent("delete"))
		assert.ErrorContains(t, err, "unsupported catalog action")
		assert.NotErrorIs(t, err, messaging.ErrPermanent)
		f.catalog.AssertNotCalled(t, "UpsertItem", mock.Anything, mock.Anything)
	})

	t.Run("queued unsupported action is permanent", func(t *testing.T) {
		f := newServiceFixture(t, rankingConfig(), false)
		ix := NewCatalogIndexer(f.svc, f.catalog, nil, nil, testLogger())

		err := ix.HandleMessage(ctx, messaging.EventMessage{Event: newEvent("delete")})
		assert.ErrorIs(t, err, messaging.ErrPermanent)
		assert.ErrorIs(t, err, ErrUnsupportedAction)
	})

	t.Run("queued transient failure is retried", func(t *testing.T) {
		f := newServiceFixture(t, rankingConfig(), false)
		f.catalog.On("UpsertItem", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
		ix := NewCatalogIndexer(f.svc, f.catalog, nil, nil, testLogger())

		err := ix.HandleMessage(ctx, messaging.EventMessage{Event: newEvent(messaging.ActionEdit)})
		assert.ErrorContains(t, err, "connection reset")
		assert.NotErrorIs(t, err, messaging.ErrPermanent)
	})

	t.Run("artifact failures do not fail the reindex", func(t *testing.T) {
		f := newServiceFixture(t, rankingConfig(), false)
		f.catalog.On("UpsertItem", mock.Anything, mock.Anything).Return(nil)
		f.catalog.On("CatalogVersion", mock.Anything).Return("v3", nil)
		f.catalog.On("LoadCatalog", mock.Anything).Return(testItems(), nil)
		f.catalog.On("SaveIndexArtifacts", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
		graph := &MockGraphMirror{}
		graph.On("Sync", mock.Anything, mock.Anything).Return(errors.New("neo4j down"))

		ix := NewCatalogIndexer(f.svc, f.catalog, graph, nil, testLogger())
		require.NoError(t, ix.HandleMessage(ctx, messaging.EventMessage{Event: newEvent(messaging.ActionEdit)}))

		idx, err := f.svc.Index(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v3", idx.Version())
	})

	t.Run("upsert failure", func(t *testing.T) {
		f := newServiceFixture(t, rankingConfig(), false)
		f.catalog.On("UpsertItem", mock.Anything, mock.Anything).Return(errors.New("constraint"))

		ix := NewCatalogIndexer(f.svc, f.catalog, nil, nil, testLogger())
		_, err := ix.Apply(ctx, newEvent(messaging.ActionEdit))
		assert.ErrorContains(t, err, "constraint")
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CatalogEvents.WithLabelValues("edit", "error")))
	})
}

func TestPreferenceService_SaveAnswers(t *testing.T) {
	f := newServiceFixture(t, rankingConfig(), true)
	f.history.On("SaveProfile", mock.Anything, mock.MatchedBy(func(p *models.StoredProfile) bool {
		return p.UserID == "u1" && p.Preferences["skin_type"] == "خشک"
	})).Return(nil)

	svc := NewPreferenceService(preferences.NewExtractor(nil, testLogger()), f.history, f.svc, testLogger())
	uc, err := svc.SaveAnswers(context.Background(), "u1", map[string]interface{}{
		"skin_type":             float64(2),
		"forbidden_ingredients": "پارابن",
	})
	require.NoError(t, err)

	assert.Equal(t, "u1", uc.UserID)
	assert.Equal(t, []string{"پارابن"}, uc.Forbidden)
	assert.Equal(t, []string{"rank:u1:"}, f.cache.deleted)
	f.history.AssertExpectations(t)
}

func TestPreferenceService_SaveAnswersErrors(t *testing.T) {
	f := newServiceFixture(t, rankingConfig(), false)
	svc := NewPreferenceService(preferences.NewExtractor(nil, testLogger()), f.history, f.svc, testLogger())

	_, err := svc.SaveAnswers(context.Background(), "", map[string]interface{}{"skin_type": float64(1)})
	assert.Error(t, err)

	f.history.On("SaveProfile", mock.Anything, mock.Anything).Return(errors.New("db down"))
	_, err = svc.SaveAnswers(context.Background(), "u1", map[string]interface{}{"skin_type": float64(1)})
	assert.ErrorContains(t, err, "db down")
}
