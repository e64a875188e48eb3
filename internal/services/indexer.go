package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/messaging"
	"github.com/temcen/glowrank/internal/repository"
	"github.com/temcen/glowrank/pkg/models"
)

// ErrUnsupportedAction is returned for catalog events other than new and edit.
var ErrUnsupportedAction = errors.New("unsupported catalog action")

// SubmitResult reports how a catalog event was handled.
type SubmitResult struct {
	EventID string               `json:"event_id,omitempty"`
	Queued  bool                 `json:"queued"`
	Index   *models.IndexSummary `json:"index,omitempty"`
}

// CatalogIndexer applies catalog changes and refits the index. Every
// refit persists per-item token bags and neighbors and mirrors the
// neighborhoods into the graph.
type CatalogIndexer struct {
	recommender *RecommendationService
	catalog     CatalogStore
	graph       GraphMirror
	publisher   EventPublisher
	metrics     *Metrics
	logger      *logrus.Logger
}

// NewCatalogIndexer wires the indexer. graph and publisher may be nil;
// without a publisher events are applied synchronously.
func NewCatalogIndexer(
	recommender *RecommendationService,
	catalog CatalogStore,
	graph GraphMirror,
	publisher EventPublisher,
	logger *logrus.Logger,
) *CatalogIndexer {
	return &CatalogIndexer{
		recommender: recommender,
		catalog:     catalog,
		graph:       graph,
		publisher:   publisher,
		metrics:     recommender.metrics,
		logger:      logger,
	}
}

// Submit queues event when a publisher is configured and applies it
// immediately otherwise.
func (ix *CatalogIndexer) Submit(ctx context.Context, event models.CatalogEvent) (*SubmitResult, error) {
	if ix.publisher != nil {
		id, err := ix.publisher.Publish(ctx, event)
		if err != nil {
			ix.metrics.CatalogEvents.WithLabelValues(event.Action, "publish_error").Inc()
			return nil, err
		}
		ix.metrics.CatalogEvents.WithLabelValues(event.Action, "queued").Inc()
		return &SubmitResult{EventID: id.String(), Queued: true}, nil
	}

	summary, err := ix.Apply(ctx, event)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Index: summary}, nil
}

// HandleMessage is the consumer callback for queued catalog events.
// Unsupported actions are reported as permanent so the bus skips retries.
func (ix *CatalogIndexer) HandleMessage(ctx context.Context, msg messaging.EventMessage) error {
	_, err := ix.Apply(ctx, msg.Event)
	if errors.Is(err, ErrUnsupportedAction) {
		return fmt.Errorf("%w: %w", messaging.ErrPermanent, err)
	}
	return err
}

// Apply stores the event's item and refits the index.
func (ix *CatalogIndexer) Apply(ctx context.Context, event models.CatalogEvent) (*models.IndexSummary, error) {
	if event.Action != messaging.ActionNew && event.Action != messaging.ActionEdit {
		ix.metrics.CatalogEvents.WithLabelValues(event.Action, "rejected").Inc()
		return nil, fmt.Errorf("%w %q", ErrUnsupportedAction, event.Action)
	}
	if err := ix.catalog.UpsertItem(ctx, &event.Item); err != nil {
		ix.metrics.CatalogEvents.WithLabelValues(event.Action, "error").Inc()
		return nil, err
	}
	summary, err := ix.Reindex(ctx)
	if err != nil {
		ix.metrics.CatalogEvents.WithLabelValues(event.Action, "error").Inc()
		return nil, err
	}
	ix.metrics.CatalogEvents.WithLabelValues(event.Action, "applied").Inc()
	return summary, nil
}

// Reindex fits a new index over the whole catalog and persists its
// artifacts. Failing to persist artifacts or mirror the graph is logged;
// the new index is still served.
func (ix *CatalogIndexer) Reindex(ctx context.Context) (*models.IndexSummary, error) {
	start := time.Now()
	idx, err := ix.recommender.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	artifacts := make([]repository.ItemArtifacts, 0, idx.Len())
	for p, item := range idx.Items() {
		neighbors, err := idx.Similar(item.ID, 0)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, repository.ItemArtifacts{
			ItemID:    item.ID,
			TokenBag:  idx.TokenBag(p),
			Neighbors: neighbors,
		})
	}
	if err := ix.catalog.SaveIndexArtifacts(ctx, artifacts, idx.Summary().Threshold); err != nil {
		ix.logger.WithError(err).Error("Failed to persist index artifacts")
	}

	if ix.graph != nil {
		if err := ix.graph.Sync(ctx, idx); err != nil {
			ix.logger.WithError(err).Error("Failed to mirror similarity graph")
		}
	}

	summary := idx.Summary()
	ix.logger.WithFields(logrus.Fields{
		"version":  summary.Version,
		"items":    summary.Items,
		"links":    summary.NeighborLinks,
		"duration": time.Since(start),
	}).Info("Catalog reindexed")
	return &summary, nil
}
