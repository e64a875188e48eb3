package services

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/config"
	"github.com/temcen/glowrank/internal/database"
	"github.com/temcen/glowrank/internal/graph"
	"github.com/temcen/glowrank/internal/messaging"
	"github.com/temcen/glowrank/internal/preferences"
	"github.com/temcen/glowrank/internal/ranking"
	"github.com/temcen/glowrank/internal/repository"
)

const cacheKeyPrefix = "glowrank:"

type Services struct {
	Recommendation *RecommendationService
	Preferences    *PreferenceService
	Indexer        *CatalogIndexer
	Health         *HealthService
	EventBus       *messaging.CatalogEventBus
}

// New wires the services over db. Redis, Neo4j and Kafka are optional: a
// missing Redis client disables result caching, a missing Neo4j driver
// disables graph mirroring and a disabled Kafka section applies catalog
// events synchronously.
func New(cfg *config.Config, logger *logrus.Logger, db *database.Database, reg prometheus.Registerer) (*Services, error) {
	params, err := cfg.Ranking.Params()
	if err != nil {
		return nil, fmt.Errorf("invalid ranking configuration: %w", err)
	}

	tokenizer := ranking.NewTextTokenizer()
	engine, err := ranking.NewEngine(params, tokenizer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ranking engine: %w", err)
	}

	repo := repository.New(db.PG, logger)
	metrics := NewMetrics(reg)

	var cache ResultCache
	if db.Redis != nil {
		cache = NewRedisCache(db.Redis, cacheKeyPrefix)
	}
	recommendation := NewRecommendationService(engine, repo, repo, cache, metrics, cfg.Ranking, logger)

	var mirror GraphMirror
	if db.Neo4j != nil {
		g := graph.NewSimilarityGraph(db.Neo4j, cfg.Neo4j.BatchSize, logger)
		mirror = g
		recommendation.stored = g
	}

	var (
		bus       *messaging.CatalogEventBus
		publisher EventPublisher
	)
	if cfg.Kafka.Enabled {
		bus, err = messaging.NewCatalogEventBus(cfg.Kafka, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize catalog event bus: %w", err)
		}
		publisher = bus
	}

	checks := []HealthCheck{
		{Name: "postgres", Critical: true, Check: db.PingPostgres},
		{Name: "ranking_index", Check: func(ctx context.Context) error {
			_, err := recommendation.Index(ctx)
			return err
		}},
	}
	if db.Redis != nil {
		checks = append(checks, HealthCheck{Name: "redis", Check: db.PingRedis})
	}
	if db.Neo4j != nil {
		checks = append(checks, HealthCheck{Name: "neo4j", Check: db.PingNeo4j})
	}
	if bus != nil {
		checks = append(checks, HealthCheck{Name: "catalog_events", Details: bus.Stats})
	}

	return &Services{
		Recommendation: recommendation,
		Preferences:    NewPreferenceService(preferences.NewExtractor(tokenizer, logger), repo, recommendation, logger),
		Indexer:        NewCatalogIndexer(recommendation, repo, mirror, publisher, logger),
		Health:         NewHealthService(checks, reg, logger),
		EventBus:       bus,
	}, nil
}

// Close releases the event bus, if any.
func (s *Services) Close() error {
	if s.EventBus == nil {
		return nil
	}
	return s.EventBus.Close()
}
