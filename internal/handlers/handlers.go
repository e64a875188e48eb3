package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/config"
	"github.com/temcen/glowrank/internal/ranking"
	"github.com/temcen/glowrank/internal/services"
)

// HealthChecker reports the aggregated dependency status.
type HealthChecker interface {
	CheckHealth(ctx context.Context) *services.HealthStatus
}

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	User           *UserHandler
	Catalog        *CatalogHandler
}

func New(
	logger *logrus.Logger,
	health HealthChecker,
	recommender services.RecommendationServiceInterface,
	preferences services.PreferenceServiceInterface,
	indexer services.CatalogIndexerInterface,
	cfg config.RankingConfig,
) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, health),
		Recommendation: NewRecommendationHandler(recommender, cfg.DefaultLimit, cfg.MaxLimit, logger),
		User:           NewUserHandler(logger, preferences),
		Catalog:        NewCatalogHandler(indexer, logger),
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondServiceError maps ranking and service errors onto HTTP statuses.
func respondServiceError(c *gin.Context, logger *logrus.Logger, err error, message string) {
	switch {
	case errors.Is(err, ranking.ErrUnknownItem):
		respondError(c, http.StatusNotFound, "ITEM_NOT_FOUND", "Item is not in the catalog index")
	case errors.Is(err, ranking.ErrEmptyCatalog), errors.Is(err, ranking.ErrIndexNotReady):
		respondError(c, http.StatusServiceUnavailable, "INDEX_UNAVAILABLE", "Catalog index is not available")
	case errors.Is(err, services.ErrUnsupportedAction):
		respondError(c, http.StatusBadRequest, "UNSUPPORTED_ACTION", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out")
	default:
		logger.WithError(err).WithField("path", c.FullPath()).Error(message)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
	}
}
