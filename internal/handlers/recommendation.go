package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/services"
)

type RecommendationHandler struct {
	recommender  services.RecommendationServiceInterface
	defaultLimit int
	maxLimit     int
	logger       *logrus.Logger
}

func NewRecommendationHandler(
	recommender services.RecommendationServiceInterface,
	defaultLimit, maxLimit int,
	logger *logrus.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		recommender:  recommender,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger,
	}
}

// Get returns the ranked catalog for a user.
func (h *RecommendationHandler) Get(c *gin.Context) {
	limit, ok := h.parseLimit(c)
	if !ok {
		return
	}

	result, err := h.recommender.Recommend(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to generate recommendations")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Score returns a single item's score and breakdown for a user.
func (h *RecommendationHandler) Score(c *gin.Context) {
	score, err := h.recommender.ScoreItem(c.Request.Context(), c.Param("userId"), c.Param("itemId"))
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to score item")
		return
	}

	c.JSON(http.StatusOK, score)
}

// Similar returns an item's similarity neighborhood.
func (h *RecommendationHandler) Similar(c *gin.Context) {
	limit, ok := h.parseLimit(c)
	if !ok {
		return
	}

	similar, err := h.recommender.Similar(c.Request.Context(), c.Param("itemId"), limit)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to load similar items")
		return
	}

	c.JSON(http.StatusOK, similar)
}

// parseLimit reads ?limit=N, clamping to the configured maximum. It writes
// the error response itself when the value is malformed.
func (h *RecommendationHandler) parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return h.defaultLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		respondError(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
		return 0, false
	}
	if h.maxLimit > 0 && limit > h.maxLimit {
		limit = h.maxLimit
	}
	return limit, true
}
