package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/services"
)

type UserHandler struct {
	logger        *logrus.Logger
	preferenceSvc services.PreferenceServiceInterface
}

type preferencesRequest struct {
	Answers map[string]interface{} `json:"answers" binding:"required"`
}

func NewUserHandler(logger *logrus.Logger, preferenceSvc services.PreferenceServiceInterface) *UserHandler {
	return &UserHandler{
		logger:        logger,
		preferenceSvc: preferenceSvc,
	}
}

// SavePreferences stores quiz answers and returns the derived ranking context.
func (h *UserHandler) SavePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Invalid request body format")
		return
	}

	userID := c.Param("userId")
	userCtx, err := h.preferenceSvc.SaveAnswers(c.Request.Context(), userID, req.Answers)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to save preferences")
		return
	}

	h.logger.WithField("user_id", userID).Info("Preferences saved")
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"context": userCtx,
	})
}
