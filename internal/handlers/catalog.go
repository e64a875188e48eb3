package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/services"
	"github.com/temcen/glowrank/pkg/models"
)

type CatalogHandler struct {
	indexer   services.CatalogIndexerInterface
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewCatalogHandler(indexer services.CatalogIndexerInterface, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		indexer:   indexer,
		validator: validator.New(),
		logger:    logger,
	}
}

// SubmitEvent accepts a new/edit catalog event. Queued events answer 202,
// synchronously applied ones answer 200 with the new index summary.
func (h *CatalogHandler) SubmitEvent(c *gin.Context) {
	var event models.CatalogEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Invalid request body format")
		return
	}

	if err := h.validator.Struct(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Catalog event validation failed",
				"details": h.formatValidationErrors(err),
			},
		})
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	result, err := h.indexer.Submit(c.Request.Context(), event)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to process catalog event")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"action":  event.Action,
		"item_id": event.Item.ID,
		"queued":  result.Queued,
	}).Info("Catalog event accepted")

	status := http.StatusOK
	if result.Queued {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

// Reindex refits the catalog index synchronously.
func (h *CatalogHandler) Reindex(c *gin.Context) {
	summary, err := h.indexer.Reindex(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to reindex catalog")
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *CatalogHandler) formatValidationErrors(err error) map[string]string {
	errs := make(map[string]string)

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["general"] = err.Error()
		return errs
	}

	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			errs[fe.Namespace()] = "is required"
		case "oneof":
			errs[fe.Namespace()] = fmt.Sprintf("must be one of: %s", fe.Param())
		default:
			errs[fe.Namespace()] = fmt.Sprintf("failed %s validation", fe.Tag())
		}
	}
	return errs
}
