package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/temcen/glowrank/internal/validation"
)

// maxBodyBytes bounds request bodies read for validation.
const maxBodyBytes = 1 << 20

// ValidationMiddleware checks request bodies against JSON schemas
type ValidationMiddleware struct {
	validator *validation.SchemaValidator
}

func NewValidationMiddleware(validator *validation.SchemaValidator) *ValidationMiddleware {
	return &ValidationMiddleware{validator: validator}
}

// ValidatePreferenceAnswers validates quiz submissions.
func (vm *ValidationMiddleware) ValidatePreferenceAnswers() gin.HandlerFunc {
	return vm.validateRequestBody(validation.PreferenceAnswers)
}

// ValidateCatalogEvent validates catalog change events.
func (vm *ValidationMiddleware) ValidateCatalogEvent() gin.HandlerFunc {
	return vm.validateRequestBody(validation.CatalogEvent)
}

func (vm *ValidationMiddleware) validateRequestBody(schemaName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
		if err != nil {
			vm.sendValidationError(c, "BODY_READ_ERROR", "Failed to read request body", nil)
			return
		}
		if len(bodyBytes) > maxBodyBytes {
			vm.sendValidationError(c, "BODY_TOO_LARGE", "Request body is too large", nil)
			return
		}

		// Restore request body for downstream handlers
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		if len(bodyBytes) == 0 {
			vm.sendValidationError(c, "EMPTY_BODY", "Request body is required", nil)
			return
		}

		if !json.Valid(bodyBytes) {
			vm.sendValidationError(c, "INVALID_JSON", "Request body must be valid JSON", nil)
			return
		}

		result := vm.validator.Validate(schemaName, bodyBytes)
		if !result.Valid {
			vm.sendValidationError(c, "VALIDATION_ERROR", "Request validation failed", result.Details())
			return
		}

		c.Next()
	}
}

func (vm *ValidationMiddleware) sendValidationError(c *gin.Context, code, message string, details map[string]interface{}) {
	body := gin.H{
		"code":      code,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"path":      c.Request.URL.Path,
		"method":    c.Request.Method,
	}
	if details != nil {
		body["details"] = details
	}
	if id := c.GetString("request_id"); id != "" {
		body["requestId"] = id
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": body})
}
