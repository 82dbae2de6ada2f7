package handler

import (
	"errors"
	"log"
	"net/http"

	models "github.com/tunecast/tunecast/src/server/model"

	"github.com/gin-gonic/gin"
)

// APIResponse is the standard success envelope
type APIResponse struct {
	OK      bool        `json:"ok,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	ID      string      `json:"id,omitempty"`
}

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Common error codes
const (
	ErrInvalidInput     = "INVALID_INPUT"
	ErrNotFound         = "NOT_FOUND"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrForbidden        = "FORBIDDEN"
	ErrConflict         = "CONFLICT"
	ErrValidationFailed = "VALIDATION_FAILED"
	ErrRateLimited      = "RATE_LIMITED"
	ErrBadRequest       = "BAD_REQUEST"

	ErrInternal        = "INTERNAL_ERROR"
	ErrServiceUnavail  = "SERVICE_UNAVAILABLE"
	ErrExternalService = "EXTERNAL_SERVICE_ERROR"
)

// RespondError sends a standardized error response
func RespondError(c *gin.Context, status int, code string, message string, details ...map[string]interface{}) {
	response := ErrorResponse{
		Error:  message,
		Code:   code,
		Status: status,
	}
	if len(details) > 0 {
		response.Details = details[0]
	}
	c.JSON(status, response)
}

// RespondSuccess sends a standardized action success response
func RespondSuccess(c *gin.Context, message string, data ...interface{}) {
	response := APIResponse{OK: true, Message: message}
	if len(data) > 0 {
		response.Data = data[0]
	}
	c.JSON(http.StatusOK, response)
}

// RespondData sends a bare data payload
func RespondData(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondModelError maps model-layer errors onto the error taxonomy.
// Unknown errors are logged and returned as a generic 500 so internals
// never leak to clients.
func RespondModelError(c *gin.Context, err error) {
	var ve *models.ValidationError
	switch {
	case errors.Is(err, models.ErrNotFound):
		RespondError(c, http.StatusNotFound, ErrNotFound, "Not found")
	case errors.Is(err, models.ErrNotDraft):
		RespondError(c, http.StatusBadRequest, ErrBadRequest, "Only draft releases can be deleted")
	case errors.Is(err, models.ErrInvalidTransition):
		RespondError(c, http.StatusBadRequest, ErrBadRequest, "Invalid status transition")
	case errors.Is(err, models.ErrIdentityRequired):
		RespondError(c, http.StatusForbidden, ErrForbidden, "Identity verification required before submitting")
	case errors.As(err, &ve):
		RespondError(c, http.StatusBadRequest, ErrValidationFailed, ve.Error(), map[string]interface{}{
			"errors": ve.Errors,
		})
	default:
		log.Printf("❌ Internal error: %v", err)
		RespondError(c, http.StatusInternalServerError, ErrInternal, "Internal server error")
	}
}
