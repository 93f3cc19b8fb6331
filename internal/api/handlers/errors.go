package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soul-service/soul_service/internal/domain/entities"
	domainerrors "github.com/soul-service/soul_service/internal/domain/errors"
)

// Error codes as constants for consistent error responses across handlers
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidID         = "INVALID_ID"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// handleServiceError maps domain errors onto HTTP responses. Internal errors
// never leak their cause to the client.
func handleServiceError(c *gin.Context, err error) {
	var domainErr *domainerrors.DomainError
	if errors.As(err, &domainErr) {
		status := http.StatusInternalServerError
		switch {
		case domainerrors.IsNotFound(err):
			status = http.StatusNotFound
		case domainerrors.IsAlreadyExists(err):
			status = http.StatusConflict
		case domainerrors.IsInvalidInput(err):
			status = http.StatusBadRequest
		case domainerrors.IsForbidden(err):
			status = http.StatusForbidden
		case domainerrors.IsInsufficientFunds(err):
			status = http.StatusUnprocessableEntity
		}

		if status == http.StatusInternalServerError {
			respondError(c, status, ErrCodeInternalError, "internal server error", nil)
			return
		}

		c.JSON(status, entities.ErrorResponse{
			Code:    domainErr.Code,
			Message: domainErr.Message,
			Details: domainErr.Details,
		})
		return
	}

	respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error", nil)
}
