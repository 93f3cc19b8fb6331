package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/soul-service/soul_service/internal/domain/entities"
	"github.com/soul-service/soul_service/internal/domain/services/events"
	"github.com/soul-service/soul_service/pkg/logger"
)

// EventHandler serves event creation and participation
type EventHandler struct {
	eventService *events.Service
	logger       *logger.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *events.Service, logger *logger.Logger) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		logger:       logger,
	}
}

// CreateEventRequest is the JSON body for POST /api/v1/events
type CreateEventRequest struct {
	Deposit               *string   `json:"deposit,omitempty"`
	BonusDistributionType string    `json:"bonus_distribution_type" binding:"required,oneof=ALL FIRST FIRST_N"`
	BonusDistributionN    *int      `json:"bonus_distribution_n,omitempty" binding:"omitempty,gt=0"`
	FinishDate            time.Time `json:"finish_date" binding:"required"`
}

// CreateEvent handles POST /api/v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	var deposit *decimal.Decimal
	if req.Deposit != nil {
		d, err := parseDecimal(*req.Deposit)
		if err != nil {
			respondBadRequest(c, "invalid deposit")
			return
		}
		deposit = &d
	}

	event, err := h.eventService.Create(c.Request.Context(), userID, &entities.CreateEventRequest{
		Deposit:               deposit,
		BonusDistributionType: entities.BonusDistributionType(req.BonusDistributionType),
		BonusDistributionN:    req.BonusDistributionN,
		FinishDate:            req.FinishDate,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// GetEvent handles GET /api/v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	eventID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "invalid event ID", nil)
		return
	}

	event, err := h.eventService.Get(c.Request.Context(), eventID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// JoinEvent handles POST /api/v1/events/:id/join
func (h *EventHandler) JoinEvent(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	eventID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "invalid event ID", nil)
		return
	}

	activity, err := h.eventService.Join(c.Request.Context(), userID, eventID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, activity)
}

// ConfirmActivity handles POST /api/v1/activities/:id/confirm
func (h *EventHandler) ConfirmActivity(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	activityID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "invalid activity ID", nil)
		return
	}

	if err := h.eventService.Confirm(c.Request.Context(), userID, activityID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"confirmed": true})
}
