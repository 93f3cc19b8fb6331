package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soul-service/soul_service/internal/domain/services/users"
	"github.com/soul-service/soul_service/pkg/logger"
)

// UserHandler serves user registration and lookup
type UserHandler struct {
	userService *users.Service
	logger      *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *users.Service, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRequest is the JSON body for POST /api/v1/users
type RegisterRequest struct {
	Username  string  `json:"username" binding:"required,min=3,max=64"`
	InviterID *string `json:"inviter_id,omitempty" binding:"omitempty,uuid"`
}

// Register handles POST /api/v1/users
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	var inviterID *uuid.UUID
	if req.InviterID != nil {
		id := uuid.MustParse(*req.InviterID)
		inviterID = &id
	}

	user, err := h.userService.Register(c.Request.Context(), &users.RegisterRequest{
		Username:  req.Username,
		InviterID: inviterID,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	user, err := h.userService.Get(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
