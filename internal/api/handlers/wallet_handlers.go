package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soul-service/soul_service/internal/domain/entities"
	"github.com/soul-service/soul_service/internal/domain/services/ledger"
	"github.com/soul-service/soul_service/internal/infrastructure/cache"
	"github.com/soul-service/soul_service/pkg/logger"
)

const walletCacheTTL = 10 * time.Second

// WalletHandler serves wallet reads. Balances are cached briefly; the cache is
// advisory and never feeds the ledger write path.
type WalletHandler struct {
	ledgerService *ledger.Service
	cache         cache.RedisClient
	logger        *logger.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(ledgerService *ledger.Service, cache cache.RedisClient, logger *logger.Logger) *WalletHandler {
	return &WalletHandler{
		ledgerService: ledgerService,
		cache:         cache,
		logger:        logger,
	}
}

// GetWallet handles GET /api/v1/wallets/:id
func (h *WalletHandler) GetWallet(c *gin.Context) {
	walletID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "invalid wallet ID", nil)
		return
	}

	if h.cache != nil {
		var cached entities.Wallet
		if err := h.cache.Get(c.Request.Context(), cache.WalletBalanceKey(walletID.String()), &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	wallet, err := h.ledgerService.GetWallet(c.Request.Context(), walletID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(c.Request.Context(), cache.WalletBalanceKey(walletID.String()), wallet, walletCacheTTL); err != nil {
			h.logger.Warn("Failed to cache wallet", "wallet_id", walletID, "error", err)
		}
	}

	c.JSON(http.StatusOK, wallet)
}

// TransferRequest is the JSON body for POST /api/v1/transfers
type TransferRequest struct {
	FromWalletID   string  `json:"from_wallet_id" binding:"required,uuid"`
	ToWalletID     string  `json:"to_wallet_id" binding:"required,uuid"`
	Amount         string  `json:"amount" binding:"required"`
	Type           string  `json:"type" binding:"required,txtype"`
	Description    *string `json:"description,omitempty"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
}

// Transfer handles POST /api/v1/transfers
func (h *WalletHandler) Transfer(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	fromID := uuid.MustParse(req.FromWalletID)
	toID := uuid.MustParse(req.ToWalletID)
	amount, err := parseDecimal(req.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid amount", nil)
		return
	}

	transaction, err := h.ledgerService.Transfer(c.Request.Context(), userID, &entities.TransferRequest{
		FromWalletID:   fromID,
		ToWalletID:     toID,
		Amount:         amount,
		Type:           entities.TransactionType(req.Type),
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if h.cache != nil {
		// Best effort invalidation; the TTL bounds staleness anyway
		h.cache.Del(c.Request.Context(), cache.WalletBalanceKey(fromID.String()))
		h.cache.Del(c.Request.Context(), cache.WalletBalanceKey(toID.String()))
	}

	c.JSON(http.StatusCreated, transaction)
}
