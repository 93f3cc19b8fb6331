package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soul-service/soul_service/internal/domain/entities"
	"github.com/soul-service/soul_service/pkg/logger"
)

// TransactionHandler serves the transaction history read API
type TransactionHandler struct {
	txRepo     transactionStore
	walletRepo walletOwnershipStore
	logger     *logger.Logger
}

type transactionStore interface {
	GetByID(ctx context.Context, txID uuid.UUID) (*entities.Transaction, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entities.Transaction, error)
}

type walletOwnershipStore interface {
	GetWithOwnership(ctx context.Context, walletID uuid.UUID) (*entities.WalletOwnership, error)
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(txRepo transactionStore, walletRepo walletOwnershipStore, logger *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		txRepo:     txRepo,
		walletRepo: walletRepo,
		logger:     logger,
	}
}

// ListTransactions handles GET /api/v1/transactions?wallet_id=...
// Only a wallet's owner (or the owning event's creator) may read its history.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	walletID, err := uuid.Parse(c.Query("wallet_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "invalid wallet_id", nil)
		return
	}

	ownership, err := h.walletRepo.GetWithOwnership(c.Request.Context(), walletID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if !ownership.CanBeDebitedBy(userID) {
		respondError(c, http.StatusForbidden, ErrCodeForbidden, "wallet history is not accessible", nil)
		return
	}

	limit, offset := getPagination(c)
	transactions, err := h.txRepo.ListByWallet(c.Request.Context(), walletID, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"limit":        limit,
		"offset":       offset,
	})
}

// GetTransaction handles GET /api/v1/transactions/:id
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "authentication required")
		return
	}

	txID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "invalid transaction ID", nil)
		return
	}

	transaction, err := h.txRepo.GetByID(c.Request.Context(), txID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	// The caller must be able to see at least one side of the transfer
	if !h.canSeeWallet(c, userID, transaction.FromWalletID) && !h.canSeeWallet(c, userID, transaction.ToWalletID) {
		respondError(c, http.StatusForbidden, ErrCodeForbidden, "transaction is not accessible", nil)
		return
	}

	c.JSON(http.StatusOK, transaction)
}

func (h *TransactionHandler) canSeeWallet(c *gin.Context, userID, walletID uuid.UUID) bool {
	ownership, err := h.walletRepo.GetWithOwnership(c.Request.Context(), walletID)
	if err != nil {
		return false
	}
	return ownership.CanBeDebitedBy(userID)
}
