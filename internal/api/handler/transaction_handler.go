package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bank-accounts-service/internal/api/middleware"
	"github.com/bank-accounts-service/internal/domain/transaction"
	"github.com/bank-accounts-service/internal/ledger"
)

// LedgerService is the posting surface consumed by the handler
type LedgerService interface {
	ApplyPosting(ctx context.Context, params ledger.PostingParams) (*transaction.Transaction, error)
	ApplyTransfer(ctx context.Context, params ledger.TransferParams) (*ledger.TransferResult, error)
}

// TransactionHandler handles HTTP requests for postings and transfers
type TransactionHandler struct {
	ledgerService   LedgerService
	transactionRepo transaction.Repository
	logger          *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, ledgerService LedgerService, transactionRepo transaction.Repository) *TransactionHandler {
	return &TransactionHandler{
		ledgerService:   ledgerService,
		transactionRepo: transactionRepo,
		logger:          logger,
	}
}

// CreatePosting applies a single credit or debit to an account
func (h *TransactionHandler) CreatePosting(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var req PostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	txn, err := h.ledgerService.ApplyPosting(c.Request.Context(), ledger.PostingParams{
		AccountID:     accountID,
		Kind:          transaction.Kind(req.Kind),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Description:   req.Description,
		CorrelationID: middleware.GetCorrelationUUID(c),
	})
	if err != nil {
		h.logger.Error("Failed to apply posting", "account_id", accountID.String(), "error", err)
		respondDomainError(c, err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(txn))
}

// CreateTransfer moves money between two accounts
func (h *TransactionHandler) CreateTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	sourceID, err := uuid.Parse(req.SourceAccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid source account ID")
		return
	}
	destinationID, err := uuid.Parse(req.DestinationAccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid destination account ID")
		return
	}

	result, err := h.ledgerService.ApplyTransfer(c.Request.Context(), ledger.TransferParams{
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               req.Amount,
		Currency:             req.Currency,
		Kind:                 transaction.Kind(req.Kind),
		Description:          req.Description,
		CorrelationID:        middleware.GetCorrelationUUID(c),
	})
	if err != nil {
		h.logger.Error("Failed to apply transfer", "error", err)
		respondDomainError(c, err)
		return
	}

	RespondCreated(c, TransferResponse{
		ReceiverTransactionID: result.ReceiverTransactionID.String(),
		SenderTransactionID:   result.SenderTransactionID.String(),
	})
}

// GetByID retrieves a transaction by its ID
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	txn, err := h.transactionRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}
