package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bank-accounts-service/internal/accounts"
	"github.com/bank-accounts-service/internal/api/middleware"
	"github.com/bank-accounts-service/internal/domain/account"
)

// AccountsService is the account lifecycle surface consumed by the handler
type AccountsService interface {
	Open(ctx context.Context, params accounts.OpenParams) (*account.Account, error)
	Close(ctx context.Context, accountID, correlationID, causationID uuid.UUID) (*account.Account, error)
	UpdateInterestRate(ctx context.Context, accountID uuid.UUID, rate *decimal.Decimal) (*account.Account, error)
	Get(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
	GetStatement(ctx context.Context, accountID uuid.UUID, from, to time.Time) (*accounts.Statement, error)
}

// AccountHandler handles HTTP requests for account lifecycle operations
type AccountHandler struct {
	accountsService AccountsService
	logger          *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountsService AccountsService) *AccountHandler {
	return &AccountHandler{
		accountsService: accountsService,
		logger:          logger,
	}
}

// Open handles opening a new account
func (h *AccountHandler) Open(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		RespondBadRequest(c, "Invalid owner ID")
		return
	}

	acc, err := h.accountsService.Open(c.Request.Context(), accounts.OpenParams{
		OwnerID:       ownerID,
		Type:          account.Type(req.Type),
		Currency:      req.Currency,
		InterestRate:  req.InterestRate,
		CorrelationID: middleware.GetCorrelationUUID(c),
	})
	if err != nil {
		h.logger.Error("Failed to open account", "error", err)
		respondDomainError(c, err)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// GetByID retrieves an account by its ID, returning 404 if not found
func (h *AccountHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	acc, err := h.accountsService.Get(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// Update changes the account's interest rate
func (h *AccountHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := h.accountsService.UpdateInterestRate(c.Request.Context(), id, req.InterestRate)
	if err != nil {
		h.logger.Error("Failed to update account", "account_id", id.String(), "error", err)
		respondDomainError(c, err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// Close soft-closes a drained account
func (h *AccountHandler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	acc, err := h.accountsService.Close(c.Request.Context(), id, middleware.GetCorrelationUUID(c), uuid.Nil)
	if err != nil {
		h.logger.Error("Failed to close account", "account_id", id.String(), "error", err)
		respondDomainError(c, err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// GetStatement returns the account with its transactions for a period. The
// period defaults to the last 30 days when from/to are omitted.
func (h *AccountHandler) GetStatement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if raw := c.Query("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(c, "Invalid 'from' timestamp, expected RFC3339")
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(c, "Invalid 'to' timestamp, expected RFC3339")
			return
		}
	}
	if to.Before(from) {
		RespondBadRequest(c, "'to' must not precede 'from'")
		return
	}

	statement, err := h.accountsService.GetStatement(c.Request.Context(), id, from, to)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	transactions := make([]TransactionResponse, 0, len(statement.Transactions))
	for _, txn := range statement.Transactions {
		transactions = append(transactions, mapTransactionToResponse(txn))
	}

	RespondOK(c, StatementResponse{
		Account:      mapAccountToResponse(statement.Account),
		From:         statement.From.Format(time.RFC3339),
		To:           statement.To.Format(time.RFC3339),
		Transactions: transactions,
	})
}
