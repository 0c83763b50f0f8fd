package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/bank-accounts-service/internal/domain/account"
	"github.com/bank-accounts-service/internal/domain/transaction"
	"github.com/bank-accounts-service/internal/ledger"
)

// respondDomainError maps domain errors to HTTP status codes. Anything
// unrecognized is treated as an internal fault.
func respondDomainError(c *gin.Context, err error) {
	var (
		notFound    account.ErrAccountNotFound
		txnNotFound transaction.ErrTransactionNotFound
		closed      account.ErrAccountClosed
		frozen      account.ErrAccountFrozen
		conflict    account.ErrConcurrentModification
		mismatch    account.ErrCurrencyMismatch
		sameAccount ledger.ErrSameAccountTransfer
		unknownKind ledger.ErrUnknownPostingKind
	)

	switch {
	case errors.As(err, &notFound):
		RespondNotFound(c, "Account not found")
	case errors.As(err, &txnNotFound):
		RespondNotFound(c, "Transaction not found")
	case errors.As(err, &closed), errors.As(err, &frozen):
		RespondConflict(c, "ACCOUNT_INACTIVE", err.Error())
	case errors.As(err, &conflict):
		RespondConflict(c, "CONCURRENCY_CONFLICT", "The account was modified concurrently, retry the operation")
	case errors.Is(err, account.ErrInsufficientFunds):
		RespondUnprocessable(c, "INSUFFICIENT_FUNDS", err.Error())
	case errors.As(err, &mismatch),
		errors.As(err, &sameAccount),
		errors.As(err, &unknownKind),
		errors.Is(err, account.ErrInvalidAmount),
		errors.Is(err, account.ErrInvalidAccountType),
		errors.Is(err, account.ErrInvalidCurrencyFormat),
		errors.Is(err, account.ErrInterestRateRequired),
		errors.Is(err, account.ErrInterestRateNotAllowed),
		errors.Is(err, account.ErrBalanceNotZero):
		RespondBadRequest(c, err.Error())
	default:
		RespondInternalError(c)
	}
}
