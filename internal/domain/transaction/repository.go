package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines transaction persistence operations. Rows are append-only.
type Repository interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// ListByAccount returns an account's transactions within [from, to],
	// newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*Transaction, error)

	// LastAccrualDate returns the date of the most recent interest accrual
	// posting for the account, or nil when none exists.
	LastAccrualDate(ctx context.Context, accountID uuid.UUID) (*time.Time, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates missing transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}
