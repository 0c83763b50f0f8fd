package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines account persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// Update persists the account using an optimistic version check and
	// returns ErrConcurrentModification when the row changed underneath.
	Update(ctx context.Context, account *Account) error

	// LockForUpdate acquires a row lock for the duration of the enclosing
	// transaction and returns the current account state.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)

	// SetFrozenByOwner flips the frozen flag on every account of a client
	// and returns the number of affected rows.
	SetFrozenByOwner(ctx context.Context, ownerID uuid.UUID, frozen bool) (int64, error)

	// ListAccrualCandidates returns open, unfrozen deposit accounts with a
	// positive interest rate and a positive balance.
	ListAccrualCandidates(ctx context.Context) ([]*Account, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountID.String()
}

// ErrAccountClosed indicates the account was soft-closed and accepts no postings
type ErrAccountClosed struct {
	AccountID uuid.UUID
}

func (e ErrAccountClosed) Error() string {
	return "account is closed: " + e.AccountID.String()
}

// ErrAccountFrozen indicates the owning client is blocked
type ErrAccountFrozen struct {
	AccountID uuid.UUID
}

func (e ErrAccountFrozen) Error() string {
	return "account is frozen: " + e.AccountID.String()
}

// ErrConcurrentModification indicates optimistic lock failure; the caller may
// retry the whole operation.
type ErrConcurrentModification struct {
	AccountID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for account: " + e.AccountID.String()
}

// ErrCurrencyMismatch indicates the requested currency differs from the account's
type ErrCurrencyMismatch struct {
	Requested string
	Actual    string
}

func (e ErrCurrencyMismatch) Error() string {
	return "currency mismatch: requested " + e.Requested + ", account holds " + e.Actual
}
