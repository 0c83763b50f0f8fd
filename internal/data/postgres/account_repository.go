// Package postgres provides PostgreSQL implementations of the domain
// repositories. All mutation paths run against a Querier so they can operate
// either on the pool or inside one pgx transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bank-accounts-service/internal/domain/account"
	"github.com/bank-accounts-service/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing atomic operations
// across multiple repository calls.
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const accountColumns = `id, owner_id, type, currency, balance, interest_rate, opening_date, closing_date, is_frozen, version`

func scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID,
		&acc.OwnerID,
		&acc.Type,
		&acc.Currency,
		&acc.Balance,
		&acc.InterestRate,
		&acc.OpeningDate,
		&acc.ClosingDate,
		&acc.IsFrozen,
		&acc.Version,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Create stores a new account in the database
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (id, owner_id, type, currency, balance, interest_rate, opening_date, closing_date, is_frozen, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.OwnerID,
		acc.Type,
		acc.Currency,
		acc.Balance,
		acc.InterestRate,
		acc.OpeningDate,
		acc.ClosingDate,
		acc.IsFrozen,
		acc.Version,
	)
	if err != nil {
		r.logger.Error("Failed to create account", "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
	`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// Update persists an account using an optimistic version check. The in-memory
// model bumps Version on every mutation, so the previous version is checked.
func (r *AccountRepository) Update(ctx context.Context, acc *account.Account) error {
	query := `
		UPDATE accounts
		SET balance = $1, interest_rate = $2, closing_date = $3, is_frozen = $4, version = $5
		WHERE id = $6 AND version = $7
	`

	result, err := r.querier.Exec(ctx, query,
		acc.Balance,
		acc.InterestRate,
		acc.ClosingDate,
		acc.IsFrozen,
		acc.Version,
		acc.ID,
		acc.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update account", "id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to update account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{AccountID: acc.ID}
	}

	return nil
}

// LockForUpdate obtains a row lock on the account and returns its current
// state. Must be used within a transaction; the lock serializes conflicting
// mutations of the same account.
func (r *AccountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to lock account for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock account for update: %w", err)
	}

	return acc, nil
}

// SetFrozenByOwner flips the frozen flag on all accounts of a client in one
// statement and returns the number of affected rows. Rows already in the
// requested state are skipped so repeated application is a no-op.
func (r *AccountRepository) SetFrozenByOwner(ctx context.Context, ownerID uuid.UUID, frozen bool) (int64, error) {
	query := `
		UPDATE accounts
		SET is_frozen = $1, version = version + 1
		WHERE owner_id = $2 AND is_frozen <> $1
	`

	result, err := r.querier.Exec(ctx, query, frozen, ownerID)
	if err != nil {
		r.logger.Error("Failed to set frozen flag for owner", "owner_id", ownerID.String(), "frozen", frozen, "error", err)
		return 0, fmt.Errorf("failed to set frozen flag for owner %s: %w", ownerID.String(), err)
	}

	return result.RowsAffected(), nil
}

// ListAccrualCandidates scans for open, unfrozen deposit accounts eligible
// for interest accrual.
func (r *AccountRepository) ListAccrualCandidates(ctx context.Context) ([]*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE type = $1
		  AND interest_rate > 0
		  AND balance > 0
		  AND closing_date IS NULL
		  AND is_frozen = FALSE
		ORDER BY opening_date ASC
	`

	rows, err := r.querier.Query(ctx, query, account.TypeDeposit)
	if err != nil {
		r.logger.Error("Failed to list accrual candidates", "error", err)
		return nil, fmt.Errorf("failed to list accrual candidates: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			r.logger.Error("Failed to scan accrual candidate", "error", err)
			return nil, fmt.Errorf("failed to scan accrual candidate: %w", err)
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over accrual candidates", "error", err)
		return nil, fmt.Errorf("error iterating over accrual candidates: %w", err)
	}

	return accounts, nil
}
