// Package accounts manages the account lifecycle and client-level freeze
// control. Lifecycle mutations stage their announcement event in the same
// database transaction as the state change.
package accounts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bank-accounts-service/internal/domain/account"
	"github.com/bank-accounts-service/internal/domain/events"
	"github.com/bank-accounts-service/internal/domain/inbox"
	"github.com/bank-accounts-service/internal/domain/outbox"
	"github.com/bank-accounts-service/internal/domain/transaction"
	"github.com/bank-accounts-service/internal/platform/persistence"
)

// Handler names recorded in the consumed-message ledger
const (
	HandlerFreeze   = "FreezeAccountsOfClient"
	HandlerUnfreeze = "UnfreezeAccountsOfClient"
)

// OpenParams describes a new account request
type OpenParams struct {
	OwnerID       uuid.UUID
	Type          account.Type
	Currency      string
	InterestRate  *decimal.Decimal
	CorrelationID uuid.UUID
	CausationID   uuid.UUID
}

// Statement is an account snapshot with its transactions for a period
type Statement struct {
	Account      *account.Account           `json:"account"`
	From         time.Time                  `json:"from"`
	To           time.Time                  `json:"to"`
	Transactions []*transaction.Transaction `json:"transactions"`
}

// Service manages account lifecycle operations
type Service struct {
	logger          *slog.Logger
	txRunner        persistence.TxRunner
	accountRepo     account.Repository
	transactionRepo transaction.Repository
	outboxRepo      outbox.Repository
	inboxRepo       inbox.Repository
}

// NewService creates an accounts service
func NewService(
	logger *slog.Logger,
	txRunner persistence.TxRunner,
	accountRepo account.Repository,
	transactionRepo transaction.Repository,
	outboxRepo outbox.Repository,
	inboxRepo inbox.Repository,
) *Service {
	return &Service{
		logger:          logger,
		txRunner:        txRunner,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		inboxRepo:       inboxRepo,
	}
}

// Open creates an account and stages its AccountOpened event atomically
func (s *Service) Open(ctx context.Context, params OpenParams) (*account.Account, error) {
	acc, err := account.NewAccount(params.OwnerID, params.Type, params.Currency, params.InterestRate)
	if err != nil {
		return nil, err
	}

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.accountRepo.WithTx(tx).Create(ctx, acc); err != nil {
			return err
		}

		env := events.NewEnvelope(params.CorrelationID, params.CausationID)
		msg, err := outbox.NewMessage(events.TypeAccountOpened, env, events.AccountOpened{
			Envelope:  env,
			AccountID: acc.ID,
			OwnerID:   acc.OwnerID,
			Currency:  acc.Currency,
			Type:      string(acc.Type),
		})
		if err != nil {
			return err
		}
		return s.outboxRepo.WithTx(tx).Create(ctx, msg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Opened account",
		"account_id", acc.ID.String(),
		"owner_id", acc.OwnerID.String(),
		"type", string(acc.Type),
	)
	return acc, nil
}

// Close soft-closes a drained account and stages its AccountClosed event
func (s *Service) Close(ctx context.Context, accountID, correlationID, causationID uuid.UUID) (*account.Account, error) {
	var acc *account.Account
	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accountRepo.WithTx(tx)

		var err error
		acc, err = accounts.LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := acc.Close(time.Now()); err != nil {
			return err
		}
		if err := accounts.Update(ctx, acc); err != nil {
			return err
		}

		env := events.NewEnvelope(correlationID, causationID)
		msg, err := outbox.NewMessage(events.TypeAccountClosed, env, events.AccountClosed{
			Envelope:  env,
			AccountID: acc.ID,
			ClosedAt:  *acc.ClosingDate,
		})
		if err != nil {
			return err
		}
		return s.outboxRepo.WithTx(tx).Create(ctx, msg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Closed account", "account_id", accountID.String())
	return acc, nil
}

// UpdateInterestRate replaces the account's interest rate. The pairing rules
// from account opening apply; accruals after the change use the new rate.
func (s *Service) UpdateInterestRate(ctx context.Context, accountID uuid.UUID, rate *decimal.Decimal) (*account.Account, error) {
	var acc *account.Account
	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accountRepo.WithTx(tx)

		var err error
		acc, err = accounts.LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := acc.EnsureActive(); err != nil {
			return err
		}
		if err := acc.SetInterestRate(rate); err != nil {
			return err
		}
		return accounts.Update(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Updated interest rate", "account_id", accountID.String())
	return acc, nil
}

// Get returns the account by identifier. Closed and frozen accounts remain readable.
func (s *Service) Get(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, accountID)
}

// GetStatement returns the account with its transactions within [from, to]
func (s *Service) GetStatement(ctx context.Context, accountID uuid.UUID, from, to time.Time) (*Statement, error) {
	acc, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.transactionRepo.ListByAccount(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}

	return &Statement{
		Account:      acc,
		From:         from,
		To:           to,
		Transactions: transactions,
	}, nil
}

// FreezeAccountsOfClient freezes every account of the client in response to an
// external blocking event. The dedup record, the freeze and the staged
// announcement commit in one transaction; a replayed event is a silent no-op.
func (s *Service) FreezeAccountsOfClient(ctx context.Context, eventID, clientID uuid.UUID) error {
	return s.setFrozenForClient(ctx, eventID, clientID, true)
}

// UnfreezeAccountsOfClient lifts the freeze for every account of the client
func (s *Service) UnfreezeAccountsOfClient(ctx context.Context, eventID, clientID uuid.UUID) error {
	return s.setFrozenForClient(ctx, eventID, clientID, false)
}

func (s *Service) setFrozenForClient(ctx context.Context, eventID, clientID uuid.UUID, frozen bool) error {
	handler := HandlerUnfreeze
	eventType := events.TypeClientAccountsUnfrozen
	if frozen {
		handler = HandlerFreeze
		eventType = events.TypeClientAccountsFrozen
	}

	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		consumed := inbox.NewConsumedMessage(eventID, handler)
		if err := s.inboxRepo.WithTx(tx).CreateConsumed(ctx, consumed); err != nil {
			return err
		}

		affected, err := s.accountRepo.WithTx(tx).SetFrozenByOwner(ctx, clientID, frozen)
		if err != nil {
			return err
		}
		s.logger.Info("Updated frozen flag for client accounts",
			"client_id", clientID.String(),
			"frozen", frozen,
			"affected", affected,
		)

		env := events.NewEnvelope(uuid.Nil, eventID)
		var msg *outbox.Message
		if frozen {
			msg, err = outbox.NewMessage(eventType, env, events.ClientAccountsFrozen{
				Envelope: env,
				ClientID: clientID,
			})
		} else {
			msg, err = outbox.NewMessage(eventType, env, events.ClientAccountsUnfrozen{
				Envelope: env,
				ClientID: clientID,
			})
		}
		if err != nil {
			return err
		}
		return s.outboxRepo.WithTx(tx).Create(ctx, msg)
	})
	if err != nil {
		var already inbox.ErrAlreadyConsumed
		if errors.As(err, &already) {
			s.logger.Info("Skipping already consumed blocking event",
				"event_id", eventID.String(),
				"handler", handler,
			)
			return nil
		}
		return err
	}

	return nil
}
