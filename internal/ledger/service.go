// Package ledger applies balance mutations to accounts. Every mutation runs
// in one database transaction that also appends the transaction rows and
// stages exactly one outbox event, so the ledger and the event stream can
// never diverge.
package ledger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bank-accounts-service/internal/domain/account"
	"github.com/bank-accounts-service/internal/domain/events"
	"github.com/bank-accounts-service/internal/domain/outbox"
	"github.com/bank-accounts-service/internal/domain/transaction"
	"github.com/bank-accounts-service/internal/platform/persistence"
)

// PostingParams describes one single-account balance adjustment
type PostingParams struct {
	AccountID     uuid.UUID
	Kind          transaction.Kind
	Amount        decimal.Decimal
	Currency      string
	Description   string
	CorrelationID uuid.UUID
	CausationID   uuid.UUID
}

// TransferParams describes a paired movement between two accounts. Kind sets
// the direction relative to the source account: Debit moves money from source
// to destination, Credit is the mirror and pulls money from the destination.
type TransferParams struct {
	SourceAccountID      uuid.UUID
	DestinationAccountID uuid.UUID
	Amount               decimal.Decimal
	Currency             string
	Kind                 transaction.Kind
	Description          string
	CorrelationID        uuid.UUID
	CausationID          uuid.UUID
}

// TransferResult reports the identifiers of the two created transaction rows
type TransferResult struct {
	ReceiverTransactionID uuid.UUID
	SenderTransactionID   uuid.UUID
}

// AccrualResult reports one applied interest accrual
type AccrualResult struct {
	TransactionID uuid.UUID
	Amount        decimal.Decimal
	PeriodFrom    time.Time
	PeriodTo      time.Time
}

var (
	daysPerYear = decimal.NewFromInt(365)
	hundred     = decimal.NewFromInt(100)
)

// Service applies postings, transfers and interest accruals
type Service struct {
	logger          *slog.Logger
	txRunner        persistence.TxRunner
	accountRepo     account.Repository
	transactionRepo transaction.Repository
	outboxRepo      outbox.Repository
	minimumInterest decimal.Decimal
	minimumPeriod   time.Duration
}

// NewService creates a ledger service. minimumInterest is the smallest accrual
// worth posting; minimumPeriod is the shortest span an accrual may cover.
func NewService(
	logger *slog.Logger,
	txRunner persistence.TxRunner,
	accountRepo account.Repository,
	transactionRepo transaction.Repository,
	outboxRepo outbox.Repository,
	minimumInterest decimal.Decimal,
	minimumPeriod time.Duration,
) *Service {
	return &Service{
		logger:          logger,
		txRunner:        txRunner,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		minimumInterest: minimumInterest,
		minimumPeriod:   minimumPeriod,
	}
}

// ApplyPosting credits or debits one account and returns the created
// transaction row. The account row lock plus the optimistic version check
// reject concurrent mutations of the same account.
func (s *Service) ApplyPosting(ctx context.Context, params PostingParams) (*transaction.Transaction, error) {
	if !params.Kind.Valid() {
		return nil, ErrUnknownPostingKind{Kind: string(params.Kind)}
	}
	if !params.Amount.IsPositive() {
		return nil, account.ErrInvalidAmount
	}

	var txn *transaction.Transaction
	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accountRepo.WithTx(tx)
		transactions := s.transactionRepo.WithTx(tx)
		outboxMessages := s.outboxRepo.WithTx(tx)

		acc, err := accounts.LockForUpdate(ctx, params.AccountID)
		if err != nil {
			return err
		}
		if err := acc.EnsureActive(); err != nil {
			return err
		}
		if acc.Currency != params.Currency {
			return account.ErrCurrencyMismatch{Requested: params.Currency, Actual: acc.Currency}
		}

		if params.Kind == transaction.KindCredit {
			err = acc.Credit(params.Amount)
		} else {
			err = acc.Debit(params.Amount)
		}
		if err != nil {
			return err
		}

		if err := accounts.Update(ctx, acc); err != nil {
			return err
		}

		txn = transaction.New(acc.ID, nil, params.Kind, params.Amount, acc.Currency, params.Description)
		if err := transactions.Create(ctx, txn); err != nil {
			return err
		}

		msg, err := s.postingEvent(acc, txn, params)
		if err != nil {
			return err
		}
		return outboxMessages.Create(ctx, msg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Applied posting",
		"account_id", params.AccountID.String(),
		"kind", string(params.Kind),
		"amount", params.Amount.String(),
	)
	return txn, nil
}

func (s *Service) postingEvent(acc *account.Account, txn *transaction.Transaction, params PostingParams) (*outbox.Message, error) {
	env := events.NewEnvelope(params.CorrelationID, params.CausationID)

	if params.Kind == transaction.KindCredit {
		return outbox.NewMessage(events.TypeMoneyCredited, env, events.MoneyCredited{
			Envelope:    env,
			AccountID:   acc.ID,
			Amount:      params.Amount,
			Currency:    acc.Currency,
			OperationID: txn.ID,
		})
	}
	return outbox.NewMessage(events.TypeMoneyDebited, env, events.MoneyDebited{
		Envelope:    env,
		AccountID:   acc.ID,
		Amount:      params.Amount,
		Currency:    acc.Currency,
		OperationID: txn.ID,
		Reason:      params.Description,
	})
}

// ApplyTransfer moves money between two accounts as a debit/credit pair. Both
// rows commit together or not at all; the returned identifiers are ordered
// receiver first, then sender.
func (s *Service) ApplyTransfer(ctx context.Context, params TransferParams) (*TransferResult, error) {
	if !params.Kind.Valid() {
		return nil, ErrUnknownPostingKind{Kind: string(params.Kind)}
	}
	if params.SourceAccountID == params.DestinationAccountID {
		return nil, ErrSameAccountTransfer{AccountID: params.SourceAccountID}
	}
	if !params.Amount.IsPositive() {
		return nil, account.ErrInvalidAmount
	}

	var result *TransferResult
	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accountRepo.WithTx(tx)
		transactions := s.transactionRepo.WithTx(tx)
		outboxMessages := s.outboxRepo.WithTx(tx)

		source, destination, err := lockPair(ctx, accounts, params.SourceAccountID, params.DestinationAccountID)
		if err != nil {
			return err
		}
		if err := source.EnsureActive(); err != nil {
			return err
		}
		if err := destination.EnsureActive(); err != nil {
			return err
		}
		if source.Currency != params.Currency {
			return account.ErrCurrencyMismatch{Requested: params.Currency, Actual: source.Currency}
		}
		if destination.Currency != params.Currency {
			return account.ErrCurrencyMismatch{Requested: params.Currency, Actual: destination.Currency}
		}

		// A Debit transfer sends money from the source account; a Credit
		// transfer pulls it from the destination instead.
		sender, receiver := source, destination
		if params.Kind == transaction.KindCredit {
			sender, receiver = destination, source
		}

		totalBefore := sender.Balance.Add(receiver.Balance)

		if err := sender.Debit(params.Amount); err != nil {
			return err
		}
		if err := receiver.Credit(params.Amount); err != nil {
			return err
		}

		transferID := uuid.New()
		totalAfter := sender.Balance.Add(receiver.Balance)
		if !totalAfter.Equal(totalBefore) {
			return ErrInvariantViolation{
				TransferID: transferID,
				Detail: fmt.Sprintf("combined balance changed from %s to %s",
					totalBefore.String(), totalAfter.String()),
			}
		}

		if err := accounts.Update(ctx, sender); err != nil {
			return err
		}
		if err := accounts.Update(ctx, receiver); err != nil {
			return err
		}

		senderTxn := transaction.New(sender.ID, &receiver.ID, transaction.KindDebit, params.Amount, params.Currency, params.Description)
		receiverTxn := transaction.New(receiver.ID, &sender.ID, transaction.KindCredit, params.Amount, params.Currency, params.Description)
		if err := transactions.Create(ctx, senderTxn); err != nil {
			return err
		}
		if err := transactions.Create(ctx, receiverTxn); err != nil {
			return err
		}

		env := events.NewEnvelope(params.CorrelationID, params.CausationID)
		msg, err := outbox.NewMessage(events.TypeMoneyTransferCompleted, env, events.MoneyTransferCompleted{
			Envelope:             env,
			SourceAccountID:      sender.ID,
			DestinationAccountID: receiver.ID,
			Amount:               params.Amount,
			Currency:             params.Currency,
			TransferID:           transferID,
		})
		if err != nil {
			return err
		}
		if err := outboxMessages.Create(ctx, msg); err != nil {
			return err
		}

		result = &TransferResult{
			ReceiverTransactionID: receiverTxn.ID,
			SenderTransactionID:   senderTxn.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Applied transfer",
		"source_account_id", params.SourceAccountID.String(),
		"destination_account_id", params.DestinationAccountID.String(),
		"kind", string(params.Kind),
		"amount", params.Amount.String(),
	)
	return result, nil
}

// lockPair locks two accounts in a deterministic identifier order so two
// opposite transfers cannot deadlock each other.
func lockPair(ctx context.Context, accounts account.Repository, sourceID, destinationID uuid.UUID) (*account.Account, *account.Account, error) {
	first, second := sourceID, destinationID
	if bytes.Compare(destinationID[:], sourceID[:]) < 0 {
		first, second = destinationID, sourceID
	}

	firstAcc, err := accounts.LockForUpdate(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	secondAcc, err := accounts.LockForUpdate(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if firstAcc.ID == sourceID {
		return firstAcc, secondAcc, nil
	}
	return secondAcc, firstAcc, nil
}

// ApplyInterestAccrual posts one day of interest to a deposit account. The
// covered period starts at the later of the opening date and the previous
// accrual; accruals below the minimum period or amount are skipped. Returns
// nil without error when nothing was posted.
func (s *Service) ApplyInterestAccrual(ctx context.Context, accountID uuid.UUID, now time.Time) (*AccrualResult, error) {
	now = now.UTC()

	var result *AccrualResult
	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accountRepo.WithTx(tx)
		transactions := s.transactionRepo.WithTx(tx)
		outboxMessages := s.outboxRepo.WithTx(tx)

		acc, err := accounts.LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if !acc.BearsInterest() {
			s.logger.Debug("Account not eligible for accrual", "account_id", accountID.String())
			return nil
		}

		periodFrom := acc.OpeningDate
		lastAccrual, err := transactions.LastAccrualDate(ctx, accountID)
		if err != nil {
			return err
		}
		if lastAccrual != nil && lastAccrual.After(periodFrom) {
			periodFrom = *lastAccrual
		}

		if now.Sub(periodFrom) < s.minimumPeriod {
			s.logger.Debug("Accrual period too short",
				"account_id", accountID.String(),
				"period_from", periodFrom,
			)
			return nil
		}

		interest := acc.Balance.Mul(*acc.InterestRate).Div(hundred).Div(daysPerYear).Round(2)
		if interest.LessThan(s.minimumInterest) {
			s.logger.Debug("Accrued interest below minimum",
				"account_id", accountID.String(),
				"interest", interest.String(),
			)
			return nil
		}

		if err := acc.Credit(interest); err != nil {
			return err
		}
		if err := accounts.Update(ctx, acc); err != nil {
			return err
		}

		txn := transaction.New(acc.ID, nil, transaction.KindCredit, interest, acc.Currency, transaction.InterestAccrualDescription)
		txn.Date = now
		if err := transactions.Create(ctx, txn); err != nil {
			return err
		}

		env := events.NewEnvelope(uuid.Nil, uuid.Nil)
		msg, err := outbox.NewMessage(events.TypeInterestAccrued, env, events.InterestAccrued{
			Envelope:   env,
			AccountID:  acc.ID,
			PeriodFrom: periodFrom,
			PeriodTo:   now,
			Amount:     interest,
		})
		if err != nil {
			return err
		}
		if err := outboxMessages.Create(ctx, msg); err != nil {
			return err
		}

		result = &AccrualResult{
			TransactionID: txn.ID,
			Amount:        interest,
			PeriodFrom:    periodFrom,
			PeriodTo:      now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result != nil {
		s.logger.Info("Accrued interest",
			"account_id", accountID.String(),
			"amount", result.Amount.String(),
		)
	}
	return result, nil
}
