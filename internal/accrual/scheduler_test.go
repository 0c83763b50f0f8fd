package accrual

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bank-accounts-service/internal/config"
	"github.com/bank-accounts-service/internal/domain/account"
	"github.com/bank-accounts-service/internal/ledger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) Create(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepo) Update(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepo) SetFrozenByOwner(ctx context.Context, ownerID uuid.UUID, frozen bool) (int64, error) {
	args := m.Called(ctx, ownerID, frozen)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepo) ListAccrualCandidates(ctx context.Context) ([]*account.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

func (m *MockAccountRepo) WithTx(_ pgx.Tx) account.Repository {
	return m
}

type MockAccruer struct {
	mock.Mock
}

func (m *MockAccruer) ApplyInterestAccrual(ctx context.Context, accountID uuid.UUID, now time.Time) (*ledger.AccrualResult, error) {
	args := m.Called(ctx, accountID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.AccrualResult), args.Error(1)
}

func candidateAccount() *account.Account {
	rate := decimal.NewFromFloat(2.5)
	return &account.Account{
		ID:           uuid.New(),
		OwnerID:      uuid.New(),
		Type:         account.TypeDeposit,
		Currency:     "EUR",
		Balance:      decimal.NewFromInt(1000),
		InterestRate: &rate,
		OpeningDate:  time.Now().UTC().Add(-48 * time.Hour),
		Version:      1,
	}
}

func newTestScheduler(t *testing.T, repo *MockAccountRepo, accruer *MockAccruer) *Scheduler {
	t.Helper()
	cfg := &config.AccrualConfig{
		Interval:        time.Hour,
		MinimumInterest: "0.01",
		MinimumPeriod:   24 * time.Hour,
	}
	s, err := NewScheduler(cfg, 4, repo, accruer, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s
}

func TestScheduler_RunSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("accrues every candidate", func(t *testing.T) {
		repo := &MockAccountRepo{}
		accruer := &MockAccruer{}
		s := newTestScheduler(t, repo, accruer)

		first := candidateAccount()
		second := candidateAccount()
		repo.On("ListAccrualCandidates", mock.Anything).
			Return([]*account.Account{first, second}, nil).Once()

		accruer.On("ApplyInterestAccrual", mock.Anything, first.ID, mock.AnythingOfType("time.Time")).
			Return(&ledger.AccrualResult{TransactionID: uuid.New(), Amount: decimal.RequireFromString("0.07")}, nil).Once()
		accruer.On("ApplyInterestAccrual", mock.Anything, second.ID, mock.AnythingOfType("time.Time")).
			Return(&ledger.AccrualResult{TransactionID: uuid.New(), Amount: decimal.RequireFromString("0.14")}, nil).Once()

		err := s.RunSweep(ctx)
		assert.NoError(t, err)
		accruer.AssertExpectations(t)
	})

	t.Run("no candidates is a no-op", func(t *testing.T) {
		repo := &MockAccountRepo{}
		accruer := &MockAccruer{}
		s := newTestScheduler(t, repo, accruer)

		repo.On("ListAccrualCandidates", mock.Anything).Return([]*account.Account{}, nil).Once()

		err := s.RunSweep(ctx)
		assert.NoError(t, err)
		accruer.AssertNotCalled(t, "ApplyInterestAccrual", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("listing failure aborts the sweep", func(t *testing.T) {
		repo := &MockAccountRepo{}
		accruer := &MockAccruer{}
		s := newTestScheduler(t, repo, accruer)

		dbErr := errors.New("query error")
		repo.On("ListAccrualCandidates", mock.Anything).Return(nil, dbErr).Once()

		err := s.RunSweep(ctx)
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("one failing account does not abort the sweep", func(t *testing.T) {
		repo := &MockAccountRepo{}
		accruer := &MockAccruer{}
		s := newTestScheduler(t, repo, accruer)

		failing := candidateAccount()
		healthy := candidateAccount()
		repo.On("ListAccrualCandidates", mock.Anything).
			Return([]*account.Account{failing, healthy}, nil).Once()

		accruer.On("ApplyInterestAccrual", mock.Anything, failing.ID, mock.AnythingOfType("time.Time")).
			Return(nil, errors.New("lock timeout")).Once()
		accruer.On("ApplyInterestAccrual", mock.Anything, healthy.ID, mock.AnythingOfType("time.Time")).
			Return(&ledger.AccrualResult{TransactionID: uuid.New(), Amount: decimal.RequireFromString("0.07")}, nil).Once()

		err := s.RunSweep(ctx)
		assert.NoError(t, err)
		accruer.AssertExpectations(t)
	})

	t.Run("skipped accounts return no result and no error", func(t *testing.T) {
		repo := &MockAccountRepo{}
		accruer := &MockAccruer{}
		s := newTestScheduler(t, repo, accruer)

		skipped := candidateAccount()
		repo.On("ListAccrualCandidates", mock.Anything).
			Return([]*account.Account{skipped}, nil).Once()
		accruer.On("ApplyInterestAccrual", mock.Anything, skipped.ID, mock.AnythingOfType("time.Time")).
			Return(nil, nil).Once()

		err := s.RunSweep(ctx)
		assert.NoError(t, err)
		accruer.AssertExpectations(t)
	})
}
