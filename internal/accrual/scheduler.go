// Package accrual runs the periodic interest accrual sweep. Each run fans the
// eligible accounts out over a worker pool; every account accrues in its own
// database transaction, so one failing account never blocks the rest.
package accrual

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/bank-accounts-service/internal/config"
	"github.com/bank-accounts-service/internal/domain/account"
	"github.com/bank-accounts-service/internal/ledger"
)

// Accruer applies one interest accrual to one account
type Accruer interface {
	ApplyInterestAccrual(ctx context.Context, accountID uuid.UUID, now time.Time) (*ledger.AccrualResult, error)
}

// Scheduler triggers interest accrual sweeps on a fixed interval
type Scheduler struct {
	accountRepo account.Repository
	accruer     Accruer
	pool        *ants.Pool
	logger      *slog.Logger
	interval    time.Duration
}

func NewScheduler(
	cfg *config.AccrualConfig,
	poolSize int,
	accountRepo account.Repository,
	accruer Accruer,
	logger *slog.Logger,
) (*Scheduler, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		accountRepo: accountRepo,
		accruer:     accruer,
		pool:        pool,
		logger:      logger,
		interval:    cfg.Interval,
	}, nil
}

// Start runs accrual sweeps until the context is canceled
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting interest accrual scheduler",
		"interval", s.interval.String(),
		"pool_capacity", s.pool.Cap(),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Interest accrual scheduler stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := s.RunSweep(ctx); err != nil {
				s.logger.Error("Interest accrual sweep failed", "error", err)
			}
		}
	}
}

// RunSweep accrues interest for every eligible account once. Per-account
// failures are logged and counted but do not abort the sweep.
func (s *Scheduler) RunSweep(ctx context.Context) error {
	candidates, err := s.accountRepo.ListAccrualCandidates(ctx)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		s.logger.Debug("No accounts eligible for interest accrual")
		return nil
	}

	s.logger.Info("Starting interest accrual sweep", "candidates", len(candidates))

	now := time.Now().UTC()
	var wg sync.WaitGroup
	var mu sync.Mutex
	accrued, failed := 0, 0

	for _, candidate := range candidates {
		accountID := candidate.ID
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()

			result, err := s.accruer.ApplyInterestAccrual(ctx, accountID, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				s.logger.Error("Failed to accrue interest",
					"account_id", accountID.String(),
					"error", err,
				)
				return
			}
			if result != nil {
				accrued++
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			failed++
			mu.Unlock()
			s.logger.Error("Failed to submit accrual task to worker pool",
				"account_id", accountID.String(),
				"error", err,
			)
		}
	}

	wg.Wait()

	s.logger.Info("Finished interest accrual sweep",
		"candidates", len(candidates),
		"accrued", accrued,
		"failed", failed,
	)
	return nil
}

// Shutdown releases the worker pool
func (s *Scheduler) Shutdown() {
	s.logger.Info("Shutting down accrual worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}
