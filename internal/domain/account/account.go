package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type distinguishes the fixed set of account kinds
type Type string

const (
	TypeChecking Type = "Checking" // transactional, bears no interest
	TypeDeposit  Type = "Deposit"  // interest-bearing deposit
	TypeCredit   Type = "Credit"   // interest-bearing credit line
)

// Common errors
var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInsufficientFunds      = errors.New("insufficient funds for debit")
	ErrInvalidAccountType     = errors.New("unknown account type")
	ErrInvalidCurrencyFormat  = errors.New("currency must be a 3-letter code")
	ErrInterestRateRequired   = errors.New("interest rate is required for deposit and credit accounts")
	ErrInterestRateNotAllowed = errors.New("interest rate is not allowed for checking accounts")
	ErrBalanceNotZero         = errors.New("account balance must be zero before closing")
)

// Account represents a bank account. Balance is denominated only in Currency;
// Version backs the optimistic concurrency check in the store.
type Account struct {
	ID           uuid.UUID        `json:"id"`
	OwnerID      uuid.UUID        `json:"owner_id"`
	Type         Type             `json:"type"`
	Currency     string           `json:"currency"`
	Balance      decimal.Decimal  `json:"balance"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"` // Percent per annum, deposit/credit only
	OpeningDate  time.Time        `json:"opening_date"`
	ClosingDate  *time.Time       `json:"closing_date,omitempty"` // Nil while the account is open
	IsFrozen     bool             `json:"is_frozen"`
	Version      int              `json:"version"` // For optimistic locking
}

// NewAccount creates a new account with a zero balance. Deposit and credit
// accounts require a positive interest rate; checking accounts must not
// carry one.
func NewAccount(ownerID uuid.UUID, accountType Type, currency string, interestRate *decimal.Decimal) (*Account, error) {
	switch accountType {
	case TypeChecking:
		if interestRate != nil {
			return nil, ErrInterestRateNotAllowed
		}
	case TypeDeposit, TypeCredit:
		if interestRate == nil || !interestRate.IsPositive() {
			return nil, ErrInterestRateRequired
		}
	default:
		return nil, ErrInvalidAccountType
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrencyFormat
	}

	return &Account{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Type:         accountType,
		Currency:     currency,
		Balance:      decimal.Zero,
		InterestRate: interestRate,
		OpeningDate:  time.Now().UTC(),
		Version:      1,
	}, nil
}

// EnsureActive reports whether the account still accepts postings.
// Closed or frozen accounts reject every mutation but remain readable.
func (a *Account) EnsureActive() error {
	if a.ClosingDate != nil {
		return ErrAccountClosed{AccountID: a.ID}
	}
	if a.IsFrozen {
		return ErrAccountFrozen{AccountID: a.ID}
	}
	return nil
}

// Credit adds the specified amount to the account balance
func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	a.Balance = a.Balance.Add(amount)
	a.Version++
	return nil
}

// Debit subtracts the specified amount from the account balance.
// Overdraft is not modeled; the balance never goes negative.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	a.Version++
	return nil
}

// Close marks the account closed. Closing is a soft state change; the row is
// never deleted. An account must be drained before closing.
func (a *Account) Close(at time.Time) error {
	if a.ClosingDate != nil {
		return ErrAccountClosed{AccountID: a.ID}
	}
	if !a.Balance.IsZero() {
		return ErrBalanceNotZero
	}

	closedAt := at.UTC()
	a.ClosingDate = &closedAt
	a.Version++
	return nil
}

// SetInterestRate replaces the interest rate. The pairing rules from account
// opening apply: checking accounts must not carry a rate, deposit and credit
// accounts require a positive one.
func (a *Account) SetInterestRate(rate *decimal.Decimal) error {
	switch a.Type {
	case TypeChecking:
		if rate != nil {
			return ErrInterestRateNotAllowed
		}
	default:
		if rate == nil || !rate.IsPositive() {
			return ErrInterestRateRequired
		}
	}

	a.InterestRate = rate
	a.Version++
	return nil
}

// BearsInterest reports whether the account is eligible for interest accrual
func (a *Account) BearsInterest() bool {
	return a.Type == TypeDeposit && a.InterestRate != nil && a.InterestRate.IsPositive() &&
		a.ClosingDate == nil && !a.IsFrozen
}
