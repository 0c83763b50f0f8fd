package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the signed direction of a posting
type Kind string

const (
	KindCredit Kind = "Credit"
	KindDebit  Kind = "Debit"
)

// Opposite returns the mirrored posting kind
func (k Kind) Opposite() Kind {
	if k == KindCredit {
		return KindDebit
	}
	return KindCredit
}

// Valid reports whether the kind is one of the two known directions
func (k Kind) Valid() bool {
	return k == KindCredit || k == KindDebit
}

// InterestAccrualDescription marks accrual postings. The interest scheduler
// derives the covered period from the most recent transaction carrying it.
const InterestAccrualDescription = "Deposit interest accrual"

// Transaction is one immutable signed balance adjustment. A transfer is
// recorded as two rows with swapped account/counterparty identifiers and
// opposite kinds.
type Transaction struct {
	ID                    uuid.UUID       `json:"id"`
	AccountID             uuid.UUID       `json:"account_id"`
	CounterpartyAccountID *uuid.UUID      `json:"counterparty_account_id,omitempty"` // Set only for transfers
	Kind                  Kind            `json:"kind"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Description           string          `json:"description"`
	Date                  time.Time       `json:"date"`
}

// New creates a transaction row with a fresh identifier
func New(accountID uuid.UUID, counterpartyID *uuid.UUID, kind Kind, amount decimal.Decimal, currency, description string) *Transaction {
	return &Transaction{
		ID:                    uuid.New(),
		AccountID:             accountID,
		CounterpartyAccountID: counterpartyID,
		Kind:                  kind,
		Amount:                amount,
		Currency:              currency,
		Description:           description,
		Date:                  time.Now().UTC(),
	}
}
