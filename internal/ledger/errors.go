package ledger

import "github.com/google/uuid"

// ErrInvariantViolation signals that a balance conservation check failed after
// applying postings. It is never retried; the enclosing transaction rolls back
// and the operation surfaces as a fatal fault.
type ErrInvariantViolation struct {
	TransferID uuid.UUID
	Detail     string
}

func (e ErrInvariantViolation) Error() string {
	return "ledger invariant violated for transfer " + e.TransferID.String() + ": " + e.Detail
}

// ErrUnknownPostingKind indicates a posting direction outside the known set
type ErrUnknownPostingKind struct {
	Kind string
}

func (e ErrUnknownPostingKind) Error() string {
	return "unknown posting kind: " + e.Kind
}

// ErrSameAccountTransfer indicates a transfer where both sides are one account
type ErrSameAccountTransfer struct {
	AccountID uuid.UUID
}

func (e ErrSameAccountTransfer) Error() string {
	return "transfer source and destination are the same account: " + e.AccountID.String()
}
