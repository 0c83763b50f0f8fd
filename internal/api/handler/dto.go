package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bank-accounts-service/internal/domain/account"
	"github.com/bank-accounts-service/internal/domain/transaction"
)

// OpenAccountRequest represents a request to open a new account
type OpenAccountRequest struct {
	OwnerID      string           `json:"owner_id" binding:"required,uuid"`
	Type         string           `json:"type" binding:"required,oneof=Checking Deposit Credit"`
	Currency     string           `json:"currency" binding:"required,len=3"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
}

// UpdateAccountRequest represents a request to change an account's interest rate
type UpdateAccountRequest struct {
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
}

// PostingRequest represents a request for a single credit or debit
type PostingRequest struct {
	Kind        string          `json:"kind" binding:"required,oneof=Credit Debit"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Currency    string          `json:"currency" binding:"required,len=3"`
	Description string          `json:"description"`
}

// TransferRequest represents a request to move money between two accounts.
// Kind is the direction relative to the source account: Debit sends money to
// the destination, Credit pulls money from it.
type TransferRequest struct {
	SourceAccountID      string          `json:"source_account_id" binding:"required,uuid"`
	DestinationAccountID string          `json:"destination_account_id" binding:"required,uuid"`
	Amount               decimal.Decimal `json:"amount" binding:"required"`
	Currency             string          `json:"currency" binding:"required,len=3"`
	Kind                 string          `json:"kind" binding:"required,oneof=Credit Debit"`
	Description          string          `json:"description"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID           string           `json:"id"`
	OwnerID      string           `json:"owner_id"`
	Type         string           `json:"type"`
	Currency     string           `json:"currency"`
	Balance      decimal.Decimal  `json:"balance"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
	OpeningDate  string           `json:"opening_date"`
	ClosingDate  string           `json:"closing_date,omitempty"`
	IsFrozen     bool             `json:"is_frozen"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID                    string          `json:"id"`
	AccountID             string          `json:"account_id"`
	CounterpartyAccountID string          `json:"counterparty_account_id,omitempty"`
	Kind                  string          `json:"kind"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Description           string          `json:"description"`
	Date                  string          `json:"date"`
}

// TransferResponse reports the two transaction rows created by a transfer
type TransferResponse struct {
	ReceiverTransactionID string `json:"receiver_transaction_id"`
	SenderTransactionID   string `json:"sender_transaction_id"`
}

// StatementResponse represents an account statement in API responses
type StatementResponse struct {
	Account      AccountResponse       `json:"account"`
	From         string                `json:"from"`
	To           string                `json:"to"`
	Transactions []TransactionResponse `json:"transactions"`
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	resp := AccountResponse{
		ID:           acc.ID.String(),
		OwnerID:      acc.OwnerID.String(),
		Type:         string(acc.Type),
		Currency:     acc.Currency,
		Balance:      acc.Balance,
		InterestRate: acc.InterestRate,
		OpeningDate:  acc.OpeningDate.Format(time.RFC3339),
		IsFrozen:     acc.IsFrozen,
	}
	if acc.ClosingDate != nil {
		resp.ClosingDate = acc.ClosingDate.Format(time.RFC3339)
	}
	return resp
}

func mapTransactionToResponse(txn *transaction.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:          txn.ID.String(),
		AccountID:   txn.AccountID.String(),
		Kind:        string(txn.Kind),
		Amount:      txn.Amount,
		Currency:    txn.Currency,
		Description: txn.Description,
		Date:        txn.Date.Format(time.RFC3339),
	}
	if txn.CounterpartyAccountID != nil {
		resp.CounterpartyAccountID = txn.CounterpartyAccountID.String()
	}
	return resp
}
