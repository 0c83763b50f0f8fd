// Package events defines the wire contract for domain events staged in the
// outbox and for inbound control events consumed from the message bus.
package events

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names as staged in the outbox and published to the bus.
const (
	TypeAccountOpened          = "AccountOpened"
	TypeAccountClosed          = "AccountClosed"
	TypeMoneyCredited          = "MoneyCredited"
	TypeMoneyDebited           = "MoneyDebited"
	TypeMoneyTransferCompleted = "MoneyTransferCompleted"
	TypeInterestAccrued        = "InterestAccrued"
	TypeClientAccountsFrozen   = "ClientAccountsFrozen"
	TypeClientAccountsUnfrozen = "ClientAccountsUnfrozen"
)

// Routing keys of inbound control events.
const (
	RoutingKeyClientBlocked   = "client.blocked"
	RoutingKeyClientUnblocked = "client.unblocked"
)

// Source identifies this service in event metadata.
const Source = "account-service"

// MetaVersion is the wire contract version carried by every event.
const MetaVersion = "v1"

// Meta carries tracing metadata shared by all event payloads
type Meta struct {
	Version       string    `json:"version"`
	Source        string    `json:"source"`
	CorrelationID uuid.UUID `json:"correlationId"`
	CausationID   uuid.UUID `json:"causationId"`
}

// Envelope is embedded by value in every outbound event payload. It carries
// the event identity and metadata; event-specific fields live in the
// embedding struct.
type Envelope struct {
	EventID    uuid.UUID `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	Meta       Meta      `json:"meta"`
}

// NewEnvelope creates an envelope with a fresh event identifier. A zero
// correlation ID is replaced with a new one; a zero causation ID falls back
// to the event's own identifier.
func NewEnvelope(correlationID, causationID uuid.UUID) Envelope {
	eventID := uuid.New()
	if correlationID == uuid.Nil {
		correlationID = uuid.New()
	}
	if causationID == uuid.Nil {
		causationID = eventID
	}
	return Envelope{
		EventID:    eventID,
		OccurredAt: time.Now().UTC(),
		Meta: Meta{
			Version:       MetaVersion,
			Source:        Source,
			CorrelationID: correlationID,
			CausationID:   causationID,
		},
	}
}

// AccountOpened announces a newly opened account
type AccountOpened struct {
	Envelope
	AccountID uuid.UUID `json:"accountId"`
	OwnerID   uuid.UUID `json:"ownerId"`
	Currency  string    `json:"currency"`
	Type      string    `json:"type"`
}

// AccountClosed announces a soft-closed account
type AccountClosed struct {
	Envelope
	AccountID uuid.UUID `json:"accountId"`
	ClosedAt  time.Time `json:"closedAt"`
}

// MoneyCredited announces a single credit posting
type MoneyCredited struct {
	Envelope
	AccountID   uuid.UUID       `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	OperationID uuid.UUID       `json:"operationId"`
}

// MoneyDebited announces a single debit posting
type MoneyDebited struct {
	Envelope
	AccountID   uuid.UUID       `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	OperationID uuid.UUID       `json:"operationId"`
	Reason      string          `json:"reason"`
}

// MoneyTransferCompleted announces a paired transfer between two accounts
type MoneyTransferCompleted struct {
	Envelope
	SourceAccountID      uuid.UUID       `json:"sourceAccountId"`
	DestinationAccountID uuid.UUID       `json:"destinationAccountId"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	TransferID           uuid.UUID       `json:"transferId"`
}

// InterestAccrued announces one interest accrual posting and its covered period
type InterestAccrued struct {
	Envelope
	AccountID  uuid.UUID       `json:"accountId"`
	PeriodFrom time.Time       `json:"periodFrom"`
	PeriodTo   time.Time       `json:"periodTo"`
	Amount     decimal.Decimal `json:"amount"`
}

// ClientAccountsFrozen announces that all accounts of a client were frozen
type ClientAccountsFrozen struct {
	Envelope
	ClientID uuid.UUID `json:"clientId"`
}

// ClientAccountsUnfrozen announces that all accounts of a client were unfrozen
type ClientAccountsUnfrozen struct {
	Envelope
	ClientID uuid.UUID `json:"clientId"`
}

// ClientBlocking is the inbound control payload for client.blocked and
// client.unblocked events. EventID doubles as the inbox idempotency key.
type ClientBlocking struct {
	EventID  uuid.UUID `json:"eventId"`
	ClientID uuid.UUID `json:"clientId"`
}

// RoutingKey converts an event type name to its dot-separated lowercase
// routing key, e.g. "AccountOpened" becomes "account.opened".
func RoutingKey(eventType string) string {
	var b strings.Builder
	for i, r := range eventType {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
