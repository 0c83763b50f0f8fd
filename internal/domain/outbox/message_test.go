package outbox

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bank-accounts-service/internal/domain/events"
)

func TestNewMessage(t *testing.T) {
	env := events.NewEnvelope(uuid.New(), uuid.New())
	payload := events.AccountOpened{
		Envelope:  env,
		AccountID: uuid.New(),
		OwnerID:   uuid.New(),
		Currency:  "EUR",
		Type:      "Checking",
	}

	msg, err := NewMessage(events.TypeAccountOpened, env, payload)
	require.NoError(t, err)

	assert.Equal(t, env.EventID, msg.ID)
	assert.Equal(t, events.TypeAccountOpened, msg.Type)
	assert.Equal(t, env.OccurredAt, msg.OccurredAt)
	assert.Equal(t, env.Meta.Source, msg.Source)
	assert.Equal(t, env.Meta.CorrelationID, msg.CorrelationID)
	assert.Equal(t, env.Meta.CausationID, msg.CausationID)
	assert.Nil(t, msg.ProcessedAt)

	var decoded events.AccountOpened
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, payload.AccountID, decoded.AccountID)
	assert.Equal(t, env.EventID, decoded.EventID)
}

func TestMessage_Pending(t *testing.T) {
	env := events.NewEnvelope(uuid.Nil, uuid.Nil)
	msg, err := NewMessage(events.TypeAccountOpened, env, events.AccountOpened{Envelope: env})
	require.NoError(t, err)

	assert.True(t, msg.Pending())

	msg.MarkProcessed()
	assert.False(t, msg.Pending())
	require.NotNil(t, msg.ProcessedAt)
}

func TestMessage_RoutingKey(t *testing.T) {
	env := events.NewEnvelope(uuid.Nil, uuid.Nil)
	msg, err := NewMessage(events.TypeMoneyTransferCompleted, env, events.MoneyTransferCompleted{Envelope: env})
	require.NoError(t, err)

	assert.Equal(t, "money.transfer.completed", msg.RoutingKey())
}
