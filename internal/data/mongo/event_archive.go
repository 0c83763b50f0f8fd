// Package mongo holds the MongoDB archive of published events. The archive is
// an audit copy; the PostgreSQL outbox remains the source of truth.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bank-accounts-service/internal/domain/outbox"
)

const (
	// EventsCollectionName is the name of the published-events collection in MongoDB
	EventsCollectionName = "published_events"
)

// ArchivedEvent is the document stored for each confirmed publish
type ArchivedEvent struct {
	EventID       uuid.UUID `bson:"event_id"`
	Type          string    `bson:"type"`
	RoutingKey    string    `bson:"routing_key"`
	Payload       string    `bson:"payload"`
	OccurredAt    time.Time `bson:"occurred_at"`
	PublishedAt   time.Time `bson:"published_at"`
	Source        string    `bson:"source"`
	CorrelationID uuid.UUID `bson:"correlation_id"`
	CausationID   uuid.UUID `bson:"causation_id"`
}

// ErrEventNotFound indicates no archived document for the event identifier
type ErrEventNotFound struct {
	EventID uuid.UUID
}

func (e ErrEventNotFound) Error() string {
	return "archived event not found: " + e.EventID.String()
}

// EventArchive stores published events in MongoDB
type EventArchive struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewEventArchive creates a new MongoDB event archive
func NewEventArchive(logger *slog.Logger, db *mongo.Database) *EventArchive {
	return &EventArchive{
		db:     db,
		logger: logger,
	}
}

// Record upserts the published event keyed by its event identifier so a
// redelivered dispatch never produces a second document.
func (a *EventArchive) Record(ctx context.Context, msg *outbox.Message, publishedAt time.Time) error {
	collection := a.db.Collection(EventsCollectionName)

	doc := ArchivedEvent{
		EventID:       msg.ID,
		Type:          msg.Type,
		RoutingKey:    msg.RoutingKey(),
		Payload:       string(msg.Payload),
		OccurredAt:    msg.OccurredAt,
		PublishedAt:   publishedAt,
		Source:        msg.Source,
		CorrelationID: msg.CorrelationID,
		CausationID:   msg.CausationID,
	}

	filter := bson.M{"event_id": msg.ID}
	update := bson.M{"$setOnInsert": doc}
	opts := options.Update().SetUpsert(true)

	_, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		a.logger.Error("Failed to archive published event",
			"event_id", msg.ID.String(),
			"error", err)
		return fmt.Errorf("failed to archive published event: %w", err)
	}

	return nil
}

// GetByEventID retrieves an archived event by its identifier
func (a *EventArchive) GetByEventID(ctx context.Context, eventID uuid.UUID) (*ArchivedEvent, error) {
	collection := a.db.Collection(EventsCollectionName)

	filter := bson.M{"event_id": eventID}
	var doc ArchivedEvent
	err := collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound{EventID: eventID}
		}
		a.logger.Error("Failed to get archived event",
			"event_id", eventID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get archived event: %w", err)
	}

	return &doc, nil
}

// GetByCorrelationID retrieves all archived events sharing a correlation
// identifier, oldest first, for tracing one logical flow.
func (a *EventArchive) GetByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*ArchivedEvent, error) {
	collection := a.db.Collection(EventsCollectionName)

	filter := bson.M{"correlation_id": correlationID}
	opts := options.Find().SetSort(bson.M{"occurred_at": 1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		a.logger.Error("Failed to get archived events by correlation",
			"correlation_id", correlationID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get archived events by correlation: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*ArchivedEvent
	if err := cursor.All(ctx, &docs); err != nil {
		a.logger.Error("Failed to decode archived events",
			"correlation_id", correlationID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode archived events: %w", err)
	}

	return docs, nil
}
