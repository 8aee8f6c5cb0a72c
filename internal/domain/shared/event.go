package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a settlement fact recorded by an aggregate and relayed
// through the outbox.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	// AggregateID is the base58 form of the aggregate's derived address
	AggregateID() string
	AggregateType() string
}

// BaseDomainEvent is embedded by every concrete event. Its JSON form is the
// envelope stored in the outbox payload.
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	AggID     string    `json:"aggregate_id"`
	AggType   string    `json:"aggregate_type"`
}

// NewBaseDomainEvent stamps an event with a time-ordered ID
func NewBaseDomainEvent(eventType, aggType, aggID string) BaseDomainEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return BaseDomainEvent{
		ID:        id,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		AggID:     aggID,
		AggType:   aggType,
	}
}

func (b *BaseDomainEvent) EventID() uuid.UUID    { return b.ID }
func (b *BaseDomainEvent) EventType() string     { return b.Type }
func (b *BaseDomainEvent) OccurredAt() time.Time { return b.Timestamp }
func (b *BaseDomainEvent) AggregateID() string   { return b.AggID }
func (b *BaseDomainEvent) AggregateType() string { return b.AggType }
