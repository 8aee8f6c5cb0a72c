package event

import (
	"context"
	"fmt"

	"github.com/presale/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher turns domain events into pending outbox entries. The
// OutboxProcessor delivers them later, so handlers see every committed
// transition even across restarts.
type OutboxPublisher struct {
	repo       shared.OutboxRepository
	serializer *EventSerializer
}

// NewOutboxPublisher creates a new outbox publisher. repo is used by
// Publish; SaveEvents always writes through the caller's transaction.
func NewOutboxPublisher(repo shared.OutboxRepository, serializer *EventSerializer) *OutboxPublisher {
	return &OutboxPublisher{repo: repo, serializer: serializer}
}

// Publish serializes events and saves them through the publisher's repository
func (p *OutboxPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries, err := p.entries(events)
	if err != nil {
		return err
	}
	if err := p.repo.Save(ctx, entries...); err != nil {
		return fmt.Errorf("failed to save outbox entries: %w", err)
	}
	return nil
}

// PublishWithTx saves events in tx, so they commit or roll back with the
// state change that raised them
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries, err := p.entries(events)
	if err != nil {
		return err
	}
	if err := NewGormOutboxRepository(tx).Save(ctx, entries...); err != nil {
		return fmt.Errorf("failed to save outbox entries: %w", err)
	}
	return nil
}

// SaveEvents implements shared.OutboxEventSaver for gorm transactions
func (p *OutboxPublisher) SaveEvents(ctx context.Context, txProvider any, events ...shared.DomainEvent) error {
	tx, ok := txProvider.(*gorm.DB)
	if !ok {
		return fmt.Errorf("txProvider must be a *gorm.DB, got %T", txProvider)
	}
	return p.PublishWithTx(ctx, tx, events...)
}

func (p *OutboxPublisher) entries(events []shared.DomainEvent) ([]*shared.OutboxEntry, error) {
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, ev := range events {
		if !p.serializer.IsRegistered(ev.EventType()) {
			return nil, fmt.Errorf("event type %s is not registered with the serializer", ev.EventType())
		}
		payload, err := p.serializer.Serialize(ev)
		if err != nil {
			return nil, err
		}
		entries = append(entries, shared.NewOutboxEntry(ev, payload))
	}
	return entries, nil
}

var (
	_ shared.EventPublisher   = (*OutboxPublisher)(nil)
	_ shared.OutboxEventSaver = (*OutboxPublisher)(nil)
)
