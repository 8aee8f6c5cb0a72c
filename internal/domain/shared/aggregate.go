package shared

import "time"

// AggregateRoot is a settlement record that queues events for the outbox
// until the owning service commits and drains them.
type AggregateRoot interface {
	CurrentVersion() int
	RecordEvent(event DomainEvent)
	PendingEvents() []DomainEvent
	PullDomainEvents() []DomainEvent
}

// BaseAggregateRoot carries the bookkeeping columns shared by sales,
// escrows, schedules and vouchers. Records are addressed by derived keys,
// so identity lives on each aggregate rather than here.
type BaseAggregateRoot struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
	pending   []DomainEvent
}

// NewBaseAggregateRoot starts a fresh record at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	now := time.Now()
	return RestoreAggregateRoot(now, now, 1)
}

// RestoreAggregateRoot rebuilds the bookkeeping of a stored record with no
// pending events.
func RestoreAggregateRoot(createdAt, updatedAt time.Time, version int) BaseAggregateRoot {
	if version < 1 {
		version = 1
	}
	return BaseAggregateRoot{CreatedAt: createdAt, UpdatedAt: updatedAt, Version: version}
}

func (a *BaseAggregateRoot) CurrentVersion() int {
	return a.Version
}

// RecordEvent queues an event without touching the version. Constructors
// use it for the creation event.
func (a *BaseAggregateRoot) RecordEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// Apply marks a state transition: the version advances, UpdatedAt follows
// the event time and the event is queued.
func (a *BaseAggregateRoot) Apply(event DomainEvent) {
	a.Version++
	if at := event.OccurredAt(); !at.IsZero() {
		a.UpdatedAt = at
	} else {
		a.UpdatedAt = time.Now()
	}
	a.RecordEvent(event)
}

func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.pending
}

// PullDomainEvents returns the queued events and empties the queue
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
