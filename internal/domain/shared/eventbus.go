package shared

import "context"

// EventHandler reacts to settlement events after the producing transaction
// has committed. Handlers must tolerate redelivery when the outbox is on.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types the handler wants; nil means all
	EventTypes() []string
}

// EventPublisher hands committed events to the bus or the outbox
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber registers handlers. With no explicit types the
// handler's own EventTypes are used.
type EventSubscriber interface {
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
}

// EventBus is started before services publish and stopped after the
// outbox processor has drained
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
