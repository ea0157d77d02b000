package enums

// OutboxEventType names the order lifecycle events fanned out to terminals.
type OutboxEventType string

const (
	EventOrderCreated OutboxEventType = "order.created"
	EventOrderUpdated OutboxEventType = "order.updated"
	EventOrderClosed  OutboxEventType = "order.closed"
)

// OutboxAggregateType scopes outbox rows to their aggregate.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)
