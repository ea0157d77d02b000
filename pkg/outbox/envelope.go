package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies the employee and terminal that produced the event.
type ActorRef struct {
	EmployeeID *uuid.UUID `json:"employeeId,omitempty"`
	TerminalID string     `json:"terminalId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events and
// carried on the broadcast channel. Seq is the per-order sequence number that
// lets consumers drop out-of-order deliveries.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	Seq        int64           `json:"seq"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
