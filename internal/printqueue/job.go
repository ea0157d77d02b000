package printqueue

import (
	"encoding/json"
	"time"

	"github.com/mvharris/tabwire/pkg/enums"
)

// Job is one queued print request. OrderID is the id captured at enqueue
// time; for a job queued against a draft it is resolved to the persisted id
// on each drain pass.
type Job struct {
	OrderID    string           `json:"order_id"`
	TicketType enums.TicketType `json:"ticket_type"`
	Attempts   int              `json:"attempts"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}

// fieldKey is the hash field for a job. One field per (order, ticket type)
// pair collapses repeated failures into a single queued job.
func fieldKey(orderID string, ticketType enums.TicketType) string {
	return orderID + "|" + string(ticketType)
}

func encodeJob(job Job) (string, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeJob(raw string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return Job{}, err
	}
	return job, nil
}
