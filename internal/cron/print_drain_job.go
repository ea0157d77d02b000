package cron

import (
	"context"
	"errors"
)

// printQueue is the drain surface of the print retry queue.
type printQueue interface {
	Drain(ctx context.Context, resolve func(string) string) error
}

// PrintDrainJob re-attempts queued print jobs. The resolver maps ids captured
// while the order was still a draft to the persisted id.
type PrintDrainJob struct {
	queue   printQueue
	resolve func(string) string
}

// NewPrintDrainJob builds the drain job.
func NewPrintDrainJob(queue printQueue, resolve func(string) string) (*PrintDrainJob, error) {
	if queue == nil {
		return nil, errors.New("print queue required")
	}
	return &PrintDrainJob{queue: queue, resolve: resolve}, nil
}

// Name identifies the job in logs and metrics.
func (j *PrintDrainJob) Name() string {
	return "print_queue_drain"
}

// Run drains the queue once.
func (j *PrintDrainJob) Run(ctx context.Context) error {
	return j.queue.Drain(ctx, j.resolve)
}
