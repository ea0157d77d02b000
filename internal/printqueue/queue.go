package printqueue

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/metrics"
	pkgredis "github.com/mvharris/tabwire/pkg/redis"
)

const defaultMaxAttempts = 5

// Queue is the terminal's print side-effect retry queue. A failed print is
// parked in a Redis hash keyed by terminal, deduplicated per (order, ticket
// type), and re-attempted by the drain job until it prints or runs out of
// attempts. Print failures never fail the operation that requested the
// ticket.
type Queue struct {
	store       pkgredis.JobStore
	printer     Printer
	logg        *logger.Logger
	metrics     *metrics.SyncMetrics
	terminalID  string
	maxAttempts int
}

// QueueParams groups the queue dependencies.
type QueueParams struct {
	Store       pkgredis.JobStore
	Printer     Printer
	Logger      *logger.Logger
	Metrics     *metrics.SyncMetrics
	TerminalID  string
	MaxAttempts int
}

// NewQueue validates dependencies and builds the retry queue.
func NewQueue(params QueueParams) (*Queue, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "job store required")
	}
	if params.Printer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "printer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.TerminalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "terminal id required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Queue{
		store:       params.Store,
		printer:     params.Printer,
		logg:        params.Logger,
		metrics:     params.Metrics,
		terminalID:  params.TerminalID,
		maxAttempts: maxAttempts,
	}, nil
}

// Submit attempts the print immediately and queues it on failure. Queued
// reports whether the job was deferred; the error is reserved for the queue
// itself failing, which means the ticket is lost and the caller must surface
// that.
func (q *Queue) Submit(ctx context.Context, orderID string, ticketType enums.TicketType) (queued bool, err error) {
	if printErr := q.printer.Print(ctx, orderID, ticketType); printErr == nil {
		return false, nil
	} else {
		logCtx := q.logg.WithOrderID(ctx, orderID)
		logCtx = q.logg.WithField(logCtx, "ticket_type", string(ticketType))
		q.logg.Warn(q.logg.WithField(logCtx, "error", printErr.Error()), "print failed, queueing for retry")
	}

	if err := q.enqueue(ctx, orderID, ticketType); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue print job")
	}
	return true, nil
}

// enqueue parks the job. An existing field for the same (order, ticket type)
// pair wins; the duplicate is counted and dropped.
func (q *Queue) enqueue(ctx context.Context, orderID string, ticketType enums.TicketType) error {
	raw, err := encodeJob(Job{
		OrderID:    orderID,
		TicketType: ticketType,
		Attempts:   1,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	created, err := q.store.HSetNX(ctx, q.store.PrintQueueKey(q.terminalID), fieldKey(orderID, ticketType), raw)
	if err != nil {
		return err
	}
	if !created {
		q.metrics.IncPrintDedupHit()
	}
	return nil
}

// Drain re-attempts every queued job once. The resolve callback maps an id
// captured at enqueue time to the order's current id, so a job queued against
// a draft prints against the persisted order. Jobs that hit the attempt limit
// are dropped with a warning; per-job failures are aggregated, not fatal to
// the pass.
func (q *Queue) Drain(ctx context.Context, resolve func(string) string) error {
	key := q.store.PrintQueueKey(q.terminalID)
	jobs, err := q.store.HGetAll(ctx, key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load print queue")
	}

	var errs error
	for field, raw := range jobs {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, q.drainOne(ctx, key, field, raw, resolve))
	}
	return errs
}

func (q *Queue) drainOne(ctx context.Context, key, field, raw string, resolve func(string) string) error {
	job, err := decodeJob(raw)
	if err != nil {
		// An undecodable job can never print; drop it rather than retrying
		// forever.
		q.logg.Warn(q.logg.WithField(ctx, "field", field), "dropping undecodable print job")
		return q.store.HDel(ctx, key, field)
	}

	orderID := job.OrderID
	if resolve != nil {
		orderID = resolve(orderID)
	}

	q.metrics.IncPrintRetry()
	printErr := q.printer.Print(ctx, orderID, job.TicketType)
	if printErr == nil {
		return q.store.HDel(ctx, key, field)
	}

	job.Attempts++
	logCtx := q.logg.WithOrderID(ctx, orderID)
	logCtx = q.logg.WithFields(logCtx, map[string]any{
		"ticket_type": string(job.TicketType),
		"attempts":    job.Attempts,
	})

	if job.Attempts >= q.maxAttempts {
		q.metrics.IncPrintExhausted()
		q.logg.Error(logCtx, "print job exhausted retries, dropping", printErr)
		return q.store.HDel(ctx, key, field)
	}

	q.logg.Warn(logCtx, "print retry failed, keeping job queued")
	updated, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.store.HSet(ctx, key, field, updated); err != nil {
		return err
	}
	return printErr
}
