package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/mvharris/tabwire/internal/openorders"
	"github.com/mvharris/tabwire/pkg/config"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/metrics"
	"github.com/mvharris/tabwire/pkg/outbox"
	"github.com/mvharris/tabwire/pkg/types"
)

const (
	defaultMaxReconnects    = 10
	defaultReconnectBackoff = time.Second
	defaultMaxBackoff       = 30 * time.Second
	jitterWindow            = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// subscriber is the receive surface of the Pub/Sub subscription.
type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// RefetchFunc returns the authoritative open-orders list for the terminal's
// location. The consumer calls it once after every reconnect to replace the
// possibly-gapped view.
type RefetchFunc func(ctx context.Context) ([]types.OpenOrder, error)

// Consumer maintains the terminal's open-orders view from the order broadcast
// channel. Events fold into an immutable merge; a dropped connection marks the
// view stale, reconnects with capped backoff, and refetches the full list to
// close any gap the outage opened.
type Consumer struct {
	sub     subscriber
	refetch RefetchFunc
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
	cfg     config.BroadcastConfig

	mu    sync.Mutex
	state openorders.State
}

// ConsumerParams groups the consumer dependencies.
type ConsumerParams struct {
	Subscriber subscriber
	Refetch    RefetchFunc
	Logger     *logger.Logger
	Metrics    *metrics.SyncMetrics
	Config     config.BroadcastConfig
}

// NewConsumer validates dependencies and builds the broadcast consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscriber == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "broadcast subscriber required")
	}
	if params.Refetch == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refetch func required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	cfg := params.Config
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = defaultMaxReconnects
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaultReconnectBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &Consumer{
		sub:     params.Subscriber,
		refetch: params.Refetch,
		logg:    params.Logger,
		metrics: params.Metrics,
		cfg:     cfg,
		state:   openorders.NewState(),
	}, nil
}

// Orders returns the current open-orders view.
func (c *Consumer) Orders() []types.OpenOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.OpenOrder(nil), c.state.Orders...)
}

// Stale reports whether the view may be missing events.
func (c *Consumer) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Stale
}

// Run seeds the view with a full fetch and then consumes the broadcast
// channel until the context is cancelled or the reconnect budget runs out.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		return err
	}

	reconnects := 0
	backoff := time.Duration(0)
	for {
		started := time.Now()
		err := c.sub.Receive(ctx, c.handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A connection that held for a while earns back its reconnect
		// budget; only a flapping channel burns through it.
		if time.Since(started) > c.cfg.MaxBackoff {
			reconnects = 0
			backoff = 0
		}

		reconnects++
		if reconnects > c.cfg.MaxReconnects {
			c.logg.Error(ctx, "broadcast channel reconnect budget exhausted", err)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "broadcast channel unavailable")
		}

		c.markStale()
		c.metrics.IncReconnect()
		backoff = nextBackoff(backoff, c.cfg.ReconnectBackoff, c.cfg.MaxBackoff)

		logCtx := c.logg.WithFields(ctx, map[string]any{
			"reconnects": reconnects,
			"backoff":    backoff.String(),
		})
		if err != nil {
			logCtx = c.logg.WithField(logCtx, "error", err.Error())
		}
		c.logg.Warn(logCtx, "broadcast channel dropped, reconnecting")

		if err := sleep(ctx, withJitter(backoff)); err != nil {
			return err
		}

		// The outage may have swallowed events; one authoritative refetch
		// replaces the view instead of guessing at the gap.
		if err := c.refresh(ctx); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "open orders refetch failed, view stays stale")
		}
	}
}

// handle folds one broadcast message into the view. Undecodable messages are
// acked and dropped; redelivering them can never succeed.
func (c *Consumer) handle(ctx context.Context, msg *gcppubsub.Message) {
	evt, err := decodeEvent(msg)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping undecodable broadcast message")
		msg.Ack()
		return
	}

	c.mu.Lock()
	c.state = openorders.Merge(c.state, evt)
	c.mu.Unlock()

	c.metrics.IncBroadcastEvent(string(evt.Type))
	msg.Ack()
}

func (c *Consumer) markStale() {
	c.mu.Lock()
	c.state = openorders.MarkStale(c.state)
	c.mu.Unlock()
}

func (c *Consumer) refresh(ctx context.Context) error {
	orders, err := c.refetch(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state = openorders.Reset(orders)
	c.mu.Unlock()
	c.logg.Info(c.logg.WithField(ctx, "orders", len(orders)), "open orders view refreshed")
	return nil
}

func decodeEvent(msg *gcppubsub.Message) (openorders.Event, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return openorders.Event{}, err
	}

	var order types.OpenOrder
	if err := json.Unmarshal(envelope.Data, &order); err != nil {
		return openorders.Event{}, err
	}

	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	switch eventType {
	case enums.EventOrderCreated, enums.EventOrderUpdated, enums.EventOrderClosed:
	default:
		return openorders.Event{}, errors.New("unknown event type " + string(eventType))
	}

	eventID := envelope.EventID
	if eventID == "" {
		eventID = msg.Attributes["event_id"]
	}

	return openorders.Event{
		EventID: eventID,
		Type:    eventType,
		Seq:     envelope.Seq,
		Order:   order,
	}, nil
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		return base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
