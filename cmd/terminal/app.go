package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/mvharris/tabwire/internal/broadcast"
	"github.com/mvharris/tabwire/internal/cron"
	"github.com/mvharris/tabwire/internal/draftstore"
	"github.com/mvharris/tabwire/internal/printqueue"
	"github.com/mvharris/tabwire/internal/terminal"
	"github.com/mvharris/tabwire/pkg/config"
	"github.com/mvharris/tabwire/pkg/enums"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/metrics"
	"github.com/mvharris/tabwire/pkg/pubsub"
	"github.com/mvharris/tabwire/pkg/redis"
	"github.com/mvharris/tabwire/pkg/types"
)

// Terminal bundles the sync engine for one register: the staged local order,
// the commit and reconcile flows the register UI drives, the open-orders
// broadcast view, and the print retry queue.
type Terminal struct {
	Order      *terminal.LocalOrder
	Gateway    *terminal.Gateway
	Sender     *terminal.Sender
	Payments   *terminal.Payments
	Tabs       *terminal.Tabs
	Reconciler *terminal.Reconciler
	Consumer   *broadcast.Consumer
	Queue      *printqueue.Queue

	drafts *draftstore.Store
	jobs   *cron.Service
	logg   *logger.Logger
}

// NewTerminal wires the terminal from configuration. A draft staged by a
// previous run is restored under its original draft id.
func NewTerminal(ctx context.Context, cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, pubsubClient *pubsub.Client) (*Terminal, error) {
	terminalID := cfg.Terminal.ID
	if terminalID == "" {
		return nil, fmt.Errorf("terminal id is required")
	}
	locationID, err := uuid.Parse(cfg.Terminal.LocationID)
	if err != nil {
		return nil, fmt.Errorf("invalid location id: %w", err)
	}

	drafts, err := draftstore.NewStore(cfg.Terminal.DraftDBPath, logg)
	if err != nil {
		return nil, err
	}

	localOrder, err := restoreOrder(ctx, drafts, locationID, logg)
	if err != nil {
		return nil, err
	}

	client, err := terminal.NewClient(cfg.Terminal, logg)
	if err != nil {
		return nil, err
	}

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

	reconciler, err := terminal.NewReconciler(client, client, localOrder, logg, syncMetrics)
	if err != nil {
		return nil, err
	}

	gateway, err := terminal.NewGateway(terminal.GatewayParams{
		Order:      localOrder,
		Client:     client,
		Reconciler: reconciler,
		Logger:     logg,
		TerminalID: terminalID,
	})
	if err != nil {
		return nil, err
	}

	printer, err := printqueue.NewHTTPPrinter(cfg.Print, terminalID)
	if err != nil {
		return nil, err
	}
	queue, err := printqueue.NewQueue(printqueue.QueueParams{
		Store:       redisClient,
		Printer:     printer,
		Logger:      logg,
		Metrics:     syncMetrics,
		TerminalID:  terminalID,
		MaxAttempts: cfg.Print.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	sender, err := terminal.NewSender(terminal.SenderParams{
		Order:      localOrder,
		Gateway:    gateway,
		Client:     client,
		Reconciler: reconciler,
		Printer:    queue,
		TerminalID: terminalID,
	})
	if err != nil {
		return nil, err
	}

	payments, err := terminal.NewPayments(terminal.PaymentsParams{
		Order:      localOrder,
		Gateway:    gateway,
		Client:     client,
		Reconciler: reconciler,
		Printer:    queue,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	tabs, err := terminal.NewTabs(localOrder, gateway, reconciler, logg)
	if err != nil {
		return nil, err
	}

	sub := pubsubClient.OrdersSubscription()
	if sub == nil {
		return nil, fmt.Errorf("orders subscription is not configured")
	}
	consumer, err := broadcast.NewConsumer(broadcast.ConsumerParams{
		Subscriber: sub,
		Refetch: func(ctx context.Context) ([]types.OpenOrder, error) {
			return client.ListOpenOrders(ctx, locationID)
		},
		Logger:  logg,
		Metrics: syncMetrics,
		Config:  cfg.Broadcast,
	})
	if err != nil {
		return nil, err
	}

	drainJob, err := cron.NewPrintDrainJob(queue, localOrder.ResolveID)
	if err != nil {
		return nil, err
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("print-drain:"+terminalID), 0)
	if err != nil {
		return nil, err
	}
	jobs, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(drainJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Print.DrainInterval,
	})
	if err != nil {
		return nil, err
	}

	return &Terminal{
		Order:      localOrder,
		Gateway:    gateway,
		Sender:     sender,
		Payments:   payments,
		Tabs:       tabs,
		Reconciler: reconciler,
		Consumer:   consumer,
		Queue:      queue,
		drafts:     drafts,
		jobs:       jobs,
		logg:       logg,
	}, nil
}

// Run drives the broadcast consumer and the drain worker until the context is
// cancelled, then stages the in-progress draft for the next run.
func (t *Terminal) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return t.Consumer.Run(groupCtx)
	})
	group.Go(func() error {
		return t.jobs.Run(groupCtx)
	})
	err := group.Wait()

	// Staging runs on a fresh context; the run context is already cancelled.
	if saveErr := t.drafts.Save(context.Background(), t.Order.Snapshot()); saveErr != nil {
		t.logg.Error(ctx, "failed to stage draft on shutdown", saveErr)
	}
	return err
}

func restoreOrder(ctx context.Context, drafts *draftstore.Store, locationID uuid.UUID, logg *logger.Logger) (*terminal.LocalOrder, error) {
	draft, err := drafts.Load(ctx)
	if err != nil {
		return nil, err
	}
	if draft == nil || draft.LocationID != locationID {
		return terminal.NewLocalOrder(locationID, enums.OrderKindDineIn), nil
	}

	logCtx := logg.WithField(ctx, "draft_id", draft.DraftID)
	logg.Info(logCtx, "restored staged draft")
	return terminal.RestoreLocalOrder(draft.DraftID, draft.LocationID, draft.Kind, draft.TabName, draft.TableNumber, draft.Items), nil
}
