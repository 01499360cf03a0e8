package worker

import (
	"context"
	"time"

	"venue-service/internal/broker"
	"venue-service/internal/interfaces"
	"venue-service/internal/models"
	"venue-service/internal/service"
	"venue-service/internal/util"

	"go.uber.org/zap"
)

// PaymentWebhookWorker consumes processor intent events and drives the
// payment axis through the lifecycle manager. Delivery is at-least-once;
// consumed event ids are recorded so redeliveries are skipped.
type PaymentWebhookWorker struct {
	consumer  *broker.Consumer
	handler   *broker.EventHandler
	lifecycle *service.OrderLifecycleManager
	events    interfaces.EventStore
	logger    *zap.Logger
}

// NewPaymentWebhookWorker creates a payment webhook worker.
func NewPaymentWebhookWorker(
	consumer *broker.Consumer,
	lifecycle *service.OrderLifecycleManager,
	events interfaces.EventStore,
) *PaymentWebhookWorker {
	w := &PaymentWebhookWorker{
		consumer:  consumer,
		lifecycle: lifecycle,
		events:    events,
		logger:    util.GetLogger(),
	}

	handler := broker.NewEventHandler()
	handler.OnPaymentIntentSucceeded(w.handleIntentSucceeded)
	handler.OnPaymentIntentFailed(w.handleIntentFailed)
	w.handler = handler
	return w
}

// Start starts the worker
func (w *PaymentWebhookWorker) Start(ctx context.Context) error {
	w.logger.Info("starting payment webhook worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *PaymentWebhookWorker) Stop() error {
	w.logger.Info("stopping payment webhook worker")
	return w.consumer.Close()
}

func (w *PaymentWebhookWorker) handleIntentSucceeded(ctx context.Context, event *models.PaymentIntentSucceededEvent) error {
	done, err := w.seen(ctx, event.IntentRef, event.EventType)
	if err != nil || done {
		return err
	}
	if err := w.lifecycle.ApplyPaymentWebhook(ctx, event.OrderID, event.IntentRef, true); err != nil {
		return err
	}
	return w.events.MarkEventProcessed(ctx, event.IntentRef, event.EventType)
}

func (w *PaymentWebhookWorker) handleIntentFailed(ctx context.Context, event *models.PaymentIntentFailedEvent) error {
	done, err := w.seen(ctx, event.IntentRef+":failed", event.EventType)
	if err != nil || done {
		return err
	}
	if err := w.lifecycle.ApplyPaymentWebhook(ctx, event.OrderID, event.IntentRef, false); err != nil {
		return err
	}
	return w.events.MarkEventProcessed(ctx, event.IntentRef+":failed", event.EventType)
}

// seen reports whether the intent was already handled. The intent ref is the
// idempotency key, not the event id: the processor may mint a fresh event id
// per redelivery.
func (w *PaymentWebhookWorker) seen(ctx context.Context, key, eventType string) (bool, error) {
	processed, err := w.events.IsEventProcessed(ctx, key)
	if err != nil {
		return false, err
	}
	if processed {
		w.logger.Info("webhook already handled",
			zap.String("intent_key", key), zap.String("event_type", eventType))
	}
	return processed, nil
}

// VenueLister names the venues a scheduled backfill pass should visit.
type VenueLister interface {
	ListVenuesWithRecentOrders(ctx context.Context, since time.Time) ([]string, error)
}

// BackfillWorker runs the live-window ticket backfill on a schedule. It is
// the maintenance-job form of the self-healing read path: every pass
// converges on the same order-id idempotence key as direct routing.
type BackfillWorker struct {
	router   *service.KitchenTicketRouter
	venues   VenueLister
	interval time.Duration
	lookback time.Duration
	logger   *zap.Logger
}

// NewBackfillWorker creates a backfill worker.
func NewBackfillWorker(router *service.KitchenTicketRouter, venues VenueLister, interval, lookback time.Duration) *BackfillWorker {
	return &BackfillWorker{
		router:   router,
		venues:   venues,
		interval: interval,
		lookback: lookback,
		logger:   util.GetLogger(),
	}
}

// Start runs backfill passes until the context is cancelled.
func (w *BackfillWorker) Start(ctx context.Context) error {
	w.logger.Info("starting ticket backfill worker",
		zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping ticket backfill worker")
			return ctx.Err()
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *BackfillWorker) runPass(ctx context.Context) {
	venues, err := w.venues.ListVenuesWithRecentOrders(ctx, time.Now().Add(-w.lookback))
	if err != nil {
		w.logger.Error("backfill pass could not list venues", zap.Error(err))
		return
	}
	for _, venueID := range venues {
		result, err := w.router.Backfill(ctx, venueID, service.BackfillLive, time.UTC)
		if err != nil {
			w.logger.Error("backfill pass failed for venue",
				zap.String("venue_id", venueID), zap.Error(err))
			continue
		}
		if result.TicketsCreated > 0 {
			w.logger.Info("backfill pass healed missing tickets",
				zap.String("venue_id", venueID),
				zap.Int("tickets", result.TicketsCreated))
		}
	}
}
