package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"venue-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderTransitioned publishes OrderTransitioned event
func (ep *EventPublisher) PublishOrderTransitioned(ctx context.Context, event *models.OrderTransitionedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishTicketsRouted publishes TicketsRouted event
func (ep *EventPublisher) PublishTicketsRouted(ctx context.Context, event *models.TicketsRoutedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishTableReleased publishes TableReleased event
func (ep *EventPublisher) PublishTableReleased(ctx context.Context, event *models.TableReleasedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("table-%s", event.TableID), event)
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order-%s", orderID)
}

// EventHandler routes inbound payment webhook events
type EventHandler struct {
	onIntentSucceeded func(context.Context, *models.PaymentIntentSucceededEvent) error
	onIntentFailed    func(context.Context, *models.PaymentIntentFailedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentIntentSucceeded registers a handler for successful intents
func (eh *EventHandler) OnPaymentIntentSucceeded(handler func(context.Context, *models.PaymentIntentSucceededEvent) error) {
	eh.onIntentSucceeded = handler
}

// OnPaymentIntentFailed registers a handler for failed intents
func (eh *EventHandler) OnPaymentIntentFailed(handler func(context.Context, *models.PaymentIntentFailedEvent) error) {
	eh.onIntentFailed = handler
}

// HandleMessage routes messages to the registered handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypePaymentIntentSucceeded:
		if eh.onIntentSucceeded != nil {
			var event models.PaymentIntentSucceededEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentIntentSucceeded event: %w", err)
			}
			return eh.onIntentSucceeded(ctx, &event)
		}

	case models.EventTypePaymentIntentFailed:
		if eh.onIntentFailed != nil {
			var event models.PaymentIntentFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentIntentFailed event: %w", err)
			}
			return eh.onIntentFailed(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
