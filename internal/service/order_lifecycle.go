package service

import (
	"context"
	"errors"
	"time"

	"venue-service/internal/interfaces"
	"venue-service/internal/models"
	"venue-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// orderTransitions is the forward adjacency of the preparation axis.
// CANCELLED and REFUNDED are handled by rule in canTransition, not listed
// per row.
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPlaced:    {models.OrderAccepted, models.OrderInPrep, models.OrderExpired},
	models.OrderAccepted:  {models.OrderInPrep, models.OrderReady},
	models.OrderInPrep:    {models.OrderReady},
	models.OrderReady:     {models.OrderServing, models.OrderServed},
	models.OrderServing:   {models.OrderServed},
	models.OrderServed:    {models.OrderCompleted},
	models.OrderCompleted: {},
	models.OrderCancelled: {},
	models.OrderRefunded:  {},
	models.OrderExpired:   {},
}

// paymentTransitions is the adjacency of the payment axis.
var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentUnpaid:   {models.PaymentPending, models.PaymentPayLater, models.PaymentPaid},
	models.PaymentPending:  {models.PaymentPaid, models.PaymentUnpaid},
	models.PaymentPayLater: {models.PaymentPaid, models.PaymentUnpaid},
	models.PaymentPaid:     {models.PaymentRefunded},
	models.PaymentRefunded: {},
}

func canTransitionOrder(from, to models.OrderStatus) bool {
	if from == to {
		return false
	}
	switch to {
	case models.OrderCancelled:
		return !from.IsTerminal()
	case models.OrderRefunded:
		return from != models.OrderRefunded && from != models.OrderExpired
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func canTransitionPayment(from, to models.PaymentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SideEffectOutcome reports how one best-effort side effect of a primary
// operation went. A non-nil Err never implies the primary operation failed.
type SideEffectOutcome struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
	OK   bool   `json:"ok"`
}

// OrderLifecycleManager owns the order entity's dual-axis status. All order
// mutations flow through it; the store never enforces transition legality.
type OrderLifecycleManager struct {
	orders         interfaces.OrderStore
	tables         *TableSessionManager
	router         *KitchenTicketRouter
	processor      interfaces.PaymentProcessor
	publisher      interfaces.EventPublisher
	confirmTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderLifecycleManager creates a new lifecycle manager. publisher and
// processor may be nil in contexts that never reach the paths using them.
func NewOrderLifecycleManager(
	orders interfaces.OrderStore,
	tables *TableSessionManager,
	router *KitchenTicketRouter,
	processor interfaces.PaymentProcessor,
	publisher interfaces.EventPublisher,
	confirmTimeout time.Duration,
) *OrderLifecycleManager {
	return &OrderLifecycleManager{
		orders:         orders,
		tables:         tables,
		router:         router,
		processor:      processor,
		publisher:      publisher,
		confirmTimeout: confirmTimeout,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// CreateOrderRequest carries one inbound order placement.
type CreateOrderRequest struct {
	VenueID      string             `json:"venue_id" binding:"required"`
	Items        []OrderItemRequest `json:"items" binding:"required"`
	PaymentMode  models.PaymentMode `json:"payment_mode" binding:"required"`
	TableID      *string            `json:"table_id,omitempty"`
	TableNumber  *string            `json:"table_number,omitempty"`
	CustomerName string             `json:"customer_name,omitempty"`
}

// OrderItemRequest is one line item of a placement. ItemID may be nil for
// ad-hoc items.
type OrderItemRequest struct {
	ItemID              *string `json:"item_id,omitempty"`
	Name                string  `json:"name" binding:"required"`
	Quantity            int     `json:"quantity" binding:"required"`
	UnitPrice           int64   `json:"unit_price"`
	SpecialInstructions string  `json:"special_instructions,omitempty"`
}

// CreateResult is the primary outcome of Create plus its side effects.
type CreateResult struct {
	Order       *models.Order       `json:"order"`
	Items       []models.OrderItem  `json:"items"`
	SideEffects []SideEffectOutcome `json:"side_effects"`
}

// TransitionResult is the primary outcome of Transition plus its side effects.
type TransitionResult struct {
	Order       *models.Order       `json:"order"`
	SideEffects []SideEffectOutcome `json:"side_effects"`
}

// Create places an order in (PLACED, UNPAID), or (PLACED, PAYMENT_PENDING)
// when an online payment intent was opened. Ticket seeding and event
// publication are best-effort side effects: their failure is reported in the
// result, never as an error.
func (m *OrderLifecycleManager) Create(ctx context.Context, req *CreateOrderRequest) (*CreateResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderLifecycleManager.Create")
	defer span.End()

	if req.VenueID == "" {
		return nil, validationError("venue_id is required")
	}
	if len(req.Items) == 0 {
		return nil, validationError("order must have at least one line item")
	}
	if !req.PaymentMode.Valid() {
		return nil, validationError("unknown payment mode %q", req.PaymentMode)
	}
	var total int64
	for i, item := range req.Items {
		if item.Name == "" {
			return nil, validationError("item %d has no name", i)
		}
		if item.Quantity <= 0 {
			return nil, validationError("item %q has non-positive quantity %d", item.Name, item.Quantity)
		}
		if item.UnitPrice < 0 {
			return nil, validationError("item %q has negative unit price", item.Name)
		}
		total += item.UnitPrice * int64(item.Quantity)
	}

	now := m.now()
	order := &models.Order{
		ID:            uuid.New().String(),
		VenueID:       req.VenueID,
		OrderStatus:   models.OrderPlaced,
		PaymentStatus: models.PaymentUnpaid,
		PaymentMode:   req.PaymentMode,
		TableID:       req.TableID,
		TableNumber:   req.TableNumber,
		CustomerName:  req.CustomerName,
		TotalAmount:   total,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result := &CreateResult{Order: order}

	if req.PaymentMode == models.PayOnline && m.processor != nil {
		ref, err := m.processor.CreateIntent(ctx, total, map[string]string{
			"order_id": order.ID,
			"venue_id": order.VenueID,
		})
		if err != nil {
			m.logger.Warn("payment intent creation failed, order stays UNPAID",
				zap.String("order_id", order.ID), zap.Error(err))
			result.SideEffects = append(result.SideEffects,
				SideEffectOutcome{Name: "payment_intent", Err: err})
		} else {
			order.PaymentIntentRef = ref
			order.PaymentStatus = models.PaymentPending
			result.SideEffects = append(result.SideEffects,
				SideEffectOutcome{Name: "payment_intent", OK: true})
		}
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.OrderItem{
			ID:                  uuid.New().String(),
			OrderID:             order.ID,
			ItemID:              item.ItemID,
			Name:                item.Name,
			Quantity:            item.Quantity,
			UnitPrice:           item.UnitPrice,
			SpecialInstructions: item.SpecialInstructions,
		})
	}

	if err := m.orders.CreateOrder(ctx, order, items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, internalError("failed to create order", err)
	}
	result.Items = items

	util.OrdersCreatedTotal.Inc()
	m.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("venue_id", order.VenueID),
		zap.Int64("total_amount", order.TotalAmount))

	if m.router != nil {
		if _, err := m.router.RouteOrder(ctx, order, items); err != nil {
			m.logger.Error("ticket seeding failed, order kept",
				zap.String("order_id", order.ID), zap.Error(err))
			result.SideEffects = append(result.SideEffects,
				SideEffectOutcome{Name: "ticket_seeding", Err: err})
		} else {
			result.SideEffects = append(result.SideEffects,
				SideEffectOutcome{Name: "ticket_seeding", OK: true})
		}
	}

	if m.publisher != nil {
		eventItems := make([]models.OrderItemData, 0, len(items))
		for _, it := range items {
			eventItems = append(eventItems, models.OrderItemData{
				ItemID: it.ItemID, Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice,
			})
		}
		event := &models.OrderCreatedEvent{
			BaseEvent:   m.baseEvent(models.EventTypeOrderCreated),
			OrderID:     order.ID,
			VenueID:     order.VenueID,
			TotalAmount: order.TotalAmount,
			PaymentMode: order.PaymentMode,
			Items:       eventItems,
		}
		if err := m.publisher.PublishOrderCreated(ctx, event); err != nil {
			m.logger.Error("failed to publish OrderCreated event", zap.Error(err))
		}
	}

	return result, nil
}

// Transition moves an order to targetStatus, optionally also moving the
// payment axis. Legality is checked against the adjacency tables; COMPLETED
// additionally requires the payment axis to land on PAID. The store write is
// conditioned on the previously read status pair; a lost race is retried once
// against fresh state, then surfaces as a conflict.
func (m *OrderLifecycleManager) Transition(
	ctx context.Context,
	venueID, orderID string,
	targetStatus models.OrderStatus,
	targetPayment *models.PaymentStatus,
	access models.AccessLevel,
) (*TransitionResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderLifecycleManager.Transition")
	defer span.End()

	var order *models.Order
	updated := false
	for attempt := 0; attempt < 2 && !updated; attempt++ {
		var err error
		order, err = m.getScopedOrder(ctx, venueID, orderID, access)
		if err != nil {
			return nil, err
		}

		if !canTransitionOrder(order.OrderStatus, targetStatus) {
			return nil, invalidStateError("order %s cannot move from %s to %s",
				orderID, order.OrderStatus, targetStatus)
		}

		nextPayment := order.PaymentStatus
		if targetPayment != nil {
			if !canTransitionPayment(order.PaymentStatus, *targetPayment) {
				return nil, invalidStateError("payment status cannot move from %s to %s",
					order.PaymentStatus, *targetPayment)
			}
			nextPayment = *targetPayment
		}
		if targetStatus == models.OrderRefunded {
			nextPayment = models.PaymentRefunded
		}

		if targetStatus == models.OrderCompleted && nextPayment != models.PaymentPaid {
			return nil, paymentNotConfirmedError("order %s is %s, completion requires PAID",
				orderID, nextPayment)
		}

		var servedAt *time.Time
		if targetStatus == models.OrderServed {
			t := m.now()
			servedAt = &t
		}

		ok, err := m.orders.UpdateOrderStatusCond(ctx, order.ID,
			order.OrderStatus, order.PaymentStatus, targetStatus, nextPayment, servedAt)
		if err != nil {
			return nil, internalError("failed to update order status", err)
		}
		if ok {
			order.OrderStatus = targetStatus
			order.PaymentStatus = nextPayment
			order.ServedAt = servedAt
			updated = true
		}
	}
	if !updated {
		util.OrderTransitionConflicts.Inc()
		return nil, conflictError("order %s changed concurrently, re-read and retry", orderID)
	}

	util.OrderTransitionsTotal.WithLabelValues(string(targetStatus)).Inc()
	m.logger.Info("order transitioned",
		zap.String("order_id", order.ID),
		zap.String("order_status", string(order.OrderStatus)),
		zap.String("payment_status", string(order.PaymentStatus)))

	result := &TransitionResult{Order: order}

	// Terminal transitions free the table. The order is the consistency
	// anchor: release failure is reported, never rolled back.
	if (targetStatus == models.OrderCompleted || targetStatus == models.OrderCancelled) &&
		order.TableID != nil && m.tables != nil {
		released, err := m.tables.Release(ctx, order.VenueID, *order.TableID, order.ID)
		if err != nil {
			m.logger.Error("table release failed after terminal transition",
				zap.String("order_id", order.ID),
				zap.String("table_id", *order.TableID),
				zap.Error(err))
			result.SideEffects = append(result.SideEffects,
				SideEffectOutcome{Name: "table_release", Err: err})
		} else {
			result.SideEffects = append(result.SideEffects,
				SideEffectOutcome{Name: "table_release", OK: true})
			if released && m.publisher != nil {
				event := &models.TableReleasedEvent{
					BaseEvent: m.baseEvent(models.EventTypeTableReleased),
					VenueID:   order.VenueID,
					TableID:   *order.TableID,
					OrderID:   order.ID,
				}
				if err := m.publisher.PublishTableReleased(ctx, event); err != nil {
					m.logger.Error("failed to publish TableReleased event", zap.Error(err))
				}
			}
		}
	}

	if m.publisher != nil {
		event := &models.OrderTransitionedEvent{
			BaseEvent:     m.baseEvent(models.EventTypeOrderTransitioned),
			OrderID:       order.ID,
			VenueID:       order.VenueID,
			OrderStatus:   order.OrderStatus,
			PaymentStatus: order.PaymentStatus,
		}
		if err := m.publisher.PublishOrderTransitioned(ctx, event); err != nil {
			m.logger.Error("failed to publish OrderTransitioned event", zap.Error(err))
		}
	}

	return result, nil
}

// UpdatePaymentMode changes the customer's declared payment intent. Illegal
// once the order is paid or completed.
func (m *OrderLifecycleManager) UpdatePaymentMode(
	ctx context.Context,
	venueID, orderID string,
	mode models.PaymentMode,
	access models.AccessLevel,
) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderLifecycleManager.UpdatePaymentMode")
	defer span.End()

	if !mode.Valid() {
		return nil, validationError("unknown payment mode %q", mode)
	}

	order, err := m.getScopedOrder(ctx, venueID, orderID, access)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentPaid || order.OrderStatus == models.OrderCompleted {
		return nil, invalidStateError("payment mode is immutable once order %s is paid or completed", orderID)
	}

	ok, err := m.orders.UpdatePaymentModeCond(ctx, order.ID, order.PaymentStatus, mode)
	if err != nil {
		return nil, internalError("failed to update payment mode", err)
	}
	if !ok {
		return nil, conflictError("order %s changed concurrently, re-read and retry", orderID)
	}

	order.PaymentMode = mode
	return order, nil
}

// ConfirmPayment synchronously verifies the order's payment intent with the
// processor and, on success, moves the payment axis to PAID. A processor
// deadline surfaces as a retryable upstream timeout, never a silent success.
func (m *OrderLifecycleManager) ConfirmPayment(
	ctx context.Context,
	venueID, orderID string,
	access models.AccessLevel,
) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderLifecycleManager.ConfirmPayment")
	defer span.End()

	order, err := m.getScopedOrder(ctx, venueID, orderID, access)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentPaid {
		return order, nil
	}
	if order.PaymentIntentRef == "" {
		return nil, invalidStateError("order %s has no payment intent to confirm", orderID)
	}
	if m.processor == nil {
		return nil, internalError("no payment processor configured", nil)
	}

	util.PaymentConfirmAttemptsTotal.Inc()
	checkCtx, cancel := context.WithTimeout(ctx, m.confirmTimeout)
	defer cancel()

	status, err := m.processor.GetIntentStatus(checkCtx, order.PaymentIntentRef)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || checkCtx.Err() == context.DeadlineExceeded {
			return nil, upstreamTimeoutError("payment processor did not answer in time", err)
		}
		return nil, internalError("payment processor call failed", err)
	}
	if status != interfaces.IntentSucceeded {
		return nil, paymentNotConfirmedError("payment intent %s is %s",
			order.PaymentIntentRef, status)
	}

	ok, err := m.orders.UpdateOrderStatusCond(ctx, order.ID,
		order.OrderStatus, order.PaymentStatus, order.OrderStatus, models.PaymentPaid, nil)
	if err != nil {
		return nil, internalError("failed to record payment", err)
	}
	if !ok {
		return nil, conflictError("order %s changed concurrently, re-read and retry", orderID)
	}

	order.PaymentStatus = models.PaymentPaid
	util.PaymentConfirmedTotal.Inc()
	m.logger.Info("payment confirmed",
		zap.String("order_id", order.ID),
		zap.String("intent_ref", order.PaymentIntentRef))
	return order, nil
}

// ApplyPaymentWebhook records a processor-delivered intent outcome. Delivery
// is at-least-once, so the method is idempotent: a succeeded intent on an
// already-PAID order is a no-op, and a stale ref is rejected before any write.
func (m *OrderLifecycleManager) ApplyPaymentWebhook(ctx context.Context, orderID, intentRef string, succeeded bool) error {
	ctx, span := util.StartSpan(ctx, "OrderLifecycleManager.ApplyPaymentWebhook")
	defer span.End()

	order, err := m.getScopedOrder(ctx, "", orderID, models.AccessElevated)
	if err != nil {
		return err
	}
	if order.PaymentIntentRef != intentRef {
		return validationError("intent %s does not belong to order %s", intentRef, orderID)
	}

	if succeeded {
		if order.PaymentStatus == models.PaymentPaid {
			return nil
		}
		ok, err := m.orders.UpdateOrderStatusCond(ctx, order.ID,
			order.OrderStatus, order.PaymentStatus, order.OrderStatus, models.PaymentPaid, nil)
		if err != nil {
			return internalError("failed to record webhook payment", err)
		}
		if !ok {
			return conflictError("order %s changed concurrently, webhook will be redelivered", orderID)
		}
		util.PaymentConfirmedTotal.Inc()
		m.logger.Info("payment confirmed via webhook",
			zap.String("order_id", orderID), zap.String("intent_ref", intentRef))
		return nil
	}

	if order.PaymentStatus != models.PaymentPending {
		return nil
	}
	ok, err := m.orders.UpdateOrderStatusCond(ctx, order.ID,
		order.OrderStatus, order.PaymentStatus, order.OrderStatus, models.PaymentUnpaid, nil)
	if err != nil {
		return internalError("failed to record webhook payment failure", err)
	}
	if !ok {
		return conflictError("order %s changed concurrently, webhook will be redelivered", orderID)
	}
	m.logger.Warn("payment intent failed, order back to UNPAID",
		zap.String("order_id", orderID), zap.String("intent_ref", intentRef))
	return nil
}

// GetOrder retrieves an order with its items, venue-scoped.
func (m *OrderLifecycleManager) GetOrder(
	ctx context.Context,
	venueID, orderID string,
	access models.AccessLevel,
) (*models.Order, []models.OrderItem, error) {
	order, err := m.getScopedOrder(ctx, venueID, orderID, access)
	if err != nil {
		return nil, nil, err
	}
	items, err := m.orders.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, internalError("failed to load order items", err)
	}
	return order, items, nil
}

func (m *OrderLifecycleManager) getScopedOrder(
	ctx context.Context,
	venueID, orderID string,
	access models.AccessLevel,
) (*models.Order, error) {
	order, err := m.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, internalError("failed to load order", err)
	}
	if order == nil {
		return nil, validationError("order %s not found", orderID)
	}
	if access != models.AccessElevated && order.VenueID != venueID {
		return nil, validationError("order %s not found", orderID)
	}
	return order, nil
}

func (m *OrderLifecycleManager) baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: m.now(),
	}
}
