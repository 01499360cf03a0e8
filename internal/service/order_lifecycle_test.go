package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"venue-service/internal/interfaces"
	"venue-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleFixture struct {
	manager    *OrderLifecycleManager
	orders     *fakeOrderStore
	tableStore *fakeTableStore
	tickets    *fakeTicketStore
	publisher  *fakePublisher
	processor  *fakeProcessor
}

func newLifecycleFixture() *lifecycleFixture {
	orders := newFakeOrderStore()
	tableStore := newFakeTableStore()
	tickets := newFakeTicketStore()
	publisher := &fakePublisher{}
	processor := newFakeProcessor()

	router := NewKitchenTicketRouter(tickets, &fakeCatalog{}, newFakeClaimer(), nil, 30*time.Minute)
	tables := NewTableSessionManager(tableStore)
	manager := NewOrderLifecycleManager(orders, tables, router, processor, publisher, 100*time.Millisecond)

	return &lifecycleFixture{
		manager:    manager,
		orders:     orders,
		tableStore: tableStore,
		tickets:    tickets,
		publisher:  publisher,
		processor:  processor,
	}
}

func (f *lifecycleFixture) seedOrder(id string, orderStatus models.OrderStatus, paymentStatus models.PaymentStatus) *models.Order {
	order := &models.Order{
		ID:            id,
		VenueID:       "venue-1",
		OrderStatus:   orderStatus,
		PaymentStatus: paymentStatus,
		PaymentMode:   models.PayAtTill,
		TotalAmount:   1500,
		CreatedAt:     time.Now(),
	}
	f.orders.seed(order)
	return order
}

func TestCreateOrder(t *testing.T) {
	f := newLifecycleFixture()

	result, err := f.manager.Create(context.Background(), &CreateOrderRequest{
		VenueID:     "venue-1",
		PaymentMode: models.PayAtTill,
		Items: []OrderItemRequest{
			{Name: "Burger", Quantity: 2, UnitPrice: 1000},
			{Name: "Fries", Quantity: 1, UnitPrice: 500},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderPlaced, result.Order.OrderStatus)
	assert.Equal(t, models.PaymentUnpaid, result.Order.PaymentStatus)
	assert.Equal(t, int64(2500), result.Order.TotalAmount)
	assert.Len(t, result.Items, 2)

	// Ticket seeding ran as a side effect, one ticket per line item.
	assert.Len(t, f.tickets.ticketsForOrder(result.Order.ID), 2)
	var seeding *SideEffectOutcome
	for i := range result.SideEffects {
		if result.SideEffects[i].Name == "ticket_seeding" {
			seeding = &result.SideEffects[i]
		}
	}
	require.NotNil(t, seeding)
	assert.True(t, seeding.OK)

	assert.Equal(t, 1, f.publisher.created)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		req  *CreateOrderRequest
	}{
		{"no venue", &CreateOrderRequest{PaymentMode: models.PayAtTill,
			Items: []OrderItemRequest{{Name: "Tea", Quantity: 1}}}},
		{"no items", &CreateOrderRequest{VenueID: "venue-1", PaymentMode: models.PayAtTill}},
		{"bad mode", &CreateOrderRequest{VenueID: "venue-1", PaymentMode: "cheque",
			Items: []OrderItemRequest{{Name: "Tea", Quantity: 1}}}},
		{"zero quantity", &CreateOrderRequest{VenueID: "venue-1", PaymentMode: models.PayAtTill,
			Items: []OrderItemRequest{{Name: "Tea", Quantity: 0}}}},
		{"negative price", &CreateOrderRequest{VenueID: "venue-1", PaymentMode: models.PayAtTill,
			Items: []OrderItemRequest{{Name: "Tea", Quantity: 1, UnitPrice: -5}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.manager.Create(ctx, tc.req)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestCreateOrderOnlineOpensIntent(t *testing.T) {
	f := newLifecycleFixture()

	result, err := f.manager.Create(context.Background(), &CreateOrderRequest{
		VenueID:     "venue-1",
		PaymentMode: models.PayOnline,
		Items:       []OrderItemRequest{{Name: "Latte", Quantity: 1, UnitPrice: 450}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentPending, result.Order.PaymentStatus)
	assert.Equal(t, "pi_test", result.Order.PaymentIntentRef)
}

func TestCreateOrderSurvivesIntentFailure(t *testing.T) {
	f := newLifecycleFixture()
	f.processor.createErr = errors.New("processor down")

	result, err := f.manager.Create(context.Background(), &CreateOrderRequest{
		VenueID:     "venue-1",
		PaymentMode: models.PayOnline,
		Items:       []OrderItemRequest{{Name: "Latte", Quantity: 1, UnitPrice: 450}},
	})
	require.NoError(t, err)

	// The order is kept; the intent failure is reported, not fatal.
	assert.Equal(t, models.PaymentUnpaid, result.Order.PaymentStatus)
	assert.Empty(t, result.Order.PaymentIntentRef)
	require.NotEmpty(t, result.SideEffects)
	assert.Equal(t, "payment_intent", result.SideEffects[0].Name)
	assert.Error(t, result.SideEffects[0].Err)
}

func TestTransitionLegality(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	f.seedOrder("o1", models.OrderPlaced, models.PaymentUnpaid)
	_, err := f.manager.Transition(ctx, "venue-1", "o1", models.OrderReady, nil, models.AccessScoped)
	assert.Equal(t, KindInvalidState, KindOf(err))

	result, err := f.manager.Transition(ctx, "venue-1", "o1", models.OrderAccepted, nil, models.AccessScoped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderAccepted, result.Order.OrderStatus)

	// Self-transition is not a legal move.
	_, err = f.manager.Transition(ctx, "venue-1", "o1", models.OrderAccepted, nil, models.AccessScoped)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestCompletionRequiresPaid(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	f.seedOrder("o1", models.OrderServed, models.PaymentUnpaid)
	_, err := f.manager.Transition(ctx, "venue-1", "o1", models.OrderCompleted, nil, models.AccessScoped)
	assert.Equal(t, KindPaymentNotConfirmed, KindOf(err))

	// Settling the payment axis in the same call satisfies the gate.
	paid := models.PaymentPaid
	result, err := f.manager.Transition(ctx, "venue-1", "o1", models.OrderCompleted, &paid, models.AccessScoped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, result.Order.OrderStatus)
	assert.Equal(t, models.PaymentPaid, result.Order.PaymentStatus)
}

func TestServedStampsTimestamp(t *testing.T) {
	f := newLifecycleFixture()

	f.seedOrder("o1", models.OrderReady, models.PaymentPaid)
	result, err := f.manager.Transition(context.Background(), "venue-1", "o1",
		models.OrderServed, nil, models.AccessScoped)
	require.NoError(t, err)
	require.NotNil(t, result.Order.ServedAt)
	assert.WithinDuration(t, time.Now(), *result.Order.ServedAt, time.Second)
}

func TestCancelAndRefundRules(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	f.seedOrder("prep", models.OrderInPrep, models.PaymentUnpaid)
	result, err := f.manager.Transition(ctx, "venue-1", "prep", models.OrderCancelled, nil, models.AccessScoped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, result.Order.OrderStatus)

	// A completed order can no longer be cancelled, only refunded.
	f.seedOrder("done", models.OrderCompleted, models.PaymentPaid)
	_, err = f.manager.Transition(ctx, "venue-1", "done", models.OrderCancelled, nil, models.AccessScoped)
	assert.Equal(t, KindInvalidState, KindOf(err))

	result, err = f.manager.Transition(ctx, "venue-1", "done", models.OrderRefunded, nil, models.AccessScoped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderRefunded, result.Order.OrderStatus)
	assert.Equal(t, models.PaymentRefunded, result.Order.PaymentStatus)

	// EXPIRED orders are out of reach even for refunds.
	f.seedOrder("gone", models.OrderExpired, models.PaymentUnpaid)
	_, err = f.manager.Transition(ctx, "venue-1", "gone", models.OrderRefunded, nil, models.AccessScoped)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestTransitionRetriesLostRaceOnce(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	f.seedOrder("o1", models.OrderPlaced, models.PaymentUnpaid)
	f.orders.failCondUpdates = 1
	result, err := f.manager.Transition(ctx, "venue-1", "o1", models.OrderAccepted, nil, models.AccessScoped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderAccepted, result.Order.OrderStatus)

	f.seedOrder("o2", models.OrderPlaced, models.PaymentUnpaid)
	f.orders.failCondUpdates = 2
	_, err = f.manager.Transition(ctx, "venue-1", "o2", models.OrderAccepted, nil, models.AccessScoped)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestTerminalTransitionReleasesTable(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	f.tableStore.addTable(&models.Table{ID: "t1", VenueID: "venue-1", Label: "5", SeatCount: 4})
	order := f.seedOrder("o1", models.OrderServed, models.PaymentPaid)
	order.TableID = strPtr("t1")
	f.orders.seed(order)

	result, err := f.manager.Transition(ctx, "venue-1", "o1", models.OrderCompleted, nil, models.AccessScoped)
	require.NoError(t, err)

	var release *SideEffectOutcome
	for i := range result.SideEffects {
		if result.SideEffects[i].Name == "table_release" {
			release = &result.SideEffects[i]
		}
	}
	require.NotNil(t, release)
	assert.True(t, release.OK)

	open := f.tableStore.openSession("venue-1", "t1")
	require.NotNil(t, open)
	assert.Equal(t, models.SessionFree, open.Status)
	assert.Equal(t, 1, f.publisher.tableReleased)
}

func TestTableKeptWhileOrdersRemain(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	f.tableStore.addTable(&models.Table{ID: "t1", VenueID: "venue-1", Label: "5", SeatCount: 4})
	f.tableStore.activeOrders["t1"] = []string{"o1", "o2"}

	order := f.seedOrder("o1", models.OrderServed, models.PaymentPaid)
	order.TableID = strPtr("t1")
	f.orders.seed(order)

	_, err := f.manager.Transition(ctx, "venue-1", "o1", models.OrderCompleted, nil, models.AccessScoped)
	require.NoError(t, err)

	// o2 is still active on the table, so no FREE session was opened.
	assert.Nil(t, f.tableStore.openSession("venue-1", "t1"))
	assert.Equal(t, 0, f.publisher.tableReleased)
}

func TestUpdatePaymentMode(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	f.seedOrder("o1", models.OrderPlaced, models.PaymentUnpaid)
	order, err := f.manager.UpdatePaymentMode(ctx, "venue-1", "o1", models.PayLater, models.AccessScoped)
	require.NoError(t, err)
	assert.Equal(t, models.PayLater, order.PaymentMode)

	f.seedOrder("paid", models.OrderServed, models.PaymentPaid)
	_, err = f.manager.UpdatePaymentMode(ctx, "venue-1", "paid", models.PayAtTill, models.AccessScoped)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestConfirmPayment(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	order := f.seedOrder("o1", models.OrderPlaced, models.PaymentPending)
	order.PaymentIntentRef = "pi_test"
	f.orders.seed(order)

	f.processor.settle("pi_test", interfaces.IntentPending)
	_, err := f.manager.ConfirmPayment(ctx, "venue-1", "o1", models.AccessScoped)
	assert.Equal(t, KindPaymentNotConfirmed, KindOf(err))

	f.processor.settle("pi_test", interfaces.IntentSucceeded)
	confirmed, err := f.manager.ConfirmPayment(ctx, "venue-1", "o1", models.AccessScoped)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, confirmed.PaymentStatus)

	// Re-confirming an already paid order is a no-op, not an error.
	again, err := f.manager.ConfirmPayment(ctx, "venue-1", "o1", models.AccessScoped)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, again.PaymentStatus)
}

func TestConfirmPaymentTimeout(t *testing.T) {
	f := newLifecycleFixture()

	order := f.seedOrder("o1", models.OrderPlaced, models.PaymentPending)
	order.PaymentIntentRef = "pi_test"
	f.orders.seed(order)

	f.processor.delay = time.Second
	_, err := f.manager.ConfirmPayment(context.Background(), "venue-1", "o1", models.AccessScoped)
	assert.Equal(t, KindUpstreamTimeout, KindOf(err))

	// The order was not silently marked paid.
	assert.Equal(t, models.PaymentPending, f.orders.get("o1").PaymentStatus)
}

func TestConfirmPaymentWithoutIntent(t *testing.T) {
	f := newLifecycleFixture()

	f.seedOrder("o1", models.OrderPlaced, models.PaymentUnpaid)
	_, err := f.manager.ConfirmPayment(context.Background(), "venue-1", "o1", models.AccessScoped)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestApplyPaymentWebhook(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	order := f.seedOrder("o1", models.OrderPlaced, models.PaymentPending)
	order.PaymentIntentRef = "pi_test"
	f.orders.seed(order)

	require.NoError(t, f.manager.ApplyPaymentWebhook(ctx, "o1", "pi_test", true))
	assert.Equal(t, models.PaymentPaid, f.orders.get("o1").PaymentStatus)

	// Redelivery is a no-op.
	require.NoError(t, f.manager.ApplyPaymentWebhook(ctx, "o1", "pi_test", true))
	assert.Equal(t, models.PaymentPaid, f.orders.get("o1").PaymentStatus)

	// A ref from some other intent never touches the order.
	err := f.manager.ApplyPaymentWebhook(ctx, "o1", "pi_other", true)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestApplyPaymentWebhookFailure(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	order := f.seedOrder("o1", models.OrderPlaced, models.PaymentPending)
	order.PaymentIntentRef = "pi_test"
	f.orders.seed(order)

	require.NoError(t, f.manager.ApplyPaymentWebhook(ctx, "o1", "pi_test", false))
	assert.Equal(t, models.PaymentUnpaid, f.orders.get("o1").PaymentStatus)

	// A late failure after the axis moved on is ignored.
	require.NoError(t, f.manager.ApplyPaymentWebhook(ctx, "o1", "pi_test", false))
	assert.Equal(t, models.PaymentUnpaid, f.orders.get("o1").PaymentStatus)
}

func TestVenueScoping(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	f.seedOrder("o1", models.OrderPlaced, models.PaymentUnpaid)

	_, _, err := f.manager.GetOrder(ctx, "venue-2", "o1", models.AccessScoped)
	assert.Equal(t, KindValidation, KindOf(err))

	order, _, err := f.manager.GetOrder(ctx, "venue-2", "o1", models.AccessElevated)
	require.NoError(t, err)
	assert.Equal(t, "o1", order.ID)
}
