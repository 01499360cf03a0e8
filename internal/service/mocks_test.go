package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"venue-service/internal/interfaces"
	"venue-service/internal/models"
)

// In-memory store fakes. They implement the same interfaces the Postgres
// store does, so the services under test run their full logic against them.

type fakeOrderStore struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
	items  map[string][]models.OrderItem

	createErr error
	// failCondUpdates makes the next N conditional updates report a lost
	// race without writing.
	failCondUpdates int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders: make(map[string]*models.Order),
		items:  make(map[string][]models.OrderItem),
	}
}

func (f *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *order
	f.orders[order.ID] = &cp
	f.items[order.ID] = append([]models.OrderItem(nil), items...)
	return nil
}

func (f *fakeOrderStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (f *fakeOrderStore) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]models.OrderItem(nil), f.items[orderID]...), nil
}

func (f *fakeOrderStore) UpdateOrderStatusCond(ctx context.Context, orderID string,
	expectStatus models.OrderStatus, expectPayment models.PaymentStatus,
	nextStatus models.OrderStatus, nextPayment models.PaymentStatus,
	servedAt *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCondUpdates > 0 {
		f.failCondUpdates--
		return false, nil
	}
	order, ok := f.orders[orderID]
	if !ok || order.OrderStatus != expectStatus || order.PaymentStatus != expectPayment {
		return false, nil
	}
	order.OrderStatus = nextStatus
	order.PaymentStatus = nextPayment
	if servedAt != nil {
		order.ServedAt = servedAt
	}
	order.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeOrderStore) UpdatePaymentModeCond(ctx context.Context, orderID string,
	expectPayment models.PaymentStatus, mode models.PaymentMode) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || order.PaymentStatus != expectPayment || order.OrderStatus == models.OrderCompleted {
		return false, nil
	}
	order.PaymentMode = mode
	return true, nil
}

// seed puts an order directly into the store, bypassing Create.
func (f *fakeOrderStore) seed(order *models.Order, items ...models.OrderItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *order
	f.orders[order.ID] = &cp
	f.items[order.ID] = append([]models.OrderItem(nil), items...)
}

func (f *fakeOrderStore) get(orderID string) *models.Order {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cp := *f.orders[orderID]
	return &cp
}

type fakeTableStore struct {
	mu       sync.RWMutex
	tables   map[string]*models.Table
	sessions []*models.TableSession
	// activeOrders maps table id to the non-terminal order ids still on it.
	activeOrders map[string][]string
}

func newFakeTableStore() *fakeTableStore {
	return &fakeTableStore{
		tables:       make(map[string]*models.Table),
		activeOrders: make(map[string][]string),
	}
}

func (f *fakeTableStore) InTx(ctx context.Context, fn func(tx interfaces.TableStore) error) error {
	return fn(f)
}

func (f *fakeTableStore) GetTable(ctx context.Context, venueID, tableID string) (*models.Table, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	table, ok := f.tables[tableID]
	if !ok || table.VenueID != venueID {
		return nil, nil
	}
	cp := *table
	return &cp, nil
}

func (f *fakeTableStore) UpdateTable(ctx context.Context, table *models.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *table
	f.tables[table.ID] = &cp
	return nil
}

func (f *fakeTableStore) CountMergeMembers(ctx context.Context, venueID, tableID string) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, t := range f.tables {
		if t.VenueID == venueID && t.MergedWithTableID != nil && *t.MergedWithTableID == tableID {
			n++
		}
	}
	return n, nil
}

func (f *fakeTableStore) GetOpenSession(ctx context.Context, venueID, tableID string) (*models.TableSession, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := len(f.sessions) - 1; i >= 0; i-- {
		s := f.sessions[i]
		if s.VenueID == venueID && s.TableID == tableID && s.ClosedAt == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeTableStore) CreateSession(ctx context.Context, session *models.TableSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *session
	f.sessions = append(f.sessions, &cp)
	return nil
}

func (f *fakeTableStore) CloseSession(ctx context.Context, sessionID string, status models.SessionStatus, closedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == sessionID && s.ClosedAt == nil {
			s.Status = status
			s.ClosedAt = &closedAt
			return nil
		}
	}
	return errors.New("session not open")
}

func (f *fakeTableStore) CountActiveOrdersForTable(ctx context.Context, venueID, tableID, excludeOrderID string) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, orderID := range f.activeOrders[tableID] {
		if orderID != excludeOrderID {
			n++
		}
	}
	return n, nil
}

func (f *fakeTableStore) addTable(table *models.Table) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *table
	f.tables[table.ID] = &cp
}

func (f *fakeTableStore) openSession(venueID, tableID string) *models.TableSession {
	s, _ := f.GetOpenSession(context.Background(), venueID, tableID)
	return s
}

func (f *fakeTableStore) table(tableID string) *models.Table {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cp := *f.tables[tableID]
	return &cp
}

type fakeTicketStore struct {
	mu       sync.RWMutex
	stations []models.Station
	tickets  map[string]*models.KitchenTicket
	items    map[string][]models.OrderItem
	orders   []models.Order
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		tickets: make(map[string]*models.KitchenTicket),
		items:   make(map[string][]models.OrderItem),
	}
}

func (f *fakeTicketStore) InTicketTx(ctx context.Context, fn func(tx interfaces.TicketStore) error) error {
	return fn(f)
}

func (f *fakeTicketStore) ListStations(ctx context.Context, venueID string) ([]models.Station, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Station, 0, len(f.stations))
	for _, s := range f.stations {
		if s.VenueID == venueID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeTicketStore) CreateStation(ctx context.Context, station *models.Station) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.stations {
		if s.VenueID == station.VenueID && s.Name == station.Name {
			return nil
		}
	}
	f.stations = append(f.stations, *station)
	return nil
}

func (f *fakeTicketStore) CountTicketsForOrder(ctx context.Context, venueID, orderID string) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, t := range f.tickets {
		if t.VenueID == venueID && t.OrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (f *fakeTicketStore) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]models.OrderItem(nil), f.items[orderID]...), nil
}

func (f *fakeTicketStore) CreateTicket(ctx context.Context, ticket *models.KitchenTicket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *ticket
	f.tickets[ticket.ID] = &cp
	return nil
}

func (f *fakeTicketStore) GetTicket(ctx context.Context, venueID, ticketID string) (*models.KitchenTicket, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tickets[ticketID]
	if !ok || t.VenueID != venueID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTicketStore) UpdateTicketStatus(ctx context.Context, venueID, ticketID string, status models.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[ticketID]
	if !ok || t.VenueID != venueID {
		return errors.New("ticket not found")
	}
	t.Status = status
	return nil
}

func (f *fakeTicketStore) ListOrdersMissingTickets(ctx context.Context, venueID string,
	statuses []models.OrderStatus, since time.Time) ([]models.Order, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	wanted := make(map[models.OrderStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []models.Order
	for _, order := range f.orders {
		if order.VenueID != venueID || !wanted[order.OrderStatus] || order.CreatedAt.Before(since) {
			continue
		}
		has := false
		for _, t := range f.tickets {
			if t.OrderID == order.ID {
				has = true
				break
			}
		}
		if !has {
			out = append(out, order)
		}
	}
	return out, nil
}

// seedOrder registers an order and its items for routing and backfill.
func (f *fakeTicketStore) seedOrder(order models.Order, items ...models.OrderItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	f.items[order.ID] = append([]models.OrderItem(nil), items...)
}

func (f *fakeTicketStore) ticketsForOrder(orderID string) []models.KitchenTicket {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []models.KitchenTicket
	for _, t := range f.tickets {
		if t.OrderID == orderID {
			out = append(out, *t)
		}
	}
	return out
}

type fakeDashboardStore struct {
	orders []models.Order
}

func (f *fakeDashboardStore) inWindow(o *models.Order, from, to *time.Time) bool {
	if from != nil && o.CreatedAt.Before(*from) {
		return false
	}
	if to != nil && !o.CreatedAt.Before(*to) {
		return false
	}
	return true
}

func (f *fakeDashboardStore) CountOrders(ctx context.Context, venueID string, from, to *time.Time) (int, error) {
	n := 0
	for i := range f.orders {
		o := &f.orders[i]
		if o.VenueID == venueID && o.CountsForDashboard() && f.inWindow(o, from, to) {
			n++
		}
	}
	return n, nil
}

func (f *fakeDashboardStore) SumPaidRevenue(ctx context.Context, venueID string, from, to *time.Time) (int64, error) {
	var sum int64
	for i := range f.orders {
		o := &f.orders[i]
		if o.VenueID == venueID && o.PaymentStatus == models.PaymentPaid && f.inWindow(o, from, to) {
			sum += o.TotalAmount
		}
	}
	return sum, nil
}

type fakePublisher struct {
	mu            sync.Mutex
	created       int
	transitioned  int
	ticketsRouted int
	tableReleased int
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return nil
}

func (f *fakePublisher) PublishOrderTransitioned(ctx context.Context, event *models.OrderTransitionedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitioned++
	return nil
}

func (f *fakePublisher) PublishTicketsRouted(ctx context.Context, event *models.TicketsRoutedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticketsRouted++
	return nil
}

func (f *fakePublisher) PublishTableReleased(ctx context.Context, event *models.TableReleasedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableReleased++
	return nil
}

type fakeProcessor struct {
	mu        sync.Mutex
	intents   map[string]interfaces.IntentStatus
	nextRef   string
	createErr error
	statusErr error
	// delay makes GetIntentStatus block until the context expires.
	delay time.Duration
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{intents: make(map[string]interfaces.IntentStatus), nextRef: "pi_test"}
}

func (f *fakeProcessor) CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	if _, ok := f.intents[f.nextRef]; !ok {
		f.intents[f.nextRef] = interfaces.IntentPending
	}
	return f.nextRef, nil
}

func (f *fakeProcessor) GetIntentStatus(ctx context.Context, intentRef string) (interfaces.IntentStatus, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	status, ok := f.intents[intentRef]
	if !ok {
		return interfaces.IntentFailed, nil
	}
	return status, nil
}

func (f *fakeProcessor) settle(intentRef string, status interfaces.IntentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[intentRef] = status
}

type fakeClaimer struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func newFakeClaimer() *fakeClaimer {
	return &fakeClaimer{claimed: make(map[string]bool)}
}

func (f *fakeClaimer) ClaimTicketSeed(ctx context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.claimed[orderID] {
		return false, nil
	}
	f.claimed[orderID] = true
	return true, nil
}

type fakeCatalog struct {
	categories map[string]string
}

func (f *fakeCatalog) CategoryOf(ctx context.Context, itemID string) string {
	return f.categories[itemID]
}

func strPtr(s string) *string { return &s }
