package service

import (
	"context"
	"strings"
	"time"

	"venue-service/internal/interfaces"
	"venue-service/internal/models"
	"venue-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultStations is the set EnsureStations creates for a venue with no
// active stations. Expo must stay first: it is the routing fallback.
var defaultStations = []struct {
	Name        string
	StationType string
	Color       string
}{
	{"Expo", models.StationTypeExpo, "#f59e0b"},
	{"Grill", "grill", "#ef4444"},
	{"Fryer", "fryer", "#f97316"},
	{"Barista", "barista", "#8b5cf6"},
	{"Cold Prep", "cold_prep", "#3b82f6"},
}

// BackfillScope selects the time window a backfill scans.
type BackfillScope string

const (
	// BackfillLive scans the recent live window.
	BackfillLive BackfillScope = "live"
	// BackfillToday scans since local midnight.
	BackfillToday BackfillScope = "today"
)

// backfillStatuses are the order states still expected to have tickets.
var backfillStatuses = []models.OrderStatus{
	models.OrderPlaced,
	models.OrderAccepted,
	models.OrderInPrep,
	models.OrderReady,
	models.OrderServing,
}

// RouteResult reports one RouteOrder invocation.
type RouteResult struct {
	TicketsCreated  int `json:"tickets_created"`
	TicketsExisting int `json:"tickets_existing"`
}

// BackfillResult reports one backfill scan.
type BackfillResult struct {
	OrdersProcessed int `json:"orders_processed"`
	TicketsCreated  int `json:"tickets_created"`
}

// KitchenTicketRouter creates per-item tickets at resolved stations.
// Tickets are derived data: anything missing is reconstructible from the
// order's line items, so the router treats absent tickets as a transient
// condition healed by RouteOrder or Backfill, both idempotent on order id.
type KitchenTicketRouter struct {
	tickets    interfaces.TicketStore
	catalog    interfaces.CatalogLookup
	claims     interfaces.SeedClaimer
	publisher  interfaces.EventPublisher
	liveWindow time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewKitchenTicketRouter creates a router. catalog, claims and publisher may
// be nil; routing then skips category lookup, the fast-path claim, or event
// publication respectively.
func NewKitchenTicketRouter(
	tickets interfaces.TicketStore,
	catalog interfaces.CatalogLookup,
	claims interfaces.SeedClaimer,
	publisher interfaces.EventPublisher,
	liveWindow time.Duration,
) *KitchenTicketRouter {
	return &KitchenTicketRouter{
		tickets:    tickets,
		catalog:    catalog,
		claims:     claims,
		publisher:  publisher,
		liveWindow: liveWindow,
		logger:     util.GetLogger(),
		now:        time.Now,
	}
}

// EnsureStations guarantees the venue has an active station set with Expo
// present. Safe to call on every request.
func (r *KitchenTicketRouter) EnsureStations(ctx context.Context, venueID string) ([]models.Station, error) {
	ctx, span := util.StartSpan(ctx, "KitchenTicketRouter.EnsureStations")
	defer span.End()

	stations, err := r.tickets.ListStations(ctx, venueID)
	if err != nil {
		return nil, internalError("failed to list stations", err)
	}

	active := make([]models.Station, 0, len(stations))
	hasExpo := false
	for _, s := range stations {
		if !s.IsActive {
			continue
		}
		active = append(active, s)
		if s.StationType == models.StationTypeExpo {
			hasExpo = true
		}
	}

	if len(active) == 0 {
		for i, def := range defaultStations {
			station := models.Station{
				ID:           uuid.New().String(),
				VenueID:      venueID,
				Name:         def.Name,
				StationType:  def.StationType,
				DisplayOrder: i,
				Color:        def.Color,
				IsActive:     true,
			}
			if err := r.tickets.CreateStation(ctx, &station); err != nil {
				return nil, internalError("failed to create default station", err)
			}
			active = append(active, station)
		}
		r.logger.Info("created default station set", zap.String("venue_id", venueID))
		return active, nil
	}

	if !hasExpo {
		station := models.Station{
			ID:           uuid.New().String(),
			VenueID:      venueID,
			Name:         "Expo",
			StationType:  models.StationTypeExpo,
			DisplayOrder: len(active),
			Color:        "#f59e0b",
			IsActive:     true,
		}
		if err := r.tickets.CreateStation(ctx, &station); err != nil {
			return nil, internalError("failed to create expo station", err)
		}
		active = append(active, station)
		r.logger.Info("restored missing expo station", zap.String("venue_id", venueID))
	}

	return active, nil
}

// DeriveTickets is the pure derived-view function: one spec per line item,
// carrying the category the caller resolved for it.
func DeriveTickets(items []models.OrderItem, categories map[string]string) []models.TicketSpec {
	specs := make([]models.TicketSpec, 0, len(items))
	for _, item := range items {
		category := ""
		if item.ItemID != nil {
			category = categories[*item.ItemID]
		}
		specs = append(specs, models.TicketSpec{
			OrderItemID:         item.ID,
			ItemName:            item.Name,
			Quantity:            item.Quantity,
			SpecialInstructions: item.SpecialInstructions,
			Category:            category,
		})
	}
	return specs
}

// resolveStation picks the station for one spec: the first active non-expo
// station whose name contains the category (case-insensitive) wins, then
// Expo, then the first active station.
func resolveStation(stations []models.Station, category string) *models.Station {
	if category != "" {
		needle := strings.ToLower(category)
		for i := range stations {
			s := &stations[i]
			if s.StationType == models.StationTypeExpo {
				continue
			}
			if strings.Contains(strings.ToLower(s.Name), needle) {
				return s
			}
		}
	}
	for i := range stations {
		if stations[i].StationType == models.StationTypeExpo {
			return &stations[i]
		}
	}
	if len(stations) > 0 {
		return &stations[0]
	}
	return nil
}

// RouteOrder creates one ticket per line item. If any ticket already exists
// for the order this is a no-op reporting the existing count. items may be
// nil, in which case they are loaded from the store. The existence check and
// the inserts share one transaction, closing the race between a direct
// creation and a concurrent backfill.
func (r *KitchenTicketRouter) RouteOrder(ctx context.Context, order *models.Order, items []models.OrderItem) (*RouteResult, error) {
	ctx, span := util.StartSpan(ctx, "KitchenTicketRouter.RouteOrder")
	defer span.End()

	// Fast path: a lost redis claim means another routing attempt already
	// ran; the transactional existence check below stays authoritative.
	if r.claims != nil {
		claimed, err := r.claims.ClaimTicketSeed(ctx, order.ID)
		if err != nil {
			r.logger.Warn("ticket seed claim unavailable, using store check only",
				zap.String("order_id", order.ID), zap.Error(err))
		} else if !claimed {
			existing, err := r.tickets.CountTicketsForOrder(ctx, order.VenueID, order.ID)
			if err != nil {
				return nil, internalError("failed to count existing tickets", err)
			}
			if existing > 0 {
				return &RouteResult{TicketsExisting: existing}, nil
			}
			// Claimed but never inserted (earlier attempt died): fall
			// through and let the transactional path settle it.
		}
	}

	stations, err := r.EnsureStations(ctx, order.VenueID)
	if err != nil {
		return nil, err
	}

	if items == nil {
		items, err = r.tickets.GetOrderItems(ctx, order.ID)
		if err != nil {
			return nil, internalError("failed to load order items", err)
		}
	}
	if len(items) == 0 {
		return &RouteResult{}, nil
	}

	categories := make(map[string]string)
	if r.catalog != nil {
		for _, item := range items {
			if item.ItemID == nil {
				continue
			}
			if _, seen := categories[*item.ItemID]; seen {
				continue
			}
			categories[*item.ItemID] = r.catalog.CategoryOf(ctx, *item.ItemID)
		}
	}
	specs := DeriveTickets(items, categories)

	tableLabel := ""
	if order.TableNumber != nil {
		tableLabel = *order.TableNumber
	}

	result := &RouteResult{}
	err = r.tickets.InTicketTx(ctx, func(tx interfaces.TicketStore) error {
		existing, err := tx.CountTicketsForOrder(ctx, order.VenueID, order.ID)
		if err != nil {
			return err
		}
		if existing > 0 {
			result.TicketsExisting = existing
			return nil
		}
		now := r.now()
		for _, spec := range specs {
			station := resolveStation(stations, spec.Category)
			ticket := models.KitchenTicket{
				ID:                  uuid.New().String(),
				VenueID:             order.VenueID,
				OrderID:             order.ID,
				OrderItemID:         spec.OrderItemID,
				StationID:           station.ID,
				Status:              models.TicketNew,
				ItemName:            spec.ItemName,
				Quantity:            spec.Quantity,
				SpecialInstructions: spec.SpecialInstructions,
				TableLabel:          tableLabel,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			if err := tx.CreateTicket(ctx, &ticket); err != nil {
				return err
			}
			result.TicketsCreated++
		}
		return nil
	})
	if err != nil {
		return nil, internalError("failed to create tickets", err)
	}

	if result.TicketsCreated > 0 {
		util.TicketsRoutedTotal.Add(float64(result.TicketsCreated))
		r.logger.Info("tickets routed",
			zap.String("order_id", order.ID),
			zap.Int("tickets", result.TicketsCreated))
		if r.publisher != nil {
			event := &models.TicketsRoutedEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypeTicketsRouted,
					Timestamp: r.now(),
				},
				OrderID:     order.ID,
				VenueID:     order.VenueID,
				TicketCount: result.TicketsCreated,
			}
			if err := r.publisher.PublishTicketsRouted(ctx, event); err != nil {
				r.logger.Error("failed to publish TicketsRouted event", zap.Error(err))
			}
		}
	}

	return result, nil
}

// Backfill scans orders in active preparation states within the scope's
// window that lack any ticket and routes each. Safe to re-run at any time;
// it converges on the same order-id idempotence key as direct creation.
func (r *KitchenTicketRouter) Backfill(ctx context.Context, venueID string, scope BackfillScope, loc *time.Location) (*BackfillResult, error) {
	ctx, span := util.StartSpan(ctx, "KitchenTicketRouter.Backfill")
	defer span.End()

	if loc == nil {
		loc = time.UTC
	}

	now := r.now()
	var since time.Time
	switch scope {
	case BackfillLive:
		since = now.Add(-r.liveWindow)
	case BackfillToday:
		local := now.In(loc)
		since = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	default:
		return nil, validationError("unknown backfill scope %q", scope)
	}

	orders, err := r.tickets.ListOrdersMissingTickets(ctx, venueID, backfillStatuses, since)
	if err != nil {
		return nil, internalError("failed to scan for orders without tickets", err)
	}

	result := &BackfillResult{}
	for i := range orders {
		routed, err := r.RouteOrder(ctx, &orders[i], nil)
		if err != nil {
			r.logger.Error("backfill routing failed for order",
				zap.String("order_id", orders[i].ID), zap.Error(err))
			continue
		}
		result.OrdersProcessed++
		result.TicketsCreated += routed.TicketsCreated
	}

	util.BackfillRunsTotal.WithLabelValues(string(scope)).Inc()
	if result.TicketsCreated > 0 {
		r.logger.Info("backfill created missing tickets",
			zap.String("venue_id", venueID),
			zap.String("scope", string(scope)),
			zap.Int("orders", result.OrdersProcessed),
			zap.Int("tickets", result.TicketsCreated))
	}
	return result, nil
}

// UpdateTicketStatus moves one ticket along the kitchen display states.
func (r *KitchenTicketRouter) UpdateTicketStatus(ctx context.Context, venueID, ticketID string, status models.TicketStatus) (*models.KitchenTicket, error) {
	ctx, span := util.StartSpan(ctx, "KitchenTicketRouter.UpdateTicketStatus")
	defer span.End()

	if !status.Valid() {
		return nil, validationError("unknown ticket status %q", status)
	}

	ticket, err := r.tickets.GetTicket(ctx, venueID, ticketID)
	if err != nil {
		return nil, internalError("failed to load ticket", err)
	}
	if ticket == nil {
		return nil, validationError("ticket %s not found", ticketID)
	}

	if err := r.tickets.UpdateTicketStatus(ctx, venueID, ticketID, status); err != nil {
		return nil, internalError("failed to update ticket status", err)
	}
	ticket.Status = status
	return ticket, nil
}
