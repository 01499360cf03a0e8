package service

import (
	"context"
	"time"

	"venue-service/internal/interfaces"
	"venue-service/internal/util"
)

// DashboardCounts partitions the qualifying orders of a venue into three
// disjoint time buckets plus revenue totals. liveCount + earlierTodayCount
// always equals todayOrdersCount, and todayOrdersCount and historyCount never
// share an order.
type DashboardCounts struct {
	LiveCount         int   `json:"live_count"`
	EarlierTodayCount int   `json:"earlier_today_count"`
	HistoryCount      int   `json:"history_count"`
	TodayOrdersCount  int   `json:"today_orders_count"`
	TodayRevenue      int64 `json:"today_revenue"`
	TotalRevenue      int64 `json:"total_revenue"`
}

// DashboardAggregator is a read-only windowed counter over the order store.
// It never mutates state.
type DashboardAggregator struct {
	store interfaces.DashboardStore
	now   func() time.Time
}

// NewDashboardAggregator creates a dashboard aggregator.
func NewDashboardAggregator(store interfaces.DashboardStore) *DashboardAggregator {
	return &DashboardAggregator{store: store, now: time.Now}
}

// Counts computes the live / earlier-today / history partition for a venue.
// Day boundaries are taken in the venue's timezone, not by UTC truncation.
func (a *DashboardAggregator) Counts(ctx context.Context, venueID, timezone string, liveWindowMinutes int) (*DashboardCounts, error) {
	ctx, span := util.StartSpan(ctx, "DashboardAggregator.Counts")
	defer span.End()

	if liveWindowMinutes <= 0 {
		return nil, validationError("live window must be positive, got %d", liveWindowMinutes)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, validationError("unknown timezone %q", timezone)
	}

	now := a.now()
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	liveCutoff := now.Add(-time.Duration(liveWindowMinutes) * time.Minute)
	if liveCutoff.Before(dayStart) {
		// Live never reaches past the local-day boundary; orders from
		// before midnight belong to history.
		liveCutoff = dayStart
	}

	counts := &DashboardCounts{}
	if counts.LiveCount, err = a.store.CountOrders(ctx, venueID, &liveCutoff, nil); err != nil {
		return nil, internalError("failed to count live orders", err)
	}
	if counts.EarlierTodayCount, err = a.store.CountOrders(ctx, venueID, &dayStart, &liveCutoff); err != nil {
		return nil, internalError("failed to count earlier-today orders", err)
	}
	if counts.HistoryCount, err = a.store.CountOrders(ctx, venueID, nil, &dayStart); err != nil {
		return nil, internalError("failed to count historical orders", err)
	}
	counts.TodayOrdersCount = counts.LiveCount + counts.EarlierTodayCount

	if counts.TodayRevenue, err = a.store.SumPaidRevenue(ctx, venueID, &dayStart, nil); err != nil {
		return nil, internalError("failed to sum today's revenue", err)
	}
	if counts.TotalRevenue, err = a.store.SumPaidRevenue(ctx, venueID, nil, nil); err != nil {
		return nil, internalError("failed to sum total revenue", err)
	}

	return counts, nil
}
