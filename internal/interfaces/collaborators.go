package interfaces

import (
	"context"

	"venue-service/internal/models"
)

// IntentStatus is the payment processor's view of an intent.
type IntentStatus string

const (
	IntentSucceeded IntentStatus = "succeeded"
	IntentPending   IntentStatus = "pending"
	IntentFailed    IntentStatus = "failed"
)

// PaymentProcessor is the external payment collaborator.
type PaymentProcessor interface {
	CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (string, error)
	GetIntentStatus(ctx context.Context, intentRef string) (IntentStatus, error)
}

// CatalogLookup resolves a catalog item to its category. Unknown items
// resolve to the empty string, never an error the caller must handle.
type CatalogLookup interface {
	CategoryOf(ctx context.Context, itemID string) string
}

// EventPublisher publishes domain events. All publishing in the core is
// best-effort: failures are logged, never propagated.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderTransitioned(ctx context.Context, event *models.OrderTransitionedEvent) error
	PublishTicketsRouted(ctx context.Context, event *models.TicketsRoutedEvent) error
	PublishTableReleased(ctx context.Context, event *models.TableReleasedEvent) error
}

// SeedClaimer is the fast-path idempotency check in front of ticket routing.
// Claim returns false when another routing attempt already claimed the order.
// Implementations may fail open; the store-level existence check is the
// authoritative guard.
type SeedClaimer interface {
	ClaimTicketSeed(ctx context.Context, orderID string) (bool, error)
}
