package service

import (
	"context"

	"venue-service/internal/interfaces"
	"venue-service/internal/redisclient"
	"venue-service/internal/util"

	"go.uber.org/zap"
)

// CatalogClient resolves item categories with a Redis cache in front of the
// menu_items table. Lookups never fail the caller: any miss or error resolves
// to the empty category, which routes the item to Expo.
type CatalogClient struct {
	store  interfaces.CatalogStore
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewCatalogClient creates a catalog client. redis may be nil; lookups then
// always go to the store.
func NewCatalogClient(store interfaces.CatalogStore, redis *redisclient.Client) *CatalogClient {
	return &CatalogClient{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// CategoryOf resolves an item's category, "" when unknown.
func (c *CatalogClient) CategoryOf(ctx context.Context, itemID string) string {
	if itemID == "" {
		return ""
	}

	if c.redis != nil {
		if category, ok, err := c.redis.GetCategory(ctx, itemID); err != nil {
			c.logger.Warn("category cache read failed, falling back to store",
				zap.String("item_id", itemID), zap.Error(err))
		} else if ok {
			return category
		}
	}

	item, err := c.store.GetMenuItem(ctx, itemID)
	if err != nil {
		c.logger.Warn("catalog lookup failed, item routed to expo",
			zap.String("item_id", itemID), zap.Error(err))
		return ""
	}
	if item == nil {
		return ""
	}

	if c.redis != nil {
		if err := c.redis.SetCategory(ctx, itemID, item.Category); err != nil {
			c.logger.Warn("category cache write failed",
				zap.String("item_id", itemID), zap.Error(err))
		}
	}
	return item.Category
}
