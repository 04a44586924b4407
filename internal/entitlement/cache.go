package entitlement

import (
	"context"
	"strconv"

	"github.com/eleven-am/label-scan/internal/securestore"
)

const premiumKey = "entitlement.premium"

// Cache remembers the last known premium status between runs. It is a
// local hint for gating scan quotas; the classification service enforces
// the real limit.
type Cache struct {
	store *securestore.Store
}

func NewCache(store *securestore.Store) *Cache {
	return &Cache{store: store}
}

func (c *Cache) IsPremium(ctx context.Context) bool {
	v, err := strconv.ParseBool(c.store.GetItem(ctx, premiumKey, "false"))
	return err == nil && v
}

func (c *Cache) SetPremium(ctx context.Context, premium bool) error {
	return c.store.SetItem(ctx, premiumKey, strconv.FormatBool(premium))
}

func (c *Cache) Reset(ctx context.Context) error {
	return c.store.RemoveItem(ctx, premiumKey)
}
