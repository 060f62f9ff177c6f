// Package availability computes sellable quantities: on-hand stock minus the
// quantity reserved by confirmed bookings. The check is advisory under the
// single-mutator assumption, so results may be served from a short-lived
// cache.
package availability

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"ysksales/backend/internal/cache"
	"ysksales/backend/internal/domain"
)

type Engine struct {
	cache    cache.AvailabilityCache
	cacheTTL time.Duration
}

func NewEngine(cacheStore cache.AvailabilityCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopAvailabilityCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

// Resolve builds per-product availability from the supplied stock and
// reservation snapshots. Available can go negative when bookings oversubscribe
// stock; callers treat anything below the requested quantity as unavailable.
func (e *Engine) Resolve(
	ctx context.Context,
	req domain.AvailabilityRequest,
	products map[string]domain.Product,
	reserved map[string]int,
) domain.AvailabilityResponse {
	cacheKey := buildCacheKey(req)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		return *cached
	}

	ids := normalizeIDs(req.ProductIDs)
	items := make([]domain.ProductAvailability, 0, len(ids))
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			continue
		}
		r := reserved[id]
		items = append(items, domain.ProductAvailability{
			ProductID: id,
			Stock:     product.Stock,
			Reserved:  r,
			Available: product.Stock - r,
		})
	}

	resp := domain.AvailabilityResponse{Items: items}
	_ = e.cache.Set(ctx, cacheKey, &resp, e.cacheTTL)
	return resp
}

// Sellable reports whether qty units of one product can be sold given its
// stock and reservation totals.
func Sellable(product domain.Product, reserved int, qty int) bool {
	if qty < 1 {
		return false
	}
	return product.Stock-reserved >= qty
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

func buildCacheKey(req domain.AvailabilityRequest) string {
	parts := normalizeIDs(req.ProductIDs)
	if req.ExcludeBookingID != "" {
		parts = append(parts, "x:"+req.ExcludeBookingID)
	}
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "pos:availability:" + hex.EncodeToString(hash[:])
}
