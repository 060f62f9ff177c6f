package cache

import (
	"context"
	"time"

	"ysksales/backend/internal/domain"
)

type AvailabilityCache interface {
	Get(ctx context.Context, key string) (*domain.AvailabilityResponse, bool, error)
	Set(ctx context.Context, key string, value *domain.AvailabilityResponse, ttl time.Duration) error
}

type NoopAvailabilityCache struct{}

func (NoopAvailabilityCache) Get(_ context.Context, _ string) (*domain.AvailabilityResponse, bool, error) {
	return nil, false, nil
}

func (NoopAvailabilityCache) Set(_ context.Context, _ string, _ *domain.AvailabilityResponse, _ time.Duration) error {
	return nil
}
