package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/redis/go-redis/v9"
)

type AvailabilityCache interface {
	Get(ctx context.Context, day time.Time) (*domain.Availability, error)
	Set(ctx context.Context, day time.Time, a *domain.Availability) error
	Invalidate(ctx context.Context, day time.Time) error
}

type redisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) AvailabilityCache {
	return &redisAvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(day time.Time) string {
	return "cache:seats:" + domain.DayKey(day)
}

func (c *redisAvailabilityCache) Get(ctx context.Context, day time.Time) (*domain.Availability, error) {
	data, err := c.client.Get(ctx, availabilityKey(day)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var a domain.Availability
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *redisAvailabilityCache) Set(ctx context.Context, day time.Time, a *domain.Availability) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, availabilityKey(day), payload, c.ttl).Err()
}

func (c *redisAvailabilityCache) Invalidate(ctx context.Context, day time.Time) error {
	return c.client.Del(ctx, availabilityKey(day)).Err()
}
