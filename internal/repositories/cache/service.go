package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"afilia/internal/models"

	"github.com/redis/go-redis/v9"
)

// CacheService wraps redis with JSON encoding and a default TTL.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations

func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Get unmarshals the cached value into dest and reports whether the key
// was present.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// Membership list caching. A cache failure is never fatal to the read
// or write path; it only costs a database round trip.

func membershipListKey(userID uint) string {
	return fmt.Sprintf("memberships:user:%d", userID)
}

func (s *CacheService) GetList(ctx context.Context, userID uint) ([]*models.Membership, bool) {
	var memberships []*models.Membership
	found, err := s.Get(ctx, membershipListKey(userID), &memberships)
	if err != nil {
		log.Printf("membership list cache read failed for user %d: %v", userID, err)
		return nil, false
	}
	return memberships, found
}

func (s *CacheService) SetList(ctx context.Context, userID uint, memberships []*models.Membership) {
	if err := s.Set(ctx, membershipListKey(userID), memberships); err != nil {
		log.Printf("membership list cache write failed for user %d: %v", userID, err)
	}
}

func (s *CacheService) InvalidateList(ctx context.Context, userID uint) {
	if err := s.Delete(ctx, membershipListKey(userID)); err != nil {
		log.Printf("membership list cache invalidation failed for user %d: %v", userID, err)
	}
}

func (s *CacheService) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

func (s *CacheService) FlushAll(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

func (s *CacheService) Close() error {
	return s.client.Close()
}
