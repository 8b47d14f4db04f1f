// Package cache adds read-aside caching to a dispatch.TokenStore.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-gcm-service/pkg/dispatch"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// TokenCache is what the decorator needs from Redis.
type TokenCache interface {
	// Load returns ErrCacheMiss when the key is absent.
	Load(ctx context.Context, key string) ([]string, error)
	Store(ctx context.Context, key string, tokens []string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// CachedTokenStore serves Fetch from the cache and invalidates on every write.
type CachedTokenStore struct {
	store  dispatch.TokenStore
	cache  TokenCache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedTokenStore(store dispatch.TokenStore, cache TokenCache, ttl time.Duration, logger *slog.Logger) *CachedTokenStore {
	return &CachedTokenStore{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "CachedTokenStore"),
	}
}

func (s *CachedTokenStore) Fetch(ctx context.Context, user urn.URN) ([]string, error) {
	key := cacheKey(user)

	tokens, err := s.cache.Load(ctx, key)
	if err == nil {
		return tokens, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("Token cache read failed, using store", "err", err)
	}

	tokens, err = s.store.Fetch(ctx, user)
	if err != nil {
		return nil, err
	}

	// A failed refill only costs a store read next time.
	if err := s.cache.Store(ctx, key, tokens, s.ttl); err != nil {
		s.logger.Warn("Token cache refill failed", "err", err)
	}
	return tokens, nil
}

func (s *CachedTokenStore) Register(ctx context.Context, user urn.URN, token string) error {
	if err := s.store.Register(ctx, user, token); err != nil {
		return err
	}
	return s.invalidate(ctx, user)
}

// Unregister must clear the cache even though the store write succeeded,
// otherwise the removed device keeps receiving pushes until the TTL expires.
func (s *CachedTokenStore) Unregister(ctx context.Context, user urn.URN, token string) error {
	if err := s.store.Unregister(ctx, user, token); err != nil {
		return err
	}
	return s.invalidate(ctx, user)
}

func (s *CachedTokenStore) Replace(ctx context.Context, user urn.URN, oldToken, newToken string) error {
	if err := dispatch.ReplaceToken(ctx, s.store, user, oldToken, newToken); err != nil {
		return err
	}
	return s.invalidate(ctx, user)
}

func (s *CachedTokenStore) invalidate(ctx context.Context, user urn.URN) error {
	return s.cache.Invalidate(ctx, cacheKey(user))
}

func cacheKey(user urn.URN) string {
	return "gcm:tokens:" + user.String()
}
