package redis

import (
	"context"
	"errors"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/attendance"
	"github.com/classmark/classmark-hub/internal/domain/group"
	"github.com/classmark/classmark-hub/pkg/circuitbreaker"
	"github.com/classmark/classmark-hub/pkg/logger"
	"github.com/classmark/classmark-hub/pkg/retry"
)

// store is the subset of Cache used by SettingsCache.
type store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// cachedSettings is the JSON form of group.Settings.
type cachedSettings struct {
	Tolerance int    `json:"tolerance_minutes"`
	Strategy  string `json:"strategy"`
}

func encodeSettings(s group.Settings) cachedSettings {
	return cachedSettings{Tolerance: s.Tolerance.Int(), Strategy: s.Strategy.String()}
}

// refreshPolicy is short: Refresh runs inside a configure request.
var refreshPolicy = retry.Policy{
	Attempts:  3,
	BaseDelay: 20 * time.Millisecond,
	MaxDelay:  200 * time.Millisecond,
	Factor:    2,
	Jitter:    0.2,
	ShouldRetry: func(err error) bool {
		return !rejected(err)
	},
}

// SettingsCache is a read-through cache of resolved group settings.
// Redis failures trip the breaker and reads go straight to the source.
//
// Readers only fill an absent key. Writers overwrite it with Refresh, so a
// reader that loaded the row before a configure cannot put the old settings
// back after it.
type SettingsCache struct {
	cache   store
	source  group.SettingsSource
	breaker *circuitbreaker.Breaker
	ttl     time.Duration
	log     *logger.Logger
}

// NewSettingsCache creates a SettingsCache in front of source.
func NewSettingsCache(cache store, source group.SettingsSource, breaker *circuitbreaker.Breaker, ttl time.Duration, log *logger.Logger) *SettingsCache {
	if ttl <= 0 {
		ttl = TTLGroupSettings
	}
	return &SettingsCache{cache: cache, source: source, breaker: breaker, ttl: ttl, log: log}
}

// GetSettings returns cached settings or loads them from the source.
func (c *SettingsCache) GetSettings(ctx context.Context, groupID string) (group.Settings, error) {
	key := GroupSettingsKey(groupID)

	var cached cachedSettings
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Get(ctx, key, &cached)
	})
	if err == nil {
		if s, ok := decodeSettings(cached); ok {
			return s, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) && !rejected(err) {
		c.log.Warn("settings cache read failed", logger.GroupID(groupID), logger.Err(err))
	}

	s, err := c.source.GetSettings(ctx, groupID)
	if err != nil {
		return group.Settings{}, err
	}

	if err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.cache.SetIfAbsent(ctx, key, encodeSettings(s), c.ttl)
		return err
	}); err != nil && !rejected(err) {
		c.log.Warn("settings cache write failed", logger.GroupID(groupID), logger.Err(err))
	}

	return s, nil
}

// Refresh replaces the cached settings of a group with s, which must already
// be stored in the source. When neither the write nor a delete reaches Redis
// the previous entry may still be served; the returned duration bounds how
// long, and the error says why.
func (c *SettingsCache) Refresh(ctx context.Context, groupID string, s group.Settings) (time.Duration, error) {
	key := GroupSettingsKey(groupID)
	value := encodeSettings(s)

	err := refreshPolicy.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.cache.Set(ctx, key, value, c.ttl)
		})
	})
	if err == nil {
		return 0, nil
	}
	c.log.Warn("settings cache refresh failed, deleting entry", logger.GroupID(groupID), logger.Err(err))

	// An open breaker says nothing about this key; try the delete anyway.
	if delErr := c.cache.Delete(ctx, key); delErr != nil {
		return c.ttl, errors.Join(err, delErr)
	}
	return 0, nil
}

func decodeSettings(v cachedSettings) (group.Settings, bool) {
	tol, err := group.NewToleranceMinutes(v.Tolerance)
	if err != nil {
		return group.Settings{}, false
	}
	kind := attendance.StrategyKind(v.Strategy)
	if !kind.IsValid() {
		return group.Settings{}, false
	}
	return group.Settings{Tolerance: tol, Strategy: kind}, true
}
