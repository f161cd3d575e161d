package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

// DefaultCacheInterval is how long a snapshot is served without refetching.
const DefaultCacheInterval = 300 * time.Second

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// WeatherCache serves the most recent snapshot until it expires and
// collapses concurrent refreshes into a single upstream request.
type WeatherCache struct {
	logger *slog.Logger
	source domain.WeatherSource
	now    Clock
	group  singleflight.Group

	mu       sync.RWMutex
	interval time.Duration
	cached   *domain.WeatherSnapshot
	cachedAt time.Time
	onFetch  func(ok bool)
}

// NewWeatherCache creates a cache in front of source. A zero interval uses
// DefaultCacheInterval and a nil clock uses time.Now.
func NewWeatherCache(logger *slog.Logger, source domain.WeatherSource, interval time.Duration, now Clock) *WeatherCache {
	if interval <= 0 {
		interval = DefaultCacheInterval
	}
	if now == nil {
		now = time.Now
	}
	return &WeatherCache{
		logger:   logger,
		source:   source,
		now:      now,
		interval: interval,
	}
}

// SetInterval changes the cache lifetime for subsequent fetches.
func (c *WeatherCache) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultCacheInterval
	}
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
}

// OnFetch registers a hook called after every upstream request.
func (c *WeatherCache) OnFetch(fn func(ok bool)) {
	c.mu.Lock()
	c.onFetch = fn
	c.mu.Unlock()
}

// FetchWeather returns the cached snapshot when fresh, otherwise fetches a
// new one. On failure the previous entry is kept and the error wraps
// domain.ErrWeatherFetch.
func (c *WeatherCache) FetchWeather(ctx context.Context, at domain.Coordinates) (domain.WeatherSnapshot, error) {
	if snap, ok := c.fresh(); ok {
		return snap, nil
	}

	// One global slot: there is only one location context per process.
	ch := c.group.DoChan("current", func() (interface{}, error) {
		// A caller that queued behind a finished flight may find the cache
		// already refreshed.
		if snap, ok := c.fresh(); ok {
			return snap, nil
		}
		// Detached so one waiter giving up does not fail the others.
		return c.refresh(context.WithoutCancel(ctx), at)
	})

	select {
	case <-ctx.Done():
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: %w", domain.ErrWeatherFetch, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.WeatherSnapshot{}, res.Err
		}
		return res.Val.(domain.WeatherSnapshot), nil
	}
}

// LastKnown returns the most recent good snapshot regardless of age.
func (c *WeatherCache) LastKnown() (domain.WeatherSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached == nil {
		return domain.WeatherSnapshot{}, false
	}
	return *c.cached, true
}

func (c *WeatherCache) fresh() (domain.WeatherSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached == nil {
		return domain.WeatherSnapshot{}, false
	}
	if c.now().Sub(c.cachedAt) >= c.interval {
		return domain.WeatherSnapshot{}, false
	}
	return *c.cached, true
}

func (c *WeatherCache) refresh(ctx context.Context, at domain.Coordinates) (domain.WeatherSnapshot, error) {
	snap, err := c.source.Current(ctx, at)

	c.mu.Lock()
	hook := c.onFetch
	if err == nil {
		if snap.CapturedAt.IsZero() {
			snap.CapturedAt = c.now()
		}
		c.cached = &snap
		c.cachedAt = c.now()
	}
	c.mu.Unlock()

	if hook != nil {
		hook(err == nil)
	}

	if err != nil {
		c.logger.Warn("weather refresh failed, keeping previous snapshot", "error", err)
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: %w", domain.ErrWeatherFetch, err)
	}

	c.logger.Debug("weather refreshed",
		"code", snap.WeatherCode,
		"category", snap.Category(),
		"temperature", snap.Temperature,
	)
	return snap, nil
}
