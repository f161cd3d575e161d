package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adityak74/weatherweave/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeWeatherSource struct {
	calls atomic.Int32
	gate  chan struct{} // when non-nil, Current blocks until closed
	err   error
	code  int
}

func (f *fakeWeatherSource) Current(ctx context.Context, _ domain.Coordinates) (domain.WeatherSnapshot, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return domain.WeatherSnapshot{}, f.err
	}
	return domain.WeatherSnapshot{
		Temperature: 60 + float64(n),
		CloudCover:  20,
		WeatherCode: f.code,
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var here = domain.Coordinates{Latitude: 37.77, Longitude: -122.42}

func TestWeatherCache_ServesCachedWithinInterval(t *testing.T) {
	clock := newFakeClock()
	src := &fakeWeatherSource{}
	cache := NewWeatherCache(testLogger(), src, 300*time.Second, clock.Now)

	first, err := cache.FetchWeather(context.Background(), here)
	require.NoError(t, err)

	clock.Advance(299 * time.Second)
	second, err := cache.FetchWeather(context.Background(), here)
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, clock.Now().Add(-299*time.Second), first.CapturedAt)
}

func TestWeatherCache_RefetchesAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	src := &fakeWeatherSource{}
	cache := NewWeatherCache(testLogger(), src, 300*time.Second, clock.Now)

	first, err := cache.FetchWeather(context.Background(), here)
	require.NoError(t, err)

	clock.Advance(300 * time.Second)
	second, err := cache.FetchWeather(context.Background(), here)
	require.NoError(t, err)

	assert.Equal(t, int32(2), src.calls.Load())
	assert.NotEqual(t, first.Temperature, second.Temperature)
}

func TestWeatherCache_FailureKeepsPreviousEntry(t *testing.T) {
	clock := newFakeClock()
	src := &fakeWeatherSource{}
	cache := NewWeatherCache(testLogger(), src, 300*time.Second, clock.Now)

	good, err := cache.FetchWeather(context.Background(), here)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	src.err = errors.New("status 503")

	_, err = cache.FetchWeather(context.Background(), here)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWeatherFetch)

	last, ok := cache.LastKnown()
	require.True(t, ok)
	assert.Equal(t, good, last)
}

func TestWeatherCache_NoSnapshotBeforeFirstSuccess(t *testing.T) {
	cache := NewWeatherCache(testLogger(), &fakeWeatherSource{err: errors.New("offline")}, 0, nil)

	_, err := cache.FetchWeather(context.Background(), here)
	assert.ErrorIs(t, err, domain.ErrWeatherFetch)

	_, ok := cache.LastKnown()
	assert.False(t, ok)
}

func TestWeatherCache_SingleFlight(t *testing.T) {
	clock := newFakeClock()
	src := &fakeWeatherSource{gate: make(chan struct{})}
	cache := NewWeatherCache(testLogger(), src, 300*time.Second, clock.Now)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]domain.WeatherSnapshot, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.FetchWeather(context.Background(), here)
		}(i)
	}

	// Let the first flight start, then give the rest time to pile up behind it.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestWeatherCache_SingleFlightAtExpiry(t *testing.T) {
	clock := newFakeClock()
	src := &fakeWeatherSource{}
	cache := NewWeatherCache(testLogger(), src, 300*time.Second, clock.Now)

	first, err := cache.FetchWeather(context.Background(), here)
	require.NoError(t, err)

	// The entry expires when its age reaches the interval.
	src.gate = make(chan struct{})
	clock.Advance(300 * time.Second)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]domain.WeatherSnapshot, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.FetchWeather(context.Background(), here)
		}(i)
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(2), src.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.NotEqual(t, first, results[0])
}

func TestWeatherCache_SingleFlightSharesFailure(t *testing.T) {
	src := &fakeWeatherSource{gate: make(chan struct{}), err: errors.New("boom")}
	cache := NewWeatherCache(testLogger(), src, 0, nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.FetchWeather(context.Background(), here)
		}(i)
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, domain.ErrWeatherFetch)
	}
}

func TestWeatherCache_CallerCancellation(t *testing.T) {
	src := &fakeWeatherSource{gate: make(chan struct{})}
	defer close(src.gate)
	cache := NewWeatherCache(testLogger(), src, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cache.FetchWeather(ctx, here)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrWeatherFetch)
}
