package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adityak74/weatherweave/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	mu       sync.Mutex
	calls    atomic.Int32
	triggers []domain.RunTrigger
}

func (c *countingRunner) Run(_ context.Context, trigger domain.RunTrigger) (domain.Artifact, domain.RunID, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.triggers = append(c.triggers, trigger)
	c.mu.Unlock()
	return domain.Artifact{}, "run", nil
}

func (c *countingRunner) lastTrigger() domain.RunTrigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.triggers) == 0 {
		return ""
	}
	return c.triggers[len(c.triggers)-1]
}

func TestAutoUpdater_RunsOnInterval(t *testing.T) {
	runner := &countingRunner{}
	u := NewAutoUpdater(testLogger(), runner)

	cfg := domain.DefaultConfig()
	cfg.UpdateInterval = 1

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- u.Run(ctx, cfg) }()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, domain.TriggerSchedule, runner.lastTrigger())
	assert.Equal(t, time.Second, u.Interval())

	cancel()
	require.NoError(t, <-done)
}

func TestAutoUpdater_DisabledSchedulesNothing(t *testing.T) {
	runner := &countingRunner{}
	u := NewAutoUpdater(testLogger(), runner)

	cfg := domain.DefaultConfig()
	cfg.AutoUpdate = false
	require.NoError(t, u.Apply(cfg))
	assert.Equal(t, time.Duration(0), u.Interval())

	cfg.AutoUpdate = true
	cfg.UpdateInterval = 600
	require.NoError(t, u.Apply(cfg))
	assert.Equal(t, 10*time.Minute, u.Interval())
}

func TestAutoUpdater_TriggerWake(t *testing.T) {
	runner := &countingRunner{}
	u := NewAutoUpdater(testLogger(), runner)

	cfg := domain.DefaultConfig()
	cfg.UpdateOnWake = false
	require.NoError(t, u.Apply(cfg))
	assert.False(t, u.TriggerWake())

	cfg.UpdateOnWake = true
	require.NoError(t, u.Apply(cfg))
	assert.True(t, u.TriggerWake())

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.TriggerWake, runner.lastTrigger())
}
