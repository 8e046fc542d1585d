package giveaway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voralith-bot/internal/dispatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// inlinePoster runs tasks and their effects synchronously.
type inlinePoster struct{}

func (inlinePoster) Post(ctx context.Context, task dispatch.Task) error {
	if effect := task(); effect != nil {
		effect(ctx)
	}
	return nil
}

func TestSchedulerConcludesExpiredGiveaway(t *testing.T) {
	registry := NewRegistry()
	clock := &fakeClock{now: epoch}

	var announced []Result
	scheduler := NewScheduler(registry, inlinePoster{}, func(_ context.Context, result Result) error {
		announced = append(announced, result)
		return nil
	}, time.Minute, zap.NewNop())
	scheduler.WithClock(clock)

	g := create(t, registry, "1s")
	registry.Join(g.ID, "u1", epoch)

	require.NoError(t, scheduler.Tick(context.Background()))
	assert.Empty(t, announced, "not expired yet")

	clock.Advance(2 * time.Second)
	require.NoError(t, scheduler.Tick(context.Background()))
	require.Len(t, announced, 1)
	assert.Equal(t, "u1", announced[0].Winner)
	assert.Equal(t, 0, registry.Len())
}

func TestSchedulerIsolatesAnnouncementFailures(t *testing.T) {
	registry := NewRegistry()
	clock := &fakeClock{now: epoch}

	var seen []int
	scheduler := NewScheduler(registry, inlinePoster{}, func(_ context.Context, result Result) error {
		seen = append(seen, result.Giveaway.ID)
		switch result.Giveaway.ID {
		case 1:
			return errors.New("channel deleted")
		case 2:
			panic("embed builder bug")
		}
		return nil
	}, time.Minute, zap.NewNop())
	scheduler.WithClock(clock)

	for i := 0; i < 3; i++ {
		create(t, registry, "1s")
	}
	clock.Advance(time.Minute)

	require.NoError(t, scheduler.Tick(context.Background()))
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, 0, registry.Len())

	create(t, registry, "1s")
	clock.Advance(time.Minute)
	require.NoError(t, scheduler.Tick(context.Background()))
	assert.Equal(t, []int{1, 2, 3, 4}, seen, "scheduler keeps working after failures")
}

func TestSchedulerRunsHooks(t *testing.T) {
	registry := NewRegistry()
	clock := &fakeClock{now: epoch}
	scheduler := NewScheduler(registry, inlinePoster{}, func(context.Context, Result) error { return nil }, time.Minute, zap.NewNop())
	scheduler.WithClock(clock)

	var ticks []time.Time
	scheduler.OnTick(func(now time.Time) { ticks = append(ticks, now) })
	scheduler.OnTick(func(time.Time) { panic("hook bug") })

	require.NoError(t, scheduler.Tick(context.Background()))
	require.NoError(t, scheduler.Tick(context.Background()))
	assert.Equal(t, []time.Time{epoch, epoch}, ticks)
}

func TestSchedulerWithDispatchLoop(t *testing.T) {
	loop := dispatch.New(zap.NewNop(), 8, time.Second)
	loop.Start()
	defer loop.Stop()

	registry := NewRegistry()
	clock := &fakeClock{now: epoch}
	done := make(chan Result, 1)
	scheduler := NewScheduler(registry, loop, func(_ context.Context, result Result) error {
		done <- result
		return nil
	}, 10*time.Millisecond, zap.NewNop())
	scheduler.WithClock(clock)

	var createErr error
	require.NoError(t, loop.Do(context.Background(), func() {
		_, createErr = registry.Create(CreateRequest{Prize: "Nitro", Duration: "1s", GuildID: "g1"}, epoch)
	}))
	require.NoError(t, createErr)
	clock.Advance(2 * time.Second)

	scheduler.Start()
	defer scheduler.Stop()

	select {
	case result := <-done:
		assert.Equal(t, 1, result.Giveaway.ID)
		assert.False(t, result.HasWinner())
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not conclude the giveaway")
	}

	var remaining int
	require.NoError(t, loop.Do(context.Background(), func() { remaining = registry.Len() }))
	assert.Equal(t, 0, remaining)
}
