package giveaway

import (
	"context"
	"sync"
	"time"

	"voralith-bot/internal/dispatch"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Poster submits work to the goroutine that owns the registry.
type Poster interface {
	Post(ctx context.Context, task dispatch.Task) error
}

// Announcer publishes the outcome of one concluded giveaway.
type Announcer func(ctx context.Context, result Result) error

// Scheduler sweeps the registry on a fixed interval. Each tick runs the
// sweep and any maintenance hooks on the owning loop, then announces results
// one by one so a failed announcement never affects the others.
type Scheduler struct {
	registry *Registry
	loop     Poster
	announce Announcer
	interval time.Duration
	clock    Clock
	logger   *zap.Logger
	hooks    []func(now time.Time)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(registry *Registry, loop Poster, announce Announcer, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		registry: registry,
		loop:     loop,
		announce: announce,
		interval: interval,
		clock:    realClock{},
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.clock = clock
}

// OnTick registers a hook that runs on the owning loop after every sweep.
// Hooks must be registered before Start.
func (s *Scheduler) OnTick(hook func(now time.Time)) {
	s.hooks = append(s.hooks, hook)
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("giveaway scheduler started", zap.Duration("interval", s.interval))
		for {
			select {
			case <-s.ctx.Done():
				s.logger.Info("giveaway scheduler stopped")
				return
			case <-ticker.C:
				if err := s.Tick(s.ctx); err != nil {
					s.logger.Warn("giveaway sweep not scheduled", zap.Error(err))
				}
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Tick posts one sweep to the loop.
func (s *Scheduler) Tick(ctx context.Context) error {
	return s.loop.Post(ctx, func() dispatch.Effect {
		now := s.clock.Now()
		results := s.registry.Sweep(now)
		for _, hook := range s.hooks {
			s.runHook(hook, now)
		}
		if len(results) == 0 {
			return nil
		}
		return func(ctx context.Context) {
			for _, result := range results {
				s.announceOne(ctx, result)
			}
		}
	})
}

func (s *Scheduler) announceOne(ctx context.Context, result Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("giveaway announcement panic", zap.Int("giveaway_id", result.Giveaway.ID), zap.Any("panic", r))
		}
	}()
	if err := s.announce(ctx, result); err != nil {
		s.logger.Warn("giveaway announcement failed", zap.Int("giveaway_id", result.Giveaway.ID), zap.Error(err))
		return
	}
	s.logger.Info("giveaway concluded",
		zap.Int("giveaway_id", result.Giveaway.ID),
		zap.String("guild_id", result.Giveaway.GuildID),
		zap.Int("participants", len(result.Giveaway.Participants)),
		zap.Bool("has_winner", result.HasWinner()))
}

func (s *Scheduler) runHook(hook func(now time.Time), now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler hook panic", zap.Any("panic", r))
		}
	}()
	hook(now)
}
