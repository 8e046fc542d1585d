package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrStopped    = errors.New("dispatch loop stopped")
	ErrTaskPanics = errors.New("dispatch task panicked")
)

// Effect is platform I/O produced by a task. Effects run in submission order
// on their own goroutine so a slow API call never blocks state transitions.
type Effect func(ctx context.Context)

// Task mutates loop-owned state and may return an Effect.
type Task func() Effect

// Loop is the single owner of the bot's in-memory state. Components handed to
// tasks carry no locks of their own and must only be touched from a Task.
type Loop struct {
	logger        *zap.Logger
	tasks         chan Task
	effects       chan Effect
	effectTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func New(logger *zap.Logger, queueSize int, effectTimeout time.Duration) *Loop {
	if queueSize <= 0 {
		queueSize = 256
	}
	if effectTimeout <= 0 {
		effectTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		logger:        logger,
		tasks:         make(chan Task, queueSize),
		effects:       make(chan Effect, queueSize),
		effectTimeout: effectTimeout,
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (l *Loop) Start() {
	l.once.Do(func() {
		l.wg.Add(2)
		go l.runTasks()
		go l.runEffects()
		l.logger.Info("dispatch loop started")
	})
}

func (l *Loop) Stop() {
	l.cancel()
	l.wg.Wait()
	l.logger.Info("dispatch loop stopped")
}

// Post enqueues task without waiting for it to run.
func (l *Loop) Post(ctx context.Context, task Task) error {
	if l.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case l.tasks <- task:
		return nil
	case <-l.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the loop and waits for it to return. It must not be called
// from inside a Task.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	completed := false
	err := l.Post(ctx, func() Effect {
		defer close(done)
		fn()
		completed = true
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		if !completed {
			return ErrTaskPanics
		}
		return nil
	case <-l.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) runTasks() {
	defer l.wg.Done()
	for {
		select {
		case <-l.ctx.Done():
			return
		case task := <-l.tasks:
			effect := l.runTask(task)
			if effect == nil {
				continue
			}
			select {
			case l.effects <- effect:
			case <-l.ctx.Done():
				return
			}
		}
	}
}

func (l *Loop) runTask(task Task) (effect Effect) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch task panic", zap.Any("panic", r), zap.Stack("stack"))
			effect = nil
		}
	}()
	return task()
}

func (l *Loop) runEffects() {
	defer l.wg.Done()
	for {
		select {
		case <-l.ctx.Done():
			return
		case effect := <-l.effects:
			l.runEffect(effect)
		}
	}
}

func (l *Loop) runEffect(effect Effect) {
	ctx, cancel := context.WithTimeout(l.ctx, l.effectTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch effect panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	effect(ctx)
}
