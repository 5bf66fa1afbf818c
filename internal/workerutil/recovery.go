// Package workerutil supervises long-running background goroutines such as
// the config change dispatcher of `voltray watch`.
package workerutil

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultMaxRetries     = 10
)

// RecoveryOptions configures RunWithPanicRecovery. Zero fields take the
// defaults (100ms initial backoff, 5s cap, 10 attempts). MaxRetries of 1
// means run once and report fatal on the first panic.
type RecoveryOptions struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     int

	// OnPanic runs after each recovered panic, before the backoff wait.
	// attempt is 1-based.
	OnPanic func(worker string, attempt int, recovered any)
	// OnFatal runs once the worker has panicked MaxRetries times.
	OnFatal func(worker string, maxRetries int)
}

func (opts RecoveryOptions) withDefaults() RecoveryOptions {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		slog.Warn("[WARN-WORKER] MaxBackoff below InitialBackoff, using InitialBackoff",
			"initialBackoff", opts.InitialBackoff, "maxBackoff", opts.MaxBackoff)
		opts.MaxBackoff = opts.InitialBackoff
	}
	return opts
}

// RunWithPanicRecovery runs fn on a goroutine tracked by wg. A panic is
// logged with its stack and fn is restarted after an exponential backoff.
// The loop ends when fn returns normally, ctx is cancelled, or MaxRetries
// panics have occurred.
func RunWithPanicRecovery(ctx context.Context, name string, wg *sync.WaitGroup, fn func(ctx context.Context), opts RecoveryOptions) {
	opts = opts.withDefaults()
	wg.Go(func() {
		runRecoveryLoop(ctx, name, fn, opts)
	})
}

func runRecoveryLoop(ctx context.Context, name string, fn func(ctx context.Context), opts RecoveryOptions) {
	delay := opts.InitialBackoff
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		recovered, panicked := runOnce(ctx, name, fn)
		if !panicked || ctx.Err() != nil {
			return
		}
		if opts.OnPanic != nil {
			opts.OnPanic(name, attempt, recovered)
		}
		if attempt == opts.MaxRetries {
			break
		}
		slog.Warn("[WARN-WORKER] restarting worker after panic", "worker", name, "delay", delay, "attempt", attempt)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = nextBackoff(delay, opts.MaxBackoff)
	}

	slog.Error("[ERROR-WORKER] worker exceeded max retries, giving up", "worker", name, "maxRetries", opts.MaxRetries)
	if opts.OnFatal != nil {
		opts.OnFatal(name, opts.MaxRetries)
	}
}

func runOnce(ctx context.Context, name string, fn func(ctx context.Context)) (recovered any, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[ERROR-WORKER] worker recovered from panic",
				"worker", name, "panic", r, "stack", string(debug.Stack()))
			recovered, panicked = r, true
		}
	}()
	fn(ctx)
	return nil, false
}

// nextBackoff doubles current, capped at maxBackoff and guarded against
// overflow.
func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	if current <= 0 {
		return min(defaultInitialBackoff, maxBackoff)
	}
	next := current * 2
	if next > maxBackoff || next < current {
		return maxBackoff
	}
	return next
}
