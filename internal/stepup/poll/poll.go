// Package poll provides the cancelable interval poller used while a flow
// waits on out-of-band confirmation (the user clicking a link in an email).
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrTimedOut reports that the session's MaxWait elapsed before the check
// confirmed.
var ErrTimedOut = errors.New("poll: timed out waiting for confirmation")

// CheckFunc performs one confirmation check. It returns confirmed=true with a
// payload once the side channel has been completed. A non-nil error is
// treated as transient: it is logged and polling continues.
type CheckFunc func(ctx context.Context) (confirmed bool, payload any, err error)

// Config controls a polling session.
type Config struct {
	// Interval between checks. Required.
	Interval time.Duration

	// MaxWait bounds the total wait. Zero means poll until stopped.
	MaxWait time.Duration

	Logger *slog.Logger
}

// Session runs a CheckFunc on a fixed interval with at most one check
// outstanding at a time. It stops itself on confirmation or timeout, and can
// be stopped from outside at any moment. A Session must not outlive the flow
// that started it; the owning flow calls Stop on every terminal transition.
type Session struct {
	cancel context.CancelFunc

	confirmed chan any
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// Start begins polling and returns immediately. The session inherits
// cancellation from ctx.
func Start(ctx context.Context, cfg Config, check CheckFunc) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		cancel:    cancel,
		confirmed: make(chan any, 1),
		done:      make(chan struct{}),
	}

	go s.run(ctx, cfg, check)
	return s
}

// Confirmed delivers the payload of the first confirmed check. The channel
// yields at most one value; a stopped or timed-out session never delivers.
func (s *Session) Confirmed() <-chan any { return s.confirmed }

// Done is closed once the session has fully stopped, for any reason.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns ErrTimedOut if the session gave up after MaxWait, nil
// otherwise. Valid after Done is closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop cancels the session. It is idempotent and safe to call from any
// goroutine; results of a check in flight at stop time are discarded.
func (s *Session) Stop() { s.cancel() }

func (s *Session) run(ctx context.Context, cfg Config, check CheckFunc) {
	defer close(s.done)
	defer s.cancel()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if cfg.MaxWait > 0 {
		timer := time.NewTimer(cfg.MaxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-deadline:
			s.mu.Lock()
			s.err = ErrTimedOut
			s.mu.Unlock()
			cfg.Logger.Warn("poll session timed out", "max_wait", cfg.MaxWait)
			return

		case <-ticker.C:
			// The check runs on this goroutine, so a slow check simply
			// delays (and drops) ticks rather than overlapping calls.
			confirmed, payload, err := check(ctx)
			if ctx.Err() != nil {
				// Stopped while the check was in flight; discard whatever
				// it returned.
				return
			}
			if err != nil {
				cfg.Logger.Warn("poll check failed, will retry", "error", err)
				continue
			}
			if confirmed {
				s.confirmed <- payload
				return
			}
		}
	}
}
