// SPDX-License-Identifier: MPL-2.0

package sync

import (
	"context"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type (
	// SessionOption configures a Session.
	SessionOption func(*Session)

	// Session runs a sync step on a fixed interval in the background. A tick
	// that fires while the previous step is still in flight is skipped, not
	// queued, so a slow sync never builds a backlog. Step errors are logged
	// and swallowed; the session keeps ticking.
	Session struct {
		interval time.Duration
		step     func(ctx context.Context) error
		logger   *log.Logger

		startOnce gosync.Once
		stopOnce  gosync.Once
		started   atomic.Bool
		stop      chan struct{}
		done      chan struct{}
		inFlight  atomic.Bool
		skipped   atomic.Int64
		wg        gosync.WaitGroup
	}
)

// WithSessionLogger sets the session's logger.
func WithSessionLogger(logger *log.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// NewSession creates a background sync session. The step typically wraps
// Syncer.Pull (interactive copy-mode runs) or a push/pull pair.
func NewSession(interval time.Duration, step func(ctx context.Context) error, opts ...SessionOption) *Session {
	s := &Session{
		interval: interval,
		step:     step,
		logger:   log.Default(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the ticking goroutine. Calling Start twice is a no-op.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.loop(ctx)
	})
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.wg.Wait()
			return
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)

		if err := s.step(ctx); err != nil {
			s.logger.Warn("background sync failed", "error", err)
		}
	}()
}

// Stop halts the ticker and joins the in-flight step, if any. Safe to call
// more than once, and a no-op when the session was never started.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	if !s.started.Load() {
		return
	}
	<-s.done
}

// Skipped reports how many ticks were dropped because a step was in flight.
func (s *Session) Skipped() int64 {
	return s.skipped.Load()
}
