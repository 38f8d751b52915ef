// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package maintenance runs periodic background cleanup against the auth store.
package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/almclabs/doorman/internal/auth"
	"github.com/almclabs/doorman/pkg/errutil"
)

// DefaultSweepInterval is how often the sweeper removes expired sessions
// when no interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically deletes expired sessions from the store.
type Sweeper struct {
	store    auth.Store
	interval time.Duration
	logger   *slog.Logger
	swept    prometheus.Counter

	running  atomic.Bool
	sweeping atomic.Bool
	cancel   context.CancelFunc
	done     sync.WaitGroup
}

// NewSweeper creates a sweeper over the given store. interval <= 0 falls back
// to DefaultSweepInterval. swept may be nil when metrics are disabled.
func NewSweeper(store auth.Store, interval time.Duration, logger *slog.Logger, swept prometheus.Counter) (*Sweeper, error) {
	if store == nil {
		return nil, oops.Errorf("store is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		swept:    swept,
	}, nil
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return oops.Errorf("sweeper already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.done.Add(1)
	go func() {
		defer s.done.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	s.logger.Info("session sweeper started", "interval", s.interval.String())
	return nil
}

// Stop halts the sweep loop and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.cancel()
	s.done.Wait()
	s.logger.Info("session sweeper stopped")
}

// Sweep runs one deletion pass. Overlapping passes are skipped rather than
// queued; the next tick picks up whatever remains.
func (s *Sweeper) Sweep(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return
	}
	defer s.sweeping.Store(false)

	deleted, err := s.store.DeleteExpiredSessions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		errutil.LogError(s.logger, "expired session sweep failed", err)
		return
	}

	if deleted > 0 {
		if s.swept != nil {
			s.swept.Add(float64(deleted))
		}
		s.logger.Info("expired sessions removed", "count", deleted)
	}
}
