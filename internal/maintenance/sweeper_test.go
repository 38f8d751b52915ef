// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/almclabs/doorman/internal/auth"
)

// sweepStore stubs the store port with a controllable delete result.
type sweepStore struct {
	deleted int64
	err     error
	calls   atomic.Int64
	block   chan struct{}
}

func (s *sweepStore) DeleteExpiredSessions(_ context.Context) (int64, error) {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	return s.deleted, s.err
}

func (s *sweepStore) FindAccountsByFingerprint(context.Context, string) ([]*auth.Account, error) {
	return nil, nil
}
func (s *sweepStore) InsertAccount(context.Context, *auth.Account) error { return nil }
func (s *sweepStore) IDExists(context.Context, auth.IDKind, uuid.UUID) (bool, error) {
	return false, nil
}
func (s *sweepStore) FindSession(context.Context, uuid.UUID) (*auth.Session, error) {
	return nil, auth.ErrNotFound
}
func (s *sweepStore) InsertSession(context.Context, *auth.Session) error  { return nil }
func (s *sweepStore) UpdateSession(context.Context, *auth.Session) error  { return nil }
func (s *sweepStore) InsertGuest(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (s *sweepStore) FindGuest(context.Context, uuid.UUID) (uuid.UUID, error) {
	return uuid.Nil, auth.ErrNotFound
}
func (s *sweepStore) DeleteGuest(context.Context, uuid.UUID) error { return nil }

func TestNewSweeper_RequiresStore(t *testing.T) {
	_, err := NewSweeper(nil, time.Second, nil, nil)
	require.Error(t, err)
}

func TestSweeper_SweepCountsDeleted(t *testing.T) {
	store := &sweepStore{deleted: 7}
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_swept_total"})

	sweeper, err := NewSweeper(store, time.Minute, nil, counter)
	require.NoError(t, err)

	sweeper.Sweep(context.Background())

	assert.Equal(t, int64(1), store.calls.Load())
	assert.InDelta(t, 7.0, testutil.ToFloat64(counter), 0.001)
}

func TestSweeper_SweepNothingDeleted(t *testing.T) {
	store := &sweepStore{deleted: 0}
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_swept_total"})

	sweeper, err := NewSweeper(store, time.Minute, nil, counter)
	require.NoError(t, err)

	sweeper.Sweep(context.Background())

	assert.InDelta(t, 0.0, testutil.ToFloat64(counter), 0.001)
}

func TestSweeper_SkipsOverlappingSweep(t *testing.T) {
	store := &sweepStore{deleted: 1, block: make(chan struct{})}
	sweeper, err := NewSweeper(store, time.Minute, nil, nil)
	require.NoError(t, err)

	started := make(chan struct{})
	go func() {
		close(started)
		sweeper.Sweep(context.Background())
	}()
	<-started
	// Give the goroutine time to enter the blocked delete call.
	time.Sleep(50 * time.Millisecond)

	// Second pass must be a no-op while the first is still in flight.
	sweeper.Sweep(context.Background())
	assert.Equal(t, int64(1), store.calls.Load())

	close(store.block)
}

func TestSweeper_StartStopNoLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &sweepStore{deleted: 2}
	sweeper, err := NewSweeper(store, 10*time.Millisecond, nil, nil)
	require.NoError(t, err)

	require.NoError(t, sweeper.Start())

	// Second start must fail while running.
	require.Error(t, sweeper.Start())

	// Let a few ticks fire.
	time.Sleep(50 * time.Millisecond)
	sweeper.Stop()

	assert.Positive(t, store.calls.Load())

	// Stop is idempotent.
	sweeper.Stop()
}
