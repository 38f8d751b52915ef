// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// SessionTTL is the fixed session lifetime. ExpiresAt is always exactly
// SessionTTL past CreatedAt.
const SessionTTL = time.Hour

// DefaultMaxIDRedraws caps the collision-avoidance redraw loops. The source
// retried forever; a bounded cap turns a retry storm into a distinct error.
const DefaultMaxIDRedraws = 32

// Session is a time-bounded credential bound to one account.
type Session struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpiredAt reports whether the session would be expired at the given
// time. A session is valid through its expiry instant; it expires strictly
// after ExpiresAt passes.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// StateKind tags the session lifecycle states.
type StateKind int

// Session lifecycle states. Deletion is performed only by the maintenance
// sweeper, never by the session manager.
const (
	// StateNoSession means no session exists for the presented reference.
	StateNoSession StateKind = iota

	// StateActive means the session exists and has not expired.
	StateActive

	// StateExpired means the session exists but its expiry has passed.
	StateExpired
)

// String returns the state name for logs.
func (k StateKind) String() string {
	switch k {
	case StateNoSession:
		return "no_session"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// SessionState is the tagged result of a validation lookup. Session is nil
// if and only if Kind is StateNoSession.
type SessionState struct {
	Kind    StateKind
	Session *Session
}

// ManagerConfig configures a session Manager.
type ManagerConfig struct {
	// MaxIDRedraws bounds the collision-avoidance redraw loops.
	// Defaults to DefaultMaxIDRedraws if zero or negative.
	MaxIDRedraws int

	// Clock supplies the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Manager owns the session lifecycle: creation, validation against expiry,
// renewal, and collision-safe identifier generation. It holds no session
// state of its own; persistence is the caller's responsibility.
type Manager struct {
	store        Store
	maxIDRedraws int
	now          func() time.Time
	redraws      prometheus.Counter
}

// errIDCollision drives the bounded redraw loops.
var errIDCollision = errors.New("generated id collides with persisted state")

// NewManager creates a session Manager. The registry is optional; when
// non-nil, a counter tracking identifier redraws is registered on it.
func NewManager(store Store, cfg ManagerConfig, reg prometheus.Registerer) (*Manager, error) {
	if store == nil {
		return nil, oops.Errorf("store is required")
	}

	if cfg.MaxIDRedraws <= 0 {
		cfg.MaxIDRedraws = DefaultMaxIDRedraws
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	m := &Manager{
		store:        store,
		maxIDRedraws: cfg.MaxIDRedraws,
		now:          cfg.Clock,
	}

	if reg != nil {
		m.redraws = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorman_id_redraws_total",
			Help: "Total number of identifier redraws caused by collisions",
		})
		reg.MustRegister(m.redraws)
	}

	return m, nil
}

// Create issues a fresh session for the account: new random ID, CreatedAt
// now, ExpiresAt exactly SessionTTL later. Pure in-memory construction;
// it always succeeds and persists nothing.
func (m *Manager) Create(accountID uuid.UUID) *Session {
	return m.issue(uuid.New(), accountID)
}

// Renew re-issues CreatedAt/ExpiresAt for an existing session reference.
// Renewal always succeeds and resets the clock regardless of whether the
// prior state was active or expired. There is no cap on indefinite
// renewal; that is a deliberate policy choice, not an oversight.
func (m *Manager) Renew(sessionID, accountID uuid.UUID) *Session {
	return m.issue(sessionID, accountID)
}

func (m *Manager) issue(sessionID, accountID uuid.UUID) *Session {
	now := m.now()
	return &Session{
		ID:        sessionID,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}
}

// Validate looks up the presented session reference and classifies it.
// An absent session yields StateNoSession; otherwise expiry is compared
// against the current time.
func (m *Manager) Validate(ctx context.Context, sessionID uuid.UUID) (SessionState, error) {
	session, err := m.store.FindSession(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return SessionState{Kind: StateNoSession}, nil
	}
	if err != nil {
		return SessionState{}, oops.Code("AUTH_SESSION_LOOKUP_FAILED").
			With("operation", "find session").
			With("session_id", sessionID.String()).
			Wrap(err)
	}

	if session.IsExpiredAt(m.now()) {
		return SessionState{Kind: StateExpired, Session: session}, nil
	}
	return SessionState{Kind: StateActive, Session: session}, nil
}

// GuestSession draws a fresh accountID/sessionID pair, confirms neither
// identifier collides with any persisted account or session ID, and
// returns an issued session binding them. On collision both identifiers
// are discarded and redrawn. The loop is bounded by MaxIDRedraws; when the
// bound is exhausted a distinct AUTH_ID_SPACE_EXHAUSTED error is returned.
func (m *Manager) GuestSession(ctx context.Context) (*Session, error) {
	var accountID, sessionID uuid.UUID

	backoff := retry.WithMaxRetries(uint64(m.maxIDRedraws), retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		accountID = uuid.New()
		sessionID = uuid.New()

		for _, id := range []uuid.UUID{accountID, sessionID} {
			for _, kind := range []IDKind{IDKindAccount, IDKindSession} {
				exists, err := m.store.IDExists(ctx, kind, id)
				if err != nil {
					return oops.Code("AUTH_ID_CHECK_FAILED").
						With("operation", "check id existence").
						With("kind", string(kind)).
						Wrap(err)
				}
				if exists {
					if m.redraws != nil {
						m.redraws.Inc()
					}
					return retry.RetryableError(errIDCollision)
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errIDCollision) {
			return nil, oops.Code("AUTH_ID_SPACE_EXHAUSTED").
				With("max_redraws", m.maxIDRedraws).
				Errorf("could not draw a collision-free guest identifier pair")
		}
		return nil, err
	}

	return m.issue(sessionID, accountID), nil
}

// FreshAccountID draws a random account identifier confirmed absent from
// the account ID space, using the same bounded redraw discipline as
// GuestSession.
func (m *Manager) FreshAccountID(ctx context.Context) (uuid.UUID, error) {
	var accountID uuid.UUID

	backoff := retry.WithMaxRetries(uint64(m.maxIDRedraws), retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		accountID = uuid.New()

		exists, err := m.store.IDExists(ctx, IDKindAccount, accountID)
		if err != nil {
			return oops.Code("AUTH_ID_CHECK_FAILED").
				With("operation", "check id existence").
				With("kind", string(IDKindAccount)).
				Wrap(err)
		}
		if exists {
			if m.redraws != nil {
				m.redraws.Inc()
			}
			return retry.RetryableError(errIDCollision)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errIDCollision) {
			return uuid.Nil, oops.Code("AUTH_ID_SPACE_EXHAUSTED").
				With("max_redraws", m.maxIDRedraws).
				Errorf("could not draw a collision-free account identifier")
		}
		return uuid.Nil, err
	}

	return accountID, nil
}
