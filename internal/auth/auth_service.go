// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// SessionRef is an optional session reference presented with a request.
// The zero value means no reference was presented.
type SessionRef struct {
	ID      uuid.UUID
	Present bool
}

// PresentedSession builds a SessionRef for the given session ID.
func PresentedSession(id uuid.UUID) SessionRef {
	return SessionRef{ID: id, Present: true}
}

// Service orchestrates the Hasher, the Store, and the session Manager to
// implement the three user-facing operations: verify, register, and
// guest-admit.
type Service struct {
	store    Store
	hasher   *Hasher
	sessions *Manager
	logger   *slog.Logger
}

// NewService creates a Service. All dependencies are required except the
// logger, which falls back to slog.Default.
func NewService(store Store, hasher *Hasher, sessions *Manager, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, oops.Errorf("store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("hasher is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    store,
		hasher:   hasher,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// VerifyCredentials authenticates a username/password pair and returns the
// session reference the client should hold: a fresh session when none was
// presented, or the presented session renewed in place.
//
// The credential-mismatch error never reveals whether the username exists;
// an unknown user and a wrong password are indistinguishable to the caller.
func (s *Service) VerifyCredentials(ctx context.Context, username, password string, presented SessionRef) (*Session, error) {
	fingerprint := s.hasher.Fingerprint(username)

	candidates, err := s.store.FindAccountsByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "find accounts by fingerprint").
			Wrap(err)
	}

	var matches []*Account
	for _, candidate := range candidates {
		computed, hashErr := s.hasher.HashPassword(password, candidate.Salt)
		if hashErr != nil {
			// A stored salt that fails to hash means the record is corrupt.
			return nil, oops.Code("AUTH_HASH_FAILED").
				With("operation", "hash presented password").
				With("account_id", candidate.ID.String()).
				Wrap(hashErr)
		}
		if subtle.ConstantTimeCompare([]byte(computed), []byte(candidate.PasswordHash)) == 1 {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return nil, oops.Code("AUTH_CREDENTIAL_MISMATCH").Errorf("invalid username or password")
	case 1:
		// Fall through.
	default:
		// Multiple accounts matched one fingerprint and password. The store
		// has no fingerprint uniqueness constraint, so this signals data
		// corruption risk; never silently pick one.
		s.logger.Error("ambiguous accounts for one fingerprint",
			"fingerprint", fingerprint,
			"matches", len(matches))
		return nil, oops.Code("AUTH_INTEGRITY").
			With("matches", len(matches)).
			Errorf("ambiguous accounts for credential fingerprint")
	}
	account := matches[0]

	if !presented.Present {
		return s.issueSession(ctx, account.ID)
	}

	state, err := s.sessions.Validate(ctx, presented.ID)
	if err != nil {
		return nil, err
	}

	switch state.Kind {
	case StateNoSession:
		// The referenced session is gone (swept or never existed); issue a
		// fresh one as if no reference was presented.
		return s.issueSession(ctx, account.ID)
	case StateActive, StateExpired:
		if state.Session.AccountID != account.ID {
			return nil, s.revokeMismatchedSession(ctx, state.Session, account.ID)
		}
		renewed := s.sessions.Renew(presented.ID, account.ID)
		if err := s.store.UpdateSession(ctx, renewed); err != nil {
			return nil, oops.Code("AUTH_SESSION_PERSIST_FAILED").
				With("operation", "update renewed session").
				With("session_id", renewed.ID.String()).
				Wrap(err)
		}
		return renewed, nil
	default:
		return nil, oops.Code("AUTH_INTEGRITY").Errorf("unknown session state %d", state.Kind)
	}
}

// issueSession creates and persists a fresh session for the account.
func (s *Service) issueSession(ctx context.Context, accountID uuid.UUID) (*Session, error) {
	session := s.sessions.Create(accountID)
	if err := s.store.InsertSession(ctx, session); err != nil {
		return nil, oops.Code("AUTH_SESSION_PERSIST_FAILED").
			With("operation", "insert session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return session, nil
}

// revokeMismatchedSession invalidates a presented session that is bound to
// a different account than the one that just authenticated. The session is
// force-expired rather than merely reported: a hijacked or stale reference
// must not remain usable.
func (s *Service) revokeMismatchedSession(ctx context.Context, session *Session, authenticatedID uuid.UUID) error {
	s.logger.Error("presented session bound to a different account",
		"session_id", session.ID.String(),
		"session_account_id", session.AccountID.String(),
		"authenticated_account_id", authenticatedID.String())

	now := s.sessions.now()
	revoked := &Session{
		ID:        session.ID,
		AccountID: session.AccountID,
		CreatedAt: now.Add(-SessionTTL),
		ExpiresAt: now,
	}
	if err := s.store.UpdateSession(ctx, revoked); err != nil {
		// The integrity error still stands; record that revocation failed.
		s.logger.Error("failed to revoke mismatched session",
			"session_id", session.ID.String(),
			"error", err)
	}

	return oops.Code("AUTH_SESSION_INTEGRITY").
		With("session_id", session.ID.String()).
		Errorf("presented session does not belong to the authenticated account")
}

// SaveCredentials registers a new account. The password policy is enforced
// first; on pass a salt is derived, the password hashed, and the account
// persisted under a collision-free random identifier. The store's
// uniqueness constraint is the authoritative collision signal: an insert
// rejected with ErrDuplicateID causes an identifier redraw.
func (s *Service) SaveCredentials(ctx context.Context, username, password string) (uuid.UUID, error) {
	if err := ValidatePassword(password); err != nil {
		return uuid.Nil, err
	}

	salt, err := s.hasher.DeriveSalt(username, password)
	if err != nil {
		return uuid.Nil, err
	}
	passwordHash, err := s.hasher.HashPassword(password, salt)
	if err != nil {
		return uuid.Nil, err
	}
	fingerprint := s.hasher.Fingerprint(username)

	for attempt := 0; attempt < s.sessions.maxIDRedraws; attempt++ {
		accountID, err := s.sessions.FreshAccountID(ctx)
		if err != nil {
			return uuid.Nil, err
		}

		account, err := NewAccount(accountID, fingerprint, passwordHash, salt)
		if err != nil {
			return uuid.Nil, err
		}

		err = s.store.InsertAccount(ctx, account)
		if errors.Is(err, ErrDuplicateID) {
			// A concurrent insert won the id between the existence check and
			// the insert; redraw.
			continue
		}
		if err != nil {
			return uuid.Nil, oops.Code("AUTH_PERSIST_FAILED").
				With("operation", "insert account").
				Wrap(err)
		}
		return accountID, nil
	}

	return uuid.Nil, oops.Code("AUTH_ID_SPACE_EXHAUSTED").
		With("max_redraws", s.sessions.maxIDRedraws).
		Errorf("could not persist account under a collision-free identifier")
}

// AdmitGuest returns a guest session. A presented reference that still
// resolves to an active session carrying a guest marker is reused and
// renewed in place; anything else (no reference, expired, swept, or not
// guest-marked) yields a freshly generated identifier pair with a new
// guest marker record.
func (s *Service) AdmitGuest(ctx context.Context, presented SessionRef) (*Session, error) {
	if presented.Present {
		reused, err := s.reuseGuestSession(ctx, presented.ID)
		if err != nil {
			return nil, err
		}
		if reused != nil {
			return reused, nil
		}
	}

	for attempt := 0; attempt < s.sessions.maxIDRedraws; attempt++ {
		session, err := s.sessions.GuestSession(ctx)
		if err != nil {
			return nil, err
		}

		err = s.store.InsertGuest(ctx, session.ID, session.AccountID)
		if errors.Is(err, ErrDuplicateID) {
			// Lost a race on the generated pair; discard both ids and redraw.
			continue
		}
		if err != nil {
			return nil, oops.Code("AUTH_PERSIST_FAILED").
				With("operation", "insert guest marker").
				Wrap(err)
		}

		err = s.store.InsertSession(ctx, session)
		if errors.Is(err, ErrDuplicateID) {
			// The session id was claimed between the existence check and the
			// insert. Remove the marker so the half-persisted pair leaves no
			// trace, then redraw both ids.
			if delErr := s.store.DeleteGuest(ctx, session.ID); delErr != nil {
				return nil, oops.Code("AUTH_PERSIST_FAILED").
					With("operation", "remove guest marker after session collision").
					With("session_id", session.ID.String()).
					Wrap(delErr)
			}
			continue
		}
		if err != nil {
			// Any other persist failure also leaves the marker orphaned; an
			// orphan would turn a later admit into an integrity error.
			if delErr := s.store.DeleteGuest(ctx, session.ID); delErr != nil {
				s.logger.Error("failed to remove guest marker after session persist failure",
					"session_id", session.ID.String(),
					"error", delErr)
			}
			return nil, oops.Code("AUTH_SESSION_PERSIST_FAILED").
				With("operation", "insert guest session").
				With("session_id", session.ID.String()).
				Wrap(err)
		}
		return session, nil
	}

	return nil, oops.Code("AUTH_ID_SPACE_EXHAUSTED").
		With("max_redraws", s.sessions.maxIDRedraws).
		Errorf("could not persist guest marker under a collision-free identifier pair")
}

// reuseGuestSession returns the renewed session when the presented
// reference is an active guest session, nil when a fresh pair should be
// generated instead.
func (s *Service) reuseGuestSession(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	state, err := s.sessions.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Kind != StateActive {
		return nil, nil
	}

	guestAccountID, err := s.store.FindGuest(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "find guest marker").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	if guestAccountID != state.Session.AccountID {
		s.logger.Error("guest marker bound to a different account",
			"session_id", sessionID.String(),
			"marker_account_id", guestAccountID.String(),
			"session_account_id", state.Session.AccountID.String())
		return nil, oops.Code("AUTH_INTEGRITY").
			With("session_id", sessionID.String()).
			Errorf("guest marker does not match session account")
	}

	renewed := s.sessions.Renew(sessionID, guestAccountID)
	if err := s.store.UpdateSession(ctx, renewed); err != nil {
		return nil, oops.Code("AUTH_SESSION_PERSIST_FAILED").
			With("operation", "update reused guest session").
			With("session_id", renewed.ID.String()).
			Wrap(err)
	}
	return renewed, nil
}
