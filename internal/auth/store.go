// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"

	"github.com/google/uuid"
)

// IDKind selects the identifier space an existence query runs against.
type IDKind string

// Identifier spaces.
const (
	IDKindAccount IDKind = "account"
	IDKindSession IDKind = "session"
)

// Store is the persistence port consumed by the auth core. Implementations
// own all Account, Session, and guest-marker records; the core holds only
// transient copies retrieved per request.
//
// Inserts against a generated identifier must return ErrDuplicateID when a
// uniqueness constraint rejects the row, so callers can treat the conflict
// as the authoritative collision signal and redraw.
type Store interface {
	// FindAccountsByFingerprint returns every account stored under the
	// given username fingerprint. The result may hold zero, one, or many
	// accounts; fingerprint uniqueness is not enforced.
	FindAccountsByFingerprint(ctx context.Context, fingerprint string) ([]*Account, error)

	// InsertAccount stores a new account.
	InsertAccount(ctx context.Context, account *Account) error

	// IDExists reports whether id is already persisted in the given
	// identifier space.
	IDExists(ctx context.Context, kind IDKind, id uuid.UUID) (bool, error)

	// FindSession retrieves a session by ID. Returns ErrNotFound when the
	// session does not exist.
	FindSession(ctx context.Context, id uuid.UUID) (*Session, error)

	// InsertSession stores a new session.
	InsertSession(ctx context.Context, session *Session) error

	// UpdateSession updates a session in place, inserting it when no row
	// with its ID exists yet.
	UpdateSession(ctx context.Context, session *Session) error

	// InsertGuest stores a guest marker binding a session ID to an
	// ephemeral guest account ID.
	InsertGuest(ctx context.Context, sessionID, accountID uuid.UUID) error

	// FindGuest returns the guest account ID marked for the given session.
	// Returns ErrNotFound when no marker exists.
	FindGuest(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)

	// DeleteGuest removes the guest marker for the given session. Deleting
	// a marker that does not exist is not an error. Used to roll back a
	// half-persisted guest pair.
	DeleteGuest(ctx context.Context, sessionID uuid.UUID) error

	// DeleteExpiredSessions removes all expired sessions and returns the
	// count of deleted records. Used by the maintenance sweeper.
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}
