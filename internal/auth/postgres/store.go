// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package postgres implements the auth Store port using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/almclabs/doorman/internal/auth"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// for unit tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements auth.Store using PostgreSQL. Uniqueness is enforced by
// the schema's primary keys; a rejected insert surfaces as
// auth.ErrDuplicateID so callers can treat the conflict as the
// authoritative collision signal.
//
// Every call is bounded by the configured query timeout so a stalled
// database cannot stall a request indefinitely.
type Store struct {
	db      DB
	timeout time.Duration
}

// DefaultQueryTimeout bounds individual store calls when no timeout is
// configured.
const DefaultQueryTimeout = 5 * time.Second

// NewStore creates a Store. A zero or negative timeout falls back to
// DefaultQueryTimeout.
func NewStore(db DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Store{db: db, timeout: timeout}
}

// Connect opens a pgx connection pool for the given DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create connection pool").
			Wrap(err)
	}
	return pool, nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// FindAccountsByFingerprint returns every account stored under the given
// fingerprint. No uniqueness is enforced on fingerprints, so zero, one, or
// many rows may come back.
func (s *Store) FindAccountsByFingerprint(ctx context.Context, fingerprint string) ([]*auth.Account, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT id, fingerprint, password_hash, salt, active_sessions
		FROM accounts
		WHERE fingerprint = $1
	`, fingerprint)
	if err != nil {
		return nil, oops.Code("DB_ACCOUNT_QUERY_FAILED").
			With("operation", "find accounts by fingerprint").
			Wrap(err)
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("DB_ACCOUNT_ROWS_ERROR").
			With("operation", "iterate account rows").
			Wrap(err)
	}

	return accounts, nil
}

// InsertAccount stores a new account. A primary-key conflict on the
// account ID surfaces as auth.ErrDuplicateID.
func (s *Store) InsertAccount(ctx context.Context, account *auth.Account) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, fingerprint, password_hash, salt, active_sessions)
		VALUES ($1, $2, $3, $4, $5)
	`,
		account.ID.String(),
		account.Fingerprint,
		account.PasswordHash,
		string(account.Salt),
		account.ActiveSessions,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("DB_DUPLICATE_ID").
				With("account_id", account.ID.String()).
				Wrap(auth.ErrDuplicateID)
		}
		return oops.Code("DB_ACCOUNT_INSERT_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}
	return nil
}

// IDExists reports whether id is persisted in the given identifier space.
func (s *Store) IDExists(ctx context.Context, kind auth.IDKind, id uuid.UUID) (bool, error) {
	var query string
	switch kind {
	case auth.IDKindAccount:
		query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`
	case auth.IDKindSession:
		query = `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`
	default:
		return false, oops.Code("DB_INVALID_ID_KIND").
			With("kind", string(kind)).
			Errorf("unknown identifier kind")
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	var exists bool
	if err := s.db.QueryRow(ctx, query, id.String()).Scan(&exists); err != nil {
		return false, oops.Code("DB_ID_CHECK_FAILED").
			With("operation", "check id existence").
			With("kind", string(kind)).
			Wrap(err)
	}
	return exists, nil
}

// FindSession retrieves a session by ID.
func (s *Store) FindSession(ctx context.Context, id uuid.UUID) (*auth.Session, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	row := s.db.QueryRow(ctx, `
		SELECT id, account_id, created_at, expires_at
		FROM sessions
		WHERE id = $1
	`, id.String())

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("DB_SESSION_NOT_FOUND").
			With("session_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("DB_SESSION_QUERY_FAILED").
			With("operation", "find session").
			With("session_id", id.String()).
			Wrap(err)
	}
	return session, nil
}

// InsertSession stores a new session. A primary-key conflict on the
// session ID surfaces as auth.ErrDuplicateID.
func (s *Store) InsertSession(ctx context.Context, session *auth.Session) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (id, account_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`,
		session.ID.String(),
		session.AccountID.String(),
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("DB_DUPLICATE_ID").
				With("session_id", session.ID.String()).
				Wrap(auth.ErrDuplicateID)
		}
		return oops.Code("DB_SESSION_INSERT_FAILED").
			With("operation", "insert session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// UpdateSession updates a session in place, inserting it when no row with
// its ID exists yet.
func (s *Store) UpdateSession(ctx context.Context, session *auth.Session) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (id, account_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET account_id = $2, created_at = $3, expires_at = $4
	`,
		session.ID.String(),
		session.AccountID.String(),
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return oops.Code("DB_SESSION_UPDATE_FAILED").
			With("operation", "upsert session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// InsertGuest stores a guest marker. A primary-key conflict on the session
// ID surfaces as auth.ErrDuplicateID.
func (s *Store) InsertGuest(ctx context.Context, sessionID, accountID uuid.UUID) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO guests (session_id, account_id)
		VALUES ($1, $2)
	`, sessionID.String(), accountID.String())
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("DB_DUPLICATE_ID").
				With("session_id", sessionID.String()).
				Wrap(auth.ErrDuplicateID)
		}
		return oops.Code("DB_GUEST_INSERT_FAILED").
			With("operation", "insert guest marker").
			Wrap(err)
	}
	return nil
}

// FindGuest returns the guest account ID marked for the given session.
func (s *Store) FindGuest(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var accountIDStr string
	err := s.db.QueryRow(ctx, `
		SELECT account_id FROM guests WHERE session_id = $1
	`, sessionID.String()).Scan(&accountIDStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, oops.Code("DB_GUEST_NOT_FOUND").
			With("session_id", sessionID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, oops.Code("DB_GUEST_QUERY_FAILED").
			With("operation", "find guest marker").
			With("session_id", sessionID.String()).
			Wrap(err)
	}

	accountID, err := uuid.Parse(accountIDStr)
	if err != nil {
		return uuid.Nil, oops.Code("DB_INVALID_ACCOUNT_ID").
			With("operation", "parse guest account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}
	return accountID, nil
}

// DeleteGuest removes the guest marker for the given session. Deleting a
// marker that does not exist is not an error.
func (s *Store) DeleteGuest(ctx context.Context, sessionID uuid.UUID) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		DELETE FROM guests WHERE session_id = $1
	`, sessionID.String())
	if err != nil {
		return oops.Code("DB_GUEST_DELETE_FAILED").
			With("operation", "delete guest marker").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions and returns the count.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	result, err := s.db.Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("DB_SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// isUniqueViolation reports whether err is a postgres unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// scanAccount scans a row from a rows iterator into an Account.
func scanAccount(rows pgx.Rows) (*auth.Account, error) {
	var (
		idStr          string
		fingerprint    string
		passwordHash   string
		saltStr        string
		activeSessions int
	)
	if err := rows.Scan(&idStr, &fingerprint, &passwordHash, &saltStr, &activeSessions); err != nil {
		return nil, oops.Code("DB_ACCOUNT_SCAN_FAILED").
			With("operation", "scan account row").
			Wrap(err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("DB_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", idStr).
			Wrap(err)
	}

	return &auth.Account{
		ID:             id,
		Fingerprint:    fingerprint,
		PasswordHash:   passwordHash,
		Salt:           auth.Salt(saltStr),
		ActiveSessions: activeSessions,
	}, nil
}

// scanSession scans a single row into a Session. Callers are responsible
// for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr        string
		accountIDStr string
		createdAt    time.Time
		expiresAt    time.Time
	)
	err := row.Scan(&idStr, &accountIDStr, &createdAt, &expiresAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("DB_SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("DB_INVALID_SESSION_ID").
			With("operation", "parse session id").
			With("session_id", idStr).
			Wrap(err)
	}
	accountID, err := uuid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.Code("DB_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}

	return &auth.Session{
		ID:        id,
		AccountID: accountID,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Compile-time interface check.
var _ auth.Store = (*Store)(nil)
