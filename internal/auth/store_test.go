// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// fakeStore is a configurable Store test double. Unset function fields fall
// back to empty-store behavior.
type fakeStore struct {
	findAccountsByFingerprintFn func(ctx context.Context, fingerprint string) ([]*Account, error)
	insertAccountFn             func(ctx context.Context, account *Account) error
	idExistsFn                  func(ctx context.Context, kind IDKind, id uuid.UUID) (bool, error)
	findSessionFn               func(ctx context.Context, id uuid.UUID) (*Session, error)
	insertSessionFn             func(ctx context.Context, session *Session) error
	updateSessionFn             func(ctx context.Context, session *Session) error
	insertGuestFn               func(ctx context.Context, sessionID, accountID uuid.UUID) error
	findGuestFn                 func(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)
	deleteGuestFn               func(ctx context.Context, sessionID uuid.UUID) error
	deleteExpiredSessionsFn     func(ctx context.Context) (int64, error)
}

var _ Store = (*fakeStore)(nil)

func (s *fakeStore) FindAccountsByFingerprint(ctx context.Context, fingerprint string) ([]*Account, error) {
	if s.findAccountsByFingerprintFn != nil {
		return s.findAccountsByFingerprintFn(ctx, fingerprint)
	}
	return nil, nil
}

func (s *fakeStore) InsertAccount(ctx context.Context, account *Account) error {
	if s.insertAccountFn != nil {
		return s.insertAccountFn(ctx, account)
	}
	return nil
}

func (s *fakeStore) IDExists(ctx context.Context, kind IDKind, id uuid.UUID) (bool, error) {
	if s.idExistsFn != nil {
		return s.idExistsFn(ctx, kind, id)
	}
	return false, nil
}

func (s *fakeStore) FindSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	if s.findSessionFn != nil {
		return s.findSessionFn(ctx, id)
	}
	return nil, ErrNotFound
}

func (s *fakeStore) InsertSession(ctx context.Context, session *Session) error {
	if s.insertSessionFn != nil {
		return s.insertSessionFn(ctx, session)
	}
	return nil
}

func (s *fakeStore) UpdateSession(ctx context.Context, session *Session) error {
	if s.updateSessionFn != nil {
		return s.updateSessionFn(ctx, session)
	}
	return nil
}

func (s *fakeStore) InsertGuest(ctx context.Context, sessionID, accountID uuid.UUID) error {
	if s.insertGuestFn != nil {
		return s.insertGuestFn(ctx, sessionID, accountID)
	}
	return nil
}

func (s *fakeStore) FindGuest(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	if s.findGuestFn != nil {
		return s.findGuestFn(ctx, sessionID)
	}
	return uuid.Nil, ErrNotFound
}

func (s *fakeStore) DeleteGuest(ctx context.Context, sessionID uuid.UUID) error {
	if s.deleteGuestFn != nil {
		return s.deleteGuestFn(ctx, sessionID)
	}
	return nil
}

func (s *fakeStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	if s.deleteExpiredSessionsFn != nil {
		return s.deleteExpiredSessionsFn(ctx)
	}
	return 0, nil
}

// memoryStore is an in-memory Store for end-to-end service tests.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Account
	sessions map[uuid.UUID]*Session
	guests   map[uuid.UUID]uuid.UUID
}

var _ Store = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts: make(map[uuid.UUID]*Account),
		sessions: make(map[uuid.UUID]*Session),
		guests:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *memoryStore) FindAccountsByFingerprint(_ context.Context, fingerprint string) ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Account
	for _, a := range s.accounts {
		if a.Fingerprint == fingerprint {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) InsertAccount(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return ErrDuplicateID
	}
	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

func (s *memoryStore) IDExists(_ context.Context, kind IDKind, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case IDKindAccount:
		_, ok := s.accounts[id]
		return ok, nil
	case IDKindSession:
		_, ok := s.sessions[id]
		return ok, nil
	}
	return false, nil
}

func (s *memoryStore) FindSession(_ context.Context, id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *memoryStore) InsertSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return ErrDuplicateID
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *memoryStore) UpdateSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *memoryStore) InsertGuest(_ context.Context, sessionID, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guests[sessionID]; ok {
		return ErrDuplicateID
	}
	s.guests[sessionID] = accountID
	return nil
}

func (s *memoryStore) FindGuest(_ context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accountID, ok := s.guests[sessionID]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return accountID, nil
}

func (s *memoryStore) DeleteGuest(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guests, sessionID)
	return nil
}

func (s *memoryStore) DeleteExpiredSessions(context.Context) (int64, error) {
	return 0, nil
}
