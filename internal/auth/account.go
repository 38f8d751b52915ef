// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Account is a persisted credential record. The plaintext username is never
// stored; Fingerprint is the deterministic lookup key. The store does not
// enforce fingerprint uniqueness, so lookups may return zero, one, or many
// accounts for one fingerprint.
type Account struct {
	ID             uuid.UUID
	Fingerprint    string
	PasswordHash   string
	Salt           Salt
	ActiveSessions int
}

// NewAccount creates a validated Account with ActiveSessions zeroed.
func NewAccount(id uuid.UUID, fingerprint, passwordHash string, salt Salt) (*Account, error) {
	if id == uuid.Nil {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if fingerprint == "" {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("fingerprint cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("password hash cannot be empty")
	}
	if salt == "" {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("salt cannot be empty")
	}

	return &Account{
		ID:             id,
		Fingerprint:    fingerprint,
		PasswordHash:   passwordHash,
		Salt:           salt,
		ActiveSessions: 0,
	}, nil
}
