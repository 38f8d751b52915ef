// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"unicode"

	"github.com/samber/oops"
)

// MinPasswordLength is the minimum accepted password length in bytes.
const MinPasswordLength = 8

// ValidatePassword enforces the registration password policy:
// at least MinPasswordLength bytes, at least one digit, one letter, and one
// ASCII punctuation or symbol character. Server-side enforcement is
// authoritative; any client-side check is advisory only.
func ValidatePassword(password string) error {
	var hasDigit, hasLetter, hasPunct bool
	for _, c := range password {
		if c >= '0' && c <= '9' {
			hasDigit = true
		}
		if unicode.IsLetter(c) {
			hasLetter = true
		}
		if isASCIIPunct(c) {
			hasPunct = true
		}
	}

	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if !hasDigit || !hasLetter || !hasPunct {
		return oops.Code("AUTH_INVALID_PASSWORD").
			Errorf("password must contain a digit, a letter, and a punctuation character")
	}
	return nil
}

// isASCIIPunct reports whether c is an ASCII punctuation or symbol
// character: !"#$%&'()*+,-./:;<=>?@[\]^_`{|}~
func isASCIIPunct(c rune) bool {
	switch {
	case c >= '!' && c <= '/':
		return true
	case c >= ':' && c <= '@':
		return true
	case c >= '[' && c <= '`':
		return true
	case c >= '{' && c <= '~':
		return true
	}
	return false
}
