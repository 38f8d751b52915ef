// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned by Store implementations when an insert hits a
// uniqueness constraint on a generated identifier. Callers treat it as the
// authoritative collision signal and redraw.
var ErrDuplicateID = errors.New("duplicate id")
