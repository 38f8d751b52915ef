// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package auth provides credential and session primitives for Doorman.
//
// # Domain Types
//
// Domain types (Account, Session) should be created using their
// constructors:
//   - NewAccount - creates an Account with validated fingerprint and hash
//   - Manager.Create / Manager.Renew - issue Session values with the
//     one-hour expiry invariant applied
//
// Direct struct initialization bypasses validation and may create invalid
// state. The Store implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Hasher - username fingerprinting, salt derivation, password hashing
//   - Manager - session lifecycle and collision-safe identifier generation
//   - Service - verify, register, and guest-admit orchestration
//
// Services are created with New* constructors that validate dependencies.
package auth
