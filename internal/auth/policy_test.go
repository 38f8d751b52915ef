// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/almclabs/doorman/pkg/errutil"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "Passw0rd!", wantErr: false},
		{name: "minimum length exact", password: "a1!aaaaa", wantErr: false},
		{name: "too short", password: "P4ss!", wantErr: true},
		{name: "no digit", password: "password!", wantErr: true},
		{name: "no letter", password: "12345678!", wantErr: true},
		{name: "no punctuation", password: "ALLLETTERS1", wantErr: true},
		{name: "letters only", password: "password", wantErr: true},
		{name: "empty", password: "", wantErr: true},
		{name: "unicode letter accepted", password: "Ωmega12!", wantErr: false},
		{name: "punctuation from each ascii range", password: "a1!:[{zz", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIsASCIIPunct(t *testing.T) {
	for _, c := range "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~" {
		require.True(t, isASCIIPunct(c), "expected %q to count as punctuation", c)
	}
	for _, c := range "aZ09 \t\néΩ" {
		require.False(t, isASCIIPunct(c), "expected %q not to count as punctuation", c)
	}
}
