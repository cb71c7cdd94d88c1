// Copyright 2025 Oradex, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oradex/oradex-go/go/common/odxwire"
	"github.com/oradex/oradex-go/go/odxerrors"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		want     Method
		wantErr  bool
	}{
		{"both empty selects external", "", "", MethodExternal, false},
		{"token prefix selects token", "app", "TOKEN:eyJabc", MethodToken, false},
		{"token without username still token", "", "TOKEN:eyJabc", MethodToken, false},
		{"empty token is rejected", "app", "TOKEN:", 0, true},
		{"regular credentials select password", "scott", "tiger", MethodPassword, false},
		{"username only still password", "scott", "", MethodPassword, false},
		{"prefix must match case", "scott", "token:abc", MethodPassword, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.username, tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, odxerrors.ClassAuthentication, odxerrors.ClassOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPasswordDigestDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	first := PasswordDigest("tiger", salt)
	second := PasswordDigest("tiger", salt)

	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
}

func TestPasswordDigestSaltSensitive(t *testing.T) {
	a := PasswordDigest("tiger", []byte("salt-one--------"))
	b := PasswordDigest("tiger", []byte("salt-two--------"))

	assert.NotEqual(t, a, b)
}

func TestPasswordDigestPasswordSensitive(t *testing.T) {
	salt := []byte("0123456789abcdef")

	a := PasswordDigest("tiger", salt)
	b := PasswordDigest("tiger ", salt)

	assert.NotEqual(t, a, b)
}

func TestVerifyDigest(t *testing.T) {
	salt := []byte("0123456789abcdef")
	digest := PasswordDigest("tiger", salt)

	assert.True(t, VerifyDigest(digest, PasswordDigest("tiger", salt)))
	assert.False(t, VerifyDigest(digest, PasswordDigest("lion", salt)))
	assert.False(t, VerifyDigest(digest, nil))
}

func TestInitialPayload(t *testing.T) {
	t.Run("external", func(t *testing.T) {
		p, err := InitialPayload(Credentials{})
		require.NoError(t, err)
		assert.Equal(t, odxwire.MechanismExternal, p.Mechanism)
		assert.Empty(t, p.Username)
		assert.Empty(t, p.Token)
	})

	t.Run("token strips prefix", func(t *testing.T) {
		p, err := InitialPayload(Credentials{Username: "app", Password: "TOKEN:abc123"})
		require.NoError(t, err)
		assert.Equal(t, odxwire.MechanismToken, p.Mechanism)
		assert.Equal(t, "app", p.Username)
		assert.Equal(t, "abc123", p.Token)
	})

	t.Run("password announces without digest", func(t *testing.T) {
		p, err := InitialPayload(Credentials{Username: "scott", Password: "tiger"})
		require.NoError(t, err)
		assert.Equal(t, odxwire.MechanismPassword, p.Mechanism)
		assert.Equal(t, "scott", p.Username)
		assert.Nil(t, p.Digest)
	})

	t.Run("empty token propagates error", func(t *testing.T) {
		_, err := InitialPayload(Credentials{Username: "app", Password: "TOKEN:"})
		require.Error(t, err)
	})
}

func TestChallengeResponse(t *testing.T) {
	creds := Credentials{Username: "scott", Password: "tiger"}
	salt := []byte("0123456789abcdef")

	p := ChallengeResponse(creds, salt)

	assert.Equal(t, odxwire.MechanismPassword, p.Mechanism)
	assert.Equal(t, "scott", p.Username)
	assert.Equal(t, PasswordDigest("tiger", salt), p.Digest)
}
