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

// Package auth selects and drives the authentication strategy for a
// session. Strategy selection and the digest computation are pure; no
// transport is involved, which keeps the whole package testable offline.
package auth

import (
	"strings"

	"github.com/oradex/oradex-go/go/common/odxwire"
	"github.com/oradex/oradex-go/go/odxerrors"
)

// TokenPrefix marks a password field that carries a bearer token instead
// of a password.
const TokenPrefix = "TOKEN:"

// Method is the authentication strategy for a session.
type Method int

const (
	// MethodPassword authenticates with a salted challenge/response
	// digest of the password.
	MethodPassword Method = iota

	// MethodToken authenticates with a bearer token supplied in the
	// password field after the TOKEN: prefix.
	MethodToken

	// MethodExternal defers to an OS or wallet identity; selected when
	// both username and password are empty.
	MethodExternal
)

func (m Method) String() string {
	switch m {
	case MethodPassword:
		return "password"
	case MethodToken:
		return "token"
	case MethodExternal:
		return "external"
	}
	return "unknown"
}

// Detect picks the authentication method from the credential shape:
// both fields empty selects external authentication, a TOKEN: prefix in
// the password selects token authentication, anything else is a password
// challenge/response. An empty token after the prefix is an error.
func Detect(username, password string) (Method, error) {
	if username == "" && password == "" {
		return MethodExternal, nil
	}
	if strings.HasPrefix(password, TokenPrefix) {
		if password == TokenPrefix {
			return 0, odxerrors.AuthenticationFailedf("empty token")
		}
		return MethodToken, nil
	}
	return MethodPassword, nil
}

// Credentials holds what the caller supplied for authentication.
type Credentials struct {
	Username string
	Password string
}

// Method reports the strategy these credentials select.
func (c Credentials) Method() (Method, error) {
	return Detect(c.Username, c.Password)
}

// Token returns the bearer token without its prefix. Valid only when the
// method is MethodToken.
func (c Credentials) Token() string {
	return strings.TrimPrefix(c.Password, TokenPrefix)
}

// InitialPayload builds the first AUTH payload for the selected method.
// Token and external authentication complete in one leg; password
// authentication announces the mechanism and expects a salt challenge.
func InitialPayload(c Credentials) (*odxwire.AuthPayload, error) {
	method, err := c.Method()
	if err != nil {
		return nil, err
	}
	switch method {
	case MethodExternal:
		return &odxwire.AuthPayload{Mechanism: odxwire.MechanismExternal}, nil
	case MethodToken:
		return &odxwire.AuthPayload{
			Mechanism: odxwire.MechanismToken,
			Username:  c.Username,
			Token:     c.Token(),
		}, nil
	default:
		return &odxwire.AuthPayload{
			Mechanism: odxwire.MechanismPassword,
			Username:  c.Username,
		}, nil
	}
}

// ChallengeResponse builds the second AUTH payload answering a password
// challenge with the digest of the password under the server's salt.
func ChallengeResponse(c Credentials, salt []byte) *odxwire.AuthPayload {
	return &odxwire.AuthPayload{
		Mechanism: odxwire.MechanismPassword,
		Username:  c.Username,
		Digest:    PasswordDigest(c.Password, salt),
	}
}
