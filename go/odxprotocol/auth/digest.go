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
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// digestIterations is the PBKDF2 iteration count for password digests.
	digestIterations = 4096

	// digestLength is the digest size in bytes.
	digestLength = 32
)

// PasswordDigest derives the challenge/response digest for a password
// under a server-supplied salt using PBKDF2-HMAC-SHA256. The same
// password and salt always produce the same digest.
func PasswordDigest(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, digestIterations, digestLength, sha256.New)
}

// VerifyDigest compares two digests in constant time.
func VerifyDigest(got, want []byte) bool {
	return subtle.ConstantTimeCompare(got, want) == 1
}
