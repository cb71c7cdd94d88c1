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

package client

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/oradex/oradex-go/go/common/odxwire"
)

// Transport carries one request/response exchange at a time against an
// ODX endpoint. Implementations own framing, encoding, and the network
// fault model; the session never sees bytes. A Transport is not required
// to be safe for concurrent RoundTrip calls; the session serializes.
type Transport interface {
	// RoundTrip sends one request and waits for its response. A non-nil
	// error means the exchange failed at the transport level and the
	// transport may no longer be usable.
	RoundTrip(ctx context.Context, req *odxwire.Request) (*odxwire.Response, error)

	// Close releases the underlying network resources. Implementations
	// must tolerate repeated calls.
	Close() error
}

// DialConfig carries the transport-relevant connection settings.
type DialConfig struct {
	// Timeout bounds transport establishment, zero means no limit.
	Timeout time.Duration

	// TLSConfig enables encrypted transports when non-nil.
	TLSConfig *tls.Config

	// Params are vendor connect parameters forwarded verbatim.
	Params map[string]string
}

// Dialer opens a transport to the given endpoint. The driver ships no
// production dialer; integrations supply one, and tests use the fake
// server's dialer.
type Dialer func(ctx context.Context, info ConnectionInfo, cfg DialConfig) (Transport, error)
