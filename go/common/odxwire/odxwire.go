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

// Package odxwire defines the structured request/response envelope the
// session exchanges with a transport. The byte-level framing of the ODX
// protocol lives behind the transport boundary; nothing in this package
// describes bytes on the wire.
package odxwire

import (
	"fmt"

	"github.com/oradex/oradex-go/go/common/odxtypes"
	"github.com/oradex/oradex-go/go/odxerrors"
)

// Op identifies the operation a request asks the server to perform.
type Op int

const (
	OpConnect Op = iota + 1
	OpAuth
	OpExecute
	OpExecuteBatch
	OpMetadata
	OpCommit
	OpRollback
	OpPing
	OpLogoff
)

var opNames = map[Op]string{
	OpConnect:      "CONNECT",
	OpAuth:         "AUTH",
	OpExecute:      "EXECUTE",
	OpExecuteBatch: "EXECUTE_BATCH",
	OpMetadata:     "METADATA",
	OpCommit:       "COMMIT",
	OpRollback:     "ROLLBACK",
	OpPing:         "PING",
	OpLogoff:       "LOGOFF",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OP(%d)", int(o))
}

// Status is the outcome class of a response.
type Status int

const (
	StatusOK Status = iota + 1
	StatusError
	StatusAuthChallenge
	StatusAuthOK
)

var statusNames = map[Status]string{
	StatusOK:            "OK",
	StatusError:         "ERROR",
	StatusAuthChallenge: "AUTH_CHALLENGE",
	StatusAuthOK:        "AUTH_OK",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// Mechanism names an authentication strategy on the wire.
type Mechanism string

const (
	MechanismExternal Mechanism = "EXTERNAL"
	MechanismToken    Mechanism = "TOKEN"
	MechanismPassword Mechanism = "PASSWORD"
)

// AuthPayload carries the client side of an authentication exchange.
// Password authentication runs in two legs: an empty Digest announces the
// mechanism, the second request answers the server challenge.
type AuthPayload struct {
	Mechanism Mechanism
	Username  string
	Token     string
	Digest    []byte
}

// Request is one client-to-server exchange unit.
type Request struct {
	Op     Op
	SQL    string
	Params []odxtypes.Value
	Batch  [][]odxtypes.Value
	Auth   *AuthPayload

	// Service and Attrs apply to OpConnect.
	Service string
	Attrs   map[string]string
}

// Response is the server's answer to a single request.
type Response struct {
	Status        Status
	SessionID     uint64
	ServerVersion string

	// Challenge is the salt of a password challenge (StatusAuthChallenge).
	Challenge []byte

	// Query results.
	Columns []odxtypes.ColumnInfo
	Rows    [][]odxtypes.Value

	// RowsAffected applies to DML responses.
	RowsAffected int64

	// Code and Message describe a StatusError response. Code zero means
	// the failure was protocol-level rather than a vendor error.
	Code    int
	Message string
}

// Err converts an error response into a driver error, nil otherwise.
func (r *Response) Err() error {
	if r.Status != StatusError {
		return nil
	}
	if r.Code != 0 {
		return odxerrors.Vendor(r.Code, r.Message)
	}
	return odxerrors.Protocolf("%s", r.Message)
}
