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

package odxerrors

// Vendor error codes the driver knows by name. The server reports many
// more; these are the ones the driver inspects or that callers commonly
// switch on.
const (
	CodeUniqueConstraint   = 1
	CodeResourceBusy       = 54
	CodeDeadlock           = 60
	CodeNotLoggedOn        = 1012
	CodeCanceled           = 1013
	CodeInvalidCredentials = 1017
	CodeShutdownInProgress = 1089
	CodeNoDataFound        = 1403
	CodeTooManyRows        = 1422
	CodeEndOfFile          = 3113
	CodeUnknownService     = 12154
	CodeConnectTimeout     = 17002
	CodeClosedConnection   = 17008
	CodeNoMoreData         = 17410
)

// retryableCodes lists vendor codes for transient conditions. Session and
// connection drops surface here next to lock contention; constraint and
// data errors never do.
var retryableCodes = map[int]struct{}{
	CodeConnectTimeout:     {},
	CodeClosedConnection:   {},
	CodeNoMoreData:         {},
	CodeNotLoggedOn:        {},
	CodeCanceled:           {},
	CodeShutdownInProgress: {},
	CodeResourceBusy:       {},
}
