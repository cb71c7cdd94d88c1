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

// Package odxerrors defines the error taxonomy shared by every layer of the
// driver. Errors carry a Class for programmatic dispatch, an optional vendor
// code reported by the server, and an optional wrapped cause. Callers are
// expected to use errors.As together with the predicate helpers rather than
// matching on message text.
package odxerrors

import (
	"errors"
	"fmt"
)

// Class identifies the category of a driver error.
type Class int

const (
	ClassUnknown Class = iota
	ClassConnection
	ClassConnectionClosed
	ClassAuthentication
	ClassSQLExecution
	ClassInvalidSQL
	ClassTypeMismatch
	ClassColumnNotFound
	ClassInvalidBind
	ClassPool
	ClassPoolTimeout
	ClassPoolClosed
	ClassInvalidConfiguration
	ClassUnsupported
	ClassProtocol
	ClassIO
	ClassEncoding
	ClassTimeout
	ClassVendor
	ClassTransaction
	ClassLob
	ClassInvalidData
	ClassNotImplemented
)

var classNames = map[Class]string{
	ClassUnknown:              "unknown",
	ClassConnection:           "connection",
	ClassConnectionClosed:     "connection_closed",
	ClassAuthentication:       "authentication",
	ClassSQLExecution:         "sql_execution",
	ClassInvalidSQL:           "invalid_sql",
	ClassTypeMismatch:         "type_mismatch",
	ClassColumnNotFound:       "column_not_found",
	ClassInvalidBind:          "invalid_bind",
	ClassPool:                 "pool",
	ClassPoolTimeout:          "pool_timeout",
	ClassPoolClosed:           "pool_closed",
	ClassInvalidConfiguration: "invalid_configuration",
	ClassUnsupported:          "unsupported",
	ClassProtocol:             "protocol",
	ClassIO:                   "io",
	ClassEncoding:             "encoding",
	ClassTimeout:              "timeout",
	ClassVendor:               "vendor",
	ClassTransaction:          "transaction",
	ClassLob:                  "lob",
	ClassInvalidData:          "invalid_data",
	ClassNotImplemented:       "not_implemented",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Error is the concrete error type produced by the driver.
type Error struct {
	class Class
	code  int // vendor code, zero when the server did not report one
	msg   string
	cause error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	msg := e.msg
	if e.class == ClassVendor {
		msg = fmt.Sprintf("ODX-%05d: %s", e.code, e.msg)
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

// Message returns the error text without the vendor code prefix.
func (e *Error) Message() string {
	return e.msg
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Class reports the error category.
func (e *Error) Class() Class {
	return e.class
}

// VendorCode reports the server error code, or zero for local errors.
func (e *Error) VendorCode() int {
	return e.code
}

func newError(class Class, msg string) *Error {
	return &Error{class: class, msg: msg}
}

func newErrorf(class Class, format string, args ...any) *Error {
	return &Error{class: class, msg: fmt.Sprintf(format, args...)}
}

// Connectionf reports a transport-level connection failure.
func Connectionf(format string, args ...any) *Error {
	return newErrorf(ClassConnection, "connection error: "+format, args...)
}

// ConnectionClosed reports an operation attempted on a closed connection.
func ConnectionClosed() *Error {
	return newError(ClassConnectionClosed, "connection is closed")
}

// AuthenticationFailedf reports a failed authentication exchange.
func AuthenticationFailedf(format string, args ...any) *Error {
	return newErrorf(ClassAuthentication, "authentication failed: "+format, args...)
}

// SQLExecutionf reports a failure while executing a statement.
func SQLExecutionf(format string, args ...any) *Error {
	return newErrorf(ClassSQLExecution, "sql execution error: "+format, args...)
}

// InvalidSQLf reports statement text the driver refuses to send.
func InvalidSQLf(format string, args ...any) *Error {
	return newErrorf(ClassInvalidSQL, "invalid sql: "+format, args...)
}

// TypeMismatchf reports a value conversion that is not allowed.
func TypeMismatchf(format string, args ...any) *Error {
	return newErrorf(ClassTypeMismatch, "type mismatch: "+format, args...)
}

// ColumnNotFound reports a row lookup for a column that does not exist.
func ColumnNotFound(name string) *Error {
	return newErrorf(ClassColumnNotFound, "column not found: %s", name)
}

// InvalidBindf reports a bad bind parameter index or value.
func InvalidBindf(format string, args ...any) *Error {
	return newErrorf(ClassInvalidBind, "invalid bind parameter: "+format, args...)
}

// Poolf reports a pool-internal failure.
func Poolf(format string, args ...any) *Error {
	return newErrorf(ClassPool, "connection pool error: "+format, args...)
}

// PoolTimeout reports that no session became available within the
// configured acquisition timeout.
func PoolTimeout() *Error {
	return newError(ClassPoolTimeout, "connection pool timeout: no sessions available")
}

// PoolClosed reports an acquisition attempt on a closed pool.
func PoolClosed() *Error {
	return newError(ClassPoolClosed, "connection pool is closed")
}

// InvalidConfigurationf reports configuration that fails validation.
func InvalidConfigurationf(format string, args ...any) *Error {
	return newErrorf(ClassInvalidConfiguration, "invalid configuration: "+format, args...)
}

// Unsupportedf reports a feature the server or driver does not support.
func Unsupportedf(format string, args ...any) *Error {
	return newErrorf(ClassUnsupported, "unsupported feature: "+format, args...)
}

// Protocolf reports a violation of the wire exchange contract.
func Protocolf(format string, args ...any) *Error {
	return newErrorf(ClassProtocol, "protocol error: "+format, args...)
}

// IO wraps a network-level error.
func IO(err error) *Error {
	return &Error{class: ClassIO, msg: "network i/o error", cause: err}
}

// Encodingf reports a value that could not be encoded or decoded.
func Encodingf(format string, args ...any) *Error {
	return newErrorf(ClassEncoding, "encoding error: "+format, args...)
}

// Timeout reports an operation-level timeout.
func Timeout() *Error {
	return newError(ClassTimeout, "operation timeout")
}

// Vendor reports an error returned by the server, identified by its
// numeric code. The code renders zero-padded to five digits.
func Vendor(code int, message string) *Error {
	return &Error{class: ClassVendor, code: code, msg: message}
}

// Transactionf reports a transaction control failure.
func Transactionf(format string, args ...any) *Error {
	return newErrorf(ClassTransaction, "transaction error: "+format, args...)
}

// Lobf reports a large-object operation failure.
func Lobf(format string, args ...any) *Error {
	return newErrorf(ClassLob, "lob operation error: "+format, args...)
}

// InvalidDataf reports malformed data received from the server.
func InvalidDataf(format string, args ...any) *Error {
	return newErrorf(ClassInvalidData, "invalid data: "+format, args...)
}

// NotImplementedf reports functionality that is recognized but not built.
func NotImplementedf(format string, args ...any) *Error {
	return newErrorf(ClassNotImplemented, "not implemented: "+format, args...)
}

// Wrap attaches a cause to a classified message. The cause participates in
// errors.Is / errors.As chains.
func Wrap(class Class, err error, msg string) *Error {
	return &Error{class: class, msg: msg, cause: err}
}

// ClassOf extracts the Class from err, or ClassUnknown when err was not
// produced by this package.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.class
	}
	return ClassUnknown
}

// VendorCode extracts the server error code from err, looking through
// wrapped causes so a classified error keeps its code reachable.
func VendorCode(err error) (int, bool) {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return 0, false
		}
		if e.class == ClassVendor {
			return e.code, true
		}
		err = e.Unwrap()
	}
	return 0, false
}

// IsConnectionError reports whether err indicates a broken or unusable
// transport.
func IsConnectionError(err error) bool {
	switch ClassOf(err) {
	case ClassConnection, ClassConnectionClosed, ClassIO:
		return true
	}
	return false
}

// IsPoolError reports whether err originated in pool management.
func IsPoolError(err error) bool {
	switch ClassOf(err) {
	case ClassPool, ClassPoolTimeout, ClassPoolClosed:
		return true
	}
	return false
}

// IsRetryable reports whether the failed operation may succeed on a fresh
// attempt. Timeouts and network faults always qualify; vendor errors
// qualify only for the known transient codes.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.class {
	case ClassTimeout, ClassPoolTimeout, ClassIO:
		return true
	case ClassVendor:
		_, ok := retryableCodes[e.code]
		return ok
	}
	return false
}
