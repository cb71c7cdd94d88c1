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

// Package odxtypes holds the value model shared between the wire envelope
// and the public driver surface: the Value tagged union, column metadata,
// rows, and materialized result sets.
package odxtypes

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/oradex/oradex-go/go/odxerrors"
)

// Kind discriminates the variants of Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt64
	KindFloat64
	KindBool
	KindDate
	KindTimestamp
	KindTimestampTZ
	KindBytes
	KindClob
	KindBlob
	KindJSON
	KindArray
	KindObject
)

var kindNames = map[Kind]string{
	KindNull:        "Null",
	KindString:      "String",
	KindInt64:       "Int64",
	KindFloat64:     "Float64",
	KindBool:        "Bool",
	KindDate:        "Date",
	KindTimestamp:   "Timestamp",
	KindTimestampTZ: "TimestampTZ",
	KindBytes:       "Bytes",
	KindClob:        "Clob",
	KindBlob:        "Blob",
	KindJSON:        "JSON",
	KindArray:       "Array",
	KindObject:      "Object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a single database value. The zero Value is NULL.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
	raw  []byte
	arr  []Value
	obj  map[string]Value
}

// Null returns the NULL value.
func Null() Value {
	return Value{kind: KindNull}
}

// NewString returns a VARCHAR2-style string value.
func NewString(s string) Value {
	return Value{kind: KindString, s: s}
}

// NewInt64 returns an integer NUMBER value.
func NewInt64(i int64) Value {
	return Value{kind: KindInt64, i: i}
}

// NewFloat64 returns a floating-point NUMBER value.
func NewFloat64(f float64) Value {
	return Value{kind: KindFloat64, f: f}
}

// NewBool returns a BOOLEAN value.
func NewBool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// NewDate returns a DATE value. Only the date portion is significant.
func NewDate(t time.Time) Value {
	return Value{kind: KindDate, t: t}
}

// NewTimestamp returns a TIMESTAMP value without time zone.
func NewTimestamp(t time.Time) Value {
	return Value{kind: KindTimestamp, t: t}
}

// NewTimestampTZ returns a TIMESTAMP WITH TIME ZONE value.
func NewTimestampTZ(t time.Time) Value {
	return Value{kind: KindTimestampTZ, t: t}
}

// NewBytes returns a RAW value.
func NewBytes(b []byte) Value {
	return Value{kind: KindBytes, raw: b}
}

// NewClob returns a CLOB value.
func NewClob(s string) Value {
	return Value{kind: KindClob, s: s}
}

// NewBlob returns a BLOB value.
func NewBlob(b []byte) Value {
	return Value{kind: KindBlob, raw: b}
}

// NewJSON returns a JSON value from already-encoded bytes. The bytes are
// not validated here; decoding errors surface on access.
func NewJSON(raw []byte) Value {
	return Value{kind: KindJSON, raw: raw}
}

// MarshalJSONValue encodes v as JSON and wraps it as a JSON value.
func MarshalJSONValue(v any) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Null(), odxerrors.Encodingf("marshal json value: %v", err)
	}
	return NewJSON(raw), nil
}

// NewArray returns an array value.
func NewArray(vals []Value) Value {
	return Value{kind: KindArray, arr: vals}
}

// NewObject returns an object value with named attributes.
func NewObject(m map[string]Value) Value {
	return Value{kind: KindObject, obj: m}
}

// Kind reports the variant of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsString converts to a Go string. String and Clob values qualify.
func (v Value) AsString() (string, error) {
	switch v.kind {
	case KindString, KindClob:
		return v.s, nil
	}
	return "", odxerrors.TypeMismatchf("expected string, got %s", v.kind)
}

// AsInt64 converts to int64. Only integer values qualify.
func (v Value) AsInt64() (int64, error) {
	if v.kind == KindInt64 {
		return v.i, nil
	}
	return 0, odxerrors.TypeMismatchf("expected integer, got %s", v.kind)
}

// AsFloat64 converts to float64. Integer values widen.
func (v Value) AsFloat64() (float64, error) {
	switch v.kind {
	case KindFloat64:
		return v.f, nil
	case KindInt64:
		return float64(v.i), nil
	}
	return 0, odxerrors.TypeMismatchf("expected float, got %s", v.kind)
}

// AsBool converts to bool.
func (v Value) AsBool() (bool, error) {
	if v.kind == KindBool {
		return v.b, nil
	}
	return false, odxerrors.TypeMismatchf("expected boolean, got %s", v.kind)
}

// AsBytes converts to a byte slice. Bytes and Blob values qualify.
func (v Value) AsBytes() ([]byte, error) {
	switch v.kind {
	case KindBytes, KindBlob:
		return v.raw, nil
	}
	return nil, odxerrors.TypeMismatchf("expected bytes, got %s", v.kind)
}

// AsTime converts to time.Time. Date and timestamp variants qualify.
func (v Value) AsTime() (time.Time, error) {
	switch v.kind {
	case KindDate, KindTimestamp, KindTimestampTZ:
		return v.t, nil
	}
	return time.Time{}, odxerrors.TypeMismatchf("expected date or timestamp, got %s", v.kind)
}

// AsJSON decodes a JSON value into dst.
func (v Value) AsJSON(dst any) error {
	if v.kind != KindJSON {
		return odxerrors.TypeMismatchf("expected json, got %s", v.kind)
	}
	if err := json.Unmarshal(v.raw, dst); err != nil {
		return odxerrors.Encodingf("unmarshal json value: %v", err)
	}
	return nil
}

// AsArray returns the elements of an array value.
func (v Value) AsArray() ([]Value, error) {
	if v.kind != KindArray {
		return nil, odxerrors.TypeMismatchf("expected array, got %s", v.kind)
	}
	return v.arr, nil
}

// AsObject returns the attributes of an object value.
func (v Value) AsObject() (map[string]Value, error) {
	if v.kind != KindObject {
		return nil, odxerrors.TypeMismatchf("expected object, got %s", v.kind)
	}
	return v.obj, nil
}

// String renders a debug form. Not the wire encoding.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindString, KindClob:
		return v.s
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindTimestamp:
		return v.t.Format("2006-01-02 15:04:05.000000")
	case KindTimestampTZ:
		return v.t.Format(time.RFC3339Nano)
	case KindBytes, KindBlob:
		return fmt.Sprintf("0x%X", v.raw)
	case KindJSON:
		return string(v.raw)
	case KindArray:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case KindObject:
		return fmt.Sprintf("object(%d)", len(v.obj))
	}
	return "UNKNOWN"
}

// native returns the Go-native representation used for JSON output.
func (v Value) native() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindString, KindClob:
		return v.s
	case KindInt64:
		return v.i
	case KindFloat64:
		return v.f
	case KindBool:
		return v.b
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindTimestamp, KindTimestampTZ:
		return v.t
	case KindBytes, KindBlob:
		return v.raw
	case KindJSON:
		return json.RawMessage(v.raw)
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.native()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.native()
		}
		return out
	}
	return nil
}

// MarshalJSON encodes the value in its Go-native JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.native())
}

// Bind converts a Go-native value into a Value for use as a statement
// parameter. Supported inputs: nil, bool, string, signed and unsigned
// integers, float32/float64, time.Time, []byte, Value, []any and
// map[string]any (recursively).
func Bind(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return NewBool(x), nil
	case string:
		return NewString(x), nil
	case int:
		return NewInt64(int64(x)), nil
	case int8:
		return NewInt64(int64(x)), nil
	case int16:
		return NewInt64(int64(x)), nil
	case int32:
		return NewInt64(int64(x)), nil
	case int64:
		return NewInt64(x), nil
	case uint:
		return bindUint(uint64(x))
	case uint8:
		return NewInt64(int64(x)), nil
	case uint16:
		return NewInt64(int64(x)), nil
	case uint32:
		return NewInt64(int64(x)), nil
	case uint64:
		return bindUint(x)
	case float32:
		return NewFloat64(float64(x)), nil
	case float64:
		return NewFloat64(x), nil
	case time.Time:
		return NewTimestamp(x), nil
	case []byte:
		return NewBytes(x), nil
	case []any:
		vals := make([]Value, len(x))
		for i, e := range x {
			conv, err := Bind(e)
			if err != nil {
				return Null(), err
			}
			vals[i] = conv
		}
		return NewArray(vals), nil
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			conv, err := Bind(e)
			if err != nil {
				return Null(), err
			}
			m[k] = conv
		}
		return NewObject(m), nil
	}
	return Null(), odxerrors.InvalidBindf("unsupported bind type %T", v)
}

func bindUint(x uint64) (Value, error) {
	if x > 1<<63-1 {
		return Null(), odxerrors.InvalidBindf("uint value %d overflows int64", x)
	}
	return NewInt64(int64(x)), nil
}

// BindAll converts a slice of Go-native values. Positions in error
// messages are 1-based to match the :1 placeholder convention.
func BindAll(vs ...any) ([]Value, error) {
	out := make([]Value, len(vs))
	for i, v := range vs {
		conv, err := Bind(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i+1, err)
		}
		out[i] = conv
	}
	return out, nil
}
