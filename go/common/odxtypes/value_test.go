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

package odxtypes

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oradex/oradex-go/go/odxerrors"
)

func TestBindConversions(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name     string
		in       any
		wantKind Kind
	}{
		{"nil", nil, KindNull},
		{"bool", true, KindBool},
		{"string", "hello", KindString},
		{"int", 42, KindInt64},
		{"int8", int8(-7), KindInt64},
		{"int64", int64(1 << 40), KindInt64},
		{"uint32", uint32(7), KindInt64},
		{"float32", float32(1.5), KindFloat64},
		{"float64", 2.75, KindFloat64},
		{"time", ts, KindTimestamp},
		{"bytes", []byte{0xDE, 0xAD}, KindBytes},
		{"value passthrough", NewClob("lob"), KindClob},
		{"slice", []any{1, "two"}, KindArray},
		{"map", map[string]any{"k": 1}, KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Bind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, v.Kind())
		})
	}
}

func TestBindRejectsUnsupported(t *testing.T) {
	type opaque struct{ x int }

	_, err := Bind(opaque{1})
	require.Error(t, err)
	assert.Equal(t, odxerrors.ClassInvalidBind, odxerrors.ClassOf(err))

	_, err = Bind(uint64(math.MaxUint64))
	require.Error(t, err)
	assert.Equal(t, odxerrors.ClassInvalidBind, odxerrors.ClassOf(err))
}

func TestBindAllReportsPosition(t *testing.T) {
	_, err := BindAll("ok", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameter 2")
	assert.Equal(t, odxerrors.ClassInvalidBind, odxerrors.ClassOf(err))
}

func TestValueAccessors(t *testing.T) {
	t.Run("string and clob", func(t *testing.T) {
		for _, v := range []Value{NewString("abc"), NewClob("abc")} {
			s, err := v.AsString()
			require.NoError(t, err)
			assert.Equal(t, "abc", s)
		}
	})

	t.Run("integer widens to float", func(t *testing.T) {
		f, err := NewInt64(3).AsFloat64()
		require.NoError(t, err)
		assert.Equal(t, 3.0, f)
	})

	t.Run("float does not narrow to integer", func(t *testing.T) {
		_, err := NewFloat64(3.5).AsInt64()
		require.Error(t, err)
		assert.Equal(t, odxerrors.ClassTypeMismatch, odxerrors.ClassOf(err))
	})

	t.Run("bytes and blob", func(t *testing.T) {
		for _, v := range []Value{NewBytes([]byte{1}), NewBlob([]byte{1})} {
			b, err := v.AsBytes()
			require.NoError(t, err)
			assert.Equal(t, []byte{1}, b)
		}
	})

	t.Run("time variants", func(t *testing.T) {
		ts := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
		for _, v := range []Value{NewDate(ts), NewTimestamp(ts), NewTimestampTZ(ts)} {
			got, err := v.AsTime()
			require.NoError(t, err)
			assert.True(t, got.Equal(ts))
		}
	})

	t.Run("null is null", func(t *testing.T) {
		assert.True(t, Null().IsNull())
		assert.True(t, Value{}.IsNull())
		_, err := Null().AsString()
		assert.Equal(t, odxerrors.ClassTypeMismatch, odxerrors.ClassOf(err))
	})
}

func TestJSONValueRoundTrip(t *testing.T) {
	v, err := MarshalJSONValue(map[string]any{"depth": 3, "tags": []string{"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, KindJSON, v.Kind())

	var decoded struct {
		Depth int      `json:"depth"`
		Tags  []string `json:"tags"`
	}
	require.NoError(t, v.AsJSON(&decoded))
	assert.Equal(t, 3, decoded.Depth)
	assert.Equal(t, []string{"a", "b"}, decoded.Tags)

	err = NewString("nope").AsJSON(&decoded)
	assert.Equal(t, odxerrors.ClassTypeMismatch, odxerrors.ClassOf(err))
}

func TestValueDebugString(t *testing.T) {
	assert.Equal(t, "NULL", Null().String())
	assert.Equal(t, "42", NewInt64(42).String())
	assert.Equal(t, "true", NewBool(true).String())
	assert.Equal(t, "0xDEAD", NewBytes([]byte{0xDE, 0xAD}).String())
	assert.Equal(t, "2025-03-14", NewDate(time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)).String())
}
