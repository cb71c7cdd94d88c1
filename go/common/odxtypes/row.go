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
	"strconv"
	"strings"

	"github.com/oradex/oradex-go/go/odxerrors"
)

// Row is one row of a result set. Name lookup is case-insensitive; when a
// query yields duplicate column names, the first occurrence wins.
type Row struct {
	values []Value
	names  []string
	index  map[string]int
}

// NewRow builds a row from values and their column names. Extra names are
// ignored; missing names leave positions reachable by index only.
func NewRow(values []Value, names []string) *Row {
	index := make(map[string]int, len(names))
	for i, name := range names {
		if i >= len(values) {
			break
		}
		key := strings.ToUpper(name)
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}
	return &Row{values: values, names: names, index: index}
}

// Len reports the number of columns.
func (r *Row) Len() int {
	return len(r.values)
}

// Values returns the raw values in column order.
func (r *Row) Values() []Value {
	return r.values
}

// Get returns the value at a zero-based column index.
func (r *Row) Get(i int) (Value, error) {
	if i < 0 || i >= len(r.values) {
		return Null(), odxerrors.ColumnNotFound(strconv.Itoa(i))
	}
	return r.values[i], nil
}

// GetByName returns the value for a column name, case-insensitively.
func (r *Row) GetByName(name string) (Value, error) {
	i, ok := r.index[strings.ToUpper(name)]
	if !ok {
		return Null(), odxerrors.ColumnNotFound(name)
	}
	return r.values[i], nil
}

// GetString returns the string at index i.
func (r *Row) GetString(i int) (string, error) {
	v, err := r.Get(i)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// GetStringByName returns the string in the named column.
func (r *Row) GetStringByName(name string) (string, error) {
	v, err := r.GetByName(name)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// GetInt64 returns the integer at index i.
func (r *Row) GetInt64(i int) (int64, error) {
	v, err := r.Get(i)
	if err != nil {
		return 0, err
	}
	return v.AsInt64()
}

// GetInt64ByName returns the integer in the named column.
func (r *Row) GetInt64ByName(name string) (int64, error) {
	v, err := r.GetByName(name)
	if err != nil {
		return 0, err
	}
	return v.AsInt64()
}

// GetFloat64 returns the float at index i. Integers widen.
func (r *Row) GetFloat64(i int) (float64, error) {
	v, err := r.Get(i)
	if err != nil {
		return 0, err
	}
	return v.AsFloat64()
}

// GetFloat64ByName returns the float in the named column.
func (r *Row) GetFloat64ByName(name string) (float64, error) {
	v, err := r.GetByName(name)
	if err != nil {
		return 0, err
	}
	return v.AsFloat64()
}

// GetBool returns the boolean at index i.
func (r *Row) GetBool(i int) (bool, error) {
	v, err := r.Get(i)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

// GetBytes returns the byte slice at index i.
func (r *Row) GetBytes(i int) ([]byte, error) {
	v, err := r.Get(i)
	if err != nil {
		return nil, err
	}
	return v.AsBytes()
}

// IsNull reports whether the value at index i is NULL. Out-of-range
// indexes report an error.
func (r *Row) IsNull(i int) (bool, error) {
	v, err := r.Get(i)
	if err != nil {
		return false, err
	}
	return v.IsNull(), nil
}

// asMap renders the row as name keyed natives for JSON output. Unnamed
// trailing columns use their zero-based position as the key.
func (r *Row) asMap() map[string]any {
	out := make(map[string]any, len(r.values))
	for i, v := range r.values {
		key := strconv.Itoa(i)
		if i < len(r.names) {
			key = strings.ToUpper(r.names[i])
		}
		if _, dup := out[key]; dup {
			continue
		}
		out[key] = v.native()
	}
	return out
}
