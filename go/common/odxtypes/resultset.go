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
	"github.com/goccy/go-json"
)

// ResultSet is a materialized query result: the wire interaction already
// happened, so iteration never touches the transport. It carries column
// metadata, the rows of a query, and the affected-row count of a DML
// statement.
type ResultSet struct {
	columns  []ColumnInfo
	rows     []*Row
	affected int64
	pos      int
}

// NewResultSet builds a query result.
func NewResultSet(columns []ColumnInfo, rows []*Row) *ResultSet {
	return &ResultSet{columns: columns, rows: rows}
}

// NewDMLResult builds a result holding only an affected-row count.
func NewDMLResult(affected int64) *ResultSet {
	return &ResultSet{affected: affected}
}

// Columns returns the column metadata, in select-list order.
func (rs *ResultSet) Columns() []ColumnInfo {
	return rs.columns
}

// Rows returns all rows for index-based random access.
func (rs *ResultSet) Rows() []*Row {
	return rs.rows
}

// Len reports the number of rows.
func (rs *ResultSet) Len() int {
	return len(rs.rows)
}

// RowsAffected reports the affected-row count of a DML statement, zero for
// queries.
func (rs *ResultSet) RowsAffected() int64 {
	return rs.affected
}

// Next advances the forward-only cursor. It returns false once all rows
// have been visited; Reset rewinds.
func (rs *ResultSet) Next() (*Row, bool) {
	if rs.pos >= len(rs.rows) {
		return nil, false
	}
	row := rs.rows[rs.pos]
	rs.pos++
	return row, true
}

// Reset rewinds the cursor to the first row.
func (rs *ResultSet) Reset() {
	rs.pos = 0
}

// Collect visits every row in order, independent of the cursor. The first
// error stops the walk and is returned.
func (rs *ResultSet) Collect(fn func(*Row) error) error {
	for _, row := range rs.rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON renders the rows as an array of name-keyed objects.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	out := make([]map[string]any, len(rs.rows))
	for i, row := range rs.rows {
		out[i] = row.asMap()
	}
	return json.Marshal(out)
}
