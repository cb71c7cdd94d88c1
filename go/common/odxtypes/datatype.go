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

// DataType identifies a server-side column type.
type DataType int

const (
	TypeUnknown DataType = iota
	TypeVarchar2
	TypeNVarchar2
	TypeChar
	TypeNChar
	TypeNumber
	TypeBinaryFloat
	TypeBinaryDouble
	TypeDate
	TypeTimestamp
	TypeTimestampTZ
	TypeTimestampLTZ
	TypeIntervalYM
	TypeIntervalDS
	TypeRaw
	TypeLongRaw
	TypeRowID
	TypeURowID
	TypeClob
	TypeNClob
	TypeBlob
	TypeBFile
	TypeJSON
	TypeXMLType
	TypeObject
	TypeRefCursor
	TypeBoolean
)

var dataTypeNames = map[DataType]string{
	TypeUnknown:      "UNKNOWN",
	TypeVarchar2:     "VARCHAR2",
	TypeNVarchar2:    "NVARCHAR2",
	TypeChar:         "CHAR",
	TypeNChar:        "NCHAR",
	TypeNumber:       "NUMBER",
	TypeBinaryFloat:  "BINARY_FLOAT",
	TypeBinaryDouble: "BINARY_DOUBLE",
	TypeDate:         "DATE",
	TypeTimestamp:    "TIMESTAMP",
	TypeTimestampTZ:  "TIMESTAMP WITH TIME ZONE",
	TypeTimestampLTZ: "TIMESTAMP WITH LOCAL TIME ZONE",
	TypeIntervalYM:   "INTERVAL YEAR TO MONTH",
	TypeIntervalDS:   "INTERVAL DAY TO SECOND",
	TypeRaw:          "RAW",
	TypeLongRaw:      "LONG RAW",
	TypeRowID:        "ROWID",
	TypeURowID:       "UROWID",
	TypeClob:         "CLOB",
	TypeNClob:        "NCLOB",
	TypeBlob:         "BLOB",
	TypeBFile:        "BFILE",
	TypeJSON:         "JSON",
	TypeXMLType:      "XMLTYPE",
	TypeObject:       "OBJECT",
	TypeRefCursor:    "REF CURSOR",
	TypeBoolean:      "BOOLEAN",
}

func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return "UNKNOWN"
}

// ColumnInfo describes one column of a result set or statement.
type ColumnInfo struct {
	// Name is the column name as reported by the server, upper-cased.
	Name string

	// Type is the server-side data type.
	Type DataType

	// Size is the maximum byte width of the column.
	Size int

	// Precision and Scale apply to NUMBER columns; -1 means unspecified.
	Precision int
	Scale     int

	// Nullable reports whether the column admits NULL.
	Nullable bool
}
