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

import "strings"

// Kind classifies a statement by its leading keyword. The driver does not
// parse SQL; classification drives dispatch only.
type Kind int

const (
	KindUnknown Kind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	KindPLSQL
	KindDDL
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	KindSelect:  "select",
	KindInsert:  "insert",
	KindUpdate:  "update",
	KindDelete:  "delete",
	KindPLSQL:   "plsql",
	KindDDL:     "ddl",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsDML reports whether the kind modifies rows.
func (k Kind) IsDML() bool {
	switch k {
	case KindInsert, KindUpdate, KindDelete:
		return true
	}
	return false
}

// DetectKind classifies sql by case-insensitive prefix matching on the
// whitespace-trimmed text.
func DetectKind(sql string) Kind {
	trimmed := strings.ToUpper(strings.TrimSpace(sql))

	switch {
	case strings.HasPrefix(trimmed, "SELECT"), strings.HasPrefix(trimmed, "WITH"):
		return KindSelect
	case strings.HasPrefix(trimmed, "INSERT"):
		return KindInsert
	case strings.HasPrefix(trimmed, "UPDATE"):
		return KindUpdate
	case strings.HasPrefix(trimmed, "DELETE"):
		return KindDelete
	case strings.HasPrefix(trimmed, "BEGIN"), strings.HasPrefix(trimmed, "DECLARE"):
		return KindPLSQL
	case strings.HasPrefix(trimmed, "CREATE"), strings.HasPrefix(trimmed, "ALTER"),
		strings.HasPrefix(trimmed, "DROP"):
		return KindDDL
	}
	return KindUnknown
}
