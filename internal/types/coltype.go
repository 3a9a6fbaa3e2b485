// Copyright 2026 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package types

import "strings"

// TypeKind is a coarse classification of a target column's type that
// drives value coercion.
type TypeKind int

// Recognized type kinds.
const (
	TypeUnknown TypeKind = iota
	TypeInteger
	TypeFloat
	TypeDecimal
	TypeBool
	TypeString
	TypeBytes
	TypeTime
	TypeJSON
)

// ColumnType describes a single target column.
type ColumnType struct {
	Name string   // The database-native type name, e.g. VARCHAR.
	Kind TypeKind // The coarse classification of Name.
}

// Columns maps a lower-cased column name to its type. Instances are
// shared and must not be modified once published.
type Columns map[string]ColumnType

// Get looks up the column, ignoring quotes and case.
func (c Columns) Get(name string) (ColumnType, bool) {
	ret, ok := c[strings.ToLower(CleanColumn(name))]
	return ret, ok
}

// ClassifyType maps a database-native type name onto a TypeKind. The
// classification is deliberately loose, since drivers disagree on the
// spelling of type names.
func ClassifyType(dbName string) TypeKind {
	n := strings.ToUpper(strings.TrimSpace(dbName))
	// Strip length or precision modifiers.
	if idx := strings.IndexByte(n, '('); idx >= 0 {
		n = n[:idx]
	}
	switch {
	case n == "":
		return TypeUnknown
	case strings.Contains(n, "JSON"):
		return TypeJSON
	case strings.Contains(n, "INTERVAL"):
		return TypeString
	case strings.Contains(n, "POINT"), strings.Contains(n, "GEOMETRY"):
		return TypeBytes
	case strings.Contains(n, "BOOL"):
		return TypeBool
	// MySQL BIT(n) holds up to 64 bits, not a truth value.
	case strings.Contains(n, "INT"), n == "SERIAL", n == "BIGSERIAL", n == "BIT":
		return TypeInteger
	case strings.Contains(n, "DEC"), strings.Contains(n, "NUMERIC"),
		strings.Contains(n, "NUMBER"), strings.Contains(n, "MONEY"):
		return TypeDecimal
	case strings.Contains(n, "FLOAT"), strings.Contains(n, "DOUBLE"),
		strings.Contains(n, "REAL"):
		return TypeFloat
	case strings.Contains(n, "DATE"), strings.Contains(n, "TIME"):
		return TypeTime
	case strings.Contains(n, "BLOB"), strings.Contains(n, "BINARY"),
		n == "BYTEA", strings.Contains(n, "RAW"):
		return TypeBytes
	case strings.Contains(n, "CHAR"), strings.Contains(n, "TEXT"),
		strings.Contains(n, "CLOB"), n == "ENUM", n == "SET", n == "UUID":
		return TypeString
	default:
		return TypeUnknown
	}
}
