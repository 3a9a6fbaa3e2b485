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

import (
	"strconv"
	"strings"
)

// Product is an enum type to make it easy to switch on the underlying
// database.
type Product int

// The target products that we know how to write to.
const (
	ProductUnknown Product = iota
	ProductMySQL
	ProductOracle
	ProductPostgreSQL
	ProductSQLite
)

var productNames = [...]string{
	ProductUnknown:    "Unknown",
	ProductMySQL:      "MySQL",
	ProductOracle:     "Oracle",
	ProductPostgreSQL: "PostgreSQL",
	ProductSQLite:     "SQLite",
}

func (p Product) String() string {
	if p < 0 || int(p) >= len(productNames) {
		return productNames[ProductUnknown]
	}
	return productNames[p]
}

// Quote returns the identifier in the product's quoting style. Any
// quotes already present in the name are removed.
func (p Product) Quote(ident string) string {
	ident = CleanColumn(ident)
	switch p {
	case ProductMySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}

// QuoteTable returns the possibly-qualified table name.
func (p Product) QuoteTable(tbl Table) string {
	if tbl.Database == "" {
		return p.Quote(tbl.Name)
	}
	return p.Quote(tbl.Database) + "." + p.Quote(tbl.Name)
}

// Placeholder returns the bind marker for the n-th (one-based)
// parameter of a statement.
func (p Product) Placeholder(n int) string {
	switch p {
	case ProductPostgreSQL:
		return "$" + strconv.Itoa(n)
	case ProductOracle:
		return ":" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// StatementAbortsTx returns true if a failed statement leaves the
// enclosing transaction unusable until it is rolled back to a
// savepoint.
func (p Product) StatementAbortsTx() bool {
	return p == ProductPostgreSQL
}

// TransactionalDDL returns true if DDL statements participate in the
// enclosing transaction, instead of committing it implicitly.
func (p Product) TransactionalDDL() bool {
	return p == ProductPostgreSQL || p == ProductSQLite
}

// TruncateStmt returns a statement that removes every row from the
// table.
func (p Product) TruncateStmt(tbl Table) string {
	if p == ProductSQLite {
		return "DELETE FROM " + p.QuoteTable(tbl)
	}
	return "TRUNCATE TABLE " + p.QuoteTable(tbl)
}
