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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductDialect(t *testing.T) {
	tbl := Table{Database: "db", Name: "tbl"}
	tcs := []struct {
		product     Product
		quoted      string
		placeholder string
		truncate    string
		txDDL       bool
	}{
		{ProductMySQL, "`db`.`tbl`", "?", "TRUNCATE TABLE `db`.`tbl`", false},
		{ProductPostgreSQL, `"db"."tbl"`, "$3", `TRUNCATE TABLE "db"."tbl"`, true},
		{ProductOracle, `"db"."tbl"`, ":3", `TRUNCATE TABLE "db"."tbl"`, false},
		{ProductSQLite, `"db"."tbl"`, "?", `DELETE FROM "db"."tbl"`, true},
	}
	for _, tc := range tcs {
		t.Run(tc.product.String(), func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.quoted, tc.product.QuoteTable(tbl))
			a.Equal(tc.placeholder, tc.product.Placeholder(3))
			a.Equal(tc.truncate, tc.product.TruncateStmt(tbl))
			a.Equal(tc.txDDL, tc.product.TransactionalDDL())
		})
	}
	assert.Equal(t, "`a``b`", ProductMySQL.Quote("a`b"))
	assert.Equal(t, `"id"`, ProductPostgreSQL.Quote("`id`"))
	assert.Equal(t, `"tbl"`, ProductSQLite.QuoteTable(Table{Name: "tbl"}))
	assert.Equal(t, "Unknown", Product(42).String())
	assert.True(t, ProductPostgreSQL.StatementAbortsTx())
	assert.False(t, ProductMySQL.StatementAbortsTx())
}
