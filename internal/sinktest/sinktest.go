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

// Package sinktest contains helpers for tests that write to a target
// database.
package sinktest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/cockroachdb/rdbsync/internal/util/stdpool"
	"github.com/stretchr/testify/require"
)

// NewTarget opens a file-backed SQLite database in a test-scoped
// temporary directory. The pool is closed when the test completes.
func NewTarget(t testing.TB) *types.TargetPool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.db")
	conn := fmt.Sprintf(
		"sqlite://%s?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL", path)
	pool, cancel, err := stdpool.OpenTarget(context.Background(), conn, stdpool.WithPoolSize(16))
	require.NoError(t, err)
	t.Cleanup(cancel)
	return pool
}

// Exec runs each statement, failing the test on error.
func Exec(t testing.TB, db types.Querier, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
}

// CountRows returns the number of rows in the table.
func CountRows(t testing.TB, db types.Querier, table string) int {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRowContext(context.Background(),
		fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&count))
	return count
}

// Mappings is a trivial implementation of [types.Mappings].
type Mappings map[string][]*types.TableMapping

var _ types.Mappings = Mappings(nil)

// Lookup implements [types.Mappings].
func (m Mappings) Lookup(key string) []*types.TableMapping { return m[key] }

// Add registers the mappings under their keys.
func (m Mappings) Add(env *types.Env, mappings ...*types.TableMapping) Mappings {
	for _, mapping := range mappings {
		key := mapping.Key(env)
		m[key] = append(m[key], mapping)
	}
	return m
}

// CountingQuerier records the number of queries made through it.
type CountingQuerier struct {
	types.Querier
	queries atomic.Int64
}

var _ types.Querier = (*CountingQuerier)(nil)

// QueryContext implements [types.Querier].
func (q *CountingQuerier) QueryContext(
	ctx context.Context, query string, args ...any,
) (*sql.Rows, error) {
	q.queries.Add(1)
	return q.Querier.QueryContext(ctx, query, args...)
}

// Queries returns the number of calls to QueryContext.
func (q *CountingQuerier) Queries() int {
	return int(q.queries.Load())
}
