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

package coltypes

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/rdbsync/internal/sinktest"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()

	pool := sinktest.NewTarget(t)
	sinktest.Exec(t, pool, `CREATE TABLE widgets (
id INTEGER PRIMARY KEY,
Name VARCHAR(32),
price DECIMAL(10,2),
data BLOB,
created DATETIME)`)

	q := &sinktest.CountingQuerier{Querier: pool}
	cache := New()
	key := types.SchemaKey{Destination: "example", Table: "widgets"}
	tbl := types.Table{Name: "widgets"}

	cols, err := cache.Resolve(ctx, q, key, tbl, pool.Product)
	r.NoError(err)
	r.Len(cols, 5)
	a.Equal(types.TypeInteger, cols["id"].Kind)
	a.Equal(types.TypeString, cols["name"].Kind)
	a.Equal(types.TypeDecimal, cols["price"].Kind)
	a.Equal(types.TypeBytes, cols["data"].Kind)
	a.Equal(types.TypeTime, cols["created"].Kind)
	a.Equal(1, q.Queries())

	// A second resolution observes the published value.
	again, err := cache.Resolve(ctx, q, key, tbl, pool.Product)
	r.NoError(err)
	a.Equal(cols, again)
	a.Equal(1, q.Queries())
	a.Equal(1, cache.Len())
}

func TestResolveConcurrent(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	pool := sinktest.NewTarget(t)
	sinktest.Exec(t, pool, "CREATE TABLE t (id INT PRIMARY KEY, v TEXT)")

	q := &sinktest.CountingQuerier{Querier: pool}
	cache := New()
	key := types.SchemaKey{Destination: "example", Table: "t"}

	const count = 16
	var wg sync.WaitGroup
	errs := make([]error, count)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.Resolve(ctx, q, key, types.Table{Name: "t"}, pool.Product)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		r.NoError(err)
	}
	r.Equal(1, q.Queries())
}

func TestInvalidate(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()

	pool := sinktest.NewTarget(t)
	sinktest.Exec(t, pool, "CREATE TABLE t (id INT PRIMARY KEY)")

	q := &sinktest.CountingQuerier{Querier: pool}
	cache := New()
	key := types.SchemaKey{Destination: "example", Table: "t"}
	tbl := types.Table{Name: "t"}

	cols, err := cache.Resolve(ctx, q, key, tbl, pool.Product)
	r.NoError(err)
	a.Len(cols, 1)

	sinktest.Exec(t, pool, "ALTER TABLE t ADD COLUMN extra TEXT")

	// Stale until invalidated.
	cols, err = cache.Resolve(ctx, q, key, tbl, pool.Product)
	r.NoError(err)
	a.Len(cols, 1)
	a.Equal(1, q.Queries())

	cache.Invalidate(key)
	a.Equal(0, cache.Len())

	cols, err = cache.Resolve(ctx, q, key, tbl, pool.Product)
	r.NoError(err)
	a.Len(cols, 2)
	a.Equal(types.TypeString, cols["extra"].Kind)
	a.Equal(2, q.Queries())

	// Invalidating an unknown key is a no-op.
	cache.Invalidate(types.SchemaKey{Table: "unknown"})
	a.Equal(1, cache.Len())
}

func TestResolveMissingTable(t *testing.T) {
	a := assert.New(t)
	pool := sinktest.NewTarget(t)
	cache := New()

	_, err := cache.Resolve(context.Background(), pool,
		types.SchemaKey{Table: "missing"}, types.Table{Name: "missing"}, pool.Product)
	a.ErrorContains(err, "could not introspect")
	a.Equal(0, cache.Len())
}
