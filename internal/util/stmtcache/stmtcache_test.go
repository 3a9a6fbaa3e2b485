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

package stmtcache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/rdbsync/internal/util/stdpool"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, counter prometheus.Counter) int {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, counter.Write(&metric))
	return int(metric.Counter.GetValue())
}

func TestCache(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	pool, cancel, err := stdpool.OpenTarget(ctx,
		"sqlite://"+filepath.Join(t.TempDir(), "stmt.db"))
	r.NoError(err)
	defer cancel()

	_, err = pool.ExecContext(ctx, "CREATE TABLE t (id INT PRIMARY KEY)")
	r.NoError(err)

	conn, err := pool.Conn(ctx)
	r.NoError(err)
	defer func() { _ = conn.Close() }()

	cache := New[string](conn, 2)
	drops := counterValue(t, stmtCacheDrops)
	hits := counterValue(t, stmtCacheHits)
	misses := counterValue(t, stmtCacheMisses)
	releases := counterValue(t, stmtCacheReleases)
	gens := 0
	gen := func(q string) func() (string, error) {
		return func() (string, error) {
			gens++
			return q, nil
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	r.NoError(err)
	for i := 0; i < 3; i++ {
		stmt, err := cache.Prepare(ctx, tx, "insert", gen("INSERT INTO t VALUES (?)"))
		r.NoError(err)
		_, err = stmt.ExecContext(ctx, i)
		r.NoError(err)
	}
	r.NoError(tx.Commit())
	r.Equal(1, gens)
	r.Equal(1, cache.Len())

	// Exceed the cache size to force an eviction.
	for _, q := range []string{"SELECT 1", "SELECT 2", "SELECT 3"} {
		_, err := cache.Prepare(ctx, conn, q, gen(q))
		r.NoError(err)
	}
	r.Equal(4, gens)
	r.Equal(2, cache.Len())

	cache.Clear()
	r.Equal(0, cache.Len())

	r.Equal(hits+2, counterValue(t, stmtCacheHits))
	r.Equal(misses+4, counterValue(t, stmtCacheMisses))
	r.Equal(releases+4, counterValue(t, stmtCacheReleases))
	r.Equal(drops, counterValue(t, stmtCacheDrops))

	var count int
	r.NoError(pool.QueryRowContext(ctx, "SELECT count(*) FROM t").Scan(&count))
	r.Equal(3, count)
}
