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

package apply

import (
	"context"
	"testing"

	"github.com/cockroachdb/rdbsync/internal/sinktest"
	"github.com/cockroachdb/rdbsync/internal/target/batch"
	"github.com/cockroachdb/rdbsync/internal/target/coltypes"
	"github.com/cockroachdb/rdbsync/internal/target/zipper"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/cockroachdb/rdbsync/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	applier *Applier
	cache   *coltypes.Cache
	exec    *batch.Executor
	mapping *types.TableMapping
	pool    *types.TargetPool
}

func newFixture(t *testing.T, cfg *Config, audit *zipper.Config) *fixture {
	t.Helper()
	r := require.New(t)

	pool := sinktest.NewTarget(t)
	sinktest.Exec(t, pool,
		`CREATE TABLE orders (id INT PRIMARY KEY, status VARCHAR(8), name TEXT, price DECIMAL(10,2))`)

	var w *zipper.Writer
	if audit != nil {
		var err error
		w, err = zipper.New(audit, pool)
		r.NoError(err)
	}
	cache := coltypes.New()
	exec := batch.New(&batch.Config{StatementCacheSize: 8}, pool)
	t.Cleanup(func() { _ = exec.Close() })

	return &fixture{
		applier: New(cfg, pool.Info(), cache, w),
		cache:   cache,
		exec:    exec,
		mapping: testMapping(),
		pool:    pool,
	}
}

// counterValue reads the counter for the fixture's target table.
func (f *fixture) counterValue(t *testing.T, counter *prometheus.CounterVec) int {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, counter.WithLabelValues(metrics.TableValues(f.mapping.Target)...).Write(&metric))
	return int(metric.Counter.GetValue())
}

func (f *fixture) apply(ctx context.Context, ch *types.SingleRowChange) error {
	ch.Table = f.mapping.Table
	return f.applier.Apply(ctx, f.exec, &types.SyncItem{Mapping: f.mapping, Change: ch})
}

func TestApplyRoundTrip(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &Config{SkipDuplicates: true}, nil)

	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindInsert,
		Data: map[string]any{"id": "1", "status": "A", "nm": "widget"},
	}))
	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindUpdate,
		Data: map[string]any{"id": "1", "status": "B", "nm": "widget"},
		Old:  map[string]any{"status": "A"},
	}))
	r.NoError(f.exec.Commit(ctx))

	var status, name string
	r.NoError(f.pool.QueryRowContext(ctx,
		"SELECT status, name FROM orders WHERE id = 1").Scan(&status, &name))
	a.Equal("B", status)
	a.Equal("widget", name)

	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindDelete,
		Data: map[string]any{"id": 1, "status": "B"},
	}))
	r.NoError(f.exec.Commit(ctx))
	a.Equal(0, sinktest.CountRows(t, f.pool, "orders"))
}

func TestApplyPrimaryKeyChange(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &Config{SkipDuplicates: true}, nil)

	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindInsert,
		Data: map[string]any{"id": 1, "status": "A"},
	}))
	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind:      types.KindUpdate,
		Data:      map[string]any{"id": 2, "status": "A"},
		Old:       map[string]any{"id": 1},
		PKChanged: true,
	}))
	r.NoError(f.exec.Commit(ctx))

	var id int
	r.NoError(f.pool.QueryRowContext(ctx, "SELECT id FROM orders").Scan(&id))
	r.Equal(2, id)
}

func TestApplyDuplicates(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	insert := func() *types.SingleRowChange {
		return &types.SingleRowChange{
			Kind: types.KindInsert,
			Data: map[string]any{"id": 1, "status": "A"},
		}
	}

	t.Run("skipped", func(t *testing.T) {
		f := newFixture(t, &Config{SkipDuplicates: true}, nil)
		duplicates := f.counterValue(t, applyDuplicates)
		inserts := f.counterValue(t, applyInserts)
		r.NoError(f.apply(ctx, insert()))
		r.NoError(f.apply(ctx, insert()))
		r.NoError(f.exec.Commit(ctx))
		r.Equal(1, sinktest.CountRows(t, f.pool, "orders"))
		r.Equal(duplicates+1, f.counterValue(t, applyDuplicates))
		r.Equal(inserts+1, f.counterValue(t, applyInserts))
	})

	t.Run("reported", func(t *testing.T) {
		f := newFixture(t, &Config{SkipDuplicates: false}, nil)
		r.NoError(f.apply(ctx, insert()))
		err := f.apply(ctx, insert())
		r.Error(err)
		r.True(f.pool.IsDuplicate(err))
	})
}

func TestApplyNoOps(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &Config{SkipDuplicates: true}, nil)
	skipped := f.counterValue(t, applySkipped)

	r.NoError(f.apply(ctx, &types.SingleRowChange{Kind: types.KindInsert}))
	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindUpdate,
		Data: map[string]any{"id": 1, "status": "A"},
	}))
	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindUpdate,
		Data: map[string]any{"id": 1, "other": "A"},
		Old:  map[string]any{"other": "B"},
	}))
	r.NoError(f.apply(ctx, &types.SingleRowChange{Kind: types.KindDelete}))
	r.NoError(f.apply(ctx, &types.SingleRowChange{Kind: types.KindDDL}))
	r.NoError(f.exec.Commit(ctx))
	r.Equal(0, sinktest.CountRows(t, f.pool, "orders"))
	// DDL is ignored without being counted.
	r.Equal(skipped+4, f.counterValue(t, applySkipped))
}

func TestApplyTruncate(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &Config{SkipDuplicates: true}, nil)

	for i := 1; i <= 3; i++ {
		r.NoError(f.apply(ctx, &types.SingleRowChange{
			Kind: types.KindInsert,
			Data: map[string]any{"id": i},
		}))
	}
	r.NoError(f.apply(ctx, &types.SingleRowChange{Kind: types.KindTruncate}))
	r.NoError(f.exec.Commit(ctx))
	r.Equal(0, sinktest.CountRows(t, f.pool, "orders"))
}

func TestApplyErrors(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &Config{SkipDuplicates: true}, nil)

	f.mapping.Columns = append(f.mapping.Columns, types.ColumnMapping{Target: "missing"})
	err := f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindInsert,
		Data: map[string]any{"id": 1},
	})
	r.ErrorIs(err, ErrUnmappedColumn)

	f.mapping = testMapping()
	f.mapping.Target.Name = "absent"
	err = f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindInsert,
		Data: map[string]any{"id": 1},
	})
	r.Error(err)
}

func TestApplyForget(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &Config{SkipDuplicates: true}, nil)

	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindInsert,
		Data: map[string]any{"id": 1},
	}))
	r.NoError(f.exec.Commit(ctx))
	a.Equal(1, f.cache.Len())

	f.applier.Forget(f.mapping.SchemaKey(), f.mapping.Table)
	a.Equal(0, f.cache.Len())

	// A newly-added column is visible after the cache is invalidated.
	sinktest.Exec(t, f.pool, "ALTER TABLE orders ADD COLUMN note TEXT")
	f.mapping.Columns = append(f.mapping.Columns, types.ColumnMapping{Target: "note"})
	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindInsert,
		Data: map[string]any{"id": 2, "note": "hello"},
	}))
	r.NoError(f.exec.Commit(ctx))
	a.Equal(2, sinktest.CountRows(t, f.pool, "orders"))
}

func TestApplyAudit(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &Config{SkipDuplicates: true}, &zipper.Config{Tables: []string{"orders"}})

	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindInsert,
		Data: map[string]any{"id": 1, "status": "A"},
	}))
	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindUpdate,
		Data: map[string]any{"id": 1, "status": "B"},
		Old:  map[string]any{"status": "A"},
	}))
	r.NoError(f.apply(ctx, &types.SingleRowChange{
		Kind: types.KindDelete,
		Data: map[string]any{"id": 1, "status": "B"},
	}))
	r.NoError(f.exec.Commit(ctx))

	a.Equal(0, sinktest.CountRows(t, f.pool, "orders"))
	a.Equal(2, sinktest.CountRows(t, f.pool, "orders_zipper"))
}
