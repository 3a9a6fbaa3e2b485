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

package fan

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/rdbsync/internal/sinktest"
	"github.com/cockroachdb/rdbsync/internal/target/apply"
	"github.com/cockroachdb/rdbsync/internal/target/batch"
	"github.com/cockroachdb/rdbsync/internal/target/coltypes"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tcpEnv = &types.Env{Mode: "tcp"}

// fakeExecutor records the lifecycle calls made by a partition.
type fakeExecutor struct {
	mu        sync.Mutex
	applied   []any
	closes    int
	commits   int
	rollbacks int
}

var _ types.Executor = (*fakeExecutor)(nil)

func (e *fakeExecutor) Exec(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("unexpected")
}

func (e *fakeExecutor) Querier(context.Context) (types.Querier, error) {
	return nil, errors.New("unexpected")
}

func (e *fakeExecutor) Commit(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commits++
	return nil
}

func (e *fakeExecutor) OnCommit(func()) {}

func (e *fakeExecutor) Rollback(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rollbacks++
	return nil
}

func (e *fakeExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closes++
	return nil
}

// fakeApplier appends each change's id to the executor and fails any
// change whose data contains a "fail" column.
type fakeApplier struct {
	mu     sync.Mutex
	forgot []types.SchemaKey
}

var _ types.Applier = (*fakeApplier)(nil)

func (a *fakeApplier) Apply(_ context.Context, exec types.Executor, item *types.SyncItem) error {
	if _, fail := item.Change.Data["fail"]; fail {
		return errors.Errorf("failing %v", item.Change.Data["id"])
	}
	e := exec.(*fakeExecutor)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applied = append(e.applied, item.Change.Data["id"])
	return nil
}

func (a *fakeApplier) Forget(key types.SchemaKey, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.forgot = append(a.forgot, key)
}

func newFakeFan(t *testing.T, partitions int) (*Fan, *fakeApplier, []*fakeExecutor) {
	t.Helper()
	app := &fakeApplier{}
	execs := make([]*fakeExecutor, partitions)
	f, err := New(&Config{Partitions: partitions}, func(idx int) types.Executor {
		execs[idx] = &fakeExecutor{}
		return execs[idx]
	}, app)
	require.NoError(t, err)
	t.Cleanup(f.Stop)
	return f, app, execs
}

// keyFor finds an id that routes to the requested partition.
func keyFor(t *testing.T, m *types.TableMapping, partitions, want int) int {
	t.Helper()
	for i := 0; i < 10_000; i++ {
		if Route(m, map[string]any{"id": i}, nil, partitions) == want {
			return i
		}
	}
	t.Fatalf("no key routes to partition %d", want)
	return 0
}

func insertEvent(m *types.TableMapping, rows ...map[string]any) *types.ChangeEvent {
	return &types.ChangeEvent{
		Kind:        types.KindInsert,
		Destination: m.Destination,
		Database:    m.Database,
		Table:       m.Table,
		Data:        rows,
	}
}

func TestSyncOrdering(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	f, _, execs := newFakeFan(t, 3)
	m := concurrentMapping()
	m.Concurrent = false
	mappings := sinktest.Mappings{}.Add(tcpEnv, m)

	var events []*types.ChangeEvent
	var expected []any
	for i := 0; i < 20; i++ {
		events = append(events, insertEvent(m, map[string]any{"id": i}))
		expected = append(expected, i)
	}
	r.NoError(f.Sync(context.Background(), events, mappings, tcpEnv))

	a.Equal(expected, execs[0].applied)
	a.Equal(1, execs[0].commits)
	for _, e := range execs {
		a.Equal(1, e.closes)
	}
	a.Empty(execs[1].applied)
	a.Empty(execs[2].applied)
	a.Zero(execs[1].commits)
}

func TestSyncPartialCommit(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	f, _, execs := newFakeFan(t, 2)
	m := concurrentMapping()
	mappings := sinktest.Mappings{}.Add(tcpEnv, m)

	ok := keyFor(t, m, 2, 0)
	bad := keyFor(t, m, 2, 1)

	err := f.Sync(context.Background(), []*types.ChangeEvent{
		insertEvent(m, map[string]any{"id": ok}, map[string]any{"id": bad, "fail": true}),
	}, mappings, tcpEnv)
	r.Error(err)
	a.Contains(err.Error(), "partition 1")
	a.Contains(err.Error(), fmt.Sprintf("failing %d", bad))

	// The healthy partition stays committed.
	a.Equal([]any{ok}, execs[0].applied)
	a.Equal(1, execs[0].commits)
	a.Zero(execs[0].rollbacks)

	a.Zero(execs[1].commits)
	a.Equal(1, execs[1].rollbacks)

	for _, e := range execs {
		a.Equal(1, e.closes)
	}
	for _, batch := range f.drain() {
		a.Empty(batch)
	}
}

func TestSyncFirstErrorInPartitionOrder(t *testing.T) {
	r := require.New(t)

	f, _, _ := newFakeFan(t, 2)
	m := concurrentMapping()
	mappings := sinktest.Mappings{}.Add(tcpEnv, m)

	first := keyFor(t, m, 2, 0)
	second := keyFor(t, m, 2, 1)

	err := f.Sync(context.Background(), []*types.ChangeEvent{
		insertEvent(m, map[string]any{"id": second, "fail": true}),
		insertEvent(m, map[string]any{"id": first, "fail": true}),
	}, mappings, tcpEnv)
	r.Error(err)
	r.Contains(err.Error(), "partition 0")
	r.Contains(err.Error(), fmt.Sprintf("failing %d", first))
}

func TestSyncNothingToApply(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	f, app, execs := newFakeFan(t, 2)
	m := concurrentMapping()
	m.Destination = "example"
	mappings := sinktest.Mappings{}.Add(tcpEnv, m)

	r.NoError(f.Sync(context.Background(), []*types.ChangeEvent{
		// No mapping.
		{Kind: types.KindInsert, Destination: "example", Database: "src", Table: "other",
			Data: []map[string]any{{"id": 1}}},
		// A schema change.
		{Kind: types.KindDDL, Destination: "example", Database: "src", Table: "orders",
			SQL: "ALTER TABLE orders ADD COLUMN note TEXT"},
	}, mappings, tcpEnv))

	for _, e := range execs {
		a.Empty(e.applied)
		a.Zero(e.commits)
		a.Equal(1, e.closes)
	}
	a.Equal([]types.SchemaKey{
		{Destination: "example", Table: "orders"},
		{Destination: "example", Database: "src", Table: "orders"},
	}, app.forgot)
}

func TestSyncFunc(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	f, _, execs := newFakeFan(t, 2)
	m := concurrentMapping()
	m.Concurrent = false

	// Nothing is applied unless the callback reports that a flush is
	// required.
	r.NoError(f.SyncFunc(context.Background(), []*types.ChangeEvent{{}},
		func(_ context.Context, _ *types.ChangeEvent) (bool, error) {
			f.Enqueue(m, &types.SingleRowChange{Kind: types.KindInsert, Data: map[string]any{"id": 1}})
			return false, nil
		}))
	a.Empty(execs[0].applied)

	r.NoError(f.SyncFunc(context.Background(), []*types.ChangeEvent{{}, {}},
		func(_ context.Context, _ *types.ChangeEvent) (bool, error) {
			f.Enqueue(m, &types.SingleRowChange{Kind: types.KindInsert, Data: map[string]any{"id": 2}})
			return true, nil
		}))
	a.Equal([]any{2, 2}, execs[0].applied)

	err := f.SyncFunc(context.Background(), []*types.ChangeEvent{{}},
		func(_ context.Context, _ *types.ChangeEvent) (bool, error) {
			f.Enqueue(m, &types.SingleRowChange{Kind: types.KindInsert, Data: map[string]any{"id": 3}})
			return false, errors.New("boom")
		})
	r.ErrorContains(err, "boom")
	a.Equal([]any{2, 2}, execs[0].applied)
	a.Equal(3, execs[0].closes)
}

func TestStop(t *testing.T) {
	r := require.New(t)

	f, _, _ := newFakeFan(t, 2)
	f.Stop()
	f.Stop()
	err := f.Sync(context.Background(), nil, sinktest.Mappings{}, tcpEnv)
	r.ErrorContains(err, "stopped")

	_, err = New(&Config{}, nil, nil)
	r.Error(err)
}

// newTargetFan applies changes to a SQLite target.
func newTargetFan(
	t *testing.T, partitions int,
) (*Fan, *coltypes.Cache, *types.TargetPool) {
	t.Helper()
	pool := sinktest.NewTarget(t)
	sinktest.Exec(t, pool,
		`CREATE TABLE orders (id INT NOT NULL, region TEXT NOT NULL, status TEXT, PRIMARY KEY (id, region))`)

	cache := coltypes.New()
	applier := apply.New(&apply.Config{SkipDuplicates: true}, pool.Info(), cache, nil)
	f, err := New(&Config{Partitions: partitions}, func(int) types.Executor {
		return batch.New(&batch.Config{StatementCacheSize: 16}, pool)
	}, applier)
	require.NoError(t, err)
	t.Cleanup(f.Stop)
	return f, cache, pool
}

func TestSyncTarget(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()

	f, _, pool := newTargetFan(t, 4)
	m := concurrentMapping()
	m.MapAll = true
	mappings := sinktest.Mappings{}.Add(tcpEnv, m)

	const count = 100
	rows := make([]map[string]any, count)
	for i := range rows {
		rows[i] = map[string]any{"id": i, "rgn": "eu", "status": "A"}
	}
	m.Columns = []types.ColumnMapping{{Target: "region", Source: "rgn"}}

	r.NoError(f.Sync(ctx, []*types.ChangeEvent{insertEvent(m, rows...)}, mappings, tcpEnv))
	a.Equal(count, sinktest.CountRows(t, pool, "orders"))

	// Redelivery of the same batch, followed by updates and deletes.
	updates := make([]map[string]any, count)
	olds := make([]map[string]any, count)
	for i := range updates {
		updates[i] = map[string]any{"id": i, "rgn": "eu", "status": "B"}
		olds[i] = map[string]any{"status": "A"}
	}
	r.NoError(f.Sync(ctx, []*types.ChangeEvent{
		insertEvent(m, rows...),
		{
			Kind:     types.KindUpdate,
			Database: m.Database,
			Table:    m.Table,
			Data:     updates,
			Old:      olds,
		},
		{
			Kind:     types.KindDelete,
			Database: m.Database,
			Table:    m.Table,
			Data:     updates[:count/2],
		},
	}, mappings, tcpEnv))

	a.Equal(count/2, sinktest.CountRows(t, pool, "orders"))
	var updated int
	r.NoError(pool.QueryRowContext(ctx,
		"SELECT count(*) FROM orders WHERE status = 'B'").Scan(&updated))
	a.Equal(count/2, updated)
}

func TestSyncSchemaChange(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()

	f, cache, pool := newTargetFan(t, 2)
	m := concurrentMapping()
	m.Columns = []types.ColumnMapping{{Target: "id"}, {Target: "region", Source: "rgn"}}
	mappings := sinktest.Mappings{}.Add(tcpEnv, m)

	r.NoError(f.Sync(ctx, []*types.ChangeEvent{
		insertEvent(m, map[string]any{"id": 1, "rgn": "eu"}),
	}, mappings, tcpEnv))
	a.Equal(1, cache.Len())

	sinktest.Exec(t, pool, "ALTER TABLE orders ADD COLUMN note TEXT")
	m.Columns = append(m.Columns, types.ColumnMapping{Target: "note"})

	r.NoError(f.Sync(ctx, []*types.ChangeEvent{
		{
			Kind:     types.KindDDL,
			Database: m.Database,
			Table:    m.Table,
			SQL:      "ALTER TABLE orders ADD COLUMN note TEXT",
		},
		insertEvent(m, map[string]any{"id": 2, "rgn": "eu", "note": "hello"}),
	}, mappings, tcpEnv))

	var note string
	r.NoError(pool.QueryRowContext(ctx, "SELECT note FROM orders WHERE id = 2").Scan(&note))
	a.Equal("hello", note)
	a.Equal(1, cache.Len())
}

func TestBind(t *testing.T) {
	r := require.New(t)

	f, _, execs := newFakeFan(t, 1)
	m := concurrentMapping()
	env := &types.Env{Mode: "kafka"}
	m.GroupID = "g1"

	s := f.Bind(sinktest.Mappings{}.Add(env, m), env)
	ev := insertEvent(m, map[string]any{"id": 1})
	ev.GroupID = "g1"
	r.NoError(s.Sync(context.Background(), []*types.ChangeEvent{ev}))
	r.Equal([]any{1}, execs[0].applied)
}
