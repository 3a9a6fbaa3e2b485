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

// Package fan applies batches of change events across a fixed set of
// concurrent partitions. Changes to the same row are always applied
// by the same partition, in the order in which they were received.
//
// Each partition commits independently. If one partition fails, the
// changes committed by the other partitions remain in place and the
// caller is expected to redeliver the batch.
package fan

import (
	"context"
	"sync"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// A RouteFunc examines a change event, routing its changes by calling
// Fan.Enqueue. It returns true if the event produced any work that
// should be applied.
type RouteFunc func(ctx context.Context, ev *types.ChangeEvent) (bool, error)

// Fan allows a serial stream of change events to be applied across
// concurrent connections to the target.
type Fan struct {
	applier    types.Applier
	partitions []*partition
	stopped    chan struct{} // Closed to stop the workers.
	syncMu     sync.Mutex    // Serializes calls to SyncFunc.
	wg         sync.WaitGroup

	mu struct {
		sync.Mutex
		stopFlag bool
	}
}

// New constructs a Fan and starts one worker goroutine per partition.
// The newExecutor callback is invoked once per partition index. The
// Fan must be stopped by calling Stop.
func New(
	cfg *Config, newExecutor func(idx int) types.Executor, applier types.Applier,
) (*Fan, error) {
	if cfg.Partitions <= 0 {
		return nil, errors.Errorf("partitions must be positive: %d", cfg.Partitions)
	}
	ret := &Fan{
		applier:    applier,
		partitions: make([]*partition, cfg.Partitions),
		stopped:    make(chan struct{}),
	}
	for i := range ret.partitions {
		p := newPartition(i, newExecutor(i), applier)
		ret.partitions[i] = p
		ret.wg.Add(1)
		go func() {
			defer ret.wg.Done()
			p.run(ret.stopped)
		}()
	}
	return ret, nil
}

// Enqueue routes a change to its partition. It is intended to be
// called from a RouteFunc.
func (f *Fan) Enqueue(m *types.TableMapping, ch *types.SingleRowChange) {
	idx := Route(m, ch.Data, ch.Old, len(f.partitions))
	p := f.partitions[idx]

	f.mu.Lock()
	p.queue = append(p.queue, &types.SyncItem{Mapping: m, Change: ch})
	f.mu.Unlock()

	routedItems.WithLabelValues(p.labels...).Inc()
}

// Partitions returns the number of partitions.
func (f *Fan) Partitions() int {
	return len(f.partitions)
}

// Stop halts the partition workers and waits for them to exit. Any
// in-progress call to Sync will complete first. Calling Stop more than
// once has no further effect.
func (f *Fan) Stop() {
	f.syncMu.Lock()
	defer f.syncMu.Unlock()

	f.mu.Lock()
	if f.mu.stopFlag {
		f.mu.Unlock()
		return
	}
	f.mu.stopFlag = true
	f.mu.Unlock()

	close(f.stopped)
	f.wg.Wait()
	log.Debug("fan stopped")
}

// Sync applies the change events using the mappings to locate their
// target tables. Schema-change events invalidate any metadata cached
// for their tables and are otherwise not applied. Events for which no
// mapping exists are skipped.
//
// If any partition fails, the first error, in partition order, is
// returned once every partition has finished.
func (f *Fan) Sync(
	ctx context.Context, events []*types.ChangeEvent, mappings types.Mappings, env *types.Env,
) error {
	return f.SyncFunc(ctx, events, func(ctx context.Context, ev *types.ChangeEvent) (bool, error) {
		key := ev.MappingKey(env)
		found := mappings.Lookup(key)

		if ev.IsDDL() {
			f.forget(ev, found)
			return false, nil
		}
		if len(found) == 0 {
			unmappedEvents.Inc()
			log.WithField("key", key).Trace("no mapping for change event")
			return false, nil
		}
		changes := ev.Explode()
		for _, m := range found {
			for _, ch := range changes {
				f.Enqueue(m, ch)
			}
		}
		return true, nil
	})
}

// Bind returns a Syncer that applies events using the mappings.
func (f *Fan) Bind(mappings types.Mappings, env *types.Env) types.Syncer {
	return &boundSyncer{env: env, fan: f, mappings: mappings}
}

type boundSyncer struct {
	env      *types.Env
	fan      *Fan
	mappings types.Mappings
}

// Sync implements [types.Syncer].
func (s *boundSyncer) Sync(ctx context.Context, events []*types.ChangeEvent) error {
	return s.fan.Sync(ctx, events, s.mappings, s.env)
}

// SyncFunc invokes the callback for each event in order. If any
// invocation returns true, the enqueued changes are then applied by
// each partition that has work.
func (f *Fan) SyncFunc(ctx context.Context, events []*types.ChangeEvent, fn RouteFunc) error {
	f.syncMu.Lock()
	defer f.syncMu.Unlock()

	f.mu.Lock()
	stopped := f.mu.stopFlag
	f.mu.Unlock()
	if stopped {
		return errors.New("fan has been stopped")
	}

	// Always release connections and discard unapplied changes.
	defer func() {
		batches := f.drain()
		for i, p := range f.partitions {
			if len(batches[i]) > 0 {
				log.WithFields(log.Fields{
					"count":     len(batches[i]),
					"partition": i,
				}).Debug("discarding unapplied changes")
			}
			if err := p.exec.Close(); err != nil {
				log.WithError(err).WithField("partition", i).Warn("could not close executor")
			}
		}
	}()

	toExecute := false
	for _, ev := range events {
		routed, err := fn(ctx, ev)
		if err != nil {
			return err
		}
		toExecute = toExecute || routed
	}
	if !toExecute {
		return nil
	}
	return f.flush(ctx, f.drain())
}

// drain removes and returns the queued items for each partition.
func (f *Fan) drain() [][]*types.SyncItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([][]*types.SyncItem, len(f.partitions))
	for i, p := range f.partitions {
		ret[i] = p.queue
		p.queue = nil
	}
	return ret
}

// flush submits each non-empty batch to its partition's worker and
// waits for all of them to finish.
func (f *Fan) flush(ctx context.Context, batches [][]*types.SyncItem) error {
	results := make([]chan error, len(f.partitions))
	for i, p := range f.partitions {
		if len(batches[i]) == 0 {
			continue
		}
		result := make(chan error, 1)
		results[i] = result
		p.work <- &flush{ctx: ctx, items: batches[i], result: result}
	}

	var firstErr error
	for i, result := range results {
		if result == nil {
			continue
		}
		if err := <-result; err != nil {
			log.WithError(err).WithField("partition", i).Error("partition failed")
			if firstErr == nil {
				firstErr = errors.WithMessagef(err, "partition %d", i)
			}
		}
	}
	return firstErr
}

// forget invalidates the metadata cached for the tables that a schema
// change may have altered.
func (f *Fan) forget(ev *types.ChangeEvent, found []*types.TableMapping) {
	schemaInvalidations.Inc()
	log.WithFields(log.Fields{
		"database": ev.Database,
		"sql":      ev.SQL,
		"table":    ev.Table,
	}).Info("schema change detected")

	for _, m := range found {
		f.applier.Forget(m.SchemaKey(), ev.Table)
	}
	f.applier.Forget(types.SchemaKey{
		Destination: ev.Destination,
		Database:    ev.Database,
		Table:       ev.Table,
	}, ev.Table)
}
