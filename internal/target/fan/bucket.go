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
	"time"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/cockroachdb/rdbsync/internal/util/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// A flush is the work submitted to a partition's worker.
type flush struct {
	ctx    context.Context
	items  []*types.SyncItem
	result chan<- error // Buffered; receives exactly one value.
}

// A partition owns an Executor and the queue of changes that will be
// applied through it. Each partition has a dedicated goroutine, so the
// changes within a partition are applied in the order they were
// enqueued.
type partition struct {
	applier types.Applier
	exec    types.Executor
	idx     int
	labels  []string
	queue   []*types.SyncItem // Guarded by Fan.mu.
	work    chan *flush
}

func newPartition(idx int, exec types.Executor, applier types.Applier) *partition {
	return &partition{
		applier: applier,
		exec:    exec,
		idx:     idx,
		labels:  metrics.PartitionValues(idx),
		work:    make(chan *flush),
	}
}

// run is executed from the partition's goroutine until the stopped
// channel is closed.
func (p *partition) run(stopped <-chan struct{}) {
	for {
		select {
		case <-stopped:
			log.WithField("partition", p.idx).Trace("partition worker exiting")
			return
		case f := <-p.work:
			f.result <- p.apply(f.ctx, f.items)
		}
	}
}

// apply applies the items and commits the partition's transaction.
// The transaction is rolled back if any item cannot be applied.
func (p *partition) apply(ctx context.Context, items []*types.SyncItem) error {
	start := time.Now()
	err := p.applyItems(ctx, items)
	if err == nil {
		err = p.exec.Commit(ctx)
	}
	if err != nil {
		flushErrors.WithLabelValues(p.labels...).Inc()
		if rbErr := p.exec.Rollback(ctx); rbErr != nil {
			log.WithError(rbErr).WithField("partition", p.idx).Warn("could not roll back")
		}
		return err
	}
	flushDurations.WithLabelValues(p.labels...).Observe(time.Since(start).Seconds())
	log.WithFields(log.Fields{
		"count":     len(items),
		"duration":  time.Since(start),
		"partition": p.idx,
	}).Debug("partition committed")
	return nil
}

func (p *partition) applyItems(ctx context.Context, items []*types.SyncItem) error {
	for _, item := range items {
		if err := p.applier.Apply(ctx, p.exec, item); err != nil {
			return errors.Wrapf(err, "%s: could not apply %s", item.Mapping, item.Change.Kind)
		}
	}
	return nil
}
