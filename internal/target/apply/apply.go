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

// Package apply synthesizes and executes the statement that applies a
// single-row change to a target table.
package apply

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/rdbsync/internal/target/coltypes"
	"github.com/cockroachdb/rdbsync/internal/target/zipper"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/cockroachdb/rdbsync/internal/util/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const insertSavepoint = "rdbsync_insert"

// Applier implements [types.Applier]. It is safe for concurrent use by
// multiple partitions, provided that each uses its own Executor.
type Applier struct {
	audit *zipper.Writer
	cache *coltypes.Cache
	cfg   *Config
	pool  *types.PoolInfo
}

var _ types.Applier = (*Applier)(nil)

// New constructs an Applier. The audit Writer may be nil.
func New(
	cfg *Config, pool *types.PoolInfo, cache *coltypes.Cache, audit *zipper.Writer,
) *Applier {
	return &Applier{
		audit: audit,
		cache: cache,
		cfg:   cfg,
		pool:  pool,
	}
}

// Apply implements [types.Applier].
func (a *Applier) Apply(ctx context.Context, exec types.Executor, item *types.SyncItem) error {
	start := time.Now()
	m, ch := item.Mapping, item.Change
	labels := metrics.TableValues(m.Target)

	var err error
	switch ch.Kind {
	case types.KindInsert:
		if err = a.insert(ctx, exec, m, ch, labels); err == nil {
			a.audit.Record(ctx, exec, m, ch)
		}
	case types.KindUpdate:
		if err = a.update(ctx, exec, m, ch, labels); err == nil {
			a.audit.Record(ctx, exec, m, ch)
		}
	case types.KindDelete:
		err = a.delete(ctx, exec, m, ch, labels)
	case types.KindTruncate:
		err = a.truncate(ctx, exec, m, labels)
	default:
		log.WithFields(log.Fields{
			"kind":  ch.Kind,
			"table": m.Target,
		}).Trace("ignoring change")
		return nil
	}
	if err != nil {
		applyErrors.WithLabelValues(labels...).Inc()
		return err
	}
	applyDurations.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	return nil
}

// Forget implements [types.Applier].
func (a *Applier) Forget(key types.SchemaKey, sourceTable string) {
	a.cache.Invalidate(key)
	a.audit.Forget(sourceTable)
}

// columns resolves the target table's column types, using the
// Executor's transaction for any introspection.
func (a *Applier) columns(
	ctx context.Context, exec types.Executor, m *types.TableMapping,
) (types.Columns, error) {
	q, err := exec.Querier(ctx)
	if err != nil {
		return nil, err
	}
	return a.cache.Resolve(ctx, q, m.SchemaKey(), m.Target, a.pool.Product)
}

func (a *Applier) insert(
	ctx context.Context,
	exec types.Executor,
	m *types.TableMapping,
	ch *types.SingleRowChange,
	labels []string,
) error {
	if len(ch.Data) == 0 {
		applySkipped.WithLabelValues(labels...).Inc()
		return nil
	}
	cols, err := a.columns(ctx, exec, m)
	if err != nil {
		return err
	}
	stmt, args, err := BuildInsert(a.pool.Product, m, cols, ch)
	if err != nil || stmt == "" {
		return err
	}

	if !a.cfg.SkipDuplicates {
		if _, err := exec.Exec(ctx, stmt, args...); err != nil {
			return err
		}
		applyInserts.WithLabelValues(labels...).Inc()
		return nil
	}

	// A failed statement would poison the transaction on some
	// products, so the insert is performed within a savepoint.
	var q types.Querier
	if a.pool.Product.StatementAbortsTx() {
		q, err = exec.Querier(ctx)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, "SAVEPOINT "+insertSavepoint); err != nil {
			return errors.WithStack(err)
		}
	}

	_, err = exec.Exec(ctx, stmt, args...)
	switch {
	case err == nil:
		applyInserts.WithLabelValues(labels...).Inc()
		if q != nil {
			_, err = q.ExecContext(ctx, "RELEASE SAVEPOINT "+insertSavepoint)
		}
		return errors.WithStack(err)

	case a.isDuplicate(err):
		applyDuplicates.WithLabelValues(labels...).Inc()
		log.WithError(err).WithField("table", m.Target).Debug("skipping duplicate insert")
		if q != nil {
			_, err = q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+insertSavepoint)
			return errors.WithStack(err)
		}
		return nil

	default:
		return err
	}
}

func (a *Applier) update(
	ctx context.Context,
	exec types.Executor,
	m *types.TableMapping,
	ch *types.SingleRowChange,
	labels []string,
) error {
	if len(ch.Data) == 0 || len(ch.Old) == 0 {
		applySkipped.WithLabelValues(labels...).Inc()
		return nil
	}
	cols, err := a.columns(ctx, exec, m)
	if err != nil {
		return err
	}
	stmt, args, err := BuildUpdate(a.pool.Product, m, cols, ch)
	if err != nil {
		return err
	}
	if stmt == "" {
		applySkipped.WithLabelValues(labels...).Inc()
		log.WithFields(log.Fields{
			"old":   ch.Old,
			"table": m.Target,
		}).Warn("did not match any columns to update")
		return nil
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return err
	}
	applyUpdates.WithLabelValues(labels...).Inc()
	return nil
}

func (a *Applier) delete(
	ctx context.Context,
	exec types.Executor,
	m *types.TableMapping,
	ch *types.SingleRowChange,
	labels []string,
) error {
	if len(ch.Data) == 0 {
		applySkipped.WithLabelValues(labels...).Inc()
		return nil
	}
	cols, err := a.columns(ctx, exec, m)
	if err != nil {
		return err
	}
	stmt, args, err := BuildDelete(a.pool.Product, m, cols, ch)
	if err != nil {
		return err
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return err
	}
	applyDeletes.WithLabelValues(labels...).Inc()
	return nil
}

func (a *Applier) truncate(
	ctx context.Context, exec types.Executor, m *types.TableMapping, labels []string,
) error {
	if _, err := exec.Exec(ctx, BuildTruncate(a.pool.Product, m)); err != nil {
		return err
	}
	applyTruncates.WithLabelValues(labels...).Inc()
	return nil
}

// isDuplicate recognizes unique-constraint violations, using the
// driver's classification and the messages of common products.
func (a *Applier) isDuplicate(err error) bool {
	if a.pool.IsDuplicate != nil && a.pool.IsDuplicate(err) {
		return true
	}
	msg := errors.Cause(err).Error()
	return strings.Contains(msg, "Duplicate entry") || strings.HasPrefix(msg, "ORA-00001:")
}
