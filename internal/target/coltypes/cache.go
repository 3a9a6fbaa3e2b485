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

// Package coltypes resolves and caches the column types of target
// tables.
package coltypes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/cockroachdb/rdbsync/internal/util/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Cache holds the column types of target tables, keyed by
// [types.SchemaKey]. It is safe for concurrent use and is typically
// shared by every partition of a process.
type Cache struct {
	// epoch is incremented by every invalidation. A fill that observes
	// a change in epoch returns its result without publishing it.
	epoch   atomic.Uint64
	entries sync.Map // types.SchemaKey -> types.Columns
	group   singleflight.Group
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{}
}

// Resolve returns the column types of the table. Cached values are
// returned without consulting the database. Concurrent misses for the
// same key share a single introspection query, which is executed using
// the caller's Querier.
func (c *Cache) Resolve(
	ctx context.Context,
	q types.Querier,
	key types.SchemaKey,
	table types.Table,
	product types.Product,
) (types.Columns, error) {
	labels := metrics.TableValues(table)
	if found, ok := c.entries.Load(key); ok {
		cacheHits.WithLabelValues(labels...).Inc()
		return found.(types.Columns), nil
	}

	ret, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Double-check, in case a fill completed between the above
		// lookup and the call to Do.
		if found, ok := c.entries.Load(key); ok {
			return found, nil
		}
		cacheMisses.WithLabelValues(labels...).Inc()

		epoch := c.epoch.Load()
		cols, err := fetch(ctx, q, table, product)
		if err != nil {
			return nil, err
		}
		if c.epoch.Load() == epoch {
			c.entries.Store(key, cols)
		}
		log.WithFields(log.Fields{
			"columns": len(cols),
			"key":     key,
		}).Debug("resolved target column types")
		return cols, nil
	})
	if err != nil {
		return nil, err
	}
	return ret.(types.Columns), nil
}

// Invalidate discards the cached column types for the key. The next
// call to Resolve will query the database.
func (c *Cache) Invalidate(key types.SchemaKey) {
	c.epoch.Add(1)
	c.group.Forget(key.String())
	if _, loaded := c.entries.LoadAndDelete(key); loaded {
		cacheInvalidations.WithLabelValues(key.Database, key.Table).Inc()
		log.WithField("key", key).Debug("invalidated target column types")
	}
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	count := 0
	c.entries.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// fetch uses a query that can never return a row to read the table's
// result-set metadata.
func fetch(
	ctx context.Context, q types.Querier, table types.Table, product types.Product,
) (types.Columns, error) {
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE 1=2", product.QuoteTable(table))
	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return nil, errors.Wrapf(err, "could not introspect %s", table)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrapf(err, "could not read column types of %s", table)
	}
	ret := make(types.Columns, len(colTypes))
	for _, ct := range colTypes {
		dbType := ct.DatabaseTypeName()
		ret[strings.ToLower(ct.Name())] = types.ColumnType{
			Name: dbType,
			Kind: types.ClassifyType(dbType),
		}
	}
	return ret, errors.WithStack(rows.Err())
}
