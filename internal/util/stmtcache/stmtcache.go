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

// Package stmtcache provides a cache for prepared statements.
package stmtcache

import (
	"context"
	"database/sql"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"
)

// stmtAdopter is implemented by *sql.Tx. We'll prepare the statements
// against the connection and, if necessary, bind the statement to a
// specific transaction for execution.
type stmtAdopter interface {
	StmtContext(context.Context, *sql.Stmt) *sql.Stmt
}

// preparer is implemented by *sql.DB and *sql.Conn.
type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Cache holds prepared statements which are retrieved by a comparable
// key. Prepared statements are a limited resource in some target
// databases, so the Cache should share the lifetime of the connection
// it prepares against.
type Cache[T comparable] struct {
	db preparer

	mu struct {
		sync.Mutex // Not RW since the LRU list moves elements.
		cache      *lru.Cache
	}
}

// New constructs a Cache for the connection.
func New[T comparable](db preparer, size int) *Cache[T] {
	ret := &Cache[T]{db: db}
	ret.mu.cache = lru.New(size)
	ret.mu.cache.OnEvicted = func(_ lru.Key, value interface{}) {
		if err := value.(*sql.Stmt).Close(); err != nil {
			stmtCacheDrops.Inc()
			return
		}
		stmtCacheReleases.Inc()
	}
	return ret
}

// Clear releases all cached statements.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.cache.Clear()
}

// Len returns the number of cached statements.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.cache.Len()
}

// Prepare returns or constructs a new prepared statement. If db is a
// [*sql.Tx], the statement will be attached to the transaction.
func (c *Cache[T]) Prepare(
	ctx context.Context, db any, key T, gen func() (string, error),
) (*sql.Stmt, error) {
	stmt, err := c.get(ctx, key, gen)
	if err != nil {
		return nil, err
	}
	if tx, ok := db.(stmtAdopter); ok {
		stmt = tx.StmtContext(ctx, stmt)
	}
	return stmt, nil
}

func (c *Cache[T]) get(ctx context.Context, key T, gen func() (string, error)) (*sql.Stmt, error) {
	// It's an LRU cache. Calling Get will alter memory.
	c.mu.Lock()
	found, ok := c.mu.cache.Get(key)
	c.mu.Unlock()
	if ok {
		stmtCacheHits.Inc()
		return found.(*sql.Stmt), nil
	}

	// We'll generate and prepare the statement outside a critical
	// region, since this can take an arbitrarily long amount of time.
	stmtCacheMisses.Inc()
	q, err := gen()
	if err != nil {
		return nil, err
	}
	stmt, err := c.db.PrepareContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, q)
	}

	c.mu.Lock()
	c.mu.cache.Add(key, stmt)
	c.mu.Unlock()
	return stmt, nil
}
