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

// Package types contains data types and interfaces that define the
// major functional blocks of code within rdbsync. The goal of placing
// the types into this package is to make it easy to compose
// functionality as the project evolves.
package types

import (
	"context"
	"database/sql"
)

// Querier is implemented by [sql.DB], [sql.Conn], and [sql.Tx].
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.Conn)(nil)
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// An Executor owns a connection and an open transaction on behalf of a
// single partition. Statements accumulate in the transaction until
// Commit or Rollback is called. An Executor is not safe for concurrent
// use.
type Executor interface {
	// Exec runs a parametrized statement in the open transaction,
	// starting one if necessary.
	Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error)
	// Querier returns the open transaction for ad hoc statements,
	// starting one if necessary.
	Querier(ctx context.Context) (Querier, error)
	// Commit commits the open transaction, if any.
	Commit(ctx context.Context) error
	// OnCommit registers a callback to run after the open transaction
	// commits successfully. Callbacks are discarded by Rollback.
	OnCommit(fn func())
	// Rollback aborts the open transaction, if any.
	Rollback(ctx context.Context) error
	// Close releases prepared statements and the pinned connection.
	// An open transaction is rolled back. The Executor may be reused
	// after Close.
	Close() error
}

// An Applier writes single-row changes to a target table.
type Applier interface {
	// Apply executes the statement for the item's change through the
	// Executor.
	Apply(ctx context.Context, exec Executor, item *SyncItem) error
	// Forget discards any cached state about the target table,
	// following a schema change. The source table name identifies
	// the table's audit trail.
	Forget(key SchemaKey, sourceTable string)
}

// A Syncer applies batches of change events. Change sources deliver
// events to a Syncer and may acknowledge them once Sync returns
// without error.
type Syncer interface {
	Sync(ctx context.Context, events []*ChangeEvent) error
}

// Mappings provides the table mappings for a source table.
type Mappings interface {
	// Lookup returns the mappings registered under the key returned
	// by [MappingKey]. The returned slice must not be modified.
	Lookup(key string) []*TableMapping
}

// PoolInfo describes a database connection pool and what it's
// connected to.
type PoolInfo struct {
	ConnectionString string
	Product          Product
	Version          string

	// IsDuplicate returns true if the error indicates a unique or
	// primary-key constraint violation.
	IsDuplicate func(err error) bool
}

// Info returns the PoolInfo when embedded.
func (i *PoolInfo) Info() *PoolInfo { return i }

// TargetPool is an injection point for a connection to a target
// database.
type TargetPool struct {
	*sql.DB
	PoolInfo
}
