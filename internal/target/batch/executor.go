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

// Package batch contains the per-partition transaction executor.
package batch

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/cockroachdb/rdbsync/internal/util/stmtcache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Executor implements [types.Executor]. It pins a single connection
// from the pool the first time a statement is executed and holds it,
// along with its prepared statements, until Close is called.
type Executor struct {
	cfg  *Config
	pool *types.TargetPool

	conn     *sql.Conn
	onCommit []func()
	stmts    *stmtcache.Cache[string]
	tx       *sql.Tx
}

var _ types.Executor = (*Executor)(nil)

// New constructs an Executor that will draw a connection from the pool.
func New(cfg *Config, pool *types.TargetPool) *Executor {
	return &Executor{cfg: cfg, pool: pool}
}

// Exec implements [types.Executor].
func (e *Executor) Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	prepared, err := e.stmts.Prepare(ctx, tx, stmt, func() (string, error) { return stmt, nil })
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"args": args,
		"stmt": stmt,
	}).Trace("exec")
	res, err := prepared.ExecContext(ctx, args...)
	return res, errors.Wrap(err, stmt)
}

// Querier implements [types.Executor].
func (e *Executor) Querier(ctx context.Context) (types.Querier, error) {
	return e.begin(ctx)
}

// Commit implements [types.Executor].
func (e *Executor) Commit(context.Context) error {
	if e.tx == nil {
		return nil
	}
	tx := e.tx
	callbacks := e.onCommit
	e.tx = nil
	e.onCommit = nil
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit partition transaction")
	}
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnCommit implements [types.Executor].
func (e *Executor) OnCommit(fn func()) {
	e.onCommit = append(e.onCommit, fn)
}

// Rollback implements [types.Executor].
func (e *Executor) Rollback(context.Context) error {
	e.onCommit = nil
	if e.tx == nil {
		return nil
	}
	tx := e.tx
	e.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, "could not roll back partition transaction")
	}
	return nil
}

// Close implements [types.Executor].
func (e *Executor) Close() error {
	err := e.Rollback(context.Background())
	if e.stmts != nil {
		e.stmts.Clear()
		e.stmts = nil
	}
	if e.conn != nil {
		if closeErr := e.conn.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "could not release connection")
		}
		e.conn = nil
	}
	return err
}

// begin lazily acquires a connection and opens a transaction.
func (e *Executor) begin(ctx context.Context) (*sql.Tx, error) {
	if e.tx != nil {
		return e.tx, nil
	}
	if e.conn == nil {
		conn, err := e.pool.Conn(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "could not acquire connection")
		}
		e.conn = conn
		e.stmts = stmtcache.New[string](conn, e.cfg.StatementCacheSize)
	}
	tx, err := e.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin partition transaction")
	}
	e.tx = tx
	return tx, nil
}
