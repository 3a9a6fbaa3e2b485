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

// Package stdpool creates standardized database connection pools.
package stdpool

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// OpenTarget selects from target connector implementations based on the
// URL scheme contained in the connection string. The returned function
// closes the pool.
func OpenTarget(
	ctx context.Context, connectString string, options ...Option,
) (*types.TargetPool, func(), error) {
	u, err := url.Parse(connectString)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not parse connection string")
	}

	switch strings.ToLower(u.Scheme) {
	case "mysql":
		return OpenMySQLAsTarget(ctx, connectString, u, options...)
	case "pg", "pgx", "postgres", "postgresql":
		return OpenPgxAsTarget(ctx, connectString, options...)
	case "ora", "oracle":
		return OpenOracleAsTarget(ctx, connectString, options...)
	case "sqlite", "sqlite3":
		return OpenSQLiteAsTarget(ctx, connectString, u, options...)
	default:
		return nil, nil, errors.Errorf("unknown URL scheme: %s", u.Scheme)
	}
}

// finishOpen waits for the database to become available, records its
// version, and applies options to the pool. The pool is closed if an
// error is returned.
func finishOpen(
	ctx context.Context, ret *types.TargetPool, versionQuery string, options []Option,
) (func(), error) {
	success := false
	defer func() {
		if !success {
			_ = ret.Close()
		}
	}()

	var ctl controls
	if err := attachOptions(ctx, &ctl, options); err != nil {
		return nil, err
	}

	if err := ping(ctx, ret.DB, ctl.startupTimeout); err != nil {
		return nil, err
	}

	if err := ret.QueryRowContext(ctx, versionQuery).Scan(&ret.Version); err != nil {
		return nil, errors.Wrap(err, "could not query version")
	}
	log.WithFields(log.Fields{
		"product": ret.Product,
		"version": ret.Version,
	}).Info("connected to target")

	if err := attachOptions(ctx, ret.DB, options); err != nil {
		return nil, err
	}

	stopMetrics := PublishMetrics(ret.DB, ret.Product.String())
	success = true
	return func() {
		stopMetrics()
		if err := ret.Close(); err != nil {
			log.WithError(errors.WithStack(err)).Warn("could not close database connection")
		}
	}, nil
}

// ping retries until the database responds or the timeout elapses. A
// zero timeout makes a single attempt.
func ping(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout <= 0 {
		return errors.Wrap(db.PingContext(ctx), "could not ping the database")
	}
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = timeout
	return errors.Wrap(backoff.RetryNotify(
		func() error { return db.PingContext(ctx) },
		backoff.WithContext(b, ctx),
		func(err error, d time.Duration) {
			log.WithError(err).WithField("delay", d).Info("waiting for database to become ready")
		},
	), "could not ping the database")
}
