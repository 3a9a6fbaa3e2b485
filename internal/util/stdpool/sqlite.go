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

package stdpool

import (
	"context"
	"database/sql"
	"net/url"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
)

// OpenSQLiteAsTarget opens a file-backed SQLite database from a URL of
// the form sqlite:///path/to/file.db?_busy_timeout=5000. Query
// parameters are passed through to the driver.
func OpenSQLiteAsTarget(
	ctx context.Context, connectString string, u *url.URL, options ...Option,
) (*types.TargetPool, func(), error) {
	dsn, err := sqliteDSN(u)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	ret := &types.TargetPool{
		DB: db,
		PoolInfo: types.PoolInfo{
			ConnectionString: connectString,
			Product:          types.ProductSQLite,
			IsDuplicate:      sqliteIsDuplicate,
		},
	}
	cancel, err := finishOpen(ctx, ret, "SELECT sqlite_version()", options)
	if err != nil {
		return nil, nil, err
	}
	return ret, cancel, nil
}

// sqliteDSN converts a URL into the driver's file: syntax.
func sqliteDSN(u *url.URL) (string, error) {
	path := u.Path
	if path == "" {
		// Accept sqlite:relative/path.db
		path = u.Opaque
	}
	if u.Host != "" {
		// Accept sqlite://relative/path.db
		path = u.Host + path
	}
	if path == "" {
		return "", errors.New("sqlite connection string requires a path")
	}
	dsn := "file:" + path
	if u.RawQuery != "" {
		dsn += "?" + u.RawQuery
	}
	return dsn, nil
}
