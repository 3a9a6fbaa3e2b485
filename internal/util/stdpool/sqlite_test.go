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
	"net/url"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	tcs := []struct {
		url      string
		expected string
		err      string
	}{
		{url: "sqlite:///tmp/x.db", expected: "file:/tmp/x.db"},
		{url: "sqlite:///tmp/x.db?_busy_timeout=100", expected: "file:/tmp/x.db?_busy_timeout=100"},
		{url: "sqlite:x.db", expected: "file:x.db"},
		{url: "sqlite://x.db", expected: "file:x.db"},
		{url: "sqlite://", err: "requires a path"},
	}
	for _, tc := range tcs {
		t.Run(tc.url, func(t *testing.T) {
			r := require.New(t)
			u, err := url.Parse(tc.url)
			r.NoError(err)
			dsn, err := sqliteDSN(u)
			if tc.err != "" {
				r.ErrorContains(err, tc.err)
				return
			}
			r.NoError(err)
			r.Equal(tc.expected, dsn)
		})
	}
}

func TestOpenSQLiteDuplicate(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "target.db")
	pool, cancel, err := OpenTarget(ctx, "sqlite://"+path+"?_busy_timeout=5000", WithPoolSize(4))
	r.NoError(err)
	defer cancel()

	a.Equal(types.ProductSQLite, pool.Product)
	a.NotEmpty(pool.Version)

	_, err = pool.ExecContext(ctx, "CREATE TABLE t (id INT PRIMARY KEY)")
	r.NoError(err)
	_, err = pool.ExecContext(ctx, "INSERT INTO t VALUES (1)")
	r.NoError(err)
	_, err = pool.ExecContext(ctx, "INSERT INTO t VALUES (1)")
	r.Error(err)
	a.True(pool.IsDuplicate(err))

	_, err = pool.ExecContext(ctx, "INSERT INTO missing VALUES (1)")
	r.Error(err)
	a.False(pool.IsDuplicate(err))
}

func TestOpenTargetUnknownScheme(t *testing.T) {
	_, _, err := OpenTarget(context.Background(), "bogus://foo")
	assert.ErrorContains(t, err, "unknown URL scheme")
}
