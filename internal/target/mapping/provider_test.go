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

package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userMapping = `
dataSourceKey: defaultDS
destination: example
groupId: g1
outerAdapterKey: mysql1
concurrent: true
dbMapping:
  database: mytest
  table: user
  targetTable: mytest2.user
  targetPk:
    id: id
  targetColumns:
    id:
    name:
    role_id:
    c_time: create_time
    test1:
`

func TestParse(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	m, err := Parse("user.yml", []byte(userMapping))
	r.NoError(err)
	a.Equal("example", m.Destination)
	a.Equal("g1", m.GroupID)
	a.Equal("mytest", m.Database)
	a.Equal("user", m.Table)
	a.Equal(types.Table{Database: "mytest2", Name: "user"}, m.Target)
	a.True(m.Concurrent)
	a.False(m.MapAll)
	a.Equal("user.yml", m.Name)
	a.Equal([]types.ColumnMapping{{Target: "id", Source: "id"}}, m.PK)
	a.Equal([]types.ColumnMapping{
		{Target: "id"},
		{Target: "name"},
		{Target: "role_id"},
		{Target: "c_time", Source: "create_time"},
		{Target: "test1"},
	}, m.Columns)
}

func TestParseVariants(t *testing.T) {
	tcs := []struct {
		name   string
		doc    string
		target types.Table
		err    string
	}{
		{
			name: "map all with target db",
			doc: `
dbMapping:
  database: src
  table: orders
  targetDb: ods
  targetTable: orders_copy
  targetPk:
    id:
  mapAll: true
  excludeColumns:
    - secret
`,
			target: types.Table{Database: "ods", Name: "orders_copy"},
		},
		{
			name: "default target table",
			doc: `
dbMapping:
  database: src
  table: orders
  targetPk: {id: order_id}
  mapAll: true
`,
			target: types.Table{Name: "orders"},
		},
		{
			name: "no primary key",
			doc: `
dbMapping:
  database: src
  table: orders
  mapAll: true
`,
			err: "primary key",
		},
		{
			name: "no columns",
			doc: `
dbMapping:
  database: src
  table: orders
  targetPk:
    id:
  targetColumns:
`,
			err: "no target columns",
		},
		{
			name: "column list",
			doc: `
dbMapping:
  database: src
  table: orders
  targetPk:
    - id
  mapAll: true
`,
			err: "targetPk",
		},
		{
			name: "malformed",
			doc:  "dbMapping: [",
			err:  "bad.yml",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			r := require.New(t)
			m, err := Parse("bad.yml", []byte(tc.doc))
			if tc.err != "" {
				r.ErrorContains(err, tc.err)
				return
			}
			r.NoError(err)
			r.Equal(tc.target, m.Target)
		})
	}
}

func TestProvider(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	dir := t.TempDir()
	write := func(name, doc string) {
		r.NoError(os.WriteFile(filepath.Join(dir, name), []byte(doc), 0644))
	}
	write("b_user.yml", userMapping)
	write("a_user.yaml", `
destination: example
groupId: g1
dbMapping:
  database: mytest
  table: user
  targetTable: audit_user
  targetPk:
    id:
  mapAll: true
`)
	write("README.md", "not a mapping")
	r.NoError(os.Mkdir(filepath.Join(dir, "sub.yml"), 0755))

	p, err := New(&Config{Dir: dir, Mode: "tcp"})
	r.NoError(err)
	a.Equal(2, p.Len())
	a.Equal([]string{"example_mytest-user"}, p.Keys())

	found := p.Lookup("example_mytest-user")
	r.Len(found, 2)
	a.Equal("a_user.yaml", found[0].Name)
	a.Equal("b_user.yml", found[1].Name)
	a.Empty(p.Lookup("example_mytest-other"))

	// Group-aware keys.
	p, err = New(&Config{Dir: dir, Mode: "kafka"})
	r.NoError(err)
	a.Len(p.Lookup("example-g1_mytest-user"), 2)
	a.True(p.Env().GroupAware())

	// A broken file prevents a reload, retaining the old mappings.
	write("c_broken.yml", "dbMapping:\n  database: x\n")
	r.Error(p.Reload())
	a.Equal(2, p.Len())

	_, err = New(&Config{Dir: filepath.Join(dir, "missing")})
	r.ErrorContains(err, "mapping directory")

	r.Error((&Config{}).Preflight())
}
