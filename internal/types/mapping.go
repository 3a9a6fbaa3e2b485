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

package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// A Table identifies a table in a target database. The Database field
// may be empty, in which case the connection's default schema is used.
type Table struct {
	Database string
	Name     string
}

// ParseTable splits a possibly-qualified name of the form "db.table".
// Quoting characters are removed from each part.
func ParseTable(s string) (Table, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Table{}, errors.New("empty table name")
	}
	idx := strings.LastIndexByte(s, '.')
	if idx < 0 {
		return Table{Name: CleanColumn(s)}, nil
	}
	ret := Table{Database: CleanColumn(s[:idx]), Name: CleanColumn(s[idx+1:])}
	if ret.Name == "" {
		return Table{}, errors.Errorf("missing table name in %q", s)
	}
	return ret, nil
}

func (t Table) String() string {
	if t.Database == "" {
		return t.Name
	}
	return t.Database + "." + t.Name
}

// CleanColumn removes quoting characters and surrounding whitespace
// from an identifier.
func CleanColumn(name string) string {
	return strings.Trim(strings.TrimSpace(name), "`\"")
}

// A ColumnMapping binds a target column to the source column that
// provides its value.
type ColumnMapping struct {
	Target string
	Source string // May be empty to reuse the target's name.
}

// SourceName returns the configured source column or a normalized
// form of the target column name.
func (c ColumnMapping) SourceName() string {
	if c.Source != "" {
		return c.Source
	}
	return CleanColumn(c.Target)
}

// A TableMapping binds a source table to a target table. Instances are
// shared between partitions and must not be modified once published.
type TableMapping struct {
	Destination string
	GroupID     string
	Database    string // Source database.
	Table       string // Source table.

	Target  Table
	Columns []ColumnMapping // Ordered target-to-source columns.
	PK      []ColumnMapping // Ordered target-to-source key columns.
	MapAll  bool            // Map every source column not otherwise named.
	Exclude []string        // Source columns ignored by MapAll.

	// Concurrent allows rows of the table to be spread across
	// partitions. If false, all changes serialize through partition 0.
	Concurrent bool

	// Name is informational; it is usually the file that defined the
	// mapping.
	Name string
}

// ColumnsFor returns the target columns that should be written for a
// row containing the given source data.
func (m *TableMapping) ColumnsFor(data map[string]any) []ColumnMapping {
	if !m.MapAll {
		return m.Columns
	}
	srcNames := make([]string, 0, len(data))
	for name := range data {
		srcNames = append(srcNames, name)
	}
	sort.Strings(srcNames)

	ret := make([]ColumnMapping, 0, len(srcNames))
outer:
	for _, src := range srcNames {
		for _, col := range m.Columns {
			if col.SourceName() == src {
				ret = append(ret, ColumnMapping{Target: col.Target, Source: src})
				continue outer
			}
		}
		for _, ex := range m.Exclude {
			if ex == src {
				continue outer
			}
		}
		ret = append(ret, ColumnMapping{Target: src, Source: src})
	}
	return ret
}

// SchemaKey returns the key under which the target table's column
// types are cached.
func (m *TableMapping) SchemaKey() SchemaKey {
	return SchemaKey{
		Destination: m.Destination,
		Database:    m.Target.Database,
		Table:       m.Target.Name,
	}
}

// Validate checks that the mapping can be used to build statements.
func (m *TableMapping) Validate() error {
	if m.Target.Name == "" {
		return errors.Errorf("%s: no target table", m)
	}
	if m.Database == "" || m.Table == "" {
		return errors.Errorf("%s: source database and table are required", m)
	}
	if len(m.PK) == 0 {
		return errors.Errorf("%s: at least one target primary key column is required", m)
	}
	if !m.MapAll && len(m.Columns) == 0 {
		return errors.Errorf("%s: no target columns and mapAll is not set", m)
	}
	return nil
}

func (m *TableMapping) String() string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("%s.%s -> %s", m.Database, m.Table, m.Target)
}

// A SchemaKey identifies a target table's entry in the column-type
// cache.
type SchemaKey struct {
	Destination string
	Database    string
	Table       string
}

func (k SchemaKey) String() string {
	return k.Destination + "." + k.Database + "." + k.Table
}

// Env carries deployment settings that are passed through to mapping
// lookups.
type Env struct {
	// Mode is the adapter's connection mode. The "tcp" mode connects
	// directly to a single destination; queue-based modes (kafka,
	// rocketMQ, ...) include the consumer group in mapping keys.
	Mode string
}

// GroupAware returns true if mapping keys should include the consumer
// group id. A nil Env uses plain keys.
func (e *Env) GroupAware() bool {
	return e != nil && !strings.EqualFold(strings.TrimSpace(e.Mode), "tcp")
}

// MappingKey returns the key used to look up the mappings for a source
// table.
func MappingKey(env *Env, destination, group, database, table string) string {
	destination = strings.TrimSpace(destination)
	if env.GroupAware() {
		return destination + "-" + strings.TrimSpace(group) + "_" + database + "-" + table
	}
	return destination + "_" + database + "-" + table
}

// MappingKey returns the key used to look up mappings for the event.
func (e *ChangeEvent) MappingKey(env *Env) string {
	return MappingKey(env, e.Destination, e.GroupID, e.Database, e.Table)
}

// Key returns the key under which the mapping should be registered.
func (m *TableMapping) Key(env *Env) string {
	return MappingKey(env, m.Destination, m.GroupID, m.Database, m.Table)
}
