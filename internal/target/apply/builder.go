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

package apply

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
)

// ErrUnmappedColumn is returned when a mapped target column does not
// exist in the target table.
var ErrUnmappedColumn = errors.New("target column not matched")

func unmapped(col string, tbl types.Table) error {
	return errors.Wrapf(ErrUnmappedColumn, "%s.%s", tbl, col)
}

// stmtBuilder accumulates SQL text and its bound arguments.
type stmtBuilder struct {
	product types.Product
	cols    types.Columns
	table   types.Table
	args    []any
	sb      strings.Builder
}

func newBuilder(p types.Product, tbl types.Table, cols types.Columns) *stmtBuilder {
	return &stmtBuilder{product: p, cols: cols, table: tbl}
}

// bind coerces the value for the target column and returns its
// placeholder.
func (b *stmtBuilder) bind(target string, value any) (string, error) {
	ct, ok := b.cols.Get(target)
	if !ok {
		return "", unmapped(target, b.table)
	}
	return b.bindAs(target, ct, value)
}

func (b *stmtBuilder) bindAs(target string, ct types.ColumnType, value any) (string, error) {
	v, err := coerce(ct, value)
	if err != nil {
		return "", errors.Wrapf(err, "%s.%s", b.table, target)
	}
	b.args = append(b.args, v)
	return b.product.Placeholder(len(b.args)), nil
}

// cond appends an equality predicate. Nil values are matched with IS
// NULL, since they would otherwise never compare equal.
func (b *stmtBuilder) cond(target string, ct types.ColumnType, value any) error {
	if value == nil {
		b.sb.WriteString(b.product.Quote(target))
		b.sb.WriteString(" IS NULL")
		return nil
	}
	p, err := b.bindAs(target, ct, value)
	if err != nil {
		return err
	}
	b.sb.WriteString(b.product.Quote(target))
	b.sb.WriteString(" = ")
	b.sb.WriteString(p)
	return nil
}

func (b *stmtBuilder) result() (string, []any, error) {
	return b.sb.String(), b.args, nil
}

// BuildInsert returns an INSERT statement for the row's data. An empty
// statement is returned if there is no data to insert.
func BuildInsert(
	p types.Product, m *types.TableMapping, cols types.Columns, ch *types.SingleRowChange,
) (string, []any, error) {
	if len(ch.Data) == 0 {
		return "", nil, nil
	}
	targets := m.ColumnsFor(ch.Data)
	if len(targets) == 0 {
		return "", nil, nil
	}
	b := newBuilder(p, m.Target, cols)
	placeholders := make([]string, len(targets))
	names := make([]string, len(targets))
	for i, col := range targets {
		ph, err := b.bind(col.Target, ch.Data[col.SourceName()])
		if err != nil {
			return "", nil, err
		}
		names[i] = p.Quote(col.Target)
		placeholders[i] = ph
	}
	fmt.Fprintf(&b.sb, "INSERT INTO %s (%s) VALUES (%s)",
		p.QuoteTable(m.Target),
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "))
	return b.result()
}

// BuildUpdate returns an UPDATE statement that assigns the new values
// of the columns named in the row's old data. Columns whose new value
// is unchanged are not assigned. An empty statement is returned if
// there is no data or nothing to assign.
//
// If the change modified the primary key, the row is located by its
// previous key. Otherwise, every previous column value is used as a
// predicate.
func BuildUpdate(
	p types.Product, m *types.TableMapping, cols types.Columns, ch *types.SingleRowChange,
) (string, []any, error) {
	if len(ch.Data) == 0 || len(ch.Old) == 0 {
		return "", nil, nil
	}
	oldKeys := make([]string, 0, len(ch.Old))
	for k := range ch.Old {
		oldKeys = append(oldKeys, k)
	}
	sort.Strings(oldKeys)
	targets := m.ColumnsFor(ch.Data)

	b := newBuilder(p, m.Target, cols)
	var assignments []string
	for _, src := range oldKeys {
		next := ch.Data[src]
		if sameValue(next, ch.Old[src]) {
			continue
		}
		for _, col := range targets {
			if !strings.EqualFold(col.SourceName(), src) {
				continue
			}
			ph, err := b.bind(col.Target, next)
			if err != nil {
				return "", nil, err
			}
			assignments = append(assignments, p.Quote(col.Target)+" = "+ph)
		}
	}
	if len(assignments) == 0 {
		return "", nil, nil
	}

	fmt.Fprintf(&b.sb, "UPDATE %s SET %s WHERE ",
		p.QuoteTable(m.Target), strings.Join(assignments, ", "))

	if ch.PKChanged {
		if err := b.pkConditions(m, ch.Data, ch.Old); err != nil {
			return "", nil, err
		}
		return b.result()
	}

	for i, src := range oldKeys {
		if i > 0 {
			b.sb.WriteString(" AND ")
		}
		target := types.CleanColumn(src)
		for _, col := range targets {
			if strings.EqualFold(col.SourceName(), src) {
				target = col.Target
				break
			}
		}
		// Columns absent from the target are bound without coercion.
		ct, _ := cols.Get(target)
		if err := b.cond(target, ct, ch.Old[src]); err != nil {
			return "", nil, err
		}
	}
	return b.result()
}

// BuildDelete returns a DELETE statement that locates the row by its
// primary key. An empty statement is returned if there is no data.
func BuildDelete(
	p types.Product, m *types.TableMapping, cols types.Columns, ch *types.SingleRowChange,
) (string, []any, error) {
	if len(ch.Data) == 0 {
		return "", nil, nil
	}
	b := newBuilder(p, m.Target, cols)
	fmt.Fprintf(&b.sb, "DELETE FROM %s WHERE ", p.QuoteTable(m.Target))
	if err := b.pkConditions(m, ch.Data, nil); err != nil {
		return "", nil, err
	}
	return b.result()
}

// BuildTruncate returns a statement that removes all rows from the
// target table.
func BuildTruncate(p types.Product, m *types.TableMapping) string {
	return p.TruncateStmt(m.Target)
}

// pkConditions appends predicates for the primary-key columns,
// preferring values from old, if present.
func (b *stmtBuilder) pkConditions(m *types.TableMapping, data, old map[string]any) error {
	if len(m.PK) == 0 {
		return errors.Errorf("no primary key defined for %s", m.Target)
	}
	for i, pk := range m.PK {
		if i > 0 {
			b.sb.WriteString(" AND ")
		}
		ct, ok := b.cols.Get(pk.Target)
		if !ok {
			return unmapped(pk.Target, m.Target)
		}
		src := pk.SourceName()
		value, found := old[src]
		if !found {
			value = data[src]
		}
		if err := b.cond(pk.Target, ct, value); err != nil {
			return err
		}
	}
	return nil
}

// sameValue compares values that may have been decoded into different
// representations.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return valueText(a) == valueText(b)
}

func valueText(v any) string {
	if buf, ok := v.([]byte); ok {
		return string(buf)
	}
	return fmt.Sprint(v)
}
