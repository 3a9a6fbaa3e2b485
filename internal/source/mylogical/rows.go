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

package mylogical

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/pkg/errors"
)

// tableInfo is learned from a TableMapEvent. Column names are only
// available if binlog_row_metadata=FULL is set on the source.
type tableInfo struct {
	database string
	table    string
	columns  []string
	types    []byte
	primary  map[int]bool
	unsigned map[int]bool
}

func newTableInfo(msg *replication.TableMapEvent) (*tableInfo, error) {
	if len(msg.ColumnName) != len(msg.ColumnType) {
		return nil, errors.Errorf(
			"%s.%s: all column names are required 'set global binlog_row_metadata = full'",
			msg.Schema, msg.Table)
	}
	ret := &tableInfo{
		database: string(msg.Schema),
		table:    string(msg.Table),
		columns:  make([]string, len(msg.ColumnName)),
		types:    msg.ColumnType,
		primary:  make(map[int]bool, len(msg.PrimaryKey)),
		unsigned: msg.UnsignedMap(),
	}
	for idx, name := range msg.ColumnName {
		ret.columns[idx] = string(name)
	}
	for _, idx := range msg.PrimaryKey {
		ret.primary[int(idx)] = true
	}
	return ret, nil
}

// image converts a binlog row into a column-name map.
func (t *tableInfo) image(row []any) (map[string]any, error) {
	if len(row) != len(t.columns) {
		return nil, errors.Errorf("%s.%s: expected %d columns, got %d",
			t.database, t.table, len(t.columns), len(row))
	}
	ret := make(map[string]any, len(row))
	for idx, v := range row {
		ret[t.columns[idx]] = t.value(idx, v)
	}
	return ret, nil
}

// value normalizes the decoded binlog representation. Byte slices
// become strings and unsigned integers, which the binlog decodes as
// signed values, are reinterpreted.
func (t *tableInfo) value(idx int, v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int8:
		if t.unsigned[idx] {
			return uint8(x)
		}
	case int16:
		if t.unsigned[idx] {
			return uint16(x)
		}
	case int32:
		if t.unsigned[idx] {
			if t.types[idx] == mysql.MYSQL_TYPE_INT24 {
				return uint32(x) & 0xffffff
			}
			return uint32(x)
		}
	case int64:
		if t.unsigned[idx] {
			return uint64(x)
		}
	}
	return v
}

// event converts the rows of a RowsEvent into a ChangeEvent. Updates
// arrive as before/after pairs; the previous image is reduced to the
// columns whose values changed.
func (t *tableInfo) event(
	kind types.Kind, rows [][]any, destination string, ts time.Time,
) (*types.ChangeEvent, error) {
	ret := &types.ChangeEvent{
		Kind:        kind,
		Destination: destination,
		Database:    t.database,
		Table:       t.table,
		Timestamp:   ts,
	}
	if kind != types.KindUpdate {
		ret.Data = make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			img, err := t.image(row)
			if err != nil {
				return nil, err
			}
			ret.Data = append(ret.Data, img)
		}
		return ret, nil
	}

	if len(rows)%2 != 0 {
		return nil, errors.Errorf("%s.%s: update rows must be paired, got %d",
			t.database, t.table, len(rows))
	}
	ret.Data = make([]map[string]any, 0, len(rows)/2)
	ret.Old = make([]map[string]any, 0, len(rows)/2)
	for i := 0; i < len(rows); i += 2 {
		before, err := t.image(rows[i])
		if err != nil {
			return nil, err
		}
		after, err := t.image(rows[i+1])
		if err != nil {
			return nil, err
		}
		old := make(map[string]any)
		for idx, name := range t.columns {
			if reflect.DeepEqual(before[name], after[name]) {
				continue
			}
			old[name] = before[name]
			if t.primary[idx] {
				ret.PKChanged = true
			}
		}
		ret.Data = append(ret.Data, after)
		ret.Old = append(ret.Old, old)
	}
	return ret, nil
}

func rowsKind(t replication.EventType) types.Kind {
	switch t {
	case replication.WRITE_ROWS_EVENTv0, replication.WRITE_ROWS_EVENTv1, replication.WRITE_ROWS_EVENTv2:
		return types.KindInsert
	case replication.UPDATE_ROWS_EVENTv0, replication.UPDATE_ROWS_EVENTv1, replication.UPDATE_ROWS_EVENTv2:
		return types.KindUpdate
	case replication.DELETE_ROWS_EVENTv0, replication.DELETE_ROWS_EVENTv1, replication.DELETE_ROWS_EVENTv2:
		return types.KindDelete
	default:
		return types.KindUnknown
	}
}

const (
	leadingComments = "(?is)^\\s*(?:/\\*.*?\\*/\\s*)*"
	tableName       = "(`[^`]+`|[\\w$]+)(?:\\s*\\.\\s*(`[^`]+`|[\\w$]+))?"
)

var (
	tableDDL = regexp.MustCompile(leadingComments +
		"(?:ALTER|CREATE|DROP|RENAME)\\s+(?:TEMPORARY\\s+)?TABLE\\s+(?:IF\\s+(?:NOT\\s+)?EXISTS\\s+)?" +
		tableName)
	truncateDDL = regexp.MustCompile(leadingComments + "TRUNCATE\\s+(?:TABLE\\s+)?" + tableName)
	commitStmt  = regexp.MustCompile(leadingComments + "COMMIT\\s*;?\\s*$")
)

// parseQuery classifies the statement carried by a QueryEvent. Only the
// first table named by a statement is returned. Unqualified table names
// are resolved against the schema in which the statement executed.
func parseQuery(query, schema string) (kind types.Kind, database, table string) {
	if m := truncateDDL.FindStringSubmatch(query); m != nil {
		database, table = splitName(m[1], m[2], schema)
		return types.KindTruncate, database, table
	}
	if m := tableDDL.FindStringSubmatch(query); m != nil {
		database, table = splitName(m[1], m[2], schema)
		return types.KindDDL, database, table
	}
	return types.KindUnknown, "", ""
}

func splitName(first, second, schema string) (database, table string) {
	first = strings.Trim(first, "`")
	if second == "" {
		return schema, first
	}
	return first, strings.Trim(second, "`")
}
