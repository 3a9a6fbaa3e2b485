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

// This file defines mirror types for the external, canal-style
// representation of a table mapping.

import (
	"strings"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// filePayload is the top-level structure of a mapping file.
type filePayload struct {
	DataSourceKey   string           `yaml:"dataSourceKey"`
	Destination     string           `yaml:"destination"`
	GroupID         string           `yaml:"groupId"`
	OuterAdapterKey string           `yaml:"outerAdapterKey"`
	Concurrent      bool             `yaml:"concurrent"`
	DBMapping       dbMappingPayload `yaml:"dbMapping"`
}

// dbMappingPayload describes the source and target tables. The column
// maps are decoded as nodes to preserve their order.
type dbMappingPayload struct {
	Database       string    `yaml:"database"`
	Table          string    `yaml:"table"`
	TargetDB       string    `yaml:"targetDb"`
	TargetTable    string    `yaml:"targetTable"`
	TargetPK       yaml.Node `yaml:"targetPk"`
	MapAll         bool      `yaml:"mapAll"`
	TargetColumns  yaml.Node `yaml:"targetColumns"`
	ExcludeColumns []string  `yaml:"excludeColumns"`
}

// Parse decodes a single mapping document. The name is used for
// diagnostics.
func Parse(name string, buf []byte) (*types.TableMapping, error) {
	var payload filePayload
	if err := yaml.Unmarshal(buf, &payload); err != nil {
		return nil, errors.Wrap(err, name)
	}
	db := &payload.DBMapping

	ret := &types.TableMapping{
		Destination: strings.TrimSpace(payload.Destination),
		GroupID:     strings.TrimSpace(payload.GroupID),
		Database:    db.Database,
		Table:       db.Table,
		MapAll:      db.MapAll,
		Exclude:     db.ExcludeColumns,
		Concurrent:  payload.Concurrent,
		Name:        name,
	}

	switch {
	case strings.Contains(db.TargetTable, "."):
		tbl, err := types.ParseTable(db.TargetTable)
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		ret.Target = tbl
	case db.TargetTable != "":
		ret.Target = types.Table{Database: db.TargetDB, Name: db.TargetTable}
	default:
		ret.Target = types.Table{Database: db.TargetDB, Name: db.Table}
	}

	var err error
	if ret.PK, err = columnPairs(&db.TargetPK); err != nil {
		return nil, errors.Wrapf(err, "%s: targetPk", name)
	}
	if ret.Columns, err = columnPairs(&db.TargetColumns); err != nil {
		return nil, errors.Wrapf(err, "%s: targetColumns", name)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// columnPairs decodes an ordered map of target to source column
// names. A null or empty source means the source column has the same
// name as the target.
func columnPairs(node *yaml.Node) ([]types.ColumnMapping, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
	case yaml.MappingNode:
		ret := make([]types.ColumnMapping, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
				return nil, errors.Errorf("line %d: expecting column names", key.Line)
			}
			target := strings.TrimSpace(key.Value)
			if target == "" {
				return nil, errors.Errorf("line %d: empty column name", key.Line)
			}
			var source string
			if value.Tag != "!!null" {
				source = strings.TrimSpace(value.Value)
			}
			ret = append(ret, types.ColumnMapping{Target: target, Source: source})
		}
		return ret, nil
	}
	return nil, errors.Errorf("line %d: expecting a map of column names", node.Line)
}
