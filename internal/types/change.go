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
	"strings"
	"time"
)

// Kind identifies the type of mutation carried by a ChangeEvent.
type Kind int

// The change kinds understood by the engine.
const (
	KindUnknown Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindTruncate
	KindDDL
)

var kindNames = [...]string{
	KindUnknown:  "UNKNOWN",
	KindInsert:   "INSERT",
	KindUpdate:   "UPDATE",
	KindDelete:   "DELETE",
	KindTruncate: "TRUNCATE",
	KindDDL:      "DDL",
}

// ParseKind returns the Kind named by the string. Matching is
// case-insensitive; unrecognized names return KindUnknown.
func ParseKind(s string) Kind {
	s = strings.TrimSpace(s)
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(k)
		}
	}
	// Upstream emitters use these spellings for schema changes.
	switch strings.ToUpper(s) {
	case "ALTER", "CREATE", "ERASE", "RENAME", "CINDEX", "DINDEX", "QUERY":
		return KindDDL
	}
	return KindUnknown
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// A ChangeEvent is one captured mutation. It may describe a statement
// that affected several rows, in which case Data (and Old, for
// updates) hold one entry per row.
type ChangeEvent struct {
	Kind        Kind
	Destination string // Logical destination (e.g. the canal instance).
	GroupID     string // Consumer group id.
	Database    string // Source database name.
	Table       string // Source table name.

	// Data contains the new row images. For deletions, it contains the
	// image of the deleted row.
	Data []map[string]any
	// Old is only populated for updates and is parallel to Data. Each
	// entry holds the previous values of the columns that changed.
	Old []map[string]any
	// PKChanged is set when an update modified primary-key columns.
	PKChanged bool
	// SQL holds the statement text of a DDL event.
	SQL string
	// Timestamp is informational only.
	Timestamp time.Time
}

// IsDDL returns true if the event is a schema change that carries its
// statement text.
func (e *ChangeEvent) IsDDL() bool {
	return e.Kind == KindDDL && strings.TrimSpace(e.SQL) != ""
}

// Explode returns one SingleRowChange per affected row. An event
// without any row data, such as a truncation, produces exactly one
// change with nil data.
func (e *ChangeEvent) Explode() []*SingleRowChange {
	if len(e.Data) == 0 {
		return []*SingleRowChange{e.single(nil, nil)}
	}
	ret := make([]*SingleRowChange, len(e.Data))
	for i, data := range e.Data {
		var old map[string]any
		if i < len(e.Old) {
			old = e.Old[i]
		}
		ret[i] = e.single(data, old)
	}
	return ret
}

func (e *ChangeEvent) single(data, old map[string]any) *SingleRowChange {
	return &SingleRowChange{
		Kind:        e.Kind,
		Destination: e.Destination,
		Database:    e.Database,
		Table:       e.Table,
		Data:        data,
		Old:         old,
		PKChanged:   e.PKChanged,
	}
}

// A SingleRowChange is one row's projection of a ChangeEvent.
type SingleRowChange struct {
	Kind        Kind
	Destination string
	Database    string
	Table       string
	Data        map[string]any
	Old         map[string]any
	PKChanged   bool
}

// A SyncItem is the unit of work enqueued to a partition.
type SyncItem struct {
	Mapping *TableMapping
	Change  *SingleRowChange
}
