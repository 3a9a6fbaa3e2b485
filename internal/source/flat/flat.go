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

// Package flat decodes the JSON "flat message" encoding of change
// events that canal publishes to message queues.
package flat

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
)

// Message is a single flat message. Row values are usually encoded as
// strings, with SQL NULL encoded as a JSON null.
type Message struct {
	ID        int64             `json:"id"`
	Database  string            `json:"database"`
	Table     string            `json:"table"`
	PKNames   []string          `json:"pkNames"`
	IsDDL     bool              `json:"isDdl"`
	Type      string            `json:"type"`
	ES        int64             `json:"es"` // Source execution time, in milliseconds.
	TS        int64             `json:"ts"` // Publication time, in milliseconds.
	SQL       string            `json:"sql"`
	SQLType   map[string]int    `json:"sqlType,omitempty"`
	MySQLType map[string]string `json:"mysqlType,omitempty"`
	Data      []map[string]any  `json:"data"`
	Old       []map[string]any  `json:"old"`
}

// Decode parses a message. Numeric values are decoded as json.Number.
// Empty input returns a nil Message.
func Decode(buf []byte) (*Message, error) {
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	ret := &Message{}
	if err := dec.Decode(ret); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not decode flat message")
	}
	return ret, nil
}

// Event converts the message into a ChangeEvent. The destination and
// group identify the queue that the message was received from.
func (m *Message) Event(destination, groupID string) *types.ChangeEvent {
	kind := types.ParseKind(m.Type)
	// Truncations are reported as DDL but are applied as changes.
	if m.IsDDL && kind != types.KindTruncate {
		kind = types.KindDDL
	}
	ts := m.ES
	if ts == 0 {
		ts = m.TS
	}
	ret := &types.ChangeEvent{
		Kind:        kind,
		Destination: destination,
		GroupID:     groupID,
		Database:    m.Database,
		Table:       m.Table,
		Data:        m.Data,
		SQL:         m.SQL,
		PKChanged:   m.pkChanged(),
	}
	if kind == types.KindUpdate {
		ret.Old = m.Old
	}
	if ts > 0 {
		ret.Timestamp = time.UnixMilli(ts).UTC()
	}
	return ret
}

// pkChanged returns true if a previous row image contains a primary
// key column. Only changed columns appear in the previous image.
func (m *Message) pkChanged() bool {
	for _, old := range m.Old {
		for _, pk := range m.PKNames {
			if _, found := old[pk]; found {
				return true
			}
		}
	}
	return false
}
