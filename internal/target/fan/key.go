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

package fan

import (
	"encoding/json"
	"fmt"
	"hash/maphash"

	"github.com/cockroachdb/rdbsync/internal/types"
)

// Use a fixed seed value when computing hashes so that a change for a
// specific key winds up in the same partition.
var commonSeed = maphash.MakeSeed()

// Route returns the partition that a change to a row must be applied
// in. Changes to the same primary key are always routed to the same
// partition. Tables that are not marked as concurrent always use the
// first partition.
//
// Key values are taken from the previous image of the row, if present,
// so that an update which changes the key is applied alongside the
// earlier changes to that row.
func Route(m *types.TableMapping, data, old map[string]any, partitions int) int {
	if m == nil || !m.Concurrent || partitions <= 1 {
		return 0
	}
	var sum uint64
	for _, pk := range m.PK {
		src := pk.SourceName()
		value, found := old[src]
		if !found {
			value = data[src]
		}
		if value == nil {
			continue
		}
		sum += hashValue(value)
	}
	return int(sum % uint64(partitions))
}

// hashValue hashes a canonical text encoding of the value. Values
// which encode to the same text, such as 1 and "1", hash identically.
func hashValue(value any) uint64 {
	var h maphash.Hash
	h.SetSeed(commonSeed)
	switch t := value.(type) {
	case string:
		_, _ = h.WriteString(t)
	case []byte:
		_, _ = h.Write(t)
	case json.Number:
		_, _ = h.WriteString(t.String())
	default:
		_, _ = fmt.Fprint(&h, t)
	}
	return h.Sum64()
}
