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
	"testing"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/stretchr/testify/assert"
)

func concurrentMapping() *types.TableMapping {
	return &types.TableMapping{
		Database:   "src",
		Table:      "orders",
		Target:     types.Table{Name: "orders"},
		PK:         []types.ColumnMapping{{Target: "id"}, {Target: "region", Source: "rgn"}},
		Concurrent: true,
	}
}

func TestRouteForcedToFirstPartition(t *testing.T) {
	a := assert.New(t)

	m := concurrentMapping()
	m.Concurrent = false
	for i := 0; i < 100; i++ {
		a.Equal(0, Route(m, map[string]any{"id": i, "rgn": "eu"}, nil, 8))
	}

	m.Concurrent = true
	a.Equal(0, Route(m, map[string]any{"id": 12345}, nil, 1))
	a.Equal(0, Route(m, map[string]any{"id": 12345}, nil, 0))
	a.Equal(0, Route(nil, map[string]any{"id": 12345}, nil, 8))
	// No key values.
	a.Equal(0, Route(m, map[string]any{"other": 1}, nil, 8))
}

func TestRouteDeterminism(t *testing.T) {
	a := assert.New(t)
	m := concurrentMapping()
	const partitions = 7

	for i := 0; i < 100; i++ {
		data := map[string]any{"id": i, "rgn": "eu", "status": "A"}
		idx := Route(m, data, nil, partitions)
		a.GreaterOrEqual(idx, 0)
		a.Less(idx, partitions)

		// Non-key columns do not affect routing.
		a.Equal(idx, Route(m, map[string]any{"id": i, "rgn": "eu", "status": "B"}, nil, partitions))
		// Equivalent representations are co-located.
		a.Equal(idx, Route(m, map[string]any{"id": fmt.Sprint(i), "rgn": []byte("eu")}, nil, partitions))
		a.Equal(idx, Route(m, map[string]any{"id": json.Number(fmt.Sprint(i)), "rgn": "eu"}, nil, partitions))
		// The previous key is preferred.
		a.Equal(idx, Route(m,
			map[string]any{"id": i + 1000, "rgn": "eu"},
			map[string]any{"id": i}, partitions))
	}
}

func TestRouteSpreads(t *testing.T) {
	m := concurrentMapping()
	const partitions = 4

	counts := make([]int, partitions)
	for i := 0; i < 1000; i++ {
		counts[Route(m, map[string]any{"id": i, "rgn": "us"}, nil, partitions)]++
	}
	for idx, count := range counts {
		assert.NotZero(t, count, "partition %d", idx)
	}
}
