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

package stmtcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// The caches are pinned to partition connections, which are reused
// across syncs, so the counters describe all partitions in aggregate.
var (
	stmtCacheDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partition_stmt_cache_close_errors_total",
		Help: "the number of evicted partition statements whose Close returned an error",
	})
	stmtCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partition_stmt_cache_hits_total",
		Help: "the number of partition statements reused from a connection's cache",
	})
	stmtCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partition_stmt_cache_misses_total",
		Help: "the number of partition statements prepared against the target",
	})
	stmtCacheReleases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partition_stmt_cache_evictions_total",
		Help: "the number of partition statements evicted and closed",
	})
)
