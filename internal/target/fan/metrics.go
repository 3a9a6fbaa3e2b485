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
	"github.com/cockroachdb/rdbsync/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flushDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fan_flush_duration_seconds",
		Help:    "the length of time it took to apply and commit a partition's changes",
		Buckets: metrics.LatencyBuckets,
	}, metrics.PartitionLabels)
	flushErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fan_flush_error_count",
		Help: "the number of times a partition failed to apply its changes",
	}, metrics.PartitionLabels)
	routedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fan_routed_item_count",
		Help: "the number of single-row changes routed to a partition",
	}, metrics.PartitionLabels)
	schemaInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fan_schema_invalidation_count",
		Help: "the number of schema-change events that invalidated cached table metadata",
	})
	unmappedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fan_unmapped_event_count",
		Help: "the number of change events skipped because no mapping was configured",
	})
)
