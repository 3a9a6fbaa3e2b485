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
	"github.com/cockroachdb/rdbsync/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	applyDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apply_deletes_total",
		Help: "the number of delete statements executed",
	}, metrics.TableLabels)
	applyDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apply_duplicates_total",
		Help: "the number of inserts skipped due to duplicate keys",
	}, metrics.TableLabels)
	applyDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apply_duration_seconds",
		Help:    "the length of time it took to successfully apply a change",
		Buckets: metrics.LatencyBuckets,
	}, metrics.TableLabels)
	applyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apply_errors_total",
		Help: "the number of times an error was encountered while applying changes",
	}, metrics.TableLabels)
	applyInserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apply_inserts_total",
		Help: "the number of insert statements executed",
	}, metrics.TableLabels)
	applySkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apply_skipped_total",
		Help: "the number of changes that did not require a statement",
	}, metrics.TableLabels)
	applyTruncates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apply_truncates_total",
		Help: "the number of truncate statements executed",
	}, metrics.TableLabels)
	applyUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apply_updates_total",
		Help: "the number of update statements executed",
	}, metrics.TableLabels)
)
