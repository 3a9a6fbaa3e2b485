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

package stdpool

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	productLabels = []string{"product"}

	poolAcquireCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_acquire_wait_count",
		Help: "the total number of times we waited to acquire a connection from the pool",
	}, productLabels)
	poolAcquireDelay = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_acquire_wait_seconds",
		Help: "the total amount of time spent waiting for connection acquisition",
	}, productLabels)
	poolAcquiredCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pool_acquired_connection_count",
		Help: "the number of in-use database connections",
	}, productLabels)
	poolIdleCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pool_idle_connection_count",
		Help: "the number of idle database connections",
	}, productLabels)
	poolMaxCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pool_max_connection_count",
		Help: "the maximum number of connections in the pool",
	}, productLabels)
)

// PublishMetrics creates prometheus metrics to export information
// about the given pool. The cancellation function must be called to
// stop the reporting goroutine before the pool is shut down.
//
// Calling this function with a nil pointer is a no-op.
func PublishMetrics(db *sql.DB, product string) (cancel func()) {
	if db == nil {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	// Update pool stats gauges at 1 QPS.
	go func() {
		acquireCount := poolAcquireCount.WithLabelValues(product)
		acquireDelay := poolAcquireDelay.WithLabelValues(product)
		acquiredCount := poolAcquiredCount.WithLabelValues(product)
		idleCount := poolIdleCount.WithLabelValues(product)
		maxCount := poolMaxCount.WithLabelValues(product)

		// These metrics are reported to us as counters, so we need to
		// compute the deltas to pass them into the API.
		var prevWaitCount int64
		var prevWaitDuration time.Duration

		for {
			stat := db.Stats()

			acquireCount.Add(float64(stat.WaitCount - prevWaitCount))
			prevWaitCount = stat.WaitCount

			acquireDelay.Add((stat.WaitDuration - prevWaitDuration).Seconds())
			prevWaitDuration = stat.WaitDuration

			acquiredCount.Set(float64(stat.InUse))
			idleCount.Set(float64(stat.Idle))
			maxCount.Set(float64(stat.MaxOpenConnections))

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()
	return cancel
}
