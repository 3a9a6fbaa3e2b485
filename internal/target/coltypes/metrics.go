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

package coltypes

import (
	"github.com/cockroachdb/rdbsync/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coltypes_cache_hits_total",
		Help: "the number of column-type lookups served from the cache",
	}, metrics.TableLabels)
	cacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coltypes_cache_invalidations_total",
		Help: "the number of cached column-type entries removed by schema changes",
	}, metrics.TableLabels)
	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coltypes_cache_misses_total",
		Help: "the number of times target column types were read from the database",
	}, metrics.TableLabels)
)
