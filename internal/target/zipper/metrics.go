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

package zipper

import (
	"github.com/cockroachdb/rdbsync/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	zipperCreates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zipper_table_ensures_total",
		Help: "the number of times an audit table was created if absent",
	}, metrics.TableLabels)
	zipperErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zipper_errors_total",
		Help: "the number of audit rows that could not be written",
	}, metrics.TableLabels)
	zipperWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zipper_writes_total",
		Help: "the number of audit rows written",
	}, metrics.TableLabels)
)
