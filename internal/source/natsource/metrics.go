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

package natsource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nats_batches_applied_count",
		Help: "the number of batches of messages that were applied",
	})
	messagesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nats_messages_discarded_count",
		Help: "the number of messages that could not be decoded",
	})
	messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nats_messages_received_count",
		Help: "the number of messages received from the subject",
	})
	syncRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nats_sync_retry_count",
		Help: "the number of times a batch was retried",
	})
)
