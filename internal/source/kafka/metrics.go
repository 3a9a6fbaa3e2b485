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

package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var labels = []string{"topic", "partition"}

var (
	messagesErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_messages_error_count",
		Help: "the total number of messages that encountered an error during processing",
	}, labels)
	messagesReceivedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_messages_received_count",
		Help: "the total number of messages received from the source",
	}, labels)
	messagesSuccessCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_messages_success_count",
		Help: "the total number of messages that were successfully applied",
	}, labels)
	tokenErrorCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kafka_oauth_token_error_count",
		Help: "the total number of OAUTHBEARER tokens that could not be obtained",
	})
)
