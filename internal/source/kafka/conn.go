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
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Conn encapsulates the consumer group. If more than one process is
// started, the partitions within the topics are allocated to each
// process based on the chosen rebalance strategy.
type Conn struct {
	config  *Config
	group   sarama.ConsumerGroup
	handler *Handler
}

// New validates the configuration and joins the consumer group.
func New(ctx context.Context, config *Config, syncer types.Syncer) (*Conn, error) {
	if err := config.Preflight(ctx); err != nil {
		return nil, err
	}
	group, err := sarama.NewConsumerGroup(config.Brokers, config.Group, config.saramaConfig)
	if err != nil {
		return nil, errors.Wrap(err, "error creating consumer group client")
	}
	return newConn(config, group, syncer), nil
}

func newConn(config *Config, group sarama.ConsumerGroup, syncer types.Syncer) *Conn {
	return &Conn{
		config: config,
		group:  group,
		handler: &Handler{
			batchSize:     config.BatchSize,
			flushInterval: config.FlushInterval,
			group:         config.Group,
			syncer:        syncer,
		},
	}
}

// Run consumes messages until the context is canceled. Errors are
// retried with an exponential backoff.
func (c *Conn) Run(ctx context.Context) error {
	defer func() {
		if err := c.group.Close(); err != nil {
			log.WithError(err).Warn("could not close consumer group")
		}
	}()

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	for ctx.Err() == nil {
		err := c.group.Consume(ctx, c.config.Topics, c.handler)
		if err == nil {
			// A rebalance has occurred.
			b.Reset()
			continue
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		wait := b.NextBackOff()
		log.WithError(err).WithField("wait", wait).Warn("error while consuming messages; will retry")
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	return nil
}
