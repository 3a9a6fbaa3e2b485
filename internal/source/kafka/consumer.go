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
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/rdbsync/internal/source/flat"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var _ sarama.ConsumerGroupHandler = (*Handler)(nil)

// Handler applies the flat messages of a claimed topic partition.
// Messages are marked as consumed only after they have been applied.
type Handler struct {
	batchSize     int
	flushInterval time.Duration
	group         string
	syncer        types.Syncer
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *Handler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim
// goroutines have exited.
func (h *Handler) Cleanup(session sarama.ConsumerGroupSession) error {
	if err := session.Context().Err(); err != nil {
		log.WithError(err).Debug("session terminated")
	}
	return nil
}

// ConsumeClaim processes new messages for the topic/partition
// specified in the claim.
func (h *Handler) ConsumeClaim(
	session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim,
) error {
	log.WithFields(log.Fields{
		"offset":    claim.InitialOffset(),
		"partition": claim.Partition(),
		"topic":     claim.Topic(),
	}).Debug("consuming claim")

	labels := []string{claim.Topic(), strconv.Itoa(int(claim.Partition()))}
	ctx := session.Context()
	var batch []*types.ChangeEvent
	var last *sarama.ConsumerMessage
	var pending int

	flush := func() error {
		if last == nil {
			return nil
		}
		if len(batch) > 0 {
			if err := h.syncer.Sync(ctx, batch); err != nil {
				messagesErrorCount.WithLabelValues(labels...).Add(float64(pending))
				return err
			}
		}
		session.MarkMessage(last, "")
		messagesSuccessCount.WithLabelValues(labels...).Add(float64(pending))
		batch, last, pending = nil, nil, 0
		return nil
	}

	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	// The ConsumeClaim method is already called from a goroutine.
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return flush()
			}
			messagesReceivedCount.WithLabelValues(labels...).Inc()
			decoded, err := flat.Decode(msg.Value)
			if err != nil {
				messagesErrorCount.WithLabelValues(labels...).Inc()
				return errors.Wrapf(err, "%s@%d offset %d", msg.Topic, msg.Partition, msg.Offset)
			}
			if decoded != nil {
				batch = append(batch, decoded.Event(msg.Topic, h.group))
			}
			last = msg
			pending++
			if len(batch) >= h.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}

		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}

		// Must return when the session is done, to allow rebalancing.
		case <-ctx.Done():
			return nil
		}
	}
}
