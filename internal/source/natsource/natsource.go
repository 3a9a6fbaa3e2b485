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

// Package natsource receives canal flat messages from a NATS subject.
package natsource

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/rdbsync/internal/source/flat"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// discardLog limits how often malformed messages are logged. The
// discard counter records all of them.
var discardLog = rate.Sometimes{Interval: time.Second}

// Conn subscribes to a subject as a member of a queue group, so that
// each message is delivered to only one member of the group.
type Conn struct {
	cfg        *Config
	nc         *nats.Conn
	newBackoff func() backoff.BackOff
	syncer     types.Syncer
}

// New validates the configuration and connects to the NATS server.
func New(cfg *Config, syncer types.Syncer) (*Conn, error) {
	if err := cfg.Preflight(); err != nil {
		return nil, err
	}
	opts := []nats.Option{
		nats.Name("rdbsync"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to NATS")
	}
	log.WithField("url", cfg.URL).Info("connected to NATS")

	return &Conn{
		cfg:        cfg,
		nc:         nc,
		newBackoff: defaultBackoff,
		syncer:     syncer,
	}, nil
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	return b
}

// Run receives messages until the context is canceled. The connection
// is closed when Run returns.
func (c *Conn) Run(ctx context.Context) error {
	defer c.nc.Close()

	msgs := make(chan *nats.Msg, c.cfg.BatchSize*2)
	sub, err := c.nc.ChanQueueSubscribe(c.cfg.Subject, c.cfg.Queue, msgs)
	if err != nil {
		return errors.Wrapf(err, "could not subscribe to %s", c.cfg.Subject)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			log.WithError(err).Warn("could not unsubscribe")
		}
	}()
	log.WithFields(log.Fields{
		"queue":   c.cfg.Queue,
		"subject": c.cfg.Subject,
	}).Info("subscribed")

	return c.consume(ctx, msgs)
}

// consume accumulates messages into batches. Since core NATS does not
// redeliver messages, a batch that cannot be applied is retried until
// it succeeds or the context is canceled.
func (c *Conn) consume(ctx context.Context, msgs <-chan *nats.Msg) error {
	var batch []*types.ChangeEvent
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := backoff.RetryNotify(
			func() error { return c.syncer.Sync(ctx, batch) },
			backoff.WithContext(c.newBackoff(), ctx),
			func(err error, wait time.Duration) {
				syncRetries.Inc()
				log.WithError(err).WithField("wait", wait).Warn("could not apply batch; will retry")
			})
		if err != nil {
			if ctx.Err() != nil {
				log.WithField("count", len(batch)).Warn("discarding unapplied batch at shutdown")
				return nil
			}
			return err
		}
		batchesApplied.Inc()
		batch = nil
		return nil
	}

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return flush()
			}
			messagesReceived.Inc()
			decoded, err := flat.Decode(msg.Data)
			if err != nil {
				// A malformed message will never succeed.
				messagesDiscarded.Inc()
				discardLog.Do(func() {
					log.WithError(err).WithField("subject", msg.Subject).Error("discarding message")
				})
				continue
			}
			if decoded == nil {
				continue
			}
			batch = append(batch, decoded.Event(c.cfg.Destination, c.cfg.Queue))
			if len(batch) >= c.cfg.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}

		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}

		case <-ctx.Done():
			return nil
		}
	}
}
