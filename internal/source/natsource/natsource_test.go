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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	failures int
	mu       sync.Mutex
	batches  [][]*types.ChangeEvent
}

func (s *fakeSyncer) Sync(_ context.Context, events []*types.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("transient")
	}
	s.batches = append(s.batches, events)
	return nil
}

func (s *fakeSyncer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func newTestConn(t *testing.T, syncer types.Syncer, batchSize int) *Conn {
	t.Helper()
	cfg := &Config{
		BatchSize:     batchSize,
		FlushInterval: time.Hour,
		Queue:         "g1",
		Subject:       "canal.example",
		URL:           "nats://localhost:4222",
	}
	require.NoError(t, cfg.Preflight())
	return &Conn{
		cfg:        cfg,
		newBackoff: func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) },
		syncer:     syncer,
	}
}

func message(body string) *nats.Msg {
	return &nats.Msg{Subject: "canal.example", Data: []byte(body)}
}

func TestConsume(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	syncer := &fakeSyncer{failures: 2}
	c := newTestConn(t, syncer, 2)

	msgs := make(chan *nats.Msg, 8)
	msgs <- message(`{"database":"mytest","table":"user","type":"INSERT","data":[{"id":"1"}]}`)
	msgs <- message(`not json`)
	msgs <- message(``)
	msgs <- message(`{"database":"mytest","table":"user","type":"DELETE","data":[{"id":"1"}]}`)
	msgs <- message(`{"database":"mytest","table":"user","type":"INSERT","data":[{"id":"2"}]}`)
	close(msgs)

	r.NoError(c.consume(context.Background(), msgs))
	r.Len(syncer.batches, 2)
	r.Len(syncer.batches[0], 2)
	r.Len(syncer.batches[1], 1)

	ev := syncer.batches[0][1]
	a.Equal(types.KindDelete, ev.Kind)
	a.Equal("canal.example", ev.Destination)
	a.Equal("g1", ev.GroupID)
	a.Equal("canal.example_mytest-user", ev.MappingKey(&types.Env{Mode: "tcp"}))
}

func TestConsumeInterval(t *testing.T) {
	r := require.New(t)

	syncer := &fakeSyncer{}
	c := newTestConn(t, syncer, 100)
	c.cfg.FlushInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs := make(chan *nats.Msg, 1)
	msgs <- message(`{"database":"mytest","table":"user","type":"INSERT","data":[{"id":"1"}]}`)

	done := make(chan error, 1)
	go func() { done <- c.consume(ctx, msgs) }()
	r.Eventually(func() bool { return syncer.count() == 1 }, 10*time.Second, 10*time.Millisecond)
	cancel()
	r.NoError(<-done)
}

func TestConsumeShutdownDuringRetry(t *testing.T) {
	r := require.New(t)

	syncer := &fakeSyncer{failures: 1 << 30}
	c := newTestConn(t, syncer, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	msgs := make(chan *nats.Msg, 1)
	msgs <- message(`{"database":"mytest","table":"user","type":"INSERT","data":[{"id":"1"}]}`)

	r.NoError(c.consume(ctx, msgs))
	r.Zero(syncer.count())
}

func TestPreflight(t *testing.T) {
	a := assert.New(t)

	cfg := &Config{URL: "nats://localhost:4222", Subject: "s", Queue: "q"}
	a.NoError(cfg.Preflight())
	a.Equal("s", cfg.Destination)
	a.Equal(DefaultBatchSize, cfg.BatchSize)

	a.ErrorContains((&Config{Subject: "s", Queue: "q"}).Preflight(), "url")
	a.ErrorContains((&Config{URL: "u", Queue: "q"}).Preflight(), "subject")
	a.ErrorContains((&Config{URL: "u", Subject: "s"}).Preflight(), "queue")
	a.ErrorContains((&Config{URL: "u", Subject: "s", Queue: "q", BatchSize: -1}).Preflight(), "batch size")
}
