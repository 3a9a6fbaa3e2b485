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
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Defaults for flags.
const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = time.Second
	DefaultReconnectWait = 2 * time.Second
)

// Config contains the configuration necessary for receiving flat
// messages from a NATS subject.
type Config struct {
	BatchSize     int           // How many messages to accumulate before applying them.
	Destination   string        // The destination used in mapping keys; defaults to Subject.
	FlushInterval time.Duration // Maximum delay before applying a partial batch.
	MaxReconnects int           // Passed to nats.MaxReconnects; negative retries forever.
	Queue         string        // The queue group, also used as the mapping group id.
	ReconnectWait time.Duration // Delay between reconnection attempts.
	Subject       string        // The subject to subscribe to.
	URL           string        // The NATS server URL.
}

// Bind adds flags to the set.
func (c *Config) Bind(f *pflag.FlagSet) {
	f.IntVar(&c.BatchSize, "natsBatchSize", DefaultBatchSize,
		"messages to accumulate before applying them to the target")
	f.StringVar(&c.Destination, "natsDestination", "",
		"the destination used to look up mappings; defaults to the subject")
	f.DurationVar(&c.FlushInterval, "natsFlushInterval", DefaultFlushInterval,
		"the maximum delay before applying a partial batch")
	f.IntVar(&c.MaxReconnects, "natsMaxReconnects", -1,
		"the maximum number of reconnection attempts; negative values retry forever")
	f.StringVar(&c.Queue, "natsQueue", "", "the NATS queue group to join")
	f.DurationVar(&c.ReconnectWait, "natsReconnectWait", DefaultReconnectWait,
		"the delay between reconnection attempts")
	f.StringVar(&c.Subject, "natsSubject", "", "the NATS subject that carries flat messages")
	f.StringVar(&c.URL, "natsURL", "nats://127.0.0.1:4222", "the NATS server URL")
}

// Preflight ensure that the configuration has sane defaults.
func (c *Config) Preflight() error {
	if c.URL == "" {
		return errors.New("no NATS url was configured")
	}
	if c.Subject == "" {
		return errors.New("no NATS subject was configured")
	}
	if c.Queue == "" {
		return errors.New("no NATS queue group was configured")
	}
	if c.Destination == "" {
		c.Destination = c.Subject
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchSize < 0 {
		return errors.Errorf("batch size must be positive: %d", c.BatchSize)
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = DefaultReconnectWait
	}
	return nil
}
