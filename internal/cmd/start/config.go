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

package start

import (
	"time"

	"github.com/cockroachdb/rdbsync/internal/source/kafka"
	"github.com/cockroachdb/rdbsync/internal/source/mylogical"
	"github.com/cockroachdb/rdbsync/internal/source/natsource"
	"github.com/cockroachdb/rdbsync/internal/target/apply"
	"github.com/cockroachdb/rdbsync/internal/target/batch"
	"github.com/cockroachdb/rdbsync/internal/target/fan"
	"github.com/cockroachdb/rdbsync/internal/target/mapping"
	"github.com/cockroachdb/rdbsync/internal/target/zipper"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// The supported change-event sources.
const (
	SourceKafka = "kafka"
	SourceMySQL = "mysql"
	SourceNATS  = "nats"
)

// DefaultStartupTimeout is how long to wait for the target to accept
// connections.
const DefaultStartupTimeout = 2 * time.Minute

// Config contains the configuration of every component used by the
// start command.
type Config struct {
	Apply   apply.Config
	Batch   batch.Config
	Fan     fan.Config
	Kafka   kafka.Config
	Mapping mapping.Config
	MySQL   mylogical.Config
	NATS    natsource.Config
	Zipper  zipper.Config

	// MetricsAddr is a host:port to serve metrics and health checks.
	MetricsAddr string
	// Source selects where change events are read from.
	Source string
	// StartupTimeout bounds the wait for the target to become available.
	StartupTimeout time.Duration
	// TargetConn is a URL whose scheme selects the target product.
	TargetConn string
	// TargetPoolSize is the maximum number of target connections. It
	// defaults to one more than the partition count.
	TargetPoolSize int
}

// Bind adds flags to the set.
func (c *Config) Bind(f *pflag.FlagSet) {
	c.Apply.Bind(f)
	c.Batch.Bind(f)
	c.Fan.Bind(f)
	c.Kafka.Bind(f)
	c.Mapping.Bind(f)
	c.MySQL.Bind(f)
	c.NATS.Bind(f)
	c.Zipper.Bind(f)

	f.StringVar(&c.MetricsAddr, "metricsAddr", "",
		"a host:port to serve metrics from at /_/varz")
	f.StringVar(&c.Source, "source", SourceMySQL,
		"the change-event source [ kafka, mysql, nats ]")
	f.DurationVar(&c.StartupTimeout, "startupTimeout", DefaultStartupTimeout,
		"how long to wait for the target database to become available")
	f.StringVar(&c.TargetConn, "targetConn", "",
		"the target database's connection string; the scheme selects mysql, pg, ora, or sqlite")
	f.IntVar(&c.TargetPoolSize, "targetMaxPoolSize", 0,
		"the maximum number of target connections; defaults to one more than --partitions")
}

// Preflight ensure that the configuration has sane defaults. Only the
// selected source is validated; the kafka source is validated when it
// is started, since that requires a context.
func (c *Config) Preflight() error {
	if c.TargetConn == "" {
		return errors.New("targetConn must be set")
	}
	if err := c.Apply.Preflight(); err != nil {
		return err
	}
	if err := c.Batch.Preflight(); err != nil {
		return err
	}
	if err := c.Fan.Preflight(); err != nil {
		return err
	}
	if err := c.Mapping.Preflight(); err != nil {
		return err
	}
	if err := c.Zipper.Preflight(); err != nil {
		return err
	}
	switch c.Source {
	case SourceKafka:
	case SourceMySQL:
		if err := c.MySQL.Preflight(); err != nil {
			return err
		}
	case SourceNATS:
		if err := c.NATS.Preflight(); err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown source %q", c.Source)
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.TargetPoolSize <= 0 {
		c.TargetPoolSize = c.Fan.Partitions + 1
	}
	if c.TargetPoolSize < c.Fan.Partitions {
		return errors.Errorf("targetMaxPoolSize %d is smaller than the partition count %d",
			c.TargetPoolSize, c.Fan.Partitions)
	}
	return nil
}
