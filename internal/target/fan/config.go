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

package fan

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// DefaultPartitions is the number of concurrent partitions used when
// none is configured.
const DefaultPartitions = 3

// Config controls the behavior of a Fan.
type Config struct {
	Partitions int // The number of worker partitions.
}

// Bind adds configuration flags to the set.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.IntVar(&c.Partitions, "partitions", DefaultPartitions,
		"the number of concurrent partitions used to apply changes to concurrent tables")
}

// Preflight ensure that the configuration has sane defaults.
func (c *Config) Preflight() error {
	if c.Partitions == 0 {
		c.Partitions = DefaultPartitions
	}
	if c.Partitions < 0 {
		return errors.Errorf("partitions must be positive: %d", c.Partitions)
	}
	return nil
}
