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

package batch

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// DefaultStatementCacheSize is the number of prepared statements
// retained per partition connection.
const DefaultStatementCacheSize = 128

// Config controls the behavior of partition executors.
type Config struct {
	StatementCacheSize int // Prepared statements retained per connection.
}

// Bind adds configuration flags to the set.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.IntVar(&c.StatementCacheSize, "statementCacheSize", DefaultStatementCacheSize,
		"the number of prepared statements to retain for each partition's connection")
}

// Preflight ensure that the configuration has sane defaults.
func (c *Config) Preflight() error {
	if c.StatementCacheSize == 0 {
		c.StatementCacheSize = DefaultStatementCacheSize
	}
	if c.StatementCacheSize < 0 {
		return errors.Errorf("statementCacheSize must be positive: %d", c.StatementCacheSize)
	}
	return nil
}
