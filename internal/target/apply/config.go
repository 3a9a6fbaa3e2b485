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

package apply

import (
	"github.com/spf13/pflag"
)

// Config controls how rows are written to the target.
type Config struct {
	// SkipDuplicates suppresses unique-constraint violations when
	// inserting rows, since a replayed insert is expected to collide
	// with the row that it previously created.
	SkipDuplicates bool
}

// Bind adds configuration flags to the set.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.BoolVar(&c.SkipDuplicates, "skipDuplicates", true,
		"ignore duplicate-key errors when inserting rows")
}

// Preflight ensure that the configuration has sane defaults.
func (c *Config) Preflight() error {
	return nil
}
