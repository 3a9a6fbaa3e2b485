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

package mapping

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config controls where mappings are loaded from.
type Config struct {
	Dir  string // A directory of mapping files.
	Mode string // The deployment mode, used to construct mapping keys.
}

// Bind adds configuration flags to the set.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.Dir, "mappingDir", "",
		"a directory containing .yml table-mapping files")
	flags.StringVar(&c.Mode, "mode", "tcp",
		"the adapter mode; modes other than tcp include the consumer group in mapping keys")
}

// Preflight ensure that the configuration has sane defaults.
func (c *Config) Preflight() error {
	if c.Dir == "" {
		return errors.New("mappingDir must be set")
	}
	return nil
}
