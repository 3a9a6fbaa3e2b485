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

package zipper

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/ini.v1"
)

// DefaultSchema is the database that holds audit tables.
const DefaultSchema = "odslinks"

// propertiesKey is the key in the properties file that lists audited
// tables.
const propertiesKey = "zipper_table"

// Config controls the audit trail writer.
type Config struct {
	// PropertiesFile is an ini or Java-properties file that contains a
	// zipper_table key with a comma-separated list of source tables.
	PropertiesFile string
	// Schema is the database or schema in which the audit tables are
	// created. It may be empty to use the connection's default.
	Schema string
	// Tables is a list of source table names to audit, in addition to
	// those in PropertiesFile.
	Tables []string
}

// Bind adds configuration flags to the set.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.PropertiesFile, "zipperProperties", "",
		"a properties file whose zipper_table key lists the source tables to audit")
	flags.StringVar(&c.Schema, "zipperSchema", DefaultSchema,
		"the database or schema in which to create audit tables")
	flags.StringSliceVar(&c.Tables, "zipperTable", nil,
		"the name of a source table to audit; may be repeated")
}

// Preflight ensure that the configuration has sane defaults.
func (c *Config) Preflight() error {
	for _, tbl := range c.Tables {
		if strings.TrimSpace(tbl) == "" {
			return errors.New("empty zipperTable name")
		}
	}
	return nil
}

// tableSet loads the set of audited tables.
func (c *Config) tableSet() (map[string]struct{}, error) {
	ret := make(map[string]struct{})
	add := func(names []string) {
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				ret[name] = struct{}{}
			}
		}
	}
	add(c.Tables)

	if c.PropertiesFile != "" {
		f, err := ini.Load(c.PropertiesFile)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load %s", c.PropertiesFile)
		}
		add(f.Section(ini.DefaultSection).Key(propertiesKey).Strings(","))
	}
	return ret, nil
}
