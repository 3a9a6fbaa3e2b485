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

// Package version contains a command to print the build's
// bill-of-materials.
package version

import (
	"runtime"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// BuildVersion is set by the go linker at build time
var BuildVersion = "<unknown>"

// buildFields describes the binary and the revision it was built from.
func buildFields(bi *debug.BuildInfo) log.Fields {
	ret := log.Fields{
		"arch":    runtime.GOARCH,
		"build":   BuildVersion,
		"os":      runtime.GOOS,
		"runtime": runtime.Version(),
	}
	if bi == nil {
		return ret
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			ret["revision"] = s.Value
		case "vcs.modified":
			ret["modified"] = s.Value
		}
	}
	return ret
}

// Command returns a command to print the build's bill-of-materials.
func Command() *cobra.Command {
	var deps bool
	cmd := &cobra.Command{
		Args:  cobra.NoArgs,
		Short: "print the build's version and, optionally, its dependencies",
		Use:   "version",
		RunE: func(cmd *cobra.Command, args []string) error {
			bi, _ := debug.ReadBuildInfo()
			log.WithFields(buildFields(bi)).Info("rdbsync")
			if !deps || bi == nil {
				return nil
			}
			for _, m := range bi.Deps {
				for m.Replace != nil {
					m = m.Replace
				}
				log.WithFields(log.Fields{
					"sum":     m.Sum,
					"version": m.Version,
				}).Info(m.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&deps, "deps", false, "also print the module dependencies")
	return cmd
}
