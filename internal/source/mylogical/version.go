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

package mylogical

import (
	"regexp"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

// For example:
//
//	8.0.36-log
//	10.11.6-MariaDB-1:10.11.6+maria~ubu2204
var serverVerPattern = regexp.MustCompile(`^(\d+\.\d+\.\d+)`)

// minRowMetadataVersion is the first release of each flavor that
// writes column names into table-map events.
var minRowMetadataVersion = map[string]string{
	mysql.MariaDBFlavor: "v10.5.0",
	mysql.MySQLFlavor:   "v8.0.1",
}

// serverSemver extracts the semantic version from the server's
// reported @@version.
func serverSemver(version string) (string, bool) {
	found := serverVerPattern.FindStringSubmatch(version)
	if found == nil {
		return "", false
	}
	ret := "v" + found[1]
	return ret, semver.IsValid(ret)
}

// checkServerVersion returns an error if the server is too old to
// support binlog_row_metadata=FULL.
func checkServerVersion(flavor, version string) error {
	found, ok := serverSemver(version)
	if !ok {
		return errors.Errorf("could not extract semver from %q", version)
	}
	minVersion, ok := minRowMetadataVersion[flavor]
	if !ok {
		return errors.Errorf("unknown flavor %q", flavor)
	}
	if semver.Compare(found, minVersion) < 0 {
		return errors.Errorf(
			"%s %s cannot write binlog_row_metadata=FULL; %s or newer is required",
			flavor, found, minVersion)
	}
	return nil
}
