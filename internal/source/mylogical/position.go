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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/pkg/errors"
)

// A position identifies a point in the source's binlog. It is stored
// in the position file as "name:offset".
type position struct {
	Name string
	Pos  uint32
}

// IsZero returns true if the position does not name a binlog file.
func (p position) IsZero() bool { return p.Name == "" }

func (p position) String() string { return fmt.Sprintf("%s:%d", p.Name, p.Pos) }

func (p position) mysql() mysql.Position { return mysql.Position{Name: p.Name, Pos: p.Pos} }

// parsePosition parses the "name:offset" format. The offset is
// separated by the last colon, so that file names may contain colons.
func parsePosition(s string) (position, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return position{}, nil
	}
	idx := strings.LastIndexByte(s, ':')
	if idx <= 0 || idx == len(s)-1 {
		return position{}, errors.Errorf("malformed binlog position %q", s)
	}
	pos, err := strconv.ParseUint(s[idx+1:], 10, 32)
	if err != nil {
		return position{}, errors.Wrapf(err, "malformed binlog position %q", s)
	}
	return position{Name: s[:idx], Pos: uint32(pos)}, nil
}

// readPosition loads the position file. A missing file yields a zero
// position.
func readPosition(path string) (position, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return position{}, nil
	}
	if err != nil {
		return position{}, errors.WithStack(err)
	}
	return parsePosition(string(buf))
}

// writePosition replaces the position file, so that a crash never
// leaves a partially-written position behind.
func writePosition(path string, p position) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(p.String()); err != nil {
		_ = tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp.Name(), path))
}
