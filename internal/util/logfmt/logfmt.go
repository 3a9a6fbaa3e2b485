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

// Package logfmt adds additional details to log messages with errors.
package logfmt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	detailKey = "detail"
	sqlKey    = "sql"
)

// Wrap adds a workaround for there being no support for automatically
// printing the details of an error to expose the stack trace. This
// formatter adds an extra detail field to log entries that contain an
// ErrorKey. If the error to be formatted is a target-database error,
// its subfields will also be added to the entry.
//
// https://github.com/sirupsen/logrus/issues/895
func Wrap(f log.Formatter) log.Formatter {
	return &detailer{f}
}

type detailer struct {
	log.Formatter
}

// sqlDetail represents a database error in a way that plays nicely
// with the various formatters.
type sqlDetail struct {
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
	Detail         string `json:"detail,omitempty"`
	Hint           string `json:"hint,omitempty"`
	SchemaName     string `json:"schemaName,omitempty"`
	TableName      string `json:"tableName,omitempty"`
	ColumnName     string `json:"columnName,omitempty"`
	ConstraintName string `json:"constraintName,omitempty"`
}

func (s *sqlDetail) String() string {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetIndent("", " ")
	_ = enc.Encode(s)
	return sb.String()
}

// detailFor returns nil if the error did not originate in a database
// driver.
func detailFor(err error) *sqlDetail {
	if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) {
		return &sqlDetail{
			Code:           pgErr.Code,
			Message:        pgErr.Message,
			Detail:         pgErr.Detail,
			Hint:           pgErr.Hint,
			SchemaName:     pgErr.SchemaName,
			TableName:      pgErr.TableName,
			ColumnName:     pgErr.ColumnName,
			ConstraintName: pgErr.ConstraintName,
		}
	}
	if myErr := (*mysql.MySQLError)(nil); errors.As(err, &myErr) {
		return &sqlDetail{
			Code:    fmt.Sprintf("%d", myErr.Number),
			Message: myErr.Message,
		}
	}
	return nil
}

// Format implements log.Formatter.
func (d *detailer) Format(e *log.Entry) ([]byte, error) {
	messageCount.WithLabelValues(e.Level.String()).Inc()
	if e.Data != nil {
		if err, ok := e.Data[log.ErrorKey].(error); ok {
			// Don't overwrite anywhere there may already be a detail key.
			if _, existing := e.Data[detailKey]; !existing {
				e.Data[detailKey] = fmt.Sprintf("%+v", err)
			}
			if s := detailFor(err); s != nil {
				e.Data[sqlKey] = s
			}
		}
	}
	return d.Formatter.Format(e)
}
