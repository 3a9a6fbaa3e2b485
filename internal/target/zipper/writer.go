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

// Package zipper records before and after images of rows in audit
// ("zipper") tables that accompany designated source tables.
package zipper

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/cockroachdb/rdbsync/internal/util/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TableSuffix is appended to the source table name to form the name of
// its audit table.
const TableSuffix = "_zipper"

const savepoint = "rdbsync_zipper"

var (
	//go:embed queries/*.tmpl
	queries embed.FS

	parsed = template.Must(template.New("").ParseFS(queries, "queries/*.tmpl"))
)

// createTemplates names the DDL template for each product.
var createTemplates = map[types.Product]string{
	types.ProductMySQL:      "mysql.tmpl",
	types.ProductOracle:     "oracle.tmpl",
	types.ProductPostgreSQL: "postgres.tmpl",
	types.ProductSQLite:     "sqlite.tmpl",
}

// Writer inserts audit rows for designated tables. The set of
// designated tables is fixed at construction.
//
// Audit tables are created on demand. Products whose DDL commits
// implicitly create them through the pool, outside of any partition
// transaction. Otherwise, the table is created in the partition's
// transaction and is only considered to exist once that transaction
// commits.
type Writer struct {
	create  *template.Template
	db      types.Querier
	now     func() time.Time
	product types.Product
	schema  string
	tables  map[string]struct{}

	mu struct {
		sync.Mutex
		ensured map[string]struct{}
	}
}

// New constructs a Writer for the target pool.
func New(cfg *Config, pool *types.TargetPool) (*Writer, error) {
	product := pool.Product
	tables, err := cfg.tableSet()
	if err != nil {
		return nil, err
	}
	name, ok := createTemplates[product]
	if !ok {
		return nil, errors.Errorf("audit tables are not supported for %s", product)
	}
	ret := &Writer{
		create:  parsed.Lookup(name),
		db:      pool,
		now:     time.Now,
		product: product,
		schema:  cfg.Schema,
		tables:  tables,
	}
	ret.mu.ensured = make(map[string]struct{})
	if len(tables) > 0 {
		log.WithField("tables", len(tables)).Info("audit trail enabled")
	}
	return ret, nil
}

// Enabled returns true if changes to the source table are audited.
func (w *Writer) Enabled(sourceTable string) bool {
	if w == nil {
		return false
	}
	_, ok := w.tables[sourceTable]
	return ok
}

// Forget causes the audit table to be re-created if absent the next
// time it is written to.
func (w *Writer) Forget(sourceTable string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.mu.ensured, sourceTable)
}

// Record writes an audit row for an insert or an update to a designated
// table, using the Executor's transaction. Failures are logged, rather
// than returned, so that auditing never blocks replication.
func (w *Writer) Record(
	ctx context.Context, exec types.Executor, m *types.TableMapping, ch *types.SingleRowChange,
) {
	if !w.Enabled(ch.Table) {
		return
	}
	switch ch.Kind {
	case types.KindInsert:
		if len(ch.Data) == 0 {
			return
		}
	case types.KindUpdate:
		if len(ch.Data) == 0 || len(ch.Old) == 0 {
			return
		}
	default:
		return
	}

	auditTable := w.Table(ch.Table)
	labels := metrics.TableValues(auditTable)
	created, err := w.record(ctx, exec, m, ch)
	if err != nil {
		w.Forget(ch.Table)
		zipperErrors.WithLabelValues(labels...).Inc()
		log.WithError(err).WithField("table", auditTable).Warn("could not record audit trail")
		return
	}
	if created {
		exec.OnCommit(func() { w.markEnsured(ch.Table) })
	}
	zipperWrites.WithLabelValues(labels...).Inc()
}

// Table returns the audit table for the source table.
func (w *Writer) Table(sourceTable string) types.Table {
	return types.Table{Database: w.schema, Name: sourceTable + TableSuffix}
}

// record inserts the audit row. It returns true if the audit table was
// created in the Executor's transaction.
func (w *Writer) record(
	ctx context.Context, exec types.Executor, m *types.TableMapping, ch *types.SingleRowChange,
) (created bool, err error) {
	// Implicit commits must not expose the partition's writes.
	if !w.product.TransactionalDDL() {
		ok, err := w.ensure(ctx, w.db, ch.Table)
		if err != nil {
			return false, err
		}
		if ok {
			w.markEnsured(ch.Table)
		}
	}

	q, err := exec.Querier(ctx)
	if err != nil {
		return false, err
	}

	// Isolate failures from the enclosing transaction.
	if w.product.StatementAbortsTx() {
		if _, err := q.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
			return false, errors.WithStack(err)
		}
		defer func() {
			stmt := "RELEASE SAVEPOINT " + savepoint
			if err != nil {
				stmt = "ROLLBACK TO SAVEPOINT " + savepoint
			}
			if _, spErr := q.ExecContext(ctx, stmt); spErr != nil && err == nil {
				err = errors.WithStack(spErr)
			}
		}()
	}

	if w.product.TransactionalDDL() {
		if created, err = w.ensure(ctx, q, ch.Table); err != nil {
			return false, err
		}
	}

	oldValue, updateValue, err := payload(ch)
	if err != nil {
		return false, err
	}

	tbl := w.Table(ch.Table)
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s) VALUES (%s, %s, %s, %s)",
		w.product.QuoteTable(tbl),
		w.product.Quote("old_value"),
		w.product.Quote("update_value"),
		w.product.Quote("primary_key"),
		w.product.Quote("create_time"),
		w.product.Placeholder(1),
		w.product.Placeholder(2),
		w.product.Placeholder(3),
		w.product.Placeholder(4))

	stmt, err := q.PrepareContext(ctx, insert)
	if err != nil {
		return false, errors.Wrap(err, insert)
	}
	defer func() { _ = stmt.Close() }()

	_, err = stmt.ExecContext(ctx, oldValue, updateValue, primaryKey(m, ch.Data), w.now().UTC())
	return created, errors.Wrap(err, insert)
}

// ensure executes the create-if-absent DDL for the audit table, unless
// the table is already known to exist. It returns true if the DDL was
// executed, in which case the caller must call markEnsured once the
// DDL is durable.
func (w *Writer) ensure(ctx context.Context, q types.Querier, sourceTable string) (bool, error) {
	w.mu.Lock()
	_, done := w.mu.ensured[sourceTable]
	w.mu.Unlock()
	if done {
		return false, nil
	}

	tbl := w.Table(sourceTable)
	var sb strings.Builder
	if err := w.create.Execute(&sb, map[string]any{
		"Table": w.product.QuoteTable(tbl),
	}); err != nil {
		return false, errors.WithStack(err)
	}
	if _, err := q.ExecContext(ctx, sb.String()); err != nil {
		return false, errors.Wrapf(err, "could not create audit table %s", tbl)
	}
	zipperCreates.WithLabelValues(metrics.TableValues(tbl)...).Inc()
	return true, nil
}

// markEnsured records that the audit table exists.
func (w *Writer) markEnsured(sourceTable string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mu.ensured[sourceTable] = struct{}{}
}

// payload returns the previous and new images of the row. For updates,
// the new image is restricted to the columns present in the previous
// image.
func payload(ch *types.SingleRowChange) (oldValue, updateValue string, _ error) {
	oldImage := map[string]any{}
	newImage := ch.Data
	if len(ch.Old) > 0 {
		oldImage = ch.Old
		newImage = make(map[string]any, len(ch.Old))
		for k := range ch.Old {
			newImage[k] = ch.Data[k]
		}
	}
	oldBuf, err := json.Marshal(oldImage)
	if err != nil {
		return "", "", errors.WithStack(err)
	}
	newBuf, err := json.Marshal(newImage)
	if err != nil {
		return "", "", errors.WithStack(err)
	}
	return string(oldBuf), string(newBuf), nil
}

// primaryKey joins the row's primary-key values.
func primaryKey(m *types.TableMapping, data map[string]any) string {
	parts := make([]string, len(m.PK))
	for i, pk := range m.PK {
		switch t := data[pk.SourceName()].(type) {
		case nil:
		case []byte:
			parts[i] = string(t)
		default:
			parts[i] = fmt.Sprint(t)
		}
	}
	return strings.Join(parts, ",")
}
