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

// Package mylogical reads row-based binlog events from a MySQL or
// MariaDB source and applies them through a Syncer.
package mylogical

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/go-mysql-org/go-mysql/client"
	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// eventSource is implemented by *replication.BinlogStreamer.
type eventSource interface {
	GetEvent(ctx context.Context) (*replication.BinlogEvent, error)
}

// Conn encapsulates all wire-connection behavior. Row changes are
// accumulated per transaction and complete transactions are applied in
// batches. The binlog position is saved only after a batch has been
// applied, so a restart may replay, but never skip, transactions.
type Conn struct {
	cfg    *Config
	flavor string
	syncer types.Syncer

	// State of the current replication stream.
	batch   []*types.ChangeEvent // Committed transactions to apply.
	dirty   bool                 // The position has not been saved.
	file    string               // The binlog file being read.
	pending []*types.ChangeEvent // The open transaction.
	pos     position             // The end of the last committed transaction.
	rows    int                  // The number of rows in batch.
	tables  map[uint64]*tableInfo
}

// New validates the configuration and verifies that the source is
// configured for row-based replication.
func New(cfg *Config, syncer types.Syncer) (*Conn, error) {
	if err := cfg.Preflight(); err != nil {
		return nil, err
	}
	flavor, err := getFlavor(cfg)
	if err != nil {
		return nil, err
	}
	return &Conn{
		cfg:    cfg,
		flavor: flavor,
		syncer: syncer,
	}, nil
}

// Run streams binlog events until the context is canceled. Broken
// connections are retried with an exponential backoff, resuming from
// the last saved position.
func (c *Conn) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	for ctx.Err() == nil {
		err := c.stream(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		wait := b.NextBackOff()
		log.WithError(err).WithField("wait", wait).Warn("binlog stream interrupted; will retry")
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	return nil
}

func (c *Conn) stream(ctx context.Context) error {
	start, err := c.startPosition()
	if err != nil {
		dialFailureCount.Inc()
		return err
	}
	syncer := replication.NewBinlogSyncer(c.cfg.syncerConfig(c.flavor))
	defer syncer.Close()

	streamer, err := syncer.StartSync(start.mysql())
	if err != nil {
		dialFailureCount.Inc()
		return errors.Wrapf(err, "could not start replication from %s", start)
	}
	dialSuccessCount.Inc()
	log.WithField("position", start).Info("replication started")

	c.reset(start)
	return c.consume(ctx, streamer)
}

// startPosition returns the saved position or, if there is none, the
// current end of the source's binlog.
func (c *Conn) startPosition() (position, error) {
	pos, err := readPosition(c.cfg.PositionFile)
	if err != nil || !pos.IsZero() {
		return pos, err
	}
	conn, err := c.connect()
	if err != nil {
		return position{}, err
	}
	defer conn.Close()

	res, err := conn.Execute("SHOW MASTER STATUS")
	if err != nil {
		return position{}, errors.Wrap(err, "could not query binlog status")
	}
	if res.RowNumber() == 0 {
		return position{}, errors.New("binary logging is not enabled")
	}
	name, err := res.GetString(0, 0)
	if err != nil {
		return position{}, errors.WithStack(err)
	}
	offset, err := res.GetUint(0, 1)
	if err != nil {
		return position{}, errors.WithStack(err)
	}
	return position{Name: name, Pos: uint32(offset)}, nil
}

func (c *Conn) reset(start position) {
	c.batch = nil
	c.dirty = false
	c.file = start.Name
	c.pending = nil
	c.pos = start
	c.rows = 0
	c.tables = make(map[uint64]*tableInfo)
}

// consume reads events until the context is canceled. A partial batch
// is applied whenever the source has been idle for the flush interval.
func (c *Conn) consume(ctx context.Context, src eventSource) error {
	for {
		evCtx, cancel := context.WithTimeout(ctx, c.cfg.FlushInterval)
		ev, err := src.GetEvent(evCtx)
		cancel()
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			if err := c.flush(ctx); err != nil {
				return err
			}
			continue
		default:
			return errors.Wrap(err, "could not read binlog event")
		}

		if err := c.onEvent(ev); err != nil {
			return err
		}
		if c.rows >= c.cfg.BatchSize {
			if err := c.flush(ctx); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) onEvent(ev *replication.BinlogEvent) error {
	ts := time.Unix(int64(ev.Header.Timestamp), 0).UTC()
	switch e := ev.Event.(type) {
	case *replication.RotateEvent:
		c.file = string(e.NextLogName)
	case *replication.TableMapEvent:
		return c.onRelation(e)
	case *replication.RowsEvent:
		return c.onRows(ev.Header.EventType, e, ts)
	case *replication.QueryEvent:
		return c.onQuery(e, ev.Header.LogPos, ts)
	case *replication.XIDEvent:
		c.commit(ev.Header.LogPos)
	}
	return nil
}

// onRelation updates the table id mappings.
func (c *Conn) onRelation(msg *replication.TableMapEvent) error {
	if !c.cfg.includes(string(msg.Schema)) {
		return nil
	}
	info, err := newTableInfo(msg)
	if err != nil {
		return err
	}
	log.Tracef("learned %s.%s as table %d", info.database, info.table, msg.TableID)
	c.tables[msg.TableID] = info
	return nil
}

func (c *Conn) onRows(eventType replication.EventType, msg *replication.RowsEvent, ts time.Time) error {
	kind := rowsKind(eventType)
	if kind == types.KindUnknown {
		return errors.Errorf("unexpected rows event %s", eventType)
	}
	info, ok := c.tables[msg.TableID]
	if !ok {
		if msg.Table != nil && !c.cfg.includes(string(msg.Table.Schema)) {
			return nil
		}
		return errors.Errorf("unknown relation id %d", msg.TableID)
	}
	ev, err := info.event(kind, msg.Rows, c.cfg.Destination, ts)
	if err != nil {
		return err
	}
	log.Tracef("%s on %s.%s (#rows: %d)", kind, info.database, info.table, len(ev.Data))
	mutationCount.WithLabelValues(kind.String()).Add(float64(len(ev.Data)))
	c.pending = append(c.pending, ev)
	return nil
}

// onQuery handles statement events. Schema changes commit implicitly,
// so they end the current transaction.
func (c *Conn) onQuery(msg *replication.QueryEvent, logPos uint32, ts time.Time) error {
	query := string(msg.Query)
	if commitStmt.MatchString(query) {
		c.commit(logPos)
		return nil
	}
	kind, database, table := parseQuery(query, string(msg.Schema))
	if kind == types.KindUnknown {
		log.Tracef("ignoring statement %q", query)
		return nil
	}
	if c.cfg.includes(database) {
		ev := &types.ChangeEvent{
			Kind:        kind,
			Destination: c.cfg.Destination,
			Database:    database,
			Table:       table,
			Timestamp:   ts,
		}
		if kind == types.KindDDL {
			ev.SQL = query
		}
		mutationCount.WithLabelValues(kind.String()).Inc()
		c.pending = append(c.pending, ev)
	}
	c.commit(logPos)
	return nil
}

// commit moves the open transaction into the batch.
func (c *Conn) commit(logPos uint32) {
	for _, ev := range c.pending {
		c.rows += len(ev.Data)
	}
	c.batch = append(c.batch, c.pending...)
	c.pending = nil
	c.pos = position{Name: c.file, Pos: logPos}
	c.dirty = true
	transactionCount.Inc()
}

// flush applies the batch and then records its position.
func (c *Conn) flush(ctx context.Context) error {
	if len(c.batch) > 0 {
		if err := c.syncer.Sync(ctx, c.batch); err != nil {
			return errors.WithMessagef(err, "could not apply transactions ending at %s", c.pos)
		}
		log.Tracef("applied %d events ending at %s", len(c.batch), c.pos)
		c.batch = nil
		c.rows = 0
	}
	if !c.dirty {
		return nil
	}
	if err := writePosition(c.cfg.PositionFile, c.pos); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *Conn) connect() (*client.Conn, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.host, c.cfg.port)
	conn, err := client.Connect(addr, c.cfg.user, c.cfg.password, "", func(conn *client.Conn) {
		conn.SetTLSConfig(c.cfg.tlsConfig)
	})
	return conn, errors.Wrapf(err, "could not connect to %s", addr)
}

var (
	// Required settings. { {"system variable", "expected value"}}
	mySQLSystemSettings = [][]string{
		{"binlog_format", "ROW"},
		{"binlog_row_image", "FULL"},
		{"binlog_row_metadata", "FULL"},
	}
	mariaDBSystemSettings = [][]string{
		{"log_bin", "1"},
		{"binlog_format", "ROW"},
		{"binlog_row_image", "FULL"},
		{"binlog_row_metadata", "FULL"},
	}
)

// getFlavor connects to the server and tries to determine the type of
// server by looking at the @@version_comment system variable. It also
// verifies that the server settings required for row-based replication
// are in place.
func getFlavor(cfg *Config) (string, error) {
	c := &Conn{cfg: cfg}
	conn, err := c.connect()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	res, err := conn.Execute("select @@version_comment;")
	if err != nil {
		return "", errors.WithStack(err)
	}
	if len(res.Values) == 0 {
		return "", errors.New("unable to retrieve version")
	}
	version := string(res.Values[0][0].AsString())
	log.Infof("Version info: %s", version)

	var flavor string
	var settings [][]string
	switch {
	case strings.Contains(strings.ToLower(version), "mariadb"):
		flavor, settings = mysql.MariaDBFlavor, mariaDBSystemSettings
	case strings.Contains(version, "MySQL"):
		flavor, settings = mysql.MySQLFlavor, mySQLSystemSettings
	default:
		return "", errors.Errorf("unknown server %q", version)
	}

	res, err = conn.Execute("select @@version;")
	if err != nil {
		return "", errors.WithStack(err)
	}
	if len(res.Values) == 0 {
		return "", errors.New("unable to retrieve version")
	}
	if err := checkServerVersion(flavor, string(res.Values[0][0].AsString())); err != nil {
		return "", err
	}
	for _, v := range settings {
		if err := checkSystemSetting(conn, v[0], v[1]); err != nil {
			return "", err
		}
	}
	return flavor, nil
}

func checkSystemSetting(c *client.Conn, variable string, expected string) error {
	res, err := c.Execute(fmt.Sprintf("select @@%s;", variable))
	if err != nil {
		return errors.WithStack(err)
	}
	if len(res.Values) == 0 {
		return errors.New("unable to retrieve system setting")
	}

	var value string
	switch res.Values[0][0].Type {
	case mysql.FieldValueTypeSigned:
		value = strconv.FormatInt(res.Values[0][0].AsInt64(), 10)
	case mysql.FieldValueTypeUnsigned:
		value = strconv.FormatUint(res.Values[0][0].AsUint64(), 10)
	default:
		value = string(res.Values[0][0].AsString())
	}
	if !strings.EqualFold(value, expected) {
		return errors.Errorf("invalid server setting for %s. Expected %s, found %s", variable, expected, value)
	}
	return nil
}
