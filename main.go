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

// Command rdbsync applies row-level change events captured from a
// source database to a relational target.
package main

//go:generate go run github.com/cockroachdb/crlfmt -w .

import (
	"context"
	golog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/rdbsync/internal/cmd/start"
	"github.com/cockroachdb/rdbsync/internal/cmd/version"
	"github.com/cockroachdb/rdbsync/internal/util/logfmt"
	joonix "github.com/joonix/log"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// logConfig controls the process-wide logrus configuration.
type logConfig struct {
	destination string
	format      string
	verbosity   int
}

func (c *logConfig) Bind(f *pflag.FlagSet) {
	f.StringVar(&c.format, "logFormat", "text", "choose log output format [ fluent, text ]")
	f.StringVar(&c.destination, "logDestination", "", "write logs to a file, instead of stdout")
	f.CountVarP(&c.verbosity, "verbose", "v", "increase logging verbosity to debug; repeat for trace")
}

// apply configures logrus and redirects anything that uses the
// standard go logger, like net/http, into it.
func (c *logConfig) apply() error {
	pw := log.WithField("golog", true).Writer()
	log.DeferExitHandler(func() { _ = pw.Close() })
	// logrus will provide timestamp info.
	golog.SetFlags(0)
	golog.SetOutput(pw)

	switch c.verbosity {
	case 0:
	case 1:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.TraceLevel)
	}

	switch c.format {
	case "fluent":
		log.SetFormatter(logfmt.Wrap(joonix.NewFormatter()))
	case "text":
		log.SetFormatter(logfmt.Wrap(&log.TextFormatter{
			FullTimestamp:   true,
			PadLevelText:    true,
			TimestampFormat: time.Stamp,
		}))
	default:
		return errors.Errorf("unknown log format: %q", c.format)
	}

	if c.destination != "" {
		f, err := os.OpenFile(c.destination, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrap(err, "could not open log output file")
		}
		log.DeferExitHandler(func() { _ = f.Close() })
		log.SetOutput(f)
	}
	return nil
}

func newRoot() *cobra.Command {
	var logs logConfig
	root := &cobra.Command{
		Use:           "rdbsync",
		Short:         "apply change events to a relational database",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logs.apply()
		},
	}
	logs.Bind(root.PersistentFlags())
	root.AddCommand(
		start.Command(),
		version.Command(),
	)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	log.DeferExitHandler(cancel)

	if err := newRoot().ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("exited")
		log.Exit(1)
	}
	log.Exit(0)
}
