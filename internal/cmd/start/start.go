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

// Package start contains the command to start the server.
package start

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/rdbsync/internal/source/kafka"
	"github.com/cockroachdb/rdbsync/internal/source/mylogical"
	"github.com/cockroachdb/rdbsync/internal/source/natsource"
	"github.com/cockroachdb/rdbsync/internal/target/apply"
	"github.com/cockroachdb/rdbsync/internal/target/batch"
	"github.com/cockroachdb/rdbsync/internal/target/coltypes"
	"github.com/cockroachdb/rdbsync/internal/target/fan"
	"github.com/cockroachdb/rdbsync/internal/target/mapping"
	"github.com/cockroachdb/rdbsync/internal/target/zipper"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/cockroachdb/rdbsync/internal/util/stdpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Command returns the command to start the server.
func Command() *cobra.Command {
	var cfg Config
	cmd := &cobra.Command{
		Args:  cobra.NoArgs,
		Short: "apply change events from a source to the target database",
		Use:   "start",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), &cfg)
		},
	}
	cfg.Bind(cmd.Flags())
	return cmd
}

// A source delivers change events to a Syncer until its context is
// canceled.
type source interface {
	Run(ctx context.Context) error
}

// Run connects to the target, loads the mappings, and applies events
// from the configured source until the context is canceled. Sending
// SIGHUP to the process reloads the mapping directory.
func Run(ctx context.Context, cfg *Config) error {
	if err := cfg.Preflight(); err != nil {
		return err
	}

	pool, closePool, err := stdpool.OpenTarget(ctx, cfg.TargetConn,
		stdpool.WithPoolSize(cfg.TargetPoolSize),
		stdpool.WithStartupTimeout(cfg.StartupTimeout),
	)
	if err != nil {
		return err
	}
	defer closePool()

	mappings, err := mapping.New(&cfg.Mapping)
	if err != nil {
		return err
	}
	log.WithField("count", mappings.Len()).Info("loaded mappings")

	audit, err := zipper.New(&cfg.Zipper, pool)
	if err != nil {
		return err
	}
	applier := apply.New(&cfg.Apply, pool.Info(), coltypes.New(), audit)
	f, err := fan.New(&cfg.Fan, func(int) types.Executor {
		return batch.New(&cfg.Batch, pool)
	}, applier)
	if err != nil {
		return err
	}
	defer f.Stop()

	src, err := newSource(ctx, cfg, f.Bind(mappings, mappings.Env()))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		srv, l, err := metricsServer(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
				return errors.WithStack(err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}

	g.Go(func() error {
		return reloadOnHangup(ctx, mappings)
	})
	g.Go(func() error {
		// The process exits if the source stops for any reason.
		defer cancel()
		log.WithField("source", cfg.Source).Info("server started")
		return src.Run(ctx)
	})

	err = g.Wait()
	log.Info("server stopping")
	return err
}

func newSource(ctx context.Context, cfg *Config, syncer types.Syncer) (source, error) {
	switch cfg.Source {
	case SourceKafka:
		conn, err := kafka.New(ctx, &cfg.Kafka, syncer)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case SourceMySQL:
		conn, err := mylogical.New(&cfg.MySQL, syncer)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case SourceNATS:
		conn, err := natsource.New(&cfg.NATS, syncer)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, errors.Errorf("unknown source %q", cfg.Source)
	}
}

// reloadOnHangup reloads the mappings each time the process receives a
// SIGHUP. A failed reload retains the previous mappings.
func reloadOnHangup(ctx context.Context, mappings *mapping.Provider) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			if err := mappings.Reload(); err != nil {
				log.WithError(err).Warn("could not reload mappings; retaining previous mappings")
				continue
			}
			log.WithField("count", mappings.Len()).Info("reloaded mappings")
		}
	}
}
