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

// Package mapping loads the table mappings that describe how source
// tables are applied to target tables.
package mapping

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Provider implements [types.Mappings] from a directory of mapping
// files. Mappings registered under the same key are returned in file
// name order.
type Provider struct {
	cfg *Config
	env *types.Env

	mu struct {
		sync.RWMutex
		byKey map[string][]*types.TableMapping
		count int
	}
}

var _ types.Mappings = (*Provider)(nil)

// New loads the mappings from the configured directory.
func New(cfg *Config) (*Provider, error) {
	ret := &Provider{cfg: cfg, env: &types.Env{Mode: cfg.Mode}}
	if err := ret.Reload(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Env returns the deployment environment used to construct keys.
func (p *Provider) Env() *types.Env {
	return p.env
}

// Len returns the number of loaded mappings.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mu.count
}

// Lookup implements [types.Mappings].
func (p *Provider) Lookup(key string) []*types.TableMapping {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mu.byKey[key]
}

// Reload re-reads the mapping directory. The previous mappings are
// retained if any file cannot be loaded.
func (p *Provider) Reload() error {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return errors.Wrap(err, "could not read mapping directory")
	}
	// ReadDir returns entries sorted by name.
	byKey := make(map[string][]*types.TableMapping)
	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isMappingFile(name) {
			continue
		}
		buf, err := os.ReadFile(filepath.Join(p.cfg.Dir, name))
		if err != nil {
			return errors.WithStack(err)
		}
		m, err := Parse(name, buf)
		if err != nil {
			return err
		}
		key := m.Key(p.env)
		byKey[key] = append(byKey[key], m)
		count++
		log.WithFields(log.Fields{
			"key":     key,
			"mapping": m,
		}).Debug("loaded mapping")
	}

	p.mu.Lock()
	p.mu.byKey = byKey
	p.mu.count = count
	p.mu.Unlock()

	log.WithField("count", count).Info("loaded table mappings")
	return nil
}

// Keys returns the sorted keys of the loaded mappings.
func (p *Provider) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ret := make([]string, 0, len(p.mu.byKey))
	for key := range p.mu.byKey {
		ret = append(ret, key)
	}
	sort.Strings(ret)
	return ret
}

func isMappingFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}
