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

//go:build cgo && linux && (target_oracle || target_all)

package stdpool

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/godror/godror"
	"github.com/pkg/errors"
)

// ORA-00001: unique constraint violated
const oraUniqueViolation = 1

func oraIsDuplicate(err error) bool {
	if oraErr := (*godror.OraErr)(nil); errors.As(err, &oraErr) {
		return oraErr.Code() == oraUniqueViolation
	}
	return err != nil && strings.HasPrefix(err.Error(), "ORA-00001:")
}

// OpenOracleAsTarget opens a connection to an Oracle database endpoint and
// return it as a [types.TargetPool].
func OpenOracleAsTarget(
	ctx context.Context, connectString string, options ...Option,
) (*types.TargetPool, func(), error) {
	params, err := godror.ParseDSN(connectString)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	// Use go's pool, instead of the C library's pool.
	params.StandaloneConnection = true
	connector := godror.NewConnector(params)

	ret := &types.TargetPool{
		DB: sql.OpenDB(connector),
		PoolInfo: types.PoolInfo{
			ConnectionString: connectString,
			Product:          types.ProductOracle,
			IsDuplicate:      oraIsDuplicate,
		},
	}
	cancel, err := finishOpen(ctx, ret, "SELECT banner FROM V$VERSION", options)
	if err != nil {
		return nil, nil, err
	}
	return ret, cancel, nil
}
