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

//go:build !(cgo && linux && (target_oracle || target_all))

package stdpool

import (
	"context"

	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
)

// OpenOracleAsTarget returns an error, since Oracle support was not
// compiled into this binary. Build with the target_oracle tag to
// enable it.
func OpenOracleAsTarget(
	context.Context, string, ...Option,
) (*types.TargetPool, func(), error) {
	return nil, nil, errors.New("oracle support requires building with the target_oracle tag")
}
