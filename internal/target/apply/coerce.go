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

package apply

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd"
	"github.com/cockroachdb/rdbsync/internal/types"
	"github.com/pkg/errors"
)

var exponentSuffix = regexp.MustCompile(`[Ee][+-]?\d+$`)

// timeLayouts are attempted, in order, when a string is bound to a
// temporal column.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// coerce converts a value, as received from a change source, into a
// form that the target driver will accept for a column of the given
// type. Unrecognized combinations are passed through so that the
// target database may perform the conversion or report an error.
func coerce(ct types.ColumnType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if num, ok := value.(json.Number); ok {
		value = num.String()
	}
	// Empty strings are not valid for non-textual columns.
	if s, ok := value.(string); ok && s == "" {
		switch ct.Kind {
		case types.TypeInteger, types.TypeFloat, types.TypeDecimal,
			types.TypeBool, types.TypeTime:
			return nil, nil
		}
	}

	switch ct.Kind {
	case types.TypeInteger:
		return toInteger(value)
	case types.TypeFloat:
		return toFloat(value)
	case types.TypeDecimal:
		return toDecimal(value)
	case types.TypeBool:
		return toBool(value)
	case types.TypeString:
		return toText(value)
	case types.TypeBytes:
		switch t := value.(type) {
		case string:
			return []byte(t), nil
		case []byte:
			return t, nil
		}
		return toText(value)
	case types.TypeTime:
		return toTime(value), nil
	case types.TypeJSON:
		switch t := value.(type) {
		case string:
			return t, nil
		case []byte:
			return string(t), nil
		}
		buf, err := json.Marshal(value)
		return string(buf), errors.WithStack(err)
	default:
		return value, nil
	}
}

func toInteger(value any) (any, error) {
	switch t := value.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return t, nil
	case uint:
		return toInteger(uint64(t))
	case uint64:
		if t > math.MaxInt64 {
			// Some drivers reject large unsigned values.
			return strconv.FormatUint(t, 10), nil
		}
		return int64(t), nil
	case float32:
		return toInteger(float64(t))
	case float64:
		if t != math.Trunc(t) {
			return nil, errors.Errorf("%v is not an integer", t)
		}
		return int64(t), nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case *big.Int:
		return t.String(), nil
	case []byte:
		return toInteger(string(t))
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if _, err := strconv.ParseUint(s, 10, 64); err == nil {
			return s, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return toInteger(f)
		}
		return nil, errors.Errorf("could not parse %q as an integer", t)
	default:
		return value, nil
	}
}

func toFloat(value any) (any, error) {
	switch t := value.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case []byte:
		return toFloat(string(t))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse %q as a float", t)
		}
		return f, nil
	default:
		return value, nil
	}
}

// toDecimal validates the value with an arbitrary-precision decimal
// and returns its non-exponential string form. The target database
// performs any rounding to the column's scale.
func toDecimal(value any) (any, error) {
	var s string
	switch t := value.(type) {
	case string:
		s = strings.TrimSpace(t)
	case []byte:
		s = strings.TrimSpace(string(t))
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case *apd.Decimal:
		return t.Text('f'), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return t, nil
	default:
		s = fmt.Sprint(t)
	}
	parsed, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse %q as a decimal", s)
	}
	if exponentSuffix.MatchString(s) {
		return parsed.Text('f'), nil
	}
	return parsed.String(), nil
}

func toBool(value any) (any, error) {
	switch t := value.(type) {
	case bool:
		return t, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	case []byte:
		return toBool(string(t))
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "t", "true", "y", "yes", "on":
			return true, nil
		case "0", "f", "false", "n", "no", "off":
			return false, nil
		}
		return nil, errors.Errorf("could not parse %q as a boolean", t)
	default:
		return value, nil
	}
}

func toText(value any) (any, error) {
	switch t := value.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case time.Time:
		return t.Format(timeLayouts[0]), nil
	case map[string]any, []any:
		buf, err := json.Marshal(t)
		return string(buf), errors.WithStack(err)
	default:
		return fmt.Sprint(t), nil
	}
}

// toTime parses strings using common layouts. Values that do not parse
// are passed through for the database to interpret, since MySQL
// permits zero dates and the like.
func toTime(value any) any {
	var s string
	switch t := value.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return value
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed
		}
	}
	return s
}
