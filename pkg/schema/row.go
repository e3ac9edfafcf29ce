/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package schema

import (
	"fmt"
	"strconv"
)

// Row is a single record keyed by the canonical field names of its schema. Rows are never mutated
// once emitted by a stage, every stage produces a new Row.
type Row map[string]interface{}

// Copy returns a shallow copy of the row.
func (r Row) Copy() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Values returns the row values in the schema order.
func (r Row) Values(s *Schema) []interface{} {
	vals := make([]interface{}, len(s.fields))
	for i, f := range s.fields {
		vals[i] = r[f.Name]
	}
	return vals
}

// Strings returns the row values formatted for display, in the schema order.
func (r Row) Strings(s *Schema) []string {
	vals := make([]string, len(s.fields))
	for i, f := range s.fields {
		vals[i] = FormatValue(r[f.Name])
	}
	return vals
}

// Float returns the named value as a float64.
func (r Row) Float(name string) (float64, error) {
	return ToFloat(r[name])
}

// ToFloat converts a numeric value into a float64.
func ToFloat(v interface{}) (float64, error) {
	switch w := v.(type) {
	case float64:
		return w, nil
	case float32:
		return float64(w), nil
	case int64:
		return float64(w), nil
	case int:
		return float64(w), nil
	case int32:
		return float64(w), nil
	case nil:
		return 0, fmt.Errorf("value is null")
	default:
		return 0, fmt.Errorf("cannot convert %v (%T) to float", v, v)
	}
}

// Coerce converts v into the Go representation of the field type.
func Coerce(t FieldType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case FloatType:
		return ToFloat(v)
	case IntegerType:
		switch w := v.(type) {
		case int64:
			return w, nil
		case int:
			return int64(w), nil
		case int32:
			return int64(w), nil
		case float64:
			return int64(w), nil
		default:
			return nil, fmt.Errorf("cannot convert %v (%T) to integer", v, v)
		}
	default:
		return FormatValue(v), nil
	}
}

// TypeOf infers the field type of a value produced by an expression.
func TypeOf(v interface{}) FieldType {
	switch v.(type) {
	case int, int32, int64:
		return IntegerType
	case float32, float64:
		return FloatType
	default:
		return StringType
	}
}

// FormatValue renders a value the way it is displayed in tables and query results.
func FormatValue(v interface{}) string {
	switch w := v.(type) {
	case nil:
		return "null"
	case string:
		return w
	case float64:
		return strconv.FormatFloat(w, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(w, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
