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

/*
Package schema declares the fixed record shapes flowing through the pipeline. A Schema is an ordered
list of typed fields; every stage downstream of a source is bound to the schema it was built with.
Column names resolve case-insensitively.
*/
package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FieldType is the primitive type of a field.
type FieldType string

const (
	IntegerType FieldType = "integer"
	StringType  FieldType = "string"
	FloatType   FieldType = "float"
)

var (
	// ErrColumnNotFound is returned when a column can't be resolved against a schema.
	ErrColumnNotFound = errors.New("column not found")
	// ErrMissingField is returned when a required field is absent or empty.
	ErrMissingField = errors.New("missing required field")
)

// Field is a single named, typed column.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Nullable bool      `json:"nullable"`
}

// Schema is an ordered field list.
type Schema struct {
	fields []Field
}

// New returns a schema for the given fields. Field names must be unique, ignoring case.
func New(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema must have at least one field")
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field name can not be empty")
		}
		switch f.Type {
		case IntegerType, StringType, FloatType:
		default:
			return nil, fmt.Errorf("unsupported type %q for field %q", f.Type, f.Name)
		}
		key := strings.ToLower(f.Name)
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[key] = struct{}{}
	}
	s := &Schema{fields: make([]Field, len(fields))}
	copy(s.fields, fields)
	return s, nil
}

// MustNew is like New but panics on error. Only meant for package level declarations.
func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Laptops is the shape of the laptop price dataset.
var Laptops = MustNew(
	Field{Name: "Id", Type: IntegerType},
	Field{Name: "Company", Type: StringType},
	Field{Name: "Product", Type: StringType},
	Field{Name: "TypeName", Type: StringType},
	Field{Name: "Price_euros", Type: FloatType},
)

// Fields returns a copy of the fields.
func (s *Schema) Fields() []Field {
	r := make([]Field, len(s.fields))
	copy(r, s.fields)
	return r
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Lookup resolves a column name, ignoring case.
func (s *Schema) Lookup(name string) (Field, int, error) {
	for i, f := range s.fields {
		if strings.EqualFold(f.Name, name) {
			return f, i, nil
		}
	}
	return Field{}, -1, fmt.Errorf("%w: %q, available columns %v", ErrColumnNotFound, name, s.Names())
}

// Append returns a new schema with the field added at the end, or replacing an existing field of the same name.
func (s *Schema) Append(f Field) (*Schema, error) {
	fields := s.Fields()
	if _, i, err := s.Lookup(f.Name); err == nil {
		fields[i] = f
		return New(fields...)
	}
	return New(append(fields, f)...)
}

// Project returns a new schema holding only the named columns, in the given order.
func (s *Schema) Project(names ...string) (*Schema, error) {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		f, _, err := s.Lookup(n)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return New(fields...)
}

// String returns a compact representation, e.g. "Id:integer,Company:string".
func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Name + ":" + string(f.Type)
	}
	return strings.Join(parts, ",")
}

// Parse converts delimited values into a typed Row, positionally.
func (s *Schema) Parse(values []string) (Row, error) {
	if len(values) != len(s.fields) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(s.fields), len(values))
	}
	row := make(Row, len(s.fields))
	for i, f := range s.fields {
		raw := strings.TrimSpace(values[i])
		if raw == "" {
			if !f.Nullable {
				return nil, fmt.Errorf("%w %q", ErrMissingField, f.Name)
			}
			row[f.Name] = nil
			continue
		}
		v, err := f.Type.parse(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		row[f.Name] = v
	}
	return row, nil
}

// HeaderMatches reports whether the header names match the schema, ignoring case and surrounding spaces.
func (s *Schema) HeaderMatches(header []string) bool {
	if len(header) != len(s.fields) {
		return false
	}
	for i, f := range s.fields {
		if !strings.EqualFold(strings.TrimSpace(header[i]), f.Name) {
			return false
		}
	}
	return true
}

func (t FieldType) parse(raw string) (interface{}, error) {
	switch t {
	case IntegerType:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to %s", raw, t)
		}
		return i, nil
	case FloatType:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to %s", raw, t)
		}
		return f, nil
	default:
		return raw, nil
	}
}
