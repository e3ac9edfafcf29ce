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

package plan

import (
	"fmt"
	"strings"

	"github.com/laptopstream/laptopstream/pkg/schema"
	"github.com/laptopstream/laptopstream/pkg/shared/expr"
)

// Stage is a single per-record step of a plan. Stages are stateless, they never mutate the incoming row.
type Stage interface {
	// Name describes the stage.
	Name() string
	// Schema returns the output schema of the stage.
	Schema() *schema.Schema
	// Apply processes one row, false means the row is dropped.
	Apply(schema.Row) (schema.Row, bool, error)
}

type withColumn struct {
	field   schema.Field
	program *expr.Program
	output  *schema.Schema
}

func newWithColumn(in *schema.Schema, name, expression string) (*withColumn, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("column name can not be empty")
	}
	program, err := expr.Compile(expression, in)
	if err != nil {
		return nil, err
	}
	typ, err := program.InferType(in)
	if err != nil {
		return nil, err
	}
	field := schema.Field{Name: name, Type: typ}
	if existing, _, err := in.Lookup(name); err == nil {
		field.Name = existing.Name
	}
	out, err := in.Append(field)
	if err != nil {
		return nil, err
	}
	return &withColumn{field: field, program: program, output: out}, nil
}

func (w *withColumn) Name() string {
	return fmt.Sprintf("withColumn(%s = %s)", w.field.Name, w.program)
}

func (w *withColumn) Schema() *schema.Schema {
	return w.output
}

func (w *withColumn) Apply(row schema.Row) (schema.Row, bool, error) {
	v, err := w.program.Eval(row)
	if err != nil {
		return nil, false, err
	}
	v, err = schema.Coerce(w.field.Type, v)
	if err != nil {
		return nil, false, err
	}
	out := row.Copy()
	out[w.field.Name] = v
	return out, true, nil
}

type selectColumns struct {
	names  []string
	output *schema.Schema
}

func newSelect(in *schema.Schema, columns []string) (*selectColumns, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("at least one column is required")
	}
	out, err := in.Project(columns...)
	if err != nil {
		return nil, err
	}
	return &selectColumns{names: out.Names(), output: out}, nil
}

func (s *selectColumns) Name() string {
	return "select(" + strings.Join(s.names, ", ") + ")"
}

func (s *selectColumns) Schema() *schema.Schema {
	return s.output
}

func (s *selectColumns) Apply(row schema.Row) (schema.Row, bool, error) {
	out := make(schema.Row, len(s.names))
	for _, n := range s.names {
		out[n] = row[n]
	}
	return out, true, nil
}

type where struct {
	predicate *expr.Program
	output    *schema.Schema
}

func newWhere(in *schema.Schema, predicate string) (*where, error) {
	program, err := expr.CompileBool(predicate, in)
	if err != nil {
		return nil, err
	}
	return &where{predicate: program, output: in}, nil
}

func (w *where) Name() string {
	return "where(" + w.predicate.String() + ")"
}

func (w *where) Schema() *schema.Schema {
	return w.output
}

func (w *where) Apply(row schema.Row) (schema.Row, bool, error) {
	keep, err := w.predicate.EvalBool(row)
	if err != nil {
		return nil, false, err
	}
	return row, keep, nil
}
