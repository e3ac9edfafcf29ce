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

package expr

import (
	"fmt"
	"strings"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"

	"github.com/laptopstream/laptopstream/pkg/schema"
)

// Program is an expression compiled against a schema. Column names are available as variables, both
// with their declared spelling and in lower case.
type Program struct {
	source  string
	program *vm.Program
}

// Compile compiles an expression producing any value, e.g. `round(Price_euros * 1.4389, 2)`.
func Compile(expression string, s *schema.Schema) (*Program, error) {
	return compile(expression, s)
}

// CompileBool compiles a predicate, e.g. `Price_usd > 2000`. The result is checked to be a boolean at compile time.
func CompileBool(expression string, s *schema.Schema) (*Program, error) {
	return compile(expression, s, expr.AsBool())
}

func compile(expression string, s *schema.Schema, opts ...expr.Option) (*Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("expression can not be empty")
	}
	env := getFuncMap(placeholderRow(s))
	program, err := expr.Compile(expression, append([]expr.Option{expr.Env(env)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("unable to compile expression '%s': %s", expression, err)
	}
	return &Program{source: expression, program: program}, nil
}

// String returns the source expression.
func (p *Program) String() string {
	return p.source
}

// Eval runs the program against a row.
func (p *Program) Eval(row schema.Row) (interface{}, error) {
	result, err := expr.Run(p.program, getFuncMap(row))
	if err != nil {
		return nil, fmt.Errorf("unable to evaluate expression '%s': %s", p.source, err)
	}
	return result, nil
}

// EvalBool runs a predicate against a row.
func (p *Program) EvalBool(row schema.Row) (bool, error) {
	result, err := p.Eval(row)
	if err != nil {
		return false, err
	}
	resultBool, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unable to cast expression result '%v' to bool", result)
	}
	return resultBool, nil
}

// InferType evaluates the program once against a zero-valued row of the schema and returns the type of the result.
func (p *Program) InferType(s *schema.Schema) (schema.FieldType, error) {
	v, err := p.Eval(placeholderRow(s))
	if err != nil {
		return "", fmt.Errorf("unable to infer result type: %w", err)
	}
	return schema.TypeOf(v), nil
}

// placeholderRow gives the type checker one zero-valued variable per column.
func placeholderRow(s *schema.Schema) schema.Row {
	row := make(schema.Row, s.Len())
	for _, f := range s.Fields() {
		switch f.Type {
		case schema.IntegerType:
			row[f.Name] = int64(0)
		case schema.FloatType:
			row[f.Name] = float64(0)
		default:
			row[f.Name] = ""
		}
	}
	return row
}
