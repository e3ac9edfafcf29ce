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
Package plan builds the logical plan applied to every record read from a source: derived columns,
projections and row filters. A Plan is immutable, each builder method returns a new Plan, so one plan
can be shared by several sink registrations.
*/
package plan

import (
	"fmt"
	"strings"

	"github.com/laptopstream/laptopstream/pkg/schema"
)

// Plan is an ordered list of stages bound to an input schema.
type Plan struct {
	input     *schema.Schema
	output    *schema.Schema
	stages    []Stage
	streaming bool
}

// New returns an empty plan reading a static, finite collection.
func New(input *schema.Schema) *Plan {
	return &Plan{input: input, output: input}
}

// NewStreaming returns an empty plan reading an unbounded source.
func NewStreaming(input *schema.Schema) *Plan {
	return &Plan{input: input, output: input, streaming: true}
}

// IsStreaming tells whether the plan reads from an unbounded source.
func (p *Plan) IsStreaming() bool {
	return p.streaming
}

// InputSchema returns the schema records must conform to when they enter the plan.
func (p *Plan) InputSchema() *schema.Schema {
	return p.input
}

// Schema returns the schema of the records the plan emits.
func (p *Plan) Schema() *schema.Schema {
	return p.output
}

// Stages returns the plan stages in execution order.
func (p *Plan) Stages() []Stage {
	r := make([]Stage, len(p.stages))
	copy(r, p.stages)
	return r
}

// WithColumn appends a derived column computed from the expression. An existing column of the same name is replaced.
func (p *Plan) WithColumn(name, expression string) (*Plan, error) {
	s, err := newWithColumn(p.output, name, expression)
	if err != nil {
		return nil, fmt.Errorf("withColumn %q: %w", name, err)
	}
	return p.append(s), nil
}

// Select narrows the records to the given columns.
func (p *Plan) Select(columns ...string) (*Plan, error) {
	s, err := newSelect(p.output, columns)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return p.append(s), nil
}

// Where keeps only the records satisfying the predicate.
func (p *Plan) Where(predicate string) (*Plan, error) {
	s, err := newWhere(p.output, predicate)
	if err != nil {
		return nil, fmt.Errorf("where: %w", err)
	}
	return p.append(s), nil
}

func (p *Plan) append(s Stage) *Plan {
	stages := make([]Stage, len(p.stages), len(p.stages)+1)
	copy(stages, p.stages)
	return &Plan{
		input:     p.input,
		output:    s.Schema(),
		stages:    append(stages, s),
		streaming: p.streaming,
	}
}

// Apply runs one record through every stage. The second return value is false when the record is filtered out.
func (p *Plan) Apply(row schema.Row) (schema.Row, bool, error) {
	var (
		keep = true
		err  error
	)
	for _, s := range p.stages {
		row, keep, err = s.Apply(row)
		if err != nil {
			return nil, false, fmt.Errorf("stage %s: %w", s.Name(), err)
		}
		if !keep {
			return nil, false, nil
		}
	}
	return row, true, nil
}

// Execute applies the plan to a batch of records. It returns the kept records and the number of records filtered out.
func (p *Plan) Execute(rows []schema.Row) ([]schema.Row, int, error) {
	out := make([]schema.Row, 0, len(rows))
	filtered := 0
	for _, r := range rows {
		o, keep, err := p.Apply(r)
		if err != nil {
			return nil, 0, err
		}
		if !keep {
			filtered++
			continue
		}
		out = append(out, o)
	}
	return out, filtered, nil
}

// String describes the plan, e.g. "source(Id:integer,...) -> withColumn(Price_usd) -> where(Price_usd > 2000)".
func (p *Plan) String() string {
	kind := "source"
	if p.streaming {
		kind = "streamingSource"
	}
	parts := []string{kind + "(" + p.input.String() + ")"}
	for _, s := range p.stages {
		parts = append(parts, s.Name())
	}
	return strings.Join(parts, " -> ")
}
