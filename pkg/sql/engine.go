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
Package sql runs ad-hoc SELECT statements against the in-memory tables. Every statement reads a snapshot of its
table, so it sees whole micro-batches only and never waits for one in flight.
*/
package sql

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/laptopstream/laptopstream/pkg/schema"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
	"github.com/laptopstream/laptopstream/pkg/sinks/memory"
)

const DefaultCacheSize = 128

// ErrAnalysis is returned for statements that parse but do not fit the table.
var ErrAnalysis = errors.New("analysis error")

// Engine executes statements against a catalog.
type Engine struct {
	catalog *memory.Catalog
	cache   *lru.Cache[string, *Statement]
	log     *zap.SugaredLogger
}

type Option func(*Engine) error

// WithCacheSize sets the number of parsed statements kept.
func WithCacheSize(n int) Option {
	return func(e *Engine) error {
		c, err := lru.New[string, *Statement](n)
		if err != nil {
			return fmt.Errorf("invalid statement cache size %d: %w", n, err)
		}
		e.cache = c
		return nil
	}
}

// NewEngine returns an engine over the catalog.
func NewEngine(ctx context.Context, catalog *memory.Catalog, opts ...Option) (*Engine, error) {
	e := &Engine{catalog: catalog, log: logging.FromContext(ctx)}
	for _, o := range opts {
		if err := o(e); err != nil {
			return nil, err
		}
	}
	if e.cache == nil {
		e.cache, _ = lru.New[string, *Statement](DefaultCacheSize)
	}
	return e, nil
}

// Prepare parses the statement, or returns it from the cache.
func (e *Engine) Prepare(text string) (*Statement, error) {
	text = strings.TrimSpace(text)
	if stmt, ok := e.cache.Get(text); ok {
		return stmt, nil
	}
	stmt, err := Parse(text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(text, stmt)
	return stmt, nil
}

// Query runs the statement against the current content of its table.
func (e *Engine) Query(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	stmt, err := e.Prepare(text)
	if err != nil {
		queryErrors.WithLabelValues("parse").Inc()
		return nil, err
	}
	table, err := e.catalog.Lookup(stmt.Table)
	if err != nil {
		queryErrors.WithLabelValues("table").Inc()
		return nil, err
	}
	result, err := Execute(ctx, stmt, table.Schema(), table.Snapshot())
	if err != nil {
		queryErrors.WithLabelValues("execute").Inc()
		return nil, err
	}
	queriesCount.WithLabelValues(table.GetName()).Inc()
	e.log.Debugw("Executed query", zap.String("query", stmt.String()), zap.Int("rows", len(result.Rows)), zap.Duration("took", time.Since(start)))
	return result, nil
}

// output is a resolved select item.
type output struct {
	item  SelectItem
	field schema.Field
	name  string
}

// Execute runs the statement over rows of the schema.
func Execute(ctx context.Context, stmt *Statement, s *schema.Schema, rows []schema.Row) (*Result, error) {
	outputs, err := resolve(stmt, s)
	if err != nil {
		return nil, err
	}
	result := &Result{Columns: make([]string, len(outputs))}
	for i, o := range outputs {
		result.Columns[i] = o.name
	}
	keys, err := resolveOrder(stmt, s, result.Columns)
	if err != nil {
		return nil, err
	}
	var hidden []string
	for _, k := range keys {
		if k.hidden != "" {
			hidden = append(hidden, k.hidden)
		}
	}
	if stmt.IsAggregate() {
		groups, err := groupRows(ctx, stmt, s, rows)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			values := make([]interface{}, len(outputs), len(outputs)+len(hidden))
			for i, o := range outputs {
				if o.item.isAggregate() {
					if values[i], err = aggregate(o, g.rows); err != nil {
						return nil, err
					}
				} else {
					values[i] = g.rows[0][o.field.Name]
				}
			}
			for _, h := range hidden {
				values = append(values, g.rows[0][h])
			}
			result.Rows = append(result.Rows, values)
		}
	} else {
		for i, r := range rows {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			values := make([]interface{}, len(outputs))
			for j, o := range outputs {
				values[j] = r[o.field.Name]
			}
			result.Rows = append(result.Rows, values)
		}
	}
	order(keys, result.Rows)
	if len(hidden) > 0 {
		for i, r := range result.Rows {
			result.Rows[i] = r[:len(outputs)]
		}
	}
	if stmt.Limit >= 0 && len(result.Rows) > stmt.Limit {
		result.Rows = result.Rows[:stmt.Limit]
	}
	return result, nil
}

func resolve(stmt *Statement, s *schema.Schema) ([]output, error) {
	grouped := make(map[string]struct{}, len(stmt.GroupBy))
	for _, g := range stmt.GroupBy {
		f, _, err := s.Lookup(g)
		if err != nil {
			return nil, fmt.Errorf("%w: GROUP BY %s: %s", ErrAnalysis, g, err)
		}
		grouped[f.Name] = struct{}{}
	}
	aggregated := stmt.IsAggregate()
	var outputs []output
	for _, it := range stmt.Items {
		switch {
		case it.Star && !it.isAggregate():
			if aggregated {
				return nil, fmt.Errorf("%w: * can not be selected with GROUP BY or aggregates", ErrAnalysis)
			}
			for _, f := range s.Fields() {
				outputs = append(outputs, output{item: SelectItem{Column: f.Name}, field: f, name: f.Name})
			}
		case it.isAggregate() && it.Star:
			outputs = append(outputs, output{item: it, name: it.Name()})
		case it.isAggregate():
			f, _, err := s.Lookup(it.Column)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %s", ErrAnalysis, it.Name(), err)
			}
			if it.Func != FuncCount && f.Type == schema.StringType {
				return nil, fmt.Errorf("%w: %s requires a numeric column, %s is a %s", ErrAnalysis, it.Func, f.Name, f.Type)
			}
			resolved := SelectItem{Func: it.Func, Column: f.Name, Alias: it.Alias}
			outputs = append(outputs, output{item: resolved, field: f, name: resolved.Name()})
		default:
			f, _, err := s.Lookup(it.Column)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrAnalysis, err)
			}
			if _, ok := grouped[f.Name]; aggregated && !ok {
				return nil, fmt.Errorf("%w: column %s must appear in GROUP BY or be aggregated", ErrAnalysis, f.Name)
			}
			name := f.Name
			if it.Alias != "" {
				name = it.Alias
			}
			outputs = append(outputs, output{item: SelectItem{Column: f.Name, Alias: it.Alias}, field: f, name: name})
		}
	}
	return outputs, nil
}

type group struct {
	rows []schema.Row
}

// groupRows groups rows by the GROUP BY columns, in order of first appearance. Without GROUP BY all rows form a
// single group, which exists even when there are no rows.
func groupRows(ctx context.Context, stmt *Statement, s *schema.Schema, rows []schema.Row) ([]*group, error) {
	if len(stmt.GroupBy) == 0 {
		return []*group{{rows: rows}}, nil
	}
	cols := make([]string, len(stmt.GroupBy))
	for i, g := range stmt.GroupBy {
		f, _, _ := s.Lookup(g)
		cols[i] = f.Name
	}
	index := make(map[string]*group)
	var groups []*group
	parts := make([]string, len(cols))
	for i, r := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for j, c := range cols {
			if v := r[c]; v == nil {
				parts[j] = "\x01"
			} else {
				parts[j] = schema.FormatValue(v)
			}
		}
		k := strings.Join(parts, "\x00")
		g, ok := index[k]
		if !ok {
			g = &group{}
			index[k] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}
	return groups, nil
}

func aggregate(o output, rows []schema.Row) (interface{}, error) {
	if o.item.Star {
		return int64(len(rows)), nil
	}
	values := make(stats.Float64Data, 0, len(rows))
	for _, r := range rows {
		v := r[o.field.Name]
		if v == nil {
			continue
		}
		if o.item.Func == FuncCount {
			values = append(values, 0)
			continue
		}
		f, err := schema.ToFloat(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.name, err)
		}
		values = append(values, f)
	}
	if o.item.Func == FuncCount {
		return int64(len(values)), nil
	}
	if len(values) == 0 {
		return nil, nil
	}
	var (
		r   float64
		err error
	)
	switch o.item.Func {
	case FuncAvg:
		r, err = values.Mean()
	case FuncSum:
		r, err = values.Sum()
	case FuncMin:
		r, err = values.Min()
	case FuncMax:
		r, err = values.Max()
	default:
		return nil, fmt.Errorf("unsupported aggregate %s", o.item.Func)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.name, err)
	}
	if o.field.Type == schema.IntegerType && o.item.Func != FuncAvg {
		return int64(r), nil
	}
	return r, nil
}

// sortKey is the position of an ORDER BY column in the result rows. Grouping columns left out of the select list are
// carried as hidden trailing values until the rows are sorted.
type sortKey struct {
	index  int
	hidden string
	desc   bool
}

func resolveOrder(stmt *Statement, s *schema.Schema, columns []string) ([]sortKey, error) {
	keys := make([]sortKey, len(stmt.OrderBy))
	next := len(columns)
	for i, o := range stmt.OrderBy {
		keys[i] = sortKey{index: -1, desc: o.Desc}
		for j, c := range columns {
			if strings.EqualFold(c, o.Column) {
				keys[i].index = j
				break
			}
		}
		if keys[i].index >= 0 {
			continue
		}
		f, ok := groupingField(stmt, s, o.Column)
		if !ok {
			return nil, fmt.Errorf("%w: ORDER BY %s is not in the select list or GROUP BY", ErrAnalysis, o.Column)
		}
		keys[i].index = next
		keys[i].hidden = f
		next++
	}
	return keys, nil
}

// groupingField returns the schema name of a GROUP BY column.
func groupingField(stmt *Statement, s *schema.Schema, column string) (string, bool) {
	f, _, err := s.Lookup(column)
	if err != nil {
		return "", false
	}
	for _, g := range stmt.GroupBy {
		if strings.EqualFold(g, f.Name) {
			return f.Name, true
		}
	}
	return "", false
}

func order(keys []sortKey, rows [][]interface{}) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(a, b int) bool {
		for _, k := range keys {
			c := compare(rows[a][k.index], rows[b][k.index])
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compare orders nulls first, numbers numerically and everything else by its text.
func compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, errA := schema.ToFloat(a)
	fb, errB := schema.ToFloat(b)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(schema.FormatValue(a), schema.FormatValue(b))
}
