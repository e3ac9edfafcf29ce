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
Package memory implements named in-memory tables. A table is append-only; writers append whole micro-batches under
a lock and readers take snapshots, so a query never observes half of a batch and never waits for one.
*/
package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/laptopstream/laptopstream/pkg/schema"
	"github.com/laptopstream/laptopstream/pkg/sinks"
)

// Table is an append-only, in-memory table.
type Table struct {
	name      string
	schema    *schema.Schema
	createdAt time.Time

	lock sync.RWMutex
	rows []schema.Row
	// version is incremented with every appended batch
	version *atomic.Int64
}

var _ sinks.Sinker = (*Table)(nil)

// NewTable returns an empty table.
func NewTable(name string, s *schema.Schema) *Table {
	return &Table{
		name:      name,
		schema:    s,
		createdAt: time.Now(),
		version:   atomic.NewInt64(0),
	}
}

// GetName returns the name of the table.
func (t *Table) GetName() string {
	return t.name
}

// Schema returns the schema of the table.
func (t *Table) Schema() *schema.Schema {
	return t.schema
}

// CreatedAt returns when the table was created.
func (t *Table) CreatedAt() time.Time {
	return t.createdAt
}

// Write appends the rows of a batch.
func (t *Table) Write(_ context.Context, rows []schema.Row) error {
	if len(rows) == 0 {
		return nil
	}
	copied := make([]schema.Row, len(rows))
	for i, r := range rows {
		copied[i] = r.Copy()
	}
	t.lock.Lock()
	t.rows = append(t.rows, copied...)
	n := len(t.rows)
	t.lock.Unlock()
	t.version.Inc()
	tableRows.WithLabelValues(t.name).Set(float64(n))
	return nil
}

// Snapshot returns the rows appended so far. Rows are never modified once appended, callers must not modify them
// either.
func (t *Table) Snapshot() []schema.Row {
	t.lock.RLock()
	defer t.lock.RUnlock()
	r := make([]schema.Row, len(t.rows))
	copy(r, t.rows)
	return r
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.rows)
}

// Version returns the number of batches appended.
func (t *Table) Version() int64 {
	return t.version.Load()
}

func (t *Table) Close() error {
	return nil
}
