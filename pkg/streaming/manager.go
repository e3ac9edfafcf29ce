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

package streaming

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/laptopstream/laptopstream/pkg/plan"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
	"github.com/laptopstream/laptopstream/pkg/sinks"
	"github.com/laptopstream/laptopstream/pkg/sinks/memory"
	"github.com/laptopstream/laptopstream/pkg/sources/filestream"
)

var (
	ErrQueryNameInUse = errors.New("query name is in use by an active query")
	ErrQueryNotFound  = errors.New("query not found")
)

// Manager starts queries and keeps track of them. A query writing to memory gets a table of its name in the catalog.
type Manager struct {
	catalog   *memory.Catalog
	listeners []Listener

	lock    sync.RWMutex
	queries map[string]*StreamingQuery
	// terminated is closed when a query terminates, and replaced by ResetTerminated
	terminated     chan struct{}
	lastTerminated *StreamingQuery
}

// NewManager returns a manager registering memory tables in the catalog. The listeners are attached to every query.
func NewManager(catalog *memory.Catalog, listeners ...Listener) *Manager {
	return &Manager{
		catalog:    catalog,
		listeners:  listeners,
		queries:    make(map[string]*StreamingQuery),
		terminated: make(chan struct{}),
	}
}

// Catalog returns the catalog of the memory tables.
func (m *Manager) Catalog() *memory.Catalog {
	return m.catalog
}

// Start starts a query appending its output to the in-memory table named after the query. A table left behind by
// a terminated query of the same name is replaced.
func (m *Manager) Start(ctx context.Context, name string, p *plan.Plan, src *filestream.Source, trigger Trigger, opts ...Option) (*StreamingQuery, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if err := m.checkName(name); err != nil {
		return nil, err
	}
	if _, ok := m.queries[key(name)]; ok {
		m.catalog.Drop(name)
	}
	table := memory.NewTable(name, p.Schema())
	if err := m.catalog.Register(table); err != nil {
		return nil, err
	}
	q, err := m.start(ctx, name, p, src, table, trigger, opts)
	if err != nil {
		m.catalog.Drop(name)
		return nil, err
	}
	return q, nil
}

// StartWithSink starts a query writing to the given sink.
func (m *Manager) StartWithSink(ctx context.Context, name string, p *plan.Plan, src *filestream.Source, sink sinks.Sinker, trigger Trigger, opts ...Option) (*StreamingQuery, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if err := m.checkName(name); err != nil {
		return nil, err
	}
	return m.start(ctx, name, p, src, sink, trigger, opts)
}

func (m *Manager) checkName(name string) error {
	if q, ok := m.queries[key(name)]; ok && q.IsActive() {
		return fmt.Errorf("%w: %s", ErrQueryNameInUse, name)
	}
	return nil
}

func (m *Manager) start(ctx context.Context, name string, p *plan.Plan, src *filestream.Source, sink sinks.Sinker, trigger Trigger, opts []Option) (*StreamingQuery, error) {
	opts = append([]Option{WithListeners(m.listeners...)}, opts...)
	q, err := NewStreamingQuery(name, p, src, sink, trigger, opts...)
	if err != nil {
		return nil, err
	}
	if err := q.Start(ctx); err != nil {
		return nil, err
	}
	m.queries[key(name)] = q
	go m.watch(ctx, q)
	return q, nil
}

func (m *Manager) watch(ctx context.Context, q *StreamingQuery) {
	<-q.Done()
	if err := q.Exception(); err != nil {
		logging.FromContext(ctx).Errorw("Query failed", zap.String("query", q.Name()), zap.Error(err))
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.lastTerminated == nil {
		m.lastTerminated = q
		close(m.terminated)
	}
}

// Get returns the query with the name or id.
func (m *Manager) Get(nameOrID string) (*StreamingQuery, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if q, ok := m.queries[key(nameOrID)]; ok {
		return q, nil
	}
	for _, q := range m.queries {
		if q.ID() == nameOrID {
			return q, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, nameOrID)
}

// Queries returns every query started by the manager, including terminated ones, sorted by name.
func (m *Manager) Queries() []*StreamingQuery {
	m.lock.RLock()
	defer m.lock.RUnlock()
	r := make([]*StreamingQuery, 0, len(m.queries))
	for _, q := range m.queries {
		r = append(r, q)
	}
	sort.Slice(r, func(i, j int) bool {
		return r[i].Name() < r[j].Name()
	})
	return r
}

// Active returns the queries which have not terminated, sorted by name.
func (m *Manager) Active() []*StreamingQuery {
	var r []*StreamingQuery
	for _, q := range m.Queries() {
		if q.IsActive() {
			r = append(r, q)
		}
	}
	return r
}

// AwaitAnyTermination waits until any query terminates since the manager was created, or since the last
// ResetTerminated, and returns its exception.
func (m *Manager) AwaitAnyTermination(ctx context.Context) error {
	m.lock.RLock()
	ch := m.terminated
	m.lock.RUnlock()
	select {
	case <-ch:
		m.lock.RLock()
		defer m.lock.RUnlock()
		if m.lastTerminated == nil {
			return nil
		}
		return m.lastTerminated.Exception()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResetTerminated forgets the queries terminated so far, so that AwaitAnyTermination waits for new terminations.
func (m *Manager) ResetTerminated() {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.lastTerminated != nil {
		m.lastTerminated = nil
		m.terminated = make(chan struct{})
	}
}

// StopAll stops every active query.
func (m *Manager) StopAll() error {
	var err error
	for _, q := range m.Active() {
		if e := q.Stop(); e != nil {
			err = multierr.Append(err, fmt.Errorf("failed to stop query %q: %w", q.Name(), e))
		}
	}
	return err
}

func key(name string) string {
	return strings.ToLower(name)
}
