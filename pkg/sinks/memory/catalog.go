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

package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")
)

// Catalog holds the tables by name. Names are case-insensitive.
type Catalog struct {
	lock   sync.RWMutex
	tables map[string]*Table
}

func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a table to the catalog.
func (c *Catalog) Register(t *Table) error {
	if key(t.GetName()) == "" {
		return fmt.Errorf("table name can not be empty")
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.tables[key(t.GetName())]; ok {
		return fmt.Errorf("%w: %s", ErrTableExists, t.GetName())
	}
	c.tables[key(t.GetName())] = t
	return nil
}

// Lookup returns the table with the name.
func (c *Catalog) Lookup(name string) (*Table, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	t, ok := c.tables[key(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// Drop removes the table from the catalog, dropping a missing table is a no-op.
func (c *Catalog) Drop(name string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.tables, key(name))
}

// Tables returns the tables sorted by name.
func (c *Catalog) Tables() []*Table {
	c.lock.RLock()
	defer c.lock.RUnlock()
	r := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		r = append(r, t)
	}
	sort.Slice(r, func(i, j int) bool {
		return r[i].GetName() < r[j].GetName()
	})
	return r
}
