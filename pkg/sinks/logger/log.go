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

package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/laptopstream/laptopstream/pkg/schema"
	"github.com/laptopstream/laptopstream/pkg/sinks"
)

// ToLog prints the rows of every batch, one line per row.
type ToLog struct {
	name   string
	schema *schema.Schema
	lock   sync.Mutex
	out    io.Writer
}

var _ sinks.Sinker = (*ToLog)(nil)

type Option func(*ToLog) error

// WithWriter sets where the rows are printed, defaults to stdout.
func WithWriter(w io.Writer) Option {
	return func(t *ToLog) error {
		t.out = w
		return nil
	}
}

// NewToLog returns ToLog type.
func NewToLog(name string, s *schema.Schema, opts ...Option) (*ToLog, error) {
	toLog := &ToLog{name: name, schema: s, out: os.Stdout}
	for _, o := range opts {
		if err := o(toLog); err != nil {
			return nil, err
		}
	}
	return toLog, nil
}

// GetName returns the name.
func (t *ToLog) GetName() string {
	return t.name
}

// Write writes to the log.
func (t *ToLog) Write(_ context.Context, rows []schema.Row) error {
	prefix := "(" + t.GetName() + ")"
	t.lock.Lock()
	defer t.lock.Unlock()
	for _, r := range rows {
		pairs := make([]string, 0, t.schema.Len())
		for _, f := range t.schema.Fields() {
			pairs = append(pairs, f.Name+"="+schema.FormatValue(r[f.Name]))
		}
		if _, err := fmt.Fprintln(t.out, prefix, strings.Join(pairs, " ")); err != nil {
			return fmt.Errorf("failed to print row: %w", err)
		}
		logSinkWriteCount.WithLabelValues(t.name).Inc()
	}
	return nil
}

func (t *ToLog) Close() error {
	return nil
}
