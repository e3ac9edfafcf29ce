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

package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/laptopstream/laptopstream/pkg/shared/logging"
)

type checkpoint struct {
	Query     string    `json:"query"`
	UpdatedAt time.Time `json:"updatedAt"`
	Files     []string  `json:"files"`
}

// fileLedger keeps the processed files of a query in <dir>/<query>.json.
type fileLedger struct {
	query string
	path  string
	lock  sync.RWMutex
	files map[string]struct{}
	log   *zap.SugaredLogger
}

var _ Ledger = (*fileLedger)(nil)

// NewFileLedger opens, or creates, the checkpoint file of the query in dir.
func NewFileLedger(ctx context.Context, dir, query string) (Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory %q: %w", dir, err)
	}
	l := &fileLedger{
		query: query,
		path:  filepath.Join(dir, query+".json"),
		files: make(map[string]struct{}),
		log:   logging.FromContext(ctx).With("query", query),
	}
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read checkpoint %q: %w", l.path, err)
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %q: %w", l.path, err)
	}
	for _, f := range cp.Files {
		l.files[f] = struct{}{}
	}
	l.log.Infow("Loaded checkpoint", zap.String("path", l.path), zap.Int("files", len(cp.Files)))
	return l, nil
}

func (l *fileLedger) Contains(_ context.Context, path string) (bool, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	_, ok := l.files[path]
	return ok, nil
}

func (l *fileLedger) Add(_ context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, p := range paths {
		l.files[p] = struct{}{}
	}
	return l.flush()
}

// flush rewrites the checkpoint through a rename, a crash leaves either the old or the new content.
func (l *fileLedger) flush() error {
	cp := checkpoint{Query: l.query, UpdatedAt: time.Now().UTC(), Files: make([]string, 0, len(l.files))}
	for f := range l.files {
		cp.Files = append(cp.Files, f)
	}
	sort.Strings(cp.Files)
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to commit checkpoint %q: %w", l.path, err)
	}
	return nil
}

func (l *fileLedger) Close() error {
	return nil
}
