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
Package filestream turns a directory into an unbounded source of files. Every file landing in the
directory gets the next offset of an append-only log; readers consume the log from their own offsets,
so several sink registrations can read the same directory independently.

Files should be written atomically: write them under a name starting with "." or "_", or outside the
directory, then rename them into place.
*/
package filestream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/laptopstream/laptopstream/pkg/shared/logging"
	"github.com/laptopstream/laptopstream/pkg/sources/csvfile"
)

// ErrClosed is returned when using a closed source.
var ErrClosed = errors.New("source is closed")

// FileEntry is a file detected in the watched directory.
type FileEntry struct {
	// Offset is the position of the file in the detection log, starting at 0.
	Offset     int64     `json:"offset"`
	Path       string    `json:"path"`
	DetectedAt time.Time `json:"detectedAt"`
}

// Source watches a directory for newly arriving files.
type Source struct {
	dir     string
	pattern string
	logger  *zap.SugaredLogger

	lock    sync.RWMutex
	files   []FileEntry
	known   map[string]struct{}
	watcher *fsnotify.Watcher
	closed  bool
	done    chan struct{}
}

type Option func(*Source) error

// WithPattern sets the glob pattern of the files to pick up, defaults to "*.csv".
func WithPattern(p string) Option {
	return func(s *Source) error {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid file pattern %q: %w", p, err)
		}
		s.pattern = p
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Source) error {
		s.logger = l
		return nil
	}
}

// New returns a source for the directory, creating it when missing. Call Start to begin watching.
func New(ctx context.Context, dir string, opts ...Option) (*Source, error) {
	s := &Source{
		dir:     filepath.Clean(dir),
		pattern: csvfile.DefaultPattern,
		known:   make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = logging.FromContext(ctx)
	}
	s.logger = s.logger.With("source", s.dir)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create source directory %q: %w", s.dir, err)
	}
	return s, nil
}

// Dir returns the watched directory.
func (s *Source) Dir() string {
	return s.dir
}

// Start registers the directory watch and scans the files already present. The source keeps watching until the
// context is cancelled or Close is called.
func (s *Source) Start(ctx context.Context) error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return ErrClosed
	}
	if s.watcher != nil {
		s.lock.Unlock()
		return fmt.Errorf("source %q is already started", s.dir)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.lock.Unlock()
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		s.lock.Unlock()
		return fmt.Errorf("failed to watch %q: %w", s.dir, err)
	}
	s.watcher = w
	s.lock.Unlock()

	// the watch is in place before the scan, so nothing lands unnoticed in between
	if _, err := s.Rescan(); err != nil {
		s.lock.Lock()
		s.watcher = nil
		s.lock.Unlock()
		_ = w.Close()
		return err
	}
	go s.watch(ctx, w)
	s.logger.Infow("Started watching directory", zap.String("pattern", s.pattern))
	return nil
}

func (s *Source) watch(ctx context.Context, w *fsnotify.Watcher) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Context cancelled, stop watching")
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				s.register([]string{ev.Name})
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warnw("Watcher error", zap.Error(err))
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				if _, err := s.Rescan(); err != nil {
					s.logger.Errorw("Failed to rescan after event overflow", zap.Error(err))
				}
			}
		}
	}
}

// Rescan lists the directory and registers the files not seen yet, ordered by name. It returns the number of
// newly registered files.
func (s *Source) Rescan() (int, error) {
	files, err := csvfile.ListFiles(s.dir, s.pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to list %q: %w", s.dir, err)
	}
	return s.register(files), nil
}

func (s *Source) register(paths []string) int {
	candidates := make([]string, 0, len(paths))
	for _, p := range paths {
		if !csvfile.Eligible(filepath.Base(p), s.pattern) {
			continue
		}
		if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
			continue
		}
		candidates = append(candidates, p)
	}
	sort.Strings(candidates)

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return 0
	}
	now := time.Now()
	added := 0
	for _, p := range candidates {
		if _, ok := s.known[p]; ok {
			continue
		}
		s.known[p] = struct{}{}
		e := FileEntry{Offset: int64(len(s.files)), Path: p, DetectedAt: now}
		s.files = append(s.files, e)
		added++
		filesDetected.WithLabelValues(s.dir).Inc()
		s.logger.Infow("Detected new file", zap.String("file", p), zap.Int64("offset", e.Offset))
	}
	return added
}

// LatestOffset returns the offset the next detected file will get, which is also the number of files detected so far.
func (s *Source) LatestOffset() int64 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return int64(len(s.files))
}

// Files returns the entries in [from, to).
func (s *Source) Files(from, to int64) []FileEntry {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if from < 0 {
		from = 0
	}
	if n := int64(len(s.files)); to > n {
		to = n
	}
	if from >= to {
		return nil
	}
	r := make([]FileEntry, to-from)
	copy(r, s.files[from:to])
	return r
}

// Close stops watching. Files detected so far stay readable.
func (s *Source) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	w := s.watcher
	s.lock.Unlock()
	if w == nil {
		return nil
	}
	err := w.Close()
	<-s.done
	s.logger.Info("Source closed")
	return err
}
