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
Package csvfile reads header-bearing delimited files into typed rows. It backs both the batch loader,
which reads a whole dataset once, and the directory stream source, which reads one file per detected
arrival.
*/
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/laptopstream/laptopstream/pkg/schema"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
)

// ParseMode decides what happens to rows that do not conform to the schema.
type ParseMode string

const (
	// FailFast fails the whole read on the first malformed row.
	FailFast ParseMode = "failFast"
	// DropMalformed skips malformed rows and counts them.
	DropMalformed ParseMode = "dropMalformed"
)

const DefaultPattern = "*.csv"

// ErrNoFiles is returned when a batch read finds nothing to read.
var ErrNoFiles = errors.New("no matching files")

// ParseModeFromString parses a parse mode, an empty string means FailFast.
func ParseModeFromString(s string) (ParseMode, error) {
	switch {
	case s == "" || strings.EqualFold(s, string(FailFast)):
		return FailFast, nil
	case strings.EqualFold(s, string(DropMalformed)):
		return DropMalformed, nil
	default:
		return "", fmt.Errorf("unrecognized parse mode %q", s)
	}
}

type options struct {
	pattern   string
	mode      ParseMode
	delimiter rune
	logger    *zap.SugaredLogger
}

type Option func(*options) error

// WithPattern sets the glob pattern file names must match.
func WithPattern(p string) Option {
	return func(o *options) error {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid file pattern %q: %w", p, err)
		}
		o.pattern = p
		return nil
	}
}

// WithParseMode sets the parse mode.
func WithParseMode(m ParseMode) Option {
	return func(o *options) error {
		o.mode = m
		return nil
	}
}

// WithDelimiter sets the field delimiter, defaults to a comma.
func WithDelimiter(d rune) Option {
	return func(o *options) error {
		o.delimiter = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}

func newOptions(ctx context.Context, opts []Option) (*options, error) {
	o := &options{pattern: DefaultPattern, mode: FailFast, delimiter: ','}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = logging.FromContext(ctx)
	}
	return o, nil
}

// Result is the outcome of reading one or more files.
type Result struct {
	Rows []schema.Row
	// Malformed is the number of rows skipped in DropMalformed mode.
	Malformed int
	Files     []string
}

// Read reads a single file or every matching file of a directory, in lexical order.
func Read(ctx context.Context, path string, s *schema.Schema, opts ...Option) (*Result, error) {
	o, err := newOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	files := []string{path}
	if info.IsDir() {
		if files, err = ListFiles(path, o.pattern); err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %q for pattern %q", ErrNoFiles, path, o.pattern)
	}
	result := &Result{Files: files}
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		rows, malformed, err := readFile(f, s, o)
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, rows...)
		result.Malformed += malformed
	}
	o.logger.Debugw("Read dataset", zap.String("path", path), zap.Int("files", len(files)), zap.Int("rows", len(result.Rows)), zap.Int("malformed", result.Malformed))
	return result, nil
}

// ReadFile reads one file, returning the rows and the number of skipped malformed rows.
func ReadFile(ctx context.Context, path string, s *schema.Schema, opts ...Option) ([]schema.Row, int, error) {
	o, err := newOptions(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	return readFile(path, s, o)
}

func readFile(path string, s *schema.Schema, o *options) ([]schema.Row, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()
	return parse(f, path, s, o)
}

func parse(in io.Reader, name string, s *schema.Schema, o *options) ([]schema.Row, int, error) {
	r := csv.NewReader(in)
	r.Comma = o.delimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header of %q: %w", name, err)
	}
	if !s.HeaderMatches(header) {
		// fields are bound by position, a differently named header is not fatal
		o.logger.Warnw("CSV header does not conform to the schema", zap.String("file", name), zap.Strings("header", header), zap.Strings("schema", s.Names()))
	}

	var (
		rows      []schema.Row
		malformed int
		line      = 1
	)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err == nil {
			var row schema.Row
			if row, err = s.Parse(record); err == nil {
				rows = append(rows, row)
				continue
			}
		}
		if o.mode == DropMalformed {
			malformed++
			o.logger.Debugw("Dropping malformed row", zap.String("file", name), zap.Int("line", line), zap.Error(err))
			continue
		}
		return nil, 0, fmt.Errorf("malformed row at %s:%d: %w", name, line, err)
	}
	return rows, malformed, nil
}

// ListFiles returns the regular files of a directory matching the pattern, sorted by name. Hidden files and
// files whose name starts with "_" are skipped, they are commonly used for in-progress writes.
func ListFiles(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !Eligible(e.Name(), pattern) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Eligible tells whether a base file name should be read for the pattern.
func Eligible(name, pattern string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return false
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}
