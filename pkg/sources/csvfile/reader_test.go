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

package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laptopstream/laptopstream/pkg/schema"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
)

func testOpts(opts ...Option) []Option {
	return append([]Option{WithLogger(logging.NewNopLogger())}, opts...)
}

func TestRead_Directory(t *testing.T) {
	res, err := Read(context.Background(), "testdata/dataset", schema.Laptops, testOpts()...)
	require.NoError(t, err)
	// README.txt does not match the pattern, _in_progress.csv is skipped
	assert.Equal(t, []string{filepath.Join("testdata", "dataset", "laptops.csv")}, res.Files)
	require.Len(t, res.Rows, 22)
	assert.Equal(t, 0, res.Malformed)

	first := res.Rows[0]
	assert.Equal(t, int64(1), first["Id"])
	assert.Equal(t, "Apple", first["Company"])
	assert.Equal(t, "MacBook Pro", first["Product"])
	assert.Equal(t, "Ultrabook", first["TypeName"])
	assert.Equal(t, 1339.69, first["Price_euros"])

	// quoted field with an escaped quote
	assert.Equal(t, `MacBook 12"`, res.Rows[14]["Product"])
}

func TestRead_SingleFile(t *testing.T) {
	res, err := Read(context.Background(), "testdata/dataset/laptops.csv", schema.Laptops, testOpts()...)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 22)
}

func TestRead_NoFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Read(context.Background(), dir, schema.Laptops, testOpts()...)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = Read(context.Background(), filepath.Join(dir, "missing"), schema.Laptops, testOpts()...)
	assert.True(t, os.IsNotExist(err))
}

func TestRead_Malformed(t *testing.T) {
	t.Run("fail fast", func(t *testing.T) {
		_, err := Read(context.Background(), "testdata/malformed.csv", schema.Laptops, testOpts()...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed.csv:3")
	})

	t.Run("drop malformed", func(t *testing.T) {
		res, err := Read(context.Background(), "testdata/malformed.csv", schema.Laptops, testOpts(WithParseMode(DropMalformed))...)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Malformed)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, int64(1), res.Rows[0]["Id"])
		assert.Equal(t, int64(5), res.Rows[1]["Id"])
	})
}

func TestRead_HeaderIsPositional(t *testing.T) {
	res, err := Read(context.Background(), "testdata/renamed_header.csv", schema.Laptops, testOpts()...)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(100), res.Rows[0]["Id"])
}

func TestRead_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Read(ctx, "testdata/dataset", schema.Laptops, testOpts()...)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_Delimiter(t *testing.T) {
	o, err := newOptions(context.Background(), testOpts(WithDelimiter(';')))
	require.NoError(t, err)
	rows, malformed, err := parse(strings.NewReader("Id;Company;Product;TypeName;Price_euros\n7;HP;Omen;Gaming;1999.5\n"), "inline", schema.Laptops, o)
	require.NoError(t, err)
	assert.Equal(t, 0, malformed)
	require.Len(t, rows, 1)
	assert.Equal(t, 1999.5, rows[0]["Price_euros"])

	rows, _, err = parse(strings.NewReader(""), "empty", schema.Laptops, o)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOptions(t *testing.T) {
	_, err := newOptions(context.Background(), []Option{WithPattern("[")})
	assert.Error(t, err)

	m, err := ParseModeFromString("")
	require.NoError(t, err)
	assert.Equal(t, FailFast, m)
	m, err = ParseModeFromString("DROPMALFORMED")
	require.NoError(t, err)
	assert.Equal(t, DropMalformed, m)
	_, err = ParseModeFromString("permissive")
	assert.Error(t, err)
}

func TestEligible(t *testing.T) {
	assert.True(t, Eligible("batch-1.csv", DefaultPattern))
	assert.False(t, Eligible(".batch-1.csv", DefaultPattern))
	assert.False(t, Eligible("_tmp.csv", DefaultPattern))
	assert.False(t, Eligible("batch-1.csv.tmp", DefaultPattern))
	assert.True(t, Eligible("batch-1.txt", "*"))
}
