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

package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laptopstream/laptopstream/pkg/config"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
)

const dataset = "../../examples/datasets/laptops.csv"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.DatasetPath = dataset
	cfg.SourceDir = filepath.Join(t.TempDir(), "stream_input")
	cfg.Sinks = []config.SinkConfig{
		{Name: "premium_laptops_20", Trigger: "100ms"},
		{Name: "premium_laptops_once", Trigger: "once"},
	}
	return cfg
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(logging.WithLogger(context.Background(), logging.NewNopLogger()), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// stage copies the dataset into the source directory through a rename.
func stage(t *testing.T, dir, name string) {
	t.Helper()
	data, err := os.ReadFile(dataset)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	tmp := filepath.Join(dir, "_"+name)
	require.NoError(t, os.WriteFile(tmp, data, 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, name)))
}

func TestBuildPlan(t *testing.T) {
	cfg := testConfig(t)
	p, err := BuildPlan(cfg, false)
	require.NoError(t, err)
	assert.False(t, p.IsStreaming())
	assert.Equal(t, []string{"Id", "Company", "Price_usd"}, p.Schema().Names())

	p, err = BuildPlan(cfg, true)
	require.NoError(t, err)
	assert.True(t, p.IsStreaming())

	cfg.Select = nil
	cfg.Filter = ""
	p, err = BuildPlan(cfg, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Company", "Product", "TypeName", "Price_euros", "Price_usd"}, p.Schema().Names())

	cfg.Filter = "Price_dollars > 2000"
	_, err = BuildPlan(cfg, true)
	assert.Error(t, err)
}

func TestPipeline_LoadBatch(t *testing.T) {
	ctx := testContext(t)
	p, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	result, err := p.LoadBatch(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 22)

	r, err := p.Engine().Query(ctx, "SELECT count(*) FROM laptops")
	require.NoError(t, err)
	assert.Equal(t, int64(22), r.Rows[0][0])

	// loading again replaces the table
	_, err = p.LoadBatch(ctx)
	require.NoError(t, err)
	tbl, err := p.Catalog().Lookup(BatchTable)
	require.NoError(t, err)
	assert.Equal(t, 22, tbl.RowCount())

	cfg := testConfig(t)
	cfg.DatasetPath = filepath.Join(t.TempDir(), "missing.csv")
	p, err = New(ctx, cfg)
	require.NoError(t, err)
	_, err = p.LoadBatch(ctx)
	assert.Error(t, err)
}

func TestPipeline_Start(t *testing.T) {
	ctx := testContext(t)
	cfg := testConfig(t)
	stage(t, cfg.SourceDir, "part-0.csv")
	p, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.Error(t, p.HealthCheckers()[0].IsHealthy(ctx))

	require.NoError(t, p.Start(ctx))
	defer func() { assert.NoError(t, p.Stop()) }()
	for _, hc := range p.HealthCheckers() {
		assert.NoError(t, hc.IsHealthy(ctx))
	}

	require.NoError(t, p.AwaitOnceSinks(ctx))
	q20, err := p.Manager().Get("premium_laptops_20")
	require.NoError(t, err)
	require.NoError(t, q20.ProcessAllAvailable(ctx))

	for _, name := range []string{"premium_laptops_20", "premium_laptops_once"} {
		tbl, err := p.Catalog().Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, 9, tbl.RowCount(), name)
		for _, r := range tbl.Snapshot() {
			assert.Greater(t, r["Price_usd"].(float64), 2000.0)
		}
	}

	r, err := p.Engine().Query(ctx, "SELECT Company, avg(Price_usd) FROM premium_laptops_once GROUP BY Company ORDER BY Company")
	require.NoError(t, err)
	require.Len(t, r.Rows, 4)
	assert.Equal(t, "Apple", r.Rows[0][0])
	assert.InDelta(t, 3188.971666666667, r.Rows[0][1], 1e-9)
	assert.Equal(t, "Dell", r.Rows[2][0])
	assert.InDelta(t, 2158.35, r.Rows[2][1], 1e-9)

	// a second file only reaches the interval sink
	stage(t, cfg.SourceDir, "part-1.csv")
	require.NoError(t, q20.ProcessAllAvailable(ctx))
	tbl20, _ := p.Catalog().Lookup("premium_laptops_20")
	tblOnce, _ := p.Catalog().Lookup("premium_laptops_once")
	assert.Equal(t, 18, tbl20.RowCount())
	assert.Equal(t, 9, tblOnce.RowCount())

	buf := new(bytes.Buffer)
	require.NoError(t, p.RunQueries(ctx, buf))
	out := buf.String()
	assert.Contains(t, out, "SELECT Company, avg(Price_usd) FROM premium_laptops_20 GROUP BY Company ORDER BY Company")
	assert.Contains(t, out, "|  Apple|3188.9716666666664|")
	assert.Contains(t, out, "|  Apple|3188.971666666667|")
	assert.Contains(t, out, "2158.35|")
}

func TestPipeline_ConsoleSink(t *testing.T) {
	ctx := testContext(t)
	cfg := testConfig(t)
	cfg.Sinks = []config.SinkConfig{{Name: "console", Trigger: "once", Format: config.SinkFormatConsole}}
	cfg.Queries = nil
	stage(t, cfg.SourceDir, "part-0.csv")
	buf := new(bytes.Buffer)
	p, err := New(ctx, cfg, WithConsole(buf))
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx))
	defer func() { assert.NoError(t, p.Stop()) }()
	require.NoError(t, p.AwaitOnceSinks(ctx))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "(console) Id=4 Company=Apple Price_usd=3651.14", lines[0])
	assert.Empty(t, p.Catalog().Tables())
}

func TestPipeline_FileLedger(t *testing.T) {
	ctx := testContext(t)
	cfg := testConfig(t)
	cfg.Sinks = []config.SinkConfig{{Name: "premium_laptops_once", Trigger: "once"}}
	cfg.Query.Ledger.Type = "file"
	cfg.Query.Ledger.Dir = filepath.Join(t.TempDir(), "checkpoints")
	stage(t, cfg.SourceDir, "part-0.csv")

	run := func() int {
		p, err := New(ctx, cfg)
		require.NoError(t, err)
		require.NoError(t, p.Start(ctx))
		defer func() { assert.NoError(t, p.Stop()) }()
		require.NoError(t, p.AwaitOnceSinks(ctx))
		tbl, err := p.Catalog().Lookup("premium_laptops_once")
		require.NoError(t, err)
		return tbl.RowCount()
	}
	assert.Equal(t, 9, run())
	// the restarted job skips the processed file
	assert.Equal(t, 0, run())
}

func TestPipeline_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sinks[0].Trigger = "sometimes"
	_, err := New(testContext(t), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Transform.Expression = "round(Price_pounds, 2)"
	_, err = New(testContext(t), cfg)
	assert.Error(t, err)
}
