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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laptopstream/laptopstream/pkg/sinks/logger"
	"github.com/laptopstream/laptopstream/pkg/sinks/memory"
)

func TestManager_StartTwoSinks(t *testing.T) {
	ctx := testContext(t)
	dir := t.TempDir()
	writeCSV(t, dir, "part-0.csv", "1,Dell,XPS 15,Notebook,1500.0", "2,Dell,Inspiron,Notebook,1000.0")
	src := newSource(t, ctx, dir)
	catalog := memory.NewCatalog()
	m := NewManager(catalog)
	assert.Equal(t, catalog, m.Catalog())

	interval, err := ProcessingTime(50 * time.Millisecond)
	require.NoError(t, err)
	q20, err := m.Start(ctx, "premium_laptops_20", premiumLaptops(t), src, interval)
	require.NoError(t, err)
	qOnce, err := m.Start(ctx, "premium_laptops_once", premiumLaptops(t), src, Once())
	require.NoError(t, err)

	_, err = m.Start(ctx, "Premium_Laptops_20", premiumLaptops(t), src, Once())
	assert.ErrorIs(t, err, ErrQueryNameInUse)

	require.NoError(t, m.AwaitAnyTermination(ctx))
	require.NoError(t, qOnce.AwaitTermination(ctx))
	require.NoError(t, q20.ProcessAllAvailable(ctx))

	// each query consumed the source on its own
	for _, name := range []string{"premium_laptops_20", "premium_laptops_once"} {
		tbl, err := catalog.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, 1, tbl.RowCount(), name)
	}

	writeCSV(t, dir, "part-1.csv", "3,Dell,Precision,Workstation,2500.0")
	require.NoError(t, q20.ProcessAllAvailable(ctx))
	tbl20, _ := catalog.Lookup("premium_laptops_20")
	tblOnce, _ := catalog.Lookup("premium_laptops_once")
	assert.Equal(t, 2, tbl20.RowCount())
	assert.Equal(t, 1, tblOnce.RowCount())

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, q20, active[0])
	assert.Len(t, m.Queries(), 2)

	got, err := m.Get("PREMIUM_LAPTOPS_ONCE")
	require.NoError(t, err)
	assert.Equal(t, qOnce, got)
	got, err = m.Get(q20.ID())
	require.NoError(t, err)
	assert.Equal(t, q20, got)
	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrQueryNotFound)

	require.NoError(t, m.StopAll())
	assert.Empty(t, m.Active())
}

func TestManager_RestartReplacesTable(t *testing.T) {
	ctx := testContext(t)
	dir := t.TempDir()
	writeCSV(t, dir, "part-0.csv", "1,Dell,XPS 15,Notebook,1500.0")
	src := newSource(t, ctx, dir)
	catalog := memory.NewCatalog()
	m := NewManager(catalog)

	first, err := m.Start(ctx, "premium_laptops_once", premiumLaptops(t), src, Once())
	require.NoError(t, err)
	require.NoError(t, first.AwaitTermination(ctx))

	second, err := m.Start(ctx, "premium_laptops_once", premiumLaptops(t), src, Once())
	require.NoError(t, err)
	require.NoError(t, second.AwaitTermination(ctx))
	assert.NotEqual(t, first.ID(), second.ID())

	tbl, err := catalog.Lookup("premium_laptops_once")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.RowCount())
	assert.Len(t, catalog.Tables(), 1)
}

func TestManager_AwaitAnyTermination(t *testing.T) {
	ctx := testContext(t)
	dir := t.TempDir()
	writeCSV(t, dir, "part-0.csv", "1,Dell,XPS 15,Notebook,oops")
	src := newSource(t, ctx, dir)
	m := NewManager(memory.NewCatalog())

	_, err := m.Start(ctx, "broken", premiumLaptops(t), src, Once())
	require.NoError(t, err)
	err = m.AwaitAnyTermination(ctx)
	assert.Error(t, err)

	m.ResetTerminated()
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(m.AwaitAnyTermination(short), context.DeadlineExceeded))
}

func TestManager_StartWithSink(t *testing.T) {
	ctx := testContext(t)
	dir := t.TempDir()
	writeCSV(t, dir, "part-0.csv", "1,Dell,XPS 15,Notebook,1500.0")
	src := newSource(t, ctx, dir)
	catalog := memory.NewCatalog()
	listener := &recordingListener{}
	m := NewManager(catalog, listener)

	console, err := logger.NewToLog("console", premiumLaptops(t).Schema(), logger.WithWriter(&safeBuffer{}))
	require.NoError(t, err)
	q, err := m.StartWithSink(ctx, "console", premiumLaptops(t), src, console, Once())
	require.NoError(t, err)
	require.NoError(t, q.AwaitTermination(ctx))
	assert.Equal(t, console, q.Sink())
	assert.Empty(t, catalog.Tables())

	listener.lock.Lock()
	defer listener.lock.Unlock()
	assert.Len(t, listener.progress, 1)
}
