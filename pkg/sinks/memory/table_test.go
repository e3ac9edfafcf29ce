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
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laptopstream/laptopstream/pkg/schema"
)

var premium = schema.MustNew(
	schema.Field{Name: "Id", Type: schema.IntegerType},
	schema.Field{Name: "Company", Type: schema.StringType},
	schema.Field{Name: "Price_usd", Type: schema.FloatType},
)

func row(id int64, company string, usd float64) schema.Row {
	return schema.Row{"Id": id, "Company": company, "Price_usd": usd}
}

func TestTable_Write(t *testing.T) {
	tbl := NewTable("premium_laptops_test", premium)
	assert.Equal(t, "premium_laptops_test", tbl.GetName())
	assert.Equal(t, premium, tbl.Schema())
	assert.Equal(t, 0, tbl.RowCount())

	require.NoError(t, tbl.Write(context.Background(), nil))
	assert.Equal(t, int64(0), tbl.Version())

	batch := []schema.Row{row(1, "Dell", 2158.35), row(2, "Dell", 2500)}
	require.NoError(t, tbl.Write(context.Background(), batch))
	assert.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, int64(1), tbl.Version())
	assert.Equal(t, float64(2), testutil.ToFloat64(tableRows.WithLabelValues("premium_laptops_test")))

	// the table keeps its own copy of the rows
	batch[0]["Company"] = "HP"
	snap := tbl.Snapshot()
	assert.Equal(t, "Dell", snap[0]["Company"])

	// a snapshot does not see later batches
	require.NoError(t, tbl.Write(context.Background(), []schema.Row{row(3, "Apple", 3000)}))
	assert.Len(t, snap, 2)
	assert.Equal(t, 3, tbl.RowCount())
	assert.NoError(t, tbl.Close())
}

func TestTable_ConcurrentWriters(t *testing.T) {
	tbl := NewTable("concurrent", premium)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = tbl.Write(context.Background(), []schema.Row{row(int64(i), "Asus", 2100), row(int64(i), "Asus", 2200)})
			_ = tbl.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, tbl.RowCount())
	assert.Equal(t, int64(10), tbl.Version())
	// batches are never interleaved
	snap := tbl.Snapshot()
	for i := 0; i < len(snap); i += 2 {
		assert.Equal(t, snap[i]["Id"], snap[i+1]["Id"])
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(NewTable("premium_laptops_20", premium)))
	require.NoError(t, c.Register(NewTable("premium_laptops_once", premium)))

	err := c.Register(NewTable("PREMIUM_LAPTOPS_20", premium))
	assert.True(t, errors.Is(err, ErrTableExists))
	assert.Error(t, c.Register(NewTable(" ", premium)))

	tbl, err := c.Lookup("Premium_Laptops_20")
	require.NoError(t, err)
	assert.Equal(t, "premium_laptops_20", tbl.GetName())

	_, err = c.Lookup("laptops")
	assert.ErrorIs(t, err, ErrTableNotFound)

	tables := c.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, "premium_laptops_20", tables[0].GetName())
	assert.Equal(t, "premium_laptops_once", tables[1].GetName())

	c.Drop("premium_laptops_20")
	c.Drop("missing")
	assert.Len(t, c.Tables(), 1)
}
