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

package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laptopstream/laptopstream/pkg/config"
	"github.com/laptopstream/laptopstream/pkg/pipeline"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
)

const dataset = "../../../examples/datasets/laptops.csv"

// newTestServer runs the batch load and a once sink over a copy of the dataset, and serves the handler.
func newTestServer(t *testing.T) *httpexpect.Expect {
	t.Helper()
	ctx, cancel := context.WithTimeout(logging.WithLogger(context.Background(), logging.NewNopLogger()), 30*time.Second)
	t.Cleanup(cancel)

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.DatasetPath = dataset
	cfg.SourceDir = t.TempDir()
	cfg.Sinks = []config.SinkConfig{{Name: "premium_laptops_once", Trigger: "once"}}
	data, err := os.ReadFile(dataset)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, "part-0.csv"), data, 0o644))

	p, err := pipeline.New(ctx, cfg)
	require.NoError(t, err)
	_, err = p.LoadBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { assert.NoError(t, p.Stop()) })
	require.NoError(t, p.AwaitOnceSinks(ctx))

	h, err := NewHandler(p.Catalog(), p.Manager(), p.Engine())
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	api.GET("/tables", h.ListTables)
	api.GET("/tables/:table", h.GetTable)
	api.GET("/queries", h.ListQueries)
	api.GET("/queries/:name/progress", h.GetQueryProgress)
	api.POST("/sql", h.RunSQL)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return httpexpect.Default(t, server.URL)
}

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(nil, nil, nil)
	assert.Error(t, err)
}

func TestHandler_ListTables(t *testing.T) {
	e := newTestServer(t)
	obj := e.GET("/api/v1/tables").Expect().Status(http.StatusOK).JSON().Object()
	obj.NotContainsKey("errMessage")
	data := obj.Value("data").Array()
	data.Length().IsEqual(2)
	data.Value(0).Object().Value("name").String().IsEqual("laptops")
	data.Value(0).Object().Value("rows").Number().IsEqual(22)
	data.Value(1).Object().Value("name").String().IsEqual("premium_laptops_once")
	data.Value(1).Object().Value("rows").Number().IsEqual(9)
	data.Value(1).Object().Value("version").Number().IsEqual(1)
}

func TestHandler_GetTable(t *testing.T) {
	e := newTestServer(t)
	data := e.GET("/api/v1/tables/PREMIUM_LAPTOPS_ONCE").WithQuery("limit", 2).
		Expect().Status(http.StatusOK).JSON().Object().Value("data").Object()
	data.Value("name").String().IsEqual("premium_laptops_once")
	data.Value("rows").Number().IsEqual(9)
	data.Value("schema").Array().Length().IsEqual(3)
	data.Value("schema").Array().Value(2).Object().Value("name").String().IsEqual("Price_usd")
	records := data.Value("records").Array()
	records.Length().IsEqual(2)
	records.Value(0).Object().Value("Id").Number().IsEqual(4)
	records.Value(0).Object().Value("Company").String().IsEqual("Apple")
	records.Value(0).Object().Value("Price_usd").Number().IsEqual(3651.14)

	e.GET("/api/v1/tables/premium_laptops_once").Expect().Status(http.StatusOK).
		JSON().Object().Value("data").Object().Value("records").Array().Length().IsEqual(9)

	e.GET("/api/v1/tables/premium_laptops_once").WithQuery("limit", "many").
		Expect().Status(http.StatusBadRequest).JSON().Object().Value("errMessage").String().Contains("limit")

	e.GET("/api/v1/tables/unknown").Expect().Status(http.StatusNotFound).
		JSON().Object().Value("errMessage").String().Contains("table not found")
}

func TestHandler_ListQueries(t *testing.T) {
	e := newTestServer(t)
	data := e.GET("/api/v1/queries").Expect().Status(http.StatusOK).JSON().Object().Value("data").Array()
	data.Length().IsEqual(1)
	q := data.Value(0).Object()
	q.Value("name").String().IsEqual("premium_laptops_once")
	q.Value("trigger").String().IsEqual("Once")
	q.Value("state").String().IsEqual("TERMINATED")
	q.Value("committedOffset").Number().IsEqual(1)
	q.NotContainsKey("exception")
	q.Value("lastProgress").Object().Value("numOutputRows").Number().IsEqual(9)
}

func TestHandler_GetQueryProgress(t *testing.T) {
	e := newTestServer(t)
	data := e.GET("/api/v1/queries/premium_laptops_once/progress").Expect().Status(http.StatusOK).
		JSON().Object().Value("data").Array()
	data.Length().IsEqual(1)
	p := data.Value(0).Object()
	p.Value("batchId").Number().IsEqual(0)
	p.Value("numInputRows").Number().IsEqual(22)
	p.Value("numOutputRows").Number().IsEqual(9)
	p.Value("numFilteredRows").Number().IsEqual(13)
	p.Value("files").Array().Length().IsEqual(1)

	e.GET("/api/v1/queries/unknown/progress").Expect().Status(http.StatusNotFound).
		JSON().Object().Value("errMessage").String().Contains("unknown")
}

func TestHandler_RunSQL(t *testing.T) {
	e := newTestServer(t)
	data := e.POST("/api/v1/sql").
		WithJSON(SQLRequest{Query: "SELECT Company, avg(Price_usd) FROM premium_laptops_once GROUP BY Company ORDER BY Company"}).
		Expect().Status(http.StatusOK).JSON().Object().Value("data").Object()
	data.Value("columns").Array().IsEqual([]string{"Company", "avg(Price_usd)"})
	records := data.Value("records").Array()
	records.Length().IsEqual(4)
	records.Value(0).Object().Value("Company").String().IsEqual("Apple")
	records.Value(0).Object().Value("avg(Price_usd)").Number().InDelta(3188.971666666667, 1e-9)

	e.POST("/api/v1/sql").WithJSON(SQLRequest{Query: "SELECT count(*) FROM laptops"}).
		Expect().Status(http.StatusOK).JSON().Object().Value("data").Object().
		Value("records").Array().Value(0).Object().Value("count(*)").Number().IsEqual(22)

	t.Run("errors", func(t *testing.T) {
		e.POST("/api/v1/sql").WithJSON(SQLRequest{Query: " "}).
			Expect().Status(http.StatusBadRequest)
		e.POST("/api/v1/sql").WithJSON(map[string]string{"statement": "SELECT * FROM laptops"}).
			Expect().Status(http.StatusBadRequest).JSON().Object().Value("errMessage").String().Contains("SQLRequest")
		e.POST("/api/v1/sql").WithJSON(SQLRequest{Query: "SELEC * FROM laptops"}).
			Expect().Status(http.StatusBadRequest).JSON().Object().Value("errMessage").String().Contains("syntax error")
		e.POST("/api/v1/sql").WithJSON(SQLRequest{Query: "SELECT avg(Company) FROM laptops"}).
			Expect().Status(http.StatusBadRequest).JSON().Object().Value("errMessage").String().Contains("analysis error")
		e.POST("/api/v1/sql").WithJSON(SQLRequest{Query: "SELECT * FROM missing"}).
			Expect().Status(http.StatusNotFound).JSON().Object().Value("errMessage").String().Contains("table not found")
	})
}
