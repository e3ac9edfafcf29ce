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
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/laptopstream/laptopstream/pkg/sinks/memory"
	"github.com/laptopstream/laptopstream/pkg/sql"
	"github.com/laptopstream/laptopstream/pkg/streaming"
)

type handler struct {
	catalog *memory.Catalog
	manager *streaming.Manager
	engine  *sql.Engine
}

// NewHandler is used to provide a new instance of the handler type
func NewHandler(catalog *memory.Catalog, manager *streaming.Manager, engine *sql.Engine) (*handler, error) {
	if catalog == nil || manager == nil || engine == nil {
		return nil, fmt.Errorf("catalog, manager and engine are required")
	}
	return &handler{
		catalog: catalog,
		manager: manager,
		engine:  engine,
	}, nil
}

// ListTables is used to provide all the registered tables
func (h *handler) ListTables(c *gin.Context) {
	tables := h.catalog.Tables()
	summaries := make([]TableSummary, 0, len(tables))
	for _, t := range tables {
		summaries = append(summaries, summarize(t))
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, summaries))
}

// GetTable is used to provide the schema and the rows of a table, "limit" caps the number of rows
func (h *handler) GetTable(c *gin.Context) {
	name := c.Param("table")
	t, err := h.catalog.Lookup(name)
	if err != nil {
		errMsg := fmt.Sprintf("Failed to fetch table %q, %s", name, err.Error())
		c.JSON(http.StatusNotFound, NewAPIResponse(&errMsg, nil))
		return
	}
	limit := -1
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			errMsg := fmt.Sprintf("Invalid limit %q", v)
			c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
			return
		}
	}
	rows := t.Snapshot()
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	records := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		records[i] = r
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, TableDetails{
		TableSummary: summarize(t),
		Schema:       t.Schema().Fields(),
		Records:      records,
	}))
}

// ListQueries is used to provide all the streaming queries, terminated ones included
func (h *handler) ListQueries(c *gin.Context) {
	queries := h.manager.Queries()
	summaries := make([]QuerySummary, 0, len(queries))
	for _, q := range queries {
		s := QuerySummary{
			ID:             q.ID(),
			RunID:          q.RunID(),
			Name:           q.Name(),
			Trigger:        q.Trigger().String(),
			State:          q.State().String(),
			Committed:      q.CommittedOffset(),
			ProcessingRate: q.ProcessingRate(),
		}
		if err := q.Exception(); err != nil {
			s.Exception = err.Error()
		}
		if p, ok := q.LastProgress(); ok {
			s.LastProgress = &p
		}
		summaries = append(summaries, s)
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, summaries))
}

// GetQueryProgress is used to provide the recent progress of a query, oldest first
func (h *handler) GetQueryProgress(c *gin.Context) {
	name := c.Param("name")
	q, err := h.manager.Get(name)
	if err != nil {
		errMsg := fmt.Sprintf("Failed to fetch query %q, %s", name, err.Error())
		c.JSON(http.StatusNotFound, NewAPIResponse(&errMsg, nil))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, q.RecentProgress()))
}

// RunSQL is used to run an aggregation statement against the tables
func (h *handler) RunSQL(c *gin.Context) {
	var requestBody SQLRequest
	if err := bindJson(c, &requestBody); err != nil {
		errMsg := fmt.Sprintf("Failed to decode JSON request body to SQLRequest, %s", err.Error())
		c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
		return
	}
	if strings.TrimSpace(requestBody.Query) == "" {
		errMsg := "Query can not be empty"
		c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
		return
	}
	r, err := h.engine.Query(c.Request.Context(), requestBody.Query)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, sql.ErrSyntax), errors.Is(err, sql.ErrAnalysis):
			status = http.StatusBadRequest
		case errors.Is(err, memory.ErrTableNotFound):
			status = http.StatusNotFound
		}
		errMsg := fmt.Sprintf("Failed to run the query, %s", err.Error())
		c.JSON(status, NewAPIResponse(&errMsg, nil))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, SQLResponse{Columns: r.Columns, Records: r.Records()}))
}

func summarize(t *memory.Table) TableSummary {
	return TableSummary{
		Name:      t.GetName(),
		Rows:      t.RowCount(),
		Version:   t.Version(),
		CreatedAt: t.CreatedAt(),
	}
}

// bindJson is used to bind the request body to the given object
func bindJson(c *gin.Context, obj interface{}) error {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(obj); err != nil {
		return err
	}
	return nil
}
