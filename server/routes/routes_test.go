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

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	called []string
}

func (f *fakeHandler) record(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		f.called = append(f.called, name)
		c.Status(http.StatusOK)
	}
}

func (f *fakeHandler) ListTables(c *gin.Context)       { f.record("ListTables")(c) }
func (f *fakeHandler) GetTable(c *gin.Context)         { f.record("GetTable:" + c.Param("table"))(c) }
func (f *fakeHandler) ListQueries(c *gin.Context)      { f.record("ListQueries")(c) }
func (f *fakeHandler) GetQueryProgress(c *gin.Context) { f.record("GetQueryProgress:" + c.Param("name"))(c) }
func (f *fakeHandler) RunSQL(c *gin.Context)           { f.record("RunSQL")(c) }

func TestRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &fakeHandler{}
	router := gin.New()
	Routes(router, h)

	serve := func(method, path string) int {
		w := httptest.NewRecorder()
		req, err := http.NewRequest(method, path, nil)
		require.NoError(t, err)
		router.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("/404", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serve(http.MethodGet, "/404"))
	})

	t.Run("/healthz", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/healthz"))
	})

	t.Run("/api/v1", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/tables"))
		assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/tables/premium_laptops_20"))
		assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/queries"))
		assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/queries/premium_laptops_once/progress"))
		assert.Equal(t, http.StatusOK, serve(http.MethodPost, "/api/v1/sql"))
		assert.Equal(t, []string{
			"ListTables",
			"GetTable:premium_laptops_20",
			"ListQueries",
			"GetQueryProgress:premium_laptops_once",
			"RunSQL",
		}, h.called)
	})
}
