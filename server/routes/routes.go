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

	"github.com/gin-gonic/gin"

	"github.com/laptopstream/laptopstream/server/apis"
)

func Routes(r *gin.Engine, handler apis.Handler) {
	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	v1Routes(r.Group("/api/v1"), handler)
}

func v1Routes(r gin.IRouter, handler apis.Handler) {
	r.GET("/tables", handler.ListTables)
	r.GET("/tables/:table", handler.GetTable)
	r.GET("/queries", handler.ListQueries)
	r.GET("/queries/:name/progress", handler.GetQueryProgress)
	r.POST("/sql", handler.RunSQL)
}
