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

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/laptopstream/laptopstream"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
	"github.com/laptopstream/laptopstream/server/apis"
	"github.com/laptopstream/laptopstream/server/routes"
)

type ServerOptions struct {
	Port               int
	CorsAllowedOrigins string
}

type server struct {
	options ServerOptions
	handler apis.Handler
}

func NewServer(opts ServerOptions, handler apis.Handler) *server {
	return &server{
		options: opts,
		handler: handler,
	}
}

func (s *server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/healthz"}}))
	if origins := allowedOrigins(s.options.CorsAllowedOrigins); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST", "HEAD"},
			AllowHeaders: []string{"Origin", "Content-Length", "Content-Type"},
		}))
	}
	router.RedirectTrailingSlash = true
	routes.Routes(router, s.handler)
	return router
}

// Start serves the query API in the background, and returns the listening address and a shutdown function.
func (s *server) Start(ctx context.Context) (string, func(context.Context) error, error) {
	log := logging.FromContext(ctx)
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.options.Port))
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on port %d: %w", s.options.Port, err)
	}
	srv := &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("Query API server stopped", "error", err)
		}
	}()
	log.Infow("Starting query API server on "+ln.Addr().String(), "version", laptopstream.GetVersion())
	return ln.Addr().String(), srv.Shutdown, nil
}

func allowedOrigins(s string) []string {
	origins := make([]string, 0)
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if len(o) > 0 {
			origins = append(origins, o)
		}
	}
	return origins
}
