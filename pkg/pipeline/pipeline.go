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
Package pipeline wires the laptop streaming job together: the batch loader over the static dataset, the directory
source, the premium laptop plan, one streaming query per configured sink, and the SQL engine over the resulting
tables.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/laptopstream/laptopstream/pkg/config"
	"github.com/laptopstream/laptopstream/pkg/ledger"
	"github.com/laptopstream/laptopstream/pkg/metrics"
	"github.com/laptopstream/laptopstream/pkg/plan"
	"github.com/laptopstream/laptopstream/pkg/schema"
	natsclient "github.com/laptopstream/laptopstream/pkg/shared/clients/nats"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
	"github.com/laptopstream/laptopstream/pkg/sinks/logger"
	"github.com/laptopstream/laptopstream/pkg/sinks/memory"
	"github.com/laptopstream/laptopstream/pkg/sources/csvfile"
	"github.com/laptopstream/laptopstream/pkg/sources/filestream"
	"github.com/laptopstream/laptopstream/pkg/sql"
	"github.com/laptopstream/laptopstream/pkg/streaming"
)

// BatchTable is the table the batch loader registers the static dataset as.
const BatchTable = "laptops"

// Pipeline is the running job.
type Pipeline struct {
	cfg     *config.Config
	catalog *memory.Catalog
	manager *streaming.Manager
	engine  *sql.Engine
	plan    *plan.Plan
	source  *filestream.Source
	nats    *natsclient.Client
	console io.Writer
	log     *zap.SugaredLogger
}

type Option func(*Pipeline) error

// WithConsole sets where console sinks print, defaults to stdout.
func WithConsole(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.console = w
		return nil
	}
}

// BuildPlan returns the plan of the configured transform, projection and filter over the laptop schema.
func BuildPlan(cfg *config.Config, isStreaming bool) (*plan.Plan, error) {
	p := plan.New(schema.Laptops)
	if isStreaming {
		p = plan.NewStreaming(schema.Laptops)
	}
	p, err := p.WithColumn(cfg.Transform.Column, cfg.Transform.Expression)
	if err != nil {
		return nil, err
	}
	if len(cfg.Select) > 0 {
		if p, err = p.Select(cfg.Select...); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(cfg.Filter) != "" {
		if p, err = p.Where(cfg.Filter); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// New validates the configuration and builds the pipeline. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, catalog: memory.NewCatalog(), console: os.Stdout, log: logging.FromContext(ctx)}
	for _, o := range opts {
		if err := o(p); err != nil {
			return nil, err
		}
	}
	var err error
	if p.plan, err = BuildPlan(cfg, true); err != nil {
		return nil, err
	}
	if p.engine, err = sql.NewEngine(ctx, p.catalog); err != nil {
		return nil, err
	}
	listeners := []streaming.Listener{streaming.NewLogListener()}
	if url := cfg.Progress.NATS.URL; url != "" {
		if p.nats, err = natsclient.NewNATSClient(ctx, url); err != nil {
			return nil, err
		}
		listeners = append(listeners, streaming.NewNATSListener(p.nats, cfg.Progress.NATS.Subject))
	}
	p.manager = streaming.NewManager(p.catalog, listeners...)
	return p, nil
}

func (p *Pipeline) Catalog() *memory.Catalog {
	return p.catalog
}

func (p *Pipeline) Manager() *streaming.Manager {
	return p.manager
}

func (p *Pipeline) Engine() *sql.Engine {
	return p.engine
}

func (p *Pipeline) Plan() *plan.Plan {
	return p.plan
}

// LoadBatch reads the static dataset and registers it as the "laptops" table, replacing an earlier load.
func (p *Pipeline) LoadBatch(ctx context.Context) (*csvfile.Result, error) {
	result, err := csvfile.Read(ctx, p.cfg.DatasetPath, schema.Laptops,
		csvfile.WithPattern(p.cfg.FilePattern),
		csvfile.WithParseMode(p.cfg.GetParseMode()),
		csvfile.WithLogger(p.log))
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %q: %w", p.cfg.DatasetPath, err)
	}
	table := memory.NewTable(BatchTable, schema.Laptops)
	if err := table.Write(ctx, result.Rows); err != nil {
		return nil, err
	}
	p.catalog.Drop(BatchTable)
	if err := p.catalog.Register(table); err != nil {
		return nil, err
	}
	p.log.Infow("Loaded dataset", zap.String("path", p.cfg.DatasetPath), zap.Int("rows", len(result.Rows)),
		zap.Int("malformed", result.Malformed), zap.Bool("isStreaming", false))
	return result, nil
}

// Start watches the source directory and starts one query per sink.
func (p *Pipeline) Start(ctx context.Context) error {
	src, err := filestream.New(ctx, p.cfg.SourceDir, filestream.WithPattern(p.cfg.FilePattern), filestream.WithLogger(p.log))
	if err != nil {
		return err
	}
	if err := src.Start(ctx); err != nil {
		return err
	}
	p.source = src
	for _, s := range p.cfg.Sinks {
		if err := p.startSink(ctx, s.Name); err != nil {
			return multierr.Combine(err, p.Stop())
		}
	}
	p.log.Infow("Pipeline started", zap.String("plan", p.plan.String()), zap.Bool("isStreaming", p.plan.IsStreaming()))
	return nil
}

func (p *Pipeline) startSink(ctx context.Context, name string) error {
	sc, err := p.cfg.GetSink(name)
	if err != nil {
		return err
	}
	trigger, err := streaming.ParseTrigger(sc.Trigger)
	if err != nil {
		return err
	}
	l, err := ledger.New(ctx, sc.Ledger, sc.Name)
	if err != nil {
		return err
	}
	opts := []streaming.Option{
		streaming.WithWorkers(sc.Workers),
		streaming.WithParseMode(p.cfg.GetParseMode()),
		streaming.WithLedger(l),
	}
	if strings.EqualFold(sc.Format, config.SinkFormatConsole) {
		console, err := logger.NewToLog(sc.Name, p.plan.Schema(), logger.WithWriter(p.console))
		if err != nil {
			return multierr.Combine(err, l.Close())
		}
		_, err = p.manager.StartWithSink(ctx, sc.Name, p.plan, p.source, console, trigger, opts...)
		if err != nil {
			return multierr.Combine(err, l.Close())
		}
		return nil
	}
	if _, err = p.manager.Start(ctx, sc.Name, p.plan, p.source, trigger, opts...); err != nil {
		return multierr.Combine(err, l.Close())
	}
	return nil
}

// AwaitOnceSinks waits until every sink with a Once trigger terminated, and returns their errors.
func (p *Pipeline) AwaitOnceSinks(ctx context.Context) error {
	var err error
	for _, q := range p.manager.Queries() {
		if !q.Trigger().IsOnce() {
			continue
		}
		if e := q.AwaitTermination(ctx); e != nil {
			err = multierr.Append(err, e)
		}
	}
	return err
}

// RunQueries runs the configured statements and prints their results.
func (p *Pipeline) RunQueries(ctx context.Context, w io.Writer) error {
	for _, text := range p.cfg.Queries {
		r, err := p.engine.Query(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to run %q: %w", text, err)
		}
		if _, err := fmt.Fprintln(w, text); err != nil {
			return err
		}
		if err := r.Format(w); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheckers returns the checks of the readiness endpoint: the source is up and no query failed.
func (p *Pipeline) HealthCheckers() []metrics.HealthChecker {
	return []metrics.HealthChecker{
		metrics.HealthCheckFunc(func(context.Context) error {
			if p.source == nil {
				return errors.New("source is not started")
			}
			return nil
		}),
		metrics.HealthCheckFunc(func(context.Context) error {
			for _, q := range p.manager.Queries() {
				if err := q.Exception(); err != nil {
					return fmt.Errorf("query %q failed: %w", q.Name(), err)
				}
			}
			return nil
		}),
	}
}

// Stop stops every query and the source.
func (p *Pipeline) Stop() error {
	err := p.manager.StopAll()
	if p.source != nil {
		err = multierr.Append(err, p.source.Close())
	}
	if p.nats != nil {
		p.nats.Close()
	}
	return err
}
