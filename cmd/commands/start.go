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

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/laptopstream/laptopstream"
	"github.com/laptopstream/laptopstream/pkg/config"
	"github.com/laptopstream/laptopstream/pkg/metrics"
	"github.com/laptopstream/laptopstream/pkg/pipeline"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
	v1 "github.com/laptopstream/laptopstream/server/apis/v1"
	svrcmd "github.com/laptopstream/laptopstream/server/cmd/server"
)

func NewStartCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "start",
		Short: "Start the streaming pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg, err := config.LoadConfig(configFile,
				config.WithFlag("sourceDir", flags.Lookup("source-dir")),
				config.WithFlag("datasetPath", flags.Lookup("dataset")),
				config.WithFlag("metrics.port", flags.Lookup("metrics-port")),
				config.WithFlag("server.port", flags.Lookup("port")),
				config.WithFlag("progress.nats.url", flags.Lookup("nats-url")),
			)
			if err != nil {
				return err
			}
			log := logging.NewLogger()
			log.Infow("Starting laptopstream", "version", laptopstream.GetVersion())
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(logging.WithLogger(ctx, log), cfg, cmd.OutOrStdout())
		},
	}
	command.Flags().String("source-dir", "", "Directory watched for arriving CSV files.")
	command.Flags().String("dataset", "", "CSV file or directory loaded as the static laptops table.")
	command.Flags().Int("metrics-port", metrics.DefaultPort, "Port of the metrics and health endpoints, 0 disables them.")
	command.Flags().IntP("port", "p", 8080, "Port of the query API, 0 disables it.")
	command.Flags().String("nats-url", "", "NATS server progress events are published to.")
	return command
}

// run loads the static dataset, starts the sinks and prints the configured queries once the run-once sinks are
// done. It then blocks until the remaining queries terminate or ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, out io.Writer) (err error) {
	log := logging.FromContext(ctx)
	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return err
	}
	result, err := p.LoadBatch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d rows into %q, isStreaming=%t\n", len(result.Rows), pipeline.BatchTable, false)
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, p.Stop())
	}()

	if cfg.Metrics.Port > 0 {
		ms := metrics.NewMetricsServer(metrics.NewMetricsOptions(ctx, cfg.Metrics.Port, p.HealthCheckers())...)
		_, shutdown, startErr := ms.Start(ctx)
		if startErr != nil {
			return startErr
		}
		defer func() {
			err = multierr.Append(err, shutdown(context.WithoutCancel(ctx)))
		}()
	}
	if cfg.Server.Port > 0 {
		h, handlerErr := v1.NewHandler(p.Catalog(), p.Manager(), p.Engine())
		if handlerErr != nil {
			return handlerErr
		}
		server := svrcmd.NewServer(svrcmd.ServerOptions{Port: cfg.Server.Port, CorsAllowedOrigins: cfg.Server.CorsAllowedOrigins}, h)
		_, shutdown, startErr := server.Start(ctx)
		if startErr != nil {
			return startErr
		}
		defer func() {
			err = multierr.Append(err, shutdown(context.WithoutCancel(ctx)))
		}()
	}

	if err := p.AwaitOnceSinks(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Streaming plan: %s, isStreaming=%t\n", p.Plan(), p.Plan().IsStreaming())
	if err := p.RunQueries(ctx, out); err != nil {
		return err
	}

	m := p.Manager()
	for len(m.Active()) > 0 {
		if err := m.AwaitAnyTermination(ctx); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				log.Info("Shutting down")
				return nil
			}
			return err
		}
		m.ResetTerminated()
	}
	for _, q := range m.Queries() {
		if e := q.Exception(); e != nil {
			return e
		}
	}
	return nil
}
