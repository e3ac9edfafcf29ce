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
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/laptopstream/laptopstream/pkg/config"
	"github.com/laptopstream/laptopstream/pkg/pipeline"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
)

func NewBatchCommand() *cobra.Command {
	var (
		statements []string
		limit      int
	)
	command := &cobra.Command{
		Use:   "batch",
		Short: "Load the static dataset and query it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile, config.WithFlag("datasetPath", cmd.Flags().Lookup("dataset")))
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(context.Background(), logging.NewLogger().Named("batch"))
			return runBatch(ctx, cfg, cmd.OutOrStdout(), statements, limit)
		},
	}
	command.Flags().String("dataset", "", "CSV file or directory to load.")
	command.Flags().StringArrayVar(&statements, "sql", nil, fmt.Sprintf("Statement to run against the %q table, can be repeated.", pipeline.BatchTable))
	command.Flags().IntVar(&limit, "limit", 20, "Number of rows shown without --sql.")
	return command
}

// runBatch loads the dataset and prints the result of each statement, or the first rows of the table when there are
// none.
func runBatch(ctx context.Context, cfg *config.Config, out io.Writer, statements []string, limit int) (err error) {
	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, p.Stop())
	}()
	result, err := p.LoadBatch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d rows, isStreaming=%t\n", pipeline.BatchTable, len(result.Rows), false)
	if len(statements) == 0 {
		statements = []string{fmt.Sprintf("SELECT * FROM %s LIMIT %d", pipeline.BatchTable, limit)}
	}
	for _, text := range statements {
		r, err := p.Engine().Query(ctx, text)
		if err != nil {
			return err
		}
		if err := r.Format(out); err != nil {
			return err
		}
	}
	return nil
}
