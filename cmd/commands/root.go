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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configFile is the optional YAML file every command loads its configuration from.
var configFile string

var rootCmd = &cobra.Command{
	Use:   "laptopstream",
	Short: "Laptop price streaming pipeline",
	Long: "laptopstream watches a directory for CSV files of laptop records, converts their prices to USD and " +
		"keeps the premium ones in in-memory tables that can be queried with SQL aggregations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path of the YAML configuration file, defaults and LAPTOPSTREAM_* environment variables apply without it.")
	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewBatchCommand())
	rootCmd.AddCommand(NewVersionCommand())
}
