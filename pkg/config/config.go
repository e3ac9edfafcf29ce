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

package config

import (
	"fmt"
	"strings"

	"github.com/imdario/mergo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/laptopstream/laptopstream/pkg/ledger"
	"github.com/laptopstream/laptopstream/pkg/sources/csvfile"
	"github.com/laptopstream/laptopstream/pkg/streaming"
)

const EnvPrefix = "LAPTOPSTREAM"

const (
	SinkFormatMemory  = "memory"
	SinkFormatConsole = "console"
)

type Config struct {
	// DatasetPath is the file or directory read by the batch loader.
	DatasetPath string `json:"datasetPath"`
	// SourceDir is the directory watched for arriving files.
	SourceDir   string          `json:"sourceDir"`
	FilePattern string          `json:"filePattern"`
	ParseMode   string          `json:"parseMode"`
	Query       QueryConfig     `json:"query"`
	Sinks       []SinkConfig    `json:"sinks"`
	Transform   TransformConfig `json:"transform"`
	Select      []string        `json:"select"`
	Filter      string          `json:"filter"`
	// Queries are run against the tables once the sinks are started.
	Queries  []string       `json:"queries"`
	Metrics  MetricsConfig  `json:"metrics"`
	Server   ServerConfig   `json:"server"`
	Progress ProgressConfig `json:"progress"`
}

// QueryConfig holds the defaults of every sink.
type QueryConfig struct {
	Workers int           `json:"workers"`
	Ledger  ledger.Config `json:"ledger"`
}

type SinkConfig struct {
	Name    string `json:"name"`
	Trigger string `json:"trigger"`
	// Format is memory or console.
	Format  string        `json:"format"`
	Workers int           `json:"workers"`
	Ledger  ledger.Config `json:"ledger"`
}

type TransformConfig struct {
	Column     string `json:"column"`
	Expression string `json:"expression"`
}

type MetricsConfig struct {
	Port int `json:"port"`
}

type ServerConfig struct {
	// Port of the query API, 0 disables it.
	Port int `json:"port"`
	// CorsAllowedOrigins is a comma separated list of origins, empty disables CORS.
	CorsAllowedOrigins string `json:"corsAllowedOrigins"`
}

type ProgressConfig struct {
	NATS NATSConfig `json:"nats"`
}

type NATSConfig struct {
	// URL of the server progress is published to, empty disables publishing.
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

type Option func(*viper.Viper) error

// WithFlag binds a command line flag to a key, a flag set by the user overrides the file and the environment.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		return v.BindPFlag(key, flag)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("datasetPath", "examples/datasets/laptops.csv")
	v.SetDefault("sourceDir", "stream_input")
	v.SetDefault("filePattern", csvfile.DefaultPattern)
	v.SetDefault("parseMode", string(csvfile.FailFast))
	v.SetDefault("query.workers", streaming.DefaultWorkers)
	v.SetDefault("query.ledger.type", string(ledger.TypeMemory))
	v.SetDefault("query.ledger.dir", ".checkpoints")
	v.SetDefault("query.ledger.redisAddrs", []string{})
	v.SetDefault("sinks", []map[string]interface{}{
		{"name": "premium_laptops_20", "trigger": "20s"},
		{"name": "premium_laptops_once", "trigger": "once"},
	})
	v.SetDefault("transform.column", "Price_usd")
	v.SetDefault("transform.expression", "round(Price_euros * 1.4389, 2)")
	v.SetDefault("select", []string{"Id", "Company", "Price_usd"})
	v.SetDefault("filter", "Price_usd > 2000")
	v.SetDefault("queries", []string{
		"SELECT Company, avg(Price_usd) FROM premium_laptops_20 GROUP BY Company ORDER BY Company",
		"SELECT Company, avg(Price_usd) FROM premium_laptops_once GROUP BY Company ORDER BY Company",
	})
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.corsAllowedOrigins", "")
	v.SetDefault("progress.nats.url", "")
	v.SetDefault("progress.nats.subject", streaming.DefaultProgressSubject)
}

// LoadConfig reads the configuration from the defaults, the optional YAML file and LAPTOPSTREAM_* environment
// variables, e.g. LAPTOPSTREAM_SOURCEDIR or LAPTOPSTREAM_QUERY_WORKERS.
func LoadConfig(file string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load configuration file. %w", err)
		}
	}
	for _, o := range opts {
		if err := o(v); err != nil {
			return nil, err
		}
	}
	r := &Config{}
	if err := v.Unmarshal(r); err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration file. %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := csvfile.ParseModeFromString(c.ParseMode); err != nil {
		return err
	}
	if c.SourceDir == "" {
		return fmt.Errorf("sourceDir is required")
	}
	if c.Transform.Column == "" || c.Transform.Expression == "" {
		return fmt.Errorf("transform requires a column and an expression")
	}
	if c.Query.Workers < 1 {
		return fmt.Errorf("query.workers must be at least 1, got %d", c.Query.Workers)
	}
	seen := make(map[string]struct{}, len(c.Sinks))
	for i, s := range c.Sinks {
		if s.Name == "" {
			return fmt.Errorf("sinks[%d] has no name", i)
		}
		if _, ok := seen[strings.ToLower(s.Name)]; ok {
			return fmt.Errorf("duplicate sink name %q", s.Name)
		}
		seen[strings.ToLower(s.Name)] = struct{}{}
		if _, err := streaming.ParseTrigger(s.Trigger); err != nil {
			return fmt.Errorf("sink %q: %w", s.Name, err)
		}
		switch strings.ToLower(s.Format) {
		case "", SinkFormatMemory, SinkFormatConsole:
		default:
			return fmt.Errorf("sink %q: unsupported format %q", s.Name, s.Format)
		}
	}
	if c.Metrics.Port < 0 || c.Server.Port < 0 {
		return fmt.Errorf("ports can not be negative")
	}
	return nil
}

// GetParseMode returns the parse mode, failFast when unset.
func (c *Config) GetParseMode() csvfile.ParseMode {
	m, err := csvfile.ParseModeFromString(c.ParseMode)
	if err != nil {
		panic(fmt.Sprintf("Unsupported parse mode %q", c.ParseMode))
	}
	return m
}

// GetSink returns the sink with the query defaults filled in.
func (c *Config) GetSink(name string) (*SinkConfig, error) {
	for _, s := range c.Sinks {
		if !strings.EqualFold(s.Name, name) {
			continue
		}
		r := s
		if r.Format == "" {
			r.Format = SinkFormatMemory
		}
		defaults := SinkConfig{Workers: c.Query.Workers, Ledger: c.Query.Ledger}
		if err := mergo.Merge(&r, defaults); err != nil {
			return nil, fmt.Errorf("failed to merge the defaults into sink %q: %w", name, err)
		}
		return &r, nil
	}
	return nil, fmt.Errorf("no sink named %q", name)
}
