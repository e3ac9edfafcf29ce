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
Package ledger records the files a sink registration already processed, so that a restarted query does not
append the same file twice. Without a persistent ledger every restart reprocesses the whole directory.
*/
package ledger

import (
	"context"
	"fmt"
	"strings"

	redisclient "github.com/laptopstream/laptopstream/pkg/shared/clients/redis"
)

// Ledger is the set of processed file paths of one query.
type Ledger interface {
	// Contains tells whether the file was processed.
	Contains(ctx context.Context, path string) (bool, error)
	// Add records processed files.
	Add(ctx context.Context, paths ...string) error
	// Close releases the backend.
	Close() error
}

type Type string

const (
	TypeMemory Type = "memory"
	TypeFile   Type = "file"
	TypeRedis  Type = "redis"
)

// Config selects and configures a ledger backend.
type Config struct {
	Type Type `json:"type"`
	// Dir is the checkpoint directory of the file ledger.
	Dir string `json:"dir"`
	// RedisAddrs are the addresses of the redis ledger.
	RedisAddrs []string `json:"redisAddrs"`
}

// New creates the ledger of the query.
func New(ctx context.Context, cfg Config, query string) (Ledger, error) {
	switch Type(strings.ToLower(string(cfg.Type))) {
	case "", TypeMemory:
		return NewInMemLedger(), nil
	case TypeFile:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("file ledger of query %q requires a directory", query)
		}
		return NewFileLedger(ctx, cfg.Dir, query)
	case TypeRedis:
		if len(cfg.RedisAddrs) == 0 {
			return nil, fmt.Errorf("redis ledger of query %q requires at least one address", query)
		}
		return NewRedisLedger(ctx, redisclient.NewRedisClientFromEnv(cfg.RedisAddrs), query)
	default:
		return nil, fmt.Errorf("unsupported ledger type %q", cfg.Type)
	}
}
