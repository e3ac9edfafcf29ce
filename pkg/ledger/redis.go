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

package ledger

import (
	"context"
	"fmt"

	redisclient "github.com/laptopstream/laptopstream/pkg/shared/clients/redis"
)

const redisKeyPrefix = "laptopstream:ledger:"

// redisLedger keeps the processed files of a query in a redis set.
type redisLedger struct {
	key    string
	client *redisclient.RedisClient
}

var _ Ledger = (*redisLedger)(nil)

// NewRedisLedger returns a ledger backed by the set "laptopstream:ledger:<query>". The ledger owns the client.
func NewRedisLedger(ctx context.Context, client *redisclient.RedisClient, query string) (Ledger, error) {
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisLedger{key: redisKeyPrefix + query, client: client}, nil
}

func (l *redisLedger) Contains(ctx context.Context, path string) (bool, error) {
	ok, err := l.client.IsMember(ctx, l.key, path)
	if err != nil {
		return false, fmt.Errorf("failed to look up %q in %s: %w", path, l.key, err)
	}
	return ok, nil
}

func (l *redisLedger) Add(_ context.Context, paths ...string) error {
	if err := l.client.AddMembers(redisclient.RedisContext, l.key, paths...); err != nil {
		return fmt.Errorf("failed to record files in %s: %w", l.key, err)
	}
	return nil
}

func (l *redisLedger) Close() error {
	return l.client.Close()
}
