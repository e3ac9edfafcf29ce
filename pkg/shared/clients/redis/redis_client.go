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

package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/laptopstream/laptopstream/pkg/shared/util"
)

const (
	EnvRedisURL      = "LAPTOPSTREAM_REDIS_URL"
	EnvRedisUser     = "LAPTOPSTREAM_REDIS_USER"
	EnvRedisPassword = "LAPTOPSTREAM_REDIS_PASSWORD"
	EnvRedisMaster   = "LAPTOPSTREAM_REDIS_SENTINEL_MASTER"
)

// RedisContext is used to pass the context specifically for REDIS operations.
// Ledger writes happen after a micro-batch was appended, a cancelled context at that point must not lose the record,
// so those writes use the below no-op context.Background().
var RedisContext = context.Background()

// RedisClient datatype to hold redis client attributes.
type RedisClient struct {
	Client redis.UniversalClient
}

// NewRedisClient returns a new Redis Client.
func NewRedisClient(options *redis.UniversalOptions) *RedisClient {
	client := new(RedisClient)
	client.Client = redis.NewUniversalClient(options)
	return client
}

// NewRedisClientFromEnv returns a new Redis Client built from the LAPTOPSTREAM_REDIS_* environment variables,
// addrs is used when LAPTOPSTREAM_REDIS_URL is not set.
func NewRedisClientFromEnv(addrs []string) *RedisClient {
	opts := &redis.UniversalOptions{
		Addrs:      util.LookupEnvStringsOr(EnvRedisURL, addrs),
		Username:   util.LookupEnvStringOr(EnvRedisUser, ""),
		Password:   util.LookupEnvStringOr(EnvRedisPassword, ""),
		MasterName: util.LookupEnvStringOr(EnvRedisMaster, ""),
	}
	return NewRedisClient(opts)
}

// Ping checks the connection.
func (cl *RedisClient) Ping(ctx context.Context) error {
	if err := cl.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// AddMembers adds members to a redis set.
func (cl *RedisClient) AddMembers(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	values := make([]interface{}, len(members))
	for i, m := range members {
		values[i] = m
	}
	return cl.Client.SAdd(ctx, key, values...).Err()
}

// IsMember checks whether the member is in the redis set.
func (cl *RedisClient) IsMember(ctx context.Context, key, member string) (bool, error) {
	return cl.Client.SIsMember(ctx, key, member).Result()
}

// Members returns all the members of a redis set.
func (cl *RedisClient) Members(ctx context.Context, key string) ([]string, error) {
	return cl.Client.SMembers(ctx, key).Result()
}

// DeleteKeys deletes a redis keys
func (cl *RedisClient) DeleteKeys(ctx context.Context, keys ...string) error {
	return cl.Client.Del(ctx, keys...).Err()
}

// Close closes the client.
func (cl *RedisClient) Close() error {
	return cl.Client.Close()
}
