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
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const envTestRedis = "LAPTOPSTREAM_TEST_REDIS"

func TestRedisClient_Sets(t *testing.T) {
	addr := os.Getenv(envTestRedis)
	if addr == "" {
		t.SkipNow()
	}
	ctx := context.TODO()
	client := NewRedisClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() { _ = client.Close() }()
	require.NoError(t, client.Ping(ctx))

	key := "laptopstream-test-set"
	defer func() {
		assert.NoError(t, client.DeleteKeys(ctx, key))
	}()
	require.NoError(t, client.AddMembers(ctx, key, "a.csv", "b.csv"))
	require.NoError(t, client.AddMembers(ctx, key))
	ok, err := client.IsMember(ctx, key, "a.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.IsMember(ctx, key, "c.csv")
	require.NoError(t, err)
	assert.False(t, ok)
	members, err := client.Members(ctx, key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.csv", "b.csv"}, members)
}

func TestNewRedisClientFromEnv(t *testing.T) {
	t.Setenv(EnvRedisURL, "r1:6379,r2:6379")
	t.Setenv(EnvRedisUser, "user")
	t.Setenv(EnvRedisPassword, "password")
	client := NewRedisClientFromEnv([]string{"ignored:6379"})
	defer func() { _ = client.Close() }()
	assert.NotNil(t, client.Client)
}
