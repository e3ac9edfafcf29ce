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

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupEnvStringOr(t *testing.T) {
	assert.Equal(t, "hello", LookupEnvStringOr("LAPTOPSTREAM_FAKE_ENV", "hello"))
	t.Setenv("LAPTOPSTREAM_FAKE_ENV", "")
	assert.Equal(t, "hello", LookupEnvStringOr("LAPTOPSTREAM_FAKE_ENV", "hello"))
	t.Setenv("LAPTOPSTREAM_FAKE_ENV", "world")
	assert.Equal(t, "world", LookupEnvStringOr("LAPTOPSTREAM_FAKE_ENV", "hello"))
}

func TestLookupEnvStringsOr(t *testing.T) {
	def := []string{"localhost:6379"}
	assert.Equal(t, def, LookupEnvStringsOr("LAPTOPSTREAM_FAKE_ADDRS", def))
	t.Setenv("LAPTOPSTREAM_FAKE_ADDRS", " , ")
	assert.Equal(t, def, LookupEnvStringsOr("LAPTOPSTREAM_FAKE_ADDRS", def))
	t.Setenv("LAPTOPSTREAM_FAKE_ADDRS", "redis-0:6379, redis-1:6379,")
	assert.Equal(t, []string{"redis-0:6379", "redis-1:6379"}, LookupEnvStringsOr("LAPTOPSTREAM_FAKE_ADDRS", def))
}

func TestLookupEnvBoolOr(t *testing.T) {
	assert.False(t, LookupEnvBoolOr("LAPTOPSTREAM_FAKE_BOOL", false))
	t.Setenv("LAPTOPSTREAM_FAKE_BOOL", "true")
	assert.True(t, LookupEnvBoolOr("LAPTOPSTREAM_FAKE_BOOL", false))
	t.Setenv("LAPTOPSTREAM_FAKE_BOOL", "0")
	assert.False(t, LookupEnvBoolOr("LAPTOPSTREAM_FAKE_BOOL", true))
	t.Setenv("LAPTOPSTREAM_FAKE_BOOL", "sometimes")
	assert.True(t, LookupEnvBoolOr("LAPTOPSTREAM_FAKE_BOOL", true))
}
