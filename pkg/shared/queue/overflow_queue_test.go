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

package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverflowQueue(t *testing.T) {
	q := New[int](2)
	_, ok := q.Last()
	assert.False(t, ok)
	assert.Empty(t, q.ReversedItems())

	q.Append(1)
	q.Append(2)
	assert.Equal(t, 2, q.Length())
	assert.Equal(t, []int{1, 2}, q.Items())
	q.Append(3)
	assert.Equal(t, 2, q.Length())
	assert.Equal(t, []int{2, 3}, q.Items())
	q.Append(4)
	q.Append(5)
	q.Append(6)
	assert.Equal(t, []int{5, 6}, q.Items())
	assert.Equal(t, []int{6, 5}, q.ReversedItems())
	last, ok := q.Last()
	assert.True(t, ok)
	assert.Equal(t, 6, last)
}

func TestOverflowQueue_ItemsAreCopies(t *testing.T) {
	q := New[string](3)
	q.Append("a")
	items := q.Items()
	items[0] = "b"
	assert.Equal(t, []string{"a"}, q.Items())
}

func TestOverflowQueue_MinimumSize(t *testing.T) {
	q := New[int](0)
	q.Append(1)
	q.Append(2)
	assert.Equal(t, []int{2}, q.Items())
}
