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

import "sync"

// OverflowQueue is a thread safe queue with a max size, the oldest elements are dropped when it is full.
type OverflowQueue[T any] struct {
	elements []T
	maxSize  int
	lock     *sync.RWMutex
}

func New[T any](size int) *OverflowQueue[T] {
	if size < 1 {
		size = 1
	}
	return &OverflowQueue[T]{
		elements: make([]T, 0, size),
		maxSize:  size,
		lock:     new(sync.RWMutex),
	}
}

// Append adds an element to the queue
func (q *OverflowQueue[T]) Append(value T) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.elements) >= q.maxSize {
		// shift in place so the backing array does not grow
		copy(q.elements, q.elements[1:])
		q.elements[len(q.elements)-1] = value
		return
	}
	q.elements = append(q.elements, value)
}

// Items returns a copy of the elements in the queue, oldest first
func (q *OverflowQueue[T]) Items() []T {
	q.lock.RLock()
	defer q.lock.RUnlock()
	r := make([]T, len(q.elements))
	_ = copy(r, q.elements)
	return r
}

// ReversedItems returns a copy of the elements in the queue, newest first
func (q *OverflowQueue[T]) ReversedItems() []T {
	items := q.Items()
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

// Last returns the newest element, false if the queue is empty
func (q *OverflowQueue[T]) Last() (T, bool) {
	q.lock.RLock()
	defer q.lock.RUnlock()
	if len(q.elements) == 0 {
		var zero T
		return zero, false
	}
	return q.elements[len(q.elements)-1], true
}

// Length returns the current length of the queue
func (q *OverflowQueue[T]) Length() int {
	q.lock.RLock()
	defer q.lock.RUnlock()
	return len(q.elements)
}
