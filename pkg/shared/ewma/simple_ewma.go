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

// Package ewma smooths per micro-batch measurements such as the processing rate of a query.
package ewma

import "sync"

// defaultSpan weighs roughly the last 30 samples.
const defaultSpan = 30.0

// SimpleEWMA is an exponentially weighted moving average, safe for concurrent use.
type SimpleEWMA struct {
	lock  sync.RWMutex
	decay float64
	value float64
	count int
}

// NewSimpleEWMA returns a new SimpleEWMA over the given span, the decay factor is 2/(span+1).
func NewSimpleEWMA(span ...float64) *SimpleEWMA {
	s := defaultSpan
	if len(span) > 0 && span[0] >= 1 {
		s = span[0]
	}
	return &SimpleEWMA{decay: 2.0 / (s + 1.0)}
}

// Add folds a sample in, the first sample becomes the value as is.
func (s *SimpleEWMA) Add(value float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.count == 0 {
		s.value = value
	} else {
		s.value += s.decay * (value - s.value)
	}
	s.count++
}

// Get returns the current average, 0 before the first sample.
func (s *SimpleEWMA) Get() float64 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.value
}

// Count returns the number of samples added since the last reset.
func (s *SimpleEWMA) Count() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.count
}

func (s *SimpleEWMA) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.value = 0
	s.count = 0
}
