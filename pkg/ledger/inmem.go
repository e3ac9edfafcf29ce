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
	"sync"
)

type inMemLedger struct {
	lock  sync.RWMutex
	files map[string]struct{}
}

var _ Ledger = (*inMemLedger)(nil)

// NewInMemLedger returns a ledger that lives as long as the process.
func NewInMemLedger() Ledger {
	return &inMemLedger{files: make(map[string]struct{})}
}

func (l *inMemLedger) Contains(_ context.Context, path string) (bool, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	_, ok := l.files[path]
	return ok, nil
}

func (l *inMemLedger) Add(_ context.Context, paths ...string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, p := range paths {
		l.files[p] = struct{}{}
	}
	return nil
}

func (l *inMemLedger) Close() error {
	return nil
}
