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

package sinks

import (
	"context"

	"github.com/laptopstream/laptopstream/pkg/schema"
)

// Sinker is where a streaming query writes the output of its micro-batches.
type Sinker interface {
	// GetName returns the name of the sink.
	GetName() string
	// Write appends the rows of one micro-batch, all or nothing.
	Write(ctx context.Context, rows []schema.Row) error
	// Close releases the sink.
	Close() error
}
