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

package streaming

import "time"

// Progress describes one completed micro-batch.
type Progress struct {
	ID                     string    `json:"id"`
	RunID                  string    `json:"runId"`
	Name                   string    `json:"name"`
	BatchID                int64     `json:"batchId"`
	Trigger                string    `json:"trigger"`
	Timestamp              time.Time `json:"timestamp"`
	// StartOffset and EndOffset delimit the source files of the batch, [start, end).
	StartOffset            int64     `json:"startOffset"`
	EndOffset              int64     `json:"endOffset"`
	Files                  []string  `json:"files"`
	// SkippedFiles were recorded in the ledger by an earlier run, or vanished before they were read.
	SkippedFiles           []string  `json:"skippedFiles,omitempty"`
	NumInputRows           int64     `json:"numInputRows"`
	NumOutputRows          int64     `json:"numOutputRows"`
	NumFilteredRows        int64     `json:"numFilteredRows"`
	NumMalformedRows       int64     `json:"numMalformedRows"`
	DurationMs             int64     `json:"durationMs"`
	// ProcessedRowsPerSecond is the input rows of the batch over its duration.
	ProcessedRowsPerSecond float64   `json:"processedRowsPerSecond"`
}

// QueryStartedEvent is emitted when a query starts running.
type QueryStartedEvent struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	Name      string    `json:"name"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryTerminatedEvent is emitted when a query terminates, Exception is empty if it stopped normally.
type QueryTerminatedEvent struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	Name      string    `json:"name"`
	Batches   int64     `json:"batches"`
	Exception string    `json:"exception,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
