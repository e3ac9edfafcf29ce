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

package v1

import (
	"time"

	"github.com/laptopstream/laptopstream/pkg/schema"
	"github.com/laptopstream/laptopstream/pkg/streaming"
)

type APIResponse struct {
	// ErrMessage provides more detailed error information. If API call succeeds, the ErrMessage is nil.
	ErrMessage *string `json:"errMessage,omitempty"`
	// Data is the response body.
	Data interface{} `json:"data"`
}

// NewAPIResponse creates a new APIResponse.
func NewAPIResponse(errMessage *string, data interface{}) APIResponse {
	return APIResponse{
		ErrMessage: errMessage,
		Data:       data,
	}
}

// TableSummary is an entry of the table list.
type TableSummary struct {
	Name      string    `json:"name"`
	Rows      int       `json:"rows"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableDetails is a table with its schema and a snapshot of its rows.
type TableDetails struct {
	TableSummary
	Schema  []schema.Field           `json:"schema"`
	Records []map[string]interface{} `json:"records"`
}

// QuerySummary describes a streaming query.
type QuerySummary struct {
	ID             string              `json:"id"`
	RunID          string              `json:"runId"`
	Name           string              `json:"name"`
	Trigger        string              `json:"trigger"`
	State          string              `json:"state"`
	Committed      int64               `json:"committedOffset"`
	Exception      string              `json:"exception,omitempty"`
	// ProcessingRate is the moving average of the processed rows per second.
	ProcessingRate float64             `json:"processingRate"`
	// LastProgress is nil until the first micro-batch completed.
	LastProgress   *streaming.Progress `json:"lastProgress,omitempty"`
}

// SQLRequest is the body of a statement submission.
type SQLRequest struct {
	Query string `json:"query"`
}

// SQLResponse is the result of a statement.
type SQLResponse struct {
	Columns []string                 `json:"columns"`
	Records []map[string]interface{} `json:"records"`
}
