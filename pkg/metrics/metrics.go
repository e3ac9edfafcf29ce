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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelVersion  = "version"
	LabelPlatform = "platform"
	LabelQuery    = "query"
	LabelTable    = "table"
	LabelSource   = "source"
	LabelTrigger  = "trigger"
	LabelReason   = "reason"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant value '1', labeled by laptopstream binary version and platform",
	}, []string{LabelVersion, LabelPlatform})
)

// Micro-batch metrics, labeled by the name of the sink registration
var (
	// BatchesCount is used to indicate the number of completed micro-batches
	BatchesCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "microbatch",
		Name:      "total",
		Help:      "Total number of completed micro-batches",
	}, []string{LabelQuery, LabelTrigger})

	// BatchErrors is used to indicate the number of failed micro-batches
	BatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "microbatch",
		Name:      "error_total",
		Help:      "Total number of failed micro-batches",
	}, []string{LabelQuery, LabelTrigger})

	// BatchProcessingTime is a histogram to observe micro-batch latency
	BatchProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "microbatch",
		Name:      "processing_time",
		Help:      "Processing times of micro-batches (100 microseconds to 10 minutes)",
		Buckets:   prometheus.ExponentialBucketsRange(100, 60000000*10, 10),
	}, []string{LabelQuery, LabelTrigger})

	// ReadRowsCount is used to indicate the number of rows read from source files
	ReadRowsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "microbatch",
		Name:      "read_rows_total",
		Help:      "Total number of rows read from source files",
	}, []string{LabelQuery})

	// WriteRowsCount is used to indicate the number of rows appended to the sink
	WriteRowsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "microbatch",
		Name:      "write_rows_total",
		Help:      "Total number of rows appended to the sink",
	}, []string{LabelQuery})

	// DropRowsCount is used to indicate the number of rows which never reach the sink
	DropRowsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "microbatch",
		Name:      "drop_rows_total",
		Help:      "Total number of rows dropped",
	}, []string{LabelQuery, LabelReason})

	// ProcessingRate is the moving average of the rows processed per second
	ProcessingRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "microbatch",
		Name:      "processing_rate",
		Help:      "Moving average of the input rows processed per second",
	}, []string{LabelQuery})
)
