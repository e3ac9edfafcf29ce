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

package sql

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/laptopstream/laptopstream/pkg/metrics"
)

// queriesCount is used to indicate the number of statements executed against a table
var queriesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sql",
	Name:      "queries_total",
	Help:      "Total number of statements executed",
}, []string{metrics.LabelTable})

// queryErrors is used to indicate the number of failed statements
var queryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sql",
	Name:      "error_total",
	Help:      "Total number of failed statements",
}, []string{metrics.LabelReason})
