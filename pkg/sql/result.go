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
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/laptopstream/laptopstream/pkg/schema"
)

// Result is the outcome of a statement.
type Result struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// Records returns the rows as column name to value maps.
func (r *Result) Records() []map[string]interface{} {
	records := make([]map[string]interface{}, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]interface{}, len(r.Columns))
		for j, c := range r.Columns {
			rec[c] = row[j]
		}
		records[i] = rec
	}
	return records
}

// Format prints the result as a text table, values right-aligned:
//
//	+-------+--------------+
//	|Company|avg(Price_usd)|
//	+-------+--------------+
//	|   Dell|      2329.175|
//	+-------+--------------+
func (r *Result) Format(w io.Writer) error {
	widths := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	cells := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = schema.FormatValue(v)
			if n := utf8.RuneCountInString(cells[i][j]); n > widths[j] {
				widths[j] = n
			}
		}
	}
	var b strings.Builder
	sep := func() {
		b.WriteString("+")
		for _, n := range widths {
			b.WriteString(strings.Repeat("-", n) + "+")
		}
		b.WriteString("\n")
	}
	line := func(values []string) {
		b.WriteString("|")
		for j, v := range values {
			b.WriteString(strings.Repeat(" ", widths[j]-utf8.RuneCountInString(v)) + v + "|")
		}
		b.WriteString("\n")
	}
	sep()
	line(r.Columns)
	sep()
	for _, c := range cells {
		line(c)
	}
	sep()
	_, err := fmt.Fprint(w, b.String())
	return err
}
