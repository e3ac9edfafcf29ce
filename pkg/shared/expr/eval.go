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

package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/sprig/v3"
	"github.com/shopspring/decimal"

	"github.com/laptopstream/laptopstream/pkg/schema"
)

// funcMap holds the functions callable from expressions: the sprig generic functions, minus the
// ones reading the process environment, and a few numeric helpers.
var funcMap = buildFuncMap()

func buildFuncMap() map[string]interface{} {
	m := sprig.GenericFuncMap()
	delete(m, "env")
	delete(m, "expandenv")
	m["round"] = _round
	m["int"] = _int
	m["float"] = _float
	m["string"] = _string
	return m
}

// getFuncMap returns the evaluation environment for a row. Columns shadow functions of the same name.
func getFuncMap(row schema.Row) map[string]interface{} {
	env := make(map[string]interface{}, len(funcMap)+2*len(row))
	for k, v := range funcMap {
		env[k] = v
	}
	for k, v := range row {
		env[strings.ToLower(k)] = v
	}
	// declared spelling wins over the lower case alias
	for k, v := range row {
		env[k] = v
	}
	return env
}

// Round rounds half up (away from zero) to the given number of decimal places. The value is taken at
// its shortest decimal representation, so 1.005 rounds to 1.01 even though the closest double is
// slightly below it.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func _round(v interface{}, places interface{}) float64 {
	return Round(_float(v), int32(_int(places)))
}

func _float(v interface{}) float64 {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			panic(fmt.Errorf("cannot convert %q to float", v))
		}
		return f
	}
	f, err := schema.ToFloat(v)
	if err != nil {
		panic(err)
	}
	return f
}

func _int(v interface{}) int {
	switch w := v.(type) {
	case []byte:
		i, err := strconv.Atoi(string(w))
		if err != nil {
			panic(fmt.Errorf("cannot convert %q an int", v))
		}
		return i
	case string:
		i, err := strconv.Atoi(w)
		if err != nil {
			panic(fmt.Errorf("cannot convert %q to int", v))
		}
		return i
	case float64:
		return int(w)
	case int64:
		return int(w)
	case int:
		return w
	default:
		panic(fmt.Errorf("cannot convert %v to int", v))
	}
}

func _string(v interface{}) string {
	switch w := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(w)
	default:
		return schema.FormatValue(v)
	}
}
