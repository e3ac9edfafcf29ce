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

package util

import (
	"os"
	"strconv"
	"strings"
)

// LookupEnvStringOr returns the value of the environment variable, or defaultValue when it is unset or empty.
func LookupEnvStringOr(key, defaultValue string) string {
	if v, existing := os.LookupEnv(key); existing && v != "" {
		return v
	}
	return defaultValue
}

// LookupEnvStringsOr splits a comma separated environment variable, blank entries are dropped.
func LookupEnvStringsOr(key string, defaultValue []string) []string {
	v, existing := os.LookupEnv(key)
	if !existing {
		return defaultValue
	}
	var r []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			r = append(r, s)
		}
	}
	if len(r) == 0 {
		return defaultValue
	}
	return r
}

// LookupEnvBoolOr parses the environment variable with strconv.ParseBool, anything unparsable yields defaultValue.
func LookupEnvBoolOr(key string, defaultValue bool) bool {
	if valStr, existing := os.LookupEnv(key); existing && valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			return val
		}
	}
	return defaultValue
}
