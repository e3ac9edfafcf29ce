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

package laptopstream

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStringOutput(t *testing.T) {
	v := Version{
		Version:      "0.1.0",
		BuildDate:    "2024-05-01T12:00:00Z",
		GitCommit:    "abcdef1234567890",
		GitTag:       "v0.1.0",
		GitTreeState: "clean",
		GoVersion:    "go1.22",
		Compiler:     "gc",
		Platform:     "linux/amd64",
	}
	assert.Equal(t, "Version: 0.1.0, BuildDate: 2024-05-01T12:00:00Z, GitCommit: abcdef1234567890, GitTag: v0.1.0, GitTreeState: clean, GoVersion: go1.22, Compiler: gc, Platform: linux/amd64", v.String())
}

func withBuildInfo(t *testing.T, v, commit, tag, treeState string) {
	originalVersion, originalGitCommit, originalGitTag, originalGitTreeState := version, gitCommit, gitTag, gitTreeState
	t.Cleanup(func() {
		version, gitCommit, gitTag, gitTreeState = originalVersion, originalGitCommit, originalGitTag, originalGitTreeState
	})
	version, gitCommit, gitTag, gitTreeState = v, commit, tag, treeState
}

func TestGetVersion(t *testing.T) {
	t.Run("clean tree with tag", func(t *testing.T) {
		withBuildInfo(t, "dev", "1234567890abcdef", "v1.2.3", "clean")
		assert.Equal(t, "v1.2.3", GetVersion().Version)
	})
	t.Run("dirty tree", func(t *testing.T) {
		withBuildInfo(t, "dev", "1234567890abcdef", "v1.2.3", "dirty")
		assert.Equal(t, "dev+1234567.dirty", GetVersion().Version)
	})
	t.Run("clean tree without tag", func(t *testing.T) {
		withBuildInfo(t, "dev", "1234567890abcdef", "", "clean")
		assert.Equal(t, "dev+1234567", GetVersion().Version)
	})
	t.Run("unknown commit", func(t *testing.T) {
		withBuildInfo(t, "dev", "", "", "clean")
		assert.Equal(t, "dev+unknown", GetVersion().Version)
	})
}

func TestGetVersionRuntimeInfo(t *testing.T) {
	v := GetVersion()
	assert.Equal(t, runtime.Version(), v.GoVersion)
	assert.Equal(t, runtime.Compiler, v.Compiler)
	assert.Equal(t, fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), v.Platform)
}
