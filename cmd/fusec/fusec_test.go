// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const src = `fusion neg cpu
x = input f32[2]
y = neg x
out y

fusion double cpu
x = input f32[2]
c = const f32[2] 2
y = mul x c
out y

fusion unresolved cpu
x = input f32[?]
y = neg x
out y
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSource(t *testing.T) (dir, path string) {
	dir = t.TempDir()
	path = filepath.Join(dir, "f.fuse")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return dir, path
}

func TestLower(t *testing.T) {
	_, path := writeSource(t)
	out, err := run(t, "lower", "--only", "neg,double", path)
	require.NoError(t, err)
	require.Contains(t, out, "func neg(buffer_0 float32[2], buffer_1 float32[2]) @cpu {")
	require.Contains(t, out, "rdata buffer_1 float32[2]")
	require.NotContains(t, out, "unresolved")

	_, err = run(t, "lower", path)
	require.ErrorContains(t, err, "fusion unresolved")

	out, err = run(t, "lower", "tests/testfiles/movement.fuse")
	require.NoError(t, err)
	require.Contains(t, out, "func transpose(")
}

func TestCompileAndInspect(t *testing.T) {
	dir, path := writeSource(t)
	model := filepath.Join(dir, "f.kmodel")

	_, err := run(t, "compile", "-o", model, path)
	require.Error(t, err)

	out, err := run(t, "compile", "-o", model, "--skip-failed", "--alignment", "16", "--entry", "double", "--parallelism", "2", path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, model+": 2 function(s)"), out)

	out, err = run(t, "inspect", model)
	require.NoError(t, err)
	require.Contains(t, out, "alignment=16 modules=1 entry=0:1")
	require.Contains(t, out, "func neg")
	require.Contains(t, out, "func double")
	require.Contains(t, out, "[2]float32{2, 2}")

	_, err = run(t, "compile", "--alignment", "12", "-o", model, path)
	require.Error(t, err)
	_, err = run(t, "compile", path)
	require.ErrorContains(t, err, "no output file")
}

func TestRun(t *testing.T) {
	_, path := writeSource(t)
	out, err := run(t, "run", "--only", "double", "-i", "1,2.5", path)
	require.NoError(t, err)
	require.Equal(t, "double: buffer_2 = [2]float32{2, 5}\n", out)

	out, err = run(t, "run", "--only", "neg", "--input", "3", path)
	require.NoError(t, err)
	require.Equal(t, "neg: buffer_1 = [2]float32{-3, -3}\n", out)

	_, err = run(t, "run", "--only", "neg", path)
	require.ErrorContains(t, err, "fusion neg requires 1 input(s) but got 0")
	_, err = run(t, "run", "--only", "neg", "-i", "a,b", path)
	require.ErrorContains(t, err, "invalid value")
}

func TestFix(t *testing.T) {
	dir, path := writeSource(t)
	out, err := run(t, "fix", dir)
	require.NoError(t, err)
	require.Contains(t, out, "# Want error: UnresolvedShape")
	unchanged, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, src, string(unchanged))

	_, err = run(t, "fix", "--dry-run=false", dir)
	require.NoError(t, err)
	fixed, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(fixed), "# Want:\n# func neg(")
}
