// Copyright 2024 Google LLC
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

package fixers_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gx-org/fuse/tools/fusefix"
	"github.com/gx-org/fuse/tools/fusefix/fixers"
	fusetesting "github.com/gx-org/fuse/tests/testing"
)

type memWriter struct {
	files map[string]string
}

func (w *memWriter) Write(path, content string) error {
	w.files[path] = content
	return nil
}

func (w *memWriter) Close() error { return nil }

const stale = `fusion neg cpu
x = input f32[2]
y = neg x
out y
# Want:
# wrong listing

fusion noannotation cpu
x = input f32[2,?]
y = neg x
out y
`

func TestFixSource(t *testing.T) {
	w := &memWriter{files: make(map[string]string)}
	walker := fixers.NewWalkerWithWriter(w)
	if err := walker.FixSource("test.fuse", stale); err != nil {
		t.Fatalf("%+v", err)
	}
	fixed, ok := w.files["test.fuse"]
	if !ok {
		t.Fatal("file not written")
	}
	if err := checkAll(fixed); err != nil {
		t.Errorf("fixed file:\n%s\nerror: %v", fixed, err)
	}
	if !strings.Contains(fixed, "out y\n# Want error: UnresolvedShape\n") {
		t.Errorf("missing annotation in:\n%s", fixed)
	}
	// Fixing a fixed file does not change it.
	delete(w.files, "test.fuse")
	if err := walker.FixSource("test.fuse", fixed); err != nil {
		t.Fatal(err)
	}
	if _, ok := w.files["test.fuse"]; ok {
		t.Errorf("fixed file rewritten")
	}
}

func checkAll(src string) error {
	fusions, cases, err := fusetesting.Load("test.fuse", []byte(src))
	if err != nil {
		return err
	}
	for _, fusion := range fusions {
		if err := fusetesting.Check(fusion, cases[fusion.Name]); err != nil {
			return err
		}
	}
	return nil
}

func TestFixFolder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "neg.fuse")
	if err := os.WriteFile(path, []byte(stale), 0o644); err != nil {
		t.Fatal(err)
	}
	var out strings.Builder
	if err := fusefix.Fix(&out, dir, true); err != nil {
		t.Fatalf("%+v", err)
	}
	if !strings.Contains(out.String(), "# Want error: UnresolvedShape") {
		t.Errorf("dry run output does not contain the fixed file:\n%s", out.String())
	}
	if err := fusefix.Fix(&out, dir, false); err != nil {
		t.Fatalf("%+v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := checkAll(string(data)); err != nil {
		t.Errorf("fixed file:\n%s\nerror: %v", data, err)
	}
}
