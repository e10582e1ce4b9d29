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

package localfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gx-org/fuse/build/importers/localfs"
)

func TestImport(t *testing.T) {
	root := t.TempDir()
	src := []byte("fusion f cpu\nx = input f32[2]\ny = neg x\nout y\n")
	if err := os.MkdirAll(filepath.Join(root, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "lib", "f.fuse"), src, 0o644); err != nil {
		t.Fatal(err)
	}
	imp, err := localfs.New(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"lib", "lib/f.fuse", filepath.Join(root, "lib", "f.fuse")} {
		if !imp.Support(path) {
			t.Errorf("path %s not supported", path)
			continue
		}
		fusions, err := imp.Import(path)
		if err != nil {
			t.Errorf("cannot import %s: %v", path, err)
			continue
		}
		if len(fusions) != 1 {
			t.Errorf("%s: got %d fusions but want 1", path, len(fusions))
		}
	}
	if imp.Support("lib/missing.fuse") {
		t.Errorf("missing path is supported")
	}
}
