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

package embedpkg_test

import (
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/fuse/build/importers/embedpkg"
)

func TestRegisterFS(t *testing.T) {
	src := []byte("fusion f cpu\nx = input f32[2]\ny = neg x\nout y\n")
	err := embedpkg.RegisterFS("test/", fstest.MapFS{
		"a.fuse":     &fstest.MapFile{Data: src},
		"sub/b.fuse": &fstest.MapFile{Data: src},
		"README":     &fstest.MapFile{Data: []byte("skipped")},
	})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, path := range embedpkg.Paths() {
		if len(path) > 5 && path[:5] == "test/" {
			got = append(got, path)
		}
	}
	if diff := cmp.Diff([]string{"test/a.fuse", "test/sub/b.fuse"}, got); diff != "" {
		t.Errorf("registered paths mismatch (-want +got):\n%s", diff)
	}
	imp := embedpkg.New()
	if imp.Support("test/README") {
		t.Errorf("non-fusion file registered")
	}
	fusions, err := imp.Import("test/sub/b.fuse")
	if err != nil {
		t.Fatal(err)
	}
	if len(fusions) != 1 || fusions[0].Name != "f" {
		t.Errorf("got fusions %v but want a single fusion f", fusions)
	}
	if _, err := imp.Import("test/missing.fuse"); err == nil {
		t.Errorf("expected an error")
	}
}
