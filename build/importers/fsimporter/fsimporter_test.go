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

package fsimporter_test

import (
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/importers/fsimporter"
)

func fusion(name string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte("fusion " + name + " cpu\nx = input f32[2]\ny = neg x\nout y\n")}
}

func names(fusions []*graph.Fusion) []string {
	var ns []string
	for _, f := range fusions {
		ns = append(ns, f.Name)
	}
	return ns
}

func TestImport(t *testing.T) {
	imp := fsimporter.New(fstest.MapFS{
		"lib/b.fuse":   fusion("b"),
		"lib/a.fuse":   fusion("a"),
		"lib/notes.md": &fstest.MapFile{Data: []byte("not a fusion")},
		"one.fuse":     fusion("one"),
		"empty/x.txt":  &fstest.MapFile{},
	})
	tests := []struct {
		path string
		want []string
	}{
		{path: "lib", want: []string{"a", "b"}},
		{path: "one.fuse", want: []string{"one"}},
	}
	for _, test := range tests {
		if !imp.Support(test.path) {
			t.Errorf("path %s not supported", test.path)
			continue
		}
		fusions, err := imp.Import(test.path)
		if err != nil {
			t.Errorf("cannot import %s: %v", test.path, err)
			continue
		}
		if diff := cmp.Diff(test.want, names(fusions)); diff != "" {
			t.Errorf("%s: fusions mismatch (-want +got):\n%s", test.path, diff)
		}
	}
	if imp.Support("missing.fuse") {
		t.Errorf("missing path is supported")
	}
	if _, err := imp.Import("empty"); err == nil {
		t.Errorf("expected an error for a directory without fusion files")
	}
}

func TestImportErrors(t *testing.T) {
	imp := fsimporter.New(fstest.MapFS{
		"lib/a.fuse": &fstest.MapFile{Data: []byte("fusion a cpu\n")},
		"lib/b.fuse": &fstest.MapFile{Data: []byte("y = neg x\n")},
	})
	_, err := imp.Import("lib")
	if err == nil {
		t.Fatal("expected an error")
	}
	want := "lib/a.fuse:1: fusion a has no output\nlib/b.fuse:1: node defined outside of a fusion"
	if got := err.Error(); got != want {
		t.Errorf("got error:\n%s\nwant:\n%s", got, want)
	}
}
