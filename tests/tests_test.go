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

package tests_test

import (
	"io/fs"
	"path"
	"testing"

	"github.com/gx-org/fuse/build/importers"
	"github.com/gx-org/fuse/tests"
	fusetesting "github.com/gx-org/fuse/tests/testing"
)

func TestGolden(t *testing.T) {
	for _, dir := range []string{"testfiles", "errors"} {
		t.Run(dir, func(t *testing.T) {
			if n := fusetesting.RunAll(t, tests.FS, dir); n == 0 {
				t.Errorf("no test found in %s", dir)
			}
		})
	}
}

func TestImporter(t *testing.T) {
	imp, err := tests.Importer()
	if err != nil {
		t.Fatal(err)
	}
	cl := importers.NewCacheLoader(imp)
	for _, p := range tests.All {
		fusions, err := cl.Load(tests.Prefix + p)
		if err != nil {
			t.Errorf("cannot load %s: %+v", p, err)
			continue
		}
		src, err := fs.ReadFile(tests.FS, p)
		if err != nil {
			t.Fatal(err)
		}
		_, cases, err := fusetesting.Load(path.Base(p), src)
		if err != nil {
			t.Fatal(err)
		}
		for _, fusion := range fusions {
			if err := fusetesting.Check(fusion, cases[fusion.Name]); err != nil {
				t.Error(err)
			}
		}
	}
}
