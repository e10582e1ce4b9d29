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

package importers_test

import (
	"sync"
	"testing"

	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/importers"
	"github.com/gx-org/fuse/build/importers/fusetext"
)

type countingImporter struct {
	mut    sync.Mutex
	prefix string
	count  int
}

func (imp *countingImporter) Support(path string) bool {
	return len(path) >= len(imp.prefix) && path[:len(imp.prefix)] == imp.prefix
}

func (imp *countingImporter) Import(path string) ([]*graph.Fusion, error) {
	imp.mut.Lock()
	imp.count++
	imp.mut.Unlock()
	return fusetext.Parse(path, []byte("fusion f cpu\nx = input f32[2]\ny = neg x\nout y\n"))
}

func TestCacheLoader(t *testing.T) {
	imp := &countingImporter{prefix: "mem/"}
	cl := importers.NewCacheLoader(imp)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cl.Load("mem/a"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if imp.count != 1 {
		t.Errorf("path imported %d times but want 1", imp.count)
	}
	cl.ResetPath("mem/a")
	fusions, err := cl.Load("mem/a")
	if err != nil {
		t.Fatal(err)
	}
	if imp.count != 2 || len(fusions) != 1 {
		t.Errorf("got %d import(s) and %d fusion(s) but want 2 and 1", imp.count, len(fusions))
	}
	if _, err := cl.Load("disk/a"); err == nil {
		t.Errorf("expected an error for a path without importer")
	}
}

func TestAddImporterPriority(t *testing.T) {
	first := &countingImporter{prefix: "mem/"}
	second := &countingImporter{prefix: "mem/"}
	cl := importers.NewCacheLoader(first)
	cl.AddImporter(second)
	if _, err := cl.Load("mem/a"); err != nil {
		t.Fatal(err)
	}
	if first.count != 0 || second.count != 1 {
		t.Errorf("got imports %d and %d but want 0 and 1", first.count, second.count)
	}
}

func TestClear(t *testing.T) {
	imp := &countingImporter{prefix: "mem/"}
	cl := importers.NewCacheLoader(imp)
	for _, path := range []string{"mem/a", "mem/b", "mem/a"} {
		if _, err := cl.Load(path); err != nil {
			t.Fatal(err)
		}
	}
	if imp.count != 2 {
		t.Errorf("got %d import(s) but want 2", imp.count)
	}
	cl.Clear()
	if _, err := cl.Load("mem/b"); err != nil {
		t.Fatal(err)
	}
	if imp.count != 3 {
		t.Errorf("got %d import(s) after clearing the cache but want 3", imp.count)
	}
}
