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

package importers

import (
	"sync"

	"github.com/gx-org/fuse/build/graph"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

type (
	// ImporterAdder is implemented by loaders to which importers can be added
	// after the loader has been created.
	ImporterAdder interface {
		AddImporter(Importer)
	}

	// PathReseter resets a path in the loader to force a new import.
	PathReseter interface {
		ResetPath(string)
	}
)

// Load the fusions defined at a path with the first importer supporting the path.
func Load(importers []Importer, path string) ([]*graph.Fusion, error) {
	imp := Find(importers, func(imp Importer) bool {
		return imp.Support(path)
	})
	if imp == nil {
		return nil, errors.Errorf("cannot find an importer for %s", path)
	}
	return imp.Import(path)
}

// loaded is the result of importing a path, including a failure.
type loaded struct {
	fusions []*graph.Fusion
	err     error
}

// CacheLoader imports a path once and returns the same fusions for all
// subsequent loads until the path is reset.
// Concurrent loads of the same path share a single import.
// A CacheLoader is safe for concurrent use.
type CacheLoader struct {
	flights singleflight.Group

	mut       sync.RWMutex
	importers []Importer
	cache     map[string]loaded
}

var (
	_ ImporterAdder = (*CacheLoader)(nil)
	_ PathReseter   = (*CacheLoader)(nil)
)

// NewCacheLoader returns a new loader given a set of importers.
func NewCacheLoader(importers ...Importer) *CacheLoader {
	return &CacheLoader{
		importers: importers,
		cache:     make(map[string]loaded),
	}
}

// ResetPath forces an import next time the path will be loaded.
func (cl *CacheLoader) ResetPath(path string) {
	cl.mut.Lock()
	defer cl.mut.Unlock()
	delete(cl.cache, path)
}

// Clear the cache.
func (cl *CacheLoader) Clear() {
	cl.mut.Lock()
	defer cl.mut.Unlock()
	clear(cl.cache)
}

// AddImporter adds an importer taking precedence over all the importers
// already in the loader.
func (cl *CacheLoader) AddImporter(imp Importer) {
	cl.mut.Lock()
	defer cl.mut.Unlock()
	cl.importers = append([]Importer{imp}, cl.importers...)
}

func (cl *CacheLoader) lookup(path string) (loaded, []Importer, bool) {
	cl.mut.RLock()
	defer cl.mut.RUnlock()
	res, ok := cl.cache[path]
	return res, cl.importers, ok
}

func (cl *CacheLoader) load(path string) loaded {
	res, importers, ok := cl.lookup(path)
	if ok {
		return res
	}
	res.fusions, res.err = Load(importers, path)
	cl.mut.Lock()
	defer cl.mut.Unlock()
	cl.cache[path] = res
	return res
}

// Load the fusions defined at a path.
func (cl *CacheLoader) Load(path string) ([]*graph.Fusion, error) {
	if res, _, ok := cl.lookup(path); ok {
		return res.fusions, res.err
	}
	v, _, _ := cl.flights.Do(path, func() (any, error) {
		return cl.load(path), nil
	})
	res := v.(loaded)
	return res.fusions, res.err
}
