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

// Package embedpkg loads fusions embedded into the binary.
//
// Fusion text files are embedded into a Go package using the [embed]
// package from the Go standard library. The package registers the content
// of every file at startup with [Register]. When a registered path is
// imported, the embedded source is parsed and its fusions are returned
// to the caller.
package embedpkg

import (
	"io/fs"
	"slices"
	"strings"
	"sync"

	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/importers"
	"github.com/gx-org/fuse/build/importers/fusetext"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Importer maps paths to fusion sources embedded in the binary.
type Importer struct{}

var _ importers.Importer = (*Importer)(nil)

var (
	mut        sync.Mutex
	registered = make(map[string][]byte)
)

// Register the source of fusions given its path.
func Register(path string, src []byte) {
	mut.Lock()
	defer mut.Unlock()
	registered[path] = src
}

// RegisterFS registers all the fusion files of a filesystem,
// with their path prefixed by prefix.
func RegisterFS(prefix string, fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(path, fusetext.Ext) {
			return nil
		}
		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		Register(prefix+path, src)
		return nil
	})
}

// Paths returns the sorted list of registered paths.
func Paths() []string {
	mut.Lock()
	defer mut.Unlock()
	paths := maps.Keys(registered)
	slices.Sort(paths)
	return paths
}

func lookup(path string) ([]byte, bool) {
	mut.Lock()
	defer mut.Unlock()
	src, ok := registered[path]
	return src, ok
}

// New returns a new importer.
func New() importers.Importer {
	return &Importer{}
}

// Support returns true if path has been registered.
func (imp *Importer) Support(path string) bool {
	_, ok := lookup(path)
	return ok
}

// Import the fusions given their path.
func (imp *Importer) Import(path string) ([]*graph.Fusion, error) {
	src, ok := lookup(path)
	if !ok {
		return nil, errors.Errorf("cannot find fusion source %s", path)
	}
	return fusetext.Parse(path, src)
}
