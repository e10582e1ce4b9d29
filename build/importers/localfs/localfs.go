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

// Package localfs loads fusions from the local filesystem.
package localfs

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/importers"
	"github.com/gx-org/fuse/build/importers/fsimporter"
	"github.com/pkg/errors"
)

// Importer imports fusions from files and directories of the local filesystem.
// Relative paths are resolved from a root directory.
type Importer struct {
	root string
}

var _ importers.Importer = (*Importer)(nil)

// New returns a new importer resolving relative paths from root.
// The current working directory is used if root is empty.
func New(root string) (*Importer, error) {
	if root == "" {
		var err error
		if root, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Errorf("invalid path %q: %v", root, err)
	}
	return &Importer{root: abs}, nil
}

// Root returns the directory from which relative paths are resolved.
func (imp *Importer) Root() string {
	return imp.root
}

func (imp *Importer) osPath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(imp.root, path)
}

// Support returns true if the path exists on the local filesystem.
func (imp *Importer) Support(path string) bool {
	_, err := os.Stat(imp.osPath(path))
	return err == nil
}

// Import the fusions of a file or of all the fusion files of a directory.
func (imp *Importer) Import(path string) ([]*graph.Fusion, error) {
	osPath := imp.osPath(path)
	dir, name := filepath.Split(osPath)
	info, err := os.Stat(osPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		dir, name = osPath, "."
	}
	fusions, err := fsimporter.ImportAt(os.DirFS(dir).(fs.ReadDirFS), name)
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot import %s", path)
	}
	return fusions, nil
}
