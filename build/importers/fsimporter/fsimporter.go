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

// Package fsimporter loads fusions from a virtual Go filesystem.
//
// Given a path to a file, the importer parses all the fusions of the file.
// Given a path to a directory, the importer parses all the fusion text files
// of the directory, in lexical order.
package fsimporter

import (
	"io/fs"
	"path"
	"strings"

	"github.com/gx-org/fuse/build/fmterr"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/importers"
	"github.com/gx-org/fuse/build/importers/fusetext"
	"github.com/pkg/errors"
)

// Importer loads fusions from a filesystem.
type Importer struct {
	fs fs.ReadDirFS
}

var _ importers.Importer = (*Importer)(nil)

// New returns a new importer.
func New(fs fs.ReadDirFS) *Importer {
	return &Importer{fs: fs}
}

// FS returns the filesystem used by the importer.
func (imp *Importer) FS() fs.ReadDirFS {
	return imp.fs
}

// Support returns true if the path exists in the filesystem.
func (imp *Importer) Support(path string) bool {
	_, err := fs.Stat(imp.fs, path)
	return err == nil
}

// Import the fusions defined at a path.
func (imp *Importer) Import(path string) ([]*graph.Fusion, error) {
	return ImportAt(imp.fs, path)
}

// IsFusionFile returns true if a directory entry is a fusion text file.
func IsFusionFile(entry fs.DirEntry) bool {
	return !entry.IsDir() && strings.HasSuffix(entry.Name(), fusetext.Ext)
}

// ImportAt parses the fusions of a file or of all the fusion files in a directory.
func ImportAt(vfs fs.ReadDirFS, fsPath string) ([]*graph.Fusion, error) {
	if fsPath == "" {
		fsPath = "."
	}
	info, err := fs.Stat(vfs, fsPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return importFile(vfs, fsPath)
	}
	entries, err := vfs.ReadDir(fsPath)
	if err != nil {
		return nil, err
	}
	var fusions []*graph.Fusion
	var errs fmterr.Errors
	found := false
	for _, entry := range entries {
		if !IsFusionFile(entry) {
			continue
		}
		found = true
		fileFusions, err := importFile(vfs, path.Join(fsPath, entry.Name()))
		if err != nil {
			errs.Append(err)
			continue
		}
		fusions = append(fusions, fileFusions...)
	}
	if !found {
		return nil, errors.Errorf("no fusion file found in directory %s", fsPath)
	}
	if !errs.Empty() {
		return nil, errs.ToError()
	}
	return fusions, nil
}

func importFile(vfs fs.FS, fsPath string) ([]*graph.Fusion, error) {
	src, err := fs.ReadFile(vfs, fsPath)
	if err != nil {
		return nil, err
	}
	return fusetext.Parse(fsPath, src)
}
