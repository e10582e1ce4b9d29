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

package fixers

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/gx-org/fuse/build/importers/fusetext"
	"github.com/pkg/errors"
)

type (
	// FileWriter writes a file given its content.
	FileWriter interface {
		Write(path string, content string) error
		Close() error
	}

	// Walker walks across a file system to find fusion test files.
	Walker struct {
		fw FileWriter
	}

	printFileWriter struct {
		w io.Writer
	}

	osFileWriter struct{}
)

func (fw printFileWriter) Write(path string, content string) error {
	_, err := fmt.Fprintf(fw.w, "%s:\n%s\n\n", path, content)
	return err
}

func (printFileWriter) Close() error {
	return nil
}

func (osFileWriter) Write(path string, content string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), info.Mode().Perm())
}

func (osFileWriter) Close() error {
	return nil
}

// NewWalker returns a new walker writing the fixed files on the OS filesystem.
// If dryRun is true, the fixed files are printed on out instead.
func NewWalker(out io.Writer, dryRun bool) *Walker {
	if dryRun {
		return &Walker{fw: printFileWriter{w: out}}
	}
	return &Walker{fw: osFileWriter{}}
}

// NewWalkerWithWriter returns a new walker given a file writer.
func NewWalkerWithWriter(fw FileWriter) *Walker {
	return &Walker{fw: fw}
}

func isFusionFile(info fs.FileInfo) bool {
	return !info.IsDir() && strings.HasSuffix(info.Name(), fusetext.Ext)
}

// Fix a path.
func (w *Walker) Fix(path string, info fs.FileInfo, err error) error {
	if err != nil {
		return err
	}
	if !isFusionFile(info) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return w.FixSource(path, string(data))
}

// FixSource fixes the source of a file and writes it if it changed.
func (w *Walker) FixSource(path, src string) error {
	lines := strings.Split(src, "\n")
	for _, fix := range Fixers {
		var err error
		if lines, err = fix(path, lines); err != nil {
			return errors.WithMessagef(err, "cannot fix %s", path)
		}
	}
	if fixed := strings.Join(lines, "\n"); fixed != src {
		return w.fw.Write(path, fixed)
	}
	return nil
}

// Close the walker.
func (w *Walker) Close() error {
	return w.fw.Close()
}
