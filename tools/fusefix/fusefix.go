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

// Package fusefix updates the expected results of fusion test files.
package fusefix

import (
	"io"
	"path/filepath"

	"github.com/gx-org/fuse/tools/fusefix/fixers"
	"github.com/pkg/errors"
)

// Fix all the fusion test files in a folder.
// If dryRun is true, the fixed files are printed on out instead of being written.
func Fix(out io.Writer, folder string, dryRun bool) error {
	if folder == "" {
		return errors.Errorf("no folder specified")
	}
	walker := fixers.NewWalker(out, dryRun)
	if err := filepath.Walk(folder, walker.Fix); err != nil {
		return err
	}
	return walker.Close()
}
