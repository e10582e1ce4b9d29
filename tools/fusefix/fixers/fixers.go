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

// Package fixers implements functions to fix fusion test files.
package fixers

import (
	"slices"
	"strings"

	fusetesting "github.com/gx-org/fuse/tests/testing"
)

// Fixers list all the fixers.
var Fixers = []Fixer{
	fixWantAnnotations,
}

// Fixer fixes the lines of a fusion test file.
type Fixer func(path string, lines []string) (fixed []string, err error)

// fixWantAnnotations replaces the annotation of every fusion
// by the result of its lowering.
// Fusions without annotation get one after their output declaration.
func fixWantAnnotations(path string, lines []string) ([]string, error) {
	src := []byte(strings.Join(lines, "\n"))
	fusions, cases, err := fusetesting.Load(path, src)
	if err != nil {
		return nil, err
	}
	type edit struct {
		start, end int
		lines      []string
	}
	var edits []edit
	for _, fusion := range fusions {
		c := cases[fusion.Name]
		if c == nil || c.Out < 0 {
			continue
		}
		annotation := fusetesting.Annotation(fusetesting.Lower(fusion))
		if c.HasAnnotation() {
			edits = append(edits, edit{start: c.Start, end: c.End, lines: annotation})
			continue
		}
		edits = append(edits, edit{start: c.Out + 1, end: c.Out + 1, lines: annotation})
	}
	fixed := slices.Clone(lines)
	// Apply the edits from the end of the file such that line numbers stay valid.
	slices.SortFunc(edits, func(a, b edit) int { return b.start - a.start })
	for _, e := range edits {
		fixed = slices.Replace(fixed, e.start, e.end, e.lines...)
	}
	return fixed, nil
}
