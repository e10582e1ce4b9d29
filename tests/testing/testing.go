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

// Package testing runs golden tests written in fusion text files.
//
// Every fusion of a test file is followed by an annotation giving
// the expected result of its lowering, either the listing of the function:
//
//	# Want:
//	# func neg(buffer_0 float32[2], buffer_1 float32[2]) @cpu {
//	# ...
//	# }
//
// or the kind of the expected error:
//
//	# Want error: UnresolvedShape
//
// A listing annotation ends at the first line which is not a comment.
package testing

import (
	"fmt"
	"io/fs"
	"math"
	"path"
	"strings"
	"testing"

	"github.com/gx-org/fuse/build/fmterr"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/importers/fsimporter"
	"github.com/gx-org/fuse/build/importers/fusetext"
	"github.com/gx-org/fuse/build/lower"
	"github.com/pkg/errors"
)

const (
	wantPrefix      = "# Want:"
	wantErrorPrefix = "# Want error:"
)

// Case is the annotation of a fusion in a test file.
type Case struct {
	// Fusion is the name of the annotated fusion.
	Fusion string
	// Pos is the position of the fusion declaration.
	Pos fmterr.Pos
	// Out is the index of the line declaring the output of the fusion.
	Out int
	// Start and End delimit the lines [Start, End) of the annotation.
	// Both are -1 if the fusion has no annotation.
	Start, End int
	// Want is the expected listing of the lowered function.
	Want string
	// WantErr is the expected kind of error.
	WantErr string
}

// HasAnnotation returns true if the fusion has an annotation.
func (c *Case) HasAnnotation() bool {
	return c.Start >= 0
}

// ParseCases returns the annotations of all the fusions in a source.
func ParseCases(file string, src []byte) ([]*Case, error) {
	lines := strings.Split(string(src), "\n")
	var cases []*Case
	var cur *Case
	var errs fmterr.Errors
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		pos := fmterr.Pos{File: file, Line: i + 1}
		switch {
		case strings.HasPrefix(line, "fusion "):
			fields := strings.Fields(line)
			cur = &Case{Fusion: fields[1], Pos: pos, Out: -1, Start: -1, End: -1}
			cases = append(cases, cur)
		case strings.HasPrefix(line, "out "):
			if cur != nil {
				cur.Out = i
			}
		case strings.HasPrefix(line, wantErrorPrefix), strings.HasPrefix(line, wantPrefix):
			if cur == nil {
				errs.Append(pos.Errorf("annotation outside of a fusion"))
				continue
			}
			if cur.HasAnnotation() {
				errs.Append(pos.Errorf("fusion %s has more than one annotation", cur.Fusion))
				continue
			}
			cur.Start = i
			if strings.HasPrefix(line, wantErrorPrefix) {
				cur.WantErr = strings.TrimSpace(strings.TrimPrefix(line, wantErrorPrefix))
				cur.End = i + 1
				continue
			}
			var want []string
			for i+1 < len(lines) && isListingLine(lines[i+1]) {
				i++
				want = append(want, uncomment(lines[i]))
			}
			cur.End = i + 1
			cur.Want = strings.Join(want, "\n")
		}
	}
	return cases, errs.ToError()
}

func isListingLine(line string) bool {
	return strings.HasPrefix(line, "#") && !strings.HasPrefix(line, wantPrefix) && !strings.HasPrefix(line, wantErrorPrefix)
}

func uncomment(line string) string {
	line = strings.TrimPrefix(line, "#")
	return strings.TrimPrefix(line, " ")
}

// Annotation returns the annotation lines given the result of a lowering.
func Annotation(listing string, err error) []string {
	if err != nil {
		return []string{wantErrorPrefix + " " + fmterr.KindOf(err).String()}
	}
	lines := []string{wantPrefix}
	for _, line := range strings.Split(listing, "\n") {
		lines = append(lines, "# "+line)
	}
	return lines
}

// Lower a fusion and validate the resulting function.
// Returns the listing of the function.
func Lower(fusion *graph.Fusion) (string, error) {
	fn, err := lower.Fusion(fusion)
	if err != nil {
		return "", err
	}
	if err := Validate(fn); err != nil {
		return "", fmterr.Internal(err)
	}
	return fn.String(), nil
}

// Check lowers a fusion and compares the result to its annotation.
func Check(fusion *graph.Fusion, c *Case) error {
	if c == nil {
		return errors.Errorf("fusion %s not found in the annotations", fusion.Name)
	}
	if !c.HasAnnotation() {
		return c.Pos.Errorf("fusion %s has no annotation", fusion.Name)
	}
	listing, err := Lower(fusion)
	if c.WantErr != "" {
		if err == nil {
			return c.Pos.Errorf("fusion %s: got no error but want %s", fusion.Name, c.WantErr)
		}
		if got := fmterr.KindOf(err).String(); got != c.WantErr {
			return c.Pos.Errorf("fusion %s: got error %s (%v) but want %s", fusion.Name, got, err, c.WantErr)
		}
		return nil
	}
	if err != nil {
		return c.Pos.Position(errors.WithMessagef(err, "fusion %s", fusion.Name))
	}
	if listing != c.Want {
		return c.Pos.Errorf("fusion %s: got:\n%s\nwant:\n%s", fusion.Name, NumberLines(listing), NumberLines(c.Want))
	}
	return nil
}

// Load the fusions of a file and their annotations indexed by fusion name.
func Load(file string, src []byte) ([]*graph.Fusion, map[string]*Case, error) {
	fusions, err := fusetext.Parse(file, src)
	if err != nil {
		return nil, nil, err
	}
	cases, err := ParseCases(file, src)
	if err != nil {
		return nil, nil, err
	}
	byName := make(map[string]*Case)
	for _, c := range cases {
		byName[c.Fusion] = c
	}
	return fusions, byName, nil
}

// RunAll checks all the fusion files at a path of a filesystem.
// Returns the number of fusions that have been checked.
func RunAll(t *testing.T, fsys fs.ReadDirFS, dir string) (numTests int) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if !fsimporter.IsFusionFile(entry) {
			continue
		}
		file := path.Join(dir, entry.Name())
		src, err := fs.ReadFile(fsys, file)
		if err != nil {
			t.Error(err)
			continue
		}
		t.Run(entry.Name(), func(t *testing.T) {
			numTests += runFile(t, file, src)
		})
	}
	return
}

func runFile(t *testing.T, file string, src []byte) (numTests int) {
	fusions, cases, err := Load(file, src)
	if err != nil {
		t.Errorf("\n%+v", err)
		return
	}
	for _, fusion := range fusions {
		t.Run(fusion.Name, func(t *testing.T) {
			numTests++
			if err := Check(fusion, cases[fusion.Name]); err != nil {
				t.Error(err)
			}
		})
	}
	return
}

// NumberLines returns a string where lines are prefixed by their number.
func NumberLines(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	padding := int(math.Ceil(math.Log10(float64(len(lines) + 1))))
	paddingS := fmt.Sprintf("%%0%dd ", padding)
	for i, line := range lines {
		lines[i] = fmt.Sprintf(paddingS, i+1) + line
	}
	return strings.Join(lines, "\n")
}
