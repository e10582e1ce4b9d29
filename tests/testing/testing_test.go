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

package testing_test

import (
	"strings"
	"testing"

	"github.com/gx-org/fuse/build/fmterr"
	"github.com/gx-org/fuse/build/tir"
	fusetesting "github.com/gx-org/fuse/tests/testing"
)

const src = `fusion neg cpu
x = input f32[2]
y = neg x
out y
# Want:
# func neg(buffer_0 float32[2], buffer_1 float32[2]) @cpu {
# 	block Unary {
# 		for i0 := range 2 { // loop_0
# 			buffer_1[i0] = -buffer_0[i0]
# 		}
# 	}
# }

fusion bad cpu
x = input f32[?]
y = neg x
out y
# Want error: UnresolvedShape
`

func TestCheck(t *testing.T) {
	fusions, cases, err := fusetesting.Load("test.fuse", []byte(src))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(fusions) != 2 {
		t.Fatalf("got %d fusions but want 2", len(fusions))
	}
	for _, fusion := range fusions {
		if err := fusetesting.Check(fusion, cases[fusion.Name]); err != nil {
			t.Error(err)
		}
	}
	neg := cases["neg"]
	if neg.Out != 3 || neg.Start != 4 || neg.End != 12 {
		t.Errorf("got out line %d and annotation [%d, %d) but want 3 and [4, 12)", neg.Out, neg.Start, neg.End)
	}
}

func TestCheckMismatch(t *testing.T) {
	wrong := strings.Replace(src, "-buffer_0[i0]", "buffer_0[i0]", 1)
	fusions, cases, err := fusetesting.Load("test.fuse", []byte(wrong))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if err := fusetesting.Check(fusions[0], cases["neg"]); err == nil {
		t.Errorf("expected a mismatch error")
	}
}

func TestAnnotation(t *testing.T) {
	got := fusetesting.Annotation("", fmterr.Errorf("f", nil, fmterr.ShapeMismatch, "mismatch"))
	if len(got) != 1 || got[0] != "# Want error: ShapeMismatch" {
		t.Errorf("got annotation %q", got)
	}
	got = fusetesting.Annotation("a\n\tb", nil)
	want := []string{"# Want:", "# a", "# \tb"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("got annotation %q but want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	x := tir.NewBuffer("x", tir.IndexType, tir.Input, []int{2}, nil)
	out := tir.NewBuffer("out", tir.IndexType, tir.Output, []int{2}, nil)
	stray := tir.NewBuffer("stray", tir.IndexType, tir.Intermediate, []int{2}, nil)
	nest := tir.NewLoopNest(out.Dims)
	vars := nest.Vars()
	fn := &tir.PrimFunc{
		Name:   "f",
		Params: []*tir.Buffer{x, out},
		Body: []tir.Stmt{
			nest.Fold(&tir.Store{Buffer: out, Index: out.Index(vars), Value: x.Load(x.Index(vars))}),
		},
	}
	if err := fusetesting.Validate(fn); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	fn.Body = append(fn.Body,
		&tir.Store{Buffer: x, Index: tir.Int(0), Value: tir.Int(1)},
		&tir.Store{Buffer: out, Index: &tir.Var{Name: "i9"}, Value: stray.Load(tir.Int(0))},
	)
	err := fusetesting.Validate(fn)
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{
		"store into input buffer x",
		"unbound variable i9",
		"buffer stray is not declared",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err.Error(), want)
		}
	}
}
