// Copyright 2025 Google LLC
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

package graph_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/fuse/build/graph"
)

func f32(dims ...int) *shape.Shape {
	return graph.NewShape(dtype.Float32, dims...)
}

func TestInfer(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", f32(2, 3))
	y := b.Input("y", f32(2, 3))
	z := b.Input("z", f32(3, 4))
	u := b.Input("u", f32(2, graph.UnknownDim))
	cond := b.Input("cond", graph.NewShape(dtype.Bool, 2, 3))
	tests := []struct {
		desc string
		op   func() (*graph.Operation, error)
		want string
	}{
		{
			desc: "unary",
			op:   func() (*graph.Operation, error) { return b.Unary(graph.Exp, x) },
			want: "float32[2,3]",
		},
		{
			desc: "binary",
			op:   func() (*graph.Operation, error) { return b.Binary(graph.Add, x, y) },
			want: "float32[2,3]",
		},
		{
			desc: "binary with unknown axis",
			op:   func() (*graph.Operation, error) { return b.Binary(graph.Mul, u, x) },
			want: "float32[2,3]",
		},
		{
			desc: "comparison",
			op:   func() (*graph.Operation, error) { return b.Binary(graph.Less, x, y) },
			want: "bool[2,3]",
		},
		{
			desc: "select",
			op:   func() (*graph.Operation, error) { return b.Select(cond, x, y) },
			want: "float32[2,3]",
		},
		{
			desc: "cast",
			op:   func() (*graph.Operation, error) { return b.Cast(x, dtype.Int32) },
			want: "int32[2,3]",
		},
		{
			desc: "reduce",
			op:   func() (*graph.Operation, error) { return b.Reduce(graph.ReduceSum, x, []int{1}, false) },
			want: "float32[2]",
		},
		{
			desc: "reduce keep dims",
			op:   func() (*graph.Operation, error) { return b.Reduce(graph.ReduceMax, x, []int{0}, true) },
			want: "float32[1,3]",
		},
		{
			desc: "reduce all",
			op:   func() (*graph.Operation, error) { return b.Reduce(graph.ReduceMean, x, nil, false) },
			want: "float32[]",
		},
		{
			desc: "reshape",
			op:   func() (*graph.Operation, error) { return b.Reshape(x, []int{3, 2}) },
			want: "float32[3,2]",
		},
		{
			desc: "transpose",
			op:   func() (*graph.Operation, error) { return b.Transpose(x, []int{1, 0}) },
			want: "float32[3,2]",
		},
		{
			desc: "broadcast",
			op:   func() (*graph.Operation, error) { return b.Broadcast(z, []int{2, 3, 4}, []int{1, 2}) },
			want: "float32[2,3,4]",
		},
		{
			desc: "concat",
			op:   func() (*graph.Operation, error) { return b.Concat(0, x, y) },
			want: "float32[4,3]",
		},
		{
			desc: "slice",
			op: func() (*graph.Operation, error) {
				return b.Slice(x, []int{0, 1}, []int{2, 3}, []int{1, 2})
			},
			want: "float32[2,1]",
		},
		{
			desc: "matmul",
			op:   func() (*graph.Operation, error) { return b.MatMul(x, z) },
			want: "float32[2,4]",
		},
	}
	for _, test := range tests {
		op, err := test.op()
		if err != nil {
			t.Errorf("%s: %+v", test.desc, err)
			continue
		}
		if got := graph.TypeString(op.Shape()); got != test.want {
			t.Errorf("%s: got type %s but want %s", test.desc, got, test.want)
		}
	}
}

func TestInferErrors(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", f32(2, 3))
	z := b.Input("z", f32(3, 4))
	i := b.Input("i", graph.NewShape(dtype.Int32, 2, 3))
	tests := []struct {
		desc string
		op   func() (*graph.Operation, error)
		err  string
	}{
		{
			desc: "float only unary on integers",
			op:   func() (*graph.Operation, error) { return b.Unary(graph.Exp, i) },
			err:  "requires a floating point operand",
		},
		{
			desc: "binary shape mismatch",
			op:   func() (*graph.Operation, error) { return b.Binary(graph.Add, x, z) },
			err:  "mismatched shapes",
		},
		{
			desc: "binary data type mismatch",
			op:   func() (*graph.Operation, error) { return b.Binary(graph.Add, x, i) },
			err:  "mismatched data types",
		},
		{
			desc: "logical operation on floats",
			op:   func() (*graph.Operation, error) { return b.Binary(graph.And, x, x) },
			err:  "not defined on float32",
		},
		{
			desc: "reduce axis out of range",
			op:   func() (*graph.Operation, error) { return b.Reduce(graph.ReduceSum, x, []int{2}, false) },
			err:  "out of range",
		},
		{
			desc: "reshape size mismatch",
			op:   func() (*graph.Operation, error) { return b.Reshape(x, []int{4, 2}) },
			err:  "cannot reshape",
		},
		{
			desc: "transpose invalid permutation",
			op:   func() (*graph.Operation, error) { return b.Transpose(x, []int{0, 0}) },
			err:  "not a permutation",
		},
		{
			desc: "concat mismatch",
			op:   func() (*graph.Operation, error) { return b.Concat(0, x, z) },
			err:  "differ outside of axis 0",
		},
		{
			desc: "slice out of range",
			op:   func() (*graph.Operation, error) { return b.Slice(x, []int{0, 0}, []int{3, 3}, []int{1, 1}) },
			err:  "out of range",
		},
		{
			desc: "matmul contracting mismatch",
			op:   func() (*graph.Operation, error) { return b.MatMul(z, x) },
			err:  "contracting axes mismatch",
		},
	}
	for _, test := range tests {
		_, err := test.op()
		if err == nil {
			t.Errorf("%s: expected an error but got nil", test.desc)
			continue
		}
		if !strings.Contains(err.Error(), test.err) {
			t.Errorf("%s: error %q does not contain %q", test.desc, err.Error(), test.err)
		}
	}
}

func TestNormalizeAxes(t *testing.T) {
	got, err := graph.NormalizeAxes(3, []int{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 2}, got); diff != "" {
		t.Errorf("axes mismatch (-want +got):\n%s", diff)
	}
	got, err = graph.NormalizeAxes(3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, got); diff != "" {
		t.Errorf("all axes mismatch (-want +got):\n%s", diff)
	}
	if _, err := graph.NormalizeAxes(3, []int{1, 1}); err == nil {
		t.Errorf("expected an error for duplicated axes")
	}
}

func TestConstant(t *testing.T) {
	b := graph.NewBuilder()
	c, err := graph.ConstantOf(b, []int{3}, []float32{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := graph.TypeString(c.Shape()), "float32[3]"; got != want {
		t.Errorf("got type %s but want %s", got, want)
	}
	if got, want := len(c.Data), 12; got != want {
		t.Errorf("got %d bytes but want %d", got, want)
	}
	if _, err := b.Constant(f32(4), make([]byte, 12)); err == nil {
		t.Errorf("expected an error for a constant with the wrong number of bytes")
	}
	if _, err := b.Constant(f32(graph.UnknownDim), nil); err == nil {
		t.Errorf("expected an error for a constant with an unknown axis length")
	}
}

func TestOperationsPostOrder(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", f32(2))
	neg, err := b.Unary(graph.Neg, x)
	if err != nil {
		t.Fatal(err)
	}
	exp, err := b.Unary(graph.Exp, neg)
	if err != nil {
		t.Fatal(err)
	}
	add, err := b.Binary(graph.Add, neg, exp)
	if err != nil {
		t.Fatal(err)
	}
	fusion := b.Fusion("f", "cpu", add)
	var got []graph.NodeID
	for _, op := range fusion.Operations() {
		got = append(got, op.ID())
	}
	want := []graph.NodeID{neg.ID(), exp.ID(), add.ID()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("operations mismatch (-want +got):\n%s", diff)
	}
	wantString := strings.TrimSpace(`
fusion f (cpu) {
	#1:neg float32[2] = neg(#0:input(x))
	#2:exp float32[2] = exp(#1:neg)
	#3:add float32[2] = add(#1:neg, #2:exp)
	return #3:add
}`)
	if got := fusion.String(); got != wantString {
		t.Errorf("got:\n%s\nwant:\n%s", got, wantString)
	}
}
