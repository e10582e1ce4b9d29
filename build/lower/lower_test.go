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

package lower_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/fuse/build/fmterr"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/lower"
	"github.com/gx-org/fuse/build/tir"
	"github.com/pkg/errors"
)

func f32(dims ...int) *shape.Shape {
	return graph.NewShape(dtype.Float32, dims...)
}

func must[T any](t *testing.T) func(T, error) T {
	return func(v T, err error) T {
		t.Helper()
		if err != nil {
			t.Fatalf("%+v", err)
		}
		return v
	}
}

func roles(bufs []*tir.Buffer) []string {
	var rs []string
	for _, buf := range bufs {
		rs = append(rs, buf.Name+":"+buf.Role.String())
	}
	return rs
}

func TestScenarioUnary(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", f32(2, 3))
	neg := must[*graph.Operation](t)(b.Unary(graph.Neg, x))
	fn := must[*tir.PrimFunc](t)(lower.Fusion(b.Fusion("neg", "cpu", neg)))

	if diff := cmp.Diff([]string{"buffer_0:input", "buffer_1:output"}, roles(fn.Params)); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
	if len(fn.Allocs) != 0 {
		t.Errorf("got allocations %v but want none", roles(fn.Allocs))
	}
	want := strings.TrimSpace(`
func neg(buffer_0 float32[2,3], buffer_1 float32[2,3]) @cpu {
	block Unary {
		for i0 := range 2 { // loop_0
			for i1 := range 3 { // loop_1
				buffer_1[3*i0 + i1] = -buffer_0[3*i0 + i1]
			}
		}
	}
}`)
	if got := fn.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestScenarioConstantPassThrough(t *testing.T) {
	b := graph.NewBuilder()
	c := must[*graph.Constant](t)(graph.ConstantOf(b, []int{1}, []float32{42}))
	id := must[*graph.Operation](t)(b.Identity(c))
	fn := must[*tir.PrimFunc](t)(lower.Fusion(b.Fusion("pass", "cpu", id)))

	if diff := cmp.Diff([]string{"buffer_1:output"}, roles(fn.Params)); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"buffer_0:rdata"}, roles(fn.Allocs)); diff != "" {
		t.Errorf("allocations mismatch (-want +got):\n%s", diff)
	}
	want := strings.TrimSpace(`
func pass(buffer_1 float32[1]) @cpu {
	rdata buffer_0 float32[1]
	block Identity {
		for i0 := range 1 { // loop_0
			buffer_1[i0] = buffer_0[i0]
		}
	}
}`)
	if got := fn.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestScenarioUnresolvedShape(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", f32(2, graph.UnknownDim))
	neg := b.Operation(&graph.Unary{Op: graph.Neg}, f32(2, graph.UnknownDim), x)
	e := must[*lower.Engine](t)(lower.New(b.Fusion("neg", "cpu", neg)))
	fn, err := e.Lower()
	if err == nil {
		t.Fatalf("expected an error but got function:\n%s", fn)
	}
	if got := fmterr.KindOf(err); got != fmterr.UnresolvedShape {
		t.Errorf("got error kind %s but want %s: %v", got, fmterr.UnresolvedShape, err)
	}
	if bufs := e.Buffers(); len(bufs) != 0 {
		t.Errorf("got buffers %v but want none", roles(bufs))
	}
	if !strings.Contains(err.Error(), "fusion neg: node #1:neg:") {
		t.Errorf("error %q is not labelled with the fusion and the node", err.Error())
	}
}

func TestScenarioUnsupportedOperator(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", f32(4))
	neg := must[*graph.Operation](t)(b.Unary(graph.Neg, x))
	sum := must[*graph.Operation](t)(b.Binary(graph.Add, neg, x))
	reg := lower.DefaultRegistry()
	reg.Unregister(graph.UnaryKind)
	e := must[*lower.Engine](t)(lower.New(b.Fusion("f", "cpu", sum), lower.WithRegistry(reg)))
	fn, err := e.Lower()
	if fn != nil {
		t.Errorf("got function:\n%s\nbut want nil", fn)
	}
	if !errors.Is(err, fmterr.ErrUnsupportedOperator) {
		t.Errorf("got error %v but want %v", err, fmterr.ErrUnsupportedOperator)
	}
	if diff := cmp.Diff([]string{"buffer_0:input", "buffer_1:data"}, roles(e.Buffers())); diff != "" {
		t.Errorf("buffers allocated before the failure mismatch (-want +got):\n%s", diff)
	}
}

func TestShapeMismatch(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", f32(2, 3))
	neg := b.Operation(&graph.Unary{Op: graph.Neg}, f32(3, 2), x)
	_, err := lower.Fusion(b.Fusion("bad", "cpu", neg))
	if got := fmterr.KindOf(err); got != fmterr.ShapeMismatch {
		t.Errorf("got error kind %s but want %s: %v", got, fmterr.ShapeMismatch, err)
	}
	var lerr *fmterr.Error
	if !errors.As(err, &lerr) {
		t.Fatalf("error %v is not a lowering error", err)
	}
	if lerr.Fusion != "bad" || lerr.Node != neg.ID() {
		t.Errorf("error labelled with fusion %q and node %d but want fusion %q and node %d", lerr.Fusion, lerr.Node, "bad", neg.ID())
	}
}

func TestSliceBoundsMismatch(t *testing.T) {
	tests := []struct {
		desc               string
		begin, end, stride int
		dim                int
	}{
		{desc: "end before begin", begin: 3, end: 2, stride: 2, dim: 0},
		{desc: "end out of range", begin: 0, end: 7, stride: 1, dim: 7},
		{desc: "negative begin", begin: -1, end: 2, stride: 1, dim: 3},
		{desc: "zero stride", begin: 0, end: 2, stride: 0, dim: 2},
		{desc: "wrong result length", begin: 0, end: 6, stride: 2, dim: 2},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			b := graph.NewBuilder()
			x := b.Input("x", f32(6))
			slice := b.Operation(&graph.Slice{
				Begin:   []int{test.begin},
				End:     []int{test.end},
				Strides: []int{test.stride},
			}, f32(test.dim), x)
			_, err := lower.Fusion(b.Fusion("slice", "cpu", slice))
			if got := fmterr.KindOf(err); got != fmterr.ShapeMismatch {
				t.Errorf("got error kind %s but want %s: %v", got, fmterr.ShapeMismatch, err)
			}
		})
	}
}

func TestOutputNotAnOperation(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", f32(2))
	_, err := lower.Fusion(b.Fusion("in", "cpu", x))
	if got := fmterr.KindOf(err); got != fmterr.UnsupportedNodeKind {
		t.Errorf("got error kind %s but want %s: %v", got, fmterr.UnsupportedNodeKind, err)
	}
}

func TestNodesFromDifferentBuilders(t *testing.T) {
	b1, b2 := graph.NewBuilder(), graph.NewBuilder()
	x := b1.Input("x", f32(2))
	y := b2.Input("y", f32(2))
	sum := must[*graph.Operation](t)(b1.Binary(graph.Add, x, y))
	_, err := lower.Fusion(b1.Fusion("f", "cpu", sum))
	if got := fmterr.KindOf(err); got != fmterr.InternalKind {
		t.Errorf("got error kind %s but want %s: %v", got, fmterr.InternalKind, err)
	}
}

func TestLowerTwice(t *testing.T) {
	b := graph.NewBuilder()
	neg := must[*graph.Operation](t)(b.Unary(graph.Neg, b.Input("x", f32(2))))
	e := must[*lower.Engine](t)(lower.New(b.Fusion("neg", "cpu", neg)))
	if _, err := e.Lower(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Lower(); err == nil {
		t.Errorf("expected an error when lowering twice with the same engine")
	}
}

// loads returns all the buffers loaded by a statement.
func loads(stmt tir.Stmt) []*tir.Buffer {
	var bufs []*tir.Buffer
	var expr func(tir.Expr)
	expr = func(e tir.Expr) {
		switch eT := e.(type) {
		case *tir.Load:
			bufs = append(bufs, eT.Buffer)
			expr(eT.Index)
		case *tir.Unary:
			expr(eT.X)
		case *tir.Binary:
			expr(eT.X)
			expr(eT.Y)
		case *tir.Select:
			expr(eT.Cond)
			expr(eT.X)
			expr(eT.Y)
		case *tir.Cast:
			expr(eT.X)
		}
	}
	var walk func(tir.Stmt)
	walk = func(s tir.Stmt) {
		switch sT := s.(type) {
		case *tir.Block:
			walk(sT.Body)
		case *tir.For:
			walk(sT.Body)
		case *tir.Seq:
			for _, s := range sT.Stmts {
				walk(s)
			}
		case *tir.Store:
			expr(sT.Value)
		}
	}
	walk(stmt)
	return bufs
}

func sharedFusion(t *testing.T) (*graph.Fusion, *graph.Input) {
	b := graph.NewBuilder()
	x := b.Input("x", f32(2, 2))
	neg := must[*graph.Operation](t)(b.Unary(graph.Neg, x))
	exp := must[*graph.Operation](t)(b.Unary(graph.Exp, x))
	sum := must[*graph.Operation](t)(b.Binary(graph.Add, neg, exp))
	twice := must[*graph.Operation](t)(b.Binary(graph.Mul, sum, sum))
	return b.Fusion("shared", "cpu", twice), x
}

func TestIdentitySharing(t *testing.T) {
	fusion, _ := sharedFusion(t)
	fn := must[*tir.PrimFunc](t)(lower.Fusion(fusion))
	if diff := cmp.Diff([]string{
		"buffer_0:input",
		"buffer_4:output",
	}, roles(fn.Params)); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{
		"buffer_1:data",
		"buffer_2:data",
		"buffer_3:data",
	}, roles(fn.Allocs)); diff != "" {
		t.Errorf("allocations mismatch (-want +got):\n%s", diff)
	}
	x := fn.Params[0]
	for _, stmt := range fn.Body[:2] {
		for _, buf := range loads(stmt) {
			if buf != x {
				t.Errorf("statement loads %s but want the buffer of the shared input %s:\n%s", buf.Name, x.Name, stmt)
			}
		}
	}
	var names []string
	for _, stmt := range fn.Body {
		names = append(names, stmt.(*tir.Block).Name)
	}
	if diff := cmp.Diff([]string{"Unary", "Unary", "Binary", "Binary"}, names); diff != "" {
		t.Errorf("blocks are not in post-order (-want +got):\n%s", diff)
	}
}

func TestRoleExclusivity(t *testing.T) {
	fusion, _ := sharedFusion(t)
	e := must[*lower.Engine](t)(lower.New(fusion))
	if _, err := e.Lower(); err != nil {
		t.Fatal(err)
	}
	count := map[tir.Role]int{}
	for _, buf := range e.Buffers() {
		count[buf.Role]++
	}
	if count[tir.Output] != 1 {
		t.Errorf("got %d output buffers but want 1", count[tir.Output])
	}
	if count[tir.Input] != 1 {
		t.Errorf("got %d input buffers but want 1", count[tir.Input])
	}
}

func TestDeterminism(t *testing.T) {
	fusion, _ := sharedFusion(t)
	first := must[*tir.PrimFunc](t)(lower.Fusion(fusion))
	second := must[*tir.PrimFunc](t)(lower.Fusion(fusion))
	if diff := cmp.Diff(first.String(), second.String()); diff != "" {
		t.Errorf("lowering is not deterministic (-first +second):\n%s", diff)
	}
}

func TestCustomStrategy(t *testing.T) {
	b := graph.NewBuilder()
	neg := must[*graph.Operation](t)(b.Unary(graph.Neg, b.Input("x", f32(2))))
	reg := lower.NewRegistry()
	reg.Register(graph.UnaryKind, func(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
		return &tir.Block{Name: "Custom", Body: &tir.Seq{}}, nil
	})
	fn := must[*tir.PrimFunc](t)(lower.Fusion(b.Fusion("neg", "cpu", neg), lower.WithRegistry(reg)))
	if got := fn.Body[0].(*tir.Block).Name; got != "Custom" {
		t.Errorf("got block %q but want the block of the custom strategy", got)
	}
	if diff := cmp.Diff([]graph.OpKind{graph.UnaryKind}, reg.Kinds()); diff != "" {
		t.Errorf("registered kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestBlockNames(t *testing.T) {
	want := map[graph.OpKind]string{
		graph.UnaryKind:  "Unary",
		graph.ReduceKind: "Reduce",
		graph.MatMulKind: "Matmul",
		graph.OneHotKind: "Onehot",
	}
	for kind, name := range want {
		if got := lower.BlockName(kind); got != name {
			t.Errorf("BlockName(%s) = %q but want %q", kind, got, name)
		}
	}
}

func TestAddressMappings(t *testing.T) {
	tests := []struct {
		desc  string
		build func(b *graph.Builder) (*graph.Operation, error)
		want  string
	}{
		{
			desc: "transpose",
			build: func(b *graph.Builder) (*graph.Operation, error) {
				return b.Transpose(b.Input("x", f32(2, 3)), []int{1, 0})
			},
			want: `
block Transpose {
	for i0 := range 3 { // loop_0
		for i1 := range 2 { // loop_1
			buffer_1[2*i0 + i1] = buffer_0[i0 + 3*i1]
		}
	}
}`,
		},
		{
			desc: "broadcast",
			build: func(b *graph.Builder) (*graph.Operation, error) {
				return b.Broadcast(b.Input("x", f32(3)), []int{2, 3}, []int{1})
			},
			want: `
block Broadcast {
	for i0 := range 2 { // loop_0
		for i1 := range 3 { // loop_1
			buffer_1[3*i0 + i1] = buffer_0[i1]
		}
	}
}`,
		},
		{
			desc: "slice",
			build: func(b *graph.Builder) (*graph.Operation, error) {
				return b.Slice(b.Input("x", f32(6)), []int{1}, []int{6}, []int{2})
			},
			want: `
block Slice {
	for i0 := range 3 { // loop_0
		buffer_1[i0] = buffer_0[2*i0 + 1]
	}
}`,
		},
		{
			desc: "onehot",
			build: func(b *graph.Builder) (*graph.Operation, error) {
				on, err := graph.ConstantOf(b, nil, []float32{1})
				if err != nil {
					return nil, err
				}
				off, err := graph.ConstantOf(b, nil, []float32{0})
				if err != nil {
					return nil, err
				}
				return b.OneHot(b.Input("x", graph.NewShape(dtype.Int32, 3)), on, off, 4, -1)
			},
			want: `
block Onehot {
	for i0 := range 3 { // loop_0
		for i1 := range 4 { // loop_1
			buffer_3[4*i0 + i1] = select(int64(buffer_0[i0]) == i1, buffer_1[0], buffer_2[0])
		}
	}
}`,
		},
		{
			desc: "reduce",
			build: func(b *graph.Builder) (*graph.Operation, error) {
				return b.Reduce(graph.ReduceSum, b.Input("x", f32(2, 3)), []int{1}, false)
			},
			want: `
block Reduce {
	for i0 := range 2 { // loop_0
		buffer_1[i0] = 0
	}
	for i0 := range 2 { // loop_0
		for i1 := range 3 { // loop_1
			buffer_1[i0] = buffer_1[i0] + buffer_0[3*i0 + i1]
		}
	}
}`,
		},
		{
			desc: "matmul",
			build: func(b *graph.Builder) (*graph.Operation, error) {
				return b.MatMul(b.Input("x", f32(2, 3)), b.Input("y", f32(3, 4)))
			},
			want: `
block Matmul {
	for i0 := range 2 { // loop_0
		for i1 := range 4 { // loop_1
			buffer_2[4*i0 + i1] = 0
			for k := range 3 { // loop_2
				buffer_2[4*i0 + i1] = buffer_2[4*i0 + i1] + buffer_0[3*i0 + k]*buffer_1[4*k + i1]
			}
		}
	}
}`,
		},
	}
	for _, test := range tests {
		b := graph.NewBuilder()
		op, err := test.build(b)
		if err != nil {
			t.Errorf("%s: %+v", test.desc, err)
			continue
		}
		fn, err := lower.Fusion(b.Fusion(test.desc, "cpu", op))
		if err != nil {
			t.Errorf("%s: %+v", test.desc, err)
			continue
		}
		want := strings.TrimSpace(test.want)
		if got := fn.Body[0].String(); got != want {
			t.Errorf("%s: got:\n%s\nwant:\n%s", test.desc, got, want)
		}
	}
}
