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

package lower

import (
	"slices"

	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/tir"
)

// Data movement strategies iterate over the domain of the result
// and compute, for each of its elements, the address of the element to read
// in the argument.

// copyFrom returns a loop nest over the domain of the result
// reading the argument at the address computed by index.
func copyFrom(op *graph.Operation, arg, result *tir.Buffer, index func(vars []tir.Expr) tir.Expr) tir.Stmt {
	nest := tir.NewLoopNest(result.Dims)
	vars := nest.Vars()
	return block(op, nest.Fold(&tir.Store{
		Buffer: result,
		Index:  result.Index(vars),
		Value:  arg.Load(index(vars)),
	}))
}

func checkMovement(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) error {
	if err := checkArity(op, args, 1); err != nil {
		return err
	}
	return checkSameDType(op, args[0], result)
}

// lowerReshape copies the elements in order: both buffers are contiguous in row-major order,
// so the address of an element in the result is also its address in the argument.
func lowerReshape(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	if err := checkMovement(op, args, result); err != nil {
		return nil, err
	}
	in := args[0]
	if in.Size() != result.Size() {
		return nil, mismatchf(op, "cannot reshape %s %v (%d elements) into %s %v (%d elements)", in.Name, in.Dims, in.Size(), result.Name, result.Dims, result.Size())
	}
	return copyFrom(op, in, result, result.Index), nil
}

func lowerTranspose(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	transpose, err := operator[*graph.Transpose](op)
	if err != nil {
		return nil, err
	}
	if err := checkMovement(op, args, result); err != nil {
		return nil, err
	}
	in := args[0]
	if !graph.IsPermutation(transpose.Perm, in.Rank()) {
		return nil, mismatchf(op, "%v is not a permutation of the axes of %s %v", transpose.Perm, in.Name, in.Dims)
	}
	strides := make([]int, len(transpose.Perm))
	for i, p := range transpose.Perm {
		if result.Dims[i] != in.Dims[p] {
			return nil, mismatchf(op, "axis %d of result buffer %s has length %d but want %d", i, result.Name, result.Dims[i], in.Dims[p])
		}
		strides[i] = in.Strides[p]
	}
	return copyFrom(op, in, result, func(vars []tir.Expr) tir.Expr {
		return tir.LinearIndex(strides, vars)
	}), nil
}

// lowerBroadcast reads the argument with a stride of 0 along all the axes it is repeated on.
func lowerBroadcast(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	broadcast, err := operator[*graph.Broadcast](op)
	if err != nil {
		return nil, err
	}
	if err := checkMovement(op, args, result); err != nil {
		return nil, err
	}
	in := args[0]
	if len(broadcast.Dims) != in.Rank() {
		return nil, mismatchf(op, "broadcast of %s %v requires %d axis mapping(s) but got %v", in.Name, in.Dims, in.Rank(), broadcast.Dims)
	}
	strides := make([]int, result.Rank())
	for i, axis := range broadcast.Dims {
		if axis < 0 || axis >= result.Rank() {
			return nil, mismatchf(op, "axis %d of %s mapped to axis %d out of range of result buffer %s %v", i, in.Name, axis, result.Name, result.Dims)
		}
		switch in.Dims[i] {
		case 1:
		case result.Dims[axis]:
			strides[axis] = in.Strides[i]
		default:
			return nil, mismatchf(op, "cannot broadcast axis %d of %s %v to length %d", i, in.Name, in.Dims, result.Dims[axis])
		}
	}
	return copyFrom(op, in, result, func(vars []tir.Expr) tir.Expr {
		return tir.LinearIndex(strides, vars)
	}), nil
}

func lowerSlice(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	slice, err := operator[*graph.Slice](op)
	if err != nil {
		return nil, err
	}
	if err := checkMovement(op, args, result); err != nil {
		return nil, err
	}
	in := args[0]
	rank := in.Rank()
	if len(slice.Begin) != rank || len(slice.End) != rank || len(slice.Strides) != rank || result.Rank() != rank {
		return nil, mismatchf(op, "%s cannot slice %s %v into %s %v", op.Op, in.Name, in.Dims, result.Name, result.Dims)
	}
	for i := range rank {
		begin, end, stride := slice.Begin[i], slice.End[i], slice.Strides[i]
		if begin < 0 || end < begin || end > in.Dims[i] || stride < 1 || result.Dims[i] != (end-begin+stride-1)/stride {
			return nil, mismatchf(op, "%s cannot slice axis %d of %s %v into an axis of length %d", op.Op, i, in.Name, in.Dims, result.Dims[i])
		}
	}
	return copyFrom(op, in, result, func(vars []tir.Expr) tir.Expr {
		inVars := make([]tir.Expr, rank)
		for i, v := range vars {
			var index tir.Expr = v
			if stride := slice.Strides[i]; stride != 1 {
				index = tir.Mul(tir.Int(stride), index)
			}
			if begin := slice.Begin[i]; begin != 0 {
				index = tir.Add(index, tir.Int(begin))
			}
			inVars[i] = index
		}
		return in.Index(inVars)
	}), nil
}

// lowerConcat copies every argument into the result, one loop nest per argument.
// Argument k is written at an offset along the concatenation axis equal to
// the sum of the lengths of the arguments before it.
func lowerConcat(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	concat, err := operator[*graph.Concat](op)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, mismatchf(op, "concat requires at least one argument")
	}
	axis := concat.Axis
	if axis < 0 || axis >= result.Rank() {
		return nil, mismatchf(op, "concat axis %d out of range of result buffer %s %v", axis, result.Name, result.Dims)
	}
	var stmts []tir.Stmt
	offset := 0
	for _, arg := range args {
		if err := checkSameDType(op, arg, result); err != nil {
			return nil, err
		}
		if arg.Rank() != result.Rank() {
			return nil, mismatchf(op, "cannot concatenate %s %v into %s %v", arg.Name, arg.Dims, result.Name, result.Dims)
		}
		want := slices.Clone(result.Dims)
		want[axis] = arg.Dims[axis]
		if !slices.Equal(want, arg.Dims) {
			return nil, mismatchf(op, "cannot concatenate %s %v into %s %v along axis %d", arg.Name, arg.Dims, result.Name, result.Dims, axis)
		}
		nest := tir.NewLoopNest(arg.Dims)
		vars := nest.Vars()
		outVars := slices.Clone(vars)
		if offset > 0 {
			outVars[axis] = tir.Add(vars[axis], tir.Int(offset))
		}
		stmts = append(stmts, nest.Fold(&tir.Store{
			Buffer: result,
			Index:  result.Index(outVars),
			Value:  arg.Load(arg.Index(vars)),
		}))
		offset += arg.Dims[axis]
	}
	if offset != result.Dims[axis] {
		return nil, mismatchf(op, "concatenation along axis %d has length %d but result buffer %s has length %d", axis, offset, result.Name, result.Dims[axis])
	}
	return block(op, &tir.Seq{Stmts: stmts}), nil
}
