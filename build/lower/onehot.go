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

// lowerOneHot iterates over the domain of the result. The loop variable of the
// one-hot axis is compared to the index read at the position of the other axes.
func lowerOneHot(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	oneHot, err := operator[*graph.OneHot](op)
	if err != nil {
		return nil, err
	}
	if err := checkArity(op, args, 3); err != nil {
		return nil, err
	}
	indices, on, off := args[0], args[1], args[2]
	if !graph.IsInteger(indices.DType) {
		return nil, mismatchf(op, "onehot indices %s are %s but want an integer type", indices.Name, indices.DType)
	}
	if on.Rank() != 0 || off.Rank() != 0 {
		return nil, mismatchf(op, "onehot values %s %v and %s %v are not scalars", on.Name, on.Dims, off.Name, off.Dims)
	}
	if err := checkSameDType(op, on, result); err != nil {
		return nil, err
	}
	if err := checkSameDType(op, off, result); err != nil {
		return nil, err
	}
	axis := oneHot.Axis
	if axis < 0 || axis > indices.Rank() {
		return nil, mismatchf(op, "onehot axis %d out of range of indices %s %v", axis, indices.Name, indices.Dims)
	}
	want := slices.Insert(slices.Clone(indices.Dims), axis, oneHot.Depth)
	if !slices.Equal(want, result.Dims) {
		return nil, mismatchf(op, "onehot of %s %v with depth %d requires axis lengths %v but result buffer %s has %v", indices.Name, indices.Dims, oneHot.Depth, want, result.Name, result.Dims)
	}
	nest := tir.NewLoopNest(result.Dims)
	vars := nest.Vars()
	var index tir.Expr = indices.Load(indices.Index(slices.Delete(slices.Clone(vars), axis, axis+1)))
	if indices.DType != tir.IndexType {
		index = &tir.Cast{Type: tir.IndexType, X: index}
	}
	return block(op, nest.Fold(&tir.Store{
		Buffer: result,
		Index:  result.Index(vars),
		Value: &tir.Select{
			Cond: &tir.Binary{Op: graph.Equal, X: index, Y: vars[axis]},
			X:    on.Load(tir.Int(0)),
			Y:    off.Load(tir.Int(0)),
		},
	})), nil
}
