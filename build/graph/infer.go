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

package graph

import (
	"slices"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/pkg/errors"
)

// IsFloat returns true if the data type is a floating point type.
func IsFloat(dt dtype.DataType) bool {
	switch dt {
	case dtype.Bfloat16, dtype.Float32, dtype.Float64:
		return true
	}
	return false
}

// Infer returns the type of the result of an operator given its arguments.
// Reshape and Broadcast cannot be inferred from their arguments only:
// their target axis lengths are carried by the type of the operation.
func Infer(op Operator, args ...Node) (*shape.Shape, error) {
	shapes := make([]*shape.Shape, len(args))
	for i, arg := range args {
		shapes[i] = arg.Shape()
	}
	switch opT := op.(type) {
	case *Unary:
		return inferUnary(opT, shapes)
	case *Binary:
		return inferBinary(opT, shapes)
	case *Select:
		return inferSelect(shapes)
	case *Cast:
		if err := checkArity(op, shapes, 1); err != nil {
			return nil, err
		}
		return NewShape(opT.DType, shapes[0].AxisLengths...), nil
	case *Identity:
		if err := checkArity(op, shapes, 1); err != nil {
			return nil, err
		}
		return cloneShape(shapes[0]), nil
	case *Reduce:
		return inferReduce(opT, shapes)
	case *Transpose:
		return inferTranspose(opT, shapes)
	case *Concat:
		return inferConcat(opT, shapes)
	case *Slice:
		return inferSlice(opT, shapes)
	case *MatMul:
		return inferMatMul(shapes)
	case *OneHot:
		return inferOneHot(opT, shapes)
	}
	return nil, errors.Errorf("cannot infer the type of %s from its arguments", op.String())
}

func checkArity(op Operator, shapes []*shape.Shape, n int) error {
	if len(shapes) != n {
		return errors.Errorf("%s requires %d argument(s) but got %d", op.String(), n, len(shapes))
	}
	return nil
}

// mergeDims returns the axis lengths of two operands that must have the same shape.
// An unknown axis length takes the length of the other operand.
func mergeDims(x, y []int) ([]int, bool) {
	if len(x) != len(y) {
		return nil, false
	}
	out := make([]int, len(x))
	for i := range x {
		switch {
		case x[i] < 0:
			out[i] = y[i]
		case y[i] < 0:
			out[i] = x[i]
		case x[i] != y[i]:
			return nil, false
		default:
			out[i] = x[i]
		}
	}
	return out, true
}

func inferUnary(op *Unary, shapes []*shape.Shape) (*shape.Shape, error) {
	if err := checkArity(op, shapes, 1); err != nil {
		return nil, err
	}
	x := shapes[0]
	switch {
	case op.Op == Not && x.DType != dtype.Bool:
		return nil, errors.Errorf("%s requires a bool operand but got %s", op.Op, x.DType)
	case op.Op != Not && x.DType == dtype.Bool:
		return nil, errors.Errorf("%s is not defined on %s", op.Op, x.DType)
	case op.Op.FloatOnly() && !IsFloat(x.DType):
		return nil, errors.Errorf("%s requires a floating point operand but got %s", op.Op, x.DType)
	}
	return cloneShape(x), nil
}

func inferBinary(op *Binary, shapes []*shape.Shape) (*shape.Shape, error) {
	if err := checkArity(op, shapes, 2); err != nil {
		return nil, err
	}
	x, y := shapes[0], shapes[1]
	if x.DType != y.DType {
		return nil, errors.Errorf("mismatched data types %s and %s for %s", x.DType, y.DType, op.Op)
	}
	dims, ok := mergeDims(x.AxisLengths, y.AxisLengths)
	if !ok {
		return nil, errors.Errorf("mismatched shapes %s and %s for %s: use an explicit broadcast", TypeString(x), TypeString(y), op.Op)
	}
	if op.Op.IsLogical() != (x.DType == dtype.Bool) {
		return nil, errors.Errorf("%s is not defined on %s", op.Op, x.DType)
	}
	dt := x.DType
	if op.Op.IsComparison() {
		dt = dtype.Bool
	}
	return NewShape(dt, dims...), nil
}

func inferSelect(shapes []*shape.Shape) (*shape.Shape, error) {
	if err := checkArity(&Select{}, shapes, 3); err != nil {
		return nil, err
	}
	cond, x, y := shapes[0], shapes[1], shapes[2]
	if cond.DType != dtype.Bool {
		return nil, errors.Errorf("select condition must be bool but got %s", cond.DType)
	}
	if x.DType != y.DType {
		return nil, errors.Errorf("select between mismatched data types %s and %s", x.DType, y.DType)
	}
	dims, ok := mergeDims(x.AxisLengths, y.AxisLengths)
	if ok {
		dims, ok = mergeDims(cond.AxisLengths, dims)
	}
	if !ok {
		return nil, errors.Errorf("select between mismatched shapes %s, %s and %s", TypeString(cond), TypeString(x), TypeString(y))
	}
	return NewShape(x.DType, dims...), nil
}

// NormalizeAxes checks a set of reduction axes and returns them sorted.
// An empty set of axes means all axes.
func NormalizeAxes(rank int, axes []int) ([]int, error) {
	if len(axes) == 0 {
		all := make([]int, rank)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	sorted := slices.Clone(axes)
	slices.Sort(sorted)
	for i, axis := range sorted {
		if axis < 0 || axis >= rank {
			return nil, errors.Errorf("axis %d out of range for rank %d", axis, rank)
		}
		if i > 0 && sorted[i-1] == axis {
			return nil, errors.Errorf("axis %d specified more than once", axis)
		}
	}
	return sorted, nil
}

// ReduceDims returns the axis lengths of the result of a reduction.
func ReduceDims(dims []int, axes []int, keepDims bool) []int {
	out := []int{}
	for i, dim := range dims {
		if !slices.Contains(axes, i) {
			out = append(out, dim)
			continue
		}
		if keepDims {
			out = append(out, 1)
		}
	}
	return out
}

func inferReduce(op *Reduce, shapes []*shape.Shape) (*shape.Shape, error) {
	if err := checkArity(op, shapes, 1); err != nil {
		return nil, err
	}
	x := shapes[0]
	if x.DType == dtype.Bool {
		return nil, errors.Errorf("cannot reduce %s values", x.DType)
	}
	axes, err := NormalizeAxes(len(x.AxisLengths), op.Axes)
	if err != nil {
		return nil, err
	}
	return NewShape(x.DType, ReduceDims(x.AxisLengths, axes, op.KeepDims)...), nil
}

func inferReshape(x *shape.Shape, dims []int) (*shape.Shape, error) {
	size := 1
	for _, dim := range dims {
		if dim < 0 {
			return nil, errors.Errorf("invalid reshape target %v", dims)
		}
		size *= dim
	}
	if IsFixed(x) && x.Size() != size {
		return nil, errors.Errorf("cannot reshape %s (%d elements) to %v (%d elements)", TypeString(x), x.Size(), dims, size)
	}
	return NewShape(x.DType, dims...), nil
}

// IsPermutation returns true if perm is a permutation of [0, rank).
func IsPermutation(perm []int, rank int) bool {
	if len(perm) != rank {
		return false
	}
	seen := make([]bool, rank)
	for _, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}

func inferTranspose(op *Transpose, shapes []*shape.Shape) (*shape.Shape, error) {
	if err := checkArity(op, shapes, 1); err != nil {
		return nil, err
	}
	x := shapes[0]
	if !IsPermutation(op.Perm, len(x.AxisLengths)) {
		return nil, errors.Errorf("%v is not a permutation of the axes of %s", op.Perm, TypeString(x))
	}
	dims := make([]int, len(op.Perm))
	for i, p := range op.Perm {
		dims[i] = x.AxisLengths[p]
	}
	return NewShape(x.DType, dims...), nil
}

func inferBroadcast(x *shape.Shape, target []int, dims []int) (*shape.Shape, error) {
	if len(dims) != len(x.AxisLengths) {
		return nil, errors.Errorf("broadcast of %s requires %d axis mapping(s) but got %d", TypeString(x), len(x.AxisLengths), len(dims))
	}
	seen := make(map[int]bool)
	for i, dim := range dims {
		if dim < 0 || dim >= len(target) || seen[dim] {
			return nil, errors.Errorf("invalid broadcast axis mapping %v to %v", dims, target)
		}
		seen[dim] = true
		xDim := x.AxisLengths[i]
		if xDim != 1 && xDim != target[dim] {
			return nil, errors.Errorf("cannot broadcast axis %d of %s to length %d", i, TypeString(x), target[dim])
		}
	}
	for _, dim := range target {
		if dim < 0 {
			return nil, errors.Errorf("invalid broadcast target %v", target)
		}
	}
	return NewShape(x.DType, target...), nil
}

func inferConcat(op *Concat, shapes []*shape.Shape) (*shape.Shape, error) {
	if len(shapes) == 0 {
		return nil, errors.Errorf("%s requires at least one argument", op.String())
	}
	first := shapes[0]
	rank := len(first.AxisLengths)
	if op.Axis < 0 || op.Axis >= rank {
		return nil, errors.Errorf("concat axis %d out of range for rank %d", op.Axis, rank)
	}
	dims := slices.Clone(first.AxisLengths)
	for i, sh := range shapes[1:] {
		if sh.DType != first.DType {
			return nil, errors.Errorf("concat item %d must be %s but got %s", i+1, first.DType, sh.DType)
		}
		if len(sh.AxisLengths) != rank {
			return nil, errors.Errorf("concat item %d has rank %d but want %d", i+1, len(sh.AxisLengths), rank)
		}
		for axis, dim := range sh.AxisLengths {
			if axis == op.Axis {
				if dims[axis] < 0 || dim < 0 {
					dims[axis] = UnknownDim
				} else {
					dims[axis] += dim
				}
				continue
			}
			if dims[axis] < 0 {
				dims[axis] = dim
				continue
			}
			if dim >= 0 && dim != dims[axis] {
				return nil, errors.Errorf("concat items %s and %s differ outside of axis %d", TypeString(first), TypeString(sh), op.Axis)
			}
		}
	}
	return NewShape(first.DType, dims...), nil
}

func inferSlice(op *Slice, shapes []*shape.Shape) (*shape.Shape, error) {
	if err := checkArity(op, shapes, 1); err != nil {
		return nil, err
	}
	x := shapes[0]
	rank := len(x.AxisLengths)
	if len(op.Begin) != rank || len(op.End) != rank || len(op.Strides) != rank {
		return nil, errors.Errorf("%s requires begin, end and strides of length %d", op.String(), rank)
	}
	dims := make([]int, rank)
	for i := range rank {
		begin, end, stride := op.Begin[i], op.End[i], op.Strides[i]
		if begin < 0 || end < begin || stride < 1 {
			return nil, errors.Errorf("invalid slice [%d:%d:%d] on axis %d", begin, end, stride, i)
		}
		if dim := x.AxisLengths[i]; dim >= 0 && end > dim {
			return nil, errors.Errorf("slice end %d out of range on axis %d of %s", end, i, TypeString(x))
		}
		dims[i] = (end - begin + stride - 1) / stride
	}
	return NewShape(x.DType, dims...), nil
}

func inferMatMul(shapes []*shape.Shape) (*shape.Shape, error) {
	if err := checkArity(&MatMul{}, shapes, 2); err != nil {
		return nil, err
	}
	x, y := shapes[0], shapes[1]
	if x.DType != y.DType {
		return nil, errors.Errorf("matmul between mismatched data types %s and %s", x.DType, y.DType)
	}
	if x.DType == dtype.Bool {
		return nil, errors.Errorf("matmul is not defined on %s", x.DType)
	}
	rank := len(x.AxisLengths)
	if rank < 2 || len(y.AxisLengths) != rank {
		return nil, errors.Errorf("matmul requires two operands of the same rank >= 2 but got %s and %s", TypeString(x), TypeString(y))
	}
	batch, ok := mergeDims(x.AxisLengths[:rank-2], y.AxisLengths[:rank-2])
	if !ok {
		return nil, errors.Errorf("matmul batch axes mismatch: %s and %s", TypeString(x), TypeString(y))
	}
	if _, ok := mergeDims(x.AxisLengths[rank-1:], y.AxisLengths[rank-2:rank-1]); !ok {
		return nil, errors.Errorf("matmul contracting axes mismatch: %s and %s", TypeString(x), TypeString(y))
	}
	dims := append(batch, x.AxisLengths[rank-2], y.AxisLengths[rank-1])
	return NewShape(x.DType, dims...), nil
}

// IsInteger returns true if the data type is a signed or unsigned integer type.
func IsInteger(dt dtype.DataType) bool {
	switch dt {
	case dtype.Int32, dtype.Int64, dtype.Uint32, dtype.Uint64:
		return true
	}
	return false
}

func inferOneHot(op *OneHot, shapes []*shape.Shape) (*shape.Shape, error) {
	if err := checkArity(op, shapes, 3); err != nil {
		return nil, err
	}
	indices, on, off := shapes[0], shapes[1], shapes[2]
	if !IsInteger(indices.DType) {
		return nil, errors.Errorf("onehot indices must be integers but got %s", indices.DType)
	}
	if len(on.AxisLengths) != 0 || len(off.AxisLengths) != 0 {
		return nil, errors.Errorf("onehot values must be scalars but got %s and %s", TypeString(on), TypeString(off))
	}
	if on.DType != off.DType {
		return nil, errors.Errorf("onehot between mismatched data types %s and %s", on.DType, off.DType)
	}
	if op.Depth < 0 {
		return nil, errors.Errorf("invalid onehot depth %d", op.Depth)
	}
	rank := len(indices.AxisLengths)
	if op.Axis < 0 || op.Axis > rank {
		return nil, errors.Errorf("onehot axis %d out of range for rank %d", op.Axis, rank)
	}
	return NewShape(on.DType, slices.Insert(slices.Clone(indices.AxisLengths), op.Axis, op.Depth)...), nil
}
