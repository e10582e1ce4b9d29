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
	"math"
	"slices"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/tir"
)

// literal returns a constant of a given data type.
func literal(dt dtype.DataType, v float64) tir.Expr {
	if graph.IsFloat(dt) {
		return &tir.FloatImm{Value: v, Type: dt}
	}
	return &tir.IntImm{Value: int64(v), Type: dt}
}

// reduceInit returns the identity element of a reduction.
// Unsigned values are stored as their two's complement bit pattern.
func reduceInit(op graph.ReduceOp, dt dtype.DataType) (tir.Expr, bool) {
	switch op {
	case graph.ReduceSum, graph.ReduceMean:
		return literal(dt, 0), true
	case graph.ReduceProd:
		return literal(dt, 1), true
	case graph.ReduceMin:
		switch dt {
		case dtype.Int32:
			return &tir.IntImm{Value: math.MaxInt32, Type: dt}, true
		case dtype.Int64:
			return &tir.IntImm{Value: math.MaxInt64, Type: dt}, true
		case dtype.Uint32:
			return &tir.IntImm{Value: math.MaxUint32, Type: dt}, true
		case dtype.Uint64:
			return &tir.IntImm{Value: -1, Type: dt}, true
		}
		if graph.IsFloat(dt) {
			return literal(dt, math.Inf(1)), true
		}
	case graph.ReduceMax:
		switch dt {
		case dtype.Int32:
			return &tir.IntImm{Value: math.MinInt32, Type: dt}, true
		case dtype.Int64:
			return &tir.IntImm{Value: math.MinInt64, Type: dt}, true
		case dtype.Uint32, dtype.Uint64:
			return &tir.IntImm{Value: 0, Type: dt}, true
		}
		if graph.IsFloat(dt) {
			return literal(dt, math.Inf(-1)), true
		}
	}
	return nil, false
}

// lowerReduce lowers a reduction in up to three loop nests:
// the result is initialized with the identity of the reduction,
// then every element of the input is accumulated into the result
// and, for a mean, the result is divided by the number of reduced elements.
func lowerReduce(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	reduce, err := operator[*graph.Reduce](op)
	if err != nil {
		return nil, err
	}
	if err := checkArity(op, args, 1); err != nil {
		return nil, err
	}
	in := args[0]
	if err := checkSameDType(op, in, result); err != nil {
		return nil, err
	}
	axes, err := graph.NormalizeAxes(in.Rank(), reduce.Axes)
	if err != nil {
		return nil, mismatchf(op, "%v", err)
	}
	if want := graph.ReduceDims(in.Dims, axes, reduce.KeepDims); !slices.Equal(want, result.Dims) {
		return nil, mismatchf(op, "reduction of %v along %v has axis lengths %v but result buffer %s has %v", in.Dims, axes, want, result.Name, result.Dims)
	}
	init, ok := reduceInit(reduce.Op, result.DType)
	if !ok {
		return nil, mismatchf(op, "reduction %s not supported on %s", reduce.Op, result.DType)
	}

	// Initialize the result.
	outNest := tir.NewLoopNest(result.Dims)
	stmts := []tir.Stmt{outNest.Fold(&tir.Store{
		Buffer: result,
		Index:  result.Index(outNest.Vars()),
		Value:  init,
	})}

	// Accumulate over the input domain. Reduced axes do not contribute to the address in the result.
	inNest := tir.NewLoopNest(in.Dims)
	inVars := inNest.Vars()
	var outStrides []int
	var outVars []tir.Expr
	count := 1
	j := 0
	for i, v := range inVars {
		if slices.Contains(axes, i) {
			count *= in.Dims[i]
			if reduce.KeepDims {
				j++
			}
			continue
		}
		outStrides = append(outStrides, result.Strides[j])
		outVars = append(outVars, v)
		j++
	}
	outIndex := tir.LinearIndex(outStrides, outVars)
	stmts = append(stmts, inNest.Fold(&tir.Store{
		Buffer: result,
		Index:  outIndex,
		Value: &tir.Binary{
			Op: reduce.Op.Combiner(),
			X:  result.Load(outIndex),
			Y:  in.Load(in.Index(inVars)),
		},
	}))

	if reduce.Op == graph.ReduceMean && count > 0 {
		index := result.Index(outNest.Vars())
		stmts = append(stmts, outNest.Fold(&tir.Store{
			Buffer: result,
			Index:  index,
			Value: &tir.Binary{
				Op: graph.Div,
				X:  result.Load(index),
				Y:  literal(result.DType, float64(count)),
			},
		}))
	}
	return block(op, &tir.Seq{Stmts: stmts}), nil
}
