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
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/tir"
)

// elementwise lowers an operation computing every element of its result
// from the elements at the same position in its arguments.
// All the buffers share the same axis lengths such that the same loop variables
// address all of them.
func elementwise(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer, compute func(vals []tir.Expr) tir.Expr) (tir.Stmt, error) {
	for _, arg := range args {
		if err := checkSameDims(op, arg, result); err != nil {
			return nil, err
		}
	}
	nest := tir.NewLoopNest(result.Dims)
	vars := nest.Vars()
	vals := make([]tir.Expr, len(args))
	for i, arg := range args {
		vals[i] = arg.Load(arg.Index(vars))
	}
	store := &tir.Store{
		Buffer: result,
		Index:  result.Index(vars),
		Value:  compute(vals),
	}
	return block(op, nest.Fold(store)), nil
}

func lowerUnary(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	unary, err := operator[*graph.Unary](op)
	if err != nil {
		return nil, err
	}
	if err := checkArity(op, args, 1); err != nil {
		return nil, err
	}
	if err := checkSameDType(op, args[0], result); err != nil {
		return nil, err
	}
	return elementwise(op, args, result, func(vals []tir.Expr) tir.Expr {
		return &tir.Unary{Op: unary.Op, X: vals[0]}
	})
}

func lowerBinary(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	binary, err := operator[*graph.Binary](op)
	if err != nil {
		return nil, err
	}
	if err := checkArity(op, args, 2); err != nil {
		return nil, err
	}
	if err := checkSameDType(op, args[0], args[1]); err != nil {
		return nil, err
	}
	want := args[0].DType
	if binary.Op.IsComparison() {
		want = dtype.Bool
	}
	if result.DType != want {
		return nil, mismatchf(op, "%s: result buffer %s is %s but want %s", op.Op, result.Name, result.DType, want)
	}
	return elementwise(op, args, result, func(vals []tir.Expr) tir.Expr {
		return &tir.Binary{Op: binary.Op, X: vals[0], Y: vals[1]}
	})
}

func lowerSelect(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	if err := checkArity(op, args, 3); err != nil {
		return nil, err
	}
	if args[0].DType != dtype.Bool {
		return nil, mismatchf(op, "select condition %s is %s but want bool", args[0].Name, args[0].DType)
	}
	if err := checkSameDType(op, args[1], result); err != nil {
		return nil, err
	}
	if err := checkSameDType(op, args[2], result); err != nil {
		return nil, err
	}
	return elementwise(op, args, result, func(vals []tir.Expr) tir.Expr {
		return &tir.Select{Cond: vals[0], X: vals[1], Y: vals[2]}
	})
}

func lowerCast(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	if err := checkArity(op, args, 1); err != nil {
		return nil, err
	}
	return elementwise(op, args, result, func(vals []tir.Expr) tir.Expr {
		return &tir.Cast{Type: result.DType, X: vals[0]}
	})
}

func lowerIdentity(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	if err := checkArity(op, args, 1); err != nil {
		return nil, err
	}
	if err := checkSameDType(op, args[0], result); err != nil {
		return nil, err
	}
	return elementwise(op, args, result, func(vals []tir.Expr) tir.Expr {
		return vals[0]
	})
}
