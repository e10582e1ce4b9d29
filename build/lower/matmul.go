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
	"fmt"
	"slices"

	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/tir"
)

// lowerMatMul lowers a batched matrix product [..., M, K] x [..., K, N] -> [..., M, N].
// Every element of the result is initialized to zero and then accumulated
// by an inner loop over the contracting axis.
func lowerMatMul(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error) {
	if err := checkArity(op, args, 2); err != nil {
		return nil, err
	}
	x, y := args[0], args[1]
	if err := checkSameDType(op, x, y); err != nil {
		return nil, err
	}
	if err := checkSameDType(op, x, result); err != nil {
		return nil, err
	}
	rank := x.Rank()
	if rank < 2 || y.Rank() != rank || result.Rank() != rank {
		return nil, mismatchf(op, "matmul requires buffers of the same rank >= 2 but got %v, %v and %v", x.Dims, y.Dims, result.Dims)
	}
	batch := rank - 2
	m, k, n := x.Dims[batch], x.Dims[batch+1], y.Dims[batch+1]
	want := append(slices.Clone(x.Dims[:batch]), m, n)
	if !slices.Equal(x.Dims[:batch], y.Dims[:batch]) || y.Dims[batch] != k || !slices.Equal(want, result.Dims) {
		return nil, mismatchf(op, "cannot multiply %s %v by %s %v into %s %v", x.Name, x.Dims, y.Name, y.Dims, result.Name, result.Dims)
	}

	nest := tir.NewLoopNest(result.Dims)
	vars := nest.Vars()
	kVar := &tir.Var{Name: "k"}
	xVars := append(slices.Clone(vars[:batch+1]), kVar)
	yVars := append(slices.Clone(vars[:batch]), kVar, vars[batch+1])
	outIndex := result.Index(vars)
	accumulate := &tir.For{
		Var:    kVar,
		Extent: k,
		Mode:   tir.Serial,
		Label:  fmt.Sprintf("loop_%d", rank),
		Body: &tir.Store{
			Buffer: result,
			Index:  outIndex,
			Value: &tir.Binary{
				Op: graph.Add,
				X:  result.Load(outIndex),
				Y: &tir.Binary{
					Op: graph.Mul,
					X:  x.Load(x.Index(xVars)),
					Y:  y.Load(y.Index(yVars)),
				},
			},
		},
	}
	body := &tir.Seq{Stmts: []tir.Stmt{
		&tir.Store{Buffer: result, Index: outIndex, Value: literal(result.DType, 0)},
		accumulate,
	}}
	return block(op, nest.Fold(body)), nil
}
