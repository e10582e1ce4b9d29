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

// Package lower converts a fusion of the expression graph into a primitive function
// of the loop IR.
//
// An Engine lowers a single fusion. It visits the body of the fusion depth-first,
// arguments first, allocating one buffer per node and dispatching every operation
// to the strategy registered for its operator kind. The statements produced by the
// strategies are returned in post-order, such that every operation is computed after
// its arguments.
//
// An engine owns all its state: several engines can lower different fusions concurrently.
package lower

import (
	"fmt"
	"log/slog"

	"github.com/gx-org/fuse/build/fmterr"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/tir"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Engine lowers a fusion into a primitive function.
type Engine struct {
	fusion   *graph.Fusion
	registry *Registry
	logger   *slog.Logger

	buffers *table
	lowered map[graph.NodeID]bool
	done    bool
}

// New returns a new engine to lower a fusion.
func New(fusion *graph.Fusion, options ...Option) (*Engine, error) {
	e := &Engine{
		fusion:  fusion,
		buffers: newTable(),
		lowered: make(map[graph.NodeID]bool),
	}
	if err := e.processOptions(options); err != nil {
		return nil, err
	}
	if e.registry == nil {
		e.registry = DefaultRegistry()
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e, nil
}

// Fusion lowers a fusion with a new engine.
func Fusion(fusion *graph.Fusion, options ...Option) (*tir.PrimFunc, error) {
	e, err := New(fusion, options...)
	if err != nil {
		return nil, err
	}
	return e.Lower()
}

// Buffers returns the buffers allocated so far, in allocation order.
// Buffers stay allocated if the lowering fails.
func (e *Engine) Buffers() []*tir.Buffer {
	return e.buffers.Buffers()
}

// Lower the fusion and returns the assembled primitive function.
// No function is returned if any operation fails to lower.
func (e *Engine) Lower() (*tir.PrimFunc, error) {
	if e.done {
		return nil, errors.Errorf("fusion %s has already been lowered by this engine", e.fusion.Name)
	}
	e.done = true
	body, err := e.checkBody()
	if err != nil {
		return nil, err
	}
	stmts, err := e.visit(body)
	if err != nil {
		return nil, err
	}
	return e.assemble(stmts), nil
}

// checkBody checks the contract of the fusion before any buffer is allocated.
func (e *Engine) checkBody() (*graph.Operation, error) {
	if e.fusion.Body == nil {
		return nil, fmterr.Errorf(e.fusion.Name, nil, fmterr.UnsupportedNodeKind, "fusion has no output node")
	}
	body, ok := e.fusion.Body.(*graph.Operation)
	if !ok {
		return nil, fmterr.Errorf(e.fusion.Name, e.fusion.Body, fmterr.UnsupportedNodeKind, "output node of type %T is not an operation", e.fusion.Body)
	}
	if err := e.checkShape(body); err != nil {
		return nil, err
	}
	return body, nil
}

func (e *Engine) checkShape(node graph.Node) error {
	sh := node.Shape()
	if sh == nil {
		return fmterr.Errorf(e.fusion.Name, node, fmterr.UnresolvedShape, "node has no type")
	}
	if !graph.IsFixed(sh) {
		return fmterr.Errorf(e.fusion.Name, node, fmterr.UnresolvedShape, "type %s has unknown axis lengths", graph.TypeString(sh))
	}
	return nil
}

// allocate returns the buffer of a node, creating it on the first call for that node.
func (e *Engine) allocate(node graph.Node) (*tir.Buffer, error) {
	buf, found, err := e.buffers.Load(node)
	if err != nil {
		return nil, fmterr.Label(e.fusion.Name, node, fmterr.InternalKind, err)
	}
	if found {
		return buf, nil
	}
	var role tir.Role
	var data []byte
	switch nodeT := node.(type) {
	case *graph.Operation:
		role = tir.Intermediate
		if nodeT.ID() == e.fusion.Body.ID() {
			role = tir.Output
		}
	case *graph.Input:
		role = tir.Input
	case *graph.Constant:
		role = tir.ConstantData
		data = nodeT.Data
	default:
		return nil, fmterr.Errorf(e.fusion.Name, node, fmterr.UnsupportedNodeKind, "cannot allocate a buffer for a node of type %T", node)
	}
	if err := e.checkShape(node); err != nil {
		return nil, err
	}
	sh := node.Shape()
	buf = tir.NewBuffer(fmt.Sprintf("buffer_%d", e.buffers.Size()), sh.DType, role, sh.AxisLengths, data)
	e.buffers.Store(node, buf)
	e.logger.Debug("buffer allocated", "fusion", e.fusion.Name, "node", node.String(), "buffer", buf.Name, "role", role.String())
	return buf, nil
}

// visit lowers an operation after its arguments.
// Every operation is lowered only once.
func (e *Engine) visit(op *graph.Operation) ([]tir.Stmt, error) {
	if e.lowered[op.ID()] {
		return nil, nil
	}
	e.lowered[op.ID()] = true
	var stmts []tir.Stmt
	for _, arg := range op.Args {
		argOp, ok := arg.(*graph.Operation)
		if !ok {
			continue
		}
		argStmts, err := e.visit(argOp)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, argStmts...)
	}
	args := make([]*tir.Buffer, len(op.Args))
	for i, arg := range op.Args {
		var err error
		if args[i], err = e.allocate(arg); err != nil {
			return nil, err
		}
	}
	result, err := e.allocate(op)
	if err != nil {
		return nil, err
	}
	kind := op.Op.Kind()
	strategy, ok := e.registry.Lookup(kind)
	if !ok {
		return nil, fmterr.Errorf(e.fusion.Name, op, fmterr.UnsupportedOperator, "no lowering strategy for operator kind %s", kind)
	}
	stmt, err := strategy(op, args, result)
	if err != nil {
		return nil, e.label(op, err)
	}
	e.logger.Debug("operation lowered", "fusion", e.fusion.Name, "node", op.String(), "result", result.Name)
	return append(stmts, stmt), nil
}

// label completes the label of an error returned by a strategy.
func (e *Engine) label(op *graph.Operation, err error) error {
	var lerr *fmterr.Error
	if !errors.As(err, &lerr) {
		return fmterr.Label(e.fusion.Name, op, fmterr.InternalKind, fmterr.Internal(err))
	}
	if lerr.Fusion == "" {
		lerr.Fusion = e.fusion.Name
	}
	return lerr
}

// assemble builds the function: inputs then outputs as parameters,
// all the other buffers allocated in the scope of the function.
func (e *Engine) assemble(stmts []tir.Stmt) *tir.PrimFunc {
	buffers := e.buffers.Buffers()
	byRole := func(role tir.Role) []*tir.Buffer {
		return lo.Filter(buffers, func(buf *tir.Buffer, _ int) bool { return buf.Role == role })
	}
	return &tir.PrimFunc{
		Name:       e.fusion.Name,
		ModuleKind: e.fusion.ModuleKind,
		Params:     append(byRole(tir.Input), byRole(tir.Output)...),
		Allocs:     lo.Reject(buffers, func(buf *tir.Buffer, _ int) bool { return buf.Role.IsParam() }),
		Body:       stmts,
	}
}
