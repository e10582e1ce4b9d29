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

// Package graph is the typed expression graph consumed by the fusion lowering.
//
// A graph is an immutable DAG of input placeholders, embedded constants and
// operations. Every node carries its inferred type as a backend shape
// (element data type and axis lengths). Nodes are created by a Builder which
// assigns each of them a stable integer identifier. Two nodes are the same
// entity if and only if they have the same identifier.
package graph

import (
	"fmt"
	"strings"

	"github.com/gx-org/backend/shape"
)

// UnknownDim is the length of an axis that has not been resolved by type inference.
const UnknownDim = -1

// NodeID identifies a node in the graph.
// Identifiers are assigned in creation order by a builder.
type NodeID int

type (
	// Node in the expression graph.
	Node interface {
		// ID returns the identifier of the node.
		ID() NodeID
		// Shape returns the inferred type of the node.
		Shape() *shape.Shape
		// String returns a short description of the node.
		String() string

		node()
	}

	// Input is an external parameter.
	Input struct {
		id    NodeID
		Name  string
		shape *shape.Shape
	}

	// Constant is a tensor value embedded in the graph.
	Constant struct {
		id    NodeID
		shape *shape.Shape
		// Data is the raw little endian content of the tensor, in row-major order.
		Data []byte
	}

	// Operation applies an operator to a list of arguments.
	Operation struct {
		id    NodeID
		shape *shape.Shape
		Op    Operator
		Args  []Node
	}

	// Fusion is a sub-graph compiled as a single unit.
	Fusion struct {
		// Name of the fusion. Used to name the compiled function.
		Name string
		// ModuleKind is the kind of module (that is the target) the fusion is compiled for.
		ModuleKind string
		// Body is the designated output node of the fusion.
		Body Node
	}
)

var (
	_ Node = (*Input)(nil)
	_ Node = (*Constant)(nil)
	_ Node = (*Operation)(nil)
)

func (*Input) node() {}

// ID of the node.
func (n *Input) ID() NodeID { return n.id }

// Shape of the input.
func (n *Input) Shape() *shape.Shape { return n.shape }

func (n *Input) String() string {
	return fmt.Sprintf("#%d:input(%s)", n.id, n.Name)
}

func (*Constant) node() {}

// ID of the node.
func (n *Constant) ID() NodeID { return n.id }

// Shape of the constant.
func (n *Constant) Shape() *shape.Shape { return n.shape }

func (n *Constant) String() string {
	return fmt.Sprintf("#%d:const", n.id)
}

func (*Operation) node() {}

// ID of the node.
func (n *Operation) ID() NodeID { return n.id }

// Shape of the result of the operation.
func (n *Operation) Shape() *shape.Shape { return n.shape }

func (n *Operation) String() string {
	return fmt.Sprintf("#%d:%s", n.id, n.Op.String())
}

// Operations returns all the operations reachable from the body of the fusion,
// arguments first.
func (f *Fusion) Operations() []*Operation {
	var ops []*Operation
	seen := make(map[NodeID]bool)
	var walk func(Node)
	walk = func(n Node) {
		if seen[n.ID()] {
			return
		}
		seen[n.ID()] = true
		op, ok := n.(*Operation)
		if !ok {
			return
		}
		for _, arg := range op.Args {
			walk(arg)
		}
		ops = append(ops, op)
	}
	walk(f.Body)
	return ops
}

func (f *Fusion) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fusion %s (%s) {\n", f.Name, f.ModuleKind)
	for _, op := range f.Operations() {
		args := make([]string, len(op.Args))
		for i, arg := range op.Args {
			args[i] = arg.String()
		}
		fmt.Fprintf(&b, "\t%s %s = %s(%s)\n", op.String(), TypeString(op.Shape()), op.Op.String(), strings.Join(args, ", "))
	}
	fmt.Fprintf(&b, "\treturn %s\n}", f.Body.String())
	return b.String()
}

// IsFixed returns true if all the axis lengths of a shape are known.
func IsFixed(sh *shape.Shape) bool {
	if sh == nil {
		return false
	}
	for _, dim := range sh.AxisLengths {
		if dim < 0 {
			return false
		}
	}
	return true
}

// TypeString returns a compact representation of a type, for example float32[2,?].
func TypeString(sh *shape.Shape) string {
	if sh == nil {
		return "<nil>"
	}
	dims := make([]string, len(sh.AxisLengths))
	for i, dim := range sh.AxisLengths {
		if dim < 0 {
			dims[i] = "?"
			continue
		}
		dims[i] = fmt.Sprint(dim)
	}
	return fmt.Sprintf("%s[%s]", sh.DType.String(), strings.Join(dims, ","))
}
