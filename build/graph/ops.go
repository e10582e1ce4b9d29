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
	"fmt"

	"github.com/gx-org/backend/dtype"
)

// OpKind is the family of an operator.
// Lowering strategies are registered per kind.
type OpKind int

// Operator kinds.
const (
	InvalidKind OpKind = iota
	UnaryKind
	BinaryKind
	SelectKind
	CastKind
	IdentityKind
	ReduceKind
	ReshapeKind
	TransposeKind
	BroadcastKind
	ConcatKind
	SliceKind
	MatMulKind
	OneHotKind
)

var opKindNames = map[OpKind]string{
	InvalidKind:   "invalid",
	UnaryKind:     "unary",
	BinaryKind:    "binary",
	SelectKind:    "select",
	CastKind:      "cast",
	IdentityKind:  "identity",
	ReduceKind:    "reduce",
	ReshapeKind:   "reshape",
	TransposeKind: "transpose",
	BroadcastKind: "broadcast",
	ConcatKind:    "concat",
	SliceKind:     "slice",
	MatMulKind:    "matmul",
	OneHotKind:    "onehot",
}

func (k OpKind) String() string {
	name, ok := opKindNames[k]
	if !ok {
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
	return name
}

// UnaryOp selects the scalar function applied by a unary operator.
type UnaryOp int

// Unary operations.
const (
	Neg UnaryOp = iota
	Abs
	Exp
	Log
	Sqrt
	Rsqrt
	Square
	Sin
	Cos
	Tanh
	Sigmoid
	Floor
	Ceil
	Round
	Sign
	Not
)

var unaryNames = []string{
	Neg:     "neg",
	Abs:     "abs",
	Exp:     "exp",
	Log:     "log",
	Sqrt:    "sqrt",
	Rsqrt:   "rsqrt",
	Square:  "square",
	Sin:     "sin",
	Cos:     "cos",
	Tanh:    "tanh",
	Sigmoid: "sigmoid",
	Floor:   "floor",
	Ceil:    "ceil",
	Round:   "round",
	Sign:    "sign",
	Not:     "not",
}

func (op UnaryOp) String() string {
	if op < 0 || int(op) >= len(unaryNames) {
		return fmt.Sprintf("UnaryOp(%d)", int(op))
	}
	return unaryNames[op]
}

// FloatOnly returns true if the operation is only defined on floating point values.
func (op UnaryOp) FloatOnly() bool {
	switch op {
	case Exp, Log, Sqrt, Rsqrt, Sin, Cos, Tanh, Sigmoid, Floor, Ceil, Round:
		return true
	}
	return false
}

// BinaryOp selects the scalar function applied by a binary operator.
type BinaryOp int

// Binary operations.
const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	Pow
	Min
	Max
	And
	Or
	Equal
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
)

var binaryNames = []string{
	Add:          "add",
	Sub:          "sub",
	Mul:          "mul",
	Div:          "div",
	Mod:          "mod",
	Pow:          "pow",
	Min:          "min",
	Max:          "max",
	And:          "and",
	Or:           "or",
	Equal:        "eq",
	NotEqual:     "ne",
	Less:         "lt",
	LessEqual:    "le",
	Greater:      "gt",
	GreaterEqual: "ge",
}

func (op BinaryOp) String() string {
	if op < 0 || int(op) >= len(binaryNames) {
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
	return binaryNames[op]
}

// IsComparison returns true if the operation returns a boolean.
func (op BinaryOp) IsComparison() bool {
	return op >= Equal && op <= GreaterEqual
}

// IsLogical returns true if the operation only applies to booleans.
func (op BinaryOp) IsLogical() bool {
	return op == And || op == Or
}

// ReduceOp selects how values are combined by a reduction.
type ReduceOp int

// Reduce operations.
const (
	ReduceSum ReduceOp = iota
	ReduceProd
	ReduceMin
	ReduceMax
	ReduceMean
)

var reduceNames = []string{
	ReduceSum:  "sum",
	ReduceProd: "prod",
	ReduceMin:  "min",
	ReduceMax:  "max",
	ReduceMean: "mean",
}

func (op ReduceOp) String() string {
	if op < 0 || int(op) >= len(reduceNames) {
		return fmt.Sprintf("ReduceOp(%d)", int(op))
	}
	return reduceNames[op]
}

// Combiner returns the binary operation used to accumulate values.
func (op ReduceOp) Combiner() BinaryOp {
	switch op {
	case ReduceProd:
		return Mul
	case ReduceMin:
		return Min
	case ReduceMax:
		return Max
	}
	return Add
}

type (
	// Operator is the target of an operation node.
	Operator interface {
		// Kind returns the family of the operator.
		Kind() OpKind
		String() string
	}

	// Unary applies a scalar function to every element.
	Unary struct {
		Op UnaryOp
	}

	// Binary applies a scalar function to pairs of elements of two operands of the same shape.
	Binary struct {
		Op BinaryOp
	}

	// Select picks elements from the second or third operand given a boolean condition.
	Select struct{}

	// Cast converts every element to another data type.
	Cast struct {
		DType dtype.DataType
	}

	// Identity copies its operand.
	Identity struct{}

	// Reduce combines elements along a set of axes.
	Reduce struct {
		Op       ReduceOp
		Axes     []int
		KeepDims bool
	}

	// Reshape changes the axis lengths without changing the elements order.
	Reshape struct{}

	// Transpose permutes the axes. Axis i of the result is axis Perm[i] of the operand.
	Transpose struct {
		Perm []int
	}

	// Broadcast maps axis i of the operand to axis Dims[i] of the result
	// and repeats values along all the other axes.
	Broadcast struct {
		Dims []int
	}

	// Concat concatenates its operands along an axis.
	Concat struct {
		Axis int
	}

	// Slice extracts a strided window of its operand.
	Slice struct {
		Begin, End, Strides []int
	}

	// MatMul multiplies matrices stored in the two last axes.
	// Leading axes are batch axes and must match.
	MatMul struct{}

	// OneHot expands integer indices into vectors along a new axis of length Depth.
	// The element at position k of a vector is the on value if k is the index
	// and the off value otherwise, including for indices out of [0, Depth).
	// The operands are the indices, the on value and the off value.
	OneHot struct {
		Depth int
		Axis  int
	}
)

var (
	_ Operator = (*Unary)(nil)
	_ Operator = (*Binary)(nil)
	_ Operator = (*Select)(nil)
	_ Operator = (*Cast)(nil)
	_ Operator = (*Identity)(nil)
	_ Operator = (*Reduce)(nil)
	_ Operator = (*Reshape)(nil)
	_ Operator = (*Transpose)(nil)
	_ Operator = (*Broadcast)(nil)
	_ Operator = (*Concat)(nil)
	_ Operator = (*Slice)(nil)
	_ Operator = (*MatMul)(nil)
	_ Operator = (*OneHot)(nil)
)

// Kind of the operator.
func (*Unary) Kind() OpKind { return UnaryKind }

func (op *Unary) String() string { return op.Op.String() }

// Kind of the operator.
func (*Binary) Kind() OpKind { return BinaryKind }

func (op *Binary) String() string { return op.Op.String() }

// Kind of the operator.
func (*Select) Kind() OpKind { return SelectKind }

func (*Select) String() string { return "select" }

// Kind of the operator.
func (*Cast) Kind() OpKind { return CastKind }

func (op *Cast) String() string { return "cast[" + op.DType.String() + "]" }

// Kind of the operator.
func (*Identity) Kind() OpKind { return IdentityKind }

func (*Identity) String() string { return "identity" }

// Kind of the operator.
func (*Reduce) Kind() OpKind { return ReduceKind }

func (op *Reduce) String() string {
	return fmt.Sprintf("reduce_%s%v", op.Op, op.Axes)
}

// Kind of the operator.
func (*Reshape) Kind() OpKind { return ReshapeKind }

func (*Reshape) String() string { return "reshape" }

// Kind of the operator.
func (*Transpose) Kind() OpKind { return TransposeKind }

func (op *Transpose) String() string { return fmt.Sprintf("transpose%v", op.Perm) }

// Kind of the operator.
func (*Broadcast) Kind() OpKind { return BroadcastKind }

func (op *Broadcast) String() string { return fmt.Sprintf("broadcast%v", op.Dims) }

// Kind of the operator.
func (*Concat) Kind() OpKind { return ConcatKind }

func (op *Concat) String() string { return fmt.Sprintf("concat[%d]", op.Axis) }

// Kind of the operator.
func (*Slice) Kind() OpKind { return SliceKind }

func (op *Slice) String() string {
	return fmt.Sprintf("slice%v:%v:%v", op.Begin, op.End, op.Strides)
}

// Kind of the operator.
func (*MatMul) Kind() OpKind { return MatMulKind }

func (*MatMul) String() string { return "matmul" }

// Kind of the operator.
func (*OneHot) Kind() OpKind { return OneHotKind }

func (op *OneHot) String() string { return fmt.Sprintf("onehot[%d,%d]", op.Depth, op.Axis) }
