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

package tir

import (
	"fmt"
	"strconv"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/fuse/build/graph"
)

// IndexType is the data type of loop variables and addresses.
const IndexType = dtype.Int64

type (
	// Expr is a scalar expression.
	Expr interface {
		// DType returns the data type of the value of the expression.
		DType() dtype.DataType
		String() string

		expr()
	}

	// IntImm is an integer literal.
	IntImm struct {
		Value int64
		Type  dtype.DataType
	}

	// FloatImm is a floating point literal.
	FloatImm struct {
		Value float64
		Type  dtype.DataType
	}

	// BoolImm is a boolean literal.
	BoolImm struct {
		Value bool
	}

	// Var is a loop variable.
	Var struct {
		Name string
	}

	// Unary applies a scalar function to a value.
	Unary struct {
		Op graph.UnaryOp
		X  Expr
	}

	// Binary applies a scalar function to two values of the same data type.
	Binary struct {
		Op   graph.BinaryOp
		X, Y Expr
	}

	// Select returns X if Cond is true, Y otherwise.
	Select struct {
		Cond, X, Y Expr
	}

	// Cast converts a value to another data type.
	Cast struct {
		Type dtype.DataType
		X    Expr
	}

	// Load reads an element of a buffer.
	Load struct {
		Buffer *Buffer
		Index  Expr
	}
)

var (
	_ Expr = (*IntImm)(nil)
	_ Expr = (*FloatImm)(nil)
	_ Expr = (*BoolImm)(nil)
	_ Expr = (*Var)(nil)
	_ Expr = (*Unary)(nil)
	_ Expr = (*Binary)(nil)
	_ Expr = (*Select)(nil)
	_ Expr = (*Cast)(nil)
	_ Expr = (*Load)(nil)
)

// Int returns an index literal.
func Int(v int) *IntImm {
	return &IntImm{Value: int64(v), Type: IndexType}
}

// Add returns x + y.
func Add(x, y Expr) *Binary {
	return &Binary{Op: graph.Add, X: x, Y: y}
}

// Mul returns x * y.
func Mul(x, y Expr) *Binary {
	return &Binary{Op: graph.Mul, X: x, Y: y}
}

func (*IntImm) expr() {}

// DType of the literal.
func (e *IntImm) DType() dtype.DataType { return e.Type }

func (e *IntImm) String() string { return strconv.FormatInt(e.Value, 10) }

func (*FloatImm) expr() {}

// DType of the literal.
func (e *FloatImm) DType() dtype.DataType { return e.Type }

func (e *FloatImm) String() string { return strconv.FormatFloat(e.Value, 'g', -1, 64) }

func (*BoolImm) expr() {}

// DType returns bool.
func (*BoolImm) DType() dtype.DataType { return dtype.Bool }

func (e *BoolImm) String() string { return strconv.FormatBool(e.Value) }

func (*Var) expr() {}

// DType returns the index type.
func (*Var) DType() dtype.DataType { return IndexType }

func (e *Var) String() string { return e.Name }

func (*Unary) expr() {}

// DType returns the data type of the operand.
func (e *Unary) DType() dtype.DataType { return e.X.DType() }

func (e *Unary) String() string {
	switch e.Op {
	case graph.Neg:
		return "-" + wrap(e.X, precUnary)
	case graph.Not:
		return "!" + wrap(e.X, precUnary)
	}
	return fmt.Sprintf("%s(%s)", e.Op, e.X)
}

func (*Binary) expr() {}

// DType returns bool for comparisons and the data type of the operands otherwise.
func (e *Binary) DType() dtype.DataType {
	if e.Op.IsComparison() {
		return dtype.Bool
	}
	return e.X.DType()
}

var infix = map[graph.BinaryOp]string{
	graph.Add:          " + ",
	graph.Sub:          " - ",
	graph.Mul:          "*",
	graph.Div:          "/",
	graph.Mod:          "%",
	graph.And:          " && ",
	graph.Or:           " || ",
	graph.Equal:        " == ",
	graph.NotEqual:     " != ",
	graph.Less:         " < ",
	graph.LessEqual:    " <= ",
	graph.Greater:      " > ",
	graph.GreaterEqual: " >= ",
}

const (
	precCall = iota
	precOr
	precAnd
	precCompare
	precAdd
	precMul
	precUnary
	precAtom
)

func precedence(e Expr) int {
	switch eT := e.(type) {
	case *Binary:
		switch eT.Op {
		case graph.Or:
			return precOr
		case graph.And:
			return precAnd
		case graph.Add, graph.Sub:
			return precAdd
		case graph.Mul, graph.Div, graph.Mod:
			return precMul
		}
		if eT.Op.IsComparison() {
			return precCompare
		}
	case *Unary:
		if eT.Op == graph.Neg || eT.Op == graph.Not {
			return precUnary
		}
	}
	return precAtom
}

func wrap(e Expr, prec int) string {
	if precedence(e) < prec {
		return "(" + e.String() + ")"
	}
	return e.String()
}

func (e *Binary) String() string {
	op, ok := infix[e.Op]
	if !ok {
		return fmt.Sprintf("%s(%s, %s)", e.Op, e.X, e.Y)
	}
	prec := precedence(e)
	// Right operands of the same precedence are wrapped: x - (y - z).
	return wrap(e.X, prec) + op + wrap(e.Y, prec+1)
}

func (*Select) expr() {}

// DType returns the data type of the selected values.
func (e *Select) DType() dtype.DataType { return e.X.DType() }

func (e *Select) String() string {
	return fmt.Sprintf("select(%s, %s, %s)", e.Cond, e.X, e.Y)
}

func (*Cast) expr() {}

// DType returns the target data type.
func (e *Cast) DType() dtype.DataType { return e.Type }

func (e *Cast) String() string {
	return fmt.Sprintf("%s(%s)", e.Type, e.X)
}

func (*Load) expr() {}

// DType returns the data type of the buffer.
func (e *Load) DType() dtype.DataType { return e.Buffer.DType }

func (e *Load) String() string {
	return fmt.Sprintf("%s[%s]", e.Buffer.Name, e.Index)
}
