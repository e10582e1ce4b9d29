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

// Package tir is the buffer-addressed loop IR produced by the fusion lowering.
//
// A primitive function owns a set of buffers and a list of statements.
// Statements are serial loop nests storing the result of scalar expressions
// into buffers at linear addresses computed from loop variables and
// row-major strides.
package tir

import (
	"fmt"
	"slices"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/fuse/build/graph"
	"github.com/samber/lo"
)

// Role is the storage classification of a buffer.
type Role int

const (
	// Input buffers are supplied by the caller of the function.
	Input Role = iota
	// Output buffers hold the result of the function.
	Output
	// ConstantData buffers are read-only and backed by embedded bytes.
	ConstantData
	// Intermediate buffers are scratch memory local to the function.
	Intermediate
)

var roleNames = []string{
	Input:        "input",
	Output:       "output",
	ConstantData: "rdata",
	Intermediate: "data",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// IsParam returns true if buffers with the role are parameters of a function.
func (r Role) IsParam() bool {
	return r == Input || r == Output
}

// Buffer is a named, typed and shaped memory region.
// Buffers are immutable once created.
type Buffer struct {
	Name  string
	DType dtype.DataType
	Role  Role
	// Dims are the axis lengths of the buffer.
	Dims []int
	// Strides are derived from the axis lengths (row-major).
	Strides []int
	// Data is the content of a ConstantData buffer. Nil for all other roles.
	Data []byte
}

// NewBuffer returns a new buffer with row-major strides.
func NewBuffer(name string, dt dtype.DataType, role Role, dims []int, data []byte) *Buffer {
	return &Buffer{
		Name:    name,
		DType:   dt,
		Role:    role,
		Dims:    slices.Clone(dims),
		Strides: RowMajorStrides(dims),
		Data:    data,
	}
}

// Rank returns the number of axes of the buffer.
func (b *Buffer) Rank() int {
	return len(b.Dims)
}

// Size returns the number of elements in the buffer.
func (b *Buffer) Size() int {
	return lo.Reduce(b.Dims, func(acc int, dim int, _ int) int { return acc * dim }, 1)
}

// ByteSize returns the size of the buffer in bytes.
func (b *Buffer) ByteSize() int {
	return b.Size() * dtype.Sizeof(b.DType)
}

// Shape returns the backend shape of the buffer.
func (b *Buffer) Shape() *shape.Shape {
	return &shape.Shape{DType: b.DType, AxisLengths: slices.Clone(b.Dims)}
}

// Index returns the linear address in the buffer given one loop variable per axis.
func (b *Buffer) Index(vars []Expr) Expr {
	return LinearIndex(b.Strides, vars)
}

// Load returns an expression loading the element at an address.
func (b *Buffer) Load(index Expr) *Load {
	return &Load{Buffer: b, Index: index}
}

// Decl returns the declaration of the buffer, for example buffer_0 float32[2,3].
func (b *Buffer) Decl() string {
	return b.Name + " " + graph.TypeString(b.Shape())
}

func (b *Buffer) String() string {
	return b.Name
}

// RowMajorStrides returns the strides of a contiguous buffer
// in which the last axis varies fastest.
func RowMajorStrides(dims []int) []int {
	strides := make([]int, len(dims))
	acc := 1
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= dims[i]
	}
	return strides
}

// LinearIndex returns the expression sum(strides[i] * vars[i]).
// Terms with a stride of 1 are the bare variable and terms with a stride of 0 are omitted.
func LinearIndex(strides []int, vars []Expr) Expr {
	if len(strides) != len(vars) {
		panic(fmt.Sprintf("cannot build a linear index from %d strides and %d variables", len(strides), len(vars)))
	}
	var terms []Expr
	for i, v := range vars {
		switch strides[i] {
		case 0:
		case 1:
			terms = append(terms, v)
		default:
			terms = append(terms, Mul(Int(strides[i]), v))
		}
	}
	if len(terms) == 0 {
		return Int(0)
	}
	return lo.Reduce(terms[1:], func(acc Expr, term Expr, _ int) Expr {
		return Add(acc, term)
	}, terms[0])
}

// Offset returns the linear address given concrete indices.
func Offset(strides []int, idx []int) int {
	offset := 0
	for i, stride := range strides {
		offset += stride * idx[i]
	}
	return offset
}
