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
	"bytes"
	"slices"
	"unsafe"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/pkg/errors"
)

// Builder creates the nodes of a graph and assigns their identifiers.
// A builder is not safe for concurrent use.
type Builder struct {
	next NodeID
}

// NewBuilder returns a new graph builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) nextID() NodeID {
	id := b.next
	b.next++
	return id
}

// NewShape returns a shape given a data type and axis lengths.
// The axis lengths are copied.
func NewShape(dt dtype.DataType, dims ...int) *shape.Shape {
	return &shape.Shape{DType: dt, AxisLengths: slices.Clone(dims)}
}

func cloneShape(sh *shape.Shape) *shape.Shape {
	return NewShape(sh.DType, sh.AxisLengths...)
}

// Input returns a new external parameter.
func (b *Builder) Input(name string, sh *shape.Shape) *Input {
	return &Input{id: b.nextID(), Name: name, shape: cloneShape(sh)}
}

// Constant returns a new constant given its raw content.
func (b *Builder) Constant(sh *shape.Shape, data []byte) (*Constant, error) {
	if !IsFixed(sh) {
		return nil, errors.Errorf("constant of type %s has unknown axis lengths", TypeString(sh))
	}
	if len(data) != sh.ByteSize() {
		return nil, errors.Errorf("constant of type %s requires %d bytes but got %d", TypeString(sh), sh.ByteSize(), len(data))
	}
	return &Constant{id: b.nextID(), shape: cloneShape(sh), Data: bytes.Clone(data)}, nil
}

// ConstantOf returns a new constant from a slice of Go values.
func ConstantOf[T dtype.GoDataType](b *Builder, dims []int, vals []T) (*Constant, error) {
	return b.Constant(NewShape(dtype.Generic[T](), dims...), ToBytes(vals))
}

// ToBytes returns a copy of a slice of values as raw bytes.
func ToBytes[T dtype.GoDataType](vals []T) []byte {
	if len(vals) == 0 {
		return []byte{}
	}
	var zero T
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*int(unsafe.Sizeof(zero)))
	return bytes.Clone(raw)
}

// Operation returns a new operation with an explicit result type.
// No type inference is performed.
func (b *Builder) Operation(op Operator, sh *shape.Shape, args ...Node) *Operation {
	return &Operation{
		id:    b.nextID(),
		shape: cloneShape(sh),
		Op:    op,
		Args:  slices.Clone(args),
	}
}

func (b *Builder) infer(op Operator, args ...Node) (*Operation, error) {
	sh, err := Infer(op, args...)
	if err != nil {
		return nil, err
	}
	return b.Operation(op, sh, args...), nil
}

// Unary returns an elementwise unary operation.
func (b *Builder) Unary(op UnaryOp, x Node) (*Operation, error) {
	return b.infer(&Unary{Op: op}, x)
}

// Binary returns an elementwise binary operation.
func (b *Builder) Binary(op BinaryOp, x, y Node) (*Operation, error) {
	return b.infer(&Binary{Op: op}, x, y)
}

// Select returns an elementwise selection between x and y.
func (b *Builder) Select(cond, x, y Node) (*Operation, error) {
	return b.infer(&Select{}, cond, x, y)
}

// Cast returns a conversion of x to another data type.
func (b *Builder) Cast(x Node, dt dtype.DataType) (*Operation, error) {
	return b.infer(&Cast{DType: dt}, x)
}

// Identity returns a copy of x.
func (b *Builder) Identity(x Node) (*Operation, error) {
	return b.infer(&Identity{}, x)
}

// Reduce returns a reduction of x along some axes.
func (b *Builder) Reduce(op ReduceOp, x Node, axes []int, keepDims bool) (*Operation, error) {
	normalized, err := NormalizeAxes(len(x.Shape().AxisLengths), axes)
	if err != nil {
		return nil, err
	}
	return b.infer(&Reduce{Op: op, Axes: normalized, KeepDims: keepDims}, x)
}

// Reshape returns x with new axis lengths.
func (b *Builder) Reshape(x Node, dims []int) (*Operation, error) {
	sh, err := inferReshape(x.Shape(), dims)
	if err != nil {
		return nil, err
	}
	return b.Operation(&Reshape{}, sh, x), nil
}

// Transpose returns x with its axes permuted.
func (b *Builder) Transpose(x Node, perm []int) (*Operation, error) {
	return b.infer(&Transpose{Perm: slices.Clone(perm)}, x)
}

// Broadcast returns x broadcast to a target shape.
// Axis i of x is mapped to the axis dims[i] of the result.
func (b *Builder) Broadcast(x Node, target []int, dims []int) (*Operation, error) {
	sh, err := inferBroadcast(x.Shape(), target, dims)
	if err != nil {
		return nil, err
	}
	return b.Operation(&Broadcast{Dims: slices.Clone(dims)}, sh, x), nil
}

// Concat returns the concatenation of xs along an axis.
func (b *Builder) Concat(axis int, xs ...Node) (*Operation, error) {
	return b.infer(&Concat{Axis: axis}, xs...)
}

// Slice returns a strided window of x.
func (b *Builder) Slice(x Node, begin, end, strides []int) (*Operation, error) {
	return b.infer(&Slice{
		Begin:   slices.Clone(begin),
		End:     slices.Clone(end),
		Strides: slices.Clone(strides),
	}, x)
}

// MatMul returns the matrix product of x and y.
func (b *Builder) MatMul(x, y Node) (*Operation, error) {
	return b.infer(&MatMul{}, x, y)
}

// OneHot returns the one-hot encoding of integer indices along a new axis.
// A negative axis counts from the end: -1 appends the new axis.
func (b *Builder) OneHot(indices, on, off Node, depth, axis int) (*Operation, error) {
	if axis < 0 {
		axis += len(indices.Shape().AxisLengths) + 1
	}
	return b.infer(&OneHot{Depth: depth, Axis: axis}, indices, on, off)
}

// Fusion returns a new fusion given its designated output node.
func (b *Builder) Fusion(name, moduleKind string, body Node) *Fusion {
	return &Fusion{Name: name, ModuleKind: moduleKind, Body: body}
}
