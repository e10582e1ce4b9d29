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
	"slices"

	"github.com/gx-org/fuse/build/fmterr"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/tir"
	"golang.org/x/exp/maps"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Strategy lowers an operation given the buffers of its arguments and of its result.
type Strategy func(op *graph.Operation, args []*tir.Buffer, result *tir.Buffer) (tir.Stmt, error)

// Registry maps operator kinds to lowering strategies.
// A registry must not be modified while engines are using it.
type Registry struct {
	strategies map[graph.OpKind]Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[graph.OpKind]Strategy)}
}

// DefaultRegistry returns a new registry with the strategies of all the operators
// defined in the graph package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(graph.UnaryKind, lowerUnary)
	r.Register(graph.BinaryKind, lowerBinary)
	r.Register(graph.SelectKind, lowerSelect)
	r.Register(graph.CastKind, lowerCast)
	r.Register(graph.IdentityKind, lowerIdentity)
	r.Register(graph.ReduceKind, lowerReduce)
	r.Register(graph.ReshapeKind, lowerReshape)
	r.Register(graph.TransposeKind, lowerTranspose)
	r.Register(graph.BroadcastKind, lowerBroadcast)
	r.Register(graph.ConcatKind, lowerConcat)
	r.Register(graph.SliceKind, lowerSlice)
	r.Register(graph.MatMulKind, lowerMatMul)
	r.Register(graph.OneHotKind, lowerOneHot)
	return r
}

// Register a strategy for an operator kind, replacing any previous strategy.
func (r *Registry) Register(kind graph.OpKind, strategy Strategy) {
	r.strategies[kind] = strategy
}

// Unregister removes the strategy of an operator kind.
func (r *Registry) Unregister(kind graph.OpKind) {
	delete(r.strategies, kind)
}

// Lookup returns the strategy of an operator kind.
func (r *Registry) Lookup(kind graph.OpKind) (Strategy, bool) {
	s, ok := r.strategies[kind]
	return s, ok
}

// Kinds returns the operator kinds with a strategy, sorted.
func (r *Registry) Kinds() []graph.OpKind {
	kinds := maps.Keys(r.strategies)
	slices.Sort(kinds)
	return kinds
}

// Clone returns a copy of the registry.
func (r *Registry) Clone() *Registry {
	return &Registry{strategies: maps.Clone(r.strategies)}
}

var blockNames = func() map[graph.OpKind]string {
	title := cases.Title(language.English)
	names := make(map[graph.OpKind]string)
	for kind := graph.UnaryKind; kind <= graph.OneHotKind; kind++ {
		names[kind] = title.String(kind.String())
	}
	return names
}()

// BlockName returns the name of the block wrapping the statements of an operator family.
func BlockName(kind graph.OpKind) string {
	if name, ok := blockNames[kind]; ok {
		return name
	}
	return kind.String()
}

func block(op *graph.Operation, body tir.Stmt) *tir.Block {
	return &tir.Block{Name: BlockName(op.Op.Kind()), Body: body}
}

func mismatchf(op *graph.Operation, format string, a ...any) error {
	return fmterr.Errorf("", op, fmterr.ShapeMismatch, format, a...)
}

func internalf(op *graph.Operation, format string, a ...any) error {
	return fmterr.Errorf("", op, fmterr.InternalKind, format, a...)
}

func checkArity(op *graph.Operation, args []*tir.Buffer, n int) error {
	if len(args) != n {
		return mismatchf(op, "%s requires %d argument(s) but got %d", op.Op, n, len(args))
	}
	return nil
}

func checkSameDims(op *graph.Operation, x, y *tir.Buffer) error {
	if !slices.Equal(x.Dims, y.Dims) {
		return mismatchf(op, "%s: buffer %s has axis lengths %v but buffer %s has axis lengths %v", op.Op, x.Name, x.Dims, y.Name, y.Dims)
	}
	return nil
}

func checkSameDType(op *graph.Operation, x, y *tir.Buffer) error {
	if x.DType != y.DType {
		return mismatchf(op, "%s: buffer %s is %s but buffer %s is %s", op.Op, x.Name, x.DType, y.Name, y.DType)
	}
	return nil
}

func operator[T graph.Operator](op *graph.Operation) (T, error) {
	opT, ok := op.Op.(T)
	if !ok {
		return opT, internalf(op, "operator %s of type %T cannot be lowered as %T", op.Op, op.Op, opT)
	}
	return opT, nil
}
