// Copyright 2024 Google LLC
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

package fmterr

import (
	"fmt"
	"runtime/debug"

	"github.com/gx-org/fuse/build/graph"
	"github.com/pkg/errors"
)

// Kind classifies a lowering failure.
type Kind int

const (
	// UnknownKind is the kind of errors not created by this package.
	UnknownKind Kind = iota
	// UnresolvedShape is returned when a node entering lowering has an unknown axis length.
	UnresolvedShape
	// UnsupportedNodeKind is returned when the allocator does not recognize a node.
	UnsupportedNodeKind
	// UnsupportedOperator is returned when no strategy is registered for an operator kind.
	UnsupportedOperator
	// ShapeMismatch is returned when the shapes of the buffers of an operation
	// do not satisfy the precondition of its strategy.
	ShapeMismatch
	// InternalKind marks a bug in the lowering.
	InternalKind
)

var kindNames = []string{
	UnknownKind:         "Unknown",
	UnresolvedShape:     "UnresolvedShape",
	UnsupportedNodeKind: "UnsupportedNodeKind",
	UnsupportedOperator: "UnsupportedOperator",
	ShapeMismatch:       "ShapeMismatch",
	InternalKind:        "Internal",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Sentinel errors, one per kind, matched by errors.Is on a labelled error.
var (
	ErrUnresolvedShape     = errors.New("unresolved shape")
	ErrUnsupportedNodeKind = errors.New("unsupported node kind")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrShapeMismatch       = errors.New("shape mismatch")
	ErrInternal            = errors.New("internal error")
)

var sentinels = map[Kind]error{
	UnresolvedShape:     ErrUnresolvedShape,
	UnsupportedNodeKind: ErrUnsupportedNodeKind,
	UnsupportedOperator: ErrUnsupportedOperator,
	ShapeMismatch:       ErrShapeMismatch,
	InternalKind:        ErrInternal,
}

// Error is a lowering failure labelled with the fusion and the node being lowered.
type Error struct {
	// Fusion is the name of the fusion being lowered.
	Fusion string
	// Node is the identifier of the node that caused the failure.
	Node graph.NodeID
	// NodeDesc is a short description of the node.
	NodeDesc string
	// Kind of the failure.
	Kind Kind
	// Err is the underlying error, with its stack trace.
	Err error
}

// Errorf returns a new labelled error for a node of a fusion.
func Errorf(fusion string, node graph.Node, kind Kind, format string, a ...any) *Error {
	return Label(fusion, node, kind, errors.Errorf(format, a...))
}

// Label attaches a fusion, a node and a kind to an existing error.
func Label(fusion string, node graph.Node, kind Kind, err error) *Error {
	lerr := &Error{Fusion: fusion, Node: -1, Kind: kind, Err: err}
	if node != nil {
		lerr.Node = node.ID()
		lerr.NodeDesc = node.String()
	}
	return lerr
}

// Error returns a string description of the error.
func (err *Error) Error() (s string) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s = fmt.Sprintf("recovered from panic when building error message: %T:\n%v", err.Err, string(debug.Stack()))
	}()
	node := err.NodeDesc
	if node == "" {
		node = fmt.Sprintf("#%d", err.Node)
	}
	return fmt.Sprintf("fusion %s: node %s: %s: %s", err.Fusion, node, err.Kind, err.Err.Error())
}

// Unwrap returns the underlying error.
func (err *Error) Unwrap() error {
	return err.Err
}

// Is returns true if target is the sentinel error of the kind of err.
func (err *Error) Is(target error) bool {
	sentinel, ok := sentinels[err.Kind]
	return ok && sentinel == target
}

// Format writes the error into the state of the formatter.
func (err *Error) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

// KindOf returns the kind of a lowering error or UnknownKind
// if err has not been created by this package.
func KindOf(err error) Kind {
	var lerr *Error
	if !errors.As(err, &lerr) {
		return UnknownKind
	}
	return lerr.Kind
}

// Internal marks an error as internal, potentially adding additional information.
func Internal(err error) error {
	return fmt.Errorf("fuse internal error. This is a bug in the lowering. Please report it. Error:\n%+v", err)
}
