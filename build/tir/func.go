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
	"strings"

	"github.com/samber/lo"
)

// PrimFunc is a lowered fusion: a function taking buffers as parameters
// and executing a list of statements.
type PrimFunc struct {
	// Name of the function. Same as the name of the fusion.
	Name string
	// ModuleKind is the target the function has been compiled for.
	ModuleKind string
	// Params are the input buffers followed by the output buffers.
	Params []*Buffer
	// Allocs are the constant and intermediate buffers owned by the function.
	Allocs []*Buffer
	// Body is executed in order.
	Body []Stmt
}

// Inputs returns the input parameters of the function.
func (f *PrimFunc) Inputs() []*Buffer {
	return f.withRole(Input)
}

// Outputs returns the output parameters of the function.
func (f *PrimFunc) Outputs() []*Buffer {
	return f.withRole(Output)
}

func (f *PrimFunc) withRole(role Role) []*Buffer {
	return lo.Filter(f.Params, func(b *Buffer, _ int) bool { return b.Role == role })
}

// Buffers returns all the buffers of the function: parameters first.
func (f *PrimFunc) Buffers() []*Buffer {
	return append(append([]*Buffer{}, f.Params...), f.Allocs...)
}

func (f *PrimFunc) String() string {
	var b strings.Builder
	params := lo.Map(f.Params, func(p *Buffer, _ int) string { return p.Decl() })
	fmt.Fprintf(&b, "func %s(%s) @%s {\n", f.Name, strings.Join(params, ", "), f.ModuleKind)
	for _, alloc := range f.Allocs {
		fmt.Fprintf(&b, "\t%s %s\n", alloc.Role, alloc.Decl())
	}
	for _, stmt := range f.Body {
		writeStmt(&b, stmt, 1)
	}
	b.WriteString("}")
	return b.String()
}
