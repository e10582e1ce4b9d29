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
	"slices"
)

// LoopNest is a perfect nest of serial loops, one per axis of an iteration domain.
// Loop 0 is the outermost loop.
type LoopNest struct {
	loops []*For
}

// NewLoopNest returns a loop nest iterating over a domain.
// Loop i is labelled loop_<i> and iterates the variable i<i>.
func NewLoopNest(extents []int) *LoopNest {
	return NewLoopNestWithPrefix("i", extents)
}

// NewLoopNestWithPrefix returns a loop nest in which the variable of loop i is named <prefix><i>.
func NewLoopNestWithPrefix(prefix string, extents []int) *LoopNest {
	loops := make([]*For, len(extents))
	for i, extent := range extents {
		loops[i] = &For{
			Var:    &Var{Name: fmt.Sprintf("%s%d", prefix, i)},
			Extent: extent,
			Mode:   Serial,
			Label:  fmt.Sprintf("loop_%d", i),
		}
	}
	return &LoopNest{loops: loops}
}

// Rank returns the number of loops in the nest.
func (n *LoopNest) Rank() int {
	return len(n.loops)
}

// Extents returns the number of iterations of each loop.
func (n *LoopNest) Extents() []int {
	extents := make([]int, len(n.loops))
	for i, loop := range n.loops {
		extents[i] = loop.Extent
	}
	return extents
}

// Vars returns the loop variables, outermost first.
func (n *LoopNest) Vars() []Expr {
	vars := make([]Expr, len(n.loops))
	for i, loop := range n.loops {
		vars[i] = loop.Var
	}
	return vars
}

// Fold wraps a body into the nest. The body ends up inside the innermost loop.
// An empty nest returns the body unchanged.
func (n *LoopNest) Fold(body Stmt) Stmt {
	stmt := body
	for _, loop := range slices.Backward(n.loops) {
		stmt = &For{
			Var:    loop.Var,
			Extent: loop.Extent,
			Mode:   loop.Mode,
			Label:  loop.Label,
			Body:   stmt,
		}
	}
	return stmt
}
