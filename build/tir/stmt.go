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
)

// LoopMode is the execution semantic of a loop.
type LoopMode int

const (
	// Serial loops execute their iterations in order.
	Serial LoopMode = iota
)

func (m LoopMode) String() string {
	if m == Serial {
		return "serial"
	}
	return fmt.Sprintf("LoopMode(%d)", int(m))
}

type (
	// Stmt is a statement executed for its side effects on buffers.
	Stmt interface {
		String() string

		stmt()
	}

	// For iterates Var over [0, Extent).
	For struct {
		Var    *Var
		Extent int
		Mode   LoopMode
		Label  string
		Body   Stmt
	}

	// Store writes a value into a buffer.
	Store struct {
		Buffer *Buffer
		Index  Expr
		Value  Expr
	}

	// Block is a named statement, used for debugging and inspection.
	Block struct {
		Name string
		Body Stmt
	}

	// Seq executes statements in order.
	Seq struct {
		Stmts []Stmt
	}
)

var (
	_ Stmt = (*For)(nil)
	_ Stmt = (*Store)(nil)
	_ Stmt = (*Block)(nil)
	_ Stmt = (*Seq)(nil)
)

func (*For) stmt()   {}
func (*Store) stmt() {}
func (*Block) stmt() {}
func (*Seq) stmt()   {}

func (s *For) String() string   { return stmtString(s) }
func (s *Store) String() string { return stmtString(s) }
func (s *Block) String() string { return stmtString(s) }
func (s *Seq) String() string   { return stmtString(s) }

func stmtString(s Stmt) string {
	var b strings.Builder
	writeStmt(&b, s, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func writeIndent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("\t", depth))
}

func writeStmt(b *strings.Builder, s Stmt, depth int) {
	switch sT := s.(type) {
	case *For:
		writeIndent(b, depth)
		fmt.Fprintf(b, "for %s := range %d { // %s\n", sT.Var.Name, sT.Extent, sT.Label)
		writeStmt(b, sT.Body, depth+1)
		writeIndent(b, depth)
		b.WriteString("}\n")
	case *Store:
		writeIndent(b, depth)
		fmt.Fprintf(b, "%s[%s] = %s\n", sT.Buffer.Name, sT.Index, sT.Value)
	case *Block:
		writeIndent(b, depth)
		fmt.Fprintf(b, "block %s {\n", sT.Name)
		writeStmt(b, sT.Body, depth+1)
		writeIndent(b, depth)
		b.WriteString("}\n")
	case *Seq:
		for _, stmt := range sT.Stmts {
			writeStmt(b, stmt, depth)
		}
	default:
		writeIndent(b, depth)
		fmt.Fprintf(b, "<%T>\n", s)
	}
}
