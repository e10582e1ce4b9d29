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

package testing

import (
	"reflect"

	"github.com/gx-org/fuse/build/fmterr"
	"github.com/gx-org/fuse/build/tir"
	"github.com/pkg/errors"
)

// Visitor checks a statement or an expression of a function.
type Visitor func(errs *fmterr.Errors, node any)

type validator struct {
	fn       *tir.PrimFunc
	errs     fmterr.Errors
	buffers  map[*tir.Buffer]bool
	bound    map[string]bool
	visitors []Visitor
}

// Validate a primitive function to make sure that:
// all the buffers are declared once with a unique name,
// all the loop variables are bound by an enclosing loop,
// and only output or intermediate buffers are written to.
func Validate(fn *tir.PrimFunc, visitors ...Visitor) error {
	v := validator{
		fn:       fn,
		buffers:  make(map[*tir.Buffer]bool),
		bound:    make(map[string]bool),
		visitors: visitors,
	}
	v.validateBuffers()
	for _, stmt := range fn.Body {
		v.validateStmt(stmt)
	}
	return v.errs.ToError()
}

func (v *validator) errorf(format string, a ...any) {
	v.errs.Append(errors.Errorf("function %s: "+format, append([]any{v.fn.Name}, a...)...))
}

func (v *validator) validateBuffers() {
	names := make(map[string]bool)
	for _, buf := range v.fn.Buffers() {
		if names[buf.Name] {
			v.errorf("buffer %s declared more than once", buf.Name)
		}
		names[buf.Name] = true
		v.buffers[buf] = true
		if buf.Role == tir.ConstantData && len(buf.Data) != buf.ByteSize() {
			v.errorf("constant buffer %s has %d bytes of data but requires %d", buf.Name, len(buf.Data), buf.ByteSize())
		}
		if buf.Role != tir.ConstantData && buf.Data != nil {
			v.errorf("buffer %s with role %s has data", buf.Name, buf.Role)
		}
	}
	for _, buf := range v.fn.Params {
		if !buf.Role.IsParam() {
			v.errorf("parameter %s has role %s", buf.Name, buf.Role)
		}
	}
	for _, buf := range v.fn.Allocs {
		if buf.Role.IsParam() {
			v.errorf("allocation %s has role %s", buf.Name, buf.Role)
		}
	}
}

func (v *validator) validateBuffer(buf *tir.Buffer) {
	if !v.buffers[buf] {
		v.errorf("buffer %s is not declared by the function", buf.Name)
	}
}

func isNil(node any) bool {
	if node == nil {
		return true
	}
	val := reflect.ValueOf(node)
	return val.Kind() == reflect.Pointer && val.IsNil()
}

func (v *validator) visit(node any) bool {
	if isNil(node) {
		v.errorf("nil node")
		return false
	}
	for _, visitor := range v.visitors {
		visitor(&v.errs, node)
	}
	return true
}

func (v *validator) validateStmt(stmt tir.Stmt) {
	if !v.visit(stmt) {
		return
	}
	switch stmtT := stmt.(type) {
	case *tir.For:
		if stmtT.Extent < 1 {
			v.errorf("loop %s has extent %d", stmtT.Label, stmtT.Extent)
		}
		name := stmtT.Var.Name
		if v.bound[name] {
			v.errorf("loop variable %s already bound by an enclosing loop", name)
		}
		v.bound[name] = true
		v.validateStmt(stmtT.Body)
		delete(v.bound, name)
	case *tir.Store:
		v.validateBuffer(stmtT.Buffer)
		if role := stmtT.Buffer.Role; role == tir.Input || role == tir.ConstantData {
			v.errorf("store into %s buffer %s", role, stmtT.Buffer.Name)
		}
		if stmtT.Value.DType() != stmtT.Buffer.DType {
			v.errorf("store of a %s value into %s buffer %s", stmtT.Value.DType(), stmtT.Buffer.DType, stmtT.Buffer.Name)
		}
		v.validateIndex(stmtT.Index)
		v.validateExpr(stmtT.Value)
	case *tir.Block:
		v.validateStmt(stmtT.Body)
	case *tir.Seq:
		for _, s := range stmtT.Stmts {
			v.validateStmt(s)
		}
	default:
		v.errorf("statement type %T not supported", stmt)
	}
}

func (v *validator) validateIndex(index tir.Expr) {
	if !isNil(index) && index.DType() != tir.IndexType {
		v.errorf("index %s has type %s", index, index.DType())
	}
	v.validateExpr(index)
}

func (v *validator) validateExpr(expr tir.Expr) {
	if !v.visit(expr) {
		return
	}
	switch exprT := expr.(type) {
	case *tir.IntImm, *tir.FloatImm, *tir.BoolImm:
	case *tir.Var:
		if !v.bound[exprT.Name] {
			v.errorf("unbound variable %s", exprT.Name)
		}
	case *tir.Unary:
		v.validateExpr(exprT.X)
	case *tir.Binary:
		v.validateExpr(exprT.X)
		v.validateExpr(exprT.Y)
	case *tir.Select:
		v.validateExpr(exprT.Cond)
		v.validateExpr(exprT.X)
		v.validateExpr(exprT.Y)
	case *tir.Cast:
		v.validateExpr(exprT.X)
	case *tir.Load:
		v.validateBuffer(exprT.Buffer)
		v.validateIndex(exprT.Index)
	default:
		v.errorf("expression type %T not supported", expr)
	}
}
