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

// Package tirexec executes primitive functions of the loop IR on the host.
//
// The interpreter is a reference implementation: it executes loops serially,
// one scalar operation at a time, and is used to check the result of the lowering.
package tirexec

import (
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/fuse/build/tir"
	"github.com/pkg/errors"
)

type machine struct {
	mem  map[*tir.Buffer]*memory
	vars map[*tir.Var]int64
}

// Run executes a function given the raw content of its input buffers
// and returns the raw content of its output buffers.
// Input buffers are not modified.
func Run(fn *tir.PrimFunc, inputs [][]byte) ([][]byte, error) {
	m := &machine{
		mem:  make(map[*tir.Buffer]*memory),
		vars: make(map[*tir.Var]int64),
	}
	ins := fn.Inputs()
	if len(inputs) != len(ins) {
		return nil, errors.Errorf("function %s requires %d input(s) but got %d", fn.Name, len(ins), len(inputs))
	}
	for i, buf := range ins {
		if err := m.allocate(buf, append([]byte{}, inputs[i]...)); err != nil {
			return nil, err
		}
	}
	for _, buf := range fn.Buffers() {
		if buf.Role == tir.Input {
			continue
		}
		raw := make([]byte, buf.ByteSize())
		if buf.Role == tir.ConstantData {
			copy(raw, buf.Data)
		}
		if err := m.allocate(buf, raw); err != nil {
			return nil, err
		}
	}
	for _, stmt := range fn.Body {
		if err := m.exec(stmt); err != nil {
			return nil, errors.Wrapf(err, "cannot execute function %s", fn.Name)
		}
	}
	outs := fn.Outputs()
	results := make([][]byte, len(outs))
	for i, buf := range outs {
		results[i] = m.mem[buf].raw
	}
	return results, nil
}

func (m *machine) allocate(buf *tir.Buffer, raw []byte) error {
	mem, err := newMemory(buf, raw)
	if err != nil {
		return err
	}
	m.mem[buf] = mem
	return nil
}

func (m *machine) memory(buf *tir.Buffer) (*memory, error) {
	mem, ok := m.mem[buf]
	if !ok {
		return nil, errors.Errorf("buffer %s does not belong to the function", buf.Name)
	}
	return mem, nil
}

func (m *machine) exec(stmt tir.Stmt) error {
	switch stmtT := stmt.(type) {
	case *tir.Seq:
		for _, s := range stmtT.Stmts {
			if err := m.exec(s); err != nil {
				return err
			}
		}
		return nil
	case *tir.Block:
		if err := m.exec(stmtT.Body); err != nil {
			return errors.Wrapf(err, "block %s", stmtT.Name)
		}
		return nil
	case *tir.For:
		for i := range stmtT.Extent {
			m.vars[stmtT.Var] = int64(i)
			if err := m.exec(stmtT.Body); err != nil {
				return err
			}
		}
		delete(m.vars, stmtT.Var)
		return nil
	case *tir.Store:
		return m.store(stmtT)
	}
	return errors.Errorf("statement %T not supported", stmt)
}

func (m *machine) store(stmt *tir.Store) error {
	mem, err := m.memory(stmt.Buffer)
	if err != nil {
		return err
	}
	index, err := m.index(stmt.Buffer, mem, stmt.Index)
	if err != nil {
		return err
	}
	val, err := m.eval(stmt.Value)
	if err != nil {
		return err
	}
	if val.dt != stmt.Buffer.DType {
		return errors.Errorf("cannot store a %s value into buffer %s", val.dt, stmt.Buffer.Decl())
	}
	mem.store(index, val)
	return nil
}

func (m *machine) index(buf *tir.Buffer, mem *memory, expr tir.Expr) (int, error) {
	idx, err := m.eval(expr)
	if err != nil {
		return 0, err
	}
	if idx.cat != intCat {
		return 0, errors.Errorf("index %s of buffer %s is not an integer", expr, buf.Name)
	}
	if idx.i < 0 || idx.i >= int64(mem.size) {
		return 0, errors.Errorf("index %s=%d out of bounds of buffer %s", expr, idx.i, buf.Decl())
	}
	return int(idx.i), nil
}

func (m *machine) eval(expr tir.Expr) (scalar, error) {
	switch exprT := expr.(type) {
	case *tir.IntImm:
		return makeScalar(exprT.Type, scalar{dt: dtype.Int64, cat: intCat, i: exprT.Value})
	case *tir.FloatImm:
		return makeScalar(exprT.Type, scalar{dt: dtype.Float64, cat: floatCat, f: exprT.Value})
	case *tir.BoolImm:
		return boolScalar(exprT.Value), nil
	case *tir.Var:
		v, ok := m.vars[exprT]
		if !ok {
			return scalar{}, errors.Errorf("loop variable %s used outside of its loop", exprT.Name)
		}
		return indexScalar(v), nil
	case *tir.Load:
		mem, err := m.memory(exprT.Buffer)
		if err != nil {
			return scalar{}, err
		}
		index, err := m.index(exprT.Buffer, mem, exprT.Index)
		if err != nil {
			return scalar{}, err
		}
		return mem.load(index), nil
	case *tir.Unary:
		x, err := m.eval(exprT.X)
		if err != nil {
			return scalar{}, err
		}
		return unary(exprT.Op, x)
	case *tir.Binary:
		x, err := m.eval(exprT.X)
		if err != nil {
			return scalar{}, err
		}
		y, err := m.eval(exprT.Y)
		if err != nil {
			return scalar{}, err
		}
		return binary(exprT.Op, x, y)
	case *tir.Select:
		cond, err := m.eval(exprT.Cond)
		if err != nil {
			return scalar{}, err
		}
		if cond.asBool() {
			return m.eval(exprT.X)
		}
		return m.eval(exprT.Y)
	case *tir.Cast:
		x, err := m.eval(exprT.X)
		if err != nil {
			return scalar{}, err
		}
		return makeScalar(exprT.Type, x)
	}
	return scalar{}, errors.Errorf("expression %T not supported", expr)
}
