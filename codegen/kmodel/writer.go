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

package kmodel

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/gx-org/fuse/build/module"
	"github.com/gx-org/fuse/build/target"
	"github.com/gx-org/fuse/build/tir"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// encoder appends little endian values to a byte slice.
type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) pad(alignment int) {
	e.buf = append(e.buf, make([]byte, alignUp(len(e.buf), alignment)-len(e.buf))...)
}

func (e *encoder) write(v any) error {
	var b bytes.Buffer
	if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
		return err
	}
	e.buf = append(e.buf, b.Bytes()...)
	return nil
}

// Write serializes modules into a model file.
// The entry function of the model is the entry function of the module at index entryModule.
// Write returns the number of bytes written.
func Write(w io.Writer, modules []*module.Module, entryModule int) (int, error) {
	data, err := Encode(modules, entryModule)
	if err != nil {
		return 0, err
	}
	return w.Write(data)
}

// Encode returns the content of a model file given its modules.
func Encode(modules []*module.Module, entryModule int) ([]byte, error) {
	if len(modules) == 0 {
		return nil, errors.Errorf("cannot write a model without modules")
	}
	if entryModule < 0 || entryModule >= len(modules) {
		return nil, errors.Errorf("entry module %d out of range [0, %d)", entryModule, len(modules))
	}
	for _, mod := range modules {
		if err := checkModule(mod); err != nil {
			return nil, err
		}
	}
	version, err := encodeVersion(FormatVersion)
	if err != nil {
		return nil, err
	}
	alignment := max(target.MinAlignment, lo.Max(lo.Map(modules, func(mod *module.Module, _ int) int {
		return mod.Alignment
	})))
	header := rawModelHeader{
		Version:       version,
		HeaderSize:    modelHeaderSize,
		Alignment:     uint32(alignment),
		Modules:       uint32(len(modules)),
		EntryModule:   int32(entryModule),
		EntryFunction: int32(modules[entryModule].Entry),
	}
	copy(header.Identifier[:], Identifier)
	e := &encoder{}
	if err := e.write(header); err != nil {
		return nil, err
	}
	for _, mod := range modules {
		e.pad(alignment)
		if err := e.module(mod); err != nil {
			return nil, err
		}
	}
	return e.buf, nil
}

func checkModule(mod *module.Module) error {
	if err := target.CheckAlignment(mod.Alignment); err != nil {
		return errors.Wrapf(err, "module %s", mod.Name)
	}
	if len(mod.Kind) > moduleKindSize {
		return errors.Errorf("module %s: module kind %q longer than %d bytes", mod.Name, mod.Kind, moduleKindSize)
	}
	if len(mod.Funcs) > 0 && (mod.Entry < 0 || mod.Entry >= len(mod.Funcs)) {
		return errors.Errorf("module %s: entry function %d out of range [0, %d)", mod.Name, mod.Entry, len(mod.Funcs))
	}
	return nil
}

// rdataSection packs the content of all the constant buffers of a module.
type rdataSection struct {
	alignment int
	data      encoder
	offsets   map[*tir.Buffer]uint64
}

func newRdataSection(mod *module.Module) *rdataSection {
	s := &rdataSection{alignment: mod.Alignment, offsets: make(map[*tir.Buffer]uint64)}
	for _, fn := range mod.Funcs {
		for _, buf := range fn.Allocs {
			if buf.Role != tir.ConstantData {
				continue
			}
			s.data.pad(s.alignment)
			s.offsets[buf] = uint64(len(s.data.buf))
			s.data.buf = append(s.data.buf, buf.Data...)
		}
	}
	s.data.pad(s.alignment)
	return s
}

func (s *rdataSection) offset(buf *tir.Buffer) uint64 {
	offset, ok := s.offsets[buf]
	if !ok {
		return noOffset
	}
	return offset
}

func (e *encoder) module(mod *module.Module) error {
	rdata := newRdataSection(mod)
	records := &encoder{}
	for _, fn := range mod.Funcs {
		if err := records.function(fn, rdata); err != nil {
			return errors.WithMessagef(err, "module %s", mod.Name)
		}
	}
	rdataStart := alignUp(moduleHeaderSize, mod.Alignment)
	header := rawModuleHeader{
		Version:    ModuleVersion,
		HeaderSize: moduleHeaderSize,
		Size:       uint64(rdataStart + len(rdata.data.buf) + len(records.buf)),
		Alignment:  uint32(mod.Alignment),
		Functions:  uint32(len(mod.Funcs)),
		RdataSize:  uint64(len(rdata.data.buf)),
	}
	copy(header.Kind[:], mod.Kind)
	start := len(e.buf)
	if err := e.write(header); err != nil {
		return err
	}
	e.buf = append(e.buf, make([]byte, start+rdataStart-len(e.buf))...)
	e.buf = append(e.buf, rdata.data.buf...)
	e.buf = append(e.buf, records.buf...)
	return nil
}

func (e *encoder) function(fn *tir.PrimFunc, rdata *rdataSection) error {
	e.str(fn.Name)
	e.u32(uint32(len(fn.Params)))
	e.u32(uint32(len(fn.Allocs)))
	for _, buf := range fn.Buffers() {
		if err := e.buffer(buf, rdata); err != nil {
			return errors.WithMessagef(err, "function %s", fn.Name)
		}
	}
	e.str(strings.Join(lo.Map(fn.Body, func(stmt tir.Stmt, _ int) string {
		return stmt.String()
	}), "\n"))
	return nil
}

func (e *encoder) buffer(buf *tir.Buffer, rdata *rdataSection) error {
	code, err := dtypeCode(buf.DType)
	if err != nil {
		return errors.WithMessagef(err, "buffer %s", buf.Name)
	}
	if buf.Rank() > 0xff {
		return errors.Errorf("buffer %s: rank %d too large", buf.Name, buf.Rank())
	}
	e.str(buf.Name)
	e.u8(uint8(visibilityOf(buf.Role)))
	e.u8(uint8(buf.Role))
	e.u8(code)
	e.u8(uint8(buf.Rank()))
	for _, dim := range buf.Dims {
		e.u64(uint64(dim))
	}
	e.u64(rdata.offset(buf))
	e.u64(uint64(buf.ByteSize()))
	return nil
}
