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
	"fmt"
	"io"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/target"
	"github.com/gx-org/fuse/build/tir"
	"github.com/gx-org/fuse/fmt/fmtarray"
	"github.com/pkg/errors"
)

type (
	// ModelInfo is the decoded content of a model file.
	ModelInfo struct {
		Header  *ModelHeader
		Modules []*ModuleInfo
	}

	// ModuleInfo is the decoded payload of a module.
	ModuleInfo struct {
		Kind      string
		Version   uint32
		Alignment int
		// Offset of the payload in the model file.
		Offset int
		// Size of the payload in bytes.
		Size  int
		Rdata []byte
		Funcs []*FuncInfo
	}

	// FuncInfo is the record of a function.
	FuncInfo struct {
		Name   string
		Params []*BufferInfo
		Allocs []*BufferInfo
		// Body is the listing of the statements of the function.
		Body string
	}

	// BufferInfo describes a buffer of a function.
	BufferInfo struct {
		Name       string
		Visibility Visibility
		Role       tir.Role
		DType      dtype.DataType
		Dims       []int
		// RdataOffset is the offset of the content of the buffer in the rdata section.
		// It is -1 if the buffer has no embedded content.
		RdataOffset int
		ByteSize    int
	}
)

// ReadHeader reads the header of a model file.
func ReadHeader(r io.Reader) (*ModelHeader, error) {
	var raw rawModelHeader
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, errors.Wrap(err, "cannot read model header")
	}
	if string(raw.Identifier[:]) != Identifier {
		return nil, errors.Errorf("invalid model identifier %q: want %q", raw.Identifier[:], Identifier)
	}
	version := decodeVersion(raw.Version)
	if err := checkVersion(version); err != nil {
		return nil, err
	}
	if raw.HeaderSize < modelHeaderSize {
		return nil, errors.Errorf("invalid model header size %d", raw.HeaderSize)
	}
	return &ModelHeader{
		Version:       version,
		Flags:         raw.Flags,
		Alignment:     int(raw.Alignment),
		Modules:       int(raw.Modules),
		EntryModule:   int(raw.EntryModule),
		EntryFunction: int(raw.EntryFunction),
	}, nil
}

// decoder reads little endian values from a byte slice.
// The first error is sticky: all reads after an error return zero values.
type decoder struct {
	data []byte
	pos  int
	err  error
}

func (d *decoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.data) {
		d.err = errors.Errorf("unexpected end of data at offset %d: cannot read %d bytes", d.pos, n)
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) u8() uint8 {
	b := d.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u32() uint32 {
	b := d.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) str() string {
	return string(d.next(int(d.u32())))
}

// Inspect decodes the content of a model file.
func Inspect(data []byte) (*ModelInfo, error) {
	header, err := ReadHeader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := target.CheckAlignment(header.Alignment); err != nil {
		return nil, err
	}
	info := &ModelInfo{Header: header}
	pos := modelHeaderSize
	for i := range header.Modules {
		pos = alignUp(pos, header.Alignment)
		mod, err := inspectModule(data, pos)
		if err != nil {
			return nil, errors.WithMessagef(err, "module %d", i)
		}
		info.Modules = append(info.Modules, mod)
		pos += mod.Size
	}
	return info, nil
}

func inspectModule(data []byte, offset int) (*ModuleInfo, error) {
	if offset+moduleHeaderSize > len(data) {
		return nil, errors.Errorf("module header at offset %d out of range of %d bytes", offset, len(data))
	}
	var raw rawModuleHeader
	if err := binary.Read(bytes.NewReader(data[offset:]), binary.LittleEndian, &raw); err != nil {
		return nil, errors.Wrap(err, "cannot read module header")
	}
	if err := target.CheckAlignment(int(raw.Alignment)); err != nil {
		return nil, err
	}
	end := offset + int(raw.Size)
	if raw.Size > uint64(len(data)) || end > len(data) {
		return nil, errors.Errorf("module of %d bytes at offset %d out of range of %d bytes", raw.Size, offset, len(data))
	}
	mod := &ModuleInfo{
		Kind:      strings.TrimRight(string(raw.Kind[:]), "\x00"),
		Version:   raw.Version,
		Alignment: int(raw.Alignment),
		Offset:    offset,
		Size:      int(raw.Size),
	}
	d := &decoder{data: data[:end], pos: offset + alignUp(int(raw.HeaderSize), mod.Alignment)}
	mod.Rdata = d.next(int(raw.RdataSize))
	for range raw.Functions {
		fn := d.function()
		if d.err != nil {
			break
		}
		mod.Funcs = append(mod.Funcs, fn)
	}
	if d.err != nil {
		return nil, d.err
	}
	return mod, nil
}

func (d *decoder) function() *FuncInfo {
	fn := &FuncInfo{Name: d.str()}
	numParams, numAllocs := d.u32(), d.u32()
	for range numParams {
		fn.Params = append(fn.Params, d.buffer())
	}
	for range numAllocs {
		fn.Allocs = append(fn.Allocs, d.buffer())
	}
	fn.Body = d.str()
	return fn
}

func (d *decoder) buffer() *BufferInfo {
	buf := &BufferInfo{Name: d.str()}
	buf.Visibility = Visibility(d.u8())
	buf.Role = tir.Role(d.u8())
	var err error
	if buf.DType, err = dtypeOf(d.u8()); err != nil && d.err == nil {
		d.err = err
	}
	rank := int(d.u8())
	for range rank {
		buf.Dims = append(buf.Dims, int(d.u64()))
	}
	buf.RdataOffset = -1
	if offset := d.u64(); offset != noOffset {
		buf.RdataOffset = int(offset)
	}
	buf.ByteSize = int(d.u64())
	return buf
}

// Data returns the embedded content of a buffer given the module it belongs to.
func (b *BufferInfo) Data(mod *ModuleInfo) []byte {
	if b.RdataOffset < 0 || b.RdataOffset+b.ByteSize > len(mod.Rdata) {
		return nil
	}
	return mod.Rdata[b.RdataOffset : b.RdataOffset+b.ByteSize]
}

func (b *BufferInfo) String() string {
	sh := &shape.Shape{DType: b.DType, AxisLengths: b.Dims}
	s := fmt.Sprintf("%s %s %s (%s, %d bytes", b.Visibility, b.Name, graph.TypeString(sh), b.Role, b.ByteSize)
	if b.RdataOffset >= 0 {
		s += fmt.Sprintf(", rdata+%d", b.RdataOffset)
	}
	return s + ")"
}

func (m *ModelInfo) String() string {
	var b strings.Builder
	h := m.Header
	fmt.Fprintf(&b, "model %s alignment=%d modules=%d entry=%d:%d\n", h.Version, h.Alignment, h.Modules, h.EntryModule, h.EntryFunction)
	for i, mod := range m.Modules {
		fmt.Fprintf(&b, "module %d @%s offset=%d size=%d alignment=%d rdata=%d\n", i, mod.Kind, mod.Offset, mod.Size, mod.Alignment, len(mod.Rdata))
		for _, fn := range mod.Funcs {
			fmt.Fprintf(&b, "\tfunc %s\n", fn.Name)
			for _, buf := range append(append([]*BufferInfo{}, fn.Params...), fn.Allocs...) {
				fmt.Fprintf(&b, "\t\t%s\n", buf)
				if data := buf.Data(mod); data != nil {
					writeValues(&b, buf, data)
				}
			}
		}
	}
	return b.String()
}

// writeValues writes the content of an rdata buffer below its declaration.
func writeValues(b *strings.Builder, buf *BufferInfo, data []byte) {
	vals, err := fmtarray.SprintRaw(buf.DType, data, buf.Dims)
	if err != nil {
		vals = err.Error()
	}
	for _, line := range strings.Split(vals, "\n") {
		fmt.Fprintf(b, "\t\t\t%s\n", line)
	}
}
