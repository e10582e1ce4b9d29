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

// Package fmtarray formats the content of buffers as Go composite literals.
package fmtarray

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type printer[T dtype.GoDataType] struct {
	w    strings.Builder
	vals []T
	dims []int
	// span[i] is the number of elements covered by one step along axis i.
	span []int
}

func newPrinter[T dtype.GoDataType](vals []T, dims []int) (*printer[T], error) {
	size := lo.Reduce(dims, func(acc, dim, _ int) int { return acc * dim }, 1)
	if size != len(vals) {
		return nil, errors.Errorf("%d value(s) do not fill axes %v of %d element(s)", len(vals), dims, size)
	}
	p := &printer[T]{vals: vals, dims: dims, span: make([]int, len(dims))}
	acc := 1
	for i := len(dims) - 1; i >= 0; i-- {
		p.span[i] = acc
		acc *= dims[i]
	}
	return p, nil
}

func formatValue[T dtype.GoDataType](x T) string {
	switch xT := any(x).(type) {
	case float32:
		return formatFloat(float64(xT), 6, 32)
	case float64:
		return formatFloat(xT, 10, 64)
	case dtype.Bfloat16T:
		return formatFloat(float64(xT.Float32()), 4, 32)
	}
	return fmt.Sprint(x)
}

// formatFloat prints a float with a bounded number of decimals
// and without trailing zeros.
func formatFloat(f float64, prec, bitSize int) string {
	s := strconv.FormatFloat(f, 'f', prec, bitSize)
	if !strings.ContainsRune(s, '.') {
		return s
	}
	return strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
}

func (p *printer[T]) writeRow(offset int) {
	last := p.dims[len(p.dims)-1]
	row := make([]string, last)
	for i := range last {
		row[i] = formatValue(p.vals[offset+i])
	}
	p.w.WriteString("{" + strings.Join(row, ", ") + "}")
}

// writeAxis writes the elements of axis starting at a linear offset.
// The last axis is printed on a single line.
func (p *printer[T]) writeAxis(axis, offset int, indent string) {
	if axis == len(p.dims)-1 {
		p.writeRow(offset)
		return
	}
	p.w.WriteString("{\n")
	inner := indent + "\t"
	for i := range p.dims[axis] {
		p.w.WriteString(inner)
		p.writeAxis(axis+1, offset+i*p.span[axis], inner)
		p.w.WriteString(",\n")
	}
	p.w.WriteString(indent + "}")
}

func (p *printer[T]) writeValues() {
	if len(p.dims) == 0 {
		p.w.WriteString("(" + formatValue(p.vals[0]) + ")")
		return
	}
	p.writeAxis(0, 0, "")
}

func (p *printer[T]) writeType() {
	for _, dim := range p.dims {
		fmt.Fprintf(&p.w, "[%d]", dim)
	}
	p.w.WriteString(dtype.Generic[T]().String())
}

// SprintValues returns the values of an array without its type.
func SprintValues[T dtype.GoDataType](vals []T, dims []int) string {
	p, err := newPrinter(vals, dims)
	if err != nil {
		return err.Error()
	}
	p.writeValues()
	return p.w.String()
}

// Sprint returns an array as a Go composite literal, for example [2]float32{1, 2}.
func Sprint[T dtype.GoDataType](vals []T, dims []int) string {
	p, err := newPrinter(vals, dims)
	if err != nil {
		return err.Error()
	}
	p.writeType()
	p.writeValues()
	return p.w.String()
}

func sprintRaw[T dtype.GoDataType](raw []byte, dims []int) (string, error) {
	if len(raw) == 0 {
		return Sprint([]T{}, dims), nil
	}
	if len(raw)%dtype.Sizeof(dtype.Generic[T]()) != 0 {
		return "", errors.Errorf("%d byte(s) is not a multiple of the size of %s", len(raw), dtype.Generic[T]())
	}
	p, err := newPrinter(dtype.ToSlice[T](bytes.Clone(raw)), dims)
	if err != nil {
		return "", err
	}
	p.writeType()
	p.writeValues()
	return p.w.String(), nil
}

// SprintRaw returns the raw content of a buffer given its data type and axis lengths.
func SprintRaw(dt dtype.DataType, raw []byte, dims []int) (string, error) {
	switch dt {
	case dtype.Bool:
		return sprintRaw[bool](raw, dims)
	case dtype.Bfloat16:
		return sprintRaw[dtype.Bfloat16T](raw, dims)
	case dtype.Float32:
		return sprintRaw[float32](raw, dims)
	case dtype.Float64:
		return sprintRaw[float64](raw, dims)
	case dtype.Int32:
		return sprintRaw[int32](raw, dims)
	case dtype.Int64:
		return sprintRaw[int64](raw, dims)
	case dtype.Uint32:
		return sprintRaw[uint32](raw, dims)
	case dtype.Uint64:
		return sprintRaw[uint64](raw, dims)
	}
	return "", errors.Errorf("cannot print a buffer of %s", dt)
}
