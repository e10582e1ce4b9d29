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

package tirexec

import (
	"bytes"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/tir"
	"github.com/pkg/errors"
)

// memory is a typed view of the raw content of a buffer.
type memory struct {
	buf   *tir.Buffer
	raw   []byte
	size  int
	load  func(i int) scalar
	store func(i int, s scalar)
}

func viewOf[T dtype.GoDataType](m *memory, to func(T) scalar, from func(scalar) T) *memory {
	vals := dtype.ToSlice[T](m.raw)
	m.load = func(i int) scalar { return to(vals[i]) }
	m.store = func(i int, s scalar) { vals[i] = from(s) }
	return m
}

func newMemory(buf *tir.Buffer, raw []byte) (*memory, error) {
	if len(raw) != buf.ByteSize() {
		return nil, errors.Errorf("buffer %s requires %d bytes but got %d", buf.Decl(), buf.ByteSize(), len(raw))
	}
	m := &memory{buf: buf, raw: raw, size: buf.Size()}
	if m.size == 0 {
		m.load = func(int) scalar { return scalar{} }
		m.store = func(int, scalar) {}
		return m, nil
	}
	dt := buf.DType
	switch dt {
	case dtype.Bool:
		return viewOf(m, boolScalar, func(s scalar) bool { return s.b }), nil
	case dtype.Bfloat16:
		return viewOf(m,
			func(v dtype.Bfloat16T) scalar { return scalar{dt: dt, cat: floatCat, f: float64(v.Float32())} },
			func(s scalar) dtype.Bfloat16T { return dtype.BFloat16FromFloat64(s.f) }), nil
	case dtype.Float32:
		return viewOf(m,
			func(v float32) scalar { return scalar{dt: dt, cat: floatCat, f: float64(v)} },
			func(s scalar) float32 { return float32(s.f) }), nil
	case dtype.Float64:
		return viewOf(m,
			func(v float64) scalar { return scalar{dt: dt, cat: floatCat, f: v} },
			func(s scalar) float64 { return s.f }), nil
	case dtype.Int32:
		return viewOf(m,
			func(v int32) scalar { return scalar{dt: dt, cat: intCat, i: int64(v)} },
			func(s scalar) int32 { return int32(s.i) }), nil
	case dtype.Int64:
		return viewOf(m,
			func(v int64) scalar { return scalar{dt: dt, cat: intCat, i: v} },
			func(s scalar) int64 { return s.i }), nil
	case dtype.Uint32:
		return viewOf(m,
			func(v uint32) scalar { return scalar{dt: dt, cat: uintCat, u: uint64(v)} },
			func(s scalar) uint32 { return uint32(s.u) }), nil
	case dtype.Uint64:
		return viewOf(m,
			func(v uint64) scalar { return scalar{dt: dt, cat: uintCat, u: v} },
			func(s scalar) uint64 { return s.u }), nil
	}
	return nil, errors.Errorf("cannot create a view of buffer %s: %s not supported", buf.Name, dt)
}

// Bytes returns a copy of a slice of values as the raw content of a buffer.
func Bytes[T dtype.GoDataType](vals []T) []byte {
	return graph.ToBytes(vals)
}

// Values returns a copy of the raw content of a buffer as a slice of values.
func Values[T dtype.GoDataType](raw []byte) []T {
	if len(raw) == 0 {
		return []T{}
	}
	return dtype.ToSlice[T](bytes.Clone(raw))
}
