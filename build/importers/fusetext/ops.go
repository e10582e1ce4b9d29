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

package fusetext

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/fuse/build/graph"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var (
	unaryOps  = opsByName(graph.Neg, graph.Not)
	binaryOps = opsByName(graph.Add, graph.GreaterEqual)
	reduceOps = opsByName(graph.ReduceSum, graph.ReduceMean)
)

func opsByName[T interface {
	~int
	String() string
}](first, last T) map[string]T {
	ops := make(map[string]T)
	for op := first; op <= last; op++ {
		ops[op.String()] = op
	}
	return ops
}

// ParseType parses a type such as f32[2,3], i64[] or f32[?,3].
func ParseType(s string) (*shape.Shape, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return nil, errors.Errorf("invalid type %q: want <dtype>[<axis lengths>]", s)
	}
	dt, ok := dtypeNames[s[:open]]
	if !ok {
		return nil, errors.Errorf("unknown data type %q", s[:open])
	}
	var dims []int
	if inner := s[open+1 : len(s)-1]; inner != "" {
		for _, field := range strings.Split(inner, ",") {
			if field == "?" {
				dims = append(dims, graph.UnknownDim)
				continue
			}
			dim, err := strconv.Atoi(field)
			if err != nil || dim < 0 {
				return nil, errors.Errorf("invalid axis length %q in type %q", field, s)
			}
			dims = append(dims, dim)
		}
	}
	return graph.NewShape(dt, dims...), nil
}

func parseDType(s string) (dtype.DataType, error) {
	dt, ok := dtypeNames[s]
	if !ok {
		return dt, errors.Errorf("unknown data type %q", s)
	}
	return dt, nil
}

func parseInts(s string) ([]int, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, errors.Errorf("invalid list %q: want [a,b,...]", s)
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return []int{}, nil
	}
	var vals []int
	for _, field := range strings.Split(inner, ",") {
		val, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.Errorf("invalid integer %q in list %q", field, s)
		}
		vals = append(vals, val)
	}
	return vals, nil
}

type (
	attr struct {
		value string
		used  bool
	}

	attrs map[string]*attr
)

// splitAttrs separates the attributes (key=value) from the argument identifiers.
func splitAttrs(fields []string) (attrs, []string, error) {
	as := make(attrs)
	var ids []string
	for _, field := range fields {
		key, value, isAttr := strings.Cut(field, "=")
		if !isAttr {
			ids = append(ids, field)
			continue
		}
		if _, dup := as[key]; dup {
			return nil, nil, errors.Errorf("attribute %s specified more than once", key)
		}
		as[key] = &attr{value: value}
	}
	return as, ids, nil
}

func (as attrs) lookup(key string) (string, bool) {
	a, ok := as[key]
	if !ok {
		return "", false
	}
	a.used = true
	return a.value, true
}

func (as attrs) required(key string) (string, error) {
	value, ok := as.lookup(key)
	if !ok {
		return "", errors.Errorf("missing attribute %s", key)
	}
	return value, nil
}

func (as attrs) ints(key string) ([]int, error) {
	value, err := as.required(key)
	if err != nil {
		return nil, err
	}
	return parseInts(value)
}

func (as attrs) integer(key string) (int, error) {
	value, err := as.required(key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

func (as attrs) boolean(key string) (bool, error) {
	value, ok := as.lookup(key)
	if !ok {
		return false, nil
	}
	return strconv.ParseBool(value)
}

func (as attrs) checkUsed() error {
	unused := lo.Filter(lo.Keys(as), func(key string, _ int) bool { return !as[key].used })
	if len(unused) == 0 {
		return nil
	}
	slices.Sort(unused)
	return errors.Errorf("unknown attribute(s) %s", strings.Join(unused, ", "))
}

func wantArgs(name string, args []graph.Node, n int) error {
	if len(args) != n {
		return errors.Errorf("%s requires %d argument(s) but got %d", name, n, len(args))
	}
	return nil
}

// operation builds an operation given the name of its operator.
func (f *fusion) operation(name string, as attrs, args []graph.Node) (*graph.Operation, error) {
	if op, ok := unaryOps[name]; ok {
		if err := wantArgs(name, args, 1); err != nil {
			return nil, err
		}
		return f.bld.Unary(op, args[0])
	}
	if op, ok := binaryOps[name]; ok {
		if err := wantArgs(name, args, 2); err != nil {
			return nil, err
		}
		return f.bld.Binary(op, args[0], args[1])
	}
	switch name {
	case "select":
		if err := wantArgs(name, args, 3); err != nil {
			return nil, err
		}
		return f.bld.Select(args[0], args[1], args[2])
	case "cast":
		if err := wantArgs(name, args, 1); err != nil {
			return nil, err
		}
		to, err := as.required("to")
		if err != nil {
			return nil, err
		}
		dt, err := parseDType(to)
		if err != nil {
			return nil, err
		}
		return f.bld.Cast(args[0], dt)
	case "identity":
		if err := wantArgs(name, args, 1); err != nil {
			return nil, err
		}
		return f.bld.Identity(args[0])
	case "reduce":
		return f.reduce(as, args)
	case "reshape":
		if err := wantArgs(name, args, 1); err != nil {
			return nil, err
		}
		dims, err := as.ints("dims")
		if err != nil {
			return nil, err
		}
		return f.bld.Reshape(args[0], dims)
	case "transpose":
		if err := wantArgs(name, args, 1); err != nil {
			return nil, err
		}
		perm, err := as.ints("perm")
		if err != nil {
			return nil, err
		}
		return f.bld.Transpose(args[0], perm)
	case "broadcast":
		if err := wantArgs(name, args, 1); err != nil {
			return nil, err
		}
		target, err := as.ints("shape")
		if err != nil {
			return nil, err
		}
		dims, err := as.ints("dims")
		if err != nil {
			return nil, err
		}
		return f.bld.Broadcast(args[0], target, dims)
	case "concat":
		axis, err := as.integer("axis")
		if err != nil {
			return nil, err
		}
		return f.bld.Concat(axis, args...)
	case "slice":
		return f.slice(as, args)
	case "matmul":
		if err := wantArgs(name, args, 2); err != nil {
			return nil, err
		}
		return f.bld.MatMul(args[0], args[1])
	case "onehot":
		return f.oneHot(as, args)
	}
	return nil, errors.Errorf("unknown operator %q", name)
}

func (f *fusion) oneHot(as attrs, args []graph.Node) (*graph.Operation, error) {
	if err := wantArgs("onehot", args, 3); err != nil {
		return nil, err
	}
	depth, err := as.integer("depth")
	if err != nil {
		return nil, err
	}
	axis := -1
	if _, ok := as["axis"]; ok {
		if axis, err = as.integer("axis"); err != nil {
			return nil, err
		}
	}
	return f.bld.OneHot(args[0], args[1], args[2], depth, axis)
}

func (f *fusion) reduce(as attrs, args []graph.Node) (*graph.Operation, error) {
	if err := wantArgs("reduce", args, 1); err != nil {
		return nil, err
	}
	opName, err := as.required("op")
	if err != nil {
		return nil, err
	}
	op, ok := reduceOps[opName]
	if !ok {
		return nil, errors.Errorf("unknown reduction %q", opName)
	}
	var axes []int
	if _, ok := as["axes"]; ok {
		if axes, err = as.ints("axes"); err != nil {
			return nil, err
		}
	}
	keepDims, err := as.boolean("keepdims")
	if err != nil {
		return nil, err
	}
	return f.bld.Reduce(op, args[0], axes, keepDims)
}

func (f *fusion) slice(as attrs, args []graph.Node) (*graph.Operation, error) {
	if err := wantArgs("slice", args, 1); err != nil {
		return nil, err
	}
	begin, err := as.ints("begin")
	if err != nil {
		return nil, err
	}
	end, err := as.ints("end")
	if err != nil {
		return nil, err
	}
	strides := slices.Repeat([]int{1}, len(begin))
	if _, ok := as["strides"]; ok {
		if strides, err = as.ints("strides"); err != nil {
			return nil, err
		}
	}
	return f.bld.Slice(args[0], begin, end, strides)
}

// constant builds a constant given its type and its comma separated values.
func (f *fusion) constant(typ, values string) (graph.Node, error) {
	sh, err := ParseType(typ)
	if err != nil {
		return nil, err
	}
	raw, err := ParseValues(sh, values)
	if err != nil {
		return nil, errors.WithMessage(err, "constant")
	}
	return f.bld.Constant(sh, raw)
}

// ParseValues returns the raw content of a buffer given its comma separated values.
// A single value is repeated to fill the buffer.
func ParseValues(sh *shape.Shape, values string) ([]byte, error) {
	if !graph.IsFixed(sh) {
		return nil, errors.Errorf("type %s has unknown axis lengths", graph.TypeString(sh))
	}
	fields := strings.Split(values, ",")
	size := sh.Size()
	if len(fields) == 1 && size != 1 {
		fields = slices.Repeat(fields, size)
	}
	if len(fields) != size {
		return nil, errors.Errorf("type %s requires %d value(s) but got %d", graph.TypeString(sh), size, len(fields))
	}
	switch sh.DType {
	case dtype.Bool:
		return valuesOf(fields, strconv.ParseBool)
	case dtype.Float32:
		return valuesOf(fields, func(s string) (float32, error) {
			v, err := strconv.ParseFloat(s, 32)
			return float32(v), err
		})
	case dtype.Float64:
		return valuesOf(fields, func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		})
	case dtype.Int32:
		return valuesOf(fields, func(s string) (int32, error) {
			v, err := strconv.ParseInt(s, 10, 32)
			return int32(v), err
		})
	case dtype.Int64:
		return valuesOf(fields, func(s string) (int64, error) {
			return strconv.ParseInt(s, 10, 64)
		})
	case dtype.Uint32:
		return valuesOf(fields, func(s string) (uint32, error) {
			v, err := strconv.ParseUint(s, 10, 32)
			return uint32(v), err
		})
	case dtype.Uint64:
		return valuesOf(fields, func(s string) (uint64, error) {
			return strconv.ParseUint(s, 10, 64)
		})
	}
	return nil, errors.Errorf("values of type %s not supported", graph.TypeString(sh))
}

func valuesOf[T dtype.GoDataType](fields []string, parse func(string) (T, error)) ([]byte, error) {
	vals := make([]T, len(fields))
	for i, field := range fields {
		var err error
		if vals[i], err = parse(strings.TrimSpace(field)); err != nil {
			return nil, errors.Errorf("invalid value %q: %v", field, err)
		}
	}
	return graph.ToBytes(vals), nil
}
