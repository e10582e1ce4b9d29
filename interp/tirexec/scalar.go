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
	"math"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/fuse/build/graph"
	"github.com/pkg/errors"
)

type category int

const (
	boolCat category = iota
	floatCat
	intCat
	uintCat
)

func categoryOf(dt dtype.DataType) (category, error) {
	switch dt {
	case dtype.Bool:
		return boolCat, nil
	case dtype.Bfloat16, dtype.Float32, dtype.Float64:
		return floatCat, nil
	case dtype.Int32, dtype.Int64:
		return intCat, nil
	case dtype.Uint32, dtype.Uint64:
		return uintCat, nil
	}
	return 0, errors.Errorf("data type %s not supported", dt)
}

// scalar is a value of any supported data type.
// Only the field matching the category of the data type is set.
type scalar struct {
	dt  dtype.DataType
	cat category
	b   bool
	f   float64
	i   int64
	u   uint64
}

// makeScalar returns a scalar of a data type from a value of any category,
// converting it as a Go conversion would.
func makeScalar(dt dtype.DataType, from scalar) (scalar, error) {
	cat, err := categoryOf(dt)
	if err != nil {
		return scalar{}, err
	}
	s := scalar{dt: dt, cat: cat}
	switch cat {
	case boolCat:
		s.b = from.asBool()
	case floatCat:
		s.f = from.asFloat()
		if dt == dtype.Float32 {
			s.f = float64(float32(s.f))
		}
	case intCat:
		s.i = from.asInt()
		if dt == dtype.Int32 {
			s.i = int64(int32(s.i))
		}
	case uintCat:
		s.u = from.asUint()
		if dt == dtype.Uint32 {
			s.u = uint64(uint32(s.u))
		}
	}
	return s, nil
}

func boolScalar(v bool) scalar {
	return scalar{dt: dtype.Bool, cat: boolCat, b: v}
}

func indexScalar(v int64) scalar {
	return scalar{dt: dtype.Int64, cat: intCat, i: v}
}

func (s scalar) asBool() bool {
	switch s.cat {
	case floatCat:
		return s.f != 0
	case intCat:
		return s.i != 0
	case uintCat:
		return s.u != 0
	}
	return s.b
}

func (s scalar) asFloat() float64 {
	switch s.cat {
	case boolCat:
		if s.b {
			return 1
		}
		return 0
	case intCat:
		return float64(s.i)
	case uintCat:
		return float64(s.u)
	}
	return s.f
}

func (s scalar) asInt() int64 {
	switch s.cat {
	case boolCat:
		if s.b {
			return 1
		}
		return 0
	case floatCat:
		return int64(s.f)
	case uintCat:
		return int64(s.u)
	}
	return s.i
}

func (s scalar) asUint() uint64 {
	switch s.cat {
	case boolCat:
		if s.b {
			return 1
		}
		return 0
	case floatCat:
		return uint64(s.f)
	case intCat:
		return uint64(s.i)
	}
	return s.u
}

func sign[T int64 | float64](x T) T {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return x
}

func unary(op graph.UnaryOp, x scalar) (scalar, error) {
	r := scalar{dt: x.dt, cat: x.cat}
	switch x.cat {
	case boolCat:
		if op != graph.Not {
			return r, errors.Errorf("%s not defined on %s", op, x.dt)
		}
		r.b = !x.b
		return r, nil
	case floatCat:
		f, err := unaryFloat(op, x.f)
		if err != nil {
			return r, err
		}
		r.f = f
	case intCat:
		switch op {
		case graph.Neg:
			r.i = -x.i
		case graph.Abs:
			r.i = x.i
			if x.i < 0 {
				r.i = -x.i
			}
		case graph.Square:
			r.i = x.i * x.i
		case graph.Sign:
			r.i = sign(x.i)
		default:
			return r, errors.Errorf("%s not defined on %s", op, x.dt)
		}
	case uintCat:
		switch op {
		case graph.Neg:
			r.u = -x.u
		case graph.Abs:
			r.u = x.u
		case graph.Square:
			r.u = x.u * x.u
		case graph.Sign:
			r.u = min(x.u, 1)
		default:
			return r, errors.Errorf("%s not defined on %s", op, x.dt)
		}
	}
	return makeScalar(x.dt, r)
}

func unaryFloat(op graph.UnaryOp, x float64) (float64, error) {
	switch op {
	case graph.Neg:
		return -x, nil
	case graph.Abs:
		return math.Abs(x), nil
	case graph.Exp:
		return math.Exp(x), nil
	case graph.Log:
		return math.Log(x), nil
	case graph.Sqrt:
		return math.Sqrt(x), nil
	case graph.Rsqrt:
		return 1 / math.Sqrt(x), nil
	case graph.Square:
		return x * x, nil
	case graph.Sin:
		return math.Sin(x), nil
	case graph.Cos:
		return math.Cos(x), nil
	case graph.Tanh:
		return math.Tanh(x), nil
	case graph.Sigmoid:
		return 1 / (1 + math.Exp(-x)), nil
	case graph.Floor:
		return math.Floor(x), nil
	case graph.Ceil:
		return math.Ceil(x), nil
	case graph.Round:
		return math.RoundToEven(x), nil
	case graph.Sign:
		return sign(x), nil
	}
	return 0, errors.Errorf("%s not defined on floating point values", op)
}

func binary(op graph.BinaryOp, x, y scalar) (scalar, error) {
	if x.cat != y.cat {
		return scalar{}, errors.Errorf("%s between mismatched data types %s and %s", op, x.dt, y.dt)
	}
	if op.IsComparison() {
		c, ordered := compare(x, y)
		if !ordered {
			return boolScalar(op == graph.NotEqual), nil
		}
		switch op {
		case graph.Equal:
			return boolScalar(c == 0), nil
		case graph.NotEqual:
			return boolScalar(c != 0), nil
		case graph.Less:
			return boolScalar(c < 0), nil
		case graph.LessEqual:
			return boolScalar(c <= 0), nil
		case graph.Greater:
			return boolScalar(c > 0), nil
		default:
			return boolScalar(c >= 0), nil
		}
	}
	r := scalar{dt: x.dt, cat: x.cat}
	var err error
	switch x.cat {
	case boolCat:
		switch op {
		case graph.And:
			r.b = x.b && y.b
		case graph.Or:
			r.b = x.b || y.b
		default:
			err = errors.Errorf("%s not defined on %s", op, x.dt)
		}
	case floatCat:
		r.f, err = binaryFloat(op, x.f, y.f)
	case intCat:
		r.i, err = binaryInt(op, x.i, y.i)
	case uintCat:
		r.u, err = binaryInt(op, x.u, y.u)
	}
	if err != nil {
		return r, err
	}
	return makeScalar(x.dt, r)
}

// compare returns -1, 0 or 1 and false if the values are not ordered (NaN).
func compare(x, y scalar) (int, bool) {
	switch x.cat {
	case boolCat:
		return cmpOrdered(x.asInt(), y.asInt()), true
	case floatCat:
		if math.IsNaN(x.f) || math.IsNaN(y.f) {
			return 0, false
		}
		switch {
		case x.f < y.f:
			return -1, true
		case x.f > y.f:
			return 1, true
		}
		return 0, true
	case intCat:
		return cmpOrdered(x.i, y.i), true
	}
	return cmpOrdered(x.u, y.u), true
}

func cmpOrdered[T int64 | uint64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func binaryFloat(op graph.BinaryOp, x, y float64) (float64, error) {
	switch op {
	case graph.Add:
		return x + y, nil
	case graph.Sub:
		return x - y, nil
	case graph.Mul:
		return x * y, nil
	case graph.Div:
		return x / y, nil
	case graph.Mod:
		return math.Mod(x, y), nil
	case graph.Pow:
		return math.Pow(x, y), nil
	case graph.Min:
		return math.Min(x, y), nil
	case graph.Max:
		return math.Max(x, y), nil
	}
	return 0, errors.Errorf("%s not defined on floating point values", op)
}

func binaryInt[T int64 | uint64](op graph.BinaryOp, x, y T) (T, error) {
	switch op {
	case graph.Add:
		return x + y, nil
	case graph.Sub:
		return x - y, nil
	case graph.Mul:
		return x * y, nil
	case graph.Div, graph.Mod:
		if y == 0 {
			return 0, errors.Errorf("integer division by zero")
		}
		if op == graph.Div {
			return x / y, nil
		}
		return x % y, nil
	case graph.Pow:
		if y < 0 {
			return 0, errors.Errorf("negative integer exponent %d", y)
		}
		r := T(1)
		for i := T(0); i < y; i++ {
			r *= x
		}
		return r, nil
	case graph.Min:
		return min(x, y), nil
	case graph.Max:
		return max(x, y), nil
	}
	return 0, errors.Errorf("%s not defined on integers", op)
}
