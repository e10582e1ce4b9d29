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

// Package kmodel serializes compiled modules into a model file.
//
// A model file starts with a fixed little endian header followed by
// the payload of every module. Each payload starts on an alignment boundary
// and contains a module header, the read-only data of the constant buffers,
// and one record per function describing its buffers and its body.
package kmodel

import (
	"fmt"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/fuse/build/tir"
	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

const (
	// Identifier is the magic number at the start of every model file.
	Identifier = "KMDL"
	// FormatVersion is the version of the model file format written by this package.
	// Files with a different major version cannot be read.
	FormatVersion = "v1.0"
	// ModuleVersion is the version of the module payloads.
	ModuleVersion = 1

	modelHeaderSize  = 32
	moduleHeaderSize = 48
	moduleKindSize   = 16

	// noOffset is the rdata offset of buffers without embedded data.
	noOffset = ^uint64(0)
)

type (
	rawModelHeader struct {
		Identifier    [4]byte
		Version       uint32
		HeaderSize    uint32
		Flags         uint32
		Alignment     uint32
		Modules       uint32
		EntryModule   int32
		EntryFunction int32
	}

	rawModuleHeader struct {
		Kind       [moduleKindSize]byte
		Version    uint32
		HeaderSize uint32
		Size       uint64
		Alignment  uint32
		Functions  uint32
		RdataSize  uint64
	}
)

// ModelHeader is the decoded header of a model file.
type ModelHeader struct {
	// Version of the file format, for example v1.0.
	Version       string
	Flags         uint32
	Alignment     int
	Modules       int
	EntryModule   int
	EntryFunction int
}

func encodeVersion(v string) (uint32, error) {
	if !semver.IsValid(v) {
		return 0, errors.Errorf("invalid format version %q", v)
	}
	var major, minor uint32
	if _, err := fmt.Sscanf(semver.MajorMinor(v), "v%d.%d", &major, &minor); err != nil {
		return 0, errors.Errorf("cannot parse format version %q: %v", v, err)
	}
	return major<<16 | minor&0xffff, nil
}

func decodeVersion(v uint32) string {
	return fmt.Sprintf("v%d.%d", v>>16, v&0xffff)
}

// checkVersion returns an error if a model written with a format version cannot be read.
func checkVersion(v string) error {
	if semver.Major(v) != semver.Major(FormatVersion) {
		return errors.Errorf("model format version %s not supported: want %s", v, semver.Major(FormatVersion))
	}
	return nil
}

// Visibility of a buffer in a model file.
type Visibility uint8

const (
	// Param buffers are provided by the caller of a function.
	Param Visibility = iota
	// Rdata buffers are embedded in the read-only data of the module.
	Rdata
	// Scratch buffers are allocated by the runtime. Only their size is recorded.
	Scratch
)

var visibilityNames = []string{
	Param:   "param",
	Rdata:   "rdata",
	Scratch: "scratch",
}

func (v Visibility) String() string {
	if int(v) >= len(visibilityNames) {
		return fmt.Sprintf("Visibility(%d)", int(v))
	}
	return visibilityNames[v]
}

func visibilityOf(role tir.Role) Visibility {
	switch role {
	case tir.ConstantData:
		return Rdata
	case tir.Intermediate:
		return Scratch
	}
	return Param
}

// dtypes lists the data types which can be serialized.
// The code of a data type is its index in the list.
var dtypes = []dtype.DataType{
	dtype.Bool,
	dtype.Int32,
	dtype.Int64,
	dtype.Uint32,
	dtype.Uint64,
	dtype.Bfloat16,
	dtype.Float32,
	dtype.Float64,
}

func dtypeCode(dt dtype.DataType) (uint8, error) {
	for i, known := range dtypes {
		if known == dt {
			return uint8(i), nil
		}
	}
	return 0, errors.Errorf("data type %s cannot be serialized", dt)
}

func dtypeOf(code uint8) (dtype.DataType, error) {
	if int(code) >= len(dtypes) {
		return dtypes[0], errors.Errorf("unknown data type code %d", code)
	}
	return dtypes[code], nil
}

func alignUp(n, alignment int) int {
	return (n + alignment - 1) / alignment * alignment
}
