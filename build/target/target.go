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

// Package target describes the device a module is compiled for.
package target

import (
	"fmt"
	"math/bits"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/cpu"
)

// CPUKind is the module kind of functions compiled for a CPU.
const CPUKind = "cpu"

// MinAlignment is the minimum alignment, in bytes, of buffers on any target.
const MinAlignment = 8

// Target is a device for which fusions are compiled.
type Target struct {
	// Name of the target, for example the host architecture.
	Name string
	// ModuleKind is the tag of the fusions the target can compile.
	ModuleKind string
	// Alignment is the alignment, in bytes, of buffers and module payloads.
	Alignment int
	// Features are the instruction set extensions available on the target.
	Features []string
}

// Host returns a CPU target describing the machine running the program.
// The alignment is the width of the widest vector registers available.
func Host() *Target {
	t := &Target{
		Name:       runtime.GOARCH,
		ModuleKind: CPUKind,
		Alignment:  MinAlignment,
	}
	switch {
	case cpu.X86.HasAVX512F:
		t.Alignment = 64
	case cpu.X86.HasAVX2, cpu.X86.HasAVX:
		t.Alignment = 32
	case cpu.ARM64.HasASIMD:
		t.Alignment = 16
	}
	for _, feature := range []struct {
		name string
		has  bool
	}{
		{"avx", cpu.X86.HasAVX},
		{"avx2", cpu.X86.HasAVX2},
		{"avx512f", cpu.X86.HasAVX512F},
		{"fma", cpu.X86.HasFMA},
		{"sse4.2", cpu.X86.HasSSE42},
		{"asimd", cpu.ARM64.HasASIMD},
		{"fphp", cpu.ARM64.HasFPHP},
		{"sve", cpu.ARM64.HasSVE},
	} {
		if feature.has {
			t.Features = append(t.Features, feature.name)
		}
	}
	return t
}

// CPU returns a generic CPU target with a fixed alignment.
// Compiling for a fixed target produces the same output on all machines.
func CPU(alignment int) (*Target, error) {
	if err := CheckAlignment(alignment); err != nil {
		return nil, err
	}
	return &Target{
		Name:       "generic",
		ModuleKind: CPUKind,
		Alignment:  alignment,
	}, nil
}

// CheckAlignment returns an error if an alignment is not a power of two
// greater or equal to MinAlignment.
func CheckAlignment(alignment int) error {
	if alignment < MinAlignment || bits.OnesCount(uint(alignment)) != 1 {
		return errors.Errorf("invalid alignment %d: must be a power of 2 >= %d", alignment, MinAlignment)
	}
	return nil
}

func (t *Target) String() string {
	return fmt.Sprintf("%s/%s (alignment %d)", t.Name, t.ModuleKind, t.Alignment)
}
