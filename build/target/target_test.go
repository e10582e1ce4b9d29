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

package target_test

import (
	"testing"

	"github.com/gx-org/fuse/build/target"
)

func TestHost(t *testing.T) {
	host := target.Host()
	if host.ModuleKind != target.CPUKind {
		t.Errorf("host module kind is %q but want %q", host.ModuleKind, target.CPUKind)
	}
	if err := target.CheckAlignment(host.Alignment); err != nil {
		t.Errorf("host alignment: %v", err)
	}
}

func TestCPU(t *testing.T) {
	for _, alignment := range []int{8, 16, 32, 64, 128} {
		tgt, err := target.CPU(alignment)
		if err != nil {
			t.Errorf("CPU(%d): %v", alignment, err)
			continue
		}
		if tgt.Alignment != alignment {
			t.Errorf("CPU(%d) has alignment %d", alignment, tgt.Alignment)
		}
	}
	for _, alignment := range []int{0, 4, 12, 48, -8} {
		if _, err := target.CPU(alignment); err == nil {
			t.Errorf("CPU(%d): expected an error", alignment)
		}
	}
}
