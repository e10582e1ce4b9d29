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

package fuseflag_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/fuse/tools/fuseflag"
	"github.com/spf13/pflag"
)

func TestStringList(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	list := fuseflag.StringList(flags, "only", "fusions to process")
	if err := flags.Parse([]string{"--only", "a, b", "--only=c,,"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, *list); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
	got := fuseflag.Filter([]string{"c", "d", "a"}, func(s string) string { return s }, *list)
	if diff := cmp.Diff([]string{"c", "a"}, got); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}
}
