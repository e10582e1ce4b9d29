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

// Package fuseflag provides flag types for fusion tools.
package fuseflag

import (
	"strings"

	"github.com/spf13/pflag"
)

type stringList struct {
	list *[]string
}

var _ pflag.Value = (*stringList)(nil)

func (sl *stringList) String() string {
	return strings.Join(*sl.list, ",")
}

func (sl *stringList) Set(values string) error {
	for _, value := range strings.Split(values, ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		*sl.list = append(*sl.list, value)
	}
	return nil
}

func (sl *stringList) Type() string {
	return "list"
}

// StringList returns a flag to pass a list of string from the command line.
// The flag can be repeated and each value can be a comma separated list.
func StringList(flags *pflag.FlagSet, name, doc string) *[]string {
	var list []string
	flags.Var(&stringList{&list}, name, doc)
	return &list
}

// Filter returns the elements of a list with a name in names.
// All the elements are returned if names is empty.
func Filter[T any](elements []T, name func(T) string, names []string) []T {
	if len(names) == 0 {
		return elements
	}
	var filtered []T
	for _, el := range elements {
		for _, n := range names {
			if name(el) == n {
				filtered = append(filtered, el)
				break
			}
		}
	}
	return filtered
}
