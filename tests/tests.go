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

// Package tests embed all the golden fusion test files.
package tests

import (
	"embed"

	"github.com/gx-org/fuse/build/importers"
	"github.com/gx-org/fuse/build/importers/embedpkg"
)

// FS is the filesystem containing all fusion test files.
//
//go:embed testfiles errors
var FS embed.FS

// Prefix is the prefix of the paths of the test files registered for import.
const Prefix = "tests/"

// Errors is the set of paths testing for lowering errors.
var Errors = []string{
	"errors",
}

// Elementwise is a set of paths testing elementwise operations.
var Elementwise = []string{
	"testfiles/elementwise.fuse",
}

// Movement is a set of paths testing data movement operations.
var Movement = []string{
	"testfiles/movement.fuse",
}

// Reductions is a set of paths testing reductions and contractions.
var Reductions = []string{
	"testfiles/reduce.fuse",
}

// All includes all the paths lowering successfully.
var All = appendAll(Elementwise, Movement, Reductions)

func appendAll(paths ...[]string) []string {
	var r []string
	for _, ps := range paths {
		r = append(r, ps...)
	}
	return r
}

// Importer registers the test files and returns an importer loading them.
// Test files are imported given their path prefixed with Prefix.
func Importer() (importers.Importer, error) {
	if err := embedpkg.RegisterFS(Prefix, FS); err != nil {
		return nil, err
	}
	return embedpkg.New(), nil
}
