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

package fmterr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Pos is a position in a source file.
type Pos struct {
	File string
	Line int
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:", p.File, p.Line)
}

// Errorf returns a formatted error at the position.
func (p Pos) Errorf(format string, a ...any) error {
	return p.Position(errors.Errorf(format, a...))
}

// Position attaches the position to an existing error.
func (p Pos) Position(err error) error {
	return errorWithPos{pos: p, err: err}
}

type errorWithPos struct {
	pos Pos
	err error
}

func (err errorWithPos) Error() string {
	return err.pos.String() + " " + err.err.Error()
}

// Unwrap the error.
func (err errorWithPos) Unwrap() error {
	return err.err
}

// Format writes the error into the state of the formatter.
func (err errorWithPos) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}
