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
	"io"

	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// WithStackTrace returns an error printing a stack trace when formatted with %+v.
// The trace is the one of the deepest error of the chain carrying one
// or, if none does, the stack of the caller.
func WithStackTrace(err error) error {
	if err == nil {
		return nil
	}
	var withSt stackTracer
	if !errors.As(err, &withSt) {
		withSt = errors.WithStack(err).(stackTracer)
	}
	return &tracedError{err: err, trace: withSt.StackTrace()}
}

type tracedError struct {
	err   error
	trace errors.StackTrace
}

func (err *tracedError) Unwrap() error {
	return err.err
}

func (err *tracedError) Error() string {
	return err.err.Error()
}

func (err *tracedError) Format(s fmt.State, verb rune) {
	writeError(s, verb, err.err.Error(), err.trace)
}

// format writes an error with the stack trace found in its chain, if any.
func format(err error, s fmt.State, verb rune) {
	var trace errors.StackTrace
	if withSt := stackTracer(nil); errors.As(err, &withSt) {
		trace = withSt.StackTrace()
	}
	writeError(s, verb, err.Error(), trace)
}

// writeError writes the message of an error, followed by a stack trace for %+v.
func writeError(s fmt.State, verb rune, msg string, trace errors.StackTrace) {
	switch {
	case verb == 'v' && s.Flag('+') && trace != nil:
		fmt.Fprintf(s, "%s\nError generated at:%+v\n", msg, trace)
	case verb == 'q':
		fmt.Fprintf(s, "%q", msg)
	default:
		io.WriteString(s, msg)
	}
}
