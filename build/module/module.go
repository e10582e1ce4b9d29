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

// Package module compiles a set of fusions into a module of primitive functions.
package module

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/gx-org/fuse/build/fmterr"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/lower"
	"github.com/gx-org/fuse/build/target"
	"github.com/gx-org/fuse/build/tir"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Module is a set of primitive functions compiled for the same target.
type Module struct {
	// Name of the module.
	Name string
	// Kind is the module kind of the target.
	Kind string
	// Alignment of the buffers of the module, in bytes.
	Alignment int
	// Funcs are the compiled functions, in the order of the fusions.
	Funcs []*tir.PrimFunc
	// Entry is the index of the entry function in Funcs.
	Entry int
}

// Func returns a function of the module given its name.
func (m *Module) Func(name string) *tir.PrimFunc {
	for _, fn := range m.Funcs {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// EntryFunc returns the entry function of the module.
func (m *Module) EntryFunc() *tir.PrimFunc {
	if m.Entry < 0 || m.Entry >= len(m.Funcs) {
		return nil
	}
	return m.Funcs[m.Entry]
}

func (m *Module) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s @%s (alignment %d)\n", m.Name, m.Kind, m.Alignment)
	for _, fn := range m.Funcs {
		b.WriteString(fn.String())
		b.WriteString("\n")
	}
	return b.String()
}

type (
	// Option configures the compilation of a module.
	Option interface {
		moduleOption()
	}

	// ParallelismOption sets the maximum number of fusions lowered concurrently.
	ParallelismOption struct {
		N int
	}

	// SkipFailedOption drops the fusions failing to lower instead of failing the compilation.
	SkipFailedOption struct{}

	// EntryOption sets the name of the entry function.
	EntryOption struct {
		Name string
	}

	// LowerOption passes options to all the engines lowering the fusions.
	LowerOption struct {
		Options []lower.Option
	}

	// LoggerOption sets the logger of the compilation.
	LoggerOption struct {
		Logger *slog.Logger
	}

	// TargetOption sets the target of the module.
	TargetOption struct {
		Target *target.Target
	}
)

func (ParallelismOption) moduleOption() {}
func (SkipFailedOption) moduleOption()  {}
func (EntryOption) moduleOption()       {}
func (LowerOption) moduleOption()       {}
func (LoggerOption) moduleOption()      {}
func (TargetOption) moduleOption()      {}

// Parallelism returns an option to lower at most n fusions concurrently.
func Parallelism(n int) Option {
	return ParallelismOption{N: n}
}

// SkipFailed returns an option to drop the fusions failing to lower.
func SkipFailed() Option {
	return SkipFailedOption{}
}

// Entry returns an option to set the entry function of the module.
func Entry(name string) Option {
	return EntryOption{Name: name}
}

// LowerOptions returns an option to configure the lowering engines.
func LowerOptions(opts ...lower.Option) Option {
	return LowerOption{Options: opts}
}

// Logger returns an option to set the logger of the compilation.
func Logger(logger *slog.Logger) Option {
	return LoggerOption{Logger: logger}
}

// Target returns an option to set the target of the module.
func Target(t *target.Target) Option {
	return TargetOption{Target: t}
}

type compiler struct {
	name        string
	parallelism int
	skipFailed  bool
	entry       string
	lowerOpts   []lower.Option
	logger      *slog.Logger
	target      *target.Target
}

func (c *compiler) processOptions(options []Option) error {
	for _, option := range options {
		switch optionT := option.(type) {
		case ParallelismOption:
			if optionT.N < 1 {
				return errors.Errorf("invalid parallelism %d", optionT.N)
			}
			c.parallelism = optionT.N
		case SkipFailedOption:
			c.skipFailed = true
		case EntryOption:
			c.entry = optionT.Name
		case LowerOption:
			c.lowerOpts = append(c.lowerOpts, optionT.Options...)
		case LoggerOption:
			c.logger = optionT.Logger
		case TargetOption:
			if optionT.Target == nil {
				return errors.Errorf("nil target")
			}
			c.target = optionT.Target
		default:
			return errors.Errorf("option of type %T not supported", optionT)
		}
	}
	return nil
}

// Compile lowers a set of fusions into a module.
// Every fusion is lowered by its own engine, concurrently with the others.
// The functions of the module are in the same order as the fusions.
func Compile(ctx context.Context, name string, fusions []*graph.Fusion, options ...Option) (*Module, error) {
	c := &compiler{
		name:        name,
		parallelism: runtime.GOMAXPROCS(0),
	}
	if err := c.processOptions(options); err != nil {
		return nil, err
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.target == nil {
		c.target = target.Host()
	}
	if err := c.check(fusions); err != nil {
		return nil, err
	}
	funcs, err := c.lowerAll(ctx, fusions)
	if err != nil {
		return nil, err
	}
	mod := &Module{
		Name:      name,
		Kind:      c.target.ModuleKind,
		Alignment: c.target.Alignment,
		Funcs:     funcs,
	}
	if mod.Entry, err = c.entryIndex(funcs); err != nil {
		return nil, err
	}
	c.logger.Info("module compiled", "module", name, "kind", mod.Kind, "functions", len(funcs))
	return mod, nil
}

func (c *compiler) check(fusions []*graph.Fusion) error {
	if len(fusions) == 0 {
		return errors.Errorf("module %s: no fusion to compile", c.name)
	}
	var errs error
	seen := make(map[string]bool)
	for _, fusion := range fusions {
		if seen[fusion.Name] {
			errs = multierr.Append(errs, errors.Errorf("module %s: fusion %s defined more than once", c.name, fusion.Name))
		}
		seen[fusion.Name] = true
		if fusion.ModuleKind != c.target.ModuleKind {
			errs = multierr.Append(errs, errors.Errorf("module %s: fusion %s has module kind %q but target %s requires %q", c.name, fusion.Name, fusion.ModuleKind, c.target.Name, c.target.ModuleKind))
		}
	}
	return errs
}

func (c *compiler) lowerAll(ctx context.Context, fusions []*graph.Fusion) ([]*tir.PrimFunc, error) {
	funcs := make([]*tir.PrimFunc, len(fusions))
	errs := make([]error, len(fusions))
	opts := append([]lower.Option{lower.WithLogger(c.logger)}, c.lowerOpts...)
	inModule := fmterr.PrefixWith("module %s: ", c.name)
	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for i, fusion := range fusions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			if funcs[i], err = lower.Fusion(fusion, opts...); err != nil {
				errs[i] = inModule(err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !c.skipFailed {
		if err := multierr.Combine(errs...); err != nil {
			return nil, err
		}
		return funcs, nil
	}
	var kept []*tir.PrimFunc
	for i, fn := range funcs {
		if errs[i] != nil {
			c.logger.Warn("fusion skipped", "module", c.name, "fusion", fusions[i].Name, "error", errs[i].Error())
			continue
		}
		kept = append(kept, fn)
	}
	if len(kept) == 0 {
		return nil, errors.Errorf("module %s: all fusions failed to lower: %v", c.name, multierr.Combine(errs...))
	}
	return kept, nil
}

func (c *compiler) entryIndex(funcs []*tir.PrimFunc) (int, error) {
	if c.entry == "" {
		return 0, nil
	}
	for i, fn := range funcs {
		if fn.Name == c.entry {
			return i, nil
		}
	}
	return -1, errors.Errorf("module %s: entry function %s not found", c.name, c.entry)
}
