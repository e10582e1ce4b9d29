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

// Utility fusec lowers and compiles fusions written in text files.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/gx-org/fuse/build/fmterr"
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/importers"
	"github.com/gx-org/fuse/build/importers/fusetext"
	"github.com/gx-org/fuse/build/importers/localfs"
	"github.com/gx-org/fuse/build/lower"
	"github.com/gx-org/fuse/build/module"
	"github.com/gx-org/fuse/build/target"
	"github.com/gx-org/fuse/codegen/kmodel"
	"github.com/gx-org/fuse/fmt/fmtarray"
	"github.com/gx-org/fuse/interp/tirexec"
	"github.com/gx-org/fuse/tests"
	"github.com/gx-org/fuse/tools/fuseflag"
	"github.com/gx-org/fuse/tools/fusefix"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type cli struct {
	out     io.Writer
	errOut  io.Writer
	verbose bool
	only    *[]string
	loader  *importers.CacheLoader
}

func (c *cli) logger() *slog.Logger {
	if !c.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (c *cli) newLoader() error {
	local, err := localfs.New("")
	if err != nil {
		return errors.WithMessage(err, "cannot create local importer")
	}
	testFiles, err := tests.Importer()
	if err != nil {
		return errors.WithMessage(err, "cannot register test files")
	}
	c.loader = importers.NewCacheLoader(testFiles, local)
	return nil
}

// load the fusions defined at all the paths, keeping only the fusions selected with --only.
func (c *cli) load(paths []string) ([]*graph.Fusion, error) {
	if c.loader == nil {
		if err := c.newLoader(); err != nil {
			return nil, err
		}
	}
	var fusions []*graph.Fusion
	for _, path := range paths {
		pathFusions, err := c.loader.Load(path)
		if err != nil {
			return nil, err
		}
		fusions = append(fusions, pathFusions...)
	}
	fusions = fuseflag.Filter(fusions, func(f *graph.Fusion) string { return f.Name }, *c.only)
	if len(fusions) == 0 {
		return nil, errors.Errorf("no fusion found in %v", paths)
	}
	return fusions, nil
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:           "fusec",
		Short:         "Lower and compile fusions of tensor operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log the lowering of every operation")
	c.only = fuseflag.StringList(root.PersistentFlags(), "only", "names of the fusions to process (all if empty)")
	root.AddCommand(
		c.lowerCmd(),
		c.compileCmd(),
		c.inspectCmd(),
		c.runCmd(),
		c.fixCmd(),
	)
	return root
}

func (c *cli) lowerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lower <path>...",
		Short: "Print the lowered function of every fusion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fusions, err := c.load(args)
			if err != nil {
				return err
			}
			for _, fusion := range fusions {
				fn, err := lower.Fusion(fusion, lower.WithLogger(c.logger()))
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, fn.String())
			}
			return nil
		},
	}
}

func (c *cli) compileCmd() *cobra.Command {
	var (
		output      string
		name        string
		entry       string
		skipFailed  bool
		parallelism int
		alignment   int
	)
	cmd := &cobra.Command{
		Use:   "compile <path>...",
		Short: "Compile all the fusions into a model file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.Errorf("no output file specified: please use -o to specify a model file")
			}
			fusions, err := c.load(args)
			if err != nil {
				return err
			}
			tgt := target.Host()
			if alignment != 0 {
				if tgt, err = target.CPU(alignment); err != nil {
					return err
				}
			}
			opts := []module.Option{
				module.Target(tgt),
				module.Parallelism(parallelism),
				module.Logger(c.logger()),
			}
			if skipFailed {
				opts = append(opts, module.SkipFailed())
			}
			if entry != "" {
				opts = append(opts, module.Entry(entry))
			}
			mod, err := module.Compile(cmd.Context(), name, fusions, opts...)
			if err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := kmodel.Write(f, []*module.Module{mod}, 0)
			if err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s: %d function(s), %d bytes\n", output, len(mod.Funcs), n)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "model file to write")
	flags.StringVar(&name, "name", "main", "name of the module")
	flags.StringVar(&entry, "entry", "", "name of the entry function (the first function if empty)")
	flags.BoolVar(&skipFailed, "skip-failed", false, "drop the fusions failing to lower")
	flags.IntVar(&parallelism, "parallelism", runtime.GOMAXPROCS(0), "maximum number of fusions lowered concurrently")
	flags.IntVar(&alignment, "alignment", 0, "alignment of the buffers in bytes (detected from the host if 0)")
	return cmd
}

func (c *cli) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <model>",
		Short: "Print the content of a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, err := kmodel.Inspect(data)
			if err != nil {
				return err
			}
			fmt.Fprint(c.out, info.String())
			return nil
		},
	}
}

// execute a fusion with the reference interpreter given the values of its inputs.
func (c *cli) execute(fusion *graph.Fusion, inputs []string) error {
	fn, err := lower.Fusion(fusion, lower.WithLogger(c.logger()))
	if err != nil {
		return err
	}
	params := fn.Inputs()
	if len(inputs) != len(params) {
		return errors.Errorf("fusion %s requires %d input(s) but got %d", fusion.Name, len(params), len(inputs))
	}
	raws := make([][]byte, len(params))
	for i, param := range params {
		if raws[i], err = fusetext.ParseValues(param.Shape(), inputs[i]); err != nil {
			return errors.WithMessagef(err, "fusion %s: input %d", fusion.Name, i)
		}
	}
	outs, err := tirexec.Run(fn, raws)
	if err != nil {
		return errors.WithMessagef(err, "fusion %s", fusion.Name)
	}
	for i, out := range fn.Outputs() {
		vals, err := fmtarray.SprintRaw(out.DType, outs[i], out.Dims)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: %s = %s\n", fusion.Name, out.Name, vals)
	}
	return nil
}

func (c *cli) runCmd() *cobra.Command {
	var inputs []string
	cmd := &cobra.Command{
		Use:   "run <path>...",
		Short: "Execute fusions on the host with the reference interpreter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fusions, err := c.load(args)
			if err != nil {
				return err
			}
			for _, fusion := range fusions {
				if err := c.execute(fusion, inputs); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "comma separated values of an input, in order of declaration")
	return cmd
}

func (c *cli) fixCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "fix <folder>",
		Short: "Update the expected results of the fusion test files in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fusefix.Fix(c.out, args[0], dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "print the fixed files instead of writing them")
	return cmd
}

func exit(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return
	}
	if verbose, _ := root.PersistentFlags().GetBool("verbose"); verbose {
		exit("%+v", fmterr.WithStackTrace(err))
	}
	exit("%v", err)
}
