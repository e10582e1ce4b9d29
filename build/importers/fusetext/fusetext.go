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

// Package fusetext parses fusions written in a line-based text format.
//
// Example:
//
//	# Comments start with a hash.
//	fusion scale cpu
//	x = input f32[2,3]
//	c = const f32[3] 1,2,3
//	b = broadcast shape=[2,3] dims=[1] c
//	y = mul x b
//	s = reduce op=sum axes=[1] keepdims=false y
//	out s
//
// A fusion starts with a fusion line giving its name and module kind and ends
// with an out line designating its output node. Every other line defines a
// node: an input, a constant, or an operation followed by its attributes
// (key=value) and the identifiers of its arguments.
package fusetext

import (
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/fuse/build/fmterr"
	"github.com/gx-org/fuse/build/graph"
	"github.com/pkg/errors"
)

// Ext is the file extension of fusion text files.
const Ext = ".fuse"

var dtypeNames = map[string]dtype.DataType{
	"bool": dtype.Bool,
	"bf16": dtype.Bfloat16,
	"f32":  dtype.Float32,
	"f64":  dtype.Float64,
	"i32":  dtype.Int32,
	"i64":  dtype.Int64,
	"u32":  dtype.Uint32,
	"u64":  dtype.Uint64,
}

// fusion is the fusion being parsed.
type fusion struct {
	pos   fmterr.Pos
	name  string
	kind  string
	bld   *graph.Builder
	nodes map[string]graph.Node
	out   graph.Node
	// broken are the ids of the nodes which failed to parse.
	// References to them are not reported again.
	broken map[string]bool
	// failed is true if any line of the fusion has an error.
	failed bool
}

var errBrokenNode = errors.New("reference to a node with an error")

type parser struct {
	file    string
	errs    fmterr.Errors
	cur     *fusion
	fusions []*graph.Fusion
	names   map[string]bool
}

// Parse returns the fusions defined in a source.
// The name of the source is used to report errors.
// All the errors of the source are returned.
func Parse(name string, src []byte) ([]*graph.Fusion, error) {
	p := &parser{file: name, names: make(map[string]bool)}
	for i, line := range strings.Split(string(src), "\n") {
		p.line(fmterr.Pos{File: name, Line: i + 1}, line)
	}
	p.close()
	if !p.errs.Empty() {
		return nil, p.errs.ToError()
	}
	return p.fusions, nil
}

func (p *parser) errorf(pos fmterr.Pos, format string, a ...any) {
	p.errs.Append(pos.Errorf(format, a...))
	if p.cur != nil {
		p.cur.failed = true
	}
}

func (p *parser) line(pos fmterr.Pos, line string) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "fusion":
		p.open(pos, fields[1:])
		return
	case "out":
		p.setOut(pos, fields[1:])
		return
	}
	if p.cur == nil {
		p.errorf(pos, "node defined outside of a fusion")
		return
	}
	if len(fields) < 3 || fields[1] != "=" {
		p.errorf(pos, "invalid node definition %q: want <id> = <op> ...", strings.TrimSpace(line))
		return
	}
	id := fields[0]
	if _, exists := p.cur.nodes[id]; exists {
		p.errorf(pos, "node %s already defined", id)
		return
	}
	node, err := p.cur.node(id, fields[2], fields[3:])
	if err != nil {
		p.cur.broken[id] = true
		if errors.Is(err, errBrokenNode) {
			p.cur.failed = true
			return
		}
		p.errorf(pos, "node %s: %v", id, err)
		return
	}
	p.cur.nodes[id] = node
}

func (p *parser) open(pos fmterr.Pos, args []string) {
	p.close()
	if len(args) != 2 {
		p.errorf(pos, "invalid fusion declaration: want fusion <name> <module kind>")
		// Nodes are parsed in a fusion marked as failed to report their errors.
		args = []string{"", ""}
	}
	p.cur = &fusion{
		pos:    pos,
		name:   args[0],
		kind:   args[1],
		bld:    graph.NewBuilder(),
		nodes:  make(map[string]graph.Node),
		broken: make(map[string]bool),
	}
	if args[0] == "" {
		p.cur.failed = true
		return
	}
	if p.names[args[0]] {
		p.errorf(pos, "fusion %s already defined", args[0])
	}
	p.names[args[0]] = true
}

func (p *parser) setOut(pos fmterr.Pos, args []string) {
	if p.cur == nil {
		p.errorf(pos, "output declared outside of a fusion")
		return
	}
	if len(args) != 1 {
		p.errorf(pos, "invalid output declaration: want out <id>")
		return
	}
	if p.cur.out != nil {
		p.errorf(pos, "fusion %s has more than one output", p.cur.name)
		return
	}
	node, ok := p.cur.nodes[args[0]]
	if !ok && p.cur.broken[args[0]] {
		p.cur.failed = true
		return
	}
	if !ok {
		p.errorf(pos, "undefined node %s", args[0])
		return
	}
	p.cur.out = node
}

// close the current fusion.
func (p *parser) close() {
	cur := p.cur
	if cur == nil {
		return
	}
	p.cur = nil
	if cur.failed {
		return
	}
	if cur.out == nil {
		p.errs.Append(cur.pos.Errorf("fusion %s has no output", cur.name))
		return
	}
	p.fusions = append(p.fusions, cur.bld.Fusion(cur.name, cur.kind, cur.out))
}

func (f *fusion) args(ids []string) ([]graph.Node, error) {
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		node, ok := f.nodes[id]
		if !ok && f.broken[id] {
			return nil, errBrokenNode
		}
		if !ok {
			return nil, errors.Errorf("undefined node %s", id)
		}
		nodes[i] = node
	}
	return nodes, nil
}

// node builds a node given an operator name and the remaining fields of its line.
func (f *fusion) node(id, opName string, fields []string) (graph.Node, error) {
	switch opName {
	case "input":
		if len(fields) != 1 {
			return nil, errors.Errorf("want input <type>")
		}
		sh, err := ParseType(fields[0])
		if err != nil {
			return nil, err
		}
		return f.bld.Input(id, sh), nil
	case "const":
		if len(fields) != 2 {
			return nil, errors.Errorf("want const <type> <values>")
		}
		return f.constant(fields[0], fields[1])
	}
	attrs, ids, err := splitAttrs(fields)
	if err != nil {
		return nil, err
	}
	args, err := f.args(ids)
	if err != nil {
		return nil, err
	}
	op, err := f.operation(opName, attrs, args)
	if err != nil {
		return nil, err
	}
	return op, attrs.checkUsed()
}
