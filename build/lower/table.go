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

package lower

import (
	"github.com/gx-org/fuse/build/graph"
	"github.com/gx-org/fuse/build/tir"
	"github.com/pkg/errors"
)

type entry struct {
	node graph.Node
	buf  *tir.Buffer
}

// table maps nodes to their buffer.
// Iteration follows the order in which the buffers have been stored.
type table struct {
	ids     []graph.NodeID
	entries map[graph.NodeID]entry
}

func newTable() *table {
	return &table{entries: make(map[graph.NodeID]entry)}
}

// Load returns the buffer of a node.
// It is an error for two different nodes to share the same identifier.
func (t *table) Load(node graph.Node) (*tir.Buffer, bool, error) {
	e, ok := t.entries[node.ID()]
	if !ok {
		return nil, false, nil
	}
	if e.node != node {
		return nil, false, errors.Errorf("nodes %s and %s share the identifier %d: nodes of a fusion must be created by the same builder", e.node, node, node.ID())
	}
	return e.buf, true, nil
}

// Store the buffer of a node.
func (t *table) Store(node graph.Node, buf *tir.Buffer) {
	if _, in := t.entries[node.ID()]; !in {
		t.ids = append(t.ids, node.ID())
	}
	t.entries[node.ID()] = entry{node: node, buf: buf}
}

// Size returns the number of buffers in the table.
func (t *table) Size() int {
	return len(t.ids)
}

// Buffers returns all the buffers in allocation order.
func (t *table) Buffers() []*tir.Buffer {
	bufs := make([]*tir.Buffer, len(t.ids))
	for i, id := range t.ids {
		bufs[i] = t.entries[id].buf
	}
	return bufs
}
