// Copyright (C) 2024 NodeDB, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package partition implements partition-id computation and replica
// selection, independent of the cluster package so it can be unit tested
// without a live tend loop. Node identity is abstracted behind the Node
// interface; the cluster package's *Node type satisfies it.
package partition

import (
	"encoding/binary"

	"github.com/nodedb/nodedb-go/types"
)

// NumPartitions is the fixed partition count every namespace is divided
// into.
const NumPartitions = 4096

// partitionMask extracts the low 12 bits of the first 4 digest bytes,
// giving a value in [0, NumPartitions).
const partitionMask = NumPartitions - 1

// Node is the subset of node identity and liveness the router needs. The
// cluster package's *Node satisfies this.
type Node interface {
	Name() string
	Active() bool
	RackID(namespace string) (int, bool)
}

// ID computes the partition a key's digest belongs to:
// little-endian u32 of the first 4 digest bytes, masked to 12 bits.
func ID(digest [types.DigestSize]byte) int {
	v := binary.LittleEndian.Uint32(digest[:4])
	return int(v & partitionMask)
}

// Table is one namespace's replica assignment: Replicas[r][p] is the
// node owning partition p at replica index r, or nil if unassigned.
// A Table is never mutated in place once published; Cluster always
// installs a fresh copy so readers never observe a partially-updated
// table.
type Table struct {
	Replicas [][]Node
}

// ReplicaCount is how many replicas this namespace has visibility into,
// i.e. len(Replicas).
func (t *Table) ReplicaCount() int {
	if t == nil {
		return 0
	}
	return len(t.Replicas)
}

// NewTable allocates a Table with replicaCount replica rows, each sized
// for NumPartitions, with every slot initially unassigned.
func NewTable(replicaCount int) *Table {
	t := &Table{Replicas: make([][]Node, replicaCount)}
	for i := range t.Replicas {
		t.Replicas[i] = make([]Node, NumPartitions)
	}
	return t
}

// Map is the cluster-wide partition map: one Table per namespace.
// Callers install a new Map atomically (see cluster.Cluster); Map itself
// does no locking.
type Map map[string]*Table
