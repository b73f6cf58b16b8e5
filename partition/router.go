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

package partition

import (
	"math/rand"

	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/types"
)

// Router resolves a (namespace, key, attempt) triple to a target node
// according to a ReplicaPolicy. It holds no mutable state of its own;
// all state lives in the Map it's given.
type Router struct {
	liveNodes func() []Node
	rackID    int
}

// NewRouter builds a Router. liveNodes supplies the fallback random pool
// used when a namespace's table doesn't (yet) name a live node for a
// partition; rackID is the client's own configured rack, used by
// ReplicaPreferRack.
func NewRouter(liveNodes func() []Node, rackID int) *Router {
	return &Router{liveNodes: liveNodes, rackID: rackID}
}

// Route picks the node that should receive an operation against key,
// given the replica policy and how many attempts have already been made
// (0 on the first try). A nil *Table or an empty namespace entry falls
// back to a random live node on the first attempt, and fails with
// InvalidNode on any retry — the same contract the command engine's
// retry loop depends on to eventually give up rather than loop forever.
func (r *Router) Route(m Map, namespace string, key *types.Key, rp policy.ReplicaPolicy, attempt int) (Node, error) {
	table := m[namespace]
	pid := ID(key.Digest)

	if table == nil || table.ReplicaCount() == 0 {
		if attempt == 0 {
			if n := r.randomLive(); n != nil {
				return n, nil
			}
		}
		return nil, types.ErrInvalidNode("no partition table for namespace %q", namespace)
	}

	switch rp {
	case policy.ReplicaMaster:
		n := table.Replicas[0][pid]
		if n == nil || !n.Active() {
			return nil, types.ErrInvalidNode("no master for namespace %q partition %d", namespace, pid)
		}
		return n, nil

	case policy.ReplicaPreferRack:
		if n := r.preferRack(table, namespace, pid); n != nil {
			return n, nil
		}
		fallthrough

	default: // ReplicaSequence
		count := table.ReplicaCount()
		for i := 0; i < count; i++ {
			idx := (attempt + i) % count
			n := table.Replicas[idx][pid]
			if n != nil && n.Active() {
				return n, nil
			}
		}
		if n := r.randomLive(); n != nil {
			return n, nil
		}
		return nil, types.ErrInvalidNode("no replica available for namespace %q partition %d", namespace, pid)
	}
}

// preferRack returns the replica for this partition whose rack matches
// the client's configured rack for the namespace, if any such replica is
// both assigned and active.
func (r *Router) preferRack(table *Table, namespace string, pid int) Node {
	for _, row := range table.Replicas {
		n := row[pid]
		if n == nil || !n.Active() {
			continue
		}
		if rack, ok := n.RackID(namespace); ok && rack == r.rackID {
			return n
		}
	}
	return nil
}

func (r *Router) randomLive() Node {
	nodes := r.liveNodes()
	if len(nodes) == 0 {
		return nil
	}
	return nodes[rand.Intn(len(nodes))]
}
