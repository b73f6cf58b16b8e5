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

package stream

import (
	"sync"
	"time"

	"github.com/nodedb/nodedb-go/partition"
	"github.com/nodedb/nodedb-go/pool"
	"github.com/nodedb/nodedb-go/types"
)

// connProvider is the slice of cluster.Node a stream worker needs: a
// connection to write the request on and issue an abort against.
type connProvider interface {
	partition.Node
	GetConnection(timeout time.Duration) (*pool.Pooled, error)
	Info(timeout time.Duration, keys ...string) (map[string]string, error)
}

// PartitionStatus tracks one partition's progress within a single scan
// or query, carrying enough state (the last digest returned) to resume
// the stream on a new client instance.
type PartitionStatus struct {
	ID     int
	Digest *[types.DigestSize]byte
	Done   bool
}

// PartitionFilterKind selects which of a namespace's partitions a scan
// or query targets.
type PartitionFilterKind int

const (
	FilterAll PartitionFilterKind = iota
	FilterRange
	FilterByIDs
	FilterFromDigest
)

// PartitionFilter narrows a stream to a subset of partitions. Resume
// carries per-partition last-seen digests independent of Kind: a fresh
// scan leaves it nil, and PartitionFilterForResume populates it from a
// Tracker's in-flight state. FilterFromDigest targets every partition
// (like FilterAll) but is expected to arrive with Resume already
// populated from a prior snapshot — the Kind exists to name the intent
// for callers restoring one, not to change which partitions are picked.
type PartitionFilter struct {
	Kind   PartitionFilterKind
	Begin  int // FilterRange
	Count  int // FilterRange
	IDs    []int // FilterByIDs
	Resume map[int][types.DigestSize]byte
}

func (f PartitionFilter) targetIDs() []int {
	switch f.Kind {
	case FilterByIDs:
		return append([]int(nil), f.IDs...)
	case FilterRange:
		ids := make([]int, 0, f.Count)
		for i := 0; i < f.Count; i++ {
			ids = append(ids, (f.Begin+i)%partition.NumPartitions)
		}
		return ids
	default: // FilterAll, FilterFromDigest
		ids := make([]int, partition.NumPartitions)
		for i := range ids {
			ids[i] = i
		}
		return ids
	}
}

// NodePartitions is one node's share of a tracked stream: the
// partitions it owns outright (Full) and those resumed mid-stream from
// a prior digest (Partial).
type NodePartitions struct {
	Node    connProvider
	Full    []*PartitionStatus
	Partial []*PartitionStatus
}

// Tracker records per-partition completion as per-node workers report
// it, and can snapshot the still-incomplete partitions for resume.
type Tracker struct {
	mu     sync.Mutex
	byNode map[string]*NodePartitions
}

// AssignPartitions builds a Tracker from an already-fetched partition
// map, routing every partition filter names to the node owning its
// master replica. It takes a partition.Map rather than a *cluster.Cluster
// so it can be unit tested against a hand-built map, the same reasoning
// the partition package itself is split out for.
func AssignPartitions(parts partition.Map, namespace string, filter PartitionFilter) (*Tracker, error) {
	table := parts[namespace]
	if table.ReplicaCount() == 0 {
		return nil, types.ErrInvalidNode("no partition table for namespace %q", namespace)
	}

	t := &Tracker{byNode: make(map[string]*NodePartitions)}
	for _, pid := range filter.targetIDs() {
		n := table.Replicas[0][pid]
		if n == nil || !n.Active() {
			continue
		}
		cp, ok := n.(connProvider)
		if !ok {
			return nil, types.ErrInvalidNode("node %q cannot provide a connection", n.Name())
		}
		np := t.nodeFor(cp)
		status := &PartitionStatus{ID: pid}
		if d, ok := filter.Resume[pid]; ok {
			dd := d
			status.Digest = &dd
			np.Partial = append(np.Partial, status)
		} else {
			np.Full = append(np.Full, status)
		}
	}
	if len(t.byNode) == 0 {
		return nil, types.ErrInvalidNode("no live node owns any targeted partition for namespace %q", namespace)
	}
	return t, nil
}

func (t *Tracker) nodeFor(n connProvider) *NodePartitions {
	np, ok := t.byNode[n.Name()]
	if !ok {
		np = &NodePartitions{Node: n}
		t.byNode[n.Name()] = np
	}
	return np
}

// NodeGroups returns every node's assigned share, for the caller to
// spawn one worker per entry.
func (t *Tracker) NodeGroups() []*NodePartitions {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*NodePartitions, 0, len(t.byNode))
	for _, np := range t.byNode {
		out = append(out, np)
	}
	return out
}

// IsComplete reports whether every tracked partition has been reported
// done by its owning node.
func (t *Tracker) IsComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, np := range t.byNode {
		for _, s := range np.Full {
			if !s.Done {
				return false
			}
		}
		for _, s := range np.Partial {
			if !s.Done {
				return false
			}
		}
	}
	return true
}

func (t *Tracker) find(nodeName string, pid int) *PartitionStatus {
	np, ok := t.byNode[nodeName]
	if !ok {
		return nil
	}
	for _, s := range np.Full {
		if s.ID == pid {
			return s
		}
	}
	for _, s := range np.Partial {
		if s.ID == pid {
			return s
		}
	}
	return nil
}

func (t *Tracker) markDone(nodeName string, pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.find(nodeName, pid); s != nil {
		s.Done = true
	}
}

func (t *Tracker) markDigest(nodeName string, pid int, digest [types.DigestSize]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.find(nodeName, pid); s != nil {
		d := digest
		s.Digest = &d
	}
}

// PartitionFilterForResume snapshots every not-yet-done partition,
// suitable for restarting the stream — on this client or a new one —
// from where it left off.
func (t *Tracker) PartitionFilterForResume() PartitionFilter {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []int
	resume := make(map[int][types.DigestSize]byte)
	collect := func(statuses []*PartitionStatus) {
		for _, s := range statuses {
			if s.Done {
				continue
			}
			ids = append(ids, s.ID)
			if s.Digest != nil {
				resume[s.ID] = *s.Digest
			}
		}
	}
	for _, np := range t.byNode {
		collect(np.Full)
		collect(np.Partial)
	}
	return PartitionFilter{Kind: FilterByIDs, IDs: ids, Resume: resume}
}
