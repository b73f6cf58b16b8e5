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
	"testing"
	"time"

	"github.com/nodedb/nodedb-go/partition"
	"github.com/nodedb/nodedb-go/pool"
)

// fakeNode is a minimal connProvider, letting AssignPartitions and
// Tracker be exercised without a live cluster.
type fakeNode struct {
	name   string
	active bool
}

func (n *fakeNode) Name() string                               { return n.name }
func (n *fakeNode) Active() bool                                { return n.active }
func (n *fakeNode) RackID(string) (int, bool)                   { return 0, false }
func (n *fakeNode) GetConnection(time.Duration) (*pool.Pooled, error) { return nil, nil }
func (n *fakeNode) Info(time.Duration, ...string) (map[string]string, error) {
	return nil, nil
}

func buildTestMap(nodes ...*fakeNode) partition.Map {
	table := partition.NewTable(2)
	for pid := 0; pid < partition.NumPartitions; pid++ {
		table.Replicas[0][pid] = nodes[pid%len(nodes)]
	}
	return partition.Map{"test": table}
}

func TestAssignPartitionsRoutesEveryPartition(t *testing.T) {
	a := &fakeNode{name: "a", active: true}
	b := &fakeNode{name: "b", active: true}
	parts := buildTestMap(a, b)

	tr, err := AssignPartitions(parts, "test", PartitionFilter{Kind: FilterAll})
	if err != nil {
		t.Fatalf("AssignPartitions: %v", err)
	}

	groups := tr.NodeGroups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 node groups, got %d", len(groups))
	}

	total := 0
	for _, np := range groups {
		total += len(np.Full) + len(np.Partial)
		if len(np.Partial) != 0 {
			t.Fatalf("expected no partial partitions on a fresh filter, got %d", len(np.Partial))
		}
	}
	if total != partition.NumPartitions {
		t.Fatalf("expected %d partitions assigned, got %d", partition.NumPartitions, total)
	}
}

func TestAssignPartitionsSkipsInactiveNodes(t *testing.T) {
	a := &fakeNode{name: "a", active: true}
	b := &fakeNode{name: "b", active: false}
	parts := buildTestMap(a, b)

	tr, err := AssignPartitions(parts, "test", PartitionFilter{Kind: FilterAll})
	if err != nil {
		t.Fatalf("AssignPartitions: %v", err)
	}
	groups := tr.NodeGroups()
	if len(groups) != 1 || groups[0].Node.Name() != "a" {
		t.Fatalf("expected only the active node to receive partitions, got %+v", groups)
	}
}

func TestAssignPartitionsUnknownNamespace(t *testing.T) {
	a := &fakeNode{name: "a", active: true}
	parts := buildTestMap(a)

	if _, err := AssignPartitions(parts, "missing", PartitionFilter{Kind: FilterAll}); err == nil {
		t.Fatal("expected an error for a namespace with no partition table")
	}
}

func TestAssignPartitionsResumeMarksPartial(t *testing.T) {
	a := &fakeNode{name: "a", active: true}
	parts := buildTestMap(a)

	filter := PartitionFilter{
		Kind:   FilterByIDs,
		IDs:    []int{0, 1, 2},
		Resume: map[int][20]byte{1: {1, 2, 3}},
	}
	tr, err := AssignPartitions(parts, "test", filter)
	if err != nil {
		t.Fatalf("AssignPartitions: %v", err)
	}
	np := tr.NodeGroups()[0]
	if len(np.Full) != 2 || len(np.Partial) != 1 {
		t.Fatalf("expected 2 full + 1 partial, got %d full, %d partial", len(np.Full), len(np.Partial))
	}
	if np.Partial[0].ID != 1 || np.Partial[0].Digest == nil {
		t.Fatalf("partition 1 should carry its resume digest, got %+v", np.Partial[0])
	}
}

func TestTrackerIsCompleteAndResumeSnapshot(t *testing.T) {
	a := &fakeNode{name: "a", active: true}
	parts := buildTestMap(a)
	filter := PartitionFilter{Kind: FilterByIDs, IDs: []int{0, 1}}

	tr, err := AssignPartitions(parts, "test", filter)
	if err != nil {
		t.Fatalf("AssignPartitions: %v", err)
	}
	if tr.IsComplete() {
		t.Fatal("tracker should not be complete before any partition is marked done")
	}

	tr.markDone("a", 0)
	if tr.IsComplete() {
		t.Fatal("tracker should not be complete with partition 1 still outstanding")
	}

	digest := [20]byte{9, 9, 9}
	tr.markDigest("a", 1, digest)
	resume := tr.PartitionFilterForResume()
	if len(resume.IDs) != 1 || resume.IDs[0] != 1 {
		t.Fatalf("expected resume to carry only the outstanding partition, got %+v", resume.IDs)
	}
	if resume.Resume[1] != digest {
		t.Fatalf("expected resume digest to be preserved, got %v", resume.Resume[1])
	}

	tr.markDone("a", 1)
	if !tr.IsComplete() {
		t.Fatal("tracker should be complete once every partition is marked done")
	}
}
