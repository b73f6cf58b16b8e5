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
	"testing"

	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/types"
)

type fakeNode struct {
	name   string
	active bool
	racks  map[string]int
}

func (f *fakeNode) Name() string   { return f.name }
func (f *fakeNode) Active() bool   { return f.active }
func (f *fakeNode) RackID(ns string) (int, bool) {
	r, ok := f.racks[ns]
	return r, ok
}

func testKey(t *testing.T, s string) *types.Key {
	t.Helper()
	k, err := types.NewKey("ns", "set", types.StringValue(s))
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestRouteMasterIsDeterministic(t *testing.T) {
	n0 := &fakeNode{name: "n0", active: true}
	n1 := &fakeNode{name: "n1", active: true}
	table := NewTable(2)
	key := testKey(t, "somekey")
	pid := ID(key.Digest)
	table.Replicas[0][pid] = n0
	table.Replicas[1][pid] = n1

	m := Map{"ns": table}
	r := NewRouter(func() []Node { return []Node{n0, n1} }, 0)

	got, err := r.Route(m, "ns", key, policy.ReplicaMaster, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != Node(n0) {
		t.Fatalf("expected master n0, got %v", got)
	}
	// Repeated calls must be stable.
	got2, err := r.Route(m, "ns", key, policy.ReplicaMaster, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got2 != Node(n0) {
		t.Fatal("Master policy must always return the same replica regardless of attempt")
	}
}

func TestRouteSequenceAdvancesOnRetry(t *testing.T) {
	n0 := &fakeNode{name: "n0", active: true}
	n1 := &fakeNode{name: "n1", active: true}
	table := NewTable(2)
	key := testKey(t, "somekey")
	pid := ID(key.Digest)
	table.Replicas[0][pid] = n0
	table.Replicas[1][pid] = n1
	m := Map{"ns": table}
	r := NewRouter(func() []Node { return []Node{n0, n1} }, 0)

	first, err := r.Route(m, "ns", key, policy.ReplicaSequence, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Route(m, "ns", key, policy.ReplicaSequence, 1)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("Sequence policy must rotate replicas across attempts")
	}
}

func TestRouteSequenceSkipsUnavailable(t *testing.T) {
	n0 := &fakeNode{name: "n0", active: false}
	n1 := &fakeNode{name: "n1", active: true}
	table := NewTable(2)
	key := testKey(t, "somekey")
	pid := ID(key.Digest)
	table.Replicas[0][pid] = n0
	table.Replicas[1][pid] = n1
	m := Map{"ns": table}
	r := NewRouter(func() []Node { return []Node{n1} }, 0)

	got, err := r.Route(m, "ns", key, policy.ReplicaSequence, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != Node(n1) {
		t.Fatal("expected the sequence policy to skip the inactive replica")
	}
}

func TestRouteMissingNamespaceFirstAttemptRandom(t *testing.T) {
	n0 := &fakeNode{name: "n0", active: true}
	m := Map{}
	r := NewRouter(func() []Node { return []Node{n0} }, 0)

	got, err := r.Route(m, "missing-ns", testKey(t, "k"), policy.ReplicaSequence, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != Node(n0) {
		t.Fatal("expected fallback to the only live node")
	}
}

func TestRouteMissingNamespaceRetryFails(t *testing.T) {
	n0 := &fakeNode{name: "n0", active: true}
	m := Map{}
	r := NewRouter(func() []Node { return []Node{n0} }, 0)

	if _, err := r.Route(m, "missing-ns", testKey(t, "k"), policy.ReplicaSequence, 1); err == nil {
		t.Fatal("expected InvalidNode on retry against an unknown namespace")
	}
}

func TestRoutePreferRackFallsBackToSequence(t *testing.T) {
	n0 := &fakeNode{name: "n0", active: true, racks: map[string]int{"ns": 2}}
	n1 := &fakeNode{name: "n1", active: true, racks: map[string]int{"ns": 7}}
	table := NewTable(2)
	key := testKey(t, "somekey")
	pid := ID(key.Digest)
	table.Replicas[0][pid] = n0
	table.Replicas[1][pid] = n1
	m := Map{"ns": table}

	r := NewRouter(func() []Node { return []Node{n0, n1} }, 7)
	got, err := r.Route(m, "ns", key, policy.ReplicaPreferRack, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != Node(n1) {
		t.Fatal("expected the rack-matching replica to be preferred")
	}

	rNoMatch := NewRouter(func() []Node { return []Node{n0, n1} }, 99)
	got2, err := rNoMatch.Route(m, "ns", key, policy.ReplicaPreferRack, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got2 != Node(n0) {
		t.Fatal("expected fall back to Sequence (replica 0) when no rack matches")
	}
}
