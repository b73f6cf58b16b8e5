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

package cluster

import (
	"testing"

	"github.com/nodedb/nodedb-go/types"
)

func TestNewNodeStartsActiveWithNoRacksOrFeatures(t *testing.T) {
	n := newNode("BB9020011AC4202", types.Host{Address: "127.0.0.1", Port: 3000}, nil)
	if !n.Active() {
		t.Fatal("a freshly discovered node should start active")
	}
	if n.Name() != "BB9020011AC4202" {
		t.Fatalf("expected name to round-trip, got %q", n.Name())
	}
	if n.SupportsFeature("pipelining") {
		t.Fatal("a node with no refresh yet should support no features")
	}
	if _, ok := n.RackID("test"); ok {
		t.Fatal("a node with no refresh yet should have no rack assignment")
	}
}

func TestNodeDeactivateIsObservedByActive(t *testing.T) {
	n := newNode("n1", types.Host{}, nil)
	n.deactivate()
	if n.Active() {
		t.Fatal("deactivate should flip Active to false")
	}
}

func TestNodeFailureCounterTracksBumpsAndResets(t *testing.T) {
	n := newNode("n1", types.Host{}, nil)
	if n.Failures() != 0 {
		t.Fatalf("expected 0 failures initially, got %d", n.Failures())
	}
	n.bumpFailure()
	n.bumpFailure()
	if got := n.Failures(); got != 2 {
		t.Fatalf("expected 2 failures after two bumps, got %d", got)
	}
	n.RefreshReset()
	if got := n.Failures(); got != 0 {
		t.Fatalf("expected RefreshReset to clear the counter, got %d", got)
	}
}

func TestSetPartitionGenerationReportsChange(t *testing.T) {
	n := newNode("n1", types.Host{}, nil)
	if !n.setPartitionGeneration(1) {
		t.Fatal("first generation set from the zero value should report a change")
	}
	if n.setPartitionGeneration(1) {
		t.Fatal("setting the same generation again should report no change")
	}
	if !n.setPartitionGeneration(2) {
		t.Fatal("a new generation should report a change")
	}
}

func TestSetRebalanceGenerationReportsChange(t *testing.T) {
	n := newNode("n1", types.Host{}, nil)
	if !n.setRebalanceGeneration(5) {
		t.Fatal("first generation set from the zero value should report a change")
	}
	if n.setRebalanceGeneration(5) {
		t.Fatal("setting the same generation again should report no change")
	}
}

func TestParseFeaturesSplitsOnSemicolonAndSkipsEmpty(t *testing.T) {
	got := parseFeatures("pipelining;geo;;batch-index")
	want := []string{"pipelining", "geo", "batch-index"}
	if len(got) != len(want) {
		t.Fatalf("expected %d features, got %d (%v)", len(want), len(got), got)
	}
	for _, f := range want {
		if !got[f] {
			t.Fatalf("expected feature %q to be set", f)
		}
	}
}

func TestParseFeaturesEmptyString(t *testing.T) {
	got := parseFeatures("")
	if len(got) != 0 {
		t.Fatalf("expected no features from an empty string, got %v", got)
	}
}

func TestParseRacksParsesNamespacePairs(t *testing.T) {
	got := parseRacks("test:1,bar:2")
	if got["test"] != 1 || got["bar"] != 2 {
		t.Fatalf("expected {test:1, bar:2}, got %v", got)
	}
}

func TestParseRacksSkipsMalformedEntries(t *testing.T) {
	got := parseRacks("test:1,,malformed,bar:notanumber,baz:3")
	if len(got) != 2 {
		t.Fatalf("expected only the well-formed entries to survive, got %v", got)
	}
	if got["test"] != 1 || got["baz"] != 3 {
		t.Fatalf("expected {test:1, baz:3}, got %v", got)
	}
}
