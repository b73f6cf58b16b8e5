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

import "testing"

func TestIDMasksToTwelveBits(t *testing.T) {
	var digest [20]byte
	digest[0], digest[1], digest[2], digest[3] = 0xff, 0xff, 0xff, 0xff
	if got := ID(digest); got != NumPartitions-1 {
		t.Fatalf("expected all-ones digest to mask to %d, got %d", NumPartitions-1, got)
	}
}

func TestIDIsLittleEndian(t *testing.T) {
	var digest [20]byte
	digest[0] = 0x34 // low byte of the little-endian u32
	if got := ID(digest); got != 0x34 {
		t.Fatalf("expected partition id 0x34, got %#x", got)
	}
}

func TestNewTableAllocatesEveryReplicaRow(t *testing.T) {
	tbl := NewTable(3)
	if tbl.ReplicaCount() != 3 {
		t.Fatalf("expected 3 replica rows, got %d", tbl.ReplicaCount())
	}
	for _, row := range tbl.Replicas {
		if len(row) != NumPartitions {
			t.Fatalf("expected %d partitions per row, got %d", NumPartitions, len(row))
		}
	}
}
