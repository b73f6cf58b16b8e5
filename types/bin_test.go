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

package types

import "testing"

func TestNewBinNameLengthBoundary(t *testing.T) {
	ok := "123456789012345" // 15 bytes, exactly MaxBinNameLen
	if _, err := NewBin(ok, 1); err != nil {
		t.Fatalf("expected 15-byte bin name to be accepted: %v", err)
	}
	tooLong := ok + "x"
	if _, err := NewBin(tooLong, 1); err == nil {
		t.Fatal("expected 16-byte bin name to be rejected")
	}
}
