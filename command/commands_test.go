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

package command

import (
	"testing"

	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/wire"
)

func TestReadTouchExpirationClampsToValidRange(t *testing.T) {
	cases := []struct {
		percent int
		want    uint32
	}{
		{0, 0},
		{-5, 0},
		{101, 0},
		{1, 1},
		{100, 100},
		{50, 50},
	}
	for _, c := range cases {
		p := policy.ReadPolicy{ReadTouchTTLPercent: c.percent}
		if got := readTouchExpiration(p); got != c.want {
			t.Errorf("ReadTouchTTLPercent=%d: expected %d, got %d", c.percent, c.want, got)
		}
	}
}

func TestWriteInfo3SetsUpdateOnlyOrCreateOnly(t *testing.T) {
	if got := writeInfo3(policy.WritePolicy{RecordExistsAction: policy.Update}); got != 0 {
		t.Fatalf("expected no Info3 bits for the default Update action, got 0x%x", got)
	}
	if got := writeInfo3(policy.WritePolicy{RecordExistsAction: policy.UpdateOnly}); got != wire.Info3UpdateOnly {
		t.Fatalf("expected Info3UpdateOnly for UpdateOnly, got 0x%x", got)
	}
	if got := writeInfo3(policy.WritePolicy{RecordExistsAction: policy.ReplaceOnly}); got != wire.Info3UpdateOnly {
		t.Fatalf("expected Info3UpdateOnly for ReplaceOnly, got 0x%x", got)
	}
	if got := writeInfo3(policy.WritePolicy{RecordExistsAction: policy.CreateOnly}); got != wire.Info3CreateOnly {
		t.Fatalf("expected Info3CreateOnly for CreateOnly, got 0x%x", got)
	}
}

func TestWriteInfo2AlwaysSetsWriteBit(t *testing.T) {
	got := writeInfo2(policy.WritePolicy{})
	if got&wire.Info2Write == 0 {
		t.Fatal("expected Info2Write to always be set on a write")
	}
	if got&wire.Info2DurableDelete != 0 {
		t.Fatal("expected Info2DurableDelete unset by default")
	}
	if got&wire.Info2Generation != 0 {
		t.Fatal("expected Info2Generation unset when GenerationPolicy is ignored")
	}
}

func TestWriteInfo2SetsDurableDeleteAndGeneration(t *testing.T) {
	p := policy.WritePolicy{DurableDelete: true, GenerationPolicy: policy.GenerationExpectGenEqual}
	got := writeInfo2(p)
	if got&wire.Info2DurableDelete == 0 {
		t.Fatal("expected Info2DurableDelete set when DurableDelete is true")
	}
	if got&wire.Info2Generation == 0 {
		t.Fatal("expected Info2Generation set when GenerationPolicy isn't ignored")
	}
}
