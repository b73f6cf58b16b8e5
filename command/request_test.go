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

	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

func TestRequestBuildRoundTrips(t *testing.T) {
	key, err := types.NewKey("test", "demo", types.StringValue("k1"))
	if err != nil {
		t.Fatal(err)
	}

	var rq request
	rq.addKeyFields(key)
	particle, payload := wire.EncodeValue(types.IntegerValue(7))
	rq.addOp(wire.OpWrite, particle, "counter", payload)

	body := rq.build(messageOpts{Info2: wire.Info2Write})

	r := wire.NewReader(body)
	hdr, err := wire.ReadMessageHeader(r)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.NFields != 3 {
		t.Fatalf("expected 3 fields (namespace, set, digest), got %d", hdr.NFields)
	}
	if hdr.NOps != 1 {
		t.Fatalf("expected 1 op, got %d", hdr.NOps)
	}

	if err := skipFields(hdr, r); err != nil {
		t.Fatal(err)
	}
	bins, err := readBins(hdr, r)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := bins["counter"].(types.IntegerValue)
	if !ok || v != 7 {
		t.Fatalf("expected counter=7, got %v", bins["counter"])
	}
}

func TestReadBinsFoldsRepeatedNameIntoList(t *testing.T) {
	var ops wire.Buffer
	p1, v1 := wire.EncodeValue(types.IntegerValue(1))
	p2, v2 := wire.EncodeValue(types.IntegerValue(2))
	wire.WriteOp(&ops, wire.OpCDTRead, p1, "list", v1)
	wire.WriteOp(&ops, wire.OpCDTRead, p2, "list", v2)

	hdr := wire.MessageHeader{NOps: 2}
	r := wire.NewReader(ops.Bytes())
	bins, err := readBins(hdr, r)
	if err != nil {
		t.Fatal(err)
	}
	list, ok := bins["list"].(types.ListValue)
	if !ok || len(list) != 2 {
		t.Fatalf("expected a 2-element ListValue, got %v (%T)", bins["list"], bins["list"])
	}
}

func TestSkipFieldsAdvancesPastEachField(t *testing.T) {
	var fields wire.Buffer
	wire.WriteFieldString(&fields, wire.FieldNamespace, "ns")
	wire.WriteFieldString(&fields, wire.FieldSetName, "set")

	hdr := wire.MessageHeader{NFields: 2}
	r := wire.NewReader(fields.Bytes())
	if err := skipFields(hdr, r); err != nil {
		t.Fatal(err)
	}
	if len(r.Remaining()) != 0 {
		t.Fatalf("expected reader fully consumed, %d bytes remaining", len(r.Remaining()))
	}
}
