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

import (
	"testing"
	"time"
)

func TestRecordNeverExpires(t *testing.T) {
	r := &Record{VoidTime: 0}
	if ttl := r.TimeToLive(); ttl != nil {
		t.Fatalf("expected nil TTL for VoidTime=0, got %v", *ttl)
	}
	if _, expires := r.Expiry(); expires {
		t.Fatal("VoidTime=0 must report expires=false")
	}
}

func TestRecordTTLClampedOnSkew(t *testing.T) {
	past := uint32(time.Since(CitrusleafEpoch).Seconds()) - 3600
	r := &Record{VoidTime: past}
	ttl := r.TimeToLive()
	if ttl == nil {
		t.Fatal("expected non-nil TTL")
	}
	if *ttl != time.Second {
		t.Fatalf("expected clamp to 1s, got %v", *ttl)
	}
}

func TestRecordAddBinLazyInit(t *testing.T) {
	var r Record
	r.AddBin("a", IntegerValue(1))
	if r.Bins["a"] != IntegerValue(1) {
		t.Fatalf("bin not set: %+v", r.Bins)
	}
	r.AddBin("a", IntegerValue(2))
	if r.Bins["a"] != IntegerValue(2) {
		t.Fatal("AddBin must overwrite an existing bin")
	}
}
