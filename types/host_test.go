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

func TestParseSeedsBareHost(t *testing.T) {
	hosts, err := ParseSeeds("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if len(hosts) != 1 || hosts[0].Address != "127.0.0.1" || hosts[0].Port != DefaultPort {
		t.Fatalf("unexpected parse: %+v", hosts)
	}
}

func TestParseSeedsHostPort(t *testing.T) {
	hosts, err := ParseSeeds("10.0.0.1:3100,10.0.0.2:3200")
	if err != nil {
		t.Fatal(err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(hosts))
	}
	if hosts[0].Port != 3100 || hosts[1].Port != 3200 {
		t.Fatalf("unexpected ports: %+v", hosts)
	}
}

func TestParseSeedsHostTLSNamePort(t *testing.T) {
	hosts, err := ParseSeeds("db1.internal:db1-tls:3000")
	if err != nil {
		t.Fatal(err)
	}
	if hosts[0].TLSName != "db1-tls" || hosts[0].Port != 3000 {
		t.Fatalf("unexpected parse: %+v", hosts[0])
	}
}

func TestParseSeedsIPv6(t *testing.T) {
	hosts, err := ParseSeeds("[::1]:3000")
	if err != nil {
		t.Fatal(err)
	}
	if hosts[0].Address != "::1" || hosts[0].Port != 3000 {
		t.Fatalf("unexpected parse: %+v", hosts[0])
	}
}

func TestParseSeedsIPv6WithTLSName(t *testing.T) {
	hosts, err := ParseSeeds("[2001:db8::1]:db-tls:3000")
	if err != nil {
		t.Fatal(err)
	}
	if hosts[0].Address != "2001:db8::1" || hosts[0].TLSName != "db-tls" || hosts[0].Port != 3000 {
		t.Fatalf("unexpected parse: %+v", hosts[0])
	}
}

func TestParseSeedsEmpty(t *testing.T) {
	if _, err := ParseSeeds(""); err == nil {
		t.Fatal("expected error for empty seed list")
	}
}

func TestParseSeedsBadPort(t *testing.T) {
	if _, err := ParseSeeds("host:notaport"); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}
