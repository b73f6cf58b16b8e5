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

package pool

import (
	"net"
	"testing"
	"time"

	"github.com/nodedb/nodedb-go/conn"
)

// dialLoopback opens a real (but local) TCP connection so *conn.Connection
// has a live socket to operate on, without requiring an actual server
// node. The listener accepts each inbound connection and leaves it open
// without reading from it; tests only exercise pool bookkeeping, not
// protocol I/O.
func dialLoopback(t *testing.T) Dialer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c
		}
	}()
	addr := ln.Addr().String()
	return func() (*conn.Connection, error) {
		return conn.Dial(addr, "test-node", conn.Config{DialTimeout: 2 * time.Second})
	}
}

func TestPoolConstructsUpToCapacity(t *testing.T) {
	dial := dialLoopback(t)
	p := New(dial, Config{MaxConns: 2, Shards: 1})

	a, err := p.Get(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Get(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Get(time.Second); err == nil {
		t.Fatal("expected NoMoreConnections once capacity is exhausted")
	}
	a.Release()
	b.Release()
}

func TestPoolReleaseThenReacquire(t *testing.T) {
	dial := dialLoopback(t)
	p := New(dial, Config{MaxConns: 1, Shards: 1})

	a, err := p.Get(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	a.Release()

	b, err := p.Get(time.Second)
	if err != nil {
		t.Fatalf("expected released connection to be reusable: %v", err)
	}
	b.Release()
}

func TestPoolInvalidateFreesCapacity(t *testing.T) {
	dial := dialLoopback(t)
	p := New(dial, Config{MaxConns: 1, Shards: 1})

	a, err := p.Get(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	a.Invalidate()

	b, err := p.Get(time.Second)
	if err != nil {
		t.Fatalf("expected invalidate to free a capacity slot: %v", err)
	}
	b.Release()
}

func TestPoolShardDistribution(t *testing.T) {
	dial := dialLoopback(t)
	p := New(dial, Config{MaxConns: 4, Shards: 2})
	if len(p.shards) != 2 {
		t.Fatalf("expected 2 shards, got %d", len(p.shards))
	}
	for _, s := range p.shards {
		if s.capacity != 2 {
			t.Fatalf("expected even 2/2 split, got %d", s.capacity)
		}
	}
}
