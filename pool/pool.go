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

// Package pool implements a sharded, bounded connection pool for a
// single node: N sub-queues of idle connections, each with its own live
// + idle counter, so concurrent callers don't all contend on one mutex.
//
// Unlike the Rust original this is adapted from, there is no Drop to
// return a connection automatically: callers must call Release or
// Invalidate on the Pooled value exactly once.
package pool

import (
	"sync"
	"time"

	"github.com/nodedb/nodedb-go/conn"
	"github.com/nodedb/nodedb-go/types"
)

// Dialer opens a brand new connection on demand. The pool never retries
// a dial failure itself; it surfaces the error to the caller of Get.
type Dialer func() (*conn.Connection, error)

// Config controls pool sizing.
type Config struct {
	MaxConns    int // total connections across all shards
	Shards      int // conn_pools_per_shard in the original design; 1-8 typical
	IdleTimeout time.Duration
}

// Pool is a node's connection pool: Shards independent sub-queues, each
// given an even share of MaxConns (remainder distributed to the first
// shards).
type Pool struct {
	shards  []*shard
	counter uint64
	mu      sync.Mutex // guards counter only
}

type shard struct {
	mu       sync.Mutex
	idle     []*conn.Connection
	capacity int
	live     int
	dial     Dialer
}

// Pooled wraps a checked-out connection together with the shard it must
// be returned to. A Pooled value is owned exclusively by its caller
// until Release or Invalidate is called.
type Pooled struct {
	Conn  *conn.Connection
	shard *shard
}

// Release returns the connection to its shard's idle list, unless the
// idle list already holds capacity connections, in which case it is
// closed instead and the shard's live count dropped.
func (p *Pooled) Release() {
	p.shard.release(p.Conn)
}

// Invalidate closes the connection and decrements the shard's live
// count, making room for a fresh dial on a future Get.
func (p *Pooled) Invalidate() {
	p.shard.invalidate(p.Conn)
}

// New builds a Pool with the given dialer and sizing.
func New(dial Dialer, cfg Config) *Pool {
	shards := cfg.Shards
	if shards < 1 {
		shards = 1
	}
	base := cfg.MaxConns / shards
	rem := cfg.MaxConns % shards
	p := &Pool{shards: make([]*shard, shards)}
	for i := 0; i < shards; i++ {
		capacity := base
		if rem > 0 {
			capacity++
			rem--
		}
		p.shards[i] = &shard{capacity: capacity, dial: dial}
	}
	return p
}

// Get acquires a connection, trying each shard at most once in
// round-robin order starting from an internal counter. It constructs a
// new connection when a shard is empty and under capacity, and fails
// with NoMoreConnections only after every shard has been tried and found
// saturated.
func (p *Pool) Get(timeout time.Duration) (*Pooled, error) {
	n := len(p.shards)
	start := p.next()
	var lastErr error
	for i := 0; i < n; i++ {
		s := p.shards[(start+i)%n]
		c, err := s.get(timeout)
		if err == nil {
			return &Pooled{Conn: c, shard: s}, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (p *Pool) next() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counter++
	return int(p.counter - 1)
}

func (s *shard) get(timeout time.Duration) (*conn.Connection, error) {
	s.mu.Lock()
	for len(s.idle) > 0 {
		c := s.idle[len(s.idle)-1]
		s.idle = s.idle[:len(s.idle)-1]
		if c.IsIdle() {
			s.live--
			s.mu.Unlock()
			c.Close()
			s.mu.Lock()
			continue
		}
		s.mu.Unlock()
		if err := c.SetIOTimeout(timeout); err != nil {
			s.dropLive()
			c.Close()
			return nil, err
		}
		return c, nil
	}
	if s.live >= s.capacity {
		s.mu.Unlock()
		return nil, types.ErrNoMoreConnections("")
	}
	s.live++
	s.mu.Unlock()

	c, err := s.dial()
	if err != nil {
		s.dropLive()
		return nil, err
	}
	if err := c.SetIOTimeout(timeout); err != nil {
		s.dropLive()
		c.Close()
		return nil, err
	}
	return c, nil
}

func (s *shard) dropLive() {
	s.mu.Lock()
	s.live--
	s.mu.Unlock()
}

func (s *shard) release(c *conn.Connection) {
	s.mu.Lock()
	if len(s.idle) >= s.capacity {
		s.live--
		s.mu.Unlock()
		c.Close()
		return
	}
	s.idle = append(s.idle, c)
	s.mu.Unlock()
}

func (s *shard) invalidate(c *conn.Connection) {
	s.dropLive()
	c.Close()
}

// Clear closes every idle connection in every shard. Connections checked
// out via Get at the time are not closed by Clear; releasing one later
// returns it to the idle list like any other release.
func (p *Pool) Clear() {
	for _, s := range p.shards {
		s.mu.Lock()
		idle := s.idle
		s.idle = nil
		s.live -= len(idle)
		s.mu.Unlock()
		for _, c := range idle {
			c.Close()
		}
	}
}
