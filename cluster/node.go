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

// Package cluster owns cluster membership: node discovery, periodic
// health/partition tending, and the authoritative partition map every
// other layer routes against.
package cluster

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nodedb/nodedb-go/conn"
	"github.com/nodedb/nodedb-go/pool"
	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

// Node aggregates identity, a connection pool, and the generation
// counters the tend loop advances as the server reports topology
// changes.
type Node struct {
	name string
	host types.Host

	pool *pool.Pool

	partitionGeneration  uint32
	rebalanceGeneration  uint32
	failures             uint32

	mu       sync.RWMutex
	features map[string]bool
	racks    map[string]int // namespace -> rack id, from the last refresh
	active   bool
}

func newNode(name string, host types.Host, p *pool.Pool) *Node {
	return &Node{
		name:     name,
		host:     host,
		pool:     p,
		features: make(map[string]bool),
		racks:    make(map[string]int),
		active:   true,
	}
}

// Name is the server-reported node name this client discovered it under.
func (n *Node) Name() string { return n.name }

// Active reports whether the cluster still considers this node live
// (hasn't exceeded MaxFailures consecutive tend failures).
func (n *Node) Active() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.active
}

// RackID satisfies partition.Node: the rack this node last reported
// itself as belonging to for namespace ns.
func (n *Node) RackID(ns string) (int, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	r, ok := n.racks[ns]
	return r, ok
}

// SupportsFeature reports whether the node's last info refresh
// advertised the named feature string.
func (n *Node) SupportsFeature(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.features[name]
}

// Host is the address this node was last known to be reachable at.
func (n *Node) Host() types.Host { return n.host }

// GetConnection checks out a pooled connection with the given socket
// timeout.
func (n *Node) GetConnection(timeout time.Duration) (*pool.Pooled, error) {
	p, err := n.pool.Get(timeout)
	if err != nil {
		if ce, ok := err.(*types.ClientError); ok && ce.Node == "" {
			ce.Node = n.name
		}
		return nil, err
	}
	return p, nil
}

// Failures returns the current consecutive-failure count, used by the
// cluster to decide when to evict a node.
func (n *Node) Failures() uint32 { return atomic.LoadUint32(&n.failures) }

// RefreshReset clears the failure counter after a successful tend.
func (n *Node) RefreshReset() { atomic.StoreUint32(&n.failures, 0) }

func (n *Node) bumpFailure() uint32 {
	return atomic.AddUint32(&n.failures, 1)
}

func (n *Node) deactivate() {
	n.mu.Lock()
	n.active = false
	n.mu.Unlock()
}

func (n *Node) setPartitionGeneration(gen uint32) bool {
	old := atomic.SwapUint32(&n.partitionGeneration, gen)
	return old != gen
}

func (n *Node) setRebalanceGeneration(gen uint32) bool {
	old := atomic.SwapUint32(&n.rebalanceGeneration, gen)
	return old != gen
}

// Info issues an info-protocol request for the given keys and returns
// the parsed key/value response. It checks out and releases its own
// connection; callers don't manage pooling for info queries.
func (n *Node) Info(timeout time.Duration, keys ...string) (map[string]string, error) {
	p, err := n.GetConnection(timeout)
	if err != nil {
		return nil, err
	}
	resp, err := infoOnConn(p.Conn, keys...)
	if err != nil {
		p.Invalidate()
		return nil, err
	}
	p.Release()
	return resp, nil
}

func infoOnConn(c *conn.Connection, keys ...string) (map[string]string, error) {
	req := wire.EncodeInfoRequest(keys...)
	if err := c.WriteInfo(req); err != nil {
		return nil, err
	}
	body, err := c.ReadInfo()
	if err != nil {
		return nil, err
	}
	return wire.ParseInfoResponse(body), nil
}

// parseFeatures splits a "feature1;feature2;..." info value into a set.
func parseFeatures(v string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Split(v, ";") {
		if f != "" {
			out[f] = true
		}
	}
	return out
}

// parseRacks parses the "racks:" info value, formatted as
// "namespace1:rack1,namespace2:rack2,...".
func parseRacks(v string) map[string]int {
	out := make(map[string]int)
	for _, pair := range strings.Split(v, ",") {
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		out[parts[0]] = id
	}
	return out
}
