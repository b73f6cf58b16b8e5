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

// Package batch groups multi-key reads and writes by owning node and
// dispatches one request per node, governed by the policy's Concurrency
// setting.
package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nodedb/nodedb-go/cluster"
	"github.com/nodedb/nodedb-go/partition"
	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/pool"
	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

// BinSelector chooses which bins a BatchRead entry asks for.
type BinSelector int

const (
	// SelectAll returns every bin, like a plain Get.
	SelectAll BinSelector = iota
	// SelectNone returns only metadata (generation, expiration), no bins.
	SelectNone
	// SelectSome returns only the bins named in BatchRead.BinNames.
	SelectSome
)

// BatchRead is one entry in a batch-read request.
type BatchRead struct {
	Key      *types.Key
	Selector BinSelector
	BinNames []string

	Record *types.Record
	Err    error
}

// WriteOp is a single write operation within a BatchWrite entry, encoded
// the same way command.Operate encodes its op list.
type WriteOp struct {
	Type  wire.OpType
	Name  string
	Value types.Value // nil for bare ops (e.g. delete, touch)
}

// BatchWrite is one entry in a batch-write request.
type BatchWrite struct {
	Key *types.Key
	Ops []WriteOp

	Record *types.Record
	Err    error
}

type connProvider interface {
	partition.Node
	GetConnection(timeout time.Duration) (*pool.Pooled, error)
}

// nodeGroup collects the original indices of every entry routed to one
// node.
type nodeGroup struct {
	node    connProvider
	entries []int
}

func groupByNode(c *cluster.Cluster, namespace string, p policy.BasePolicy, keys []*types.Key) (map[string]*nodeGroup, error) {
	groups := make(map[string]*nodeGroup)
	parts := c.Partitions()
	for i, key := range keys {
		n, err := c.Router().Route(parts, namespace, key, p.Replica, 0)
		if err != nil {
			return nil, err
		}
		cp, ok := n.(connProvider)
		if !ok {
			return nil, types.ErrInvalidNode("node %q cannot provide a connection", n.Name())
		}
		g, ok := groups[n.Name()]
		if !ok {
			g = &nodeGroup{node: cp}
			groups[n.Name()] = g
		}
		g.entries = append(g.entries, i)
	}
	return groups, nil
}

// Read executes a batch of reads, filling in each entry's Record or Err
// in place. The returned error is non-nil only for failures that
// prevented the whole batch from being attempted (e.g. routing failure
// with AllowPartialResults disabled); per-entry failures are reported on
// the entries themselves.
func Read(c *cluster.Cluster, namespace string, p policy.BatchPolicy, reads []*BatchRead) error {
	if len(reads) == 0 {
		return nil
	}
	keys := make([]*types.Key, len(reads))
	for i, r := range reads {
		keys[i] = r.Key
	}
	groups, err := groupByNode(c, namespace, p.BasePolicy, keys)
	if err != nil {
		if !p.AllowPartialResults {
			return err
		}
		for _, r := range reads {
			r.Err = err
		}
		return nil
	}

	return dispatch(p, func(do func(fn func() error)) {
		for _, g := range groups {
			g := g
			do(func() error { return readNode(c, namespace, p, g, reads) })
		}
	})
}

// Write executes a batch of single-key write operation lists the same
// way.
func Write(c *cluster.Cluster, namespace string, p policy.BatchPolicy, writes []*BatchWrite) error {
	if len(writes) == 0 {
		return nil
	}
	keys := make([]*types.Key, len(writes))
	for i, w := range writes {
		keys[i] = w.Key
	}
	groups, err := groupByNode(c, namespace, p.BasePolicy, keys)
	if err != nil {
		if !p.AllowPartialResults {
			return err
		}
		for _, w := range writes {
			w.Err = err
		}
		return nil
	}

	return dispatch(p, func(do func(fn func() error)) {
		for _, g := range groups {
			g := g
			do(func() error { return writeNode(c, namespace, p, g, writes) })
		}
	})
}

// dispatch runs each submitted task per the Concurrency policy: one at a
// time, fully parallel, or bounded by a semaphore.
func dispatch(p policy.BatchPolicy, submit func(do func(fn func() error))) error {
	switch p.Concurrency.Mode {
	case policy.ConcurrencySequential:
		var firstErr error
		submit(func(fn func() error) {
			if err := fn(); err != nil && firstErr == nil {
				firstErr = err
			}
		})
		return firstErr

	case policy.ConcurrencyMaxThreads:
		sem := semaphore.NewWeighted(int64(maxInt(p.Concurrency.MaxThreads, 1)))
		var g errgroup.Group
		submit(func(fn func() error) {
			g.Go(func() error {
				ctx := context.Background()
				if err := sem.Acquire(ctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
				return fn()
			})
		})
		return g.Wait()

	default: // ConcurrencyParallel
		var g errgroup.Group
		submit(func(fn func() error) { g.Go(fn) })
		return g.Wait()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
