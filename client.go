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

// Package nodedb is the application-facing façade over the core: it
// wires the cluster state machine, the command engine, batch
// operations, and streaming scan/query together behind one Client.
package nodedb

import (
	"github.com/nodedb/nodedb-go/batch"
	"github.com/nodedb/nodedb-go/cluster"
	"github.com/nodedb/nodedb-go/command"
	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/stream"
	"github.com/nodedb/nodedb-go/types"
)

// Client is a connected handle to a cluster: one tend loop, one
// connection pool per node, and the command engine bound to them.
type Client struct {
	cluster *cluster.Cluster
	engine  *command.Engine
}

// New resolves seeds and starts tending the cluster. Call Close when
// done with the client.
func New(seeds []types.Host, p policy.ClientPolicy) (*Client, error) {
	c, err := cluster.New(seeds, p)
	if err != nil {
		return nil, err
	}
	return &Client{cluster: c, engine: &command.Engine{Cluster: c}}, nil
}

// NewFromSeedString is a convenience wrapper parsing a comma-separated
// seed list via types.ParseSeeds.
func NewFromSeedString(seeds string, p policy.ClientPolicy) (*Client, error) {
	hosts, err := types.ParseSeeds(seeds)
	if err != nil {
		return nil, err
	}
	return New(hosts, p)
}

// Close stops the tend loop and closes every pooled connection.
func (c *Client) Close() { c.cluster.Close() }

// Cluster exposes the underlying cluster state machine, for callers
// that need node listings or observer hooks the façade doesn't expose
// directly.
func (c *Client) Cluster() *cluster.Cluster { return c.cluster }

// Get reads every bin of a record.
func (c *Client) Get(p policy.ReadPolicy, key *types.Key) (*types.Record, error) {
	return c.engine.Get(p, key)
}

// GetBins reads only the named bins of a record.
func (c *Client) GetBins(p policy.ReadPolicy, key *types.Key, binNames ...string) (*types.Record, error) {
	return c.engine.GetBins(p, key, binNames...)
}

// GetHeader reads only a record's generation and expiration.
func (c *Client) GetHeader(p policy.ReadPolicy, key *types.Key) (*types.Record, error) {
	return c.engine.GetHeader(p, key)
}

// Exists reports whether a record is present.
func (c *Client) Exists(p policy.ReadPolicy, key *types.Key) (bool, error) {
	return c.engine.Exists(p, key)
}

// Put writes every given bin.
func (c *Client) Put(p policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	return c.engine.Put(p, key, bins...)
}

// Append appends to existing string/blob bins.
func (c *Client) Append(p policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	return c.engine.Append(p, key, bins...)
}

// Prepend prepends to existing string/blob bins.
func (c *Client) Prepend(p policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	return c.engine.Prepend(p, key, bins...)
}

// Add adds to existing integer bins.
func (c *Client) Add(p policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	return c.engine.Add(p, key, bins...)
}

// Delete removes a record, reporting whether it existed.
func (c *Client) Delete(p policy.WritePolicy, key *types.Key) (bool, error) {
	return c.engine.Delete(p, key)
}

// Touch resets a record's TTL without altering its bins.
func (c *Client) Touch(p policy.WritePolicy, key *types.Key) error {
	return c.engine.Touch(p, key)
}

// Operate executes an ordered mixed read/write op list against a single
// record in one round trip.
func (c *Client) Operate(rp policy.ReadPolicy, wp policy.WritePolicy, key *types.Key, ops ...command.Operation) (*types.Record, error) {
	return c.engine.Operate(rp, wp, key, ops...)
}

// ExecuteUDF invokes a server-side Lua user-defined function against a
// single record.
func (c *Client) ExecuteUDF(p policy.WritePolicy, key *types.Key, packageName, functionName string, args types.ListValue) (*types.Record, error) {
	return c.engine.ExecuteUDF(p, key, packageName, functionName, args)
}

// BatchGet reads a batch of keys, filling each entry's Record or Err in
// place.
func (c *Client) BatchGet(namespace string, p policy.BatchPolicy, reads []*batch.BatchRead) error {
	return batch.Read(c.cluster, namespace, p, reads)
}

// BatchOperate executes a batch of single-key write operation lists the
// same way.
func (c *Client) BatchOperate(namespace string, p policy.BatchPolicy, writes []*batch.BatchWrite) error {
	return batch.Write(c.cluster, namespace, p, writes)
}

// ScanAll starts a full namespace/set scan, returning a Recordset the
// caller drains via Results().
func (c *Client) ScanAll(namespace, setName string, binNames []string, p policy.ScanPolicy) (*stream.Recordset, error) {
	return stream.Scan(c.cluster, namespace, setName, binNames, p, stream.PartitionFilter{Kind: stream.FilterAll})
}

// ScanPartitions resumes or narrows a scan to a specific partition
// filter, e.g. one returned by a prior Recordset's tracker.
func (c *Client) ScanPartitions(namespace, setName string, binNames []string, p policy.ScanPolicy, filter stream.PartitionFilter) (*stream.Recordset, error) {
	return stream.Scan(c.cluster, namespace, setName, binNames, p, filter)
}

// Query runs a secondary-index query, returning a Recordset the caller
// drains via Results().
func (c *Client) Query(stmt stream.Statement, p policy.QueryPolicy) (*stream.Recordset, error) {
	return stream.Query(c.cluster, stmt, p, stream.PartitionFilter{Kind: stream.FilterAll})
}

// QueryPartitions mirrors ScanPartitions for secondary-index queries.
func (c *Client) QueryPartitions(stmt stream.Statement, p policy.QueryPolicy, filter stream.PartitionFilter) (*stream.Recordset, error) {
	return stream.Query(c.cluster, stmt, p, filter)
}
