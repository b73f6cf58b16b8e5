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

package cluster

import (
	"encoding/base64"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dchest/siphash"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/nodedb/nodedb-go/conn"
	"github.com/nodedb/nodedb-go/partition"
	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/pool"
	"github.com/nodedb/nodedb-go/types"
)

const bitmapBytes = partition.NumPartitions / 8 // 512

// partitionFingerprintKey is a fixed siphash key; it only needs to be
// stable within one process's lifetime, not secret.
var partitionFingerprintKey = [16]byte{0x6e, 0x6f, 0x64, 0x65, 0x64, 0x62, 0x2d, 0x70, 0x61, 0x72, 0x74, 0x2d, 0x66, 0x70, 0x2d, 0x31}

// Cluster is the tend state machine: seed resolution, periodic refresh,
// peer discovery, and partition-map ingestion. All mutation of the
// published partition map happens by atomically installing a freshly
// built partition.Map; readers never see a partially updated table.
type Cluster struct {
	policy policy.ClientPolicy
	seeds  []types.Host

	mu    sync.RWMutex
	nodes map[string]*Node

	partitions atomic.Value // partition.Map

	fingerprints sync.Map // "node:ns" -> nodePartitionState, that node's last-seen bitmap set

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	router *partition.Router
}

// New resolves seeds and starts the tend loop. Call Close to stop it.
func New(seeds []types.Host, p policy.ClientPolicy) (*Cluster, error) {
	c := &Cluster{
		policy: p,
		seeds:  seeds,
		nodes:  make(map[string]*Node),
		stop:   make(chan struct{}),
	}
	c.partitions.Store(partition.Map{})
	c.router = partition.NewRouter(c.liveNodes, p.RackID)

	if err := c.seedPhase(); err != nil {
		return nil, err
	}

	interval := p.TendInterval
	if interval <= 0 {
		interval = time.Second
	}
	c.wg.Add(1)
	go c.tendLoop(interval)
	return c, nil
}

// Router returns the partition router bound to this cluster's live-node
// lookup.
func (c *Cluster) Router() *partition.Router { return c.router }

// Partitions returns the currently published partition map. The
// returned value is immutable; a future tend installs a new one rather
// than mutating this one.
func (c *Cluster) Partitions() partition.Map {
	return c.partitions.Load().(partition.Map)
}

func (c *Cluster) liveNodes() []partition.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]partition.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		if n.Active() {
			out = append(out, n)
		}
	}
	return out
}

// GetNode looks up a known node by name.
func (c *Cluster) GetNode(name string) (*Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[name]
	return n, ok
}

// Nodes returns a snapshot of every currently known node, sorted by name
// so callers that log or iterate deterministically don't see map-order
// jitter between tend passes.
func (c *Cluster) Nodes() []*Node {
	c.mu.RLock()
	out := maps.Values(c.nodes)
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Node) bool { return a.name < b.name })
	return out
}

func (c *Cluster) dialerFor(name string, host types.Host) pool.Dialer {
	return func() (*conn.Connection, error) {
		var cred *conn.Credential
		if c.policy.User != "" {
			cred = &conn.Credential{User: c.policy.User, Password: c.policy.Password}
		}
		return conn.Dial(host.DialAddr(), name, conn.Config{
			DialTimeout: c.policy.Timeout,
			IdleTimeout: c.policy.IdleTimeout,
			Credential:  cred,
		})
	}
}

func (c *Cluster) addNode(name string, host types.Host) *Node {
	p := pool.New(c.dialerFor(name, host), pool.Config{
		MaxConns:    c.policy.MaxConnsPerNode,
		Shards:      c.policy.ConnPoolsPerNode,
		IdleTimeout: c.policy.IdleTimeout,
	})
	n := newNode(name, host, p)
	c.mu.Lock()
	c.nodes[name] = n
	c.mu.Unlock()
	return n
}

func (c *Cluster) removeNode(name string) {
	c.mu.Lock()
	n, ok := c.nodes[name]
	if ok {
		delete(c.nodes, name)
	}
	c.mu.Unlock()
	if ok {
		n.deactivate()
		n.pool.Clear()
	}
}

// seedPhase resolves each configured seed to a validation connection and
// adds the node it identifies itself as, only while no nodes are known
// yet.
func (c *Cluster) seedPhase() error {
	c.mu.RLock()
	empty := len(c.nodes) == 0
	c.mu.RUnlock()
	if !empty {
		return nil
	}

	var lastErr error
	for _, seed := range c.seeds {
		info, err := c.validate(seed)
		if err != nil {
			lastErr = err
			continue
		}
		name := info["node"]
		if name == "" {
			continue
		}
		c.mu.RLock()
		_, known := c.nodes[name]
		c.mu.RUnlock()
		if known {
			continue
		}
		n := c.addNode(name, seed)
		c.ingestInfo(n, info)
		lastErr = nil
	}

	c.mu.RLock()
	haveAny := len(c.nodes) > 0
	c.mu.RUnlock()
	if !haveAny {
		if lastErr != nil {
			return lastErr
		}
		return types.ErrInvalidNode("no seed host could be validated")
	}
	return nil
}

// validate opens a short-lived connection to host and issues the
// minimal info query used to identify it, without adding it to the pool.
func (c *Cluster) validate(host types.Host) (map[string]string, error) {
	var cred *conn.Credential
	if c.policy.User != "" {
		cred = &conn.Credential{User: c.policy.User, Password: c.policy.Password}
	}
	c2, err := conn.Dial(host.DialAddr(), host.Address, conn.Config{
		DialTimeout: c.policy.Timeout,
		Credential:  cred,
	})
	if err != nil {
		return nil, err
	}
	defer c2.Close()
	return infoOnConn(c2, "node", "features", "partition-generation", "cluster-name", "peers-clear-std", "rebalance-generation")
}

func (c *Cluster) tendLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.tendOnce()
		}
	}
}

func (c *Cluster) tendOnce() {
	if err := c.seedPhase(); err != nil {
		log.Printf("nodedb: cluster: seed phase: %v", err)
	}
	c.refreshPhase()
}

// refreshPhase queries every known node, ingests peers and partitions on
// success, and evicts nodes past the consecutive-failure threshold.
func (c *Cluster) refreshPhase() {
	maxFailures := c.policy.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}

	for _, n := range c.Nodes() {
		info, err := n.Info(c.policy.Timeout,
			"node", "features", "partition-generation", "rebalance-generation",
			"peers-clear-std", "racks:", "cluster-name")
		if err != nil {
			if n.bumpFailure() >= uint32(maxFailures) {
				c.removeNode(n.Name())
			}
			continue
		}
		n.RefreshReset()
		c.ingestInfo(n, info)
		c.discoverPeers(info)
	}
}

func (c *Cluster) ingestInfo(n *Node, info map[string]string) {
	if f, ok := info["features"]; ok {
		n.mu.Lock()
		n.features = parseFeatures(f)
		n.mu.Unlock()
	}
	if r, ok := info["racks:"]; ok {
		n.mu.Lock()
		n.racks = parseRacks(r)
		n.mu.Unlock()
	}

	gen, changed := parseGeneration(info["partition-generation"])
	if changed && n.setPartitionGeneration(gen) {
		c.refreshPartitions(n)
	}
}

func parseGeneration(v string) (uint32, bool) {
	if v == "" {
		return 0, false
	}
	g, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(g), true
}

// discoverPeers adds any peer named in a "peers-clear-std" response that
// isn't already known.
func (c *Cluster) discoverPeers(info map[string]string) {
	peers, ok := info["peers-clear-std"]
	if !ok || peers == "" {
		return
	}
	for _, hostport := range splitPeerList(peers) {
		host, err := types.ParseSeeds(hostport)
		if err != nil || len(host) == 0 {
			continue
		}
		peerInfo, err := c.validate(host[0])
		if err != nil {
			continue
		}
		name := peerInfo["node"]
		if name == "" {
			continue
		}
		c.mu.RLock()
		_, known := c.nodes[name]
		c.mu.RUnlock()
		if known {
			continue
		}
		n := c.addNode(name, host[0])
		c.ingestInfo(n, peerInfo)
	}
}

// splitPeerList pulls bare host:port entries out of the generation,port,
// [entries...] peers-clear-std format; entries are comma-separated.
func splitPeerList(v string) []string {
	start := strings.IndexByte(v, '[')
	end := strings.LastIndexByte(v, ']')
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	inner := v[start+1 : end]
	if inner == "" {
		return nil
	}
	return strings.Split(inner, ",")
}

// refreshPartitions re-queries replicas-all for every namespace and
// installs a fresh partition.Map if any namespace's bitmap actually
// changed, fingerprinted with siphash to skip redundant parsing when a
// generation bump didn't change this particular node's ownership.
func (c *Cluster) refreshPartitions(n *Node) {
	info, err := n.Info(c.policy.Timeout, "replicas-all")
	if err != nil {
		return
	}
	body, ok := info["replicas-all"]
	if !ok {
		return
	}

	current := c.Partitions()
	next := cloneMap(current)
	dirty := false

	// Sorting the entries is cosmetic (map iteration order doesn't
	// matter for correctness) but keeps a diff between two successive
	// infoOnConn dumps stable for anyone debugging the tend loop.
	entries := strings.Split(body, ";")
	slices.Sort(entries)
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		ns, replicaBitmaps, ok := splitNamespaceEntry(entry)
		if !ok {
			continue
		}
		if applyReplicas(next, ns, replicaBitmaps, n, c.fingerprintKey(n.Name(), ns), &c.fingerprints) {
			dirty = true
		}
	}

	if dirty {
		c.partitions.Store(next)
	}
}

func (c *Cluster) fingerprintKey(node, ns string) string {
	return node + ":" + ns
}

// cloneMap makes a shallow copy of the namespace->Table map itself.
// Namespaces this pass doesn't touch keep sharing their *Table with the
// previous map; applyReplicas never mutates a Table it finds here in
// place, so a prior Cluster.Partitions() snapshot is unaffected either
// way.
func cloneMap(m partition.Map) partition.Map {
	out := make(partition.Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// splitNamespaceEntry parses one "namespace:b64,b64,..." replicas-all
// entry into its namespace and ordered per-replica base64 bitmaps.
func splitNamespaceEntry(entry string) (string, []string, bool) {
	idx := strings.IndexByte(entry, ':')
	if idx < 0 {
		return "", nil, false
	}
	ns := entry[:idx]
	rest := entry[idx+1:]
	return ns, strings.Split(rest, ","), true
}

// nodePartitionState is the fingerprint cache entry for one (node,
// namespace) pair: the siphash of the last-seen bitmap set, used to
// skip redundant parsing, plus the decoded bitmaps themselves, kept
// around so the next report can diff against them and clear any
// partition this node no longer owns.
type nodePartitionState struct {
	sum     uint64
	bitmaps [][]byte // nil entry means that replica's bitmap was absent or malformed
}

// applyReplicas decodes each replica's bitmap for namespace ns and
// installs node n into every partition slot the bitmap marks, clearing
// any slot n previously held that the new bitmap no longer sets. The
// namespace's Table is never mutated in place: a cloned Table (deep
// copy of every replica row) replaces it in m, so a map published via
// Cluster.Partitions before this call keeps seeing its own, untouched
// Table. It returns whether anything changed relative to the last
// fingerprinted bitmap set for this node.
func applyReplicas(m partition.Map, ns string, bitmaps []string, n *Node, fpKey string, fingerprints *sync.Map) bool {
	h := siphash.New(partitionFingerprintKey[:])
	for _, b := range bitmaps {
		h.Write([]byte(b))
	}
	sum := h.Sum64()

	prevIface, hadPrev := fingerprints.Load(fpKey)
	if hadPrev && prevIface.(nodePartitionState).sum == sum {
		return false
	}

	decoded := make([][]byte, len(bitmaps))
	for i, b64 := range bitmaps {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(raw) != bitmapBytes {
			continue
		}
		decoded[i] = raw
	}

	var prevBitmaps [][]byte
	if hadPrev {
		prevBitmaps = prevIface.(nodePartitionState).bitmaps
	}

	replicaCount := len(decoded)
	if existing := m[ns].ReplicaCount(); existing > replicaCount {
		replicaCount = existing
	}
	table := cloneTable(m[ns], replicaCount)

	for replica := 0; replica < replicaCount; replica++ {
		var raw, prevRaw []byte
		if replica < len(decoded) {
			raw = decoded[replica]
		}
		if replica < len(prevBitmaps) {
			prevRaw = prevBitmaps[replica]
		}
		row := table.Replicas[replica]
		for pid := 0; pid < partition.NumPartitions; pid++ {
			byteIdx := pid / 8
			bitIdx := uint(pid % 8)
			setNow := raw != nil && raw[byteIdx]&(1<<bitIdx) != 0
			switch {
			case setNow:
				row[pid] = n
			case prevRaw != nil && prevRaw[byteIdx]&(1<<bitIdx) != 0:
				// n used to own this slot and the new bitmap no longer
				// claims it; only clear it if it's still n's, so we
				// never clobber another node's report applied since.
				if row[pid] == n {
					row[pid] = nil
				}
			}
		}
	}

	m[ns] = table
	fingerprints.Store(fpKey, nodePartitionState{sum: sum, bitmaps: decoded})
	return true
}

// cloneTable returns a Table with minReplicas replica rows, each an
// independent copy of t's corresponding row (or newly allocated, all
// nil, if t is nil or shorter). The result shares no backing array
// with t, so mutating it never affects a Table a reader obtained via
// Cluster.Partitions before this call.
func cloneTable(t *partition.Table, minReplicas int) *partition.Table {
	count := t.ReplicaCount()
	if count < minReplicas {
		count = minReplicas
	}
	out := partition.NewTable(count)
	for i := 0; i < t.ReplicaCount(); i++ {
		copy(out.Replicas[i], t.Replicas[i])
	}
	return out
}

// Close stops the tend loop and closes every node's connection pool.
func (c *Cluster) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	for _, n := range c.Nodes() {
		n.pool.Clear()
	}
}
