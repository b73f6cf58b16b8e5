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

// Package policy collects the tunables every layer of the client reads
// from: cluster-wide connection/pool sizing, and per-request read/write/
// scan/query/batch behavior.
package policy

import "time"

// ReplicaPolicy chooses which replica the partition router targets.
type ReplicaPolicy int

const (
	ReplicaMaster ReplicaPolicy = iota
	ReplicaSequence
	ReplicaPreferRack
)

// ConcurrencyPolicy controls how many nodes a multi-node operation
// (batch, scan, query) talks to at once.
type ConcurrencyPolicy struct {
	// Mode is one of the Concurrency* constants below.
	Mode ConcurrencyMode
	// MaxThreads is only meaningful when Mode == ConcurrencyMaxThreads.
	MaxThreads int
}

type ConcurrencyMode int

const (
	ConcurrencySequential ConcurrencyMode = iota
	ConcurrencyParallel
	ConcurrencyMaxThreads
)

// RecordExistsAction controls how a write behaves relative to whether
// the record already exists.
type RecordExistsAction int

const (
	Update RecordExistsAction = iota
	UpdateOnly
	Replace
	ReplaceOnly
	CreateOnly
)

// GenerationPolicy controls whether (and how) a write's Generation field
// is checked against the server's stored generation.
type GenerationPolicy int

const (
	GenerationIgnore GenerationPolicy = iota
	GenerationExpectGenEqual
	GenerationExpectGenGT
)

// ClientPolicy configures cluster-wide behavior: seed resolution,
// per-node pool sizing, and tend cadence.
type ClientPolicy struct {
	User             string
	Password         string
	Timeout          time.Duration // dial timeout
	IdleTimeout      time.Duration
	MaxConnsPerNode  int
	ConnPoolsPerNode int // sharding factor within a node's pool
	TendInterval     time.Duration
	MaxFailures      int // consecutive tend failures before a node is evicted
	RackID           int
	RackAware        bool
	ClusterName      string
}

// DefaultClientPolicy mirrors the defaults a fresh client is constructed
// with absent explicit configuration.
func DefaultClientPolicy() ClientPolicy {
	return ClientPolicy{
		Timeout:          time.Second,
		MaxConnsPerNode:  100,
		ConnPoolsPerNode: 1,
		TendInterval:     time.Second,
		MaxFailures:      5,
	}
}

// BasePolicy fields are shared by every single-key and multi-key
// operation.
type BasePolicy struct {
	TotalTimeout        time.Duration // 0 disables the deadline
	SocketTimeout       time.Duration
	MaxRetries          int
	SleepBetweenRetries time.Duration
	Replica             ReplicaPolicy
	FilterExpression    []byte // pre-serialized filter expression, if any
}

// ReadPolicy configures single-record reads.
type ReadPolicy struct {
	BasePolicy
	// ReadTouchTTLPercent, when > 0, asks the server to reset a record's
	// TTL on this read if the TTL has depleted past this percentage of
	// the record's original TTL.
	ReadTouchTTLPercent int
}

func DefaultReadPolicy() ReadPolicy {
	return ReadPolicy{BasePolicy: defaultBase()}
}

// Expiration sentinels for WritePolicy.Expiration, beyond an ordinary
// seconds-from-now TTL.
const (
	ExpirationNamespaceDefault uint32 = 0x00000000
	ExpirationNever            uint32 = 0xFFFFFFFF
	ExpirationDontUpdate       uint32 = 0xFFFFFFFE
)

// WritePolicy configures single-record writes.
type WritePolicy struct {
	BasePolicy
	RecordExistsAction RecordExistsAction
	GenerationPolicy   GenerationPolicy
	Generation         uint32
	// Expiration is a seconds-from-now TTL, or one of the Expiration*
	// sentinels above.
	Expiration    uint32
	DurableDelete bool
	CommitLevel   CommitLevel
}

// CommitLevel controls whether a write waits for replica acknowledgement.
type CommitLevel int

const (
	CommitAll CommitLevel = iota
	CommitMaster
)

func DefaultWritePolicy() WritePolicy {
	return WritePolicy{BasePolicy: defaultBase()}
}

// ScanPolicy configures a full-namespace/set scan.
type ScanPolicy struct {
	BasePolicy
	RecordsPerSecond int
	MaxRecords       int64
	Concurrency      ConcurrencyPolicy
	IncludeBinData   bool
}

func DefaultScanPolicy() ScanPolicy {
	p := ScanPolicy{BasePolicy: defaultBase(), IncludeBinData: true}
	p.Concurrency = ConcurrencyPolicy{Mode: ConcurrencySequential}
	return p
}

// QueryPolicy configures a secondary-index query.
type QueryPolicy struct {
	BasePolicy
	RecordsPerSecond int
	MaxRecords       int64
	Concurrency      ConcurrencyPolicy
	// QueryDuration distinguishes a short query (server keeps index
	// state in memory) from a long-running one, affecting server-side
	// scheduling priority.
	QueryDuration QueryDuration
}

type QueryDuration int

const (
	QueryDurationLong QueryDuration = iota
	QueryDurationShort
	QueryDurationLongRelaxAbandon
)

func DefaultQueryPolicy() QueryPolicy {
	p := QueryPolicy{BasePolicy: defaultBase()}
	p.Concurrency = ConcurrencyPolicy{Mode: ConcurrencySequential}
	return p
}

// BatchPolicy configures a multi-key batch read or write.
type BatchPolicy struct {
	BasePolicy
	Concurrency    ConcurrencyPolicy
	AllowPartialResults bool
}

func DefaultBatchPolicy() BatchPolicy {
	return BatchPolicy{
		BasePolicy:  defaultBase(),
		Concurrency: ConcurrencyPolicy{Mode: ConcurrencySequential},
	}
}

func defaultBase() BasePolicy {
	return BasePolicy{
		TotalTimeout:        0,
		SocketTimeout:       30 * time.Second,
		MaxRetries:          2,
		SleepBetweenRetries: time.Millisecond * 500,
		Replica:             ReplicaSequence,
	}
}
