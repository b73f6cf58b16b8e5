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

// Package stream implements the multi-node producer side of scan and
// query: a bounded Recordset every per-node worker feeds, and the
// partition tracker that assigns and accounts for each node's share of
// the namespace.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nodedb/nodedb-go/types"
)

// defaultQueueSize mirrors record_queue_size's documented default.
const defaultQueueSize = 50

// Result is one queue entry: exactly one of Record or Err is set. A
// terminal error is always the last item a consumer sees for a given
// stream.
type Result struct {
	Record *types.Record
	Err    error
}

// Recordset is the bounded queue a scan or query's per-node workers
// share with the consumer. Unlike the original's reject-on-full push,
// Push blocks the calling worker when the queue is full rather than
// dropping the record — the backpressure this client promises callers.
type Recordset struct {
	taskID uuid.UUID

	queue chan Result
	done  chan struct{}
	closeDone sync.Once

	producers int32
	cancelled int32
}

// NewRecordset allocates a recordset sized for queueSize buffered
// results (0 uses the default), fed by the given number of producer
// workers. A recordset with zero producers closes immediately, matching
// what a caller would see from an empty cluster.
func NewRecordset(queueSize, producers int) *Recordset {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	rs := &Recordset{
		taskID:    uuid.New(),
		queue:     make(chan Result, queueSize),
		done:      make(chan struct{}),
		producers: int32(producers),
	}
	if producers <= 0 {
		close(rs.queue)
	}
	return rs
}

// TaskID is the 128-bit identifier this stream's requests carry, also
// used to address a scan-abort/query-abort info command at this stream.
func (rs *Recordset) TaskID() uuid.UUID { return rs.taskID }

// Push delivers one record or error to the consumer, blocking while the
// queue is full. It returns false if the recordset was cancelled before
// the push could complete, in which case the caller should stop
// producing rather than retry.
func (rs *Recordset) Push(r Result) bool {
	select {
	case rs.queue <- r:
		return true
	case <-rs.done:
		return false
	}
}

// Results is the channel a consumer ranges over. It closes once every
// producer has called Done, after any buffered results have drained.
func (rs *Recordset) Results() <-chan Result { return rs.queue }

// Done marks one producer worker finished. The worker that brings the
// count to zero closes the result channel.
func (rs *Recordset) Done() {
	if atomic.AddInt32(&rs.producers, -1) == 0 {
		close(rs.queue)
	}
}

// Cancel asks every worker to stop at its next opportunity and unblocks
// any worker currently parked in Push.
func (rs *Recordset) Cancel() {
	atomic.StoreInt32(&rs.cancelled, 1)
	rs.closeDone.Do(func() { close(rs.done) })
}

// IsCancelled reports whether Cancel has been called.
func (rs *Recordset) IsCancelled() bool {
	return atomic.LoadInt32(&rs.cancelled) != 0
}
