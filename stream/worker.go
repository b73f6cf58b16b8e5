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

package stream

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nodedb/nodedb-go/partition"
	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

// streamRequest carries everything one node's worker needs to build its
// scan or query request body.
type streamRequest struct {
	Namespace        string
	SetName          string
	BinNames         []string
	IncludeBinData   bool
	TaskID           uuid.UUID
	FilterExpression []byte
	RecordsPerSecond int
	MaxRecords       int64
	Duration         policy.QueryDuration
	Index            *IndexFilter
	Full, Partial    []*PartitionStatus
}

func encodePIDArray(b *wire.Buffer, statuses []*PartitionStatus) {
	b.WriteUint16(uint16(len(statuses)))
	for _, s := range statuses {
		b.WriteUint16(uint16(s.ID))
	}
}

// encodeDigestArray writes the partial-partition resume list: each
// entry is the partition id followed by its last-returned digest (all
// zero if this is the partition's first touch in this filter).
func encodeDigestArray(b *wire.Buffer, statuses []*PartitionStatus) {
	b.WriteUint16(uint16(len(statuses)))
	for _, s := range statuses {
		b.WriteUint16(uint16(s.ID))
		if s.Digest != nil {
			b.WriteBytes(s.Digest[:])
		} else {
			var zero [types.DigestSize]byte
			b.WriteBytes(zero[:])
		}
	}
}

func encodeIndexFilter(fields *wire.Buffer, f *IndexFilter) int {
	if f == nil {
		return 0
	}
	wire.WriteFieldString(fields, wire.FieldIndexName, f.IndexName)

	var rangeBuf wire.Buffer
	rangeBuf.WriteByte(byte(len(f.BinName)))
	rangeBuf.WriteString(f.BinName)
	beginParticle, beginPayload := wire.EncodeValue(f.Begin)
	endParticle, endPayload := wire.EncodeValue(f.End)
	rangeBuf.WriteByte(byte(beginParticle))
	rangeBuf.WriteUint32(uint32(len(beginPayload)))
	rangeBuf.WriteBytes(beginPayload)
	rangeBuf.WriteByte(byte(endParticle))
	rangeBuf.WriteUint32(uint32(len(endPayload)))
	rangeBuf.WriteBytes(endPayload)
	wire.WriteField(fields, wire.FieldIndexRange, rangeBuf.Bytes())
	return 2
}

// buildStreamRequest assembles one node's scan/query request body: a
// shared header, this node's assigned partitions (full and resumed
// partial), and the bin selection.
func buildStreamRequest(sr streamRequest) []byte {
	var fields wire.Buffer
	var nFields uint16

	wire.WriteFieldString(&fields, wire.FieldNamespace, sr.Namespace)
	nFields++
	if sr.SetName != "" {
		wire.WriteFieldString(&fields, wire.FieldSetName, sr.SetName)
		nFields++
	}

	taskBytes, _ := sr.TaskID.MarshalBinary()
	wire.WriteField(&fields, wire.FieldQueryID, taskBytes)
	nFields++

	if sr.RecordsPerSecond > 0 {
		wire.WriteFieldUint32(&fields, wire.FieldRecordsPerSecond, uint32(sr.RecordsPerSecond))
		nFields++
	}
	if sr.MaxRecords > 0 {
		wire.WriteFieldUint32(&fields, wire.FieldMaxRecords, uint32(sr.MaxRecords))
		nFields++
	}
	if sr.Duration != policy.QueryDurationLong {
		wire.WriteField(&fields, wire.FieldQueryDuration, []byte{byte(sr.Duration)})
		nFields++
	}
	if len(sr.FilterExpression) > 0 {
		wire.WriteField(&fields, wire.FieldFilterExp, sr.FilterExpression)
		nFields++
	}
	nFields += uint16(encodeIndexFilter(&fields, sr.Index))

	if len(sr.Full) > 0 {
		var pidBuf wire.Buffer
		encodePIDArray(&pidBuf, sr.Full)
		wire.WriteField(&fields, wire.FieldPIDArray, pidBuf.Bytes())
		nFields++
	}
	if len(sr.Partial) > 0 {
		var digBuf wire.Buffer
		encodeDigestArray(&digBuf, sr.Partial)
		wire.WriteField(&fields, wire.FieldDigestArray, digBuf.Bytes())
		nFields++
	}

	var ops wire.Buffer
	var nOps uint16
	for _, name := range sr.BinNames {
		wire.WriteOp(&ops, wire.OpRead, types.ParticleNull, name, nil)
		nOps++
	}

	info1 := wire.Info1Read
	if len(sr.BinNames) == 0 {
		info1 |= wire.Info1GetAll
		if !sr.IncludeBinData {
			info1 |= wire.Info1NoBinData
		}
	}

	var body wire.Buffer
	wire.WriteMessageHeader(&body, wire.MessageHeader{
		Info1:   info1,
		NFields: nFields,
		NOps:    nOps,
	})
	body.WriteBytes(fields.Bytes())
	body.WriteBytes(ops.Bytes())
	return body.Bytes()
}

// readStreamKey pulls the set name and digest fields a response frame
// carries (namespace is the request's, never echoed back) and builds
// the Key and owning partition id for the record that follows.
func readStreamKey(namespace string, hdr wire.MessageHeader, r *wire.Reader) (*types.Key, int, error) {
	var setName string
	var digest [types.DigestSize]byte
	for i := 0; i < int(hdr.NFields); i++ {
		f, err := wire.ReadField(r)
		if err != nil {
			return nil, 0, err
		}
		switch f.Type {
		case wire.FieldSetName:
			setName = string(f.Payload)
		case wire.FieldDigestRipe:
			copy(digest[:], f.Payload)
		}
	}
	key := types.NewKeyFromDigest(namespace, setName, digest)
	return key, partition.ID(digest), nil
}

// rateLimiter paces one worker's record delivery to at most perSecond
// per second. It's not shared across workers, so it needs no locking.
type rateLimiter struct {
	interval time.Duration
	next     time.Time
}

func newRateLimiter(perSecond int) *rateLimiter {
	return &rateLimiter{interval: time.Second / time.Duration(perSecond)}
}

func (rl *rateLimiter) wait() {
	now := time.Now()
	if rl.next.IsZero() {
		rl.next = now.Add(rl.interval)
		return
	}
	if now.Before(rl.next) {
		time.Sleep(rl.next.Sub(now))
	}
	rl.next = rl.next.Add(rl.interval)
}

func abortWorker(n connProvider, abortKey string, taskID uuid.UUID) {
	cmd := fmt.Sprintf("%s:id=%s", abortKey, taskID.String())
	_, _ = n.Info(5*time.Second, cmd)
}

// runWorker drives one node's share of a scan or query: send the
// request, read frames until QueryEnd, push each record to the
// recordset (blocking on a full queue rather than dropping), and on
// cancellation issue an abort info command instead of draining the rest
// of the stream.
func runWorker(np *NodePartitions, t *Tracker, rs *Recordset, abortCmd string, req streamRequest, socketTimeout time.Duration) {
	defer rs.Done()

	pooled, err := np.Node.GetConnection(socketTimeout)
	if err != nil {
		rs.Push(Result{Err: err})
		return
	}

	body := buildStreamRequest(req)
	if err := pooled.Conn.SetIOTimeout(socketTimeout); err != nil {
		pooled.Invalidate()
		rs.Push(Result{Err: err})
		return
	}
	if err := pooled.Conn.WriteMessage(body); err != nil {
		pooled.Invalidate()
		rs.Push(Result{Err: types.ErrConnection(err)})
		return
	}

	var pacer *rateLimiter
	if req.RecordsPerSecond > 0 {
		pacer = newRateLimiter(req.RecordsPerSecond)
	}

	for {
		if rs.IsCancelled() {
			abortWorker(np.Node, abortCmd, req.TaskID)
			pooled.Invalidate()
			return
		}

		frameBody, err := pooled.Conn.ReadMessage()
		if err != nil {
			pooled.Invalidate()
			rs.Push(Result{Err: types.ErrConnection(err)})
			return
		}
		r := wire.NewReader(frameBody)
		hdr, err := wire.ReadMessageHeader(r)
		if err != nil {
			pooled.Invalidate()
			rs.Push(Result{Err: err})
			return
		}

		rc := types.ResultCode(hdr.ResultCode)
		if rc == types.QueryEnd {
			pooled.Release()
			return
		}
		if rc != types.Ok {
			pooled.Release()
			rs.Push(Result{Err: types.ErrServer(rc, np.Node.Name(), false)})
			return
		}

		key, pid, err := readStreamKey(req.Namespace, hdr, r)
		if err != nil {
			pooled.Invalidate()
			rs.Push(Result{Err: err})
			return
		}
		bins, err := readBins(hdr, r)
		if err != nil {
			pooled.Invalidate()
			rs.Push(Result{Err: err})
			return
		}

		if hdr.Info3&wire.Info3PartitionDone != 0 {
			t.markDone(np.Node.Name(), pid)
		} else {
			t.markDigest(np.Node.Name(), pid, key.Digest)
		}

		if pacer != nil {
			pacer.wait()
		}
		rec := &types.Record{Key: key, Bins: bins, Generation: hdr.Generation, VoidTime: hdr.Expiration}
		if !rs.Push(Result{Record: rec}) {
			abortWorker(np.Node, abortCmd, req.TaskID)
			pooled.Invalidate()
			return
		}
	}
}

// readBins parses hdr.NOps operations into a bins map, folding repeated
// names into a ListValue the same way the single-record command layer
// does.
func readBins(hdr wire.MessageHeader, r *wire.Reader) (map[string]types.Value, error) {
	if hdr.NOps == 0 {
		return nil, nil
	}
	bins := make(map[string]types.Value, hdr.NOps)
	for i := 0; i < int(hdr.NOps); i++ {
		op, err := wire.ReadOp(r)
		if err != nil {
			return nil, err
		}
		v, err := wire.DecodeValue(op.Particle, op.Value)
		if err != nil {
			return nil, err
		}
		if existing, ok := bins[op.Name]; ok {
			if list, ok := existing.(types.ListValue); ok {
				bins[op.Name] = append(list, v)
			} else {
				bins[op.Name] = types.ListValue{existing, v}
			}
			continue
		}
		bins[op.Name] = v
	}
	return bins, nil
}
