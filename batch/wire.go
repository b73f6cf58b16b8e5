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

package batch

import (
	"github.com/nodedb/nodedb-go/cluster"
	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

// encodeReadIndex writes one batch-index read entry: the original index,
// the 20-byte digest, a selector byte, and (only for SelectSome) the bin
// name list.
func encodeReadIndex(b *wire.Buffer, idx int, r *BatchRead) {
	b.WriteUint32(uint32(idx))
	b.WriteBytes(r.Key.Digest[:])
	b.WriteByte(byte(r.Selector))
	if r.Selector == SelectSome {
		b.WriteUint16(uint16(len(r.BinNames)))
		for _, name := range r.BinNames {
			b.WriteByte(byte(len(name)))
			b.WriteString(name)
		}
	}
}

func buildReadRequest(namespace string, g *nodeGroup, reads []*BatchRead) []byte {
	var entries wire.Buffer
	entries.WriteUint16(uint16(len(g.entries)))
	for _, idx := range g.entries {
		encodeReadIndex(&entries, idx, reads[idx])
	}

	var fields wire.Buffer
	wire.WriteFieldString(&fields, wire.FieldNamespace, namespace)
	wire.WriteField(&fields, wire.FieldBatchIndex, entries.Bytes())

	var body wire.Buffer
	wire.WriteMessageHeader(&body, wire.MessageHeader{
		Info1:   wire.Info1Read | wire.Info1Batch,
		NFields: 2,
	})
	body.WriteBytes(fields.Bytes())
	return body.Bytes()
}

// encodeWriteIndex mirrors encodeReadIndex for a batch-write entry: the
// original index, digest, op count, then each op encoded like a normal
// operate() op.
func encodeWriteIndex(b *wire.Buffer, idx int, w *BatchWrite) {
	b.WriteUint32(uint32(idx))
	b.WriteBytes(w.Key.Digest[:])
	b.WriteUint16(uint16(len(w.Ops)))
	for _, op := range w.Ops {
		if op.Value == nil {
			wire.WriteOp(b, op.Type, types.ParticleNull, op.Name, nil)
			continue
		}
		particle, payload := wire.EncodeValue(op.Value)
		wire.WriteOp(b, op.Type, particle, op.Name, payload)
	}
}

func buildWriteRequest(namespace string, g *nodeGroup, writes []*BatchWrite) []byte {
	var entries wire.Buffer
	entries.WriteUint16(uint16(len(g.entries)))
	for _, idx := range g.entries {
		encodeWriteIndex(&entries, idx, writes[idx])
	}

	var fields wire.Buffer
	wire.WriteFieldString(&fields, wire.FieldNamespace, namespace)
	wire.WriteField(&fields, wire.FieldBatchIndex, entries.Bytes())

	var body wire.Buffer
	wire.WriteMessageHeader(&body, wire.MessageHeader{
		Info1:   wire.Info1Batch,
		Info2:   wire.Info2Write,
		NFields: 2,
	})
	body.WriteBytes(fields.Bytes())
	return body.Bytes()
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

// readNode sends one node's grouped batch-read request and consumes its
// response frame stream, writing results back into reads by original
// index.
func readNode(c *cluster.Cluster, namespace string, p policy.BatchPolicy, g *nodeGroup, reads []*BatchRead) error {
	pooled, err := g.node.GetConnection(p.SocketTimeout)
	if err != nil {
		for _, idx := range g.entries {
			reads[idx].Err = err
		}
		return nil
	}

	body := buildReadRequest(namespace, g, reads)
	if err := pooled.Conn.SetIOTimeout(p.SocketTimeout); err != nil {
		pooled.Invalidate()
		return assignErr(reads, g.entries, err)
	}
	if err := pooled.Conn.WriteMessage(body); err != nil {
		pooled.Invalidate()
		return assignErr(reads, g.entries, types.ErrConnection(err))
	}

	for {
		frameBody, err := pooled.Conn.ReadMessage()
		if err != nil {
			pooled.Invalidate()
			return assignErr(reads, g.entries, types.ErrConnection(err))
		}
		r := wire.NewReader(frameBody)
		hdr, err := wire.ReadMessageHeader(r)
		if err != nil {
			pooled.Invalidate()
			return assignErr(reads, g.entries, err)
		}
		rc := types.ResultCode(hdr.ResultCode)
		if rc == types.QueryEnd {
			pooled.Release()
			return nil
		}

		var fields []wire.Field
		for i := 0; i < int(hdr.NFields); i++ {
			f, err := wire.ReadField(r)
			if err != nil {
				pooled.Invalidate()
				return assignErr(reads, g.entries, err)
			}
			fields = append(fields, f)
		}
		idx, ok := findBatchIndex(fields)
		if !ok || idx < 0 || idx >= len(reads) {
			pooled.Invalidate()
			return assignErr(reads, g.entries, types.ErrBadResponse("batch response missing a valid index field"))
		}

		if rc != types.Ok {
			reads[idx].Err = types.ErrBatch(idx, rc, g.node.Name(), false)
			continue
		}
		bins, err := readBins(hdr, r)
		if err != nil {
			pooled.Invalidate()
			return assignErr(reads, g.entries, err)
		}
		reads[idx].Record = &types.Record{
			Key:        reads[idx].Key,
			Bins:       bins,
			Generation: hdr.Generation,
			VoidTime:   hdr.Expiration,
		}
	}
}

// writeNode mirrors readNode for batch writes.
func writeNode(c *cluster.Cluster, namespace string, p policy.BatchPolicy, g *nodeGroup, writes []*BatchWrite) error {
	pooled, err := g.node.GetConnection(p.SocketTimeout)
	if err != nil {
		for _, idx := range g.entries {
			writes[idx].Err = err
		}
		return nil
	}

	body := buildWriteRequest(namespace, g, writes)
	if err := pooled.Conn.SetIOTimeout(p.SocketTimeout); err != nil {
		pooled.Invalidate()
		return assignWriteErr(writes, g.entries, err)
	}
	if err := pooled.Conn.WriteMessage(body); err != nil {
		pooled.Invalidate()
		return assignWriteErr(writes, g.entries, types.ErrConnection(err))
	}

	for {
		frameBody, err := pooled.Conn.ReadMessage()
		if err != nil {
			pooled.Invalidate()
			return assignWriteErr(writes, g.entries, types.ErrConnection(err))
		}
		r := wire.NewReader(frameBody)
		hdr, err := wire.ReadMessageHeader(r)
		if err != nil {
			pooled.Invalidate()
			return assignWriteErr(writes, g.entries, err)
		}
		rc := types.ResultCode(hdr.ResultCode)
		if rc == types.QueryEnd {
			pooled.Release()
			return nil
		}

		var fields []wire.Field
		for i := 0; i < int(hdr.NFields); i++ {
			f, err := wire.ReadField(r)
			if err != nil {
				pooled.Invalidate()
				return assignWriteErr(writes, g.entries, err)
			}
			fields = append(fields, f)
		}
		idx, ok := findBatchIndex(fields)
		if !ok || idx < 0 || idx >= len(writes) {
			pooled.Invalidate()
			return assignWriteErr(writes, g.entries, types.ErrBadResponse("batch response missing a valid index field"))
		}

		if rc != types.Ok {
			writes[idx].Err = types.ErrBatch(idx, rc, g.node.Name(), false)
			continue
		}
		writes[idx].Record = &types.Record{Key: writes[idx].Key, Generation: hdr.Generation, VoidTime: hdr.Expiration}
	}
}

func findBatchIndex(fields []wire.Field) (int, bool) {
	for _, f := range fields {
		if f.Type == wire.FieldBatchIndex && len(f.Payload) >= 4 {
			idx := uint32(f.Payload[0])<<24 | uint32(f.Payload[1])<<16 | uint32(f.Payload[2])<<8 | uint32(f.Payload[3])
			return int(idx), true
		}
	}
	return 0, false
}

func assignErr(reads []*BatchRead, entries []int, err error) error {
	for _, idx := range entries {
		if reads[idx].Record == nil && reads[idx].Err == nil {
			reads[idx].Err = err
		}
	}
	return nil
}

func assignWriteErr(writes []*BatchWrite, entries []int, err error) error {
	for _, idx := range entries {
		if writes[idx].Record == nil && writes[idx].Err == nil {
			writes[idx].Err = err
		}
	}
	return nil
}
