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

// Package command implements the single-key retry/deadline engine and
// the operations built on it: get, put, delete, touch, operate, and UDF
// execution.
package command

import (
	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

// request accumulates a message's fields and ops separately so their
// counts are known before the fixed message header (which must declare
// them) is written.
type request struct {
	fields  wire.Buffer
	ops     wire.Buffer
	nFields uint16
	nOps    uint16
}

func (rq *request) addField(typ wire.FieldType, payload []byte) {
	wire.WriteField(&rq.fields, typ, payload)
	rq.nFields++
}

func (rq *request) addFieldString(typ wire.FieldType, s string) {
	wire.WriteFieldString(&rq.fields, typ, s)
	rq.nFields++
}

func (rq *request) addFieldUint32(typ wire.FieldType, v uint32) {
	wire.WriteFieldUint32(&rq.fields, typ, v)
	rq.nFields++
}

func (rq *request) addOp(typ wire.OpType, particle types.Particle, name string, value []byte) {
	wire.WriteOp(&rq.ops, typ, particle, name, value)
	rq.nOps++
}

// addKeyFields writes the namespace/set/digest triple every single-key
// command addresses its record by.
func (rq *request) addKeyFields(key *types.Key) {
	rq.addFieldString(wire.FieldNamespace, key.Namespace)
	if key.SetName != "" {
		rq.addFieldString(wire.FieldSetName, key.SetName)
	}
	rq.addField(wire.FieldDigestRipe, key.Digest[:])
}

type messageOpts struct {
	Info1, Info2, Info3        uint8
	Generation                 uint32
	Expiration                 uint32
	TransactionTTL             uint32
}

// build assembles the full message body (fixed header, then fields, then
// ops) ready for Connection.WriteMessage.
func (rq *request) build(opts messageOpts) []byte {
	var out wire.Buffer
	wire.WriteMessageHeader(&out, wire.MessageHeader{
		Info1:          opts.Info1,
		Info2:          opts.Info2,
		Info3:          opts.Info3,
		Generation:     opts.Generation,
		Expiration:     opts.Expiration,
		TransactionTTL: opts.TransactionTTL,
		NFields:        rq.nFields,
		NOps:           rq.nOps,
	})
	out.WriteBytes(rq.fields.Bytes())
	out.WriteBytes(rq.ops.Bytes())
	return out.Bytes()
}

// readBins consumes hdr.NOps operations from r and builds the bins map a
// read response carries. A bin name seen more than once (as CDT ops that
// return multiple elements do) is folded into a ListValue rather than
// overwritten, matching what the server semantically means by repeating
// the name.
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

func skipFields(hdr wire.MessageHeader, r *wire.Reader) error {
	for i := 0; i < int(hdr.NFields); i++ {
		if _, err := wire.ReadField(r); err != nil {
			return err
		}
	}
	return nil
}
