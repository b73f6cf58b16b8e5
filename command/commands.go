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

package command

import (
	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

func recordResult(key *types.Key) parseFunc {
	return func(hdr wire.MessageHeader, r *wire.Reader) (any, error) {
		if err := skipFields(hdr, r); err != nil {
			return nil, err
		}
		bins, err := readBins(hdr, r)
		if err != nil {
			return nil, err
		}
		return &types.Record{
			Key:        key,
			Bins:       bins,
			Generation: hdr.Generation,
			VoidTime:   hdr.Expiration,
		}, nil
	}
}

// readTouchExpiration carries ReadPolicy.ReadTouchTTLPercent into the
// request's otherwise-unused (on reads) expiration header field: 1-100
// asks the server to touch the record's TTL if its remaining fraction is
// below that percentage, 0 leaves TTL untouched. Reads never write this
// field for any other purpose, so it's free to repurpose here.
func readTouchExpiration(p policy.ReadPolicy) uint32 {
	if p.ReadTouchTTLPercent <= 0 || p.ReadTouchTTLPercent > 100 {
		return 0
	}
	return uint32(p.ReadTouchTTLPercent)
}

// Get reads every bin of a record.
func (e *Engine) Get(p policy.ReadPolicy, key *types.Key) (*types.Record, error) {
	opts := messageOpts{Info1: wire.Info1Read | wire.Info1GetAll, Expiration: readTouchExpiration(p)}
	v, err := e.Execute(p.BasePolicy, key.Namespace, key, opts,
		func(rq *request) { rq.addKeyFields(key) },
		recordResult(key))
	if err != nil {
		return nil, err
	}
	return v.(*types.Record), nil
}

// GetBins reads only the named bins of a record.
func (e *Engine) GetBins(p policy.ReadPolicy, key *types.Key, binNames ...string) (*types.Record, error) {
	opts := messageOpts{Info1: wire.Info1Read, Expiration: readTouchExpiration(p)}
	v, err := e.Execute(p.BasePolicy, key.Namespace, key, opts,
		func(rq *request) {
			rq.addKeyFields(key)
			for _, name := range binNames {
				rq.addOp(wire.OpRead, types.ParticleNull, name, nil)
			}
		},
		recordResult(key))
	if err != nil {
		return nil, err
	}
	return v.(*types.Record), nil
}

// GetHeader reads only a record's generation and expiration, no bin data.
func (e *Engine) GetHeader(p policy.ReadPolicy, key *types.Key) (*types.Record, error) {
	opts := messageOpts{Info1: wire.Info1Read | wire.Info1GetAll | wire.Info1NoBinData}
	v, err := e.Execute(p.BasePolicy, key.Namespace, key, opts,
		func(rq *request) { rq.addKeyFields(key) },
		recordResult(key))
	if err != nil {
		return nil, err
	}
	return v.(*types.Record), nil
}

// Exists reports whether a record is present, without fetching any data.
func (e *Engine) Exists(p policy.ReadPolicy, key *types.Key) (bool, error) {
	opts := messageOpts{Info1: wire.Info1Read | wire.Info1GetAll | wire.Info1NoBinData}
	_, err := e.Execute(p.BasePolicy, key.Namespace, key, opts,
		func(rq *request) { rq.addKeyFields(key) },
		func(hdr wire.MessageHeader, r *wire.Reader) (any, error) { return nil, nil })
	if err != nil {
		if types.IsKeyNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func okResult(hdr wire.MessageHeader, r *wire.Reader) (any, error) { return nil, nil }

func writeInfo3(p policy.WritePolicy) uint8 {
	var i3 uint8
	switch p.RecordExistsAction {
	case policy.UpdateOnly, policy.ReplaceOnly:
		i3 |= wire.Info3UpdateOnly
	case policy.CreateOnly:
		i3 |= wire.Info3CreateOnly
	}
	return i3
}

func writeInfo2(p policy.WritePolicy) uint8 {
	i2 := wire.Info2Write
	if p.DurableDelete {
		i2 |= wire.Info2DurableDelete
	}
	if p.GenerationPolicy != policy.GenerationIgnore {
		i2 |= wire.Info2Generation
	}
	return i2
}

// Put writes every given bin, per RecordExistsAction/GenerationPolicy.
func (e *Engine) Put(p policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	opts := messageOpts{
		Info2:          writeInfo2(p),
		Info3:          writeInfo3(p),
		Generation:     p.Generation,
		Expiration:     p.Expiration,
		TransactionTTL: 0,
	}
	_, err := e.Execute(p.BasePolicy, key.Namespace, key, opts,
		func(rq *request) {
			rq.addKeyFields(key)
			for _, b := range bins {
				particle, payload := wire.EncodeValue(b.Value)
				rq.addOp(wire.OpWrite, particle, b.Name, payload)
			}
		},
		okResult)
	return err
}

func writeLikeOp(op wire.OpType) func(e *Engine, p policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	return func(e *Engine, p policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
		opts := messageOpts{
			Info2:      writeInfo2(p),
			Info3:      writeInfo3(p),
			Generation: p.Generation,
			Expiration: p.Expiration,
		}
		_, err := e.Execute(p.BasePolicy, key.Namespace, key, opts,
			func(rq *request) {
				rq.addKeyFields(key)
				for _, b := range bins {
					particle, payload := wire.EncodeValue(b.Value)
					rq.addOp(op, particle, b.Name, payload)
				}
			},
			okResult)
		return err
	}
}

// Append appends the given bin values to existing string/blob bins.
func (e *Engine) Append(p policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	return writeLikeOp(wire.OpAppend)(e, p, key, bins...)
}

// Prepend prepends the given bin values to existing string/blob bins.
func (e *Engine) Prepend(p policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	return writeLikeOp(wire.OpPrepend)(e, p, key, bins...)
}

// Add adds the given numeric bin values to existing integer bins.
func (e *Engine) Add(p policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	return writeLikeOp(wire.OpAdd)(e, p, key, bins...)
}

// Delete removes a record entirely.
func (e *Engine) Delete(p policy.WritePolicy, key *types.Key) (bool, error) {
	opts := messageOpts{
		Info2: writeInfo2(p) | wire.Info2Delete,
		Info3: writeInfo3(p),
	}
	_, err := e.Execute(p.BasePolicy, key.Namespace, key, opts,
		func(rq *request) { rq.addKeyFields(key) },
		okResult)
	if err != nil {
		if types.IsKeyNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Touch resets a record's TTL without altering its bins.
func (e *Engine) Touch(p policy.WritePolicy, key *types.Key) error {
	opts := messageOpts{
		Info2:      writeInfo2(p),
		Info3:      writeInfo3(p) | wire.Info3UpdateOnly,
		Generation: p.Generation,
		Expiration: p.Expiration,
	}
	_, err := e.Execute(p.BasePolicy, key.Namespace, key, opts,
		func(rq *request) {
			rq.addKeyFields(key)
			rq.addOp(wire.OpTouch, types.ParticleNull, "", nil)
		},
		okResult)
	return err
}

// Operation is a single entry in an Operate call's ordered op list.
type Operation struct {
	Type     wire.OpType
	BinName  string
	Value    types.Value // nil for read/bare ops
}

// ReadOp builds a read operation for the given bin.
func ReadOp(binName string) Operation {
	return Operation{Type: wire.OpRead, BinName: binName}
}

// WriteOp builds a write operation for the given bin and value.
func WriteOp(binName string, v types.Value) Operation {
	return Operation{Type: wire.OpWrite, BinName: binName, Value: v}
}

// Operate executes an ordered mixed read/write op list against a single
// record in one round trip.
func (e *Engine) Operate(rp policy.ReadPolicy, wp policy.WritePolicy, key *types.Key, ops ...Operation) (*types.Record, error) {
	var info1 uint8
	var info2 uint8
	for _, op := range ops {
		switch op.Type {
		case wire.OpRead, wire.OpCDTRead, wire.OpHLLRead, wire.OpBitRead, wire.OpExpRead:
			info1 |= wire.Info1Read
		default:
			info2 |= wire.Info2Write
		}
	}
	if info2 != 0 && wp.DurableDelete {
		info2 |= wire.Info2DurableDelete
	}

	base := rp.BasePolicy
	if info2 != 0 {
		base = wp.BasePolicy
	}

	opts := messageOpts{
		Info1:      info1,
		Info2:      info2,
		Generation: wp.Generation,
		Expiration: wp.Expiration,
	}
	v, err := e.Execute(base, key.Namespace, key, opts,
		func(rq *request) {
			rq.addKeyFields(key)
			for _, op := range ops {
				if op.Value == nil {
					rq.addOp(op.Type, types.ParticleNull, op.BinName, nil)
					continue
				}
				particle, payload := wire.EncodeValue(op.Value)
				rq.addOp(op.Type, particle, op.BinName, payload)
			}
		},
		recordResult(key))
	if err != nil {
		return nil, err
	}
	return v.(*types.Record), nil
}

// ExecuteUDF invokes a server-side Lua user-defined function against a
// single record.
func (e *Engine) ExecuteUDF(wp policy.WritePolicy, key *types.Key, packageName, functionName string, args types.ListValue) (*types.Record, error) {
	opts := messageOpts{
		Info2: wire.Info2Write,
		Info3: wire.Info3Lua,
	}
	v, err := e.Execute(wp.BasePolicy, key.Namespace, key, opts,
		func(rq *request) {
			rq.addKeyFields(key)
			rq.addFieldString(wire.FieldUDFPackageName, packageName)
			rq.addFieldString(wire.FieldUDFFunction, functionName)
			var argBuf wire.Buffer
			wire.PackValue(&argBuf, args)
			rq.addField(wire.FieldUDFArgList, argBuf.Bytes())
		},
		func(hdr wire.MessageHeader, r *wire.Reader) (any, error) {
			if err := skipFields(hdr, r); err != nil {
				return nil, err
			}
			bins, err := readBins(hdr, r)
			if err != nil {
				return nil, err
			}
			if v, ok := bins["SUCCESS"]; ok {
				return &types.Record{Key: key, Bins: map[string]types.Value{"SUCCESS": v}, Generation: hdr.Generation, VoidTime: hdr.Expiration}, nil
			}
			if v, ok := bins["FAILURE"]; ok {
				return nil, types.ErrUdfBadResponse(v.String())
			}
			return &types.Record{Key: key, Bins: bins, Generation: hdr.Generation, VoidTime: hdr.Expiration}, nil
		})
	if err != nil {
		return nil, err
	}
	return v.(*types.Record), nil
}
