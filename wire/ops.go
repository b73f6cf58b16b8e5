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

package wire

import "github.com/nodedb/nodedb-go/types"

// OpType tags what a single operation does to a bin.
type OpType uint8

const (
	OpRead       OpType = 1
	OpWrite      OpType = 2
	OpCDTRead    OpType = 3
	OpCDTModify  OpType = 4
	OpAdd        OpType = 5
	OpAppend     OpType = 9
	OpPrepend    OpType = 10
	OpTouch      OpType = 11
	OpHLLRead    OpType = 18
	OpHLLModify  OpType = 19
	OpBitRead    OpType = 20
	OpBitModify  OpType = 21
	OpExpRead    OpType = 22
	OpExpModify  OpType = 23
	OpDelete     OpType = 14
)

// Op is a single decoded operation: a verb, a particle type, and a named
// value. For a read-all-bins or bare-verb op (touch, delete), Name and
// Value are empty/nil.
type Op struct {
	Type     OpType
	Particle types.Particle
	Name     string
	Value    []byte
}

const opHeaderSize = 4 // op_type, particle_type, version, name_len

// WriteOp appends one operation: a u32 size covering everything that
// follows (header + name + value), op_type, particle_type, version(=0),
// name_len, name, value.
func WriteOp(b *Buffer, typ OpType, particle types.Particle, name string, value []byte) {
	b.WriteUint32(uint32(opHeaderSize + len(name) + len(value)))
	b.WriteByte(byte(typ))
	b.WriteByte(byte(particle))
	b.WriteByte(0) // version
	b.WriteByte(byte(len(name)))
	b.WriteString(name)
	b.WriteBytes(value)
}

// ReadOp parses one operation from r.
func ReadOp(r *Reader) (Op, error) {
	size, err := r.ReadUint32()
	if err != nil {
		return Op{}, err
	}
	if int(size) < opHeaderSize {
		return Op{}, ErrMalformed
	}
	typ, err := r.ReadByte()
	if err != nil {
		return Op{}, err
	}
	particle, err := r.ReadByte()
	if err != nil {
		return Op{}, err
	}
	if _, err := r.ReadByte(); err != nil { // version
		return Op{}, err
	}
	nameLen, err := r.ReadByte()
	if err != nil {
		return Op{}, err
	}
	nameBytes, err := r.ReadBytes(int(nameLen))
	if err != nil {
		return Op{}, err
	}
	valueLen := int(size) - opHeaderSize - int(nameLen)
	if valueLen < 0 {
		return Op{}, ErrMalformed
	}
	value, err := r.ReadBytes(valueLen)
	if err != nil {
		return Op{}, err
	}
	return Op{
		Type:     OpType(typ),
		Particle: types.Particle(particle),
		Name:     string(nameBytes),
		Value:    value,
	}, nil
}
