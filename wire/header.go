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

// ProtoType distinguishes the payload carried after the 8-byte proto
// header.
type ProtoType uint8

const (
	ProtoTypeInfo    ProtoType = 1
	ProtoTypeMessage ProtoType = 3
)

const (
	protoVersion       = 2
	protoHeaderSize    = 8
	messageHeaderSize  = 22
	maxProtoBodyLength = 1<<48 - 1
)

// Info1 flags: the first info byte of a message header.
const (
	Info1Read     uint8 = 1 << 0
	Info1GetAll   uint8 = 1 << 1
	Info1Batch    uint8 = 1 << 3
	Info1XDR      uint8 = 1 << 4
	Info1NoBinData uint8 = 1 << 5
)

// Info2 flags: the second info byte.
const (
	Info2Write         uint8 = 1 << 0
	Info2Delete        uint8 = 1 << 1
	Info2Generation    uint8 = 1 << 2
	Info2DurableDelete uint8 = 1 << 4
	Info2UpdateOnly    uint8 = 1 << 5
)

// Info3 flags: the third info byte.
const (
	Info3UpdateOnly  uint8 = 1 << 3
	Info3CreateOnly  uint8 = 1 << 5
	Info3Lua         uint8 = 1 << 6
	Info3PartitionDone uint8 = 1 << 2
)

// ProtoHeader is the 8-byte frame that precedes every message.
type ProtoHeader struct {
	Version uint8
	Type    ProtoType
	Length  uint64 // bytes that follow this header, u48
}

// WriteProtoHeader appends the 8-byte proto header to b. The layout is a
// single big-endian u64 with version in the top byte, type in the next,
// and a 48-bit length in the remaining six bytes.
func WriteProtoHeader(b *Buffer, typ ProtoType, length uint64) {
	if length > maxProtoBodyLength {
		length = maxProtoBodyLength
	}
	word := uint64(protoVersion)<<56 | uint64(typ)<<48 | length
	b.WriteUint64(word)
}

// ReadProtoHeader parses the 8-byte proto header.
func ReadProtoHeader(r *Reader) (ProtoHeader, error) {
	word, err := r.ReadUint64()
	if err != nil {
		return ProtoHeader{}, err
	}
	h := ProtoHeader{
		Version: uint8(word >> 56),
		Type:    ProtoType(uint8(word >> 48)),
		Length:  word & maxProtoBodyLength,
	}
	return h, nil
}

// MessageHeader is the 22-byte header following a ProtoTypeMessage proto
// header.
type MessageHeader struct {
	Info1, Info2, Info3 uint8
	ResultCode          uint8
	Generation          uint32
	Expiration          uint32
	TransactionTTL       uint32
	NFields             uint16
	NOps                uint16
}

// WriteMessageHeader appends the fixed 22-byte message header.
func WriteMessageHeader(b *Buffer, h MessageHeader) {
	b.WriteByte(messageHeaderSize)
	b.WriteByte(h.Info1)
	b.WriteByte(h.Info2)
	b.WriteByte(h.Info3)
	b.WriteByte(0) // unused
	b.WriteByte(h.ResultCode)
	b.WriteUint32(h.Generation)
	b.WriteUint32(h.Expiration)
	b.WriteUint32(h.TransactionTTL)
	b.WriteUint16(h.NFields)
	b.WriteUint16(h.NOps)
}

// ReadMessageHeader parses the fixed 22-byte message header. A
// header_size other than 22 is tolerated by skipping the extra bytes, in
// case a future server revision extends it.
func ReadMessageHeader(r *Reader) (MessageHeader, error) {
	size, err := r.ReadByte()
	if err != nil {
		return MessageHeader{}, err
	}
	var h MessageHeader
	if h.Info1, err = r.ReadByte(); err != nil {
		return h, err
	}
	if h.Info2, err = r.ReadByte(); err != nil {
		return h, err
	}
	if h.Info3, err = r.ReadByte(); err != nil {
		return h, err
	}
	if _, err = r.ReadByte(); err != nil { // unused
		return h, err
	}
	if h.ResultCode, err = r.ReadByte(); err != nil {
		return h, err
	}
	if h.Generation, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.Expiration, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.TransactionTTL, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.NFields, err = r.ReadUint16(); err != nil {
		return h, err
	}
	if h.NOps, err = r.ReadUint16(); err != nil {
		return h, err
	}
	if size > messageHeaderSize {
		if err := r.Skip(int(size) - messageHeaderSize); err != nil {
			return h, err
		}
	}
	return h, nil
}
