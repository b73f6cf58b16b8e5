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

// FieldType tags the payload carried by a single message field.
type FieldType uint8

const (
	FieldNamespace       FieldType = 0
	FieldSetName         FieldType = 1
	FieldKey             FieldType = 2
	FieldDigestRipe      FieldType = 4
	FieldQueryID         FieldType = 7
	FieldSocketTimeout   FieldType = 9
	FieldRecordsPerSecond FieldType = 10
	FieldPIDArray        FieldType = 11
	FieldDigestArray     FieldType = 12
	FieldMaxRecords      FieldType = 13
	FieldBValArray       FieldType = 15
	FieldIndexName       FieldType = 21
	FieldIndexRange      FieldType = 22
	FieldIndexType       FieldType = 26
	FieldUDFPackageName  FieldType = 30
	FieldUDFFunction     FieldType = 31
	FieldUDFArgList      FieldType = 32
	FieldUDFOp           FieldType = 33
	FieldBatchIndex      FieldType = 41
	FieldFilterExp       FieldType = 43
	FieldQueryDuration   FieldType = 44
	FieldSessionNonce    FieldType = 45
)

// Field is a single decoded message field.
type Field struct {
	Type    FieldType
	Payload []byte
}

// WriteField appends a field: a u32 size (which includes the type byte
// itself), the type byte, then the payload.
func WriteField(b *Buffer, typ FieldType, payload []byte) {
	b.WriteUint32(uint32(len(payload) + 1))
	b.WriteByte(byte(typ))
	b.WriteBytes(payload)
}

// WriteFieldString is a convenience for string-payload fields (namespace,
// set name, index name, …).
func WriteFieldString(b *Buffer, typ FieldType, s string) {
	WriteField(b, typ, []byte(s))
}

// WriteFieldUint32 is a convenience for fields carrying a single
// big-endian u32 (socket timeout, max records' low word, …).
func WriteFieldUint32(b *Buffer, typ FieldType, v uint32) {
	var payload [4]byte
	payload[0] = byte(v >> 24)
	payload[1] = byte(v >> 16)
	payload[2] = byte(v >> 8)
	payload[3] = byte(v)
	WriteField(b, typ, payload[:])
}

// ReadField parses one field from r.
func ReadField(r *Reader) (Field, error) {
	size, err := r.ReadUint32()
	if err != nil {
		return Field{}, err
	}
	if size < 1 {
		return Field{}, ErrMalformed
	}
	typ, err := r.ReadByte()
	if err != nil {
		return Field{}, err
	}
	payload, err := r.ReadBytes(int(size) - 1)
	if err != nil {
		return Field{}, err
	}
	return Field{Type: FieldType(typ), Payload: payload}, nil
}
