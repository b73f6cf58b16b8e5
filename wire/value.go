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

import (
	"encoding/binary"
	"math"

	"github.com/nodedb/nodedb-go/types"
)

// EncodeValue renders v the way it travels as an op's value payload: raw
// big-endian bytes for scalar particle types, the packed container
// encoding for list/map, and the geo-JSON wire form for GeoJSONValue.
// Every op carries the resulting particle type alongside the bytes.
func EncodeValue(v types.Value) (types.Particle, []byte) {
	switch t := v.(type) {
	case nil, types.NullValue:
		return types.ParticleNull, nil
	case types.BoolValue:
		// The server has no boolean particle type; booleans travel as
		// integers (0/1), matching how bins are actually stored.
		if bool(t) {
			return types.ParticleInteger, encodeInt(1)
		}
		return types.ParticleInteger, encodeInt(0)
	case types.IntegerValue:
		return types.ParticleInteger, encodeInt(int64(t))
	case types.UintValue:
		return types.ParticleInteger, encodeInt(int64(t))
	case types.FloatValue:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(float64(t)))
		return types.ParticleFloat, buf[:]
	case types.StringValue:
		return types.ParticleString, []byte(string(t))
	case types.BlobValue:
		return types.ParticleBlob, []byte(t)
	case types.HLLValue:
		return types.ParticleHLL, []byte(t)
	case types.GeoJSONValue:
		return types.ParticleGeoJSON, EncodeGeoJSON(string(t))
	case types.ListValue:
		var b Buffer
		PackList(&b, t)
		return types.ParticleList, b.Bytes()
	case types.MapValue:
		var b Buffer
		PackMap(&b, t)
		return types.ParticleMap, b.Bytes()
	case types.OrderedMapValue:
		var b Buffer
		PackMap(&b, types.MapValue(t))
		return types.ParticleMap, b.Bytes()
	default:
		return types.ParticleNull, nil
	}
}

func encodeInt(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return buf[:]
}

// DecodeValue parses a bin's raw value payload given the particle type
// the server tagged it with.
func DecodeValue(particle types.Particle, payload []byte) (types.Value, error) {
	switch particle {
	case types.ParticleNull:
		return types.NullValue{}, nil
	case types.ParticleInteger:
		if len(payload) != 8 {
			return nil, ErrMalformed
		}
		return types.IntegerValue(int64(binary.BigEndian.Uint64(payload))), nil
	case types.ParticleFloat:
		if len(payload) != 8 {
			return nil, ErrMalformed
		}
		return types.FloatValue(math.Float64frombits(binary.BigEndian.Uint64(payload))), nil
	case types.ParticleString:
		return types.StringValue(string(payload)), nil
	case types.ParticleBlob:
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return types.BlobValue(cp), nil
	case types.ParticleHLL:
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return types.HLLValue(cp), nil
	case types.ParticleDigest:
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return types.BlobValue(cp), nil
	case types.ParticleGeoJSON:
		s, err := DecodeGeoJSON(payload)
		if err != nil {
			return nil, err
		}
		return types.GeoJSONValue(s), nil
	case types.ParticleList:
		r := NewReader(payload)
		v, err := UnpackValue(r)
		if err != nil {
			return nil, err
		}
		return v, nil
	case types.ParticleMap:
		r := NewReader(payload)
		v, err := UnpackValue(r)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, ErrMalformed
	}
}

// PackValue recursively appends v in the packed container encoding. It
// is used both standalone (e.g. within CDT operation context payloads)
// and by EncodeValue for list/map bin values.
func PackValue(b *Buffer, v types.Value) {
	switch t := v.(type) {
	case nil, types.NullValue:
		PackNil(b)
	case types.BoolValue:
		PackBool(b, bool(t))
	case types.IntegerValue:
		PackInt(b, int64(t))
	case types.UintValue:
		PackUint(b, uint64(t))
	case types.FloatValue:
		PackFloat64(b, float64(t))
	case types.StringValue:
		PackString(b, string(t))
	case types.BlobValue:
		PackBlob(b, []byte(t))
	case types.HLLValue:
		PackBlob(b, []byte(t))
	case types.GeoJSONValue:
		PackString(b, string(t))
	case types.ListValue:
		PackList(b, t)
	case types.MapValue:
		PackMap(b, t)
	case types.OrderedMapValue:
		PackMap(b, types.MapValue(t))
	default:
		PackNil(b)
	}
}

// PackList appends an array header followed by each element, recursively
// packed.
func PackList(b *Buffer, list types.ListValue) {
	PackArrayHeader(b, len(list))
	for _, elem := range list {
		PackValue(b, elem)
	}
}

// PackMap appends a map header followed by each key/value pair,
// recursively packed. Entry order is preserved as given; callers that
// need server-canonical (sorted) key order must sort entries first.
func PackMap(b *Buffer, m types.MapValue) {
	PackMapHeader(b, len(m))
	for _, e := range m {
		PackValue(b, e.Key)
		PackValue(b, e.Value)
	}
}

// UnpackValue decodes one packed value, recursing into arrays and maps.
// Maps decode as OrderedMapValue, since responses preserve the server's
// key-sorted order (see the package doc on Value in types).
func UnpackValue(r *Reader) (types.Value, error) {
	tag, err := unpackTag(r)
	if err != nil {
		return nil, err
	}
	switch classifyTag(tag) {
	case kindNil:
		return types.NullValue{}, nil
	case kindBool:
		return types.BoolValue(tag == mpTrue), nil
	case kindInt:
		v, err := unpackIntBody(r, tag)
		if err != nil {
			return nil, err
		}
		return types.IntegerValue(v), nil
	case kindFloat:
		switch tag {
		case mpFloat32:
			v, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			return types.FloatValue(float64(math.Float32frombits(v))), nil
		case mpFloat64:
			v, err := r.ReadUint64()
			if err != nil {
				return nil, err
			}
			return types.FloatValue(math.Float64frombits(v)), nil
		}
		return nil, ErrMalformed
	case kindString:
		n, err := strLen(r, tag)
		if err != nil {
			return nil, err
		}
		s, err := r.ReadBytes(n)
		if err != nil {
			return nil, err
		}
		return types.StringValue(string(s)), nil
	case kindBlob:
		var n int
		switch tag {
		case mpBin8:
			v, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			n = int(v)
		case mpBin16:
			v, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			n = int(v)
		case mpBin32:
			v, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			n = int(v)
		}
		data, err := r.ReadBytes(n)
		if err != nil {
			return nil, err
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		return types.BlobValue(cp), nil
	case kindArray:
		n, err := arrayLen(r, tag)
		if err != nil {
			return nil, err
		}
		list := make(types.ListValue, 0, n)
		for i := 0; i < n; i++ {
			elem, err := UnpackValue(r)
			if err != nil {
				return nil, err
			}
			list = append(list, elem)
		}
		return list, nil
	case kindMap:
		n, err := mapLen(r, tag)
		if err != nil {
			return nil, err
		}
		entries := make(types.OrderedMapValue, 0, n)
		for i := 0; i < n; i++ {
			k, err := UnpackValue(r)
			if err != nil {
				return nil, err
			}
			v, err := UnpackValue(r)
			if err != nil {
				return nil, err
			}
			entries = append(entries, types.MapEntry{Key: k, Value: v})
		}
		return entries, nil
	case kindExt:
		if err := skipExt(r, tag); err != nil {
			return nil, err
		}
		return types.NullValue{}, nil
	default:
		return nil, ErrMalformed
	}
}
