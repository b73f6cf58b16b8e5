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

import "math"

// This file implements the packed container format: a self-describing,
// length-prefixed encoding modeled on the widely used msgpack wire
// format. It underlies list and map bin values and nested CDT operation
// payloads. Every Pack* function appends to a Buffer; every unpack*
// function consumes from a Reader.

const (
	mpNil        = 0xc0
	mpFalse      = 0xc2
	mpTrue       = 0xc3
	mpFloat32    = 0xca
	mpFloat64    = 0xcb
	mpUint8      = 0xcc
	mpUint16     = 0xcd
	mpUint32     = 0xce
	mpUint64     = 0xcf
	mpInt8       = 0xd0
	mpInt16      = 0xd1
	mpInt32      = 0xd2
	mpInt64      = 0xd3
	mpBin8       = 0xc4
	mpBin16      = 0xc5
	mpBin32      = 0xc6
	mpStr8       = 0xd9
	mpStr16      = 0xda
	mpStr32      = 0xdb
	mpArray16    = 0xdc
	mpArray32    = 0xdd
	mpMap16      = 0xde
	mpMap32      = 0xdf
	mpFixExt1    = 0xd4
	mpFixExt2    = 0xd5
	mpFixExt4    = 0xd6
	mpFixExt8    = 0xd7
	mpFixExt16   = 0xd8
	mpExt8       = 0xc7
	mpExt16      = 0xc8
	mpExt32      = 0xc9

	mpFixStrBase   = 0xa0
	mpFixArrayBase = 0x90
	mpFixMapBase   = 0x80
	mpPosFixIntMax = 0x7f
	mpNegFixIntMin = 0xe0
)

func PackNil(b *Buffer) { b.WriteByte(mpNil) }

func PackBool(b *Buffer, v bool) {
	if v {
		b.WriteByte(mpTrue)
	} else {
		b.WriteByte(mpFalse)
	}
}

// PackInt appends the smallest msgpack integer encoding that losslessly
// represents v.
func PackInt(b *Buffer, v int64) {
	switch {
	case v >= 0 && v <= mpPosFixIntMax:
		b.WriteByte(byte(v))
	case v < 0 && v >= -32:
		b.WriteByte(byte(int8(v)))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		b.WriteByte(mpInt8)
		b.WriteByte(byte(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		b.WriteByte(mpInt16)
		b.WriteUint16(uint16(int16(v)))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		b.WriteByte(mpInt32)
		b.WriteUint32(uint32(int32(v)))
	default:
		b.WriteByte(mpInt64)
		b.WriteUint64(uint64(v))
	}
}

// PackUint appends the smallest msgpack unsigned encoding for v.
func PackUint(b *Buffer, v uint64) {
	switch {
	case v <= mpPosFixIntMax:
		b.WriteByte(byte(v))
	case v <= math.MaxUint8:
		b.WriteByte(mpUint8)
		b.WriteByte(byte(v))
	case v <= math.MaxUint16:
		b.WriteByte(mpUint16)
		b.WriteUint16(uint16(v))
	case v <= math.MaxUint32:
		b.WriteByte(mpUint32)
		b.WriteUint32(uint32(v))
	default:
		b.WriteByte(mpUint64)
		b.WriteUint64(v)
	}
}

func PackFloat32(b *Buffer, v float32) {
	b.WriteByte(mpFloat32)
	b.WriteUint32(math.Float32bits(v))
}

func PackFloat64(b *Buffer, v float64) {
	b.WriteByte(mpFloat64)
	b.WriteUint64(math.Float64bits(v))
}

func PackString(b *Buffer, s string) {
	n := len(s)
	switch {
	case n < 32:
		b.WriteByte(byte(mpFixStrBase | n))
	case n <= math.MaxUint8:
		b.WriteByte(mpStr8)
		b.WriteByte(byte(n))
	case n <= math.MaxUint16:
		b.WriteByte(mpStr16)
		b.WriteUint16(uint16(n))
	default:
		b.WriteByte(mpStr32)
		b.WriteUint32(uint32(n))
	}
	b.WriteString(s)
}

func PackBlob(b *Buffer, v []byte) {
	n := len(v)
	switch {
	case n <= math.MaxUint8:
		b.WriteByte(mpBin8)
		b.WriteByte(byte(n))
	case n <= math.MaxUint16:
		b.WriteByte(mpBin16)
		b.WriteUint16(uint16(n))
	default:
		b.WriteByte(mpBin32)
		b.WriteUint32(uint32(n))
	}
	b.WriteBytes(v)
}

// PackArrayHeader appends just the header for an array of n elements; the
// caller packs each element itself.
func PackArrayHeader(b *Buffer, n int) {
	switch {
	case n < 16:
		b.WriteByte(byte(mpFixArrayBase | n))
	case n <= math.MaxUint16:
		b.WriteByte(mpArray16)
		b.WriteUint16(uint16(n))
	default:
		b.WriteByte(mpArray32)
		b.WriteUint32(uint32(n))
	}
}

// PackMapHeader appends just the header for a map of n key/value pairs.
func PackMapHeader(b *Buffer, n int) {
	switch {
	case n < 16:
		b.WriteByte(byte(mpFixMapBase | n))
	case n <= math.MaxUint16:
		b.WriteByte(mpMap16)
		b.WriteUint16(uint16(n))
	default:
		b.WriteByte(mpMap32)
		b.WriteUint32(uint32(n))
	}
}

// packedKind classifies a leading type byte for the unpacker's dispatch.
type packedKind int

const (
	kindNil packedKind = iota
	kindBool
	kindInt
	kindUint
	kindFloat
	kindString
	kindBlob
	kindArray
	kindMap
	kindExt
)

// unpackTag consumes the next value's leading type byte; callers
// dispatch on it and read any payload that follows themselves.
func unpackTag(r *Reader) (byte, error) {
	return r.ReadByte()
}

// UnpackBool, UnpackInt, UnpackUint, UnpackFloat64, UnpackString, and
// UnpackBlob each consume exactly one fully self-contained value.
// UnpackList and UnpackMap recurse through UnpackValue, defined in
// value.go, to handle heterogeneous elements.

func UnpackBool(r *Reader) (bool, error) {
	tag, err := unpackTag(r)
	if err != nil {
		return false, err
	}
	switch tag {
	case mpTrue:
		return true, nil
	case mpFalse:
		return false, nil
	default:
		return false, ErrMalformed
	}
}

func UnpackInt(r *Reader) (int64, error) {
	tag, err := unpackTag(r)
	if err != nil {
		return 0, err
	}
	return unpackIntBody(r, tag)
}

func unpackIntBody(r *Reader, tag byte) (int64, error) {
	switch {
	case tag <= mpPosFixIntMax:
		return int64(tag), nil
	case tag >= mpNegFixIntMin:
		return int64(int8(tag)), nil
	}
	switch tag {
	case mpInt8:
		v, err := r.ReadByte()
		return int64(int8(v)), err
	case mpInt16:
		v, err := r.ReadUint16()
		return int64(int16(v)), err
	case mpInt32:
		v, err := r.ReadUint32()
		return int64(int32(v)), err
	case mpInt64:
		v, err := r.ReadUint64()
		return int64(v), err
	case mpUint8:
		v, err := r.ReadByte()
		return int64(v), err
	case mpUint16:
		v, err := r.ReadUint16()
		return int64(v), err
	case mpUint32:
		v, err := r.ReadUint32()
		return int64(v), err
	case mpUint64:
		v, err := r.ReadUint64()
		return int64(v), err
	default:
		return 0, ErrMalformed
	}
}

func UnpackFloat64(r *Reader) (float64, error) {
	tag, err := unpackTag(r)
	if err != nil {
		return 0, err
	}
	switch tag {
	case mpFloat32:
		v, err := r.ReadUint32()
		return float64(math.Float32frombits(v)), err
	case mpFloat64:
		v, err := r.ReadUint64()
		return math.Float64frombits(v), err
	default:
		return 0, ErrMalformed
	}
}

func UnpackString(r *Reader) (string, error) {
	tag, err := unpackTag(r)
	if err != nil {
		return "", err
	}
	n, err := strLen(r, tag)
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func strLen(r *Reader, tag byte) (int, error) {
	if tag&0xe0 == mpFixStrBase {
		return int(tag &^ mpFixStrBase), nil
	}
	switch tag {
	case mpStr8:
		v, err := r.ReadByte()
		return int(v), err
	case mpStr16:
		v, err := r.ReadUint16()
		return int(v), err
	case mpStr32:
		v, err := r.ReadUint32()
		return int(v), err
	default:
		return 0, ErrMalformed
	}
}

func UnpackBlob(r *Reader) ([]byte, error) {
	tag, err := unpackTag(r)
	if err != nil {
		return nil, err
	}
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
	default:
		return nil, ErrMalformed
	}
	return r.ReadBytes(n)
}

// arrayLen reads an array header's element count given its already
// consumed tag byte.
func arrayLen(r *Reader, tag byte) (int, error) {
	if tag&0xf0 == mpFixArrayBase {
		return int(tag &^ mpFixArrayBase), nil
	}
	switch tag {
	case mpArray16:
		v, err := r.ReadUint16()
		return int(v), err
	case mpArray32:
		v, err := r.ReadUint32()
		return int(v), err
	default:
		return 0, ErrMalformed
	}
}

// mapLen reads a map header's pair count given its already consumed tag
// byte.
func mapLen(r *Reader, tag byte) (int, error) {
	if tag&0xf0 == mpFixMapBase {
		return int(tag &^ mpFixMapBase), nil
	}
	switch tag {
	case mpMap16:
		v, err := r.ReadUint16()
		return int(v), err
	case mpMap32:
		v, err := r.ReadUint32()
		return int(v), err
	default:
		return 0, ErrMalformed
	}
}

// skipExt consumes (without interpreting) an extension value whose tag
// has already been read — used for server-side type-extension markers
// the client doesn't understand yet.
func skipExt(r *Reader, tag byte) error {
	var n int
	switch tag {
	case mpFixExt1:
		n = 1
	case mpFixExt2:
		n = 2
	case mpFixExt4:
		n = 4
	case mpFixExt8:
		n = 8
	case mpFixExt16:
		n = 16
	case mpExt8:
		v, err := r.ReadByte()
		if err != nil {
			return err
		}
		n = int(v)
	case mpExt16:
		v, err := r.ReadUint16()
		if err != nil {
			return err
		}
		n = int(v)
	case mpExt32:
		v, err := r.ReadUint32()
		if err != nil {
			return err
		}
		n = int(v)
	default:
		return ErrMalformed
	}
	if _, err := r.ReadByte(); err != nil { // ext type byte
		return err
	}
	return r.Skip(n)
}

func classifyTag(tag byte) packedKind {
	switch {
	case tag <= mpPosFixIntMax, tag >= mpNegFixIntMin:
		return kindInt
	case tag&0xe0 == mpFixStrBase:
		return kindString
	case tag&0xf0 == mpFixArrayBase:
		return kindArray
	case tag&0xf0 == mpFixMapBase:
		return kindMap
	}
	switch tag {
	case mpNil:
		return kindNil
	case mpTrue, mpFalse:
		return kindBool
	case mpFloat32, mpFloat64:
		return kindFloat
	case mpUint8, mpUint16, mpUint32, mpUint64, mpInt8, mpInt16, mpInt32, mpInt64:
		return kindInt
	case mpStr8, mpStr16, mpStr32:
		return kindString
	case mpBin8, mpBin16, mpBin32:
		return kindBlob
	case mpArray16, mpArray32:
		return kindArray
	case mpMap16, mpMap32:
		return kindMap
	case mpFixExt1, mpFixExt2, mpFixExt4, mpFixExt8, mpFixExt16, mpExt8, mpExt16, mpExt32:
		return kindExt
	default:
		return kindExt
	}
}
