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

// Package wire implements the binary request/response protocol: message
// framing, field and operation encoding, particle-type value encoding,
// and the packed (self-describing, msgpack-like) container format used
// for lists, maps, and CDT operation payloads.
package wire

import "encoding/binary"

// Buffer is an append-only byte buffer with big-endian write helpers. A
// zero Buffer is ready to use; Reset reclaims its backing array for reuse
// across commands on the same connection.
type Buffer struct {
	buf []byte
}

func (b *Buffer) Reset() { b.buf = b.buf[:0] }

func (b *Buffer) Bytes() []byte { return b.buf }

func (b *Buffer) Len() int { return len(b.buf) }

// Grow reserves n more bytes of capacity without changing Len.
func (b *Buffer) Grow(n int) {
	if cap(b.buf)-len(b.buf) >= n {
		return
	}
	buf := make([]byte, len(b.buf), len(b.buf)+n)
	copy(buf, b.buf)
	b.buf = buf
}

// Skip appends n zero bytes and returns the offset they start at, so the
// caller can patch them in later (used for length prefixes written
// before their payload size is known).
func (b *Buffer) Skip(n int) int {
	off := len(b.buf)
	for i := 0; i < n; i++ {
		b.buf = append(b.buf, 0)
	}
	return off
}

func (b *Buffer) WriteByte(v byte) { b.buf = append(b.buf, v) }

func (b *Buffer) WriteBytes(v []byte) { b.buf = append(b.buf, v...) }

func (b *Buffer) WriteString(v string) { b.buf = append(b.buf, v...) }

func (b *Buffer) WriteUint16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Buffer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Buffer) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// PutUint32At patches a 4-byte big-endian value at a previously Skip'd
// offset, used to backfill field/op size prefixes.
func (b *Buffer) PutUint32At(off int, v uint32) {
	binary.BigEndian.PutUint32(b.buf[off:off+4], v)
}

// Reader sequentially parses a byte slice, tracking an EOF-safe offset.
// Every Read* method returns (value, error); on error the Reader's
// position is left at the start of the failed read so callers can surface
// offset information if useful for diagnostics.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) Len() int { return len(r.buf) - r.off }

func (r *Reader) Remaining() []byte { return r.buf[r.off:] }

func (r *Reader) need(n int) error {
	if r.Len() < n {
		return ErrTruncated
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.off += n
	return nil
}
