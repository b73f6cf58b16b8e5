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

package types

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // server-mandated digest algorithm
)

// DigestSize is the length in bytes of a Key's content digest.
const DigestSize = 20

// Key binds a (namespace, set, user key) triple to the 20-byte digest the
// server actually uses to route and compare keys. Two keys are
// server-equal iff their (namespace, digest) pair is equal; the
// set name and user key are carried for display and digest
// reconstruction only.
//
// A Key is immutable once constructed.
type Key struct {
	Namespace string
	SetName   string
	UserKey   Value // nil if the key was constructed from a digest only
	Digest    [DigestSize]byte
}

// NewKey constructs a Key from a namespace, set name, and user key value.
// Only IntegerValue, UintValue (<= math.MaxInt64), StringValue, and
// BlobValue are supported as user keys; any other Value returns
// ErrInvalidArgument.
func NewKey(namespace, setName string, userKey Value) (*Key, error) {
	digest, err := computeDigest(setName, userKey)
	if err != nil {
		return nil, err
	}
	return &Key{Namespace: namespace, SetName: setName, UserKey: userKey, Digest: digest}, nil
}

// NewKeyFromDigest constructs a Key when only the digest is known (e.g.
// when a server response only carries the digest field). UserKey is nil.
func NewKeyFromDigest(namespace, setName string, digest [DigestSize]byte) *Key {
	return &Key{Namespace: namespace, SetName: setName, Digest: digest}
}

// computeDigest hashes RIPEMD-160 over setName || particle-type-byte ||
// canonical key bytes: integers as big-endian 8 bytes,
// strings as UTF-8, blobs verbatim.
func computeDigest(setName string, userKey Value) ([DigestSize]byte, error) {
	var out [DigestSize]byte
	h := ripemd160.New()
	h.Write([]byte(setName))

	var kbuf [8]byte
	switch v := userKey.(type) {
	case IntegerValue:
		h.Write([]byte{byte(ParticleInteger)})
		binary.BigEndian.PutUint64(kbuf[:], uint64(int64(v)))
		h.Write(kbuf[:])
	case UintValue:
		if uint64(v) > 1<<63-1 {
			return out, ErrInvalidArgument("uint key %d overflows signed 64-bit server representation", uint64(v))
		}
		h.Write([]byte{byte(ParticleInteger)})
		binary.BigEndian.PutUint64(kbuf[:], uint64(v))
		h.Write(kbuf[:])
	case StringValue:
		h.Write([]byte{byte(ParticleString)})
		h.Write([]byte(string(v)))
	case BlobValue:
		h.Write([]byte{byte(ParticleBlob)})
		h.Write([]byte(v))
	default:
		return out, ErrInvalidArgument("unsupported key value type %T", userKey)
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}

func (k *Key) String() string {
	if k.UserKey != nil {
		return fmt.Sprintf("<Key: ns=%q, set=%q, key=%q>", k.Namespace, k.SetName, k.UserKey)
	}
	return fmt.Sprintf("<Key: ns=%q, set=%q, digest=%x>", k.Namespace, k.SetName, k.Digest)
}

// Equal reports whether two keys are server-equal: same namespace and
// digest, irrespective of the user key representation each carries.
func (k *Key) Equal(o *Key) bool {
	return k.Namespace == o.Namespace && k.Digest == o.Digest
}
