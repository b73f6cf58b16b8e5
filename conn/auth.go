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

package conn

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

// credentialDigest derives the client-side credential digest sent in a
// login request: never the plaintext password. The server independently
// verifies this digest against its own stored hash of the account. The
// per-connection nonce is folded in so two logins for the same account
// never send the same digest over the wire.
func credentialDigest(user, password string, nonce uuid.UUID) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(user))
	h.Write([]byte{0})
	h.Write([]byte(password))
	nonceBytes, _ := nonce.MarshalBinary()
	h.Write(nonceBytes)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// login performs the credential exchange over an already-dialed
// connection, returning the session token and its expiry on success.
// Modeled on the single round-trip AdminCommand::authenticate used by
// the original client, adapted to this protocol's field framing instead
// of a bespoke admin-command layout. nonce is a client-generated,
// per-connection value bound into the credential digest and also sent
// alongside it, so the server can detect a replayed digest.
func login(c *Connection, cred *Credential, nonce uuid.UUID) ([]byte, time.Time, error) {
	digest := credentialDigest(cred.User, cred.Password, nonce)
	nonceBytes, _ := nonce.MarshalBinary()

	var body wire.Buffer
	wire.WriteMessageHeader(&body, wire.MessageHeader{
		Info1:   0,
		Info2:   wire.Info2Write,
		NFields: 3,
	})
	wire.WriteFieldString(&body, wire.FieldNamespace, cred.User)
	wire.WriteField(&body, wire.FieldDigestRipe, digest[:])
	wire.WriteField(&body, wire.FieldSessionNonce, nonceBytes)

	if err := c.WriteMessage(body.Bytes()); err != nil {
		return nil, time.Time{}, err
	}

	respBody, err := c.ReadMessage()
	if err != nil {
		return nil, time.Time{}, err
	}
	r := wire.NewReader(respBody)
	hdr, err := wire.ReadMessageHeader(r)
	if err != nil {
		return nil, time.Time{}, err
	}
	if rc := types.ResultCode(hdr.ResultCode); rc != types.Ok {
		return nil, time.Time{}, types.ErrServer(rc, c.node, false)
	}

	var token []byte
	for i := uint16(0); i < hdr.NFields; i++ {
		f, err := wire.ReadField(r)
		if err != nil {
			return nil, time.Time{}, err
		}
		if f.Type == wire.FieldQueryID {
			token = append([]byte(nil), f.Payload...)
		}
	}
	// A session is valid for the duration the server granted via
	// TransactionTTL on the login response; 0 means the server didn't
	// grant a bounded session, so treat it as non-expiring here.
	expires := time.Time{}
	if hdr.TransactionTTL > 0 {
		expires = time.Now().Add(time.Duration(hdr.TransactionTTL) * time.Second)
	}
	return token, expires, nil
}
