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

// Package conn implements a single framed TCP connection to a server
// node: the authentication handshake, idle tracking, and the read/write
// primitives the command engine frames requests and responses through.
// A Connection does not retry anything; every failure is surfaced to the
// caller, who decides whether to invalidate it.
package conn

import (
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

// Config carries everything a Connection needs at dial time, decoupled
// from the policy package so conn has no dependency on it.
type Config struct {
	DialTimeout time.Duration
	IdleTimeout time.Duration // 0 disables idle expiry
	Credential  *Credential   // nil disables authentication
}

// Credential holds a user/password pair used for the login exchange.
type Credential struct {
	User     string
	Password string
}

// Connection owns one framed TCP stream to a single node.
type Connection struct {
	raw  net.Conn
	node string

	idleTimeout  time.Duration
	idleDeadline time.Time

	bytesRead int

	// Session holds the session token, nonce and expiry returned by the
	// login this connection performed in Dial. Populated only when
	// Config.Credential is set. Dial does not reuse a previous
	// connection's Session; every new connection performs a full login.
	Session *SessionToken
}

// SessionToken is the server-issued token returned on login, along with
// the wall-clock time it stops being valid and the client-generated
// nonce that session was bound to.
type SessionToken struct {
	Token   []byte
	Nonce   uuid.UUID
	Expires time.Time
}

// Dial opens a TCP connection to addr, performs the login handshake if
// cfg.Credential is set, and returns a ready-to-use Connection.
func Dial(addr, node string, cfg Config) (*Connection, error) {
	d := net.Dialer{Timeout: cfg.DialTimeout}
	raw, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, types.ErrConnection(err)
	}
	if tc, ok := raw.(*net.TCPConn); ok {
		_ = tc.SetKeepAlivePeriod(15 * time.Second)
		setSockOpts(tc)
	}
	c := &Connection{
		raw:         raw,
		node:        node,
		idleTimeout: cfg.IdleTimeout,
	}
	c.refresh()

	if cfg.Credential != nil {
		nonce := uuid.New()
		token, expires, err := login(c, cfg.Credential, nonce)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Session = &SessionToken{Token: token, Nonce: nonce, Expires: expires}
	}
	return c, nil
}

// Write sends buf in full.
func (c *Connection) Write(buf []byte) error {
	if _, err := c.raw.Write(buf); err != nil {
		return types.ErrConnection(err)
	}
	c.refresh()
	return nil
}

// ReadFull reads exactly len(buf) bytes into buf.
func (c *Connection) ReadFull(buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := c.raw.Read(buf[n:])
		if err != nil {
			return types.ErrConnection(err)
		}
		n += m
	}
	c.bytesRead += n
	c.refresh()
	return nil
}

// SetIOTimeout arms (or, with d == 0, disables) the read and write
// deadlines on the underlying socket for the next I/O operation(s).
func (c *Connection) SetIOTimeout(d time.Duration) error {
	var deadline time.Time
	if d > 0 {
		deadline = time.Now().Add(d)
	}
	return c.raw.SetDeadline(deadline)
}

// IsIdle reports whether the connection has sat unused past its idle
// deadline and should be closed rather than reused.
func (c *Connection) IsIdle() bool {
	return c.idleTimeout > 0 && time.Now().After(c.idleDeadline)
}

func (c *Connection) refresh() {
	if c.idleTimeout > 0 {
		c.idleDeadline = time.Now().Add(c.idleTimeout)
	}
}

// Close shuts down the socket. Close is idempotent.
func (c *Connection) Close() error {
	return c.raw.Close()
}

// Node is the name of the server node this connection was dialed for.
func (c *Connection) Node() string { return c.node }

// BytesRead returns the cumulative byte count read since the last
// Bookmark, for debugging slow or oversized responses.
func (c *Connection) BytesRead() int { return c.bytesRead }

// Bookmark resets the BytesRead counter.
func (c *Connection) Bookmark() { c.bytesRead = 0 }

// WriteMessage frames and writes a full message buffer (proto header +
// message header + fields + ops), as produced by a command's
// prepare_buffer step.
func (c *Connection) WriteMessage(body []byte) error {
	var hdr wire.Buffer
	wire.WriteProtoHeader(&hdr, wire.ProtoTypeMessage, uint64(len(body)))
	if err := c.Write(hdr.Bytes()); err != nil {
		return err
	}
	return c.Write(body)
}

// ReadMessage reads one full framed message (proto header followed by
// its body) and returns the body bytes.
func (c *Connection) ReadMessage() ([]byte, error) {
	var hdrBuf [8]byte
	if err := c.ReadFull(hdrBuf[:]); err != nil {
		return nil, err
	}
	r := wire.NewReader(hdrBuf[:])
	proto, err := wire.ReadProtoHeader(r)
	if err != nil {
		return nil, err
	}
	body := make([]byte, proto.Length)
	if err := c.ReadFull(body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteInfo frames and sends an info-protocol request.
func (c *Connection) WriteInfo(payload []byte) error {
	var hdr wire.Buffer
	wire.WriteProtoHeader(&hdr, wire.ProtoTypeInfo, uint64(len(payload)))
	if err := c.Write(hdr.Bytes()); err != nil {
		return err
	}
	return c.Write(payload)
}

// ReadInfo reads one info-protocol response body.
func (c *Connection) ReadInfo() ([]byte, error) {
	return c.ReadMessage()
}
