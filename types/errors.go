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

import "fmt"

// Kind classifies a ClientError independently of any particular
// ResultCode, so callers can branch on "what sort of thing went wrong"
// without inspecting the message.
type Kind int

const (
	KindConnection Kind = iota
	KindNoMoreConnections
	KindInvalidArgument
	KindInvalidNode
	KindTimeout
	KindServerError
	KindBatchError
	KindUdfBadResponse
	KindBadResponse
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindNoMoreConnections:
		return "no more connections"
	case KindInvalidArgument:
		return "invalid argument"
	case KindInvalidNode:
		return "invalid node"
	case KindTimeout:
		return "timeout"
	case KindServerError:
		return "server error"
	case KindBatchError:
		return "batch error"
	case KindUdfBadResponse:
		return "udf bad response"
	case KindBadResponse:
		return "bad response"
	default:
		return "error"
	}
}

// ClientError is the single error type every exported operation returns.
// It carries enough structure for a caller to recover a server result
// code, the node that produced it, and whether a write is in doubt,
// without needing to parse the message text.
type ClientError struct {
	Kind ResultCode // informational only when ClientKind() below is not KindServerError/KindBatchError
	kind Kind
	Msg  string
	Node string // originating node name, if known
	// InDoubt is set on a write that may or may not have been applied:
	// the client observed the request as sent but never parsed a
	// confirming response before the error occurred.
	InDoubt bool
	// Index is the batch entry index for KindBatchError.
	Index int
	Err   error // wrapped cause, if any
}

func (e *ClientError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch e.kind {
	case KindServerError:
		if e.Node != "" {
			return fmt.Sprintf("%s: %s (node %s)", e.kind, msg, e.Node)
		}
		return fmt.Sprintf("%s: %s", e.kind, msg)
	case KindBatchError:
		return fmt.Sprintf("%s: entry %d: %s (node %s)", e.kind, e.Index, msg, e.Node)
	default:
		if msg == "" {
			return e.kind.String()
		}
		return fmt.Sprintf("%s: %s", e.kind, msg)
	}
}

func (e *ClientError) Unwrap() error { return e.Err }

func (e *ClientError) ClientKind() Kind { return e.kind }

func newErr(kind Kind, rc ResultCode, format string, args ...any) *ClientError {
	return &ClientError{kind: kind, Kind: rc, Msg: fmt.Sprintf(format, args...)}
}

func ErrConnection(err error) *ClientError {
	return &ClientError{kind: KindConnection, Err: err, Msg: "cannot reach cluster"}
}

func ErrNoMoreConnections(node string) *ClientError {
	e := newErr(KindNoMoreConnections, 0, "connection pool exhausted")
	e.Node = node
	return e
}

func ErrInvalidArgument(format string, args ...any) *ClientError {
	return newErr(KindInvalidArgument, ParameterError, format, args...)
}

func ErrInvalidNode(format string, args ...any) *ClientError {
	return newErr(KindInvalidNode, 0, format, args...)
}

// ErrTimeout reports a client-side deadline or retry-budget exhaustion.
// serverSide distinguishes a socket_timeout observed mid-command from a
// total_timeout computed purely on the client.
func ErrTimeout(serverSide bool, format string, args ...any) *ClientError {
	e := newErr(KindTimeout, Timeout, format, args...)
	e.InDoubt = serverSide
	return e
}

func ErrServer(rc ResultCode, node string, inDoubt bool) *ClientError {
	e := newErr(KindServerError, rc, "%s", rc.String())
	e.Node = node
	e.InDoubt = inDoubt
	return e
}

func ErrBatch(index int, rc ResultCode, node string, inDoubt bool) *ClientError {
	e := newErr(KindBatchError, rc, "%s", rc.String())
	e.Node = node
	e.Index = index
	e.InDoubt = inDoubt
	return e
}

func ErrUdfBadResponse(message string) *ClientError {
	return newErr(KindUdfBadResponse, UdfBadResponse, "%s", message)
}

func ErrBadResponse(format string, args ...any) *ClientError {
	return newErr(KindBadResponse, 0, format, args...)
}

// IsKeyNotFound is a convenience check used throughout the command layer
// and by callers implementing exists() in terms of get().
func IsKeyNotFound(err error) bool {
	ce, ok := err.(*ClientError)
	return ok && ce.kind == KindServerError && ce.Kind == KeyNotFound
}
