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

// ResultCode is the numeric code the server returns in a message header.
// The set is closed for the codes the core cares about, with an open-ended
// Unknown tail for forward compatibility with codes this client doesn't
// otherwise recognize.
type ResultCode uint8

const (
	Ok                       ResultCode = 0
	ServerError              ResultCode = 1
	KeyNotFound              ResultCode = 2
	GenerationError          ResultCode = 3
	ParameterError           ResultCode = 4
	KeyExists                ResultCode = 5
	BinExists                ResultCode = 6
	ClusterKeyMismatch       ResultCode = 7
	ServerMemError           ResultCode = 8
	Timeout                  ResultCode = 9
	ServerNotAvailable       ResultCode = 11
	BinTypeError             ResultCode = 12
	RecordTooBig             ResultCode = 13
	KeyBusy                  ResultCode = 14
	ScanAbort                ResultCode = 15
	UnsupportedFeature       ResultCode = 16
	BinNotFound              ResultCode = 17
	DeviceOverload           ResultCode = 18
	KeyMismatch              ResultCode = 19
	InvalidNamespace         ResultCode = 20
	BinNameTooLong           ResultCode = 21
	FilterExp                ResultCode = 27
	ElementNotFound          ResultCode = 34
	ElementExists            ResultCode = 35
	QueryEnd                 ResultCode = 50
	SecurityNotSupported     ResultCode = 51
	SecurityNotEnabled       ResultCode = 52
	SecuritySchemeNotSupported ResultCode = 53
	InvalidCommand           ResultCode = 54
	InvalidField             ResultCode = 55
	IllegalState             ResultCode = 56
	InvalidUser              ResultCode = 60
	UserAlreadyExists        ResultCode = 61
	InvalidPassword          ResultCode = 62
	ExpiredPassword          ResultCode = 63
	ForbiddenPassword        ResultCode = 64
	InvalidCredential        ResultCode = 65
	NotAuthenticated         ResultCode = 80
	RoleViolation            ResultCode = 81
	UdfBadResponse           ResultCode = 100
	BatchDisabled            ResultCode = 150
	BatchMaxRequestsExceeded ResultCode = 151
	BatchQueuesFull          ResultCode = 152
	IndexFound               ResultCode = 200
	IndexNotFound            ResultCode = 201
	IndexOom                 ResultCode = 202
	IndexNotReadable         ResultCode = 203
	IndexGeneric             ResultCode = 204
	QueryAborted             ResultCode = 210
	QueryQueueFull           ResultCode = 211
	QueryTimeout             ResultCode = 212
	QueryGeneric             ResultCode = 213
	QueryNetio               ResultCode = 214
	QueryDuplicate           ResultCode = 215
)

var names = map[ResultCode]string{
	Ok: "ok", ServerError: "server error", KeyNotFound: "key not found",
	GenerationError: "generation error", ParameterError: "parameter error",
	KeyExists: "key exists", BinExists: "bin exists",
	ClusterKeyMismatch: "cluster key mismatch", ServerMemError: "server out of memory",
	Timeout: "timeout", ServerNotAvailable: "server not available",
	BinTypeError: "bin type error", RecordTooBig: "record too big",
	KeyBusy: "key busy", ScanAbort: "scan aborted", UnsupportedFeature: "unsupported feature",
	BinNotFound: "bin not found", DeviceOverload: "device overload",
	KeyMismatch: "key mismatch", InvalidNamespace: "invalid namespace",
	BinNameTooLong: "bin name too long", FilterExp: "filter expression error",
	ElementNotFound: "element not found", ElementExists: "element exists",
	QueryEnd: "query end", NotAuthenticated: "not authenticated",
	RoleViolation: "role violation", UdfBadResponse: "UDF bad response",
	BatchDisabled: "batch disabled", BatchMaxRequestsExceeded: "batch max requests exceeded",
	BatchQueuesFull: "batch queues full", IndexFound: "index already exists",
	IndexNotFound: "index not found", IndexOom: "index out of memory",
	IndexNotReadable: "index not readable", IndexGeneric: "index error",
	QueryAborted: "query aborted", QueryQueueFull: "query queue full",
	QueryTimeout: "query timeout", QueryGeneric: "query error",
	QueryNetio: "query network error", QueryDuplicate: "query duplicate",
}

func (r ResultCode) String() string {
	if s, ok := names[r]; ok {
		return s
	}
	return fmt.Sprintf("unknown result code %d", uint8(r))
}

// KeepConnection reports whether a connection that produced this result
// code can be returned to the pool rather than invalidated. This is the
// closed set named in the command engine's contract: these are
// request-level outcomes, not connection-level failures.
func (r ResultCode) KeepConnection() bool {
	switch r {
	case KeyNotFound, GenerationError, KeyExists, BinExists, ElementExists, ElementNotFound, FilterExp:
		return true
	default:
		return false
	}
}

// Retryable reports whether the command engine's retry loop should
// reselect a replica and try again rather than surface this code to the
// caller immediately.
func (r ResultCode) Retryable() bool {
	switch r {
	case Timeout, ServerNotAvailable, DeviceOverload, KeyBusy:
		return true
	default:
		return false
	}
}
