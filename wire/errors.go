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

import "errors"

// ErrTruncated is returned by any Reader method when the underlying
// buffer runs out before the requested field can be read. The command
// engine treats it as a retryable failure (the connection is invalidated)
// and passes it on unwrapped.
var ErrTruncated = errors.New("wire: truncated message")

// ErrMalformed is returned when a decoded value's framing is internally
// inconsistent (e.g. an unknown packed-value type tag).
var ErrMalformed = errors.New("wire: malformed message")
