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

//go:build !unix

package conn

import "net"

// setSockOpts falls back to the portable net.TCPConn methods on
// non-unix platforms, where golang.org/x/sys/unix's socket option
// constants don't apply.
func setSockOpts(tc *net.TCPConn) {
	_ = tc.SetNoDelay(true)
}
