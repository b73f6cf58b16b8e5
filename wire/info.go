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

import "strings"

// EncodeInfoRequest joins the given keys with newlines and appends a
// final newline, producing the body of a ProtoTypeInfo request. An empty
// keys list requests every available key.
func EncodeInfoRequest(keys ...string) []byte {
	if len(keys) == 0 {
		return []byte("\n")
	}
	return []byte(strings.Join(keys, "\n") + "\n")
}

// ParseInfoResponse splits a ProtoTypeInfo response body into its
// tab-separated key/value tuples, one per newline-terminated line. A key
// with no corresponding value (no tab found) maps to "".
func ParseInfoResponse(body []byte) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(string(body), "\n") {
		if line == "" {
			continue
		}
		if tab := strings.IndexByte(line, '\t'); tab >= 0 {
			out[line[:tab]] = line[tab+1:]
		} else {
			out[line] = ""
		}
	}
	return out
}
