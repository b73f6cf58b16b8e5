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

// Particle is the server's numeric tag for a value's wire encoding.
//
// HLL and the legacy Lua blob type share the number 18; the server
// disambiguates by context (the bin's declared type). This client never
// emits the legacy variant, so 18 always means HLL on the wire except when
// read back into a bin that is known not to be an HLL, in which case it is
// treated as an opaque blob.
type Particle uint8

const (
	ParticleNull      Particle = 0
	ParticleInteger   Particle = 1
	ParticleFloat     Particle = 2
	ParticleString    Particle = 3
	ParticleBlob      Particle = 4
	ParticleDigest    Particle = 6
	ParticleHLL       Particle = 18
	ParticleMap       Particle = 19
	ParticleList      Particle = 20
	ParticleGeoJSON   Particle = 23
)

func (p Particle) String() string {
	switch p {
	case ParticleNull:
		return "null"
	case ParticleInteger:
		return "integer"
	case ParticleFloat:
		return "float"
	case ParticleString:
		return "string"
	case ParticleBlob:
		return "blob"
	case ParticleDigest:
		return "digest"
	case ParticleHLL:
		return "hll"
	case ParticleMap:
		return "map"
	case ParticleList:
		return "list"
	case ParticleGeoJSON:
		return "geojson"
	default:
		return "unknown"
	}
}
