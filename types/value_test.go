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

import "testing"

func TestNewValueConversions(t *testing.T) {
	cases := []struct {
		in   any
		want Particle
	}{
		{nil, ParticleNull},
		{true, ParticleInteger},
		{42, ParticleInteger},
		{int64(42), ParticleInteger},
		{uint64(42), ParticleInteger},
		{3.14, ParticleFloat},
		{"hello", ParticleString},
		{[]byte{1, 2, 3}, ParticleBlob},
	}
	for _, c := range cases {
		got := NewValue(c.in)
		if got.Particle() != c.want {
			t.Errorf("NewValue(%#v).Particle() = %v, want %v", c.in, got.Particle(), c.want)
		}
	}
}

func TestNewValuePassesThroughExistingValue(t *testing.T) {
	v := NewValue(IntegerValue(7))
	if v != IntegerValue(7) {
		t.Fatalf("expected passthrough, got %#v", v)
	}
}

func TestNewValueUnsupportedDefaultsToNull(t *testing.T) {
	type unsupported struct{}
	v := NewValue(unsupported{})
	if _, ok := v.(NullValue); !ok {
		t.Fatalf("expected NullValue fallback, got %T", v)
	}
}

func TestUintValueAboveMaxInt64ReportsIntegerParticle(t *testing.T) {
	// Documents the boundary noted on UintValue: anything above
	// math.MaxInt64 can't be represented in the server's signed 64-bit
	// integer particle, which key digesting enforces explicitly.
	huge := UintValue(1 << 63)
	if huge.Particle() != ParticleInteger {
		t.Fatalf("UintValue must still report ParticleInteger: got %v", huge.Particle())
	}
}
