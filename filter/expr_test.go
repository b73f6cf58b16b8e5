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

package filter

import (
	"testing"

	"github.com/nodedb/nodedb-go/wire"
)

func TestCompileEqProducesThreeElementArray(t *testing.T) {
	out := Compile(Eq(IntBin("bin"), IntVal(1)))

	// Structurally: [opEQ, [opBin, particle, "bin"], 1]
	r := wire.NewReader(out)
	tag, err := r.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if tag&0xf0 != 0x90 {
		t.Fatalf("expected a fixarray tag, got 0x%x", tag)
	}
	if int(tag&0x0f) != 3 {
		t.Fatalf("expected 3 elements in an Eq node, got %d", tag&0x0f)
	}
}

func TestCompileAndVariadic(t *testing.T) {
	out := Compile(And(
		Eq(IntBin("a"), IntVal(1)),
		Eq(StringBin("b"), StringVal("x")),
		Eq(IntBin("c"), IntVal(3)),
	))
	r := wire.NewReader(out)
	tag, err := r.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if int(tag&0x0f) != 4 { // op + 3 children
		t.Fatalf("expected 4 elements (op + 3 children), got %d", tag&0x0f)
	}
}

func TestCompileRegexCarriesFlags(t *testing.T) {
	out := Compile(Regex(StringBin("bin"), "^abc", RegexICase|RegexExtended))
	r := wire.NewReader(out)

	if _, err := r.ReadByte(); err != nil { // array header
		t.Fatalf("array header: %v", err)
	}
	op, err := wire.UnpackInt(r)
	if err != nil {
		t.Fatalf("op: %v", err)
	}
	if op != opRegex {
		t.Fatalf("expected opRegex, got %d", op)
	}
	flags, err := wire.UnpackInt(r)
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	if uint32(flags) != RegexICase|RegexExtended {
		t.Fatalf("expected flags %d, got %d", RegexICase|RegexExtended, flags)
	}
	pattern, err := wire.UnpackString(r)
	if err != nil {
		t.Fatalf("pattern: %v", err)
	}
	if pattern != "^abc" {
		t.Fatalf("expected pattern %q, got %q", "^abc", pattern)
	}
}

func TestCompileDigestModuloUnsigned(t *testing.T) {
	out := Compile(DigestModulo(7))
	r := wire.NewReader(out)
	if _, err := r.ReadByte(); err != nil {
		t.Fatalf("array header: %v", err)
	}
	op, err := wire.UnpackInt(r)
	if err != nil || op != opMetaDigestModulo {
		t.Fatalf("expected opMetaDigestModulo, got %d, err=%v", op, err)
	}
	mod, err := wire.UnpackInt(r)
	if err != nil {
		t.Fatalf("mod: %v", err)
	}
	if mod != 7 {
		t.Fatalf("expected modulo 7, got %d", mod)
	}
}

func TestCompileContainerOpEncodesBinAndArgs(t *testing.T) {
	out := Compile(ListGetByIndex(ListBin("mylist"), IntVal(2)))
	r := wire.NewReader(out)
	tag, err := r.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if int(tag&0x0f) != 4 { // opContainer, ListGetByIndexOp, bin, index
		t.Fatalf("expected 4 elements, got %d", tag&0x0f)
	}
}
