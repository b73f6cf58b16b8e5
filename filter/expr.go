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

// Package filter builds compiled filter-expression trees and serializes
// them into the packed-array wire form a BasePolicy carries as an
// opaque FilterExpression field. Building a tree never touches the
// network; Compile is the only entry point that produces wire bytes.
package filter

import (
	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

// Expr is one node of a compiled filter-expression tree. Every node
// serializes itself as either a bare packed value (a literal) or a
// packed array whose first element is its op code.
type Expr interface {
	encode(b *wire.Buffer)
}

// Node op codes. The wire protocol's own numbering isn't part of the
// retrieved corpus, so these are this client's own scheme: stable
// within this module, but not guaranteed to match any particular
// server build's internal constants. See DESIGN.md.
const (
	opEQ    = 1
	opNE    = 2
	opGT    = 3
	opGE    = 4
	opLT    = 5
	opLE    = 6
	opRegex = 7

	opAnd = 16
	opOr  = 17
	opNot = 18

	opAdd       = 32
	opSub       = 33
	opMul       = 34
	opDiv       = 35
	opMod       = 36
	opIntAnd    = 37
	opIntOr     = 38
	opIntXor    = 39
	opIntNot    = 40
	opIntLshift = 41
	opIntRshift = 42
	opMin       = 43
	opMax       = 44

	opMetaTTL          = 64
	opMetaVoidTime     = 65
	opMetaLastUpdate   = 66
	opMetaDeviceSize   = 67
	opMetaSetName      = 68
	opMetaDigestModulo = 69
	opMetaKey          = 70
	opMetaIsTombstone  = 71
	opBinExists        = 72
	opBinType          = 73

	opBin       = 80
	opContainer = 96
)

// Compile serializes e into the packed-array bytes a BasePolicy's
// FilterExpression field carries verbatim.
func Compile(e Expr) []byte {
	var b wire.Buffer
	e.encode(&b)
	return b.Bytes()
}

// litExpr wraps a literal value. It encodes as a bare packed value, not
// a tagged array — the server tells literals from op nodes apart by
// packed-value kind (array vs scalar/string/blob).
type litExpr struct{ v types.Value }

func (e litExpr) encode(b *wire.Buffer) { wire.PackValue(b, e.v) }

func IntVal(v int64) Expr       { return litExpr{types.IntegerValue(v)} }
func UintVal(v uint64) Expr     { return litExpr{types.UintValue(v)} }
func FloatVal(v float64) Expr   { return litExpr{types.FloatValue(v)} }
func StringVal(v string) Expr   { return litExpr{types.StringValue(v)} }
func BlobVal(v []byte) Expr     { return litExpr{types.BlobValue(v)} }
func BoolVal(v bool) Expr       { return litExpr{types.BoolValue(v)} }
func NilVal() Expr              { return litExpr{types.NullValue{}} }

// binExpr references a bin by name and its expected particle type.
type binExpr struct {
	name     string
	particle types.Particle
}

func IntBin(name string) Expr    { return binExpr{name, types.ParticleInteger} }
func FloatBin(name string) Expr  { return binExpr{name, types.ParticleFloat} }
func StringBin(name string) Expr { return binExpr{name, types.ParticleString} }
func BlobBin(name string) Expr   { return binExpr{name, types.ParticleBlob} }
func ListBin(name string) Expr   { return binExpr{name, types.ParticleList} }
func MapBin(name string) Expr    { return binExpr{name, types.ParticleMap} }
func HLLBin(name string) Expr    { return binExpr{name, types.ParticleHLL} }
func GeoBin(name string) Expr    { return binExpr{name, types.ParticleGeoJSON} }

func (e binExpr) encode(b *wire.Buffer) {
	wire.PackArrayHeader(b, 3)
	wire.PackInt(b, opBin)
	wire.PackInt(b, int64(e.particle))
	wire.PackString(b, e.name)
}

// logicalExpr is AND/OR (variadic) or NOT (always one child).
type logicalExpr struct {
	op       int
	children []Expr
}

func And(children ...Expr) Expr { return logicalExpr{opAnd, children} }
func Or(children ...Expr) Expr  { return logicalExpr{opOr, children} }
func Not(child Expr) Expr       { return logicalExpr{opNot, []Expr{child}} }

func (e logicalExpr) encode(b *wire.Buffer) {
	wire.PackArrayHeader(b, 1+len(e.children))
	wire.PackInt(b, int64(e.op))
	for _, c := range e.children {
		c.encode(b)
	}
}

// cmpExpr is a binary comparison between two subexpressions.
type cmpExpr struct {
	op          int
	left, right Expr
}

func Eq(left, right Expr) Expr { return cmpExpr{opEQ, left, right} }
func Ne(left, right Expr) Expr { return cmpExpr{opNE, left, right} }
func Gt(left, right Expr) Expr { return cmpExpr{opGT, left, right} }
func Ge(left, right Expr) Expr { return cmpExpr{opGE, left, right} }
func Lt(left, right Expr) Expr { return cmpExpr{opLT, left, right} }
func Le(left, right Expr) Expr { return cmpExpr{opLE, left, right} }

func (e cmpExpr) encode(b *wire.Buffer) {
	wire.PackArrayHeader(b, 3)
	wire.PackInt(b, int64(e.op))
	e.left.encode(b)
	e.right.encode(b)
}

// arithExpr covers the variadic numeric/bitwise operators. Mod and the
// shifts take exactly two operands and IntNot takes one; the rest,
// including Min and Max, are variadic, matching how the corresponding
// operate-ops compose.
type arithExpr struct {
	op       int
	children []Expr
}

func Add(children ...Expr) Expr    { return arithExpr{opAdd, children} }
func Sub(children ...Expr) Expr    { return arithExpr{opSub, children} }
func Mul(children ...Expr) Expr    { return arithExpr{opMul, children} }
func Div(children ...Expr) Expr    { return arithExpr{opDiv, children} }
func Mod(a, b Expr) Expr           { return arithExpr{opMod, []Expr{a, b}} }
func IntAnd(children ...Expr) Expr { return arithExpr{opIntAnd, children} }
func IntOr(children ...Expr) Expr  { return arithExpr{opIntOr, children} }
func IntXor(children ...Expr) Expr { return arithExpr{opIntXor, children} }
func IntNot(a Expr) Expr           { return arithExpr{opIntNot, []Expr{a}} }
func Lshift(a, shift Expr) Expr    { return arithExpr{opIntLshift, []Expr{a, shift}} }
func Rshift(a, shift Expr) Expr    { return arithExpr{opIntRshift, []Expr{a, shift}} }
func Min(children ...Expr) Expr    { return arithExpr{opMin, children} }
func Max(children ...Expr) Expr    { return arithExpr{opMax, children} }

func (e arithExpr) encode(b *wire.Buffer) {
	wire.PackArrayHeader(b, 1+len(e.children))
	wire.PackInt(b, int64(e.op))
	for _, c := range e.children {
		c.encode(b)
	}
}

// metaExpr is a zero-argument record-metadata accessor.
type metaExpr struct{ op int }

func TTL() Expr        { return metaExpr{opMetaTTL} }
func VoidTime() Expr   { return metaExpr{opMetaVoidTime} }
func LastUpdate() Expr { return metaExpr{opMetaLastUpdate} }
func DeviceSize() Expr { return metaExpr{opMetaDeviceSize} }
func SetName() Expr    { return metaExpr{opMetaSetName} }
func RecordKey() Expr  { return metaExpr{opMetaKey} }
func IsTombstone() Expr { return metaExpr{opMetaIsTombstone} }

func (e metaExpr) encode(b *wire.Buffer) {
	wire.PackArrayHeader(b, 1)
	wire.PackInt(b, int64(e.op))
}

// DigestModulo reports digest mod m, treated as unsigned modulo per the
// Open Question this accessor left unresolved in the source material.
func DigestModulo(m uint32) Expr { return digestModuloExpr{m} }

type digestModuloExpr struct{ mod uint32 }

func (e digestModuloExpr) encode(b *wire.Buffer) {
	wire.PackArrayHeader(b, 2)
	wire.PackInt(b, opMetaDigestModulo)
	wire.PackUint(b, uint64(e.mod))
}

// binMetaExpr is a named-bin accessor that isn't itself a bin reference
// (whether a bin exists, and its particle type).
type binMetaExpr struct {
	op   int
	name string
}

func BinExists(name string) Expr { return binMetaExpr{opBinExists, name} }
func BinType(name string) Expr   { return binMetaExpr{opBinType, name} }

func (e binMetaExpr) encode(b *wire.Buffer) {
	wire.PackArrayHeader(b, 2)
	wire.PackInt(b, int64(e.op))
	wire.PackString(b, e.name)
}

// RegexFlag bits mirror RegexFlag from the source material.
const (
	RegexNone     uint32 = 0
	RegexExtended uint32 = 1
	RegexICase    uint32 = 2
	RegexNoSub    uint32 = 3
	RegexNewline  uint32 = 8
)

// Regex matches pattern against bin's value under flags (an OR of the
// Regex* constants above).
func Regex(bin Expr, pattern string, flags uint32) Expr {
	return regexExpr{bin: bin, pattern: pattern, flags: flags}
}

type regexExpr struct {
	bin     Expr
	pattern string
	flags   uint32
}

func (e regexExpr) encode(b *wire.Buffer) {
	wire.PackArrayHeader(b, 4)
	wire.PackInt(b, opRegex)
	wire.PackUint(b, uint64(e.flags))
	wire.PackString(b, e.pattern)
	e.bin.encode(b)
}
